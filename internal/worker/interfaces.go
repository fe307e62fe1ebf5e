package worker

import (
	"context"

	"basegraph.app/triage/internal/queue"
	"basegraph.app/triage/internal/store"
)

// Consumer abstracts the message queue for testability.
type Consumer interface {
	Read(ctx context.Context) ([]queue.Message, error)
	Ack(ctx context.Context, msg queue.Message) error
	ReleaseDedupe(ctx context.Context, msg queue.Message) error
	Requeue(ctx context.Context, msg queue.Message, errMsg string) error
	SendDLQ(ctx context.Context, msg queue.Message, errMsg string) error
}

// Handler runs one task. Returning an *issues.UnprocessableError drops the
// task; any other error retries it.
type Handler interface {
	Handle(ctx context.Context, msg queue.Message) error
}

// Stores is the read side task payloads are resolved with.
type Stores interface {
	Issues() store.IssueStore
	EvaluationResults() store.EvaluationResultStore
	Evaluations() store.EvaluationStore
	Commits() store.CommitStore
}
