package issues

import (
	"context"

	"basegraph.app/triage/core/db"
	"basegraph.app/triage/core/db/sqlc"
	"basegraph.app/triage/internal/store"
)

// StoreProvider exposes the stores the engine reads and mutates.
type StoreProvider interface {
	Issues() store.IssueStore
	IssueResults() store.IssueResultStore
	Histograms() store.HistogramStore
	EvaluationResults() store.EvaluationResultStore
	Evaluations() store.EvaluationStore
	Commits() store.CommitStore
}

// TxRunner runs functions within a transaction and provides stores bound to that transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(stores StoreProvider) error) error
}

type dbTxRunner struct {
	db *db.DB
}

// NewTxRunner builds a TxRunner backed by the core DB.
func NewTxRunner(db *db.DB) TxRunner {
	return &dbTxRunner{db: db}
}

func (r *dbTxRunner) WithTx(ctx context.Context, fn func(stores StoreProvider) error) error {
	return r.db.WithTx(ctx, func(q *sqlc.Queries) error {
		return fn(store.NewStores(q))
	})
}
