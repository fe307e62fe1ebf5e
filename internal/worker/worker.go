package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"basegraph.app/triage/common/logger"
	"basegraph.app/triage/internal/issues"
	"basegraph.app/triage/internal/queue"
	"go.opentelemetry.io/otel/attribute"
)

type Config struct {
	MaxAttempts int
	// ErrorBackoff is slept after a failed read so a broken connection does
	// not spin.
	ErrorBackoff time.Duration
}

type Worker struct {
	consumer Consumer
	handler  Handler
	cfg      Config

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func New(consumer Consumer, handler Handler, cfg Config) *Worker {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = time.Second
	}
	return &Worker{
		consumer:  consumer,
		handler:   handler,
		cfg:       cfg,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

func (w *Worker) Run(ctx context.Context) error {
	defer close(w.stoppedCh)

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "triage.worker",
	})
	slog.InfoContext(ctx, "worker started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			slog.InfoContext(ctx, "worker stopping")
			return nil
		default:
			if err := w.processOneBatch(ctx); err != nil {
				slog.ErrorContext(ctx, "batch processing error", "error", err)
				select {
				case <-time.After(w.cfg.ErrorBackoff):
				case <-w.stopCh:
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
}

func (w *Worker) Stop() {
	close(w.stopCh)
	<-w.stoppedCh
}

func (w *Worker) processOneBatch(ctx context.Context) error {
	messages, err := w.consumer.Read(ctx)
	if err != nil {
		return fmt.Errorf("reading from stream: %w", err)
	}

	for _, msg := range messages {
		// Failures are settled inside; the batch goes on.
		_ = w.ProcessMessage(ctx, msg)
	}
	return nil
}

// ProcessMessage runs one task and settles it on the stream: acked when it
// succeeded or was rejected by a business rule, requeued or dead-lettered
// otherwise. Exported so the reclaimer settles stale messages the same way.
func (w *Worker) ProcessMessage(ctx context.Context, msg queue.Message) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		MessageID:          logger.Ptr(msg.ID),
		TaskType:           logger.Ptr(string(msg.TaskType)),
		WorkspaceID:        logger.Ptr(msg.WorkspaceID),
		IssueID:            msg.IssueID,
		EvaluationResultID: msg.EvaluationResultID,
	})

	sc := logger.StartSpanFromTraceID(ctx, msg.TraceID, "worker."+string(msg.TaskType))
	defer sc.End()
	ctx = sc.Context()
	sc.SetAttributes(
		attribute.String("messaging.message.id", msg.ID),
		attribute.Int("triage.attempt", msg.Attempt),
	)

	// Released before the work starts so a trigger arriving mid-run
	// schedules another pass instead of being lost.
	if err := w.consumer.ReleaseDedupe(ctx, msg); err != nil {
		slog.WarnContext(ctx, "failed to release dedupe key", "error", err)
	}

	start := time.Now()
	err := w.handleSafe(ctx, msg)
	switch {
	case err == nil:
		slog.InfoContext(ctx, "task processed",
			"attempt", msg.Attempt,
			"duration_ms", time.Since(start).Milliseconds())
		w.ack(ctx, msg)
		return nil
	case issues.IsUnprocessable(err):
		slog.InfoContext(ctx, "task dropped", "reason", err.Error())
		w.ack(ctx, msg)
		return nil
	default:
		sc.RecordError(err)
		slog.ErrorContext(ctx, "task failed",
			"error", err,
			"attempt", msg.Attempt)
		w.handleFailedMessage(ctx, msg, err)
		return err
	}
}

func (w *Worker) handleSafe(ctx context.Context, msg queue.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic recovered in task", "panic", r)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.handler.Handle(ctx, msg)
}

func (w *Worker) ack(ctx context.Context, msg queue.Message) {
	if err := w.consumer.Ack(ctx, msg); err != nil {
		// The reclaimer picks it up again; every task is idempotent.
		slog.WarnContext(ctx, "failed to ack message", "error", err)
	}
}

func (w *Worker) handleFailedMessage(ctx context.Context, msg queue.Message, err error) {
	if msg.Attempt >= w.cfg.MaxAttempts {
		slog.ErrorContext(ctx, "max attempts reached, sending to DLQ", "attempts", msg.Attempt)
		if dlqErr := w.consumer.SendDLQ(ctx, msg, err.Error()); dlqErr != nil {
			slog.ErrorContext(ctx, "failed to send to DLQ", "error", dlqErr)
		}
		return
	}

	if requeueErr := w.consumer.Requeue(ctx, msg, err.Error()); requeueErr != nil {
		slog.ErrorContext(ctx, "failed to requeue message", "error", requeueErr)
	}
}
