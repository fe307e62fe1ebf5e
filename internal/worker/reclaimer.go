package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"basegraph.app/triage/common/logger"
	"basegraph.app/triage/internal/queue"
	"github.com/redis/go-redis/v9"
)

type RedisReclaimerConfig struct {
	Stream   string
	Group    string
	Consumer string
	// MinIdle is how long a message sits unacknowledged before it is
	// considered abandoned.
	MinIdle   time.Duration
	Interval  time.Duration
	BatchSize int64
}

// RedisReclaimer takes over messages a crashed worker read but never
// settled, and runs them through the same settlement path.
type RedisReclaimer struct {
	client    *redis.Client
	cfg       RedisReclaimerConfig
	consumer  Consumer
	processor queue.MessageProcessor

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func NewRedisReclaimer(client *redis.Client, cfg RedisReclaimerConfig, consumer Consumer, processor queue.MessageProcessor) *RedisReclaimer {
	if cfg.MinIdle <= 0 {
		cfg.MinIdle = 5 * time.Minute
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	return &RedisReclaimer{
		client:    client,
		cfg:       cfg,
		consumer:  consumer,
		processor: processor,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Run sweeps once on start, then every Interval, until Stop is called or
// ctx is done.
func (r *RedisReclaimer) Run(ctx context.Context) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "triage.worker.reclaimer",
	})
	defer close(r.stoppedCh)

	slog.InfoContext(ctx, "reclaimer started",
		"stream", r.cfg.Stream,
		"group", r.cfg.Group,
		"min_idle", r.cfg.MinIdle)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := r.Sweep(ctx); err != nil {
			slog.ErrorContext(ctx, "reclaim sweep failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case <-ticker.C:
		}
	}
}

func (r *RedisReclaimer) Stop() {
	close(r.stopCh)
	<-r.stoppedCh
}

// Sweep claims one batch of abandoned messages and settles each. It
// returns how many were claimed.
func (r *RedisReclaimer) Sweep(ctx context.Context) (int, error) {
	pending, err := r.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: r.cfg.Stream,
		Group:  r.cfg.Group,
		Idle:   r.cfg.MinIdle,
		Start:  "-",
		End:    "+",
		Count:  r.cfg.BatchSize,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("listing pending messages: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(pending))
	deliveries := make(map[string]int, len(pending))
	for _, p := range pending {
		ids = append(ids, p.ID)
		deliveries[p.ID] = int(p.RetryCount)
	}

	// MinIdle is checked again by XCLAIM, so a message another reclaimer
	// took in the meantime is skipped.
	claimed, err := r.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   r.cfg.Stream,
		Group:    r.cfg.Group,
		Consumer: r.cfg.Consumer,
		MinIdle:  r.cfg.MinIdle,
		Messages: ids,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("claiming %d pending messages: %w", len(ids), err)
	}

	slog.InfoContext(ctx, "claimed abandoned messages", "pending", len(pending), "claimed", len(claimed))

	for _, raw := range claimed {
		r.settle(ctx, raw, deliveries[raw.ID])
	}
	return len(claimed), nil
}

func (r *RedisReclaimer) settle(ctx context.Context, raw redis.XMessage, deliveries int) {
	msgID := raw.ID
	ctx = logger.WithLogFields(ctx, logger.LogFields{MessageID: &msgID})

	msg, err := queue.ParseMessage(raw)
	if err != nil {
		slog.ErrorContext(ctx, "dropping unparseable abandoned message", "error", err)
		if err := r.consumer.Ack(ctx, queue.Message{ID: raw.ID, Raw: raw}); err != nil {
			slog.ErrorContext(ctx, "failed to ack unparseable message", "error", err)
		}
		return
	}

	// Deliveries that never settled count against the attempt budget.
	if deliveries > msg.Attempt {
		msg.Attempt = deliveries
	}

	taskType := string(msg.TaskType)
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		TaskType:    &taskType,
		WorkspaceID: &msg.WorkspaceID,
	})
	slog.InfoContext(ctx, "settling abandoned message", "attempt", msg.Attempt)

	if err := r.processor(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "failed to settle abandoned message", "error", err)
	}
}
