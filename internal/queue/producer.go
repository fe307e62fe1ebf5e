package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const dedupePrefix = "dedupe:"

// EnqueueOptions control idempotency and scheduling of a task.
type EnqueueOptions struct {
	// DedupeKey collapses enqueues while a task with the same key is pending.
	DedupeKey string
	// Throttle keeps the dedupe key alive for this long even after the task
	// started, so repeated triggers within the window collapse into one run.
	Throttle time.Duration
	// Delay schedules the task instead of publishing it immediately.
	Delay time.Duration
}

type Producer interface {
	// Enqueue reports false when the task was collapsed by its dedupe key.
	Enqueue(ctx context.Context, task Task, opts EnqueueOptions) (bool, error)
	Close() error
}

type ProducerConfig struct {
	Stream     string
	DelayedSet string
	// PendingTTL bounds an unthrottled dedupe key in case its task is lost.
	PendingTTL time.Duration
}

type redisProducer struct {
	client *redis.Client
	cfg    ProducerConfig
	logger *slog.Logger
}

func NewRedisProducer(client *redis.Client, cfg ProducerConfig, logger *slog.Logger) Producer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = time.Hour
	}
	return &redisProducer{
		client: client,
		cfg:    cfg,
		logger: logger,
	}
}

func (p *redisProducer) Enqueue(ctx context.Context, task Task, opts EnqueueOptions) (bool, error) {
	if opts.DedupeKey != "" {
		ttl := p.cfg.PendingTTL
		if opts.Throttle > 0 {
			ttl = opts.Throttle
		}
		ok, err := p.client.SetNX(ctx, dedupePrefix+opts.DedupeKey, "1", ttl).Result()
		if err != nil {
			return false, fmt.Errorf("acquiring dedupe key: %w", err)
		}
		if !ok {
			p.logger.DebugContext(ctx, "task collapsed by dedupe key",
				"task_type", task.TaskType,
				"dedupe_key", opts.DedupeKey)
			return false, nil
		}
	}

	values := taskValues(task, opts)

	var err error
	if opts.Delay > 0 {
		err = p.schedule(ctx, values, time.Now().Add(opts.Delay))
	} else {
		err = p.client.XAdd(ctx, &redis.XAddArgs{
			Stream: p.cfg.Stream,
			Values: values,
		}).Err()
	}
	if err != nil {
		if opts.DedupeKey != "" {
			_ = p.client.Del(ctx, dedupePrefix+opts.DedupeKey).Err()
		}
		return false, fmt.Errorf("enqueue %s: %w", task.TaskType, err)
	}

	p.logger.InfoContext(ctx, "enqueued task",
		"task_type", task.TaskType,
		"workspace_id", task.WorkspaceID,
		"issue_id", task.IssueID,
		"delay", opts.Delay)
	return true, nil
}

// schedule parks the task in the delayed set; the Promoter moves it onto
// the stream once due. Values are stored as strings so ids survive the
// Lua JSON round trip.
func (p *redisProducer) schedule(ctx context.Context, values map[string]any, at time.Time) error {
	member := make(map[string]string, len(values))
	for k, v := range values {
		member[k] = fmt.Sprint(v)
	}
	raw, err := json.Marshal(member)
	if err != nil {
		return fmt.Errorf("encoding delayed task: %w", err)
	}
	return p.client.ZAdd(ctx, p.cfg.DelayedSet, redis.Z{
		Score:  float64(at.UnixMilli()),
		Member: string(raw),
	}).Err()
}

func (p *redisProducer) Close() error {
	return p.client.Close()
}

func taskValues(task Task, opts EnqueueOptions) map[string]any {
	attempt := task.Attempt
	if attempt <= 0 {
		attempt = 1
	}

	values := map[string]any{
		"task_type":    string(task.TaskType),
		"workspace_id": task.WorkspaceID,
		"attempt":      attempt,
	}
	if task.IssueID != nil {
		values["issue_id"] = *task.IssueID
	}
	if task.EvaluationResultID != nil {
		values["evaluation_result_id"] = *task.EvaluationResultID
	}
	if task.Transition != "" {
		values["transition"] = string(task.Transition)
	}
	if task.TraceID != nil && *task.TraceID != "" {
		values["trace_id"] = *task.TraceID
	}
	if opts.DedupeKey != "" {
		values["dedupe_key"] = opts.DedupeKey
		values["throttled"] = strconv.FormatBool(opts.Throttle > 0)
	}
	return values
}
