package queue

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"basegraph.app/triage/common/logger"
	"github.com/redis/go-redis/v9"
)

// promoteScript moves due members of the delayed set onto the stream
// atomically, so two promoters never publish the same task twice.
var promoteScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
for _, member in ipairs(due) do
  local fields = cjson.decode(member)
  local args = {}
  for k, v in pairs(fields) do
    table.insert(args, k)
    table.insert(args, v)
  end
  redis.call('XADD', KEYS[2], '*', unpack(args))
  redis.call('ZREM', KEYS[1], member)
end
return #due
`)

type PromoterConfig struct {
	DelayedSet string
	Stream     string
	Interval   time.Duration
	BatchSize  int64
}

// Promoter publishes delayed tasks once they are due.
type Promoter struct {
	client *redis.Client
	cfg    PromoterConfig

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func NewPromoter(client *redis.Client, cfg PromoterConfig) *Promoter {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Promoter{
		client:    client,
		cfg:       cfg,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Run blocks until Stop is called or ctx is done.
func (p *Promoter) Run(ctx context.Context) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "triage.queue.promoter",
	})

	defer close(p.stoppedCh)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			n, err := p.PromoteDue(ctx, time.Now())
			if err != nil {
				slog.ErrorContext(ctx, "promoting delayed tasks failed", "error", err)
				continue
			}
			if n > 0 {
				slog.DebugContext(ctx, "promoted delayed tasks", "count", n)
			}
		}
	}
}

func (p *Promoter) Stop() {
	close(p.stopCh)
	<-p.stoppedCh
}

func (p *Promoter) PromoteDue(ctx context.Context, now time.Time) (int64, error) {
	n, err := promoteScript.Run(ctx, p.client,
		[]string{p.cfg.DelayedSet, p.cfg.Stream},
		strconv.FormatInt(now.UnixMilli(), 10),
		p.cfg.BatchSize,
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("promote delayed tasks: %w", err)
	}
	return n, nil
}
