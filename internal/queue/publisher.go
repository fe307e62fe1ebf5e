package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// MergeEvent announces that losers were folded into winner.
type MergeEvent struct {
	WorkspaceID   int64     `json:"workspaceId"`
	WinnerIssueID int64     `json:"winnerIssueId"`
	LoserIssueIDs []int64   `json:"loserIssueIds"`
	MergedAt      time.Time `json:"mergedAt"`
}

type Publisher interface {
	PublishMerge(ctx context.Context, event MergeEvent) error
}

type redisPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisPublisher publishes on a pub/sub channel; delivery is best effort.
func NewRedisPublisher(client *redis.Client, channel string) Publisher {
	return &redisPublisher{client: client, channel: channel}
}

func (p *redisPublisher) PublishMerge(ctx context.Context, event MergeEvent) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding merge event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, raw).Err(); err != nil {
		return fmt.Errorf("publishing merge event: %w", err)
	}
	return nil
}
