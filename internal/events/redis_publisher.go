package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/SscSPs/student_ledger/internal/core/domain"
	portssvc "github.com/SscSPs/student_ledger/internal/core/ports/services"
	"github.com/redis/go-redis/v9"
)

// redisPublishClient is the part of *redis.Client the publisher needs.
type redisPublishClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher PUBLISHes each event as JSON on one channel.
type RedisPublisher struct {
	client  redisPublishClient
	channel string
}

var _ portssvc.LedgerEventPublisher = (*RedisPublisher)(nil)

// NewRedisPublisher publishes on channel through client.
func NewRedisPublisher(client redisPublishClient, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

// NewRedisClient connects to addr and verifies the connection.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", addr, err)
	}
	return client, nil
}

func (p *RedisPublisher) Publish(ctx context.Context, event domain.LedgerEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", event.Type, err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish %s event for %s: %w", event.Type, event.Key, err)
	}
	return nil
}
