package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "notifications:"

// RedisNotifier publishes each batch on the pub/sub channel of every affected
// user, once per user per operation. Push/websocket/email delivery is built
// on top of these channels by the transport layer.
type RedisNotifier struct {
	client *redis.Client
}

func NewRedisNotifier(redisURL string) (*RedisNotifier, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("notifications: parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("notifications: connect to redis: %w", err)
	}

	return &RedisNotifier{client: client}, nil
}

func (n *RedisNotifier) Deliver(ctx context.Context, batch Batch) error {
	payload, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("notifications: marshal batch: %w", err)
	}

	seen := make(map[string]bool, len(batch.Events))
	for _, event := range batch.Events {
		channel := channelPrefix + event.TargetUser.String()
		if seen[channel] {
			continue
		}
		seen[channel] = true

		if err := n.client.Publish(ctx, channel, payload).Err(); err != nil {
			return fmt.Errorf("notifications: publish to %s: %w", channel, err)
		}
	}
	return nil
}

func (n *RedisNotifier) Close() error {
	return n.client.Close()
}
