package events

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

// NewRedisPublisher returns a handler that forwards events as JSON to a pub/sub channel,
// for dashboards running outside this process.
func NewRedisPublisher(client *redis.Client, channel string) EventHandler {
	return func(ctx context.Context, event Event) error {
		raw, err := json.Marshal(event)
		if err != nil {
			return err
		}
		return client.Publish(ctx, channel, raw).Err()
	}
}
