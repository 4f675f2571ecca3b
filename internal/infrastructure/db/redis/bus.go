package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/taskapp/taskstream/internal/api/metrics"
	"github.com/taskapp/taskstream/internal/core/domain"
)

// Bus carries notifications between server instances over Redis pub/sub.
// Every instance subscribes to the same channel; whichever instances hold a
// live push connection for the recipient deliver it.
type Bus struct {
	client  *redis.Client
	channel string
	log     zerolog.Logger
}

// NewBus creates a Bus publishing and subscribing on the given channel.
func NewBus(client *redis.Client, channel string, log zerolog.Logger) *Bus {
	return &Bus{client: client, channel: channel, log: log}
}

// Publish sends the notification to the channel as JSON.
func (b *Bus) Publish(ctx context.Context, n *domain.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	metrics.NotificationsPublishedTotal.WithLabelValues(n.Type).Inc()
	return nil
}

// Healthy reports whether the bus connection answers a ping.
func (b *Bus) Healthy(ctx context.Context) bool {
	return b.client.Ping(ctx).Err() == nil
}

// Subscribe consumes the channel until ctx is cancelled, invoking handler
// for every decoded notification. Malformed payloads are logged and
// skipped; a bad message never stops the consumer.
func (b *Bus) Subscribe(ctx context.Context, handler func(*domain.Notification)) {
	sub := b.client.Subscribe(ctx, b.channel)

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var n domain.Notification
				if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
					b.log.Warn().Err(err).Str("channel", msg.Channel).Msg("dropping malformed bus message")
					continue
				}
				handler(&n)
			}
		}
	}()
}
