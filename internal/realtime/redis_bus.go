package realtime

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisBus publishes with PUBLISH and listens with PSUBSCRIBE.
type RedisBus struct {
	client *redis.Client
}

func NewRedisBus(client *redis.Client) *RedisBus {
	return &RedisBus{client: client}
}

func (b *RedisBus) Publish(ctx context.Context, topic string, payload []byte) error {
	return b.client.Publish(ctx, topic, payload).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context, pattern string) (<-chan Message, error) {
	ps := b.client.PSubscribe(ctx, pattern)
	// Wait for the subscription confirmation so no message published after
	// Subscribe returns is missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("psubscribe %s: %w", pattern, err)
	}

	out := make(chan Message, 64)
	go func() {
		defer close(out)
		defer ps.Close()
		in := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- Message{Topic: m.Channel, Payload: []byte(m.Payload)}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Close is a no-op; the Redis client is owned by the caller.
func (b *RedisBus) Close() error { return nil }
