package relay

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"

	"vaultcrack/internal/metrics"
)

const channelPrefix = "relay:"

// RedisBroker fans events out across API instances through redis Pub/Sub.
type RedisBroker struct {
	log    *slog.Logger
	client *redis.Client
}

var _ Broker = (*RedisBroker)(nil)

func NewRedisBroker(log *slog.Logger, client *redis.Client) *RedisBroker {
	if log == nil {
		log = slog.Default()
	}
	return &RedisBroker{log: log, client: client}
}

func channel(topic Topic) string {
	return channelPrefix + string(topic)
}

func (b *RedisBroker) Publish(ctx context.Context, topic Topic, payload any) error {
	msg, err := encode(topic, payload)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, channel(topic), []byte(msg.Data)).Err(); err != nil {
		return fmt.Errorf("failed to publish %s: %w", topic, err)
	}
	metrics.RelayEventsTotal.WithLabelValues(string(topic)).Inc()
	return nil
}

func (b *RedisBroker) Subscribe(ctx context.Context, topics ...Topic) (*Subscription, error) {
	channels := make([]string, len(topics))
	for i, t := range topics {
		channels[i] = channel(t)
	}

	ps := b.client.Subscribe(ctx, channels...)
	// Wait for the subscription to be confirmed so no publish is missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	out := make(chan Message, subscriberBuffer)
	done := make(chan struct{})
	var once sync.Once
	closeFn := func() {
		once.Do(func() {
			close(done)
			_ = ps.Close()
		})
	}

	go func() {
		defer close(out)
		in := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				closeFn()
				return
			case <-done:
				return
			case m, ok := <-in:
				if !ok {
					return
				}
				topic := Topic(strings.TrimPrefix(m.Channel, channelPrefix))
				msg := Message{Type: topic, Data: []byte(m.Payload)}
				select {
				case out <- msg:
				default:
					metrics.RelayDroppedTotal.WithLabelValues(string(topic)).Inc()
					b.log.Warn("relay: subscriber behind, dropping message", "topic", topic)
				}
			}
		}
	}()

	return &Subscription{C: out, close: closeFn}, nil
}

// Close is a no-op; the redis client is owned by the caller.
func (b *RedisBroker) Close() error {
	return nil
}
