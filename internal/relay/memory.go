package relay

import (
	"context"
	"log/slog"
	"sync"

	"vaultcrack/internal/metrics"
)

const subscriberBuffer = 64

type memorySub struct {
	ch     chan Message
	topics map[Topic]bool
}

// MemoryBroker is an in-process broker for single-instance deployments.
// Slow subscribers lose messages rather than block publishers.
type MemoryBroker struct {
	log *slog.Logger

	mu     sync.RWMutex
	subs   map[*memorySub]struct{}
	closed bool
}

var _ Broker = (*MemoryBroker)(nil)

func NewMemoryBroker(log *slog.Logger) *MemoryBroker {
	if log == nil {
		log = slog.Default()
	}
	return &MemoryBroker{log: log, subs: make(map[*memorySub]struct{})}
}

func (b *MemoryBroker) Publish(_ context.Context, topic Topic, payload any) error {
	msg, err := encode(topic, payload)
	if err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	metrics.RelayEventsTotal.WithLabelValues(string(topic)).Inc()
	for sub := range b.subs {
		if !sub.topics[topic] {
			continue
		}
		select {
		case sub.ch <- msg:
		default:
			metrics.RelayDroppedTotal.WithLabelValues(string(topic)).Inc()
			b.log.Warn("relay: subscriber behind, dropping message", "topic", topic)
		}
	}
	return nil
}

func (b *MemoryBroker) Subscribe(ctx context.Context, topics ...Topic) (*Subscription, error) {
	sub := &memorySub{ch: make(chan Message, subscriberBuffer), topics: make(map[Topic]bool, len(topics))}
	for _, t := range topics {
		sub.topics[t] = true
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	done := make(chan struct{})
	closeFn := func() {
		once.Do(func() {
			close(done)
			b.remove(sub)
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			closeFn()
		case <-done:
		}
	}()
	return &Subscription{C: sub.ch, close: closeFn}, nil
}

func (b *MemoryBroker) remove(sub *memorySub) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub.ch)
	}
}

func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for sub := range b.subs {
		delete(b.subs, sub)
		close(sub.ch)
	}
	return nil
}
