// Package relay fans chain activity and viewer interactions out to real-time
// clients. Every event kind has its own topic; payloads are serialized once
// at publish time so subscribers only ever see immutable bytes.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

type Topic string

const (
	TopicPotUpdate Topic = "pot-update"
	TopicViewer    Topic = "viewer"
)

var Topics = []Topic{TopicPotUpdate, TopicViewer}

var (
	ErrClosed            = errors.New("relay closed")
	ErrInvalidViewerKind = errors.New("invalid viewer event kind")
)

// Message is what subscribers and websocket clients receive.
type Message struct {
	Type Topic           `json:"type"`
	Data json.RawMessage `json:"data"`
}

type PotUpdate struct {
	Pot       uint64  `json:"pot"`
	PotSOL    float64 `json:"potSol"`
	Timestamp int64   `json:"timestamp"`
	Reason    string  `json:"reason,omitempty"`
	Signature string  `json:"signature,omitempty"`
	Slot      uint64  `json:"slot,omitempty"`
}

type ViewerKind string

const (
	ViewerCountdown  ViewerKind = "countdown"
	ViewerItemDrop   ViewerKind = "item-drop"
	ViewerBoost      ViewerKind = "boost"
	ViewerCompletion ViewerKind = "completion"
)

func (k ViewerKind) Valid() bool {
	switch k {
	case ViewerCountdown, ViewerItemDrop, ViewerBoost, ViewerCompletion:
		return true
	}
	return false
}

// ViewerEvent is passed through untouched apart from validation of the kind
// and target player.
type ViewerEvent struct {
	Kind      ViewerKind      `json:"kind"`
	Player    string          `json:"player"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

func (e ViewerEvent) Validate() error {
	if !e.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidViewerKind, e.Kind)
	}
	if e.Player == "" {
		return errors.New("viewer event target player is required")
	}
	return nil
}

// Broker is a topic-based publish/subscribe primitive.
type Broker interface {
	Publish(ctx context.Context, topic Topic, payload any) error
	Subscribe(ctx context.Context, topics ...Topic) (*Subscription, error)
	Close() error
}

// Subscription delivers messages on C until Close is called or the
// subscribing context ends; C is closed afterwards.
type Subscription struct {
	C     <-chan Message
	close func()
}

func (s *Subscription) Close() {
	s.close()
}

func encode(topic Topic, payload any) (Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("failed to encode %s event: %w", topic, err)
	}
	return Message{Type: topic, Data: data}, nil
}
