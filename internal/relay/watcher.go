package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"
	"github.com/jonboulle/clockwork"

	"vaultcrack/internal/chain"
	"vaultcrack/internal/tiers"
)

const (
	ReasonEntry = "entry"
	ReasonClaim = "claim"
)

type PotReader interface {
	GetPot(ctx context.Context) (uint64, error)
}

// PotNotifier reads the pot and publishes it as a pot-update.
type PotNotifier struct {
	Pot    PotReader
	Broker Broker
	Clock  clockwork.Clock
}

func (n *PotNotifier) Notify(ctx context.Context, reason string, sig solana.Signature, slot uint64) error {
	pot, err := n.Pot.GetPot(ctx)
	if err != nil {
		return fmt.Errorf("failed to read pot: %w", err)
	}
	clock := n.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	update := PotUpdate{
		Pot:       pot,
		PotSOL:    tiers.ToSOL(pot),
		Timestamp: clock.Now().Unix(),
		Reason:    reason,
		Slot:      slot,
	}
	if !sig.IsZero() {
		update.Signature = sig.String()
	}
	return n.Broker.Publish(ctx, TopicPotUpdate, update)
}

// LogStream is a live program log subscription.
type LogStream interface {
	Recv(ctx context.Context) (*ws.LogResult, error)
	Unsubscribe()
}

type Dialer func(ctx context.Context) (LogStream, error)

type wsStream struct {
	client *ws.Client
	sub    *ws.LogSubscription
}

func (s *wsStream) Recv(ctx context.Context) (*ws.LogResult, error) {
	return s.sub.Recv(ctx)
}

func (s *wsStream) Unsubscribe() {
	s.sub.Unsubscribe()
	s.client.Close()
}

// WebsocketDialer subscribes to every transaction that mentions program.
func WebsocketDialer(endpoint string, program solana.PublicKey, commitment rpc.CommitmentType) Dialer {
	return func(ctx context.Context) (LogStream, error) {
		client, err := ws.Connect(ctx, endpoint)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to %s: %w", endpoint, err)
		}
		sub, err := client.LogsSubscribeMentions(program, commitment)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to subscribe to program logs: %w", err)
		}
		return &wsStream{client: client, sub: sub}, nil
	}
}

type WatcherConfig struct {
	Logger         *slog.Logger
	Clock          clockwork.Clock
	Dial           Dialer
	Notifier       *PotNotifier
	ReconnectDelay time.Duration
}

func (cfg *WatcherConfig) Validate() error {
	if cfg.Dial == nil {
		return errors.New("dialer is required")
	}
	if cfg.Notifier == nil || cfg.Notifier.Pot == nil || cfg.Notifier.Broker == nil {
		return errors.New("pot notifier is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	return nil
}

// ChainWatcher turns program logs into pot-update events.
type ChainWatcher struct {
	log *slog.Logger
	cfg WatcherConfig
}

func NewChainWatcher(cfg WatcherConfig) (*ChainWatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &ChainWatcher{log: cfg.Logger, cfg: cfg}, nil
}

func (w *ChainWatcher) Start(ctx context.Context) {
	go w.Run(ctx)
}

// Run reconnects after every stream failure until ctx is done.
func (w *ChainWatcher) Run(ctx context.Context) {
	w.log.Info("relay: starting chain watcher")
	for {
		err := w.watch(ctx)
		if ctx.Err() != nil {
			return
		}
		w.log.Warn("relay: log stream ended, reconnecting", "error", err, "delay", w.cfg.ReconnectDelay)
		select {
		case <-ctx.Done():
			return
		case <-w.cfg.Clock.After(w.cfg.ReconnectDelay):
		}
	}
}

func (w *ChainWatcher) watch(ctx context.Context) error {
	stream, err := w.cfg.Dial(ctx)
	if err != nil {
		return err
	}
	defer stream.Unsubscribe()

	for {
		res, err := stream.Recv(ctx)
		if err != nil {
			return err
		}
		if res == nil {
			continue
		}
		w.handle(ctx, res)
	}
}

func (w *ChainWatcher) handle(ctx context.Context, res *ws.LogResult) {
	if res.Value.Err != nil {
		return
	}
	reason := potReason(chain.InstructionsFromLogs(res.Value.Logs))
	if reason == "" {
		return
	}
	if err := w.cfg.Notifier.Notify(ctx, reason, res.Value.Signature, res.Context.Slot); err != nil {
		w.log.Error("relay: failed to publish pot update", "signature", res.Value.Signature.String(), "error", err)
	}
}

// potReason reports why a transaction moved the pot, or "" if it did not.
func potReason(instructions []string) string {
	for _, ix := range instructions {
		switch ix {
		case chain.IxClaimPrize:
			return ReasonClaim
		case chain.IxEnterCombat, chain.IxEnterCombatGasless:
			return ReasonEntry
		}
	}
	return ""
}
