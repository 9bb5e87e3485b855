// Package vault runs vault-crack attempts: capture the pot, look up the crack
// chance for the monster the player fought, roll with the fairness oracle and
// claim the pot on a winning roll.
package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"vaultcrack/internal/metrics"
	"vaultcrack/internal/oracle"
	"vaultcrack/internal/payment"
	"vaultcrack/internal/tiers"
)

// RollMin and RollMax bound every crack roll: [0, 100).
const (
	RollMin = 0
	RollMax = 100
)

var (
	ErrOracleUnavailable  = errors.New("fairness oracle unavailable")
	ErrInvalidMonsterType = tiers.ErrInvalidMonsterType
	ErrInvalidSession     = errors.New("invalid combat session id")
	ErrSessionUsed        = errors.New("combat session already used for a vault attempt")
	ErrVaultEmpty         = errors.New("vault is empty")
)

type Economy interface {
	GetPot(ctx context.Context) (uint64, error)
	ClaimPrize(ctx context.Context, winner solana.PublicKey, proof []byte) (solana.Signature, error)
}

type Oracle interface {
	Roll(ctx context.Context, min, max int) (oracle.Roll, error)
}

// Sessions enforces one roll per combat session. Release is called when an
// attempt ends before the oracle produced a roll.
type Sessions interface {
	Reserve(ctx context.Context, wallet solana.PublicKey, sessionID string) (bool, error)
	Release(ctx context.Context, wallet solana.PublicKey, sessionID string) error
}

type Recorder interface {
	RecordAttempt(ctx context.Context, result *Result) error
}

type PrizeRouter interface {
	PrizeRoute(ctx context.Context, player solana.PublicKey) (payment.PrizeRoute, error)
}

type Alerter interface {
	Alert(ctx context.Context, title, text string) error
}

type Config struct {
	Logger  *slog.Logger
	Clock   clockwork.Clock
	Economy Economy
	Oracle  Oracle
	Tiers   tiers.Table

	// SettleTimeout bounds the prize claim. The claim is detached from the
	// caller's context so a disconnecting client cannot abandon a win.
	SettleTimeout time.Duration

	// Optional collaborators.
	Sessions Sessions
	Recorder Recorder
	Router   PrizeRouter
	Alerter  Alerter
}

func (cfg *Config) Validate() error {
	if cfg.Economy == nil {
		return errors.New("economy client is required")
	}
	if cfg.Oracle == nil {
		return errors.New("oracle client is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Tiers == nil {
		cfg.Tiers = tiers.Default
	}
	if cfg.SettleTimeout <= 0 {
		cfg.SettleTimeout = 2 * time.Minute
	}
	if err := cfg.Tiers.Validate(); err != nil {
		return fmt.Errorf("invalid tier table: %w", err)
	}
	return nil
}

type Request struct {
	Wallet      solana.PublicKey
	SessionID   string
	MonsterType string
}

// Result is returned for every attempt that reached the oracle. Proof is the
// oracle's proof exactly as received.
type Result struct {
	Wallet      solana.PublicKey `json:"wallet"`
	SessionID   string           `json:"sessionId"`
	MonsterType string           `json:"monsterType"`
	Success     bool             `json:"success"`
	Roll        int              `json:"roll"`
	CrackChance int              `json:"crackChance"`

	PrizeAmount      *uint64            `json:"prizeAmount,omitempty"`
	PrizeRoute       payment.PrizeRoute `json:"prizeRoute,omitempty"`
	ClaimSignature   *solana.Signature  `json:"claimSignature,omitempty"`
	// PendingSignature is a claim that was sent but not confirmed.
	PendingSignature *solana.Signature  `json:"pendingSignature,omitempty"`
	SettlementFailed bool               `json:"settlementFailed,omitempty"`
	SettlementError  string             `json:"settlementError,omitempty"`

	Proof       json.RawMessage `json:"proof"`
	Message     string          `json:"message"`
	AttemptedAt time.Time       `json:"attemptedAt"`
}

type Cracker struct {
	log *slog.Logger
	cfg Config
}

func NewCracker(cfg Config) (*Cracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Cracker{log: cfg.Logger, cfg: cfg}, nil
}

// Attempt runs one vault crack. The crack chance comes only from the declared
// monster type; the pot is read once and that value is the prize for this
// attempt. The oracle is called once and its answer is final.
func (c *Cracker) Attempt(ctx context.Context, req Request) (*Result, error) {
	if req.Wallet.IsZero() {
		return nil, errors.New("wallet is required")
	}
	if _, err := uuid.Parse(req.SessionID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	tier, err := c.cfg.Tiers.ByMonster(req.MonsterType)
	if err != nil {
		metrics.VaultAttemptsTotal.WithLabelValues("unknown", "invalid").Inc()
		return nil, err
	}

	if c.cfg.Sessions != nil {
		ok, err := c.cfg.Sessions.Reserve(ctx, req.Wallet, req.SessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to reserve session: %w", err)
		}
		if !ok {
			return nil, ErrSessionUsed
		}
	}

	// 1. Capture the prize
	pot, err := c.cfg.Economy.GetPot(ctx)
	if err != nil {
		c.release(ctx, req)
		return nil, fmt.Errorf("failed to read pot: %w", err)
	}
	if pot == 0 {
		c.release(ctx, req)
		return nil, ErrVaultEmpty
	}

	// 2. Roll
	roll, err := c.cfg.Oracle.Roll(ctx, RollMin, RollMax)
	if err != nil {
		c.release(ctx, req)
		metrics.VaultAttemptsTotal.WithLabelValues(tier.Monster, "oracle_unavailable").Inc()
		c.log.Warn("vault: oracle roll failed", "wallet", req.Wallet.String(), "session", req.SessionID, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrOracleUnavailable, err)
	}

	result := &Result{
		Wallet:      req.Wallet,
		SessionID:   req.SessionID,
		MonsterType: tier.Monster,
		Roll:        roll.Value,
		CrackChance: tier.CrackChance,
		Success:     roll.Value < tier.CrackChance,
		Proof:       roll.Proof.Raw,
		AttemptedAt: c.cfg.Clock.Now().UTC(),
	}

	if !result.Success {
		result.Message = fmt.Sprintf("Rolled %d, needed under %d. The vault holds.", roll.Value, tier.CrackChance)
		metrics.VaultAttemptsTotal.WithLabelValues(tier.Monster, "loss").Inc()
		c.log.Info("vault: attempt failed", "wallet", req.Wallet.String(), "monster", tier.Monster,
			"roll", roll.Value, "crackChance", tier.CrackChance)
		c.record(ctx, result)
		return result, nil
	}

	// 3. Settle
	prize := pot
	result.PrizeAmount = &prize
	settleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.SettleTimeout)
	defer cancel()
	result.PrizeRoute = c.prizeRoute(settleCtx, req.Wallet)

	sig, err := c.cfg.Economy.ClaimPrize(settleCtx, req.Wallet, roll.Proof.Raw)
	if err != nil {
		if !sig.IsZero() {
			result.PendingSignature = &sig
		}
		c.settlementFailed(ctx, result, err)
		c.record(ctx, result)
		return result, nil
	}

	result.ClaimSignature = &sig
	result.Message = fmt.Sprintf("Vault cracked! Rolled %d under %d and won %.4f SOL.", roll.Value, tier.CrackChance, tiers.ToSOL(prize))
	metrics.VaultAttemptsTotal.WithLabelValues(tier.Monster, "win").Inc()
	c.log.Info("vault: cracked", "wallet", req.Wallet.String(), "monster", tier.Monster,
		"roll", roll.Value, "crackChance", tier.CrackChance, "prize", prize, "signature", sig.String())
	c.record(ctx, result)
	return result, nil
}

// settlementFailed keeps the win and flags the attempt for manual payout.
func (c *Cracker) settlementFailed(ctx context.Context, result *Result, claimErr error) {
	result.SettlementFailed = true
	result.SettlementError = claimErr.Error()
	result.Message = fmt.Sprintf("Vault cracked with a roll of %d, but the prize transfer did not settle. "+
		"Your win is recorded and will be paid out after manual reconciliation (session %s).",
		result.Roll, result.SessionID)

	metrics.VaultAttemptsTotal.WithLabelValues(result.MonsterType, "settlement_failed").Inc()
	metrics.SettlementMismatchTotal.Inc()
	pending := ""
	if result.PendingSignature != nil {
		pending = result.PendingSignature.String()
	}
	c.log.Error("vault: settlement mismatch, winning roll not paid",
		"wallet", result.Wallet.String(), "session", result.SessionID, "roll", result.Roll,
		"prize", *result.PrizeAmount, "pendingSignature", pending, "error", claimErr)

	if c.cfg.Alerter == nil {
		return
	}
	text := fmt.Sprintf("Wallet %s won %d lamports (session %s, roll %d < %d) but claim_prize failed: %v\nProof: %s",
		result.Wallet, *result.PrizeAmount, result.SessionID, result.Roll, result.CrackChance, claimErr, string(result.Proof))
	if pending != "" {
		text += "\nUnconfirmed claim: " + pending
	}
	if err := c.cfg.Alerter.Alert(context.WithoutCancel(ctx), "Vault settlement mismatch", text); err != nil {
		c.log.Error("vault: failed to send settlement alert", "error", err)
	}
}

func (c *Cracker) prizeRoute(ctx context.Context, wallet solana.PublicKey) payment.PrizeRoute {
	if c.cfg.Router == nil {
		return ""
	}
	route, err := c.cfg.Router.PrizeRoute(ctx, wallet)
	if err != nil {
		c.log.Warn("vault: prize route unavailable", "wallet", wallet.String(), "error", err)
		return ""
	}
	return route
}

func (c *Cracker) release(ctx context.Context, req Request) {
	if c.cfg.Sessions == nil {
		return
	}
	if err := c.cfg.Sessions.Release(context.WithoutCancel(ctx), req.Wallet, req.SessionID); err != nil {
		c.log.Error("vault: failed to release session", "session", req.SessionID, "error", err)
	}
}

func (c *Cracker) record(ctx context.Context, result *Result) {
	if c.cfg.Recorder == nil {
		return
	}
	if err := c.cfg.Recorder.RecordAttempt(context.WithoutCancel(ctx), result); err != nil {
		c.log.Error("vault: failed to record attempt", "session", result.SessionID, "error", err)
	}
}
