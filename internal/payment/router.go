// Package payment routes combat entries onto one of the two payment rails.
//
// The wallet rail is signed by the player's wallet, which also pays the
// network fee. The ledger rail is signed by the backend and debits the
// player's pre-funded ledger balance.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gagliardetto/solana-go"

	"vaultcrack/internal/chain"
	"vaultcrack/internal/economy"
)

var (
	ErrRailUnavailable = errors.New("payment rail unavailable")
	ErrSignerMismatch  = errors.New("wallet signer does not match player")
)

// Economy is the part of the economy client the router drives.
type Economy interface {
	GetPaymentOptions(ctx context.Context, player solana.PublicKey) economy.PaymentOptions
	GetPlayerLedger(ctx context.Context, player solana.PublicKey) (*chain.PlayerLedger, error)
	EnterCombat(ctx context.Context, wallet economy.WalletSigner) (solana.Signature, error)
	EnterCombatGasless(ctx context.Context, player solana.PublicKey) (solana.Signature, error)
}

var _ Economy = (*economy.Client)(nil)

type EntryRequest struct {
	Player solana.PublicKey
	Rail   chain.Rail
	// Wallet is required for the wallet rail and ignored otherwise.
	Wallet economy.WalletSigner
}

type Receipt struct {
	Player    solana.PublicKey `json:"player"`
	Rail      chain.Rail       `json:"rail"`
	EntryFee  uint64           `json:"entryFee"`
	Signature solana.Signature `json:"signature"`
}

// PrizeRoute is where a prize lands when the player wins.
type PrizeRoute string

const (
	PrizeToWallet PrizeRoute = "wallet"
	PrizeToLedger PrizeRoute = "ledger"
)

// RouteFor mirrors the program's rule: players who last paid from their
// ledger are credited there, everyone else is paid directly.
func RouteFor(ledger *chain.PlayerLedger) PrizeRoute {
	if ledger != nil && ledger.LastRail == chain.RailLedger {
		return PrizeToLedger
	}
	return PrizeToWallet
}

type Router struct {
	log     *slog.Logger
	economy Economy
}

func NewRouter(log *slog.Logger, econ Economy) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{log: log, economy: econ}
}

// Enter submits one combat entry on the rail the caller chose. The rail must
// be usable according to the player's current payment options; the router
// never silently switches rails.
func (r *Router) Enter(ctx context.Context, req EntryRequest) (Receipt, error) {
	if req.Player.IsZero() {
		return Receipt{}, errors.New("player is required")
	}
	if req.Rail == chain.RailWallet {
		if req.Wallet == nil {
			return Receipt{}, fmt.Errorf("%w: wallet rail requires a wallet signature", ErrRailUnavailable)
		}
		if !req.Wallet.PublicKey().Equals(req.Player) {
			return Receipt{}, ErrSignerMismatch
		}
	}

	opts := r.economy.GetPaymentOptions(ctx, req.Player)
	if err := checkRail(req.Rail, opts); err != nil {
		return Receipt{}, err
	}

	var (
		sig solana.Signature
		err error
	)
	switch req.Rail {
	case chain.RailWallet:
		sig, err = r.economy.EnterCombat(ctx, req.Wallet)
	case chain.RailLedger:
		sig, err = r.economy.EnterCombatGasless(ctx, req.Player)
	}
	if err != nil {
		r.log.Error("payment: entry failed", "player", req.Player.String(), "rail", req.Rail.String(), "error", err)
		return Receipt{}, fmt.Errorf("%s entry: %w", req.Rail, err)
	}

	r.log.Info("payment: entry confirmed", "player", req.Player.String(), "rail", req.Rail.String(), "signature", sig.String())
	return Receipt{Player: req.Player, Rail: req.Rail, EntryFee: opts.EntryFee, Signature: sig}, nil
}

func checkRail(rail chain.Rail, opts economy.PaymentOptions) error {
	switch rail {
	case chain.RailWallet:
		if !opts.CanPayFromWallet {
			return fmt.Errorf("%w: wallet balance %d does not cover entry fee %d plus network fee",
				ErrRailUnavailable, opts.WalletBalance, opts.EntryFee)
		}
	case chain.RailLedger:
		if !opts.CanPayFromLedger {
			return fmt.Errorf("%w: ledger balance %d does not cover entry fee %d",
				ErrRailUnavailable, opts.LedgerBalance, opts.EntryFee)
		}
	default:
		return fmt.Errorf("%w: unknown rail %s", ErrRailUnavailable, rail)
	}
	return nil
}

// Recommend returns the rail the player should be offered first along with
// the options it was derived from.
func (r *Router) Recommend(ctx context.Context, player solana.PublicKey) (chain.Rail, economy.PaymentOptions) {
	opts := r.economy.GetPaymentOptions(ctx, player)
	return opts.RecommendedRail, opts
}

// PrizeRoute reports where a prize for player would be paid. The program
// enforces the routing; this is informational.
func (r *Router) PrizeRoute(ctx context.Context, player solana.PublicKey) (PrizeRoute, error) {
	ledger, err := r.economy.GetPlayerLedger(ctx, player)
	if err != nil {
		return "", err
	}
	return RouteFor(ledger), nil
}
