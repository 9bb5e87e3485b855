package economy

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"golang.org/x/sync/errgroup"

	"vaultcrack/internal/chain"
)

// PaymentOptions describes which rails a player can use for the next entry.
type PaymentOptions struct {
	EntryFee         uint64      `json:"entryFee"`
	WalletBalance    uint64      `json:"walletBalance"`
	LedgerBalance    uint64      `json:"ledgerBalance"`
	CanPayFromWallet bool        `json:"canPayFromWallet"`
	CanPayFromLedger bool        `json:"canPayFromLedger"`
	LastRailUsed     *chain.Rail `json:"lastRailUsed,omitempty"`
	RecommendedRail  chain.Rail  `json:"recommendedRail"`
}

// GetPaymentOptions never fails. If either balance cannot be read the player
// is shown zero balances and no usable rail.
func (c *Client) GetPaymentOptions(ctx context.Context, player solana.PublicKey) PaymentOptions {
	opts := PaymentOptions{EntryFee: c.cfg.EntryFee, RecommendedRail: chain.RailWallet}

	var (
		walletBalance uint64
		ledger        *chain.PlayerLedger
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		walletBalance, err = c.balance(gctx, player)
		return err
	})
	g.Go(func() error {
		var err error
		ledger, err = c.GetPlayerLedger(gctx, player)
		return err
	})
	if err := g.Wait(); err != nil {
		c.log.Warn("economy: payment options unavailable", "player", player.String(), "error", err)
		return opts
	}

	opts.WalletBalance = walletBalance
	opts.CanPayFromWallet = walletBalance >= c.cfg.EntryFee+NetworkFeeLamports
	if ledger != nil {
		rail := ledger.LastRail
		opts.LastRailUsed = &rail
		opts.LedgerBalance = ledger.Balance
		opts.CanPayFromLedger = ledger.Balance >= c.cfg.EntryFee
	}
	if opts.CanPayFromLedger {
		opts.RecommendedRail = chain.RailLedger
	}
	return opts
}

type SignerStatus struct {
	Address             solana.PublicKey `json:"address"`
	Balance             uint64           `json:"balance"`
	MinOperatingBalance uint64           `json:"minOperatingBalance"`
	Low                 bool             `json:"low"`
	CheckedAt           time.Time        `json:"checkedAt"`
}

func (c *Client) GetSignerStatus(ctx context.Context) (SignerStatus, error) {
	addr := c.cfg.Backend.PublicKey()
	lamports, err := c.balance(ctx, addr)
	if err != nil {
		return SignerStatus{}, err
	}
	return SignerStatus{
		Address:             addr,
		Balance:             lamports,
		MinOperatingBalance: c.cfg.MinOperatingBalance,
		Low:                 lamports < c.cfg.MinOperatingBalance,
		CheckedAt:           c.cfg.Clock.Now(),
	}, nil
}

// VaultReconciliation compares the recorded pot with what the vault holds.
// Untracked is value sent to the vault outside the program; Shortfall means
// the vault holds less than the recorded pot plus its reserve.
type VaultReconciliation struct {
	Vault        solana.PublicKey `json:"vault"`
	RecordedPot  uint64           `json:"recordedPot"`
	VaultBalance uint64           `json:"vaultBalance"`
	Reserve      uint64           `json:"reserve"`
	Untracked    uint64           `json:"untracked"`
	Shortfall    uint64           `json:"shortfall"`
}

func (r VaultReconciliation) Balanced() bool {
	return r.Untracked == 0 && r.Shortfall == 0
}

func (c *Client) ReconcileVault(ctx context.Context) (VaultReconciliation, error) {
	var (
		state   chain.GameState
		balance uint64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		state, err = c.GetGameState(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		balance, err = c.balance(gctx, c.addrs.PotVault)
		return err
	})
	if err := g.Wait(); err != nil {
		return VaultReconciliation{}, err
	}

	r := VaultReconciliation{
		Vault:        c.addrs.PotVault,
		RecordedPot:  state.Pot,
		VaultBalance: balance,
		Reserve:      c.cfg.VaultReserve,
	}
	expected := state.Pot + c.cfg.VaultReserve
	if balance > expected {
		r.Untracked = balance - expected
	} else {
		r.Shortfall = expected - balance
	}
	return r, nil
}
