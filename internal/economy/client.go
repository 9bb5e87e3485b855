// Package economy is the client for the on-chain ledger program: account
// reads, the wallet-signed and gasless entry rails, ledger deposits and
// withdrawals, and prize claims.
package economy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/jonboulle/clockwork"

	"vaultcrack/internal/chain"
	"vaultcrack/internal/codec"
	"vaultcrack/internal/metrics"
	"vaultcrack/internal/retry"
)

// NetworkFeeLamports is the base fee for a single-signature transaction.
const NetworkFeeLamports = 5_000

// RPC is the subset of the Solana JSON-RPC client the economy uses.
type RPC interface {
	GetAccountInfoWithOpts(ctx context.Context, account solana.PublicKey, opts *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error)
	GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error)
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
}

var _ RPC = (*rpc.Client)(nil)

type Config struct {
	Logger    *slog.Logger
	Clock     clockwork.Clock
	RPC       RPC
	ProgramID solana.PublicKey

	// Backend signs gasless entries and prize claims. It is the only
	// credential the service holds.
	Backend *Keypair

	EntryFee            uint64
	MinOperatingBalance uint64
	// VaultReserve is the rent-exempt minimum kept in the pot vault.
	VaultReserve uint64

	Commitment     rpc.CommitmentType
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
	Retry          retry.Config
}

func (cfg *Config) Validate() error {
	if cfg.RPC == nil {
		return errors.New("rpc client is required")
	}
	if cfg.ProgramID.IsZero() {
		return errors.New("program id is required")
	}
	if cfg.Backend == nil {
		return errors.New("backend signer is required")
	}
	if cfg.EntryFee == 0 {
		return errors.New("entry fee must be greater than 0")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Commitment == "" {
		cfg.Commitment = rpc.CommitmentConfirmed
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = 60 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultConfig()
	}
	if cfg.Retry.Retryable == nil {
		cfg.Retry.Retryable = isTransport
	}
	return nil
}

type Client struct {
	log   *slog.Logger
	cfg   Config
	addrs chain.Addresses
}

func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	addrs, err := chain.DeriveAddresses(cfg.ProgramID)
	if err != nil {
		return nil, err
	}
	return &Client{log: cfg.Logger, cfg: cfg, addrs: addrs}, nil
}

func (c *Client) Addresses() chain.Addresses {
	return c.addrs
}

func (c *Client) EntryFee() uint64 {
	return c.cfg.EntryFee
}

func (c *Client) BackendPublicKey() solana.PublicKey {
	return c.cfg.Backend.PublicKey()
}

// fetchAccount returns nil data for accounts that do not exist yet.
func (c *Client) fetchAccount(ctx context.Context, kind string, addr solana.PublicKey) ([]byte, error) {
	var data []byte
	err := retry.Do(ctx, c.cfg.Retry, func() error {
		resp, err := c.cfg.RPC.GetAccountInfoWithOpts(ctx, addr, &rpc.GetAccountInfoOpts{
			Commitment: c.cfg.Commitment,
		})
		if errors.Is(err, rpc.ErrNotFound) {
			data = nil
			return nil
		}
		if err != nil {
			return transportErr("get "+kind, err)
		}
		data = resp.GetBinary()
		return nil
	})
	if err != nil {
		metrics.RPCReadsTotal.WithLabelValues(kind, "error").Inc()
		return nil, err
	}
	metrics.RPCReadsTotal.WithLabelValues(kind, "ok").Inc()
	return data, nil
}

func (c *Client) balance(ctx context.Context, addr solana.PublicKey) (uint64, error) {
	var lamports uint64
	err := retry.Do(ctx, c.cfg.Retry, func() error {
		resp, err := c.cfg.RPC.GetBalance(ctx, addr, c.cfg.Commitment)
		if err != nil {
			return transportErr("get balance", err)
		}
		if resp == nil {
			lamports = 0
			return nil
		}
		lamports = resp.Value
		return nil
	})
	if err != nil {
		metrics.RPCReadsTotal.WithLabelValues("balance", "error").Inc()
		return 0, err
	}
	metrics.RPCReadsTotal.WithLabelValues("balance", "ok").Inc()
	return lamports, nil
}

// GetGameState returns the zero state when the account has not been created.
func (c *Client) GetGameState(ctx context.Context) (chain.GameState, error) {
	data, err := c.fetchAccount(ctx, "game_state", c.addrs.GameState)
	if err != nil {
		return chain.GameState{}, err
	}
	state, err := chain.DecodeGameState(data)
	if errors.Is(err, codec.ErrNotInitialized) {
		return chain.GameState{}, nil
	}
	if err != nil {
		return chain.GameState{}, fmt.Errorf("failed to decode game state: %w", err)
	}
	return state, nil
}

func (c *Client) GetPot(ctx context.Context) (uint64, error) {
	state, err := c.GetGameState(ctx)
	if err != nil {
		return 0, err
	}
	return state.Pot, nil
}

// GetPlayerLedger returns nil, nil for players who have never played.
func (c *Client) GetPlayerLedger(ctx context.Context, player solana.PublicKey) (*chain.PlayerLedger, error) {
	addr, _, err := chain.PlayerLedgerAddress(c.cfg.ProgramID, player)
	if err != nil {
		return nil, err
	}
	data, err := c.fetchAccount(ctx, "player_ledger", addr)
	if err != nil {
		return nil, err
	}
	ledger, err := chain.DecodePlayerLedger(data)
	if errors.Is(err, codec.ErrNotInitialized) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode player ledger: %w", err)
	}
	return &ledger, nil
}

func (c *Client) GetWalletBalance(ctx context.Context, wallet solana.PublicKey) (uint64, error) {
	return c.balance(ctx, wallet)
}
