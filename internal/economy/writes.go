package economy

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"vaultcrack/internal/chain"
)

// EnterCombat pays the entry fee from the player's wallet. The wallet signs
// and pays the network fee.
func (c *Client) EnterCombat(ctx context.Context, wallet WalletSigner) (solana.Signature, error) {
	ix, err := chain.EnterCombat(c.addrs, wallet.PublicKey())
	if err != nil {
		return solana.Signature{}, err
	}
	return c.submit(ctx, chain.IxEnterCombat, ix, wallet)
}

// EnterCombatGasless pays the entry fee from the player's ledger balance. The
// backend signs and pays the network fee, so it refuses to proceed when its
// own balance is under the operating floor.
func (c *Client) EnterCombatGasless(ctx context.Context, player solana.PublicKey) (solana.Signature, error) {
	ledger, err := c.GetPlayerLedger(ctx, player)
	if err != nil {
		return solana.Signature{}, err
	}
	if ledger == nil || ledger.Balance < c.cfg.EntryFee {
		var have uint64
		if ledger != nil {
			have = ledger.Balance
		}
		return solana.Signature{}, fmt.Errorf("%w: have %d, need %d", ErrInsufficientLedgerBalance, have, c.cfg.EntryFee)
	}

	status, err := c.GetSignerStatus(ctx)
	if err != nil {
		return solana.Signature{}, err
	}
	if status.Low {
		c.log.Warn("economy: refusing gasless entry, backend signer low",
			"balance", status.Balance, "floor", status.MinOperatingBalance)
		return solana.Signature{}, fmt.Errorf("%w: %d < %d", ErrSignerBelowFloor, status.Balance, status.MinOperatingBalance)
	}

	ix, err := chain.EnterCombatGasless(c.addrs, c.cfg.Backend.PublicKey(), player)
	if err != nil {
		return solana.Signature{}, err
	}
	return c.submit(ctx, chain.IxEnterCombatGasless, ix, c.cfg.Backend)
}

func (c *Client) DepositToLedger(ctx context.Context, wallet WalletSigner, amount uint64) (solana.Signature, error) {
	ix, err := chain.Deposit(c.addrs, wallet.PublicKey(), amount)
	if err != nil {
		return solana.Signature{}, err
	}
	return c.submit(ctx, chain.IxDeposit, ix, wallet)
}

func (c *Client) WithdrawFromLedger(ctx context.Context, wallet WalletSigner, amount uint64) (solana.Signature, error) {
	if amount == 0 {
		return solana.Signature{}, chain.ErrZeroAmount
	}
	ledger, err := c.GetPlayerLedger(ctx, wallet.PublicKey())
	if err != nil {
		return solana.Signature{}, err
	}
	if ledger == nil || ledger.Balance < amount {
		var have uint64
		if ledger != nil {
			have = ledger.Balance
		}
		return solana.Signature{}, fmt.Errorf("%w: have %d, requested %d", ErrInsufficientLedgerBalance, have, amount)
	}

	ix, err := chain.Withdraw(c.addrs, wallet.PublicKey(), amount)
	if err != nil {
		return solana.Signature{}, err
	}
	return c.submit(ctx, chain.IxWithdraw, ix, wallet)
}

// ClaimPrize transfers the pot to winner with the oracle proof attached. The
// program decides whether the prize lands in the winner's ledger or wallet.
func (c *Client) ClaimPrize(ctx context.Context, winner solana.PublicKey, proof []byte) (solana.Signature, error) {
	ix, err := chain.ClaimPrize(c.addrs, c.cfg.Backend.PublicKey(), winner, proof)
	if err != nil {
		return solana.Signature{}, err
	}
	return c.submit(ctx, chain.IxClaimPrize, ix, c.cfg.Backend)
}
