package economy

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"vaultcrack/internal/metrics"
	"vaultcrack/internal/retry"
)

// submit builds, signs, sends and confirms a single-instruction transaction.
// Only the blockhash read is retried; the send is attempted exactly once.
func (c *Client) submit(ctx context.Context, name string, ix solana.Instruction, signer WalletSigner) (solana.Signature, error) {
	sig, err := c.submitOnce(ctx, name, ix, signer)
	status := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrInstructionRejected):
		status = "rejected"
	case errors.Is(err, ErrConfirmationTimeout):
		status = "timeout"
	default:
		status = "error"
	}
	metrics.TransactionsTotal.WithLabelValues(name, status).Inc()
	return sig, err
}

func (c *Client) submitOnce(ctx context.Context, name string, ix solana.Instruction, signer WalletSigner) (solana.Signature, error) {
	// 1. Recent blockhash
	var blockhash solana.Hash
	err := retry.Do(ctx, c.cfg.Retry, func() error {
		resp, err := c.cfg.RPC.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
		if err != nil {
			return transportErr("get latest blockhash", err)
		}
		if resp == nil || resp.Value == nil {
			return transportErr("get latest blockhash", errors.New("empty response"))
		}
		blockhash = resp.Value.Blockhash
		return nil
	})
	if err != nil {
		return solana.Signature{}, err
	}

	// 2. Build with the signer as fee payer
	tx, err := solana.NewTransaction([]solana.Instruction{ix}, blockhash, solana.TransactionPayer(signer.PublicKey()))
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to build %s transaction: %w", name, err)
	}

	// 3. Sign
	if err := signer.SignTransaction(ctx, tx); err != nil {
		return solana.Signature{}, err
	}

	// 4. Send with preflight so program errors come back with logs
	sig, err := c.cfg.RPC.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: c.cfg.Commitment,
	})
	if err != nil {
		return solana.Signature{}, classifySendError(name, err)
	}
	c.log.Debug("economy: transaction sent", "instruction", name, "signature", sig.String())

	// 5. Wait for confirmation
	if err := c.confirm(ctx, name, sig); err != nil {
		return sig, err
	}
	c.log.Info("economy: transaction confirmed", "instruction", name, "signature", sig.String())
	return sig, nil
}

// confirm polls signature status until the transaction reaches the client's
// commitment, fails on chain, or the confirm timeout elapses.
func (c *Client) confirm(ctx context.Context, name string, sig solana.Signature) error {
	deadline := c.cfg.Clock.Now().Add(c.cfg.ConfirmTimeout)
	for {
		done, err := c.checkStatus(ctx, name, sig)
		if err != nil || done {
			return err
		}
		if !c.cfg.Clock.Now().Before(deadline) {
			return fmt.Errorf("%w: %s %s", ErrConfirmationTimeout, name, sig)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.cfg.Clock.After(c.cfg.PollInterval):
		}
	}
}

func (c *Client) checkStatus(ctx context.Context, name string, sig solana.Signature) (bool, error) {
	resp, err := c.cfg.RPC.GetSignatureStatuses(ctx, false, sig)
	if err != nil {
		if !errors.Is(err, rpc.ErrNotFound) {
			c.log.Debug("economy: status poll failed", "signature", sig.String(), "error", err)
		}
		return false, nil
	}
	if len(resp.Value) == 0 || resp.Value[0] == nil {
		return false, nil
	}

	status := resp.Value[0]
	if status.Err != nil {
		return true, &RejectedError{Instruction: name, Reason: fmt.Sprintf("%v", status.Err)}
	}
	switch status.ConfirmationStatus {
	case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
		return true, nil
	case rpc.ConfirmationStatusProcessed:
		return c.cfg.Commitment == rpc.CommitmentProcessed, nil
	}
	return false, nil
}
