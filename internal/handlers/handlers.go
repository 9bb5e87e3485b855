// Package handlers exposes the vault economy over HTTP and websocket.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"

	"vaultcrack/internal/chain"
	"vaultcrack/internal/economy"
	"vaultcrack/internal/models"
	"vaultcrack/internal/payment"
	"vaultcrack/internal/services"
	"vaultcrack/internal/tiers"
	"vaultcrack/internal/vault"
)

// ChainReader is the read side of the economy client.
type ChainReader interface {
	GetGameState(ctx context.Context) (chain.GameState, error)
	GetPlayerLedger(ctx context.Context, player solana.PublicKey) (*chain.PlayerLedger, error)
	GetPaymentOptions(ctx context.Context, player solana.PublicKey) economy.PaymentOptions
	ReconcileVault(ctx context.Context) (economy.VaultReconciliation, error)
	EntryFee() uint64
}

type SignerStatus interface {
	Status() (economy.SignerStatus, bool)
	Check(ctx context.Context) (economy.SignerStatus, error)
}

type Attempter interface {
	Attempt(ctx context.Context, req vault.Request) (*vault.Result, error)
}

type EntryRouter interface {
	Enter(ctx context.Context, req payment.EntryRequest) (payment.Receipt, error)
	PrizeRoute(ctx context.Context, player solana.PublicKey) (payment.PrizeRoute, error)
}

type SessionStore interface {
	SaveCombatSession(ctx context.Context, session *models.CombatSession) error
	GetCombatSession(ctx context.Context, sessionID string) (*models.CombatSession, error)
	GetAttemptHistory(ctx context.Context, wallet string, limit int64) ([]*models.AttemptRecord, error)
}

// PotNotifier publishes a pot-update after a write this service submitted.
type PotNotifier interface {
	Notify(ctx context.Context, reason string, sig solana.Signature, slot uint64) error
}

var (
	_ ChainReader  = (*economy.Client)(nil)
	_ SignerStatus = (*economy.Monitor)(nil)
	_ Attempter    = (*vault.Cracker)(nil)
	_ EntryRouter  = (*payment.Router)(nil)
	_ SessionStore = (*services.RedisService)(nil)
)

// writeError maps domain errors to HTTP statuses. Rejections carry the
// program logs so clients can show the program's reason.
func writeError(c *gin.Context, err error) {
	var rejected *economy.RejectedError
	switch {
	case errors.As(err, &rejected):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":        "Transaction rejected",
			"details":      rejected.Error(),
			"programError": rejected.ProgramError(),
			"logs":         rejected.Logs,
		})
	case errors.Is(err, vault.ErrOracleUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Fairness oracle unavailable, please retry",
			"details": err.Error(),
		})
	case errors.Is(err, vault.ErrSessionUsed):
		c.JSON(http.StatusConflict, gin.H{"error": "Combat session already used"})
	case errors.Is(err, vault.ErrVaultEmpty):
		c.JSON(http.StatusConflict, gin.H{"error": "The vault is empty"})
	case errors.Is(err, vault.ErrInvalidSession),
		errors.Is(err, tiers.ErrInvalidMonsterType),
		errors.Is(err, payment.ErrSignerMismatch):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
	case errors.Is(err, payment.ErrRailUnavailable),
		errors.Is(err, economy.ErrInsufficientLedgerBalance):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "Payment rail unavailable", "details": err.Error()})
	case errors.Is(err, economy.ErrSignerBelowFloor):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Gasless entries are paused", "details": err.Error()})
	case errors.Is(err, economy.ErrTransport),
		errors.Is(err, economy.ErrConfirmationTimeout):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Chain unavailable", "details": err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "Request timed out"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error", "details": err.Error()})
	}
	_ = c.Error(err)
}

func walletParam(c *gin.Context, name string) (solana.PublicKey, bool) {
	wallet, err := solana.PublicKeyFromBase58(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid wallet address", "details": err.Error()})
		return solana.PublicKey{}, false
	}
	return wallet, true
}

func unixNow(now time.Time) int64 {
	return now.UTC().Unix()
}
