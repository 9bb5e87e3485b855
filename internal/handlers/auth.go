package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"

	"vaultcrack/internal/models"
	"vaultcrack/internal/services"
)

type NonceStore interface {
	StoreNonce(ctx context.Context, wallet, nonce string) (string, time.Duration, error)
	ConsumeNonce(ctx context.Context, wallet string) (string, error)
}

type TokenIssuer interface {
	GenerateToken(wallet string) (string, time.Time, error)
}

var (
	_ NonceStore  = (*services.RedisService)(nil)
	_ TokenIssuer = (*services.JWTService)(nil)
)

// AuthHandler implements sign-in with a Solana wallet: the client fetches a
// nonce, signs the sign-in message with its wallet key and exchanges the
// signature for a JWT.
type AuthHandler struct {
	log    *slog.Logger
	clock  clockwork.Clock
	nonces NonceStore
	tokens TokenIssuer
}

func NewAuthHandler(log *slog.Logger, clock clockwork.Clock, nonces NonceStore, tokens TokenIssuer) *AuthHandler {
	return &AuthHandler{log: log, clock: clock, nonces: nonces, tokens: tokens}
}

func (h *AuthHandler) Nonce(c *gin.Context) {
	wallet, err := solana.PublicKeyFromBase58(c.Query("wallet"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid wallet address"})
		return
	}

	nonce, err := models.GenerateNonce()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate nonce"})
		return
	}
	nonce, ttl, err := h.nonces.StoreNonce(c.Request.Context(), wallet.String(), nonce)
	if err != nil {
		h.log.Error("auth: failed to store nonce", "wallet", wallet.String(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store nonce"})
		return
	}

	c.JSON(http.StatusOK, models.NonceResponse{
		Wallet:    wallet.String(),
		Nonce:     nonce,
		Message:   models.SignInMessage(wallet.String(), nonce),
		ExpiresAt: h.clock.Now().Add(ttl).UTC(),
	})
}

func (h *AuthHandler) Verify(c *gin.Context) {
	var req models.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	wallet, err := solana.PublicKeyFromBase58(req.Wallet)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid wallet address"})
		return
	}
	sig, err := solana.SignatureFromBase58(req.Signature)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid signature encoding"})
		return
	}

	// The nonce is single use whether or not the signature checks out.
	nonce, err := h.nonces.ConsumeNonce(c.Request.Context(), wallet.String())
	if errors.Is(err, services.ErrNonceNotFound) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Nonce expired or not requested"})
		return
	}
	if err != nil {
		h.log.Error("auth: failed to read nonce", "wallet", wallet.String(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read nonce"})
		return
	}

	if !sig.Verify(wallet, []byte(models.SignInMessage(wallet.String(), nonce))) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Signature verification failed"})
		return
	}

	token, expiresAt, err := h.tokens.GenerateToken(wallet.String())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}

	h.log.Info("auth: wallet signed in", "wallet", wallet.String())
	c.JSON(http.StatusOK, models.AuthResponse{Token: token, Wallet: wallet.String(), ExpiresAt: expiresAt.UTC()})
}
