package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"

	"vaultcrack/internal/chain"
	"vaultcrack/internal/metrics"
	"vaultcrack/internal/middleware"
	"vaultcrack/internal/models"
	"vaultcrack/internal/payment"
	"vaultcrack/internal/relay"
	"vaultcrack/internal/services"
	"vaultcrack/internal/tiers"
	"vaultcrack/internal/vault"
)

type GameHandlerConfig struct {
	Logger   *slog.Logger
	Clock    clockwork.Clock
	Chain    ChainReader
	Tiers    tiers.Table
	Sessions SessionStore
	Cracker  Attempter
	Router   EntryRouter
	Signer   SignerStatus

	// Notifier is set when no chain watcher is running, so the service
	// announces pot changes for the writes it submits itself.
	Notifier PotNotifier
}

func (cfg *GameHandlerConfig) Validate() error {
	if cfg.Chain == nil || cfg.Sessions == nil || cfg.Cracker == nil || cfg.Router == nil || cfg.Signer == nil {
		return errors.New("game handler dependencies are required")
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
	return nil
}

type GameHandler struct {
	log *slog.Logger
	cfg GameHandlerConfig
}

func NewGameHandler(cfg GameHandlerConfig) (*GameHandler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &GameHandler{log: cfg.Logger, cfg: cfg}, nil
}

func (h *GameHandler) GetGameState(c *gin.Context) {
	state, err := h.cfg.Chain.GetGameState(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.GameStateResponse{
		Pot:          state.Pot,
		PotSOL:       tiers.ToSOL(state.Pot),
		TotalEntries: state.TotalEntries,
		LastWinner:   state.LastWinner,
		CurrentTier:  h.cfg.Tiers.ResolveLamports(state.Pot).Monster,
		EntryFee:     h.cfg.Chain.EntryFee(),
	})
}

func (h *GameHandler) GetPlayer(c *gin.Context) {
	wallet, ok := walletParam(c, "wallet")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	ledger, err := h.cfg.Chain.GetPlayerLedger(ctx, wallet)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.PlayerResponse{
		Wallet:         wallet.String(),
		Ledger:         ledger,
		PaymentOptions: h.cfg.Chain.GetPaymentOptions(ctx, wallet),
		PrizeRoute:     payment.RouteFor(ledger),
	})
}

func (h *GameHandler) GetTiers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tiers": h.cfg.Tiers})
}

func (h *GameHandler) GetCurrentTier(c *gin.Context) {
	state, err := h.cfg.Chain.GetGameState(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tier":   h.cfg.Tiers.ResolveLamports(state.Pot),
		"pot":    state.Pot,
		"potSol": tiers.ToSOL(state.Pot),
	})
}

func (h *GameHandler) GetSignerStatus(c *gin.Context) {
	status, ok := h.cfg.Signer.Status()
	if !ok {
		var err error
		status, err = h.cfg.Signer.Check(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, status)
}

func (h *GameHandler) GetReconciliation(c *gin.Context) {
	report, err := h.cfg.Chain.ReconcileVault(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"reconciliation": report,
		"balanced":       report.Balanced(),
	})
}

// StartCombat opens a combat session against the monster of the current
// tier. The returned session id must accompany the vault attempt.
func (h *GameHandler) StartCombat(c *gin.Context) {
	wallet, ok := middleware.WalletFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	ctx := c.Request.Context()

	state, err := h.cfg.Chain.GetGameState(ctx)
	if err != nil {
		writeError(c, err)
		return
	}
	tier := h.cfg.Tiers.ResolveLamports(state.Pot)
	now := h.cfg.Clock.Now()

	session := &models.CombatSession{
		ID:          models.GenerateSessionID(),
		Wallet:      wallet.String(),
		MonsterType: tier.Monster,
		PotAtStart:  state.Pot,
		StartedAt:   unixNow(now),
	}
	if err := h.cfg.Sessions.SaveCombatSession(ctx, session); err != nil {
		h.log.Error("game: failed to save combat session", "wallet", wallet.String(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start combat"})
		return
	}

	c.JSON(http.StatusOK, models.StartCombatResponse{
		SessionID: session.ID,
		Tier:      tier,
		Pot:       state.Pot,
		PotSOL:    tiers.ToSOL(state.Pot),
		StartedAt: now.UTC(),
	})
}

func (h *GameHandler) AttemptVault(c *gin.Context) {
	wallet, ok := middleware.WalletFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var req models.VaultAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	h.auditSession(c.Request.Context(), wallet, req)

	result, err := h.cfg.Cracker.Attempt(c.Request.Context(), vault.Request{
		Wallet:      wallet,
		SessionID:   req.SessionID,
		MonsterType: req.MonsterType,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	if result.ClaimSignature != nil {
		h.notify(c.Request.Context(), relay.ReasonClaim, *result.ClaimSignature)
	}
	c.JSON(http.StatusOK, result)
}

// auditSession compares an attempt with the fight its session recorded. The
// declared monster still decides the crack chance; a mismatch is only logged.
func (h *GameHandler) auditSession(ctx context.Context, wallet solana.PublicKey, req models.VaultAttemptRequest) {
	session, err := h.cfg.Sessions.GetCombatSession(ctx, req.SessionID)
	if errors.Is(err, services.ErrSessionNotFound) {
		metrics.CombatSessionAuditTotal.WithLabelValues("unknown").Inc()
		return
	}
	if err != nil {
		h.log.Error("game: failed to read combat session", "session", req.SessionID, "error", err)
		return
	}

	if session.Wallet != wallet.String() || !strings.EqualFold(session.MonsterType, req.MonsterType) {
		metrics.CombatSessionAuditTotal.WithLabelValues("mismatch").Inc()
		h.log.Warn("game: attempt differs from recorded combat session",
			"wallet", wallet.String(), "session", req.SessionID,
			"sessionWallet", session.Wallet, "sessionMonster", session.MonsterType,
			"declaredMonster", req.MonsterType)
		return
	}
	metrics.CombatSessionAuditTotal.WithLabelValues("match").Inc()
}

// EnterGasless pays the entry fee from the player's ledger balance; the
// backend signs and pays the network fee.
func (h *GameHandler) EnterGasless(c *gin.Context) {
	wallet, ok := middleware.WalletFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	receipt, err := h.cfg.Router.Enter(c.Request.Context(), payment.EntryRequest{
		Player: wallet,
		Rail:   chain.RailLedger,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	h.notify(c.Request.Context(), relay.ReasonEntry, receipt.Signature)
	c.JSON(http.StatusOK, models.EntryResponse{
		Success:   true,
		Rail:      receipt.Rail,
		Signature: receipt.Signature.String(),
		EntryFee:  receipt.EntryFee,
	})
}

func (h *GameHandler) GetAttemptHistory(c *gin.Context) {
	wallet, ok := middleware.WalletFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	limitStr := c.DefaultQuery("limit", "50")
	limit, err := strconv.ParseInt(limitStr, 10, 64)
	if err != nil || limit <= 0 || limit > 100 {
		limit = 50
	}

	attempts, err := h.cfg.Sessions.GetAttemptHistory(c.Request.Context(), wallet.String(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get attempt history", "details": err.Error()})
		return
	}
	if attempts == nil {
		attempts = []*models.AttemptRecord{}
	}

	c.JSON(http.StatusOK, models.AttemptHistoryResponse{Wallet: wallet.String(), Attempts: attempts})
}

func (h *GameHandler) notify(ctx context.Context, reason string, sig solana.Signature) {
	if h.cfg.Notifier == nil {
		return
	}
	if err := h.cfg.Notifier.Notify(context.WithoutCancel(ctx), reason, sig, 0); err != nil {
		h.log.Warn("game: failed to publish pot update", "reason", reason, "error", err)
	}
}
