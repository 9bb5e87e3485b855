package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"

	"vaultcrack/internal/services"
)

const (
	ContextWallet    = "wallet"
	ContextSessionID = "session_id"
)

type TokenValidator interface {
	ValidateToken(token string) (*services.Claims, error)
}

type RateLimitChecker interface {
	CheckRateLimit(ctx context.Context, subject, action string, limit int, window time.Duration) (bool, error)
}

func AuthMiddleware(tokens TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		var tokenString string

		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization format"})
				return
			}
			tokenString = parts[1]
		} else {
			// Browsers cannot set headers on websocket upgrades.
			tokenString = c.Query("token")
			if tokenString == "" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
				return
			}
		}

		claims, err := tokens.ValidateToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}
		wallet, err := solana.PublicKeyFromBase58(claims.Wallet)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid wallet in token"})
			return
		}

		c.Set(ContextWallet, wallet)
		c.Set(ContextSessionID, claims.SessionID)

		c.Next()
	}
}

// WalletFromContext returns the wallet set by AuthMiddleware.
func WalletFromContext(c *gin.Context) (solana.PublicKey, bool) {
	v, ok := c.Get(ContextWallet)
	if !ok {
		return solana.PublicKey{}, false
	}
	wallet, ok := v.(solana.PublicKey)
	return wallet, ok
}

func RateLimitMiddleware(limiter RateLimitChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		wallet, exists := WalletFromContext(c)
		if !exists {
			c.Next()
			return
		}

		path := c.Request.URL.Path

		var limit int
		var window time.Duration

		switch {
		case strings.HasSuffix(path, "/vault/attempt"):
			limit = services.DefaultRateLimitAttempts
			window = time.Minute
		case strings.HasSuffix(path, "/entries/gasless"):
			limit = services.DefaultRateLimitEntries
			window = time.Minute
		default:
			c.Next()
			return
		}

		allowed, err := limiter.CheckRateLimit(c.Request.Context(), wallet.String(), path, limit, window)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Rate limit check failed"})
			return
		}
		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": window.Seconds(),
			})
			return
		}

		c.Next()
	}
}
