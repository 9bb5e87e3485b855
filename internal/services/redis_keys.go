package services

import "time"

const (
	KeyAuthNonce      = "auth:nonce:%s"
	KeyCombatSession  = "combat:session:%s"
	KeyAttemptGuard   = "vault:attempt:%s:%s"
	KeyAttempt        = "vault:attempt_record:%s:%s"
	KeyWalletAttempts = "wallet:%s:attempts"
	KeyRateLimit      = "ratelimit:%s:%s"

	TTLAuthNonce     = 5 * time.Minute
	TTLCombatSession = 30 * time.Minute
	TTLAttemptGuard  = 7 * 24 * time.Hour  // 7 days
	TTLAttempt       = 30 * 24 * time.Hour // 30 days

	MaxAttemptHistory = 100

	DefaultRateLimitAttempts = 10 // Max 10 vault attempts per minute
	DefaultRateLimitEntries  = 20 // Max 20 gasless entries per minute
)
