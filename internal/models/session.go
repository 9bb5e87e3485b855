package models

import (
	"time"

	"vaultcrack/internal/tiers"
)

// CombatSession correlates a fight with the vault attempt that follows it.
// It is kept for audit and replay protection only; the monster type used for
// the crack chance is always the one declared with the attempt.
type CombatSession struct {
	ID          string `json:"id" redis:"id"`
	Wallet      string `json:"wallet" redis:"wallet"`
	MonsterType string `json:"monsterType" redis:"monster_type"`
	PotAtStart  uint64 `json:"potAtStart" redis:"pot_at_start"`
	StartedAt   int64  `json:"startedAt" redis:"started_at"`
}

type StartCombatResponse struct {
	SessionID string     `json:"sessionId"`
	Tier      tiers.Tier `json:"tier"`
	Pot       uint64     `json:"pot"`
	PotSOL    float64    `json:"potSol"`
	StartedAt time.Time  `json:"startedAt"`
}

type VaultAttemptRequest struct {
	SessionID   string `json:"sessionId" binding:"required"`
	MonsterType string `json:"monsterType" binding:"required"`
}
