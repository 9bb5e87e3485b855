package models

import (
	"encoding/json"
)

type AttemptOutcome string

const (
	OutcomeWin              AttemptOutcome = "win"
	OutcomeLoss             AttemptOutcome = "loss"
	OutcomeSettlementFailed AttemptOutcome = "settlement_failed"
)

// AttemptRecord is the stored history entry for one vault attempt.
type AttemptRecord struct {
	SessionID        string          `json:"sessionId" redis:"session_id"`
	Wallet           string          `json:"wallet" redis:"wallet"`
	MonsterType      string          `json:"monsterType" redis:"monster_type"`
	Outcome          AttemptOutcome  `json:"outcome" redis:"outcome"`
	Roll             int             `json:"roll" redis:"roll"`
	CrackChance      int             `json:"crackChance" redis:"crack_chance"`
	PrizeAmount      uint64          `json:"prizeAmount,omitempty" redis:"prize_amount"`
	ClaimSignature   string          `json:"claimSignature,omitempty" redis:"claim_signature"`
	PendingSignature string          `json:"pendingSignature,omitempty" redis:"pending_signature"`
	Proof            json.RawMessage `json:"proof" redis:"proof"`
	CreatedAt        int64           `json:"createdAt" redis:"created_at"`
}

type AttemptHistoryResponse struct {
	Wallet   string           `json:"wallet"`
	Attempts []*AttemptRecord `json:"attempts"`
}
