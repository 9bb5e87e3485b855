package models

import (
	"vaultcrack/internal/chain"
	"vaultcrack/internal/economy"
	"vaultcrack/internal/payment"
)

type PlayerResponse struct {
	Wallet         string                 `json:"wallet"`
	Ledger         *chain.PlayerLedger    `json:"ledger"`
	PaymentOptions economy.PaymentOptions `json:"paymentOptions"`
	PrizeRoute     payment.PrizeRoute     `json:"prizeRoute,omitempty"`
}

type GameStateResponse struct {
	Pot          uint64        `json:"pot"`
	PotSOL       float64       `json:"potSol"`
	TotalEntries uint64        `json:"totalEntries"`
	LastWinner   *chain.Winner `json:"lastWinner,omitempty"`
	CurrentTier  string        `json:"currentTier"`
	EntryFee     uint64        `json:"entryFee"`
}

type EntryResponse struct {
	Success   bool       `json:"success"`
	Rail      chain.Rail `json:"rail"`
	Signature string     `json:"signature"`
	EntryFee  uint64     `json:"entryFee"`
}
