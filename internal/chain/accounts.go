package chain

import (
	"encoding"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"vaultcrack/internal/codec"
)

const (
	AccountPlayerLedger = "PlayerLedger"
	AccountGameState    = "GameState"
)

// Rail is the payment rail recorded on a ledger by the last entry.
type Rail uint8

const (
	RailWallet Rail = 0
	RailLedger Rail = 1
)

var (
	_ encoding.TextMarshaler   = Rail(0)
	_ encoding.TextUnmarshaler = (*Rail)(nil)
)

func (r Rail) String() string {
	switch r {
	case RailWallet:
		return "wallet"
	case RailLedger:
		return "ledger"
	}
	return fmt.Sprintf("rail(%d)", uint8(r))
}

func (r Rail) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Rail) UnmarshalText(text []byte) error {
	switch string(text) {
	case "wallet":
		*r = RailWallet
	case "ledger":
		*r = RailLedger
	default:
		return fmt.Errorf("unknown payment rail %q", text)
	}
	return nil
}

// PlayerLedger mirrors the per-player ledger account.
type PlayerLedger struct {
	Owner         solana.PublicKey `json:"owner"`
	Balance       uint64           `json:"balance"`
	CombatCount   uint64           `json:"combatCount"`
	Victories     uint64           `json:"victories"`
	TotalWinnings uint64           `json:"totalWinnings"`
	LastCombatAt  int64            `json:"lastCombatAt"`
	LastRail      Rail             `json:"lastRail"`
}

func (l *PlayerLedger) schema() codec.Schema {
	return codec.Schema{
		codec.Key("owner", &l.Owner),
		codec.U64("balance", &l.Balance),
		codec.U64("combat_count", &l.CombatCount),
		codec.U64("victories", &l.Victories),
		codec.U64("total_winnings", &l.TotalWinnings),
		codec.I64("last_combat_at", &l.LastCombatAt),
		codec.U8("last_rail", (*uint8)(&l.LastRail)),
	}
}

func DecodePlayerLedger(data []byte) (PlayerLedger, error) {
	var l PlayerLedger
	if err := codec.DecodeAccount(data, l.schema()); err != nil {
		return PlayerLedger{}, err
	}
	return l, nil
}

func EncodePlayerLedger(l PlayerLedger) ([]byte, error) {
	return codec.EncodeAccount(AccountPlayerLedger, l.schema())
}

type Winner struct {
	Wallet    solana.PublicKey `json:"wallet"`
	Amount    uint64           `json:"amount"`
	Timestamp int64            `json:"timestamp"`
}

// GameState mirrors the singleton game state account.
type GameState struct {
	Pot          uint64  `json:"pot"`
	TotalEntries uint64  `json:"totalEntries"`
	LastWinner   *Winner `json:"lastWinner,omitempty"`
}

type gameStateLayout struct {
	pot       uint64
	entries   uint64
	hasWinner bool
	winner    Winner
}

func (g *gameStateLayout) schema() codec.Schema {
	return codec.Schema{
		codec.U64("pot", &g.pot),
		codec.U64("total_entries", &g.entries),
		codec.Option("last_winner", &g.hasWinner,
			codec.Key("wallet", &g.winner.Wallet),
			codec.U64("amount", &g.winner.Amount),
			codec.I64("timestamp", &g.winner.Timestamp),
		),
	}
}

func DecodeGameState(data []byte) (GameState, error) {
	var g gameStateLayout
	if err := codec.DecodeAccount(data, g.schema()); err != nil {
		return GameState{}, err
	}

	state := GameState{Pot: g.pot, TotalEntries: g.entries}
	if g.hasWinner {
		w := g.winner
		state.LastWinner = &w
	}
	return state, nil
}

func EncodeGameState(s GameState) ([]byte, error) {
	g := gameStateLayout{pot: s.Pot, entries: s.TotalEntries}
	if s.LastWinner != nil {
		g.hasWinner = true
		g.winner = *s.LastWinner
	}
	return codec.EncodeAccount(AccountGameState, g.schema())
}
