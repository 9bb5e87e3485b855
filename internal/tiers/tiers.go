// Package tiers maps pot size to monster difficulty and maps a monster back
// to its vault crack chance.
package tiers

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

const LamportsPerSOL = 1_000_000_000

var ErrInvalidMonsterType = errors.New("invalid monster type")

// Tier is one pot band. A pot p belongs to the band when MinPot <= p < MaxPot.
type Tier struct {
	Monster           string  `json:"monster"`
	MinPot            float64 `json:"minPot"`
	MaxPot            float64 `json:"maxPot"`
	HitPoints         int     `json:"hitPoints"`
	AttackPower       int     `json:"attackPower"`
	DefenseMultiplier float64 `json:"defenseMultiplier"`
	CrackChance       int     `json:"crackChance"`
}

func (t Tier) Contains(pot float64) bool {
	return pot >= t.MinPot && pot < t.MaxPot
}

// MarshalJSON writes an open-ended MaxPot as null; JSON has no infinity.
func (t Tier) MarshalJSON() ([]byte, error) {
	type plain Tier
	out := struct {
		plain
		MaxPot *float64 `json:"maxPot"`
	}{plain: plain(t)}
	if !math.IsInf(t.MaxPot, 1) {
		out.MaxPot = &t.MaxPot
	}
	return json.Marshal(out)
}

type Table []Tier

// Default is the production difficulty table, in SOL.
var Default = Table{
	{Monster: "slime", MinPot: 0, MaxPot: 0.3, HitPoints: 60, AttackPower: 6, DefenseMultiplier: 1.0, CrackChance: 50},
	{Monster: "goblin", MinPot: 0.3, MaxPot: 0.8, HitPoints: 120, AttackPower: 12, DefenseMultiplier: 1.2, CrackChance: 30},
	{Monster: "orc", MinPot: 0.8, MaxPot: 2, HitPoints: 220, AttackPower: 20, DefenseMultiplier: 1.4, CrackChance: 15},
	{Monster: "troll", MinPot: 2, MaxPot: 5, HitPoints: 400, AttackPower: 32, DefenseMultiplier: 1.7, CrackChance: 8},
	{Monster: "dragon", MinPot: 5, MaxPot: math.Inf(1), HitPoints: 800, AttackPower: 55, DefenseMultiplier: 2.2, CrackChance: 3},
}

// Resolve returns the first band containing pot, scanning ascending. Values
// outside every band (negative or NaN) fall back to the last band.
func (t Table) Resolve(pot float64) Tier {
	for _, tier := range t {
		if tier.Contains(pot) {
			return tier
		}
	}
	return t[len(t)-1]
}

func (t Table) ResolveLamports(lamports uint64) Tier {
	return t.Resolve(ToSOL(lamports))
}

// ByMonster looks up a band by monster type, case-insensitively.
func (t Table) ByMonster(monster string) (Tier, error) {
	name := strings.ToLower(strings.TrimSpace(monster))
	for _, tier := range t {
		if tier.Monster == name {
			return tier, nil
		}
	}
	return Tier{}, fmt.Errorf("%w: %q", ErrInvalidMonsterType, monster)
}

// CrackChance is the vault crack percentage for a monster type. It depends
// only on the monster, never on the current pot.
func (t Table) CrackChance(monster string) (int, error) {
	tier, err := t.ByMonster(monster)
	if err != nil {
		return 0, err
	}
	return tier.CrackChance, nil
}

// Validate checks that the bands partition [0, +Inf).
func (t Table) Validate() error {
	if len(t) == 0 {
		return errors.New("tier table is empty")
	}
	if t[0].MinPot != 0 {
		return fmt.Errorf("first tier %q must start at 0", t[0].Monster)
	}
	seen := make(map[string]bool, len(t))
	for i, tier := range t {
		if tier.Monster == "" || seen[tier.Monster] {
			return fmt.Errorf("tier %d: missing or duplicate monster %q", i, tier.Monster)
		}
		seen[tier.Monster] = true
		if tier.MaxPot <= tier.MinPot {
			return fmt.Errorf("tier %q: max %v must exceed min %v", tier.Monster, tier.MaxPot, tier.MinPot)
		}
		if tier.CrackChance < 0 || tier.CrackChance > 100 {
			return fmt.Errorf("tier %q: crack chance %d out of range", tier.Monster, tier.CrackChance)
		}
		if i > 0 && t[i-1].MaxPot != tier.MinPot {
			return fmt.Errorf("tier %q: gap or overlap after %q", tier.Monster, t[i-1].Monster)
		}
	}
	if !math.IsInf(t[len(t)-1].MaxPot, 1) {
		return fmt.Errorf("last tier %q must be open-ended", t[len(t)-1].Monster)
	}
	return nil
}

func ToSOL(lamports uint64) float64 {
	return float64(lamports) / LamportsPerSOL
}
