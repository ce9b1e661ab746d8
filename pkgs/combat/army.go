// Package combat implements the deterministic army-generation and combat
// engine. Everything here is pure CPU work: the same inputs always produce
// bit-identical outputs, which is what lets an independent validator
// recompute a match from revealed secrets and get exactly the result the
// players saw.
package combat

import (
	"crypto/sha256"
	"fmt"
)

// Ability is a unit's special effect during a combat exchange.
type Ability uint8

const (
	AbilityNone Ability = iota
	AbilityBoost
	AbilityShield
	AbilityHeal
)

func (a Ability) String() string {
	switch a {
	case AbilityNone:
		return "none"
	case AbilityBoost:
		return "boost"
	case AbilityShield:
		return "shield"
	case AbilityHeal:
		return "heal"
	default:
		return fmt.Sprintf("ability(%d)", uint8(a))
	}
}

// Unit is a single combatant. Pure value type; its identity is its slot in
// the army roster.
type Unit struct {
	Attack    uint32  `json:"attack"`
	Defense   uint32  `json:"defense"`
	Health    uint32  `json:"health"`
	MaxHealth uint32  `json:"max_health"`
	Ability   Ability `json:"ability"`
}

// ArmySize is the fixed number of roster slots per player per match.
const ArmySize = 8

// Army is the ordered roster of units generated once per player per match.
type Army [ArmySize]Unit

// LeagueModifiers are the signed stat bonuses a league applies during army
// generation.
type LeagueModifiers struct {
	Name         string
	AttackBonus  int32
	DefenseBonus int32
	HealthBonus  int32
}

// The four leagues; unknown league ids alias modulo 4.
var leagues = [4]LeagueModifiers{
	{Name: "standard", AttackBonus: 0, DefenseBonus: 0, HealthBonus: 0},
	{Name: "aggression", AttackBonus: 5, DefenseBonus: -2, HealthBonus: 0},
	{Name: "fortress", AttackBonus: -2, DefenseBonus: 5, HealthBonus: 10},
	{Name: "frenzy", AttackBonus: 3, DefenseBonus: 0, HealthBonus: -5},
}

// LeagueFor returns the modifiers for a league id.
func LeagueFor(leagueID uint32) LeagueModifiers {
	return leagues[leagueID%4]
}

// GenerateArmy deterministically derives a full army from a revealed secret.
// The secret is hashed with SHA-256 and the digest is partitioned into
// 4-byte groups, one per roster slot: base attack 10-29, base defense 5-19,
// base health 20-49, and an ability selector. League modifiers are applied
// afterwards. Two calls with the same (secret, leagueID) produce
// bit-identical armies.
func GenerateArmy(secret string, leagueID uint32) Army {
	digest := sha256.Sum256([]byte(secret))

	var army Army
	for slot := 0; slot < ArmySize; slot++ {
		group := digest[slot*4 : slot*4+4]

		health := 20 + uint32(group[2])%30
		unit := Unit{
			Attack:    10 + uint32(group[0])%20,
			Defense:   5 + uint32(group[1])%15,
			Health:    health,
			MaxHealth: health,
			Ability:   Ability(group[3] % 4),
		}
		army[slot] = ApplyLeagueModifiers(unit, leagueID)
	}
	return army
}

// ApplyLeagueModifiers adds the league's signed bonuses to a unit's attack,
// defense and max health, flooring each at 1. Current health moves by
// exactly the same delta as max health, so a freshly generated unit stays
// at full health.
func ApplyLeagueModifiers(unit Unit, leagueID uint32) Unit {
	mods := LeagueFor(leagueID)

	unit.Attack = addFloored(unit.Attack, mods.AttackBonus)
	unit.Defense = addFloored(unit.Defense, mods.DefenseBonus)

	newMax := addFloored(unit.MaxHealth, mods.HealthBonus)
	delta := int64(newMax) - int64(unit.MaxHealth)
	unit.MaxHealth = newMax
	unit.Health = addFloored(unit.Health, int32(delta))

	return unit
}

// SlotForPosition reduces a revealed unit position to a roster slot. The
// reduction never indexes out of range, even for adversarial negative
// positions.
func SlotForPosition(position int) int {
	slot := position % ArmySize
	if slot < 0 {
		slot += ArmySize
	}
	return slot
}

// addFloored applies a signed bonus to an unsigned stat, flooring the result
// at 1.
func addFloored(stat uint32, bonus int32) uint32 {
	v := int64(stat) + int64(bonus)
	if v < 1 {
		return 1
	}
	return uint32(v)
}
