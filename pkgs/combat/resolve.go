package combat

// Winner identifies which side of a combat exchange won.
type Winner uint8

const (
	WinnerNone Winner = iota // draw or mutual death
	WinnerA
	WinnerB
)

func (w Winner) String() string {
	switch w {
	case WinnerA:
		return "a"
	case WinnerB:
		return "b"
	default:
		return "none"
	}
}

// CombatResult is the outcome of a single simultaneous exchange.
type CombatResult struct {
	DamageToA uint32 `json:"damage_to_a"`
	DamageToB uint32 `json:"damage_to_b"`
	UnitA     Unit   `json:"unit_a"` // post-exchange state
	UnitB     Unit   `json:"unit_b"` // post-exchange state
	Winner    Winner `json:"winner"`
}

// ResolveCombat resolves one simultaneous exchange between two units.
// Both damages are computed from pre-exchange stats, so the function is
// order-independent: swapping the inputs swaps the outputs and the winner.
func ResolveCombat(a, b Unit) CombatResult {
	// Boost doubles attack for this exchange only.
	attackA := a.Attack
	if a.Ability == AbilityBoost {
		attackA *= 2
	}
	attackB := b.Attack
	if b.Ability == AbilityBoost {
		attackB *= 2
	}

	damageToB := damageAgainst(attackA, b)
	damageToA := damageAgainst(attackB, a)

	a.Health = subFloored(a.Health, damageToA)
	b.Health = subFloored(b.Health, damageToB)

	// Surviving healers recover after the exchange.
	a = applyHeal(a)
	b = applyHeal(b)

	return CombatResult{
		DamageToA: damageToA,
		DamageToB: damageToB,
		UnitA:     a,
		UnitB:     b,
		Winner:    pickWinner(a, b),
	}
}

// damageAgainst computes the damage an attack value deals to a defender.
// Shield nullifies all incoming damage.
func damageAgainst(attack uint32, defender Unit) uint32 {
	if defender.Ability == AbilityShield {
		return 0
	}
	if attack <= defender.Defense {
		return 0
	}
	return attack - defender.Defense
}

// applyHeal restores max(1, maxHealth/2) to a living unit with the Heal
// ability, capped at max health.
func applyHeal(u Unit) Unit {
	if u.Ability != AbilityHeal || u.Health == 0 {
		return u
	}
	heal := u.MaxHealth / 2
	if heal < 1 {
		heal = 1
	}
	u.Health += heal
	if u.Health > u.MaxHealth {
		u.Health = u.MaxHealth
	}
	return u
}

func pickWinner(a, b Unit) Winner {
	aAlive := a.Health > 0
	bAlive := b.Health > 0

	switch {
	case aAlive && !bAlive:
		return WinnerA
	case bAlive && !aAlive:
		return WinnerB
	case aAlive && bAlive:
		if a.Health > b.Health {
			return WinnerA
		}
		if b.Health > a.Health {
			return WinnerB
		}
		return WinnerNone
	default:
		// Mutual death.
		return WinnerNone
	}
}

func subFloored(v, d uint32) uint32 {
	if d >= v {
		return 0
	}
	return v - d
}
