// Package validation re-derives a match outcome from first principles:
// revealed commitments are checked, armies are regenerated from revealed
// secrets, and every round is replayed canonically. Nothing a player
// claims is trusted; the replayed winner always overrides the claims.
package validation

import (
	"fmt"

	"github.com/EthnTuttle/manastr-sub000/pkgs/combat"
	"github.com/EthnTuttle/manastr-sub000/pkgs/commitment"
	"github.com/EthnTuttle/manastr-sub000/pkgs/match"
	"github.com/EthnTuttle/manastr-sub000/pkgs/protocol"
)

// Verdict is the authoritative result of validating one match.
type Verdict struct {
	Summary protocol.ValidationSummary
	// Winner is the replayed winner's identity, nil for a draw. Only
	// meaningful when Summary.CombatVerified is true.
	Winner *string
	// Rounds are the canonically replayed round results.
	Rounds []protocol.RoundResult
}

// ValidateMatch checks commitments, regenerates both armies and replays
// every fully revealed round for a match record. Pure given the record;
// no I/O. Sender signatures are verified by the transport before events
// reach the core, so SignaturesValid is a pass-through.
func ValidateMatch(rec *match.Record) Verdict {
	v := Verdict{Summary: protocol.ValidationSummary{SignaturesValid: true}}

	if err := verifyCommitments(rec); err != nil {
		v.Summary.ErrorDetail = err.Error()
		return v
	}
	v.Summary.CommitmentsValid = true

	armies, err := regenerateArmies(rec)
	if err != nil {
		v.Summary.ErrorDetail = err.Error()
		return v
	}

	rounds, winner, err := replay(rec, armies)
	if err != nil {
		v.Summary.ErrorDetail = err.Error()
		return v
	}
	v.Summary.CombatVerified = true
	v.Rounds = rounds
	v.Winner = winner

	if detail := compareClaims(rec, winner); detail != "" {
		// The replay itself completed; only the claim comparison failed.
		v.Summary.ErrorDetail = detail
		return v
	}
	v.Summary.WinnerConfirmed = true

	return v
}

// verifyCommitments checks both players' token reveals and every move
// reveal for rounds present in both players' reveal maps. A single bad
// reveal fails the whole match.
func verifyCommitments(rec *match.Record) error {
	for _, player := range []string{rec.Challenger, rec.Acceptor} {
		reveals, ok := rec.Reveals[player]
		if !ok || !reveals.TokensRevealed {
			return fmt.Errorf("player %s never revealed tokens", player)
		}
		commits, ok := rec.Commitments[player]
		if !ok || commits.TokenCommitment == "" {
			return fmt.Errorf("player %s has no token commitment on record", player)
		}
		if !commitment.VerifyTokens(commits.TokenCommitment, reveals.Tokens, reveals.TokenNonce) {
			return fmt.Errorf("token commitment mismatch for player %s", player)
		}
	}

	for _, round := range rec.SharedRounds() {
		for _, player := range []string{rec.Challenger, rec.Acceptor} {
			mv := rec.Reveals[player].Moves[round]
			moveCommit, ok := rec.Commitments[player].Moves[round]
			if !ok {
				return fmt.Errorf("player %s revealed round %d without a stored commitment", player, round)
			}
			if !commitment.VerifyMoves(moveCommit, mv.Positions, mv.Abilities, mv.Nonce) {
				return fmt.Errorf("move commitment mismatch for player %s round %d", player, round)
			}
		}
	}

	return nil
}

// regenerateArmies derives each player's army from the first entry of
// their revealed token list.
func regenerateArmies(rec *match.Record) (map[string]combat.Army, error) {
	armies := make(map[string]combat.Army, 2)
	for _, player := range []string{rec.Challenger, rec.Acceptor} {
		tokens := rec.Reveals[player].Tokens
		if len(tokens) == 0 {
			return nil, fmt.Errorf("player %s revealed an empty token list", player)
		}
		armies[player] = combat.GenerateArmy(tokens[0], rec.LeagueID)
	}
	return armies, nil
}

// replay recomputes every round present in both players' reveal maps, in
// ascending round order, and tallies round wins into an overall winner.
func replay(rec *match.Record, armies map[string]combat.Army) ([]protocol.RoundResult, *string, error) {
	var rounds []protocol.RoundResult
	wins := make(map[string]int, 2)

	for _, round := range rec.SharedRounds() {
		unitA, err := actingUnit(rec, armies, rec.Challenger, round)
		if err != nil {
			return nil, nil, err
		}
		unitB, err := actingUnit(rec, armies, rec.Acceptor, round)
		if err != nil {
			return nil, nil, err
		}

		result := combat.ResolveCombat(unitA, unitB)

		rr := protocol.RoundResult{Round: round}
		switch result.Winner {
		case combat.WinnerA:
			rr.Winner = rec.Challenger
		case combat.WinnerB:
			rr.Winner = rec.Acceptor
		}
		if rr.Winner != "" {
			wins[rr.Winner]++
		}
		rounds = append(rounds, rr)
	}

	switch {
	case wins[rec.Challenger] > wins[rec.Acceptor]:
		w := rec.Challenger
		return rounds, &w, nil
	case wins[rec.Acceptor] > wins[rec.Challenger]:
		w := rec.Acceptor
		return rounds, &w, nil
	default:
		return rounds, nil, nil
	}
}

// actingUnit picks a player's combatant for a round from the first revealed
// position byte, modulo the roster size.
func actingUnit(rec *match.Record, armies map[string]combat.Army, player string, round uint32) (combat.Unit, error) {
	mv := rec.Reveals[player].Moves[round]
	if len(mv.Positions) == 0 {
		return combat.Unit{}, fmt.Errorf("player %s revealed no unit position for round %d", player, round)
	}
	army := armies[player]
	return army[combat.SlotForPosition(mv.Positions[0])], nil
}

// compareClaims checks each submitted claim's winner against the replayed
// winner. A mismatching claim does not change the authoritative outcome;
// it only clears winner confirmation.
func compareClaims(rec *match.Record, winner *string) string {
	for _, player := range []string{rec.Challenger, rec.Acceptor} {
		claim, ok := rec.Claims[player]
		if !ok {
			continue
		}
		if !winnersEqual(claim.ClaimedWinner, winner) {
			return fmt.Sprintf("player %s claimed winner %s but replay determined %s",
				player, winnerName(claim.ClaimedWinner), winnerName(winner))
		}
	}
	return ""
}

func winnersEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func winnerName(w *string) string {
	if w == nil {
		return "draw"
	}
	return *w
}
