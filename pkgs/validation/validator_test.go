package validation

import (
	"strings"
	"testing"
	"time"

	"github.com/EthnTuttle/manastr-sub000/pkgs/combat"
	"github.com/EthnTuttle/manastr-sub000/pkgs/commitment"
	"github.com/EthnTuttle/manastr-sub000/pkgs/match"
	"github.com/EthnTuttle/manastr-sub000/pkgs/protocol"
)

const (
	player1 = "npub1alice"
	player2 = "npub1bob"
)

var testTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type playerSetup struct {
	identity string
	tokens   []string
	nonce    string
	position int
}

// buildRecord drives a record through the state machine up to
// AwaitingValidation: tokens revealed, the given number of rounds fully
// committed and revealed (each player re-using their fixed position), and
// both claims submitted.
func buildRecord(t *testing.T, p1, p2 playerSetup, rounds int, claimed *string) *match.Record {
	t.Helper()

	sm := &match.StateMachine{ValidatorID: "validator-test", FeePct: 0.05}
	rec := match.NewRecord("match-1", testTime)

	apply := func(ev protocol.MatchEvent) {
		t.Helper()
		res := sm.Transition(rec, ev, testTime)
		if len(res.Errors) != 0 {
			t.Fatalf("transition %s failed: %v", ev.Kind(), res.Errors)
		}
	}

	apply(protocol.ChallengePosted{Challenge: protocol.MatchChallenge{
		MatchID:         "match-1",
		Challenger:      p1.identity,
		WagerAmount:     100,
		LeagueID:        0,
		TokenCommitment: commitment.CommitTokens(p1.tokens, p1.nonce),
		ArmyCommitment:  commitment.Commit("army", p1.nonce),
	}})
	apply(protocol.ChallengeAccepted{Acceptance: protocol.MatchAcceptance{
		MatchID:         "match-1",
		Acceptor:        p2.identity,
		TokenCommitment: commitment.CommitTokens(p2.tokens, p2.nonce),
		ArmyCommitment:  commitment.Commit("army", p2.nonce),
	}})
	apply(protocol.TokenRevealed{Reveal: protocol.TokenReveal{
		MatchID: "match-1", Player: p1.identity, Tokens: p1.tokens, Nonce: p1.nonce,
	}})
	apply(protocol.TokenRevealed{Reveal: protocol.TokenReveal{
		MatchID: "match-1", Player: p2.identity, Tokens: p2.tokens, Nonce: p2.nonce,
	}})

	for round := uint32(1); round <= uint32(rounds); round++ {
		for _, p := range []playerSetup{p1, p2} {
			nonce := p.nonce + "-r"
			positions := []int{p.position}
			abilities := []string{"none"}
			apply(protocol.MoveCommitted{Commitment: protocol.MoveCommitment{
				MatchID: "match-1", Player: p.identity, Round: round,
				Commitment: commitment.CommitMoves(positions, abilities, nonce),
			}})
			apply(protocol.MoveRevealed{Reveal: protocol.MoveReveal{
				MatchID: "match-1", Player: p.identity, Round: round,
				Positions: positions, Abilities: abilities, Nonce: nonce,
			}})
		}
	}

	for _, p := range []string{p1.identity, p2.identity} {
		apply(protocol.ResultSubmitted{Result: protocol.MatchResult{
			MatchID: "match-1", Player: p, ClaimedWinner: claimed,
		}})
	}

	if rec.Phase != match.PhaseAwaitingValidation {
		t.Fatalf("setup ended in phase %s, want awaiting_validation", rec.Phase)
	}
	return rec
}

// winningPositions scans both generated armies for a slot pair where the
// challenger's unit beats the acceptor's in a single exchange.
func winningPositions(t *testing.T, secret1, secret2 string) (int, int) {
	t.Helper()
	army1 := combat.GenerateArmy(secret1, 0)
	army2 := combat.GenerateArmy(secret2, 0)
	for i := 0; i < combat.ArmySize; i++ {
		for j := 0; j < combat.ArmySize; j++ {
			if combat.ResolveCombat(army1[i], army2[j]).Winner == combat.WinnerA {
				return i, j
			}
		}
	}
	t.Fatalf("no winning slot pair for secrets %q vs %q", secret1, secret2)
	return 0, 0
}

func TestValidateMatchHappyPath(t *testing.T) {
	pos1, pos2 := winningPositions(t, "p1-secret-a", "p2-secret-a")
	claimed := player1
	rec := buildRecord(t,
		playerSetup{player1, []string{"p1-secret-a", "p1-secret-b"}, "n1", pos1},
		playerSetup{player2, []string{"p2-secret-a", "p2-secret-b"}, "n2", pos2},
		3, &claimed)

	v := ValidateMatch(rec)

	if !v.Summary.IsValid() {
		t.Fatalf("summary not fully valid: %+v", v.Summary)
	}
	if v.Winner == nil || *v.Winner != player1 {
		t.Fatalf("winner = %v, want player1", v.Winner)
	}
	if len(v.Rounds) != 3 {
		t.Fatalf("replayed %d rounds, want 3", len(v.Rounds))
	}
	for _, rr := range v.Rounds {
		if rr.Winner != player1 {
			t.Fatalf("round %d winner = %q, want player1", rr.Round, rr.Winner)
		}
	}
}

func TestValidateMatchRejectsSwappedTokenReveal(t *testing.T) {
	pos1, pos2 := winningPositions(t, "p1-secret-a", "p2-secret-a")
	claimed := player1
	rec := buildRecord(t,
		playerSetup{player1, []string{"p1-secret-a", "p1-secret-b"}, "n1", pos1},
		playerSetup{player2, []string{"p2-secret-a", "p2-secret-b"}, "n2", pos2},
		1, &claimed)

	// Player 1 committed to [A,B] but the record now shows [X,Y]: the
	// reveal no longer matches the commitment.
	rec.Reveals[player1].Tokens = []string{"x-secret", "y-secret"}

	v := ValidateMatch(rec)

	if v.Summary.CommitmentsValid {
		t.Fatal("commitments reported valid for a swapped token reveal")
	}
	if v.Summary.CombatVerified {
		t.Fatal("combat verified despite aborting at the commitment check")
	}
	if v.Summary.IsValid() {
		t.Fatal("summary reported valid for a cheating player")
	}
	if !strings.Contains(v.Summary.ErrorDetail, player1) {
		t.Fatalf("error detail %q does not name the offender", v.Summary.ErrorDetail)
	}
}

func TestValidateMatchRejectsBadMoveReveal(t *testing.T) {
	pos1, pos2 := winningPositions(t, "p1-secret-a", "p2-secret-a")
	claimed := player1
	rec := buildRecord(t,
		playerSetup{player1, []string{"p1-secret-a"}, "n1", pos1},
		playerSetup{player2, []string{"p2-secret-a"}, "n2", pos2},
		2, &claimed)

	// Tamper with one revealed move after commitment.
	mv := rec.Reveals[player2].Moves[2]
	mv.Positions = []int{mv.Positions[0] + 1}
	rec.Reveals[player2].Moves[2] = mv

	v := ValidateMatch(rec)

	if v.Summary.CommitmentsValid {
		t.Fatal("commitments reported valid for a tampered move reveal")
	}
	if !strings.Contains(v.Summary.ErrorDetail, "round 2") {
		t.Fatalf("error detail %q does not name the round", v.Summary.ErrorDetail)
	}
}

func TestValidateMatchDraw(t *testing.T) {
	// Identical secrets and identical positions: every round is a mirror
	// match and the tally is equal.
	claimedDraw := (*string)(nil)
	rec := buildRecord(t,
		playerSetup{player1, []string{"same-secret"}, "n1", 3},
		playerSetup{player2, []string{"same-secret"}, "n2", 3},
		3, claimedDraw)

	v := ValidateMatch(rec)

	if !v.Summary.IsValid() {
		t.Fatalf("summary not valid for a clean draw: %+v", v.Summary)
	}
	if v.Winner != nil {
		t.Fatalf("winner = %q, want nil for a draw", *v.Winner)
	}
}

func TestValidateMatchClaimMismatch(t *testing.T) {
	pos1, pos2 := winningPositions(t, "p1-secret-a", "p2-secret-a")
	// Replay will decide player1; both players claim player2.
	claimed := player2
	rec := buildRecord(t,
		playerSetup{player1, []string{"p1-secret-a"}, "n1", pos1},
		playerSetup{player2, []string{"p2-secret-a"}, "n2", pos2},
		3, &claimed)

	v := ValidateMatch(rec)

	if v.Summary.WinnerConfirmed {
		t.Fatal("winner confirmed despite a mismatching claim")
	}
	if !v.Summary.CombatVerified {
		t.Fatal("combat not verified: the replay itself completed")
	}
	if v.Winner == nil || *v.Winner != player1 {
		t.Fatalf("authoritative winner = %v, want player1 regardless of claims", v.Winner)
	}
}

func TestValidateMatchEmptyTokenList(t *testing.T) {
	pos1, pos2 := winningPositions(t, "p1-secret-a", "p2-secret-a")
	claimed := player1
	rec := buildRecord(t,
		playerSetup{player1, []string{"p1-secret-a"}, "n1", pos1},
		playerSetup{player2, []string{"p2-secret-a"}, "n2", pos2},
		1, &claimed)

	// Force the pathological case: a verifying commitment over an empty
	// token list leaves nothing to generate an army from.
	rec.Reveals[player1].Tokens = nil
	rec.Commitments[player1].TokenCommitment = commitment.CommitTokens(nil, "n1")
	rec.Reveals[player1].TokenNonce = "n1"

	v := ValidateMatch(rec)

	if v.Summary.IsValid() {
		t.Fatal("summary valid despite empty revealed-token list")
	}
	if v.Summary.CombatVerified {
		t.Fatal("combat verified without any army to replay")
	}
	if !strings.Contains(v.Summary.ErrorDetail, "empty token list") {
		t.Fatalf("error detail = %q, want empty-token-list failure", v.Summary.ErrorDetail)
	}
}

func TestValidateMatchIgnoresUnpairedRounds(t *testing.T) {
	pos1, pos2 := winningPositions(t, "p1-secret-a", "p2-secret-a")
	claimed := player1
	rec := buildRecord(t,
		playerSetup{player1, []string{"p1-secret-a"}, "n1", pos1},
		playerSetup{player2, []string{"p2-secret-a"}, "n2", pos2},
		2, &claimed)

	// Player 1 has a round 9 reveal the opponent never matched; it must
	// not participate in the replay.
	rec.Commitments[player1].Moves[9] = commitment.CommitMoves([]int{pos1}, []string{"none"}, "x")
	rec.Reveals[player1].Moves[9] = match.MoveRevealData{Positions: []int{pos1}, Abilities: []string{"none"}, Nonce: "x"}

	v := ValidateMatch(rec)

	if len(v.Rounds) != 2 {
		t.Fatalf("replayed %d rounds, want 2 paired rounds only", len(v.Rounds))
	}
}
