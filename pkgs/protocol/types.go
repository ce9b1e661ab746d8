// Package protocol defines the typed protocol messages players publish to
// the relay network, the closed union of inbound match events, and the
// closed union of outbound actions the tracker emits for asynchronous
// execution. Senders are authenticated by the transport before any of
// these types are constructed.
package protocol

import (
	"time"

	"github.com/EthnTuttle/manastr-sub000/pkgs/combat"
)

// MatchChallenge opens a match. The match identifier is assigned once from
// the transport's identifier for the challenge message and is the primary
// key for everything that follows.
type MatchChallenge struct {
	MatchID         string    `json:"match_id"`
	Challenger      string    `json:"challenger"`
	WagerAmount     uint64    `json:"wager_amount"`
	LeagueID        uint32    `json:"league_id"`
	TokenCommitment string    `json:"token_commitment"`
	ArmyCommitment  string    `json:"army_commitment"`
	ExpiresAt       time.Time `json:"expires_at"`
	CreatedAt       time.Time `json:"created_at"`
}

// MatchAcceptance joins an open challenge. It must reference an existing
// challenge by match identifier; acceptances are never paired
// heuristically.
type MatchAcceptance struct {
	MatchID         string    `json:"match_id"`
	Acceptor        string    `json:"acceptor"`
	TokenCommitment string    `json:"token_commitment"`
	ArmyCommitment  string    `json:"army_commitment"`
	AcceptedAt      time.Time `json:"accepted_at"`
}

// TokenReveal discloses the token secrets a player previously committed to.
type TokenReveal struct {
	MatchID    string    `json:"match_id"`
	Player     string    `json:"player"`
	Tokens     []string  `json:"tokens"`
	Nonce      string    `json:"nonce"`
	RevealedAt time.Time `json:"revealed_at"`
}

// MoveCommitment binds a player to a round's move before the opponent's
// move is known.
type MoveCommitment struct {
	MatchID     string    `json:"match_id"`
	Player      string    `json:"player"`
	Round       uint32    `json:"round"`
	Commitment  string    `json:"commitment"`
	CommittedAt time.Time `json:"committed_at"`
}

// MoveReveal discloses a previously committed move.
type MoveReveal struct {
	MatchID    string    `json:"match_id"`
	Player     string    `json:"player"`
	Round      uint32    `json:"round"`
	Positions  []int     `json:"positions"`
	Abilities  []string  `json:"abilities"`
	Nonce      string    `json:"nonce"`
	RevealedAt time.Time `json:"revealed_at"`
}

// RoundResult is the outcome of one combat round. Winner is the winning
// player's identity, or empty for a drawn round.
type RoundResult struct {
	Round  uint32 `json:"round"`
	Winner string `json:"winner,omitempty"`
}

// MatchResult is a player's claimed outcome. It is untrusted input: the
// validator's canonical replay always overrides it.
type MatchResult struct {
	MatchID       string        `json:"match_id"`
	Player        string        `json:"player"`
	FinalArmy     []combat.Unit `json:"final_army,omitempty"`
	RoundResults  []RoundResult `json:"round_results,omitempty"`
	ClaimedWinner *string       `json:"claimed_winner,omitempty"` // nil claims a draw
	SubmittedAt   time.Time     `json:"submitted_at"`
}

// ValidationSummary reports the four checks the validation engine performs.
type ValidationSummary struct {
	CommitmentsValid bool   `json:"commitments_valid"`
	CombatVerified   bool   `json:"combat_verified"`
	SignaturesValid  bool   `json:"signatures_valid"`
	WinnerConfirmed  bool   `json:"winner_confirmed"`
	ErrorDetail      string `json:"error_detail,omitempty"`
}

// IsValid reports whether all four checks passed.
func (s ValidationSummary) IsValid() bool {
	return s.CommitmentsValid && s.CombatVerified && s.SignaturesValid && s.WinnerConfirmed
}

// LootDistribution is the validator's signed, published verdict for a
// completed match. Produced at most once per match.
type LootDistribution struct {
	MatchID    string            `json:"match_id"`
	Validator  string            `json:"validator"`
	Winner     *string           `json:"winner,omitempty"` // nil means draw
	LootAmount uint64            `json:"loot_amount"`
	Fee        uint64            `json:"fee"`
	IssuedAt   time.Time         `json:"issued_at"`
	Summary    ValidationSummary `json:"summary"`
}
