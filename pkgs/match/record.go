// Package match holds the per-match aggregate record and the state machine
// that encodes the protocol's legal progression. Records are mutated only
// through state-machine transitions dispatched by the tracker.
package match

import (
	"time"

	"github.com/EthnTuttle/manastr-sub000/pkgs/combat"
	"github.com/EthnTuttle/manastr-sub000/pkgs/protocol"
)

// Phase is a match's position in the protocol lifecycle.
type Phase uint8

const (
	// PhaseNew is a freshly allocated record whose challenge has not been
	// applied yet. It exists only inside a single tracker transition.
	PhaseNew Phase = iota
	PhaseChallenged
	PhaseAccepted
	PhaseInCombat
	PhaseAwaitingValidation
	PhaseCompleted
	PhaseInvalid
)

func (p Phase) String() string {
	switch p {
	case PhaseNew:
		return "new"
	case PhaseChallenged:
		return "challenged"
	case PhaseAccepted:
		return "accepted"
	case PhaseInCombat:
		return "in_combat"
	case PhaseAwaitingValidation:
		return "awaiting_validation"
	case PhaseCompleted:
		return "completed"
	case PhaseInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further transitions are possible.
func (p Phase) IsTerminal() bool {
	return p == PhaseCompleted || p == PhaseInvalid
}

// PlayerCommitments holds everything one player has committed to.
type PlayerCommitments struct {
	TokenCommitment string            `json:"token_commitment"`
	ArmyCommitment  string            `json:"army_commitment"`
	Moves           map[uint32]string `json:"moves"` // round -> commitment hash
}

// MoveRevealData is one revealed move: unit positions, ability tags and the
// nonce used at commitment time.
type MoveRevealData struct {
	Positions []int    `json:"positions"`
	Abilities []string `json:"abilities"`
	Nonce     string   `json:"nonce"`
}

// PlayerReveals holds everything one player has revealed.
type PlayerReveals struct {
	Tokens         []string                  `json:"tokens,omitempty"`
	TokenNonce     string                    `json:"token_nonce,omitempty"`
	TokensRevealed bool                      `json:"tokens_revealed"`
	Moves          map[uint32]MoveRevealData `json:"moves"`
}

// Record is the tracker's unit of truth for one match. A record's phase
// only advances (or jumps directly to Invalid); the match identifier is
// immutable and globally unique.
type Record struct {
	ID          string `json:"match_id"`
	Phase       Phase  `json:"phase"`
	Challenger  string `json:"challenger"`
	Acceptor    string `json:"acceptor,omitempty"`
	WagerAmount uint64 `json:"wager_amount"`
	LeagueID    uint32 `json:"league_id"`

	Commitments map[string]*PlayerCommitments     `json:"commitments"`
	Reveals     map[string]*PlayerReveals         `json:"reveals"`
	Armies      map[string]combat.Army            `json:"armies,omitempty"` // cached, populated once
	Claims      map[string]*protocol.MatchResult  `json:"claims,omitempty"`

	RoundResults []protocol.RoundResult      `json:"round_results,omitempty"`
	Winner       *string                     `json:"winner,omitempty"` // authoritative, nil until Completed (or draw)
	Loot         *protocol.LootDistribution  `json:"loot,omitempty"`
	InvalidReason string                     `json:"invalid_reason,omitempty"`

	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`
	ActionCount uint64    `json:"action_count"`
}

// NewRecord allocates an empty record for an incoming match identifier.
func NewRecord(id string, now time.Time) *Record {
	return &Record{
		ID:          id,
		Phase:       PhaseNew,
		Commitments: make(map[string]*PlayerCommitments),
		Reveals:     make(map[string]*PlayerReveals),
		Armies:      make(map[string]combat.Army),
		Claims:      make(map[string]*protocol.MatchResult),
		CreatedAt:   now,
		LastUpdated: now,
	}
}

// IsPlayer reports whether identity is one of the two match participants.
func (r *Record) IsPlayer(identity string) bool {
	return identity != "" && (identity == r.Challenger || identity == r.Acceptor)
}

// Players returns the participant identities known so far.
func (r *Record) Players() []string {
	players := make([]string, 0, 2)
	if r.Challenger != "" {
		players = append(players, r.Challenger)
	}
	if r.Acceptor != "" {
		players = append(players, r.Acceptor)
	}
	return players
}

// commitmentsFor returns (creating if needed) a player's commitment set.
func (r *Record) commitmentsFor(player string) *PlayerCommitments {
	c, ok := r.Commitments[player]
	if !ok {
		c = &PlayerCommitments{Moves: make(map[uint32]string)}
		r.Commitments[player] = c
	}
	return c
}

// revealsFor returns (creating if needed) a player's reveal set.
func (r *Record) revealsFor(player string) *PlayerReveals {
	rv, ok := r.Reveals[player]
	if !ok {
		rv = &PlayerReveals{Moves: make(map[uint32]MoveRevealData)}
		r.Reveals[player] = rv
	}
	return rv
}

// BothTokensRevealed reports whether each participant has revealed tokens.
func (r *Record) BothTokensRevealed() bool {
	for _, p := range []string{r.Challenger, r.Acceptor} {
		rv, ok := r.Reveals[p]
		if !ok || !rv.TokensRevealed {
			return false
		}
	}
	return r.Acceptor != ""
}

// RoundRevealedByBoth reports whether both participants have revealed their
// move for the given round.
func (r *Record) RoundRevealedByBoth(round uint32) bool {
	for _, p := range []string{r.Challenger, r.Acceptor} {
		rv, ok := r.Reveals[p]
		if !ok {
			return false
		}
		if _, ok := rv.Moves[round]; !ok {
			return false
		}
	}
	return r.Acceptor != ""
}

// BothClaimsSubmitted reports whether each participant has submitted a
// claimed result.
func (r *Record) BothClaimsSubmitted() bool {
	if r.Acceptor == "" {
		return false
	}
	_, c1 := r.Claims[r.Challenger]
	_, c2 := r.Claims[r.Acceptor]
	return c1 && c2
}

// SharedRounds returns, in ascending order, the rounds present in both
// players' revealed-move maps.
func (r *Record) SharedRounds() []uint32 {
	challenger, ok1 := r.Reveals[r.Challenger]
	acceptor, ok2 := r.Reveals[r.Acceptor]
	if !ok1 || !ok2 {
		return nil
	}

	var rounds []uint32
	for round := range challenger.Moves {
		if _, ok := acceptor.Moves[round]; ok {
			rounds = append(rounds, round)
		}
	}
	sortRounds(rounds)
	return rounds
}

func sortRounds(rounds []uint32) {
	for i := 1; i < len(rounds); i++ {
		for j := i; j > 0 && rounds[j] < rounds[j-1]; j-- {
			rounds[j], rounds[j-1] = rounds[j-1], rounds[j]
		}
	}
}

// Clone returns a deep copy of the record, safe to read outside the
// tracker's lock.
func (r *Record) Clone() *Record {
	cp := *r

	cp.Commitments = make(map[string]*PlayerCommitments, len(r.Commitments))
	for player, c := range r.Commitments {
		moves := make(map[uint32]string, len(c.Moves))
		for round, hash := range c.Moves {
			moves[round] = hash
		}
		cp.Commitments[player] = &PlayerCommitments{
			TokenCommitment: c.TokenCommitment,
			ArmyCommitment:  c.ArmyCommitment,
			Moves:           moves,
		}
	}

	cp.Reveals = make(map[string]*PlayerReveals, len(r.Reveals))
	for player, rv := range r.Reveals {
		moves := make(map[uint32]MoveRevealData, len(rv.Moves))
		for round, mv := range rv.Moves {
			moves[round] = MoveRevealData{
				Positions: append([]int(nil), mv.Positions...),
				Abilities: append([]string(nil), mv.Abilities...),
				Nonce:     mv.Nonce,
			}
		}
		cp.Reveals[player] = &PlayerReveals{
			Tokens:         append([]string(nil), rv.Tokens...),
			TokenNonce:     rv.TokenNonce,
			TokensRevealed: rv.TokensRevealed,
			Moves:          moves,
		}
	}

	cp.Armies = make(map[string]combat.Army, len(r.Armies))
	for player, army := range r.Armies {
		cp.Armies[player] = army
	}

	cp.Claims = make(map[string]*protocol.MatchResult, len(r.Claims))
	for player, claim := range r.Claims {
		claimCopy := *claim
		cp.Claims[player] = &claimCopy
	}

	cp.RoundResults = append([]protocol.RoundResult(nil), r.RoundResults...)

	if r.Winner != nil {
		w := *r.Winner
		cp.Winner = &w
	}
	if r.Loot != nil {
		loot := *r.Loot
		cp.Loot = &loot
	}

	return &cp
}
