package match

import (
	"fmt"
	"math"
	"time"

	"github.com/EthnTuttle/manastr-sub000/pkgs/protocol"
)

// StateMachine encodes the protocol's legal progression as a function of
// (record, event). It holds no I/O handles; the only configuration it
// carries is what the Completed transition needs to mint the loot verdict.
type StateMachine struct {
	ValidatorID string
	FeePct      float64 // protocol fee taken from the total wager
}

// Result is the outcome of one transition: the actions to enqueue and any
// non-fatal errors. An unhandled (phase, event) pair leaves the record
// unchanged and reports an error; it never crashes the tracker.
type Result struct {
	Actions []protocol.Action
	Errors  []error
}

func (r *Result) emit(a protocol.Action) { r.Actions = append(r.Actions, a) }

func (r *Result) reject(format string, args ...interface{}) {
	r.Errors = append(r.Errors, fmt.Errorf(format, args...))
}

// Transition applies one event to a record, mutating it in place. The
// caller (the tracker) serializes calls per match id and is responsible
// for enqueueing the returned actions atomically with the mutation.
func (s *StateMachine) Transition(rec *Record, ev protocol.MatchEvent, now time.Time) Result {
	var res Result

	switch e := ev.(type) {
	case protocol.ChallengePosted:
		s.applyChallenge(rec, e.Challenge, &res)
	case protocol.ChallengeAccepted:
		s.applyAcceptance(rec, e.Acceptance, &res)
	case protocol.TokenRevealed:
		s.applyTokenReveal(rec, e.Reveal, &res)
	case protocol.MoveCommitted:
		s.applyMoveCommitment(rec, e.Commitment, &res)
	case protocol.MoveRevealed:
		s.applyMoveReveal(rec, e.Reveal, &res)
	case protocol.ResultSubmitted:
		s.applyResultClaim(rec, e.Result, &res)
	case protocol.ValidationCompleted:
		s.applyValidationVerdict(rec, e, now, &res)
	case protocol.InvalidationTriggered:
		s.invalidate(rec, e.Reason, &res)
	case protocol.TimeoutExpired:
		s.invalidate(rec, "timeout: no activity within the match TTL", &res)
	default:
		res.reject("match %s: unknown event type %T", rec.ID, ev)
	}

	return res
}

func (s *StateMachine) applyChallenge(rec *Record, c protocol.MatchChallenge, res *Result) {
	if rec.Phase != PhaseNew {
		res.reject("match %s: duplicate challenge in phase %s", rec.ID, rec.Phase)
		return
	}

	rec.Phase = PhaseChallenged
	rec.Challenger = c.Challenger
	rec.WagerAmount = c.WagerAmount
	rec.LeagueID = c.LeagueID

	pc := rec.commitmentsFor(c.Challenger)
	pc.TokenCommitment = c.TokenCommitment
	pc.ArmyCommitment = c.ArmyCommitment
}

func (s *StateMachine) applyAcceptance(rec *Record, a protocol.MatchAcceptance, res *Result) {
	if rec.Phase != PhaseChallenged {
		res.reject("match %s: acceptance in phase %s", rec.ID, rec.Phase)
		return
	}
	// Acceptances join strictly on match identifier, and a player cannot
	// accept their own challenge.
	if a.Acceptor == rec.Challenger {
		res.reject("match %s: challenger %s cannot accept own challenge", rec.ID, a.Acceptor)
		return
	}
	if a.Acceptor == "" {
		res.reject("match %s: acceptance without acceptor identity", rec.ID)
		return
	}

	rec.Phase = PhaseAccepted
	rec.Acceptor = a.Acceptor

	pc := rec.commitmentsFor(a.Acceptor)
	pc.TokenCommitment = a.TokenCommitment
	pc.ArmyCommitment = a.ArmyCommitment
}

func (s *StateMachine) applyTokenReveal(rec *Record, tr protocol.TokenReveal, res *Result) {
	if rec.Phase != PhaseAccepted {
		res.reject("match %s: token reveal in phase %s", rec.ID, rec.Phase)
		return
	}
	if !rec.IsPlayer(tr.Player) {
		res.reject("match %s: token reveal from non-participant %s", rec.ID, tr.Player)
		return
	}

	rv := rec.revealsFor(tr.Player)
	if rv.TokensRevealed {
		res.reject("match %s: duplicate token reveal from %s", rec.ID, tr.Player)
		return
	}

	rv.Tokens = append([]string(nil), tr.Tokens...)
	rv.TokenNonce = tr.Nonce
	rv.TokensRevealed = true

	res.emit(protocol.ValidateTokenCommitment{ID: rec.ID, Player: tr.Player})

	if rec.BothTokensRevealed() {
		rec.Phase = PhaseInCombat
		res.emit(protocol.GenerateArmies{ID: rec.ID})
	}
}

func (s *StateMachine) applyMoveCommitment(rec *Record, mc protocol.MoveCommitment, res *Result) {
	if rec.Phase != PhaseInCombat {
		res.reject("match %s: move commitment in phase %s", rec.ID, rec.Phase)
		return
	}
	if !rec.IsPlayer(mc.Player) {
		res.reject("match %s: move commitment from non-participant %s", rec.ID, mc.Player)
		return
	}

	pc := rec.commitmentsFor(mc.Player)
	if _, dup := pc.Moves[mc.Round]; dup {
		res.reject("match %s: duplicate move commitment from %s for round %d", rec.ID, mc.Player, mc.Round)
		return
	}
	pc.Moves[mc.Round] = mc.Commitment

	res.emit(protocol.ValidateMoveCommitment{ID: rec.ID, Player: mc.Player, Round: mc.Round})
}

func (s *StateMachine) applyMoveReveal(rec *Record, mr protocol.MoveReveal, res *Result) {
	if rec.Phase != PhaseInCombat {
		res.reject("match %s: move reveal in phase %s", rec.ID, rec.Phase)
		return
	}
	if !rec.IsPlayer(mr.Player) {
		res.reject("match %s: move reveal from non-participant %s", rec.ID, mr.Player)
		return
	}

	// A commitment must be on record strictly before its reveal.
	pc := rec.commitmentsFor(mr.Player)
	if _, ok := pc.Moves[mr.Round]; !ok {
		res.reject("match %s: move reveal from %s for uncommitted round %d", rec.ID, mr.Player, mr.Round)
		return
	}

	rv := rec.revealsFor(mr.Player)
	if _, dup := rv.Moves[mr.Round]; dup {
		res.reject("match %s: duplicate move reveal from %s for round %d", rec.ID, mr.Player, mr.Round)
		return
	}
	rv.Moves[mr.Round] = MoveRevealData{
		Positions: append([]int(nil), mr.Positions...),
		Abilities: append([]string(nil), mr.Abilities...),
		Nonce:     mr.Nonce,
	}

	if rec.RoundRevealedByBoth(mr.Round) {
		res.emit(protocol.ExecuteCombatRound{ID: rec.ID, Round: mr.Round})
	}
}

func (s *StateMachine) applyResultClaim(rec *Record, r protocol.MatchResult, res *Result) {
	if rec.Phase != PhaseInCombat {
		res.reject("match %s: result claim in phase %s", rec.ID, rec.Phase)
		return
	}
	if !rec.IsPlayer(r.Player) {
		res.reject("match %s: result claim from non-participant %s", rec.ID, r.Player)
		return
	}
	if _, dup := rec.Claims[r.Player]; dup {
		res.reject("match %s: duplicate result claim from %s", rec.ID, r.Player)
		return
	}

	claim := r
	rec.Claims[r.Player] = &claim

	if rec.BothClaimsSubmitted() {
		rec.Phase = PhaseAwaitingValidation
		res.emit(protocol.ValidateMatchResult{ID: rec.ID})
	}
}

func (s *StateMachine) applyValidationVerdict(rec *Record, v protocol.ValidationCompleted, now time.Time, res *Result) {
	if rec.Phase != PhaseAwaitingValidation {
		res.reject("match %s: validation verdict in phase %s", rec.ID, rec.Phase)
		return
	}

	if !v.Summary.IsValid() {
		s.invalidate(rec, fmt.Sprintf("validation failed: %s", v.Summary.ErrorDetail), res)
		return
	}

	rec.Phase = PhaseCompleted
	rec.Winner = v.Winner

	loot := s.buildLootDistribution(rec, v, now)
	rec.Loot = &loot

	if v.Winner != nil {
		res.emit(protocol.DistributeLoot{ID: rec.ID, Winner: *v.Winner, Amount: loot.LootAmount})
	}
	res.emit(protocol.PublishLootEvent{ID: rec.ID, Loot: loot})
	res.emit(protocol.ArchiveMatch{ID: rec.ID})
}

// buildLootDistribution builds the verdict payload exactly once, on the
// transition into Completed. Loot is floor(totalWager * (1 - fee)).
func (s *StateMachine) buildLootDistribution(rec *Record, v protocol.ValidationCompleted, now time.Time) protocol.LootDistribution {
	total := rec.WagerAmount * 2
	bps := uint64(math.Round(s.FeePct * 10000))
	lootAmount := total * (10000 - bps) / 10000

	return protocol.LootDistribution{
		MatchID:    rec.ID,
		Validator:  s.ValidatorID,
		Winner:     v.Winner,
		LootAmount: lootAmount,
		Fee:        total - lootAmount,
		IssuedAt:   now,
		Summary:    v.Summary,
	}
}

func (s *StateMachine) invalidate(rec *Record, reason string, res *Result) {
	if rec.Phase.IsTerminal() {
		res.reject("match %s: invalidation %q ignored in terminal phase %s", rec.ID, reason, rec.Phase)
		return
	}

	rec.Phase = PhaseInvalid
	rec.InvalidReason = reason
	res.emit(protocol.InvalidateMatch{ID: rec.ID, Reason: reason})
}
