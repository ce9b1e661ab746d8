// Package executor consumes the tracker's outbound action queue and
// performs the work each action names: commitment checks, army generation,
// canonical round execution, full match validation, and the calls out to
// the mint, the relay publisher and the archiver. None of this runs while
// the match table's lock is held; verdicts re-enter the tracker as
// internal events.
package executor

import (
	"context"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/EthnTuttle/manastr-sub000/pkgs/combat"
	"github.com/EthnTuttle/manastr-sub000/pkgs/commitment"
	"github.com/EthnTuttle/manastr-sub000/pkgs/match"
	"github.com/EthnTuttle/manastr-sub000/pkgs/protocol"
	"github.com/EthnTuttle/manastr-sub000/pkgs/tracker"
	"github.com/EthnTuttle/manastr-sub000/pkgs/validation"
)

// MintClient issues reward tokens for validated winners.
type MintClient interface {
	IssueReward(ctx context.Context, recipient string, amount uint64, matchID string) (string, error)
}

// LootPublisher publishes signed validator verdicts to the relay network.
type LootPublisher interface {
	PublishLootDistribution(ctx context.Context, loot protocol.LootDistribution) error
	PublishInvalidation(ctx context.Context, matchID, reason string) error
}

// Archiver persists completed match records and loot receipts.
type Archiver interface {
	ArchiveMatch(ctx context.Context, rec *match.Record) error
	RecordLootReceipt(ctx context.Context, loot protocol.LootDistribution) error
}

// Executor runs one or more workers over the tracker's action queue.
type Executor struct {
	tracker   *tracker.MatchTracker
	mint      MintClient
	publisher LootPublisher
	archiver  Archiver
	workers   int

	wg sync.WaitGroup
}

// New creates an executor. Workers defaults to 1; with more than one
// worker the handlers stay safe because each one re-derives whatever
// deterministic state it needs.
func New(t *tracker.MatchTracker, mint MintClient, publisher LootPublisher, archiver Archiver, workers int) *Executor {
	if workers <= 0 {
		workers = 1
	}
	return &Executor{
		tracker:   t,
		mint:      mint,
		publisher: publisher,
		archiver:  archiver,
		workers:   workers,
	}
}

// Run starts the workers. They exit once the tracker is closed and its
// queue drained. Blocks until all workers return.
func (e *Executor) Run(ctx context.Context) {
	for i := 0; i < e.workers; i++ {
		e.wg.Add(1)
		go func(worker int) {
			defer e.wg.Done()
			for {
				action, ok := e.tracker.NextAction()
				if !ok {
					return
				}
				e.handle(ctx, action)
			}
		}(i)
	}
	e.wg.Wait()
}

func (e *Executor) handle(ctx context.Context, action protocol.Action) {
	logger := log.WithFields(log.Fields{
		"match_id": action.MatchID(),
		"action":   action.Kind(),
	})
	logger.Debug("Executing action")

	var err error
	switch a := action.(type) {
	case protocol.ValidateTokenCommitment:
		err = e.validateTokenCommitment(a)
	case protocol.ValidateMoveCommitment:
		err = e.validateMoveCommitment(a)
	case protocol.GenerateArmies:
		err = e.generateArmies(a)
	case protocol.ExecuteCombatRound:
		err = e.executeCombatRound(a)
	case protocol.ValidateMatchResult:
		err = e.validateMatchResult(a)
	case protocol.DistributeLoot:
		err = e.distributeLoot(ctx, a)
	case protocol.PublishLootEvent:
		if err = e.publisher.PublishLootDistribution(ctx, a.Loot); err == nil {
			err = e.archiver.RecordLootReceipt(ctx, a.Loot)
		}
	case protocol.ArchiveMatch:
		err = e.archiveMatch(ctx, a)
	case protocol.InvalidateMatch:
		err = e.publisher.PublishInvalidation(ctx, a.ID, a.Reason)
	default:
		err = fmt.Errorf("unknown action type %T", action)
	}

	if err != nil {
		logger.WithError(err).Error("Action execution failed")
	}
}

// invalidate feeds a failure back into the tracker as an invalidation
// event for the match.
func (e *Executor) invalidate(matchID, reason string) {
	if err := e.tracker.ProcessEvent(protocol.InvalidationTriggered{ID: matchID, Reason: reason}); err != nil {
		log.WithField("match_id", matchID).WithError(err).Error("Failed to invalidate match")
	}
}

func (e *Executor) validateTokenCommitment(a protocol.ValidateTokenCommitment) error {
	rec, err := e.tracker.GetMatchState(a.ID)
	if err != nil {
		return err
	}

	reveals, ok := rec.Reveals[a.Player]
	commits := rec.Commitments[a.Player]
	if !ok || commits == nil {
		e.invalidate(a.ID, fmt.Sprintf("token reveal from %s without commitment on record", a.Player))
		return nil
	}
	if !commitment.VerifyTokens(commits.TokenCommitment, reveals.Tokens, reveals.TokenNonce) {
		e.invalidate(a.ID, fmt.Sprintf("token commitment mismatch for player %s", a.Player))
	}
	return nil
}

func (e *Executor) validateMoveCommitment(a protocol.ValidateMoveCommitment) error {
	rec, err := e.tracker.GetMatchState(a.ID)
	if err != nil {
		return err
	}

	// Only the commitment's well-formedness can be checked at commit
	// time; the reveal is verified when it arrives via ValidateMatchResult
	// and, pre-emptively, here once present.
	reveals, ok := rec.Reveals[a.Player]
	if !ok {
		return nil
	}
	mv, revealed := reveals.Moves[a.Round]
	if !revealed {
		return nil
	}
	moveCommit := rec.Commitments[a.Player].Moves[a.Round]
	if !commitment.VerifyMoves(moveCommit, mv.Positions, mv.Abilities, mv.Nonce) {
		e.invalidate(a.ID, fmt.Sprintf("move commitment mismatch for player %s round %d", a.Player, a.Round))
	}
	return nil
}

func (e *Executor) generateArmies(a protocol.GenerateArmies) error {
	var badPlayer string
	err := e.tracker.WithRecord(a.ID, func(rec *match.Record) error {
		badPlayer = installArmies(rec)
		return nil
	})
	if err != nil {
		return err
	}
	if badPlayer != "" {
		e.invalidate(a.ID, fmt.Sprintf("player %s revealed an empty token list", badPlayer))
	}
	return nil
}

// installArmies caches both players' generated armies on the record,
// exactly once. Returns the identity of a player with no revealed tokens,
// if any.
func installArmies(rec *match.Record) string {
	if len(rec.Armies) == 2 {
		return ""
	}
	for _, player := range rec.Players() {
		reveals, ok := rec.Reveals[player]
		if !ok || len(reveals.Tokens) == 0 {
			return player
		}
	}
	for _, player := range rec.Players() {
		if _, cached := rec.Armies[player]; cached {
			continue
		}
		rec.Armies[player] = combat.GenerateArmy(rec.Reveals[player].Tokens[0], rec.LeagueID)
	}
	return ""
}

func (e *Executor) executeCombatRound(a protocol.ExecuteCombatRound) error {
	var failure string
	err := e.tracker.WithRecord(a.ID, func(rec *match.Record) error {
		for _, rr := range rec.RoundResults {
			if rr.Round == a.Round {
				return nil // already executed
			}
		}
		if bad := installArmies(rec); bad != "" {
			failure = fmt.Sprintf("player %s revealed an empty token list", bad)
			return nil
		}

		units := make([]combat.Unit, 0, 2)
		for _, player := range []string{rec.Challenger, rec.Acceptor} {
			mv, ok := rec.Reveals[player].Moves[a.Round]
			if !ok || len(mv.Positions) == 0 {
				failure = fmt.Sprintf("player %s has no usable move for round %d", player, a.Round)
				return nil
			}
			army := rec.Armies[player]
			units = append(units, army[combat.SlotForPosition(mv.Positions[0])])
		}

		result := combat.ResolveCombat(units[0], units[1])
		rr := protocol.RoundResult{Round: a.Round}
		switch result.Winner {
		case combat.WinnerA:
			rr.Winner = rec.Challenger
		case combat.WinnerB:
			rr.Winner = rec.Acceptor
		}
		rec.RoundResults = append(rec.RoundResults, rr)

		log.WithFields(log.Fields{
			"match_id": rec.ID,
			"round":    a.Round,
			"winner":   rr.Winner,
		}).Debug("Combat round executed")
		return nil
	})
	if err != nil {
		return err
	}
	if failure != "" {
		e.invalidate(a.ID, failure)
	}
	return nil
}

func (e *Executor) validateMatchResult(a protocol.ValidateMatchResult) error {
	rec, err := e.tracker.GetMatchState(a.ID)
	if err != nil {
		return err
	}

	verdict := validation.ValidateMatch(rec)

	// The canonical replay supersedes any incrementally executed rounds.
	if verdict.Summary.CombatVerified {
		if err := e.tracker.WithRecord(a.ID, func(r *match.Record) error {
			r.RoundResults = verdict.Rounds
			return nil
		}); err != nil {
			return err
		}
	}

	log.WithFields(log.Fields{
		"match_id": a.ID,
		"valid":    verdict.Summary.IsValid(),
		"detail":   verdict.Summary.ErrorDetail,
	}).Info("Match validated")

	return e.tracker.ProcessEvent(protocol.ValidationCompleted{
		ID:      a.ID,
		Summary: verdict.Summary,
		Winner:  verdict.Winner,
	})
}

func (e *Executor) distributeLoot(ctx context.Context, a protocol.DistributeLoot) error {
	handle, err := e.mint.IssueReward(ctx, a.Winner, a.Amount, a.ID)
	if err != nil {
		return fmt.Errorf("mint reward for %s: %w", a.Winner, err)
	}
	log.WithFields(log.Fields{
		"match_id": a.ID,
		"winner":   a.Winner,
		"amount":   a.Amount,
		"token":    handle,
	}).Info("Loot distributed")
	return nil
}

func (e *Executor) archiveMatch(ctx context.Context, a protocol.ArchiveMatch) error {
	rec, err := e.tracker.GetMatchState(a.ID)
	if err != nil {
		return err
	}
	return e.archiver.ArchiveMatch(ctx, rec)
}
