// Package tracker owns the table of live matches. It routes inbound events
// to the right state machine, enforces capacity and inactivity limits, and
// forwards emitted actions to an ordered outbound queue consumed
// asynchronously by the executor. All mutation of a match record happens
// under the tracker's lock; action execution never does.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/EthnTuttle/manastr-sub000/pkgs/match"
	"github.com/EthnTuttle/manastr-sub000/pkgs/protocol"
)

// ErrCapacity is returned when a new match would exceed the configured
// limit. Events for already-tracked matches are unaffected.
var ErrCapacity = errors.New("match tracker at capacity")

// ErrUnknownMatch is returned by record accessors for untracked ids.
var ErrUnknownMatch = errors.New("unknown match")

// Config tunes one tracker instance. Instances are independent; tests run
// many of them in parallel.
type Config struct {
	ValidatorID          string
	FeePct               float64
	MaxConcurrentMatches int
	MatchTTL             time.Duration
	CleanupInterval      time.Duration
	GracePeriod          time.Duration

	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

// Statistics is a read-only snapshot of the tracker's state.
type Statistics struct {
	TotalMatches int            `json:"total_matches"`
	PhaseCounts  map[string]int `json:"phase_counts"`
	OldestMatch  *time.Time     `json:"oldest_match,omitempty"`
}

// MatchTracker runs many match state machines concurrently behind a single
// exclusive lock, which is adequate at this workload's scale.
type MatchTracker struct {
	cfg Config
	sm  *match.StateMachine
	now func() time.Time

	mu      sync.RWMutex
	matches map[string]*match.Record

	queue *actionQueue
}

// New creates a tracker with the given configuration.
func New(cfg Config) *MatchTracker {
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	return &MatchTracker{
		cfg:     cfg,
		sm:      &match.StateMachine{ValidatorID: cfg.ValidatorID, FeePct: cfg.FeePct},
		now:     now,
		matches: make(map[string]*match.Record),
		queue:   newActionQueue(),
	}
}

// ProcessEvent routes one event to its match's state machine. Events for
// the same match id are applied in call order. Only capacity rejection is
// surfaced as an error; transition-level errors are logged and absorbed.
func (t *MatchTracker) ProcessEvent(ev protocol.MatchEvent) error {
	id := ev.MatchID()
	if id == "" {
		eventsProcessed.WithLabelValues(ev.Kind(), "dropped").Inc()
		log.WithField("kind", ev.Kind()).Warn("Dropping event without match id")
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	rec, tracked := t.matches[id]
	if !tracked {
		if _, isChallenge := ev.(protocol.ChallengePosted); !isChallenge {
			eventsProcessed.WithLabelValues(ev.Kind(), "dropped").Inc()
			log.WithFields(log.Fields{
				"match_id": id,
				"kind":     ev.Kind(),
			}).Warn("Dropping event for unknown match")
			return nil
		}
		if len(t.matches) >= t.cfg.MaxConcurrentMatches {
			eventsProcessed.WithLabelValues(ev.Kind(), "rejected").Inc()
			return fmt.Errorf("match %s: %w (%d live)", id, ErrCapacity, len(t.matches))
		}
		rec = match.NewRecord(id, t.now())
		t.matches[id] = rec
	}

	t.applyLocked(rec, ev)
	return nil
}

// applyLocked runs one transition and enqueues its actions atomically with
// the record mutation. Caller holds the write lock.
func (t *MatchTracker) applyLocked(rec *match.Record, ev protocol.MatchEvent) {
	before := rec.Phase
	res := t.sm.Transition(rec, ev, t.now())

	rec.LastUpdated = t.now()
	rec.ActionCount += uint64(len(res.Actions))

	for _, err := range res.Errors {
		log.WithFields(log.Fields{
			"match_id": rec.ID,
			"kind":     ev.Kind(),
			"phase":    rec.Phase.String(),
		}).WithError(err).Warn("Transition error")
	}

	if rec.Phase != before {
		matchTransitions.WithLabelValues(before.String(), rec.Phase.String()).Inc()
		// A fresh record was never counted in any phase, so there is
		// nothing to decrement on its first transition.
		if before != match.PhaseNew {
			activeMatches.WithLabelValues(before.String()).Dec()
		}
		activeMatches.WithLabelValues(rec.Phase.String()).Inc()
		log.WithFields(log.Fields{
			"match_id": rec.ID,
			"from":     before.String(),
			"to":       rec.Phase.String(),
			"kind":     ev.Kind(),
		}).Info("Match phase transition")
	}

	if len(res.Errors) == 0 {
		eventsProcessed.WithLabelValues(ev.Kind(), "applied").Inc()
	} else {
		eventsProcessed.WithLabelValues(ev.Kind(), "errored").Inc()
	}

	t.queue.Push(res.Actions...)
	actionQueueDepth.Set(float64(t.queue.Len()))
}

// NextAction blocks until an action is available; ok is false once the
// tracker has been closed and the queue drained.
func (t *MatchTracker) NextAction() (protocol.Action, bool) {
	a, ok := t.queue.Pop()
	actionQueueDepth.Set(float64(t.queue.Len()))
	return a, ok
}

// GetMatchState returns a deep copy of a tracked match record.
func (t *MatchTracker) GetMatchState(id string) (*match.Record, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rec, ok := t.matches[id]
	if !ok {
		return nil, fmt.Errorf("match %s: %w", id, ErrUnknownMatch)
	}
	return rec.Clone(), nil
}

// WithRecord atomically applies fn to a tracked record under the write
// lock. The executor uses this to install generated armies and round
// results without racing concurrent transitions.
func (t *MatchTracker) WithRecord(id string, fn func(*match.Record) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.matches[id]
	if !ok {
		return fmt.Errorf("match %s: %w", id, ErrUnknownMatch)
	}
	if err := fn(rec); err != nil {
		return err
	}
	rec.LastUpdated = t.now()
	return nil
}

// GetStatistics returns phase counts and the oldest live match timestamp.
func (t *MatchTracker) GetStatistics() Statistics {
	t.mu.RLock()
	defer t.mu.RUnlock()

	stats := Statistics{
		TotalMatches: len(t.matches),
		PhaseCounts:  make(map[string]int),
	}
	for _, rec := range t.matches {
		stats.PhaseCounts[rec.Phase.String()]++
		if stats.OldestMatch == nil || rec.CreatedAt.Before(*stats.OldestMatch) {
			created := rec.CreatedAt
			stats.OldestMatch = &created
		}
	}
	return stats
}

// CleanupExpiredMatches forces idle non-terminal matches through a timeout
// invalidation (each exactly once, since the resulting phase is terminal)
// and removes terminal matches older than the grace period. Returns the
// number of matches timed out and removed.
func (t *MatchTracker) CleanupExpiredMatches() (timedOut, removed int) {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	for id, rec := range t.matches {
		idle := now.Sub(rec.LastUpdated)

		if rec.Phase.IsTerminal() {
			if idle > t.cfg.GracePeriod {
				activeMatches.WithLabelValues(rec.Phase.String()).Dec()
				delete(t.matches, id)
				removed++
			}
			continue
		}

		if idle > t.cfg.MatchTTL {
			t.applyLocked(rec, protocol.TimeoutExpired{ID: id})
			timedOut++
		}
	}

	if timedOut > 0 || removed > 0 {
		log.WithFields(log.Fields{
			"timed_out": timedOut,
			"removed":   removed,
			"live":      len(t.matches),
		}).Info("Cleanup sweep finished")
	}
	return timedOut, removed
}

// Run drives the periodic cleanup sweep until the context is cancelled.
func (t *MatchTracker) Run(ctx context.Context) {
	interval := t.cfg.CleanupInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.CleanupExpiredMatches()
		}
	}
}

// Close wakes any consumer blocked on NextAction. Queued actions remain
// consumable until drained.
func (t *MatchTracker) Close() {
	t.queue.Close()
}
