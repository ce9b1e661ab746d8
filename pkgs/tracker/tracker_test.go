package tracker

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/EthnTuttle/manastr-sub000/pkgs/match"
	"github.com/EthnTuttle/manastr-sub000/pkgs/protocol"
)

// fakeClock is a manually advanced clock shared with the tracker under
// test.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestTracker(clock *fakeClock, maxMatches int) *MatchTracker {
	return New(Config{
		ValidatorID:          "validator-test",
		FeePct:               0.05,
		MaxConcurrentMatches: maxMatches,
		MatchTTL:             30 * time.Minute,
		GracePeriod:          5 * time.Minute,
		Clock:                clock.Now,
	})
}

func challenge(id, challenger string) protocol.ChallengePosted {
	return protocol.ChallengePosted{Challenge: protocol.MatchChallenge{
		MatchID:         id,
		Challenger:      challenger,
		WagerAmount:     100,
		TokenCommitment: "tc-" + challenger,
		ArmyCommitment:  "ac-" + challenger,
	}}
}

func acceptance(id, acceptor string) protocol.ChallengeAccepted {
	return protocol.ChallengeAccepted{Acceptance: protocol.MatchAcceptance{
		MatchID:         id,
		Acceptor:        acceptor,
		TokenCommitment: "tc-" + acceptor,
		ArmyCommitment:  "ac-" + acceptor,
	}}
}

// drainActions pops every currently queued action without blocking on an
// empty queue.
func drainActions(t *MatchTracker) []protocol.Action {
	var actions []protocol.Action
	for t.queue.Len() > 0 {
		a, ok := t.NextAction()
		if !ok {
			break
		}
		actions = append(actions, a)
	}
	return actions
}

func TestProcessEventCreatesMatchFromChallenge(t *testing.T) {
	tr := newTestTracker(newFakeClock(), 10)

	if err := tr.ProcessEvent(challenge("m1", "alice")); err != nil {
		t.Fatalf("ProcessEvent: %v", err)
	}

	rec, err := tr.GetMatchState("m1")
	if err != nil {
		t.Fatalf("GetMatchState: %v", err)
	}
	if rec.Phase != match.PhaseChallenged {
		t.Fatalf("phase = %s, want challenged", rec.Phase)
	}
}

func TestActiveMatchesGaugeOnFirstTransition(t *testing.T) {
	tr := newTestTracker(newFakeClock(), 10)

	newBefore := testutil.ToFloat64(activeMatches.WithLabelValues(match.PhaseNew.String()))
	challengedBefore := testutil.ToFloat64(activeMatches.WithLabelValues(match.PhaseChallenged.String()))

	if err := tr.ProcessEvent(challenge("m-gauge", "alice")); err != nil {
		t.Fatalf("ProcessEvent: %v", err)
	}

	// A fresh record is never counted as "new", so creating a match must
	// not drive that gauge negative.
	newAfter := testutil.ToFloat64(activeMatches.WithLabelValues(match.PhaseNew.String()))
	if newAfter != newBefore {
		t.Fatalf("new gauge moved from %v to %v on match creation", newBefore, newAfter)
	}
	challengedAfter := testutil.ToFloat64(activeMatches.WithLabelValues(match.PhaseChallenged.String()))
	if challengedAfter != challengedBefore+1 {
		t.Fatalf("challenged gauge = %v, want %v", challengedAfter, challengedBefore+1)
	}
}

func TestProcessEventDropsUnknownMatch(t *testing.T) {
	tr := newTestTracker(newFakeClock(), 10)

	err := tr.ProcessEvent(acceptance("missing", "bob"))

	if err != nil {
		t.Fatalf("unknown-match event should be dropped, got error %v", err)
	}
	if _, err := tr.GetMatchState("missing"); !errors.Is(err, ErrUnknownMatch) {
		t.Fatal("dropped event created a record")
	}
}

func TestCapacityRejectsOnlyNewMatches(t *testing.T) {
	const limit = 3
	tr := newTestTracker(newFakeClock(), limit)

	for i := 0; i < limit; i++ {
		if err := tr.ProcessEvent(challenge(fmt.Sprintf("m%d", i), "alice")); err != nil {
			t.Fatalf("match %d rejected below capacity: %v", i, err)
		}
	}

	err := tr.ProcessEvent(challenge("overflow", "alice"))
	if !errors.Is(err, ErrCapacity) {
		t.Fatalf("error = %v, want ErrCapacity", err)
	}

	// Existing matches keep accepting events at capacity.
	if err := tr.ProcessEvent(acceptance("m0", "bob")); err != nil {
		t.Fatalf("existing match rejected at capacity: %v", err)
	}
	rec, err := tr.GetMatchState("m0")
	if err != nil || rec.Phase != match.PhaseAccepted {
		t.Fatalf("existing match did not advance: %v %v", rec, err)
	}
}

func TestActionsAreEnqueuedInTransitionOrder(t *testing.T) {
	tr := newTestTracker(newFakeClock(), 10)
	tr.ProcessEvent(challenge("m1", "alice"))
	tr.ProcessEvent(acceptance("m1", "bob"))
	tr.ProcessEvent(protocol.TokenRevealed{Reveal: protocol.TokenReveal{
		MatchID: "m1", Player: "alice", Tokens: []string{"t1"}, Nonce: "n1",
	}})
	tr.ProcessEvent(protocol.TokenRevealed{Reveal: protocol.TokenReveal{
		MatchID: "m1", Player: "bob", Tokens: []string{"t2"}, Nonce: "n2",
	}})

	actions := drainActions(tr)

	kinds := make([]string, len(actions))
	for i, a := range actions {
		kinds[i] = a.Kind()
	}
	want := []string{"validate_token_commitment", "validate_token_commitment", "generate_armies"}
	if len(kinds) != len(want) {
		t.Fatalf("actions = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("action %d = %s, want %s (all: %v)", i, kinds[i], want[i], kinds)
		}
	}
}

func TestCleanupTimesOutIdleMatchExactlyOnce(t *testing.T) {
	clock := newFakeClock()
	tr := newTestTracker(clock, 10)
	tr.ProcessEvent(challenge("m1", "alice"))
	tr.ProcessEvent(acceptance("m1", "bob"))
	drainActions(tr)

	clock.Advance(31 * time.Minute)

	timedOut, _ := tr.CleanupExpiredMatches()
	if timedOut != 1 {
		t.Fatalf("timed out %d matches, want 1", timedOut)
	}

	rec, err := tr.GetMatchState("m1")
	if err != nil {
		t.Fatalf("GetMatchState after timeout: %v", err)
	}
	if rec.Phase != match.PhaseInvalid {
		t.Fatalf("phase = %s, want invalid", rec.Phase)
	}
	if !strings.Contains(rec.InvalidReason, "timeout") {
		t.Fatalf("reason = %q, want timeout", rec.InvalidReason)
	}

	actions := drainActions(tr)
	if len(actions) != 1 {
		t.Fatalf("first sweep enqueued %d actions, want exactly one InvalidateMatch", len(actions))
	}
	if _, ok := actions[0].(protocol.InvalidateMatch); !ok {
		t.Fatalf("action = %T, want InvalidateMatch", actions[0])
	}

	// A second sweep over the now-terminal match enqueues nothing.
	timedOut, _ = tr.CleanupExpiredMatches()
	if timedOut != 0 {
		t.Fatalf("second sweep timed out %d matches, want 0", timedOut)
	}
	if extra := drainActions(tr); len(extra) != 0 {
		t.Fatalf("second sweep enqueued %v", extra)
	}
}

func TestCleanupRemovesTerminalMatchesAfterGracePeriod(t *testing.T) {
	clock := newFakeClock()
	tr := newTestTracker(clock, 10)
	tr.ProcessEvent(challenge("m1", "alice"))
	tr.ProcessEvent(protocol.InvalidationTriggered{ID: "m1", Reason: "test"})
	drainActions(tr)

	// Inside the grace period the terminal record stays queryable.
	clock.Advance(4 * time.Minute)
	tr.CleanupExpiredMatches()
	if _, err := tr.GetMatchState("m1"); err != nil {
		t.Fatalf("terminal match removed inside grace period: %v", err)
	}

	clock.Advance(2 * time.Minute)
	_, removed := tr.CleanupExpiredMatches()
	if removed != 1 {
		t.Fatalf("removed %d, want 1", removed)
	}
	if _, err := tr.GetMatchState("m1"); !errors.Is(err, ErrUnknownMatch) {
		t.Fatal("terminal match still tracked after grace period")
	}
}

func TestGetStatistics(t *testing.T) {
	clock := newFakeClock()
	tr := newTestTracker(clock, 10)
	tr.ProcessEvent(challenge("m1", "alice"))
	clock.Advance(time.Minute)
	tr.ProcessEvent(challenge("m2", "carol"))
	tr.ProcessEvent(acceptance("m2", "dave"))

	stats := tr.GetStatistics()

	if stats.TotalMatches != 2 {
		t.Fatalf("total = %d, want 2", stats.TotalMatches)
	}
	if stats.PhaseCounts["challenged"] != 1 || stats.PhaseCounts["accepted"] != 1 {
		t.Fatalf("phase counts = %v", stats.PhaseCounts)
	}
	if stats.OldestMatch == nil || !stats.OldestMatch.Equal(newFakeClock().Now()) {
		t.Fatalf("oldest = %v, want first match's creation time", stats.OldestMatch)
	}
}

func TestWithRecordMutatesUnderLock(t *testing.T) {
	tr := newTestTracker(newFakeClock(), 10)
	tr.ProcessEvent(challenge("m1", "alice"))

	err := tr.WithRecord("m1", func(rec *match.Record) error {
		rec.RoundResults = append(rec.RoundResults, protocol.RoundResult{Round: 1, Winner: "alice"})
		return nil
	})
	if err != nil {
		t.Fatalf("WithRecord: %v", err)
	}

	rec, _ := tr.GetMatchState("m1")
	if len(rec.RoundResults) != 1 {
		t.Fatal("mutation not visible through GetMatchState")
	}

	if err := tr.WithRecord("missing", func(*match.Record) error { return nil }); !errors.Is(err, ErrUnknownMatch) {
		t.Fatalf("error = %v, want ErrUnknownMatch", err)
	}
}

func TestConcurrentEventProcessing(t *testing.T) {
	tr := newTestTracker(newFakeClock(), 200)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("m%d", i)
			tr.ProcessEvent(challenge(id, "alice"))
			tr.ProcessEvent(acceptance(id, "bob"))
			tr.GetStatistics()
		}(i)
	}
	wg.Wait()

	stats := tr.GetStatistics()
	if stats.TotalMatches != 100 {
		t.Fatalf("total = %d, want 100", stats.TotalMatches)
	}
	if stats.PhaseCounts["accepted"] != 100 {
		t.Fatalf("phase counts = %v, want 100 accepted", stats.PhaseCounts)
	}
}
