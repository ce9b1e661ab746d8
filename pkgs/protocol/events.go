package protocol

// MatchEvent is the closed union of events the tracker consumes. The first
// six variants arrive from the relay transport; InvalidationTriggered,
// TimeoutExpired and ValidationCompleted are raised internally by the
// cleanup sweep and the action executor.
type MatchEvent interface {
	// MatchID returns the match the event targets.
	MatchID() string
	// Kind returns a stable name for logging and metrics.
	Kind() string

	matchEvent()
}

// ChallengePosted announces a new challenge.
type ChallengePosted struct {
	Challenge MatchChallenge
}

// ChallengeAccepted joins an existing challenge.
type ChallengeAccepted struct {
	Acceptance MatchAcceptance
}

// TokenRevealed discloses one player's committed tokens.
type TokenRevealed struct {
	Reveal TokenReveal
}

// MoveCommitted binds a player to a round's move.
type MoveCommitted struct {
	Commitment MoveCommitment
}

// MoveRevealed discloses a committed move.
type MoveRevealed struct {
	Reveal MoveReveal
}

// ResultSubmitted carries a player's claimed outcome.
type ResultSubmitted struct {
	Result MatchResult
}

// InvalidationTriggered forces a match into the Invalid phase.
type InvalidationTriggered struct {
	ID     string
	Reason string
}

// TimeoutExpired is raised by the cleanup sweep for idle matches.
type TimeoutExpired struct {
	ID string
}

// ValidationCompleted is raised by the executor once the validation engine
// has produced its verdict for a match awaiting validation.
type ValidationCompleted struct {
	ID      string
	Summary ValidationSummary
	Winner  *string // authoritative replayed winner, nil for a draw
}

func (e ChallengePosted) MatchID() string        { return e.Challenge.MatchID }
func (e ChallengeAccepted) MatchID() string      { return e.Acceptance.MatchID }
func (e TokenRevealed) MatchID() string          { return e.Reveal.MatchID }
func (e MoveCommitted) MatchID() string          { return e.Commitment.MatchID }
func (e MoveRevealed) MatchID() string           { return e.Reveal.MatchID }
func (e ResultSubmitted) MatchID() string        { return e.Result.MatchID }
func (e InvalidationTriggered) MatchID() string  { return e.ID }
func (e TimeoutExpired) MatchID() string         { return e.ID }
func (e ValidationCompleted) MatchID() string    { return e.ID }

func (ChallengePosted) Kind() string       { return "challenge_posted" }
func (ChallengeAccepted) Kind() string     { return "challenge_accepted" }
func (TokenRevealed) Kind() string         { return "token_revealed" }
func (MoveCommitted) Kind() string         { return "move_committed" }
func (MoveRevealed) Kind() string          { return "move_revealed" }
func (ResultSubmitted) Kind() string       { return "result_submitted" }
func (InvalidationTriggered) Kind() string { return "invalidation_triggered" }
func (TimeoutExpired) Kind() string        { return "timeout_expired" }
func (ValidationCompleted) Kind() string   { return "validation_completed" }

func (ChallengePosted) matchEvent()       {}
func (ChallengeAccepted) matchEvent()     {}
func (TokenRevealed) matchEvent()         {}
func (MoveCommitted) matchEvent()         {}
func (MoveRevealed) matchEvent()          {}
func (ResultSubmitted) matchEvent()       {}
func (InvalidationTriggered) matchEvent() {}
func (TimeoutExpired) matchEvent()        {}
func (ValidationCompleted) matchEvent()   {}
