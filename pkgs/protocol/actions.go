package protocol

// Action is the closed union of work items the state machine emits. Actions
// are pushed onto the tracker's outbound queue and executed asynchronously;
// none of them run while the match table's lock is held.
type Action interface {
	// MatchID returns the match the action concerns.
	MatchID() string
	// Kind returns a stable name for logging and metrics.
	Kind() string

	action()
}

// ValidateTokenCommitment checks a player's revealed tokens against their
// stored token commitment.
type ValidateTokenCommitment struct {
	ID     string
	Player string
}

// ValidateMoveCommitment checks a player's revealed move against their
// stored move commitment for one round.
type ValidateMoveCommitment struct {
	ID     string
	Player string
	Round  uint32
}

// GenerateArmies derives both players' armies from their first revealed
// token and caches them on the match record.
type GenerateArmies struct {
	ID string
}

// ExecuteCombatRound canonically resolves one fully revealed round.
type ExecuteCombatRound struct {
	ID    string
	Round uint32
}

// ValidateMatchResult runs the full validation engine over the match.
type ValidateMatchResult struct {
	ID string
}

// DistributeLoot asks the mint collaborator to issue the winner's reward.
type DistributeLoot struct {
	ID     string
	Winner string
	Amount uint64
}

// PublishLootEvent publishes the signed LootDistribution to the relay.
type PublishLootEvent struct {
	ID   string
	Loot LootDistribution
}

// ArchiveMatch persists the completed match record.
type ArchiveMatch struct {
	ID string
}

// InvalidateMatch records and announces that a match ended Invalid.
type InvalidateMatch struct {
	ID     string
	Reason string
}

func (a ValidateTokenCommitment) MatchID() string { return a.ID }
func (a ValidateMoveCommitment) MatchID() string  { return a.ID }
func (a GenerateArmies) MatchID() string          { return a.ID }
func (a ExecuteCombatRound) MatchID() string      { return a.ID }
func (a ValidateMatchResult) MatchID() string     { return a.ID }
func (a DistributeLoot) MatchID() string          { return a.ID }
func (a PublishLootEvent) MatchID() string        { return a.ID }
func (a ArchiveMatch) MatchID() string            { return a.ID }
func (a InvalidateMatch) MatchID() string         { return a.ID }

func (ValidateTokenCommitment) Kind() string { return "validate_token_commitment" }
func (ValidateMoveCommitment) Kind() string  { return "validate_move_commitment" }
func (GenerateArmies) Kind() string          { return "generate_armies" }
func (ExecuteCombatRound) Kind() string      { return "execute_combat_round" }
func (ValidateMatchResult) Kind() string     { return "validate_match_result" }
func (DistributeLoot) Kind() string          { return "distribute_loot" }
func (PublishLootEvent) Kind() string        { return "publish_loot_event" }
func (ArchiveMatch) Kind() string            { return "archive_match" }
func (InvalidateMatch) Kind() string         { return "invalidate_match" }

func (ValidateTokenCommitment) action() {}
func (ValidateMoveCommitment) action()  {}
func (GenerateArmies) action()          {}
func (ExecuteCombatRound) action()      {}
func (ValidateMatchResult) action()     {}
func (DistributeLoot) action()          {}
func (PublishLootEvent) action()        {}
func (ArchiveMatch) action()            {}
func (InvalidateMatch) action()         {}
