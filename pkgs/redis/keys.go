package redis

import "fmt"

// KeyBuilder provides methods to generate namespaced Redis keys. All keys
// are scoped by network namespace and validator identity so multiple
// validators can share one Redis instance.
type KeyBuilder struct {
	Namespace string
	Validator string
}

// NewKeyBuilder creates a new KeyBuilder instance.
func NewKeyBuilder(namespace, validatorID string) *KeyBuilder {
	return &KeyBuilder{
		Namespace: namespace,
		Validator: validatorID,
	}
}

// Archive Keys

// ArchivedMatch returns the key for an archived match record's CID and
// summary.
func (kb *KeyBuilder) ArchivedMatch(matchID string) string {
	return fmt.Sprintf("%s:%s:archive:match:%s", kb.Namespace, kb.Validator, matchID)
}

// ArchiveTimeline returns the ZSET key for archived matches ordered by
// completion time.
func (kb *KeyBuilder) ArchiveTimeline() string {
	return fmt.Sprintf("%s:%s:archive:timeline", kb.Namespace, kb.Validator)
}

// Loot Keys

// LootReceipt returns the key for a match's issued loot distribution.
func (kb *KeyBuilder) LootReceipt(matchID string) string {
	return fmt.Sprintf("%s:%s:loot:receipt:%s", kb.Namespace, kb.Validator, matchID)
}

// LootTimeline returns the ZSET key for loot distributions ordered by
// issuance time.
func (kb *KeyBuilder) LootTimeline() string {
	return fmt.Sprintf("%s:%s:loot:timeline", kb.Namespace, kb.Validator)
}

// Invalidation Keys

// InvalidationReason returns the key for a match's recorded invalidation
// reason.
func (kb *KeyBuilder) InvalidationReason(matchID string) string {
	return fmt.Sprintf("%s:%s:invalid:reason:%s", kb.Namespace, kb.Validator, matchID)
}

// InvalidationTimeline returns the ZSET key for invalidated matches
// ordered by invalidation time.
func (kb *KeyBuilder) InvalidationTimeline() string {
	return fmt.Sprintf("%s:%s:invalid:timeline", kb.Namespace, kb.Validator)
}

// Stats Keys

// StatsCurrent returns the key for the tracker's latest statistics
// snapshot.
func (kb *KeyBuilder) StatsCurrent() string {
	return fmt.Sprintf("%s:%s:stats:current", kb.Namespace, kb.Validator)
}

// StatsDaily returns the key for daily match statistics.
func (kb *KeyBuilder) StatsDaily() string {
	return fmt.Sprintf("%s:%s:stats:daily", kb.Namespace, kb.Validator)
}

// Monitoring Keys (not namespaced)

// ValidatorHeartbeat returns the key for validator liveness tracking.
func ValidatorHeartbeat(validatorID string) string {
	return fmt.Sprintf("validator:heartbeat:%s", validatorID)
}
