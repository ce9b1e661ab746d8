// Package archive persists completed and invalidated match records: the
// full record goes to IPFS, and a small index entry (CID plus outcome
// summary) goes to Redis with a configurable retention window.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/EthnTuttle/manastr-sub000/pkgs/match"
	"github.com/EthnTuttle/manastr-sub000/pkgs/protocol"
	rediskeys "github.com/EthnTuttle/manastr-sub000/pkgs/redis"
)

// ContentStore is the IPFS surface the archiver needs.
type ContentStore interface {
	StoreMatchArchive(ctx context.Context, data []byte) (string, error)
	RetrieveMatchArchive(ctx context.Context, cid string) ([]byte, error)
}

// IndexEntry is the Redis-side summary of one archived match.
type IndexEntry struct {
	MatchID    string    `json:"match_id"`
	CID        string    `json:"cid"`
	Phase      string    `json:"phase"`
	Winner     *string   `json:"winner,omitempty"`
	LootAmount uint64    `json:"loot_amount,omitempty"`
	ArchivedAt time.Time `json:"archived_at"`
}

// Archiver writes completed match records to IPFS and indexes them in
// Redis.
type Archiver struct {
	store     ContentStore
	redis     *goredis.Client
	keys      *rediskeys.KeyBuilder
	retention time.Duration
}

// New creates an archiver. Retention bounds how long index entries stay in
// Redis; zero means keep forever.
func New(store ContentStore, redisClient *goredis.Client, keys *rediskeys.KeyBuilder, retention time.Duration) *Archiver {
	return &Archiver{
		store:     store,
		redis:     redisClient,
		keys:      keys,
		retention: retention,
	}
}

// ArchiveMatch stores the full record in IPFS and writes the index entry.
func (a *Archiver) ArchiveMatch(ctx context.Context, rec *match.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal match %s: %w", rec.ID, err)
	}

	cid, err := a.store.StoreMatchArchive(ctx, data)
	if err != nil {
		return fmt.Errorf("failed to archive match %s: %w", rec.ID, err)
	}

	now := time.Now().UTC()
	entry := IndexEntry{
		MatchID:    rec.ID,
		CID:        cid,
		Phase:      rec.Phase.String(),
		Winner:     rec.Winner,
		ArchivedAt: now,
	}
	if rec.Loot != nil {
		entry.LootAmount = rec.Loot.LootAmount
	}

	entryData, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal index entry for %s: %w", rec.ID, err)
	}

	pipe := a.redis.Pipeline()
	pipe.Set(ctx, a.keys.ArchivedMatch(rec.ID), entryData, a.retention)
	pipe.ZAdd(ctx, a.keys.ArchiveTimeline(), goredis.Z{
		Score:  float64(now.Unix()),
		Member: rec.ID,
	})
	if rec.Phase == match.PhaseInvalid && rec.InvalidReason != "" {
		pipe.Set(ctx, a.keys.InvalidationReason(rec.ID), rec.InvalidReason, a.retention)
		pipe.ZAdd(ctx, a.keys.InvalidationTimeline(), goredis.Z{
			Score:  float64(now.Unix()),
			Member: rec.ID,
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to index archive for %s: %w", rec.ID, err)
	}

	log.WithFields(log.Fields{
		"match_id": rec.ID,
		"cid":      cid,
		"phase":    rec.Phase.String(),
	}).Info("Match archived")

	return nil
}

// RecordLootReceipt stores an issued loot distribution so clients can
// audit payouts after the live record has been swept.
func (a *Archiver) RecordLootReceipt(ctx context.Context, loot protocol.LootDistribution) error {
	data, err := json.Marshal(loot)
	if err != nil {
		return fmt.Errorf("failed to marshal loot receipt for %s: %w", loot.MatchID, err)
	}

	pipe := a.redis.Pipeline()
	pipe.Set(ctx, a.keys.LootReceipt(loot.MatchID), data, a.retention)
	pipe.ZAdd(ctx, a.keys.LootTimeline(), goredis.Z{
		Score:  float64(loot.IssuedAt.Unix()),
		Member: loot.MatchID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store loot receipt for %s: %w", loot.MatchID, err)
	}

	log.WithFields(log.Fields{
		"match_id":    loot.MatchID,
		"loot_amount": loot.LootAmount,
	}).Info("Loot receipt recorded")

	return nil
}

// Lookup returns the index entry for an archived match, or nil when no
// entry exists (expired or never archived).
func (a *Archiver) Lookup(ctx context.Context, matchID string) (*IndexEntry, error) {
	data, err := a.redis.Get(ctx, a.keys.ArchivedMatch(matchID)).Bytes()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read archive index for %s: %w", matchID, err)
	}

	var entry IndexEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to decode archive index for %s: %w", matchID, err)
	}
	return &entry, nil
}

// Retrieve fetches the full archived record from IPFS via the index.
func (a *Archiver) Retrieve(ctx context.Context, matchID string) (*match.Record, error) {
	entry, err := a.Lookup(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, fmt.Errorf("no archive entry for match %s", matchID)
	}

	data, err := a.store.RetrieveMatchArchive(ctx, entry.CID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch archive %s: %w", entry.CID, err)
	}

	var rec match.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode archived match %s: %w", matchID, err)
	}
	return &rec, nil
}
