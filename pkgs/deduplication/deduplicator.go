package deduplication

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	goredis "github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Deduplicator provides two-layer deduplication for gossip envelopes.
// A local LRU cache absorbs the common case of gossipsub redelivery;
// Redis SetNX catches duplicates across validator restarts.
type Deduplicator struct {
	redis      *goredis.Client
	localCache *lru.Cache[string, bool]
	ttl        time.Duration
	keyPrefix  string
}

// NewDeduplicator creates a deduplicator with a local LRU cache and a
// Redis backend. The Redis client may be nil, in which case only the
// local cache is consulted.
func NewDeduplicator(redisClient *goredis.Client, localCacheSize int, ttl time.Duration) (*Deduplicator, error) {
	cache, err := lru.New[string, bool](localCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU cache: %w", err)
	}

	return &Deduplicator{
		redis:      redisClient,
		localCache: cache,
		ttl:        ttl,
		keyPrefix:  "dedup:envelope:",
	}, nil
}

// CheckAndMark checks whether an envelope ID was seen before and marks
// it if not. Returns true if this is a NEW envelope that should be
// processed. Envelope IDs are already content hashes, so they are used
// as keys directly.
func (d *Deduplicator) CheckAndMark(ctx context.Context, envelopeID string) (bool, error) {
	if d.localCache.Contains(envelopeID) {
		log.Debugf("Dedup hit (local cache): %s", envelopeID)
		return false, nil
	}

	if d.redis == nil {
		d.localCache.Add(envelopeID, true)
		return true, nil
	}

	// SetNX only sets if the key doesn't exist; false means a peer
	// already delivered this envelope in a previous session.
	ok, err := d.redis.SetNX(ctx, d.keyPrefix+envelopeID, time.Now().Unix(), d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis SetNX failed: %w", err)
	}

	d.localCache.Add(envelopeID, true)
	if ok {
		log.Debugf("Dedup miss (new envelope): %s", envelopeID)
		return true, nil
	}

	log.Debugf("Dedup hit (redis): %s", envelopeID)
	return false, nil
}

// GetStats reports dedup key counts for monitoring.
func (d *Deduplicator) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := map[string]interface{}{
		"local_cache_size": d.localCache.Len(),
		"ttl_seconds":      d.ttl.Seconds(),
	}
	if d.redis == nil {
		return stats, nil
	}

	var cursor uint64
	var totalKeys int64
	for {
		keys, nextCursor, err := d.redis.Scan(ctx, cursor, d.keyPrefix+"*", 100).Result()
		if err != nil {
			return nil, err
		}
		totalKeys += int64(len(keys))
		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	stats["total_dedup_keys"] = totalKeys
	return stats, nil
}

// ClearLocal clears the local LRU cache.
func (d *Deduplicator) ClearLocal() {
	d.localCache.Purge()
	log.Info("Local deduplication cache cleared")
}
