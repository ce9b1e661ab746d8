package workers

import (
	"context"
	"encoding/json"
	"time"

	goredis "github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/EthnTuttle/manastr-sub000/pkgs/redis"
	"github.com/EthnTuttle/manastr-sub000/pkgs/tracker"
)

// ValidatorMonitor publishes validator liveness and tracker statistics
// to Redis so external dashboards can observe a fleet of validators
// without scraping each one's API.
type ValidatorMonitor struct {
	redisClient *goredis.Client
	keys        *redis.KeyBuilder
	tracker     *tracker.MatchTracker
	validatorID string
	interval    time.Duration
}

// NewValidatorMonitor creates a monitor for the given tracker.
func NewValidatorMonitor(redisClient *goredis.Client, keys *redis.KeyBuilder, t *tracker.MatchTracker, validatorID string, interval time.Duration) *ValidatorMonitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &ValidatorMonitor{
		redisClient: redisClient,
		keys:        keys,
		tracker:     t,
		validatorID: validatorID,
		interval:    interval,
	}
}

// Run publishes heartbeats and statistics snapshots until the context
// is cancelled. Redis failures are logged and retried on the next tick.
func (vm *ValidatorMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(vm.interval)
	defer ticker.Stop()

	vm.publish(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Infof("Validator monitor for %s stopped", vm.validatorID)
			return
		case <-ticker.C:
			vm.publish(ctx)
		}
	}
}

func (vm *ValidatorMonitor) publish(ctx context.Context) {
	stats := vm.tracker.GetStatistics()
	payload, err := json.Marshal(stats)
	if err != nil {
		log.WithError(err).Error("Failed to marshal tracker statistics")
		return
	}

	pipe := vm.redisClient.Pipeline()
	pipe.Set(ctx, redis.ValidatorHeartbeat(vm.validatorID), time.Now().Unix(), 5*time.Minute)
	pipe.Set(ctx, vm.keys.StatsCurrent(), payload, 24*time.Hour)
	pipe.HSet(ctx, vm.keys.StatsDaily(), time.Now().UTC().Format("2006-01-02"), stats.TotalMatches)
	pipe.Expire(ctx, vm.keys.StatsDaily(), 7*24*time.Hour)

	if _, err := pipe.Exec(ctx); err != nil {
		log.WithError(err).Error("Failed to publish validator statistics")
		return
	}

	log.WithFields(log.Fields{
		"validator_id":  vm.validatorID,
		"total_matches": stats.TotalMatches,
	}).Debug("Validator statistics published")
}

// Cleanup removes monitoring keys on shutdown so stale validators
// disappear from dashboards promptly.
func (vm *ValidatorMonitor) Cleanup(ctx context.Context) {
	keys := []string{
		redis.ValidatorHeartbeat(vm.validatorID),
		vm.keys.StatsCurrent(),
	}
	if err := vm.redisClient.Del(ctx, keys...).Err(); err != nil {
		log.WithError(err).Warn("Failed to clean up monitoring keys")
		return
	}
	log.Infof("Monitoring data for %s cleaned up", vm.validatorID)
}
