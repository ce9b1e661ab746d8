package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Settings holds all configuration for the match validator
type Settings struct {
	// Core Identity
	ValidatorID string

	// Redis Configuration
	RedisHost     string
	RedisPort     string
	RedisDB       int
	RedisPassword string

	// P2P Network Configuration
	P2PPort        int
	P2PPrivateKey  string   // Hex-encoded ed25519 private key
	P2PPublicIP    string   // Public IP for NAT traversal
	BootstrapPeers []string // Bootstrap peer multiaddrs
	Rendezvous     string   // Rendezvous point for discovery

	// Gossipsub Topics
	MatchEventsTopic string
	LootEventsTopic  string

	// Match Tracker Configuration
	MaxConcurrentMatches int
	MatchTTL             time.Duration
	CleanupInterval      time.Duration
	GracePeriod          time.Duration

	// Executor Configuration
	ExecutorWorkers int

	// Envelope Deduplication
	DedupCacheSize int
	DedupTTL       time.Duration

	// Mint Configuration
	MintURL        string
	MintTimeout    time.Duration
	ProtocolFeePct float64

	// Archive Configuration
	IPFSAPIURL       string
	ArchiveRetention time.Duration

	// API Configuration
	APIHost string
	APIPort int

	// Monitoring & Debugging
	MetricsEnabled bool
	MetricsPort    int
	LogLevel       string
	DebugMode      bool
}

var (
	// SettingsObj is the global settings instance
	SettingsObj *Settings
)

// LoadConfig loads configuration from a .env file (if present) and
// environment variables, applying defaults for anything unset.
func LoadConfig() error {
	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file found, using environment variables only")
	}

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("VALIDATOR_ID", "manastr-validator")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_PASSWORD", "")

	v.SetDefault("P2P_PORT", 9001)
	v.SetDefault("P2P_PRIVATE_KEY", "")
	v.SetDefault("P2P_PUBLIC_IP", "")
	v.SetDefault("BOOTSTRAP_PEERS", "")
	v.SetDefault("RENDEZVOUS", "manastr-match-network")

	v.SetDefault("MATCH_EVENTS_TOPIC", "/manastr/match-events/all")
	v.SetDefault("LOOT_EVENTS_TOPIC", "/manastr/loot-events/all")

	v.SetDefault("MAX_CONCURRENT_MATCHES", 1000)
	v.SetDefault("MATCH_TTL", "30m")
	v.SetDefault("CLEANUP_INTERVAL", "5m")
	v.SetDefault("GRACE_PERIOD", "5m")

	v.SetDefault("EXECUTOR_WORKERS", 4)

	v.SetDefault("DEDUP_CACHE_SIZE", 8192)
	v.SetDefault("DEDUP_TTL", "1h")

	v.SetDefault("MINT_URL", "http://localhost:3338")
	v.SetDefault("MINT_TIMEOUT", "30s")
	v.SetDefault("PROTOCOL_FEE_PCT", 0.05)

	v.SetDefault("IPFS_API_URL", "127.0.0.1:5001")
	v.SetDefault("ARCHIVE_RETENTION", "168h")

	v.SetDefault("API_HOST", "0.0.0.0")
	v.SetDefault("API_PORT", 8080)

	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("METRICS_PORT", 9090)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DEBUG_MODE", false)

	var bootstrapPeers []string
	if raw := v.GetString("BOOTSTRAP_PEERS"); raw != "" {
		for _, p := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				bootstrapPeers = append(bootstrapPeers, trimmed)
			}
		}
	}

	SettingsObj = &Settings{
		ValidatorID: v.GetString("VALIDATOR_ID"),

		RedisHost:     v.GetString("REDIS_HOST"),
		RedisPort:     v.GetString("REDIS_PORT"),
		RedisDB:       v.GetInt("REDIS_DB"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),

		P2PPort:        v.GetInt("P2P_PORT"),
		P2PPrivateKey:  v.GetString("P2P_PRIVATE_KEY"),
		P2PPublicIP:    v.GetString("P2P_PUBLIC_IP"),
		BootstrapPeers: bootstrapPeers,
		Rendezvous:     v.GetString("RENDEZVOUS"),

		MatchEventsTopic: v.GetString("MATCH_EVENTS_TOPIC"),
		LootEventsTopic:  v.GetString("LOOT_EVENTS_TOPIC"),

		MaxConcurrentMatches: v.GetInt("MAX_CONCURRENT_MATCHES"),
		MatchTTL:             v.GetDuration("MATCH_TTL"),
		CleanupInterval:      v.GetDuration("CLEANUP_INTERVAL"),
		GracePeriod:          v.GetDuration("GRACE_PERIOD"),

		ExecutorWorkers: v.GetInt("EXECUTOR_WORKERS"),

		DedupCacheSize: v.GetInt("DEDUP_CACHE_SIZE"),
		DedupTTL:       v.GetDuration("DEDUP_TTL"),

		MintURL:        v.GetString("MINT_URL"),
		MintTimeout:    v.GetDuration("MINT_TIMEOUT"),
		ProtocolFeePct: v.GetFloat64("PROTOCOL_FEE_PCT"),

		IPFSAPIURL:       v.GetString("IPFS_API_URL"),
		ArchiveRetention: v.GetDuration("ARCHIVE_RETENTION"),

		APIHost: v.GetString("API_HOST"),
		APIPort: v.GetInt("API_PORT"),

		MetricsEnabled: v.GetBool("METRICS_ENABLED"),
		MetricsPort:    v.GetInt("METRICS_PORT"),
		LogLevel:       v.GetString("LOG_LEVEL"),
		DebugMode:      v.GetBool("DEBUG_MODE"),
	}

	if err := SettingsObj.validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log.WithFields(log.Fields{
		"validator_id":           SettingsObj.ValidatorID,
		"max_concurrent_matches": SettingsObj.MaxConcurrentMatches,
		"match_ttl":              SettingsObj.MatchTTL,
		"match_events_topic":     SettingsObj.MatchEventsTopic,
	}).Info("Configuration loaded")

	return nil
}

func (s *Settings) validate() error {
	if s.MaxConcurrentMatches <= 0 {
		return fmt.Errorf("MAX_CONCURRENT_MATCHES must be positive, got %d", s.MaxConcurrentMatches)
	}
	if s.MatchTTL <= 0 {
		return fmt.Errorf("MATCH_TTL must be positive, got %s", s.MatchTTL)
	}
	if s.ProtocolFeePct < 0 || s.ProtocolFeePct >= 1 {
		return fmt.Errorf("PROTOCOL_FEE_PCT must be in [0, 1), got %f", s.ProtocolFeePct)
	}
	return nil
}

// RedisAddr returns the host:port address for the Redis connection.
func (s *Settings) RedisAddr() string {
	return fmt.Sprintf("%s:%s", s.RedisHost, s.RedisPort)
}
