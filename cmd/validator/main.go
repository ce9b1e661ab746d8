// The validator daemon. It follows the match relay network, replays every
// match it observes, and publishes loot distributions for the matches that
// validate.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/EthnTuttle/manastr-sub000/config"
	"github.com/EthnTuttle/manastr-sub000/pkgs/api"
	"github.com/EthnTuttle/manastr-sub000/pkgs/archive"
	"github.com/EthnTuttle/manastr-sub000/pkgs/deduplication"
	"github.com/EthnTuttle/manastr-sub000/pkgs/executor"
	"github.com/EthnTuttle/manastr-sub000/pkgs/ipfs"
	"github.com/EthnTuttle/manastr-sub000/pkgs/mint"
	"github.com/EthnTuttle/manastr-sub000/pkgs/p2p"
	"github.com/EthnTuttle/manastr-sub000/pkgs/redis"
	"github.com/EthnTuttle/manastr-sub000/pkgs/tracker"
	"github.com/EthnTuttle/manastr-sub000/pkgs/transport"
	"github.com/EthnTuttle/manastr-sub000/pkgs/workers"
)

func main() {
	if err := config.LoadConfig(); err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg := config.SettingsObj

	setupLogging(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis
	redisClient, err := redis.NewClient(cfg.RedisAddr(), cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	// IPFS
	ipfsClient, err := ipfs.NewClient(cfg.IPFSAPIURL)
	if err != nil {
		log.Fatalf("Failed to create IPFS client: %v", err)
	}
	if !ipfsClient.IsAvailable(ctx) {
		log.Warn("IPFS node not reachable at startup, archiving will retry per match")
	}

	// P2P host, DHT and gossipsub
	p2pHost, err := p2p.NewP2PHost(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to create P2P host: %v", err)
	}
	defer p2pHost.Close()

	privKey, err := validatorKey(cfg)
	if err != nil {
		log.Fatalf("Failed to load validator key: %v", err)
	}

	// Match tracker
	matchTracker := tracker.New(tracker.Config{
		ValidatorID:          cfg.ValidatorID,
		FeePct:               cfg.ProtocolFeePct,
		MaxConcurrentMatches: cfg.MaxConcurrentMatches,
		MatchTTL:             cfg.MatchTTL,
		CleanupInterval:      cfg.CleanupInterval,
		GracePeriod:          cfg.GracePeriod,
	})

	// Collaborators
	keys := redis.NewKeyBuilder("manastr", cfg.ValidatorID)
	archiver := archive.New(ipfsClient, redisClient, keys, cfg.ArchiveRetention)
	mintClient := mint.NewClient(cfg.MintURL, cfg.ValidatorID, cfg.MintTimeout)

	publisher, err := transport.NewPublisher(p2pHost.Pubsub, privKey, cfg.LootEventsTopic, cfg.ValidatorID)
	if err != nil {
		log.Fatalf("Failed to create loot publisher: %v", err)
	}
	defer publisher.Close()

	// Executor workers
	exec := executor.New(matchTracker, mintClient, publisher, archiver, cfg.ExecutorWorkers)
	execDone := make(chan struct{})
	go func() {
		exec.Run(ctx)
		close(execDone)
	}()

	// Inbound match events
	dedup, err := deduplication.NewDeduplicator(redisClient, cfg.DedupCacheSize, cfg.DedupTTL)
	if err != nil {
		log.Fatalf("Failed to create deduplicator: %v", err)
	}
	listener, err := transport.NewListener(p2pHost.Pubsub, p2pHost.Host.ID(), cfg.MatchEventsTopic, matchTracker, dedup)
	if err != nil {
		log.Fatalf("Failed to create match events listener: %v", err)
	}
	defer listener.Close()
	go listener.Run(ctx)

	// Timeout sweep
	go matchTracker.Run(ctx)

	// Heartbeat and statistics snapshots
	monitor := workers.NewValidatorMonitor(redisClient, keys, matchTracker, cfg.ValidatorID, 30*time.Second)
	go monitor.Run(ctx)

	// HTTP API
	apiServer := api.NewAPIServer(matchTracker, archiver, redisClient)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort),
		Handler: apiServer.Router(),
	}
	go func() {
		log.Infof("API server listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("API server failed")
		}
	}()

	// Prometheus metrics
	if cfg.MetricsEnabled {
		go func() {
			addr := fmt.Sprintf(":%d", cfg.MetricsPort)
			log.Infof("Metrics server listening on %s", addr)
			if err := http.ListenAndServe(addr, promhttp.Handler()); err != nil {
				log.WithError(err).Error("Metrics server failed")
			}
		}()
	}

	log.WithFields(log.Fields{
		"validator_id": cfg.ValidatorID,
		"peer_id":      p2pHost.Host.ID().String(),
	}).Info("Match validator running")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("Shutting down validator...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("API server shutdown failed")
	}

	monitor.Cleanup(shutdownCtx)

	// Closing the tracker drains the action queue and stops the workers.
	matchTracker.Close()
	select {
	case <-execDone:
	case <-shutdownCtx.Done():
		log.Warn("Executor did not drain before shutdown deadline")
	}
}

func setupLogging(cfg *config.Settings) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	if cfg.DebugMode {
		level = log.DebugLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})
}

// validatorKey loads the configured ed25519 key, or generates an ephemeral
// one so a fresh node can still join the network.
func validatorKey(cfg *config.Settings) (crypto.PrivKey, error) {
	if cfg.P2PPrivateKey != "" {
		keyBytes, err := hex.DecodeString(cfg.P2PPrivateKey)
		if err != nil {
			return nil, fmt.Errorf("failed to decode private key hex: %w", err)
		}
		return crypto.UnmarshalEd25519PrivateKey(keyBytes)
	}
	log.Warn("No validator key configured, generating an ephemeral one")
	privKey, _, err := crypto.GenerateEd25519Key(nil)
	return privKey, err
}
