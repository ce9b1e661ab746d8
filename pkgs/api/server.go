// Package api exposes the validator's read-only HTTP surface: live match
// state, tracker statistics and the archive index.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/EthnTuttle/manastr-sub000/pkgs/archive"
	"github.com/EthnTuttle/manastr-sub000/pkgs/tracker"
)

// APIServer provides HTTP API for match state queries
type APIServer struct {
	tracker  *tracker.MatchTracker
	archiver *archive.Archiver
	redis    *goredis.Client
}

// NewAPIServer creates a new API server. Archiver and redis may be nil in
// reduced deployments; the matching endpoints then report not found or
// degraded health.
func NewAPIServer(t *tracker.MatchTracker, a *archive.Archiver, redisClient *goredis.Client) *APIServer {
	return &APIServer{
		tracker:  t,
		archiver: a,
		redis:    redisClient,
	}
}

// Router creates the HTTP router with all endpoints
func (s *APIServer) Router() *mux.Router {
	r := mux.NewRouter()

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/match/{id}", s.handleGetMatch).Methods("GET")
	api.HandleFunc("/matches/statistics", s.handleGetStatistics).Methods("GET")
	api.HandleFunc("/archive/{id}", s.handleGetArchiveEntry).Methods("GET")

	api.HandleFunc("/health", s.handleHealthCheck).Methods("GET")

	r.Use(s.metricsMiddleware)
	r.Use(s.corsMiddleware)

	return r
}

// metricsMiddleware tracks API request metrics
func (s *APIServer) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		next.ServeHTTP(w, r)

		duration := time.Since(start).Seconds()
		matchQueryDuration.WithLabelValues(r.URL.Path).Observe(duration)
	})
}

// corsMiddleware adds CORS headers
func (s *APIServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// handleGetMatch returns the live state of a tracked match, falling back
// to the archive index for matches already swept from memory.
func (s *APIServer) handleGetMatch(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	matchID := vars["id"]

	timer := prometheus.NewTimer(matchQueryDuration.WithLabelValues("match_state"))
	defer timer.ObserveDuration()

	rec, err := s.tracker.GetMatchState(matchID)
	if err == nil {
		s.writeJSON(w, rec)
		return
	}
	if !errors.Is(err, tracker.ErrUnknownMatch) {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if s.archiver != nil {
		entry, lookupErr := s.archiver.Lookup(r.Context(), matchID)
		if lookupErr == nil && entry != nil {
			s.writeJSON(w, map[string]interface{}{
				"match_id": matchID,
				"archived": true,
				"entry":    entry,
			})
			return
		}
	}

	http.Error(w, "match not found", http.StatusNotFound)
}

// handleGetStatistics returns the tracker's statistics snapshot
func (s *APIServer) handleGetStatistics(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(matchQueryDuration.WithLabelValues("statistics"))
	defer timer.ObserveDuration()

	s.writeJSON(w, s.tracker.GetStatistics())
}

// handleGetArchiveEntry returns the archive index entry for a match
func (s *APIServer) handleGetArchiveEntry(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	matchID := vars["id"]

	timer := prometheus.NewTimer(matchQueryDuration.WithLabelValues("archive_entry"))
	defer timer.ObserveDuration()

	if s.archiver == nil {
		http.Error(w, "archive not configured", http.StatusNotFound)
		return
	}

	entry, err := s.archiver.Lookup(r.Context(), matchID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if entry == nil {
		http.Error(w, "no archive entry", http.StatusNotFound)
		return
	}
	s.writeJSON(w, entry)
}

// handleHealthCheck returns service health status
func (s *APIServer) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := context.Background()

	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			s.writeJSON(w, map[string]interface{}{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}

	stats := s.tracker.GetStatistics()
	s.writeJSON(w, map[string]interface{}{
		"status": "healthy",
		"stats": map[string]interface{}{
			"total_matches": stats.TotalMatches,
			"phase_counts":  stats.PhaseCounts,
		},
		"timestamp": time.Now().Unix(),
	})
}

// writeJSON writes JSON response
func (s *APIServer) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.WithError(err).Error("Failed to encode JSON response")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
