package tracker

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	matchTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_tracker_transitions_total",
			Help: "Total number of match phase transitions",
		},
		[]string{"from_phase", "to_phase"},
	)

	activeMatches = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "match_tracker_active_matches",
			Help: "Number of tracked matches by phase",
		},
		[]string{"phase"},
	)

	eventsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_tracker_events_total",
			Help: "Inbound events by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	actionQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "match_tracker_action_queue_depth",
			Help: "Current depth of the outbound action queue",
		},
	)
)

func init() {
	prometheus.MustRegister(matchTransitions)
	prometheus.MustRegister(activeMatches)
	prometheus.MustRegister(eventsProcessed)
	prometheus.MustRegister(actionQueueDepth)
}
