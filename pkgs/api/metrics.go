package api

import "github.com/prometheus/client_golang/prometheus"

var (
	matchQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "match_api_query_duration_seconds",
			Help:    "Duration of match API queries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)
)

func init() {
	prometheus.MustRegister(matchQueryDuration)
}
