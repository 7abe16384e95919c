package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Message outcomes recorded by the dialog controller.
const (
	OutcomeAsked            = "asked"
	OutcomeSearched         = "searched"
	OutcomeSearchFailed     = "search_failed"
	OutcomeExtractionFailed = "extraction_failed"
)

var (
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_messages_total",
			Help: "Total number of chat messages processed, by outcome",
		},
		[]string{"outcome"},
	)

	FilterGroupsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_filter_groups_dropped_total",
			Help: "Filter groups discarded because they failed validation",
		},
		[]string{"group"},
	)

	ExtractionFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_extraction_failures_total",
			Help: "Extraction calls that failed or returned an unusable payload",
		},
		[]string{"kind"},
	)

	SearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agent_search_duration_seconds",
			Help:    "Duration of property searches against the data store",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"result"},
	)
)
