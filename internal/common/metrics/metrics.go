// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LeadsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leads_ingested_total",
			Help: "Total number of raw leads fetched from news feeds",
		},
		[]string{"company"},
	)

	LeadsScored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leads_scored_total",
			Help: "Total number of leads scored, by outcome",
		},
		[]string{"outcome"},
	)

	LeadsDeduplicated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leads_deduplicated_total",
			Help: "Total number of leads dropped as duplicates",
		},
		[]string{"tier"},
	)

	LeadDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_decisions_total",
			Help: "Total number of review decisions, by result",
		},
		[]string{"decision"},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Total number of notifications sent, by channel and status",
		},
		[]string{"channel", "status"},
	)

	PipelineRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "pipeline_run_duration_seconds",
			Help: "Duration of a full scrape/score/dedup cycle in seconds",
		},
		[]string{"portfolio"},
	)

	ScoringDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "lead_scoring_duration_seconds",
			Help: "Duration of a single scoring call in seconds",
		},
		[]string{"endpoint"},
	)
)
