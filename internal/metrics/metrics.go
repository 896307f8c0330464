package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Processing metrics
var (
	MessagesProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "email_automation_messages_processed_total",
			Help: "Total number of inbound messages run through the routing pipeline",
		},
	)

	MessagesRouted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "email_automation_messages_routed_total",
			Help: "Messages by terminal outcome",
		},
		[]string{"outcome"},
	)

	PendingDecisions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "email_automation_pending_decisions",
			Help: "Current number of decisions awaiting approval or timeout",
		},
	)

	CollaboratorErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "email_automation_collaborator_errors_total",
			Help: "Failures of external collaborators by name",
		},
		[]string{"collaborator"},
	)
)
