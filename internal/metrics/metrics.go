package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EntriesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inbox_webhook_entries_total",
			Help: "Webhook entries processed, by platform and outcome.",
		},
		[]string{"platform", "outcome"},
	)

	MessagesStored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inbox_messages_stored_total",
			Help: "Normalized messages persisted, by platform.",
		},
		[]string{"platform"},
	)

	DuplicatesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inbox_duplicate_events_total",
			Help: "Webhook events skipped because they were already processed.",
		},
		[]string{"platform"},
	)

	PushDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inbox_push_deliveries_total",
			Help: "Web push delivery attempts, by result.",
		},
		[]string{"result"},
	)
)

// Entry outcomes
const (
	OutcomeProcessed = "processed"
	OutcomeFailed    = "failed"
)

// Push results
const (
	PushSent  = "sent"
	PushGone  = "gone"
	PushError = "error"
)

// RecordEntry counts one processed webhook entry.
func RecordEntry(platform, outcome string) {
	EntriesProcessed.WithLabelValues(platform, outcome).Inc()
}

// RecordMessageStored counts one persisted message.
func RecordMessageStored(platform string) {
	MessagesStored.WithLabelValues(platform).Inc()
}

// RecordDuplicate counts one deduplicated event.
func RecordDuplicate(platform string) {
	DuplicatesSkipped.WithLabelValues(platform).Inc()
}

// RecordPush counts one push delivery attempt.
func RecordPush(result string) {
	PushDeliveries.WithLabelValues(result).Inc()
}
