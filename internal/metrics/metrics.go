// Package metrics exposes Prometheus collectors for the GC client.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "csgogc"

// Label names
const (
	LabelLanguage = "language"
	LabelResult   = "result"
	LabelEvent    = "event"
	LabelFlow     = "flow"
	LabelKind     = "kind"
)

// Router metrics
var (
	MessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Inbound GC messages by language and dispatch result.",
		},
		[]string{LabelLanguage, LabelResult},
	)

	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Outbound GC messages by language.",
		},
		[]string{LabelLanguage},
	)

	PendingWaiters = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_waiters",
			Help:      "Correlated response waiters currently registered.",
		},
	)
)

// Session and backpack metrics
var (
	SessionState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_state",
			Help:      "0 disconnected, 1 connected, 2 ready.",
		},
	)

	BackpackItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "backpack_items",
			Help:      "Top-level items in the backpack store.",
		},
	)

	CasketItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "casket_items",
			Help:      "Items known to live inside storage units.",
		},
	)

	ItemEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "item_events_total",
			Help:      "Backpack domain events emitted.",
		},
		[]string{LabelEvent},
	)

	Anomalies = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_anomalies_total",
			Help:      "Skipped records and invariant violations seen while reconciling.",
		},
		[]string{LabelKind},
	)

	Refreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backpack_refreshes_total",
			Help:      "Full backpack fetches by result.",
		},
		[]string{LabelResult},
	)
)

// Flow metrics
var (
	FlowDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flow_duration_seconds",
			Help:      "Interactive request/response flow latency.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{LabelFlow, LabelResult},
	)
)
