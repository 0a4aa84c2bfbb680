package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Session metrics for monitoring the message lifecycle inside the room session engine
var (
	// Message lifecycle metrics
	MessagesSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "session_messages_sent_total",
		Help: "Total number of messages sent optimistically",
	}, []string{"kind"})

	MessagesConfirmedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "session_messages_confirmed_total",
		Help: "Total number of provisional messages confirmed by the server",
	})

	MessagesExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "session_messages_expired_total",
		Help: "Total number of provisional messages that expired unconfirmed",
	})

	DuplicatesDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "session_duplicates_dropped_total",
		Help: "Total number of inbound events dropped as duplicates",
	}, []string{"reason"}) // "self_echo", "replay"

	// Transport metrics
	ReconnectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "session_transport_reconnects_total",
		Help: "Total number of successful transport reconnects",
	})

	PublishDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "session_publish_dropped_total",
		Help: "Total number of outbound publishes dropped while disconnected",
	}, []string{"kind"}) // "message", "typing"

	RoomsJoined = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "session_rooms_joined",
		Help: "Current number of rooms the transport considers joined",
	})

	// Call metrics
	CallTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "session_call_transitions_total",
		Help: "Total number of call state transitions",
	}, []string{"to"})

	// History metrics
	HistoryFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "session_history_fetch_duration_seconds",
		Help:    "Time taken to fetch the durable message history for a room",
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	})

	// Presence metrics
	TypingSignalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "session_typing_signals_total",
		Help: "Total number of typing signals processed",
	}, []string{"direction"}) // "inbound", "outbound"
)
