package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "finex"

// Channel metrics
var (
	ChannelConnected = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "channel_connected",
		Help:      "1 if the channel for a role is connected",
	}, []string{"role"})

	Ready = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ready",
		Help:      "1 once every channel has connected at least once",
	})

	MessagesSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_sent_total",
		Help:      "Frames written per channel",
	}, []string{"role"})

	MessagesReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_received_total",
		Help:      "Frames read per channel",
	}, []string{"role"})
)

// Router metrics
var (
	MessagesRouted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_routed_total",
		Help:      "Inbound messages by classification",
	}, []string{"kind"})
)

// Correlator metrics
var (
	RequestsPending = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "requests_pending",
		Help:      "Requests awaiting a reply",
	})

	RequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "request_duration_seconds",
		Help:      "Time from send to completion",
		Buckets:   prometheus.DefBuckets,
	}, []string{"role", "outcome"})

	LateReplies = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "late_replies_total",
		Help:      "Replies that arrived after their request completed",
	})
)

// Command metrics
var (
	CommandsSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "commands_sent_total",
		Help:      "Order commands sent by opcode",
	}, []string{"opcode"})

	AuthAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_attempts_total",
		Help:      "Auth attempts by outcome",
	}, []string{"outcome"})

	JournalRows = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "journal_rows_total",
		Help:      "Journal rows by result",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(
		ChannelConnected,
		Ready,
		MessagesSent,
		MessagesReceived,
		MessagesRouted,
		RequestsPending,
		RequestDuration,
		LateReplies,
		CommandsSent,
		AuthAttempts,
		JournalRows,
	)
}

// Handler returns the HTTP handler serving registered metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
