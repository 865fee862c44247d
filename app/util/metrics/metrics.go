package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cuecard",
			Subsystem: "guidance",
			Name:      "requests_total",
			Help:      "Generation requests by channel and outcome",
		},
		[]string{"channel", "outcome"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cuecard",
			Subsystem: "guidance",
			Name:      "request_duration_seconds",
			Help:      "Generation request duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"channel"},
	)

	CoalescedFragments = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cuecard",
			Subsystem: "guidance",
			Name:      "coalesced_fragments_total",
			Help:      "Fragments buffered while a guidance request was in flight",
		},
	)

	QueuedMessages = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "cuecard",
			Subsystem: "chat",
			Name:      "queued_messages",
			Help:      "Chat messages waiting behind the pending one",
		},
	)

	SessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cuecard",
			Subsystem: "session",
			Name:      "started_total",
			Help:      "Sessions started by persona",
		},
		[]string{"persona"},
	)
)
