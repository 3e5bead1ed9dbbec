// Package metrics provides Prometheus metrics for the console session.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rtconsole"

// Metrics holds all Prometheus metrics of a console session.
type Metrics struct {
	// Session metrics
	Connects        *prometheus.CounterVec
	SessionsActive  prometheus.Gauge
	ConnectDuration prometheus.Histogram

	// Protocol metrics
	Events         *prometheus.CounterVec
	ProtocolErrors prometheus.Counter

	// Audio metrics
	AudioFramesSent   prometheus.Counter
	AudioBytesSent    prometheus.Counter
	AudioBytesQueued  prometheus.Counter
	Interruptions     *prometheus.CounterVec
	PushToTalkPresses prometheus.Counter

	// Relay metrics
	RelayConnections prometheus.Gauge
	RelayMessages    *prometheus.CounterVec
}

// New creates all metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Connects: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connects_total",
			Help:      "Total number of connect attempts by result",
		}, []string{"result"}),
		SessionsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of currently connected sessions",
		}),
		ConnectDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "connect_duration_seconds",
			Help:      "Time to open devices and complete the session handshake",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),

		Events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Total number of realtime protocol events",
		}, []string{"source", "type"}),
		ProtocolErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_errors_total",
			Help:      "Total number of error events reported by the server",
		}),

		AudioFramesSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_sent_total",
			Help:      "Total captured audio frames forwarded to the session",
		}),
		AudioBytesSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_sent_total",
			Help:      "Total captured audio bytes forwarded to the session",
		}),
		AudioBytesQueued: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_queued_total",
			Help:      "Total assistant audio bytes queued for playback",
		}),
		Interruptions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interruptions_total",
			Help:      "Total playback interruptions by trigger",
		}, []string{"trigger"}),
		PushToTalkPresses: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_to_talk_total",
			Help:      "Total push-to-talk turns started",
		}),

		RelayConnections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "relay_connections_active",
			Help:      "Number of clients currently connected to the relay",
		}),
		RelayMessages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_messages_total",
			Help:      "Total messages forwarded by the relay",
		}, []string{"direction"}),
	}
}

// Handler serves the metrics registered with g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
