// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Gauges
	ConnectionsGauge      prometheus.Gauge
	ReadyConnectionsGauge prometheus.Gauge

	// Counters
	ConnectAttempts      prometheus.Counter
	ConnectFailures      *prometheus.CounterVec // reason
	Reconnects           prometheus.Counter
	ConfirmationTimeouts *prometheus.CounterVec // op
	CommandsSent         *prometheus.CounterVec // command
	MessagesReceived     prometheus.Counter
	CredentialExpired    prometheus.Counter
	TokenValidations     *prometheus.CounterVec // result

	// Histograms (seconds)
	BackoffSeconds  prometheus.Observer
	ConnectDuration prometheus.Observer
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		ConnectionsGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "chat_connections", Help: "Live chat connections held by the registry"})
		ReadyConnectionsGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "chat_connections_ready", Help: "Chat connections currently ready"})
		ConnectAttempts = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_connect_attempts_total", Help: "Number of chat connect attempts"})
		ConnectFailures = promauto.NewCounterVec(prometheus.CounterOpts{Name: "chat_connect_failures_total", Help: "Number of failed chat connect attempts"}, []string{"reason"})
		Reconnects = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_reconnects_total", Help: "Number of reconnects after a dropped transport"})
		ConfirmationTimeouts = promauto.NewCounterVec(prometheus.CounterOpts{Name: "chat_confirmation_timeouts_total", Help: "JOIN/PART/welcome confirmations that timed out"}, []string{"op"})
		CommandsSent = promauto.NewCounterVec(prometheus.CounterOpts{Name: "chat_commands_sent_total", Help: "IRC commands written to Twitch"}, []string{"command"})
		MessagesReceived = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_messages_received_total", Help: "PRIVMSG lines received in joined channels"})
		CredentialExpired = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_credential_expired_total", Help: "Connections aborted because the stored credential was rejected"})
		TokenValidations = promauto.NewCounterVec(prometheus.CounterOpts{Name: "chat_token_validations_total", Help: "Credential validations by outcome"}, []string{"result"})
		BackoffSeconds = promauto.NewHistogram(prometheus.HistogramOpts{Name: "chat_backoff_seconds", Help: "Backoff delay before a reconnect attempt", Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 120, 128}})
		ConnectDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "chat_connect_duration_seconds", Help: "Time from dial to ready", Buckets: prometheus.DefBuckets})
	})
}

// AddConnections adjusts the live connection gauge.
func AddConnections(delta int) {
	if ConnectionsGauge != nil {
		ConnectionsGauge.Add(float64(delta))
	}
}

// SetReady moves the ready gauge when a connection enters or leaves ready.
func SetReady(ready bool) {
	if ReadyConnectionsGauge == nil {
		return
	}
	if ready {
		ReadyConnectionsGauge.Inc()
	} else {
		ReadyConnectionsGauge.Dec()
	}
}

// Inc increments c if metrics were initialized.
func Inc(c prometheus.Counter) {
	if c != nil {
		c.Inc()
	}
}

// IncLabel increments vec{label} if metrics were initialized.
func IncLabel(vec *prometheus.CounterVec, label string) {
	if vec != nil {
		vec.WithLabelValues(label).Inc()
	}
}

// Observe records d on obs if metrics were initialized.
func Observe(obs prometheus.Observer, d time.Duration) {
	if obs != nil {
		obs.Observe(d.Seconds())
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	Observe(obs, d)
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
