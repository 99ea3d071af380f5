package observability

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "smsctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "smsctl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	dispatchBroadcasts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "smsctl",
			Subsystem: "dispatch",
			Name:      "broadcasts_total",
			Help:      "Inbound broadcasts by kind and terminal state.",
		},
		[]string{"kind", "state"},
	)
	dispatchStoreWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "smsctl",
			Subsystem: "dispatch",
			Name:      "store_writes_total",
			Help:      "Sent-message records written per recipient.",
		},
		[]string{"result"},
	)
	dispatchAlerts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "smsctl",
			Subsystem: "dispatch",
			Name:      "alerts_total",
			Help:      "Send-failure alerts by outcome.",
		},
		[]string{"result"},
	)
	dispatchRegistrations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "smsctl",
			Subsystem: "dispatch",
			Name:      "registrations_total",
			Help:      "Connector registrations by outcome.",
		},
		[]string{"result"},
	)
	busFrames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "smsctl",
			Subsystem: "bus",
			Name:      "frames_total",
			Help:      "Bus transport frames by direction and result.",
		},
		[]string{"direction", "result"},
	)
	kafkaMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "smsctl",
			Subsystem: "kafka",
			Name:      "messages_total",
			Help:      "Commands mirrored to Kafka.",
		},
		[]string{"topic", "success"},
	)
	kafkaDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "smsctl",
			Subsystem: "kafka",
			Name:      "publish_duration_seconds",
			Help:      "Kafka publish duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"topic", "success"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			dispatchBroadcasts, dispatchStoreWrites, dispatchAlerts, dispatchRegistrations,
			busFrames,
			kafkaMessages, kafkaDuration,
		)
	})
}

// Handler serves the default Prometheus registry.
func Handler() http.Handler {
	RegisterMetrics()
	return promhttp.Handler()
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordBroadcast(kind, state string) {
	RegisterMetrics()
	if kind == "" {
		kind = "none"
	}
	dispatchBroadcasts.WithLabelValues(kind, state).Inc()
}

func RecordStoreWrite(success bool) {
	RegisterMetrics()
	dispatchStoreWrites.WithLabelValues(resultLabel(success)).Inc()
}

// RecordAlert counts one alert outcome: "posted", "failed" or "malformed".
func RecordAlert(result string) {
	RegisterMetrics()
	dispatchAlerts.WithLabelValues(result).Inc()
}

func RecordRegistration(success bool) {
	RegisterMetrics()
	dispatchRegistrations.WithLabelValues(resultLabel(success)).Inc()
}

// RecordFrame counts one bus frame. direction is "in" or "out".
func RecordFrame(direction, result string) {
	RegisterMetrics()
	busFrames.WithLabelValues(direction, result).Inc()
}

func RecordKafkaPublish(topic string, duration time.Duration, success bool) {
	RegisterMetrics()
	successLabel := strconv.FormatBool(success)
	kafkaMessages.WithLabelValues(topic, successLabel).Inc()
	kafkaDuration.WithLabelValues(topic, successLabel).Observe(duration.Seconds())
}

func resultLabel(success bool) string {
	if success {
		return "ok"
	}
	return "error"
}
