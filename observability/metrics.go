package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/wricardo/mcp-training/squarerelay/game/room"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "squarerelay",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "squarerelay",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	activeConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "squarerelay",
			Subsystem: "relay",
			Name:      "connections",
			Help:      "Active connections per room.",
		},
		[]string{"room"},
	)
	movementUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "squarerelay",
			Subsystem: "relay",
			Name:      "movement_updates_total",
			Help:      "Movement updates received per room.",
		},
		[]string{"room"},
	)
	deliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "squarerelay",
			Subsystem: "relay",
			Name:      "deliveries_total",
			Help:      "Outbound events handed to client queues.",
		},
		[]string{"event", "outcome"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, activeConnections, movementUpdates, deliveries)
	})
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

// RelayMetrics records relay activity. It satisfies relay.Observer.
type RelayMetrics struct{}

// NewRelayMetrics registers the collectors and returns a recorder
func NewRelayMetrics() RelayMetrics {
	RegisterMetrics()
	return RelayMetrics{}
}

func (RelayMetrics) Connected(name string) {
	activeConnections.WithLabelValues(name).Inc()
}

func (RelayMetrics) Disconnected(name string) {
	activeConnections.WithLabelValues(name).Dec()
}

func (RelayMetrics) Updated(name string) {
	movementUpdates.WithLabelValues(name).Inc()
}

func (RelayMetrics) Delivered(event string, d room.Delivery) {
	if d.Sent > 0 {
		deliveries.WithLabelValues(event, "sent").Add(float64(d.Sent))
	}
	if d.Failed > 0 {
		deliveries.WithLabelValues(event, "failed").Add(float64(d.Failed))
	}
}
