package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ReportsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tracking_reports_received_total",
		Help: "Total position reports received across all ingestion paths",
	})
	ReportsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tracking_reports_rejected_total",
		Help: "Reports rejected by the validator, by reason",
	}, []string{"reason"})
	StaleReports = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tracking_reports_stale_total",
		Help: "Reports discarded for falling outside the lateness window",
	})
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tracking_events_published_total",
		Help: "Events published onto the bus, by event type",
	}, []string{"type"})
	DroppedEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tracking_subscriber_dropped_events_total",
		Help: "Events dropped because a subscriber buffer was full",
	})
	PresenceTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tracking_presence_transitions_total",
		Help: "Presence transitions applied by the sweeper, by new status",
	}, []string{"status"})
	ObserverConnections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tracking_observer_connections_total",
		Help: "Total observer connections accepted",
	})
	ActiveObservers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tracking_observer_connections_active",
		Help: "Currently connected observers",
	})
	IngestLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tracking_ingest_latency_seconds",
		Help:    "Latency of a submitLocation call",
		Buckets: prometheus.DefBuckets,
	})
)

// ObserveIngestLatency records the time since start on the ingest histogram.
func ObserveIngestLatency(start time.Time) {
	IngestLatency.Observe(time.Since(start).Seconds())
}

// StartMetricsServer serves /metrics and /healthz on its own port. It
// blocks, so run it in a goroutine.
func StartMetricsServer(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(200)
		_, _ = w.Write([]byte("ok"))
	})
	_ = http.ListenAndServe(fmt.Sprintf(":%d", port), mux)
}
