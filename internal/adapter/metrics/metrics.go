package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ArchiveMetrics holds all Prometheus metrics for the archiver.
type ArchiveMetrics struct {
	PagesTotal      prometheus.Counter
	EventsTotal     *prometheus.CounterVec
	BatchFilesTotal prometheus.Counter
	BatchBytesTotal prometheus.Counter
	Running         prometheus.Gauge
	RequestDuration prometheus.Histogram
}

// NewArchiveMetrics initializes the metrics and registers them with reg.
func NewArchiveMetrics(reg prometheus.Registerer) *ArchiveMetrics {
	f := promauto.With(reg)
	return &ArchiveMetrics{
		PagesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: "ledger_archiver",
			Subsystem: "paginator",
			Name:      "pages_total",
			Help:      "Total number of event pages fetched.",
		}),
		EventsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger_archiver",
			Subsystem: "paginator",
			Name:      "events_total",
			Help:      "Total number of events processed by status.",
		}, []string{"status"}), // status: written, dropped, malformed
		BatchFilesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: "ledger_archiver",
			Subsystem: "batch",
			Name:      "files_total",
			Help:      "Total number of batch files written.",
		}),
		BatchBytesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: "ledger_archiver",
			Subsystem: "batch",
			Name:      "bytes_total",
			Help:      "Total number of bytes written to batch files.",
		}),
		Running: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "ledger_archiver",
			Subsystem: "paginator",
			Name:      "running",
			Help:      "1 while the paginator is fetching, 0 otherwise.",
		}),
		RequestDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ledger_archiver",
			Subsystem: "rpc",
			Name:      "request_duration_seconds",
			Help:      "Latency of event page requests.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}
