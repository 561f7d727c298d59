package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	linesWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "instrctl",
			Subsystem: "comm",
			Name:      "lines_written_total",
			Help:      "Command lines written to instruments.",
		},
		[]string{"kind"},
	)
	linesRead = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "instrctl",
			Subsystem: "comm",
			Name:      "lines_read_total",
			Help:      "Response lines read from instruments.",
		},
		[]string{"kind"},
	)
	readTimeouts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "instrctl",
			Subsystem: "comm",
			Name:      "read_timeouts_total",
			Help:      "Reads that elapsed without seeing a terminator.",
		},
		[]string{"kind"},
	)
	queryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "instrctl",
			Subsystem: "comm",
			Name:      "query_duration_seconds",
			Help:      "Full write-then-read transaction duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(linesWritten, linesRead, readTimeouts, queryDuration)
	})
}

func RecordLineWritten(kind string) {
	RegisterMetrics()
	linesWritten.WithLabelValues(kind).Inc()
}

func RecordLineRead(kind string) {
	RegisterMetrics()
	linesRead.WithLabelValues(kind).Inc()
}

func RecordReadTimeout(kind string) {
	RegisterMetrics()
	readTimeouts.WithLabelValues(kind).Inc()
}

func RecordQuery(kind string, duration time.Duration) {
	RegisterMetrics()
	queryDuration.WithLabelValues(kind).Observe(duration.Seconds())
}
