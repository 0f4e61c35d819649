package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	pebblestore "github.com/rzbill/logkv/internal/storage/pebble"
)

// StorageMetrics implements pebblestore.MetricsHook. The db label tells
// the log database apart from the local store database.
type StorageMetrics struct {
	BytesWritten *prometheus.CounterVec
	BytesRead    *prometheus.CounterVec
	WriteLatency *prometheus.HistogramVec
	ReadLatency  *prometheus.HistogramVec
	BatchOps     *prometheus.CounterVec
	BatchLatency *prometheus.HistogramVec
}

func newStorageMetrics(r *Registry) *StorageMetrics {
	labels := []string{"db"}
	return &StorageMetrics{
		BytesWritten: r.newCounterVec(prometheus.CounterOpts{
			Subsystem: "storage",
			Name:      "bytes_written_total",
			Help:      "Bytes written to Pebble",
		}, labels),
		BytesRead: r.newCounterVec(prometheus.CounterOpts{
			Subsystem: "storage",
			Name:      "bytes_read_total",
			Help:      "Bytes read from Pebble",
		}, labels),
		WriteLatency: r.newHistogramVec(prometheus.HistogramOpts{
			Subsystem: "storage",
			Name:      "write_duration_seconds",
			Help:      "Latency of single-key writes",
		}, labels),
		ReadLatency: r.newHistogramVec(prometheus.HistogramOpts{
			Subsystem: "storage",
			Name:      "read_duration_seconds",
			Help:      "Latency of point reads",
		}, labels),
		BatchOps: r.newCounterVec(prometheus.CounterOpts{
			Subsystem: "storage",
			Name:      "batch_ops_total",
			Help:      "Operations committed through batches",
		}, labels),
		BatchLatency: r.newHistogramVec(prometheus.HistogramOpts{
			Subsystem: "storage",
			Name:      "batch_commit_duration_seconds",
			Help:      "Latency of batch commits",
		}, labels),
	}
}

// Hook returns a pebblestore.MetricsHook that labels observations with db.
func (m *StorageMetrics) Hook(db string) pebblestore.MetricsHook {
	return storageHook{m: m, db: db}
}

type storageHook struct {
	m  *StorageMetrics
	db string
}

func (h storageHook) ObserveWrite(elapsed time.Duration, bytes int) {
	h.m.WriteLatency.WithLabelValues(h.db).Observe(seconds(elapsed))
	h.m.BytesWritten.WithLabelValues(h.db).Add(float64(bytes))
}

func (h storageHook) ObserveRead(elapsed time.Duration, bytes int) {
	h.m.ReadLatency.WithLabelValues(h.db).Observe(seconds(elapsed))
	h.m.BytesRead.WithLabelValues(h.db).Add(float64(bytes))
}

func (h storageHook) ObserveBatchCommit(elapsed time.Duration, numOps int, bytes int) {
	h.m.BatchLatency.WithLabelValues(h.db).Observe(seconds(elapsed))
	h.m.BatchOps.WithLabelValues(h.db).Add(float64(numOps))
	h.m.BytesWritten.WithLabelValues(h.db).Add(float64(bytes))
}
