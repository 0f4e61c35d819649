package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rzbill/logkv/internal/storereader"
)

// ReaderMetrics implements storereader.Metrics.
type ReaderMetrics struct {
	AppliedOffset    prometheus.Gauge
	RecordsConsumed  *prometheus.CounterVec
	CommitLatency    prometheus.Histogram
	CommitErrors     prometheus.Counter
	WaitLatency      *prometheus.HistogramVec
	LoopTerminations *prometheus.CounterVec
}

var _ storereader.Metrics = (*ReaderMetrics)(nil)

func newReaderMetrics(r *Registry) *ReaderMetrics {
	return &ReaderMetrics{
		AppliedOffset: r.newGauge(prometheus.GaugeOpts{
			Subsystem: "reader",
			Name:      "applied_offset",
			Help:      "Highest log offset applied to the local store",
		}),
		RecordsConsumed: r.newCounterVec(prometheus.CounterOpts{
			Subsystem: "reader",
			Name:      "records_consumed_total",
			Help:      "Records consumed from the log by outcome",
		}, []string{"outcome"}),
		CommitLatency: r.newHistogram(prometheus.HistogramOpts{
			Subsystem: "reader",
			Name:      "commit_duration_seconds",
			Help:      "Latency of consumer offset commits",
		}),
		CommitErrors: r.newCounter(prometheus.CounterOpts{
			Subsystem: "reader",
			Name:      "commit_errors_total",
			Help:      "Failed consumer offset commits",
		}),
		WaitLatency: r.newHistogramVec(prometheus.HistogramOpts{
			Subsystem: "reader",
			Name:      "wait_duration_seconds",
			Help:      "Time callers spent waiting for an offset to be applied",
		}, []string{"result"}),
		LoopTerminations: r.newCounterVec(prometheus.CounterOpts{
			Subsystem: "reader",
			Name:      "loop_terminations_total",
			Help:      "Reader loop terminations by error kind",
		}, []string{"kind"}),
	}
}

func (m *ReaderMetrics) SetAppliedOffset(offset int64) {
	m.AppliedOffset.Set(float64(offset))
}

func (m *ReaderMetrics) RecordConsumed(outcome storereader.Outcome) {
	m.RecordsConsumed.WithLabelValues(string(outcome)).Inc()
}

func (m *ReaderMetrics) ObserveCommit(elapsed time.Duration, err error) {
	m.CommitLatency.Observe(seconds(elapsed))
	if err != nil {
		m.CommitErrors.Inc()
	}
}

// ObserveWait labels timeouts separately from other failures.
func (m *ReaderMetrics) ObserveWait(elapsed time.Duration, err error) {
	label := result(err)
	if errors.Is(err, storereader.ErrTimeout) {
		label = "timeout"
	}
	m.WaitLatency.WithLabelValues(label).Observe(seconds(elapsed))
}

func (m *ReaderMetrics) LoopTerminated(kind storereader.Kind) {
	m.LoopTerminations.WithLabelValues(kind.String()).Inc()
}
