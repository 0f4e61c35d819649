package storereader

import "time"

// Outcome describes what happened to a consumed record.
type Outcome string

const (
	OutcomePut          Outcome = "put"
	OutcomeDelete       Outcome = "delete"
	OutcomeNoop         Outcome = "noop"
	OutcomeBadKey       Outcome = "bad_key"
	OutcomeBadValue     Outcome = "bad_value"
	OutcomeStoreFailure Outcome = "store_failure"
)

// Metrics observes the reader. Implementations must be safe for concurrent
// use; WaitUntil reports from caller goroutines.
type Metrics interface {
	SetAppliedOffset(offset int64)
	RecordConsumed(outcome Outcome)
	ObserveCommit(elapsed time.Duration, err error)
	ObserveWait(elapsed time.Duration, err error)
	LoopTerminated(kind Kind)
}

// NoopMetrics is used when no Metrics is provided.
type NoopMetrics struct{}

func (NoopMetrics) SetAppliedOffset(int64)             {}
func (NoopMetrics) RecordConsumed(Outcome)             {}
func (NoopMetrics) ObserveCommit(time.Duration, error) {}
func (NoopMetrics) ObserveWait(time.Duration, error)   {}
func (NoopMetrics) LoopTerminated(Kind)                {}
