// Package metrics records operational metrics of trip runs behind a pluggable
// Backend. The default backend discards everything, so callers never check
// whether metrics are configured. Concrete backends live in prompush and
// datadog.
package metrics

import "time"

// Metric names shared by every backend.
const (
	StepTotal       = "etl_step_total"
	StepDuration    = "etl_step_duration_seconds"
	RecordsTotal    = "etl_records_total"
	BatchesTotal    = "etl_batches_total"
	RejectionsTotal = "etl_rejections_total"
)

// Row kinds used as the "kind" label of RecordsTotal. They mirror the run
// summary.
const (
	KindRead        = "read"
	KindAccepted    = "accepted"
	KindRejected    = "rejected"
	KindInserted    = "inserted"
	KindParseErrors = "parse_errors"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend receives metric events.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a duration-style sample.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes buffered data, for backends that need it.
	Flush() error
}

type discard struct{}

func (discard) IncCounter(string, float64, Labels)       {}
func (discard) ObserveHistogram(string, float64, Labels) {}
func (discard) Flush() error                             { return nil }

var backend Backend = discard{}

// SetBackend installs b as the process-wide backend. nil is ignored.
func SetBackend(b Backend) {
	if b != nil {
		backend = b
	}
}

// Flush flushes the installed backend.
func Flush() error { return backend.Flush() }

// RecordStep counts one execution of a run step ("validate_input", "connect",
// "chunk", "summary") and observes its duration, labelled success or failure.
func RecordStep(job, step string, err error, d time.Duration) {
	lbls := Labels{"job": job, "step": step, "status": "success"}
	if err != nil {
		lbls["status"] = "failure"
	}
	backend.IncCounter(StepTotal, 1, lbls)
	backend.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordRow adds delta rows of kind to RecordsTotal.
func RecordRow(job, kind string, delta int64) {
	count(RecordsTotal, delta, Labels{"job": job, "kind": kind})
}

// RecordBatches adds delta committed insert batches.
func RecordBatches(job string, delta int64) {
	count(BatchesTotal, delta, Labels{"job": job})
}

// RecordRejection adds delta rejected rows for one validation reason. A row
// rejected for several reasons is counted under each.
func RecordRejection(job, reason string, delta int64) {
	count(RejectionsTotal, delta, Labels{"job": job, "reason": reason})
}

// count drops non-positive deltas so empty chunks emit nothing.
func count(name string, delta int64, lbls Labels) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(name, float64(delta), lbls)
}
