package metrics

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"
)

// event is one backend call captured by recorder.
type event struct {
	kind   string // "counter" or "histogram"
	name   string
	value  float64
	labels Labels
}

// recorder is an in-memory Backend.
type recorder struct {
	events  []event
	flushes int
	err     error
}

func (r *recorder) IncCounter(name string, delta float64, labels Labels) {
	r.events = append(r.events, event{"counter", name, delta, labels})
}

func (r *recorder) ObserveHistogram(name string, value float64, labels Labels) {
	r.events = append(r.events, event{"histogram", name, value, labels})
}

func (r *recorder) Flush() error {
	r.flushes++
	return r.err
}

// install swaps in a recorder for the duration of the test.
func install(t *testing.T) *recorder {
	t.Helper()
	orig := backend
	t.Cleanup(func() { backend = orig })
	rec := &recorder{}
	backend = rec
	return rec
}

func TestRecordStep(t *testing.T) {
	rec := install(t)

	RecordStep("nyc", "connect", nil, 250*time.Millisecond)
	RecordStep("nyc", "chunk", errors.New("copy failed"), 2*time.Second)

	want := []event{
		{"counter", StepTotal, 1, Labels{"job": "nyc", "step": "connect", "status": "success"}},
		{"histogram", StepDuration, 0.25, Labels{"job": "nyc", "step": "connect", "status": "success"}},
		{"counter", StepTotal, 1, Labels{"job": "nyc", "step": "chunk", "status": "failure"}},
		{"histogram", StepDuration, 2, Labels{"job": "nyc", "step": "chunk", "status": "failure"}},
	}
	if len(rec.events) != len(want) {
		t.Fatalf("got %d events, want %d: %+v", len(rec.events), len(want), rec.events)
	}
	for i, w := range want {
		got := rec.events[i]
		if got.kind != w.kind || got.name != w.name || math.Abs(got.value-w.value) > 1e-9 || !reflect.DeepEqual(got.labels, w.labels) {
			t.Errorf("event[%d] = %+v, want %+v", i, got, w)
		}
	}
}

// TestCounters checks the per-row, per-batch and per-reason helpers, and that
// non-positive deltas are dropped.
func TestCounters(t *testing.T) {
	tests := []struct {
		name string
		emit func()
		want []event
	}{
		{
			name: "row kinds",
			emit: func() {
				RecordRow("nyc", "read", 200000)
				RecordRow("nyc", "rejected", 0)
				RecordRow("nyc", "accepted", 199000)
			},
			want: []event{
				{"counter", RecordsTotal, 200000, Labels{"job": "nyc", "kind": "read"}},
				{"counter", RecordsTotal, 199000, Labels{"job": "nyc", "kind": "accepted"}},
			},
		},
		{
			name: "batches",
			emit: func() {
				RecordBatches("nyc", 200)
				RecordBatches("nyc", -1)
			},
			want: []event{
				{"counter", BatchesTotal, 200, Labels{"job": "nyc"}},
			},
		},
		{
			name: "rejections",
			emit: func() {
				RecordRejection("nyc", "invalid_fare", 4)
				RecordRejection("nyc", "unrealistic_speed", 0)
			},
			want: []event{
				{"counter", RejectionsTotal, 4, Labels{"job": "nyc", "reason": "invalid_fare"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := install(t)
			tt.emit()
			if !reflect.DeepEqual(rec.events, tt.want) {
				t.Fatalf("events = %+v\nwant     %+v", rec.events, tt.want)
			}
		})
	}
}

func TestSetBackendAndFlush(t *testing.T) {
	orig := backend
	t.Cleanup(func() { backend = orig })

	if err := Flush(); err != nil {
		t.Fatalf("nop Flush: %v", err)
	}

	rec := &recorder{err: errors.New("gateway down")}
	SetBackend(rec)
	SetBackend(nil) // keeps rec

	if err := Flush(); err == nil || rec.flushes != 1 {
		t.Fatalf("Flush = %v after %d flushes, want the backend error once", err, rec.flushes)
	}
}
