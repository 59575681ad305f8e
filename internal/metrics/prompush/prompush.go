// Package prompush is a metrics.Backend that pushes to a Prometheus
// Pushgateway. A trip run is a batch job with nothing to scrape, so the
// registry is pushed once on Flush, grouped under the job name.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"tripetl/internal/metrics"
)

// counterSpecs declares every counter the backend exports. The "job" label is
// carried by the Pushgateway grouping key, so it is not a metric label.
var counterSpecs = []struct {
	name   string
	help   string
	labels []string
}{
	{metrics.StepTotal, "Run step executions by step and status.", []string{"step", "status"}},
	{metrics.RecordsTotal, "Trip rows by kind (read, accepted, rejected, inserted, parse_errors).", []string{"kind"}},
	{metrics.RejectionsTotal, "Rejected trip rows by validation reason.", []string{"reason"}},
	{metrics.BatchesTotal, "Committed fact insert batches.", nil},
}

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string
	jobName    string
	reg        *prometheus.Registry

	counters    map[string]*prometheus.CounterVec
	counterLbls map[string][]string
	durations   *prometheus.SummaryVec
}

var _ metrics.Backend = (*Backend)(nil)

// NewBackend registers the trip metrics on a fresh registry. gatewayURL is
// required; an empty jobName becomes "trip_etl".
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "trip_etl"
	}

	b := &Backend{
		gatewayURL:  gatewayURL,
		jobName:     jobName,
		reg:         prometheus.NewRegistry(),
		counters:    make(map[string]*prometheus.CounterVec, len(counterSpecs)),
		counterLbls: make(map[string][]string, len(counterSpecs)),
	}
	for _, s := range counterSpecs {
		cv := prometheus.NewCounterVec(prometheus.CounterOpts{Name: s.name, Help: s.help}, s.labels)
		if err := b.reg.Register(cv); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", s.name, err)
		}
		b.counters[s.name] = cv
		b.counterLbls[s.name] = s.labels
	}

	b.durations = prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Name:       metrics.StepDuration,
		Help:       "Run step duration in seconds by step and status.",
		Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
	}, []string{"step", "status"})
	if err := b.reg.Register(b.durations); err != nil {
		return nil, fmt.Errorf("prompush: register %s: %w", metrics.StepDuration, err)
	}
	return b, nil
}

// IncCounter implements metrics.Backend. Unknown names are ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	cv, ok := b.counters[name]
	if !ok {
		return
	}
	cv.WithLabelValues(pick(labels, b.counterLbls[name])...).Add(delta)
}

// ObserveHistogram implements metrics.Backend. Only StepDuration is exported.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.StepDuration || b.durations == nil {
		return
	}
	b.durations.WithLabelValues(labels["step"], labels["status"]).Observe(value)
}

// Flush pushes the registry to the Pushgateway, replacing the job's group.
func (b *Backend) Flush() error {
	if err := push.New(b.gatewayURL, b.jobName).Gatherer(b.reg).Push(); err != nil {
		return fmt.Errorf("prompush: push to %s: %w", b.gatewayURL, err)
	}
	return nil
}

// pick returns the values of keys in order; missing keys yield "".
func pick(labels metrics.Labels, keys []string) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = labels[k]
	}
	return out
}
