package observability

import (
	"sort"
	"sync"
	"time"
)

// Counter represents a monotonic counter metric
type Counter struct {
	name  string
	help  string
	value float64
	mu    sync.RWMutex
}

// NewCounter creates a new counter metric
func NewCounter(name, help string) *Counter {
	return &Counter{
		name: name,
		help: help,
	}
}

// Inc increments the counter by 1
func (c *Counter) Inc() {
	c.Add(1)
}

// Add adds the given value to the counter
func (c *Counter) Add(delta float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value += delta
}

// Value returns the current counter value
func (c *Counter) Value() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Name returns the metric name
func (c *Counter) Name() string {
	return c.name
}

// Help returns the metric help text
func (c *Counter) Help() string {
	return c.help
}

// RunMetrics aggregates the counters a pipeline run maintains.
// Every recovered incident (ragged line, drift, parse failure,
// rejected outlier) lands here so the run result can report them.
type RunMetrics struct {
	RowsRead           *Counter
	RaggedRows         *Counter
	RecordsHarmonized  *Counter
	DriftEvents        *Counter
	ParseFailures      *Counter
	OutliersRejected   *Counter
	SelectionsExploded *Counter
	TablesPublished    *Counter

	mu     sync.Mutex
	stages map[string]time.Duration
}

// NewRunMetrics creates a metrics set for one pipeline run
func NewRunMetrics() *RunMetrics {
	return &RunMetrics{
		RowsRead:           NewCounter("rows_read", "Raw rows read across all datasets"),
		RaggedRows:         NewCounter("ragged_rows", "Structurally malformed rows dropped during ingestion"),
		RecordsHarmonized:  NewCounter("records_harmonized", "Records emitted by the harmonizer"),
		DriftEvents:        NewCounter("drift_events", "Canonical fields with no source column in a dataset"),
		ParseFailures:      NewCounter("parse_failures", "Values that could not be coerced and were nulled"),
		OutliersRejected:   NewCounter("outliers_rejected", "Compensation values outside the sanity window"),
		SelectionsExploded: NewCounter("selections_exploded", "Multi-select tokens emitted by the explode stage"),
		TablesPublished:    NewCounter("tables_published", "Result tables written by the run"),
		stages:             make(map[string]time.Duration),
	}
}

// ObserveStage records the wall duration of a pipeline stage
func (m *RunMetrics) ObserveStage(name string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stages[name] += d
}

// TimeStage runs fn and records its duration under name
func (m *RunMetrics) TimeStage(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	m.ObserveStage(name, time.Since(start))
	return err
}

// StageDurations returns stage timings sorted by stage name
func (m *RunMetrics) StageDurations() []StageDuration {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]StageDuration, 0, len(m.stages))
	for name, d := range m.stages {
		out = append(out, StageDuration{Name: name, Duration: d})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// StageDuration is one stage's accumulated wall time
type StageDuration struct {
	Name     string
	Duration time.Duration
}

// Snapshot returns all counter values keyed by metric name
func (m *RunMetrics) Snapshot() map[string]float64 {
	counters := []*Counter{
		m.RowsRead, m.RaggedRows, m.RecordsHarmonized, m.DriftEvents,
		m.ParseFailures, m.OutliersRejected, m.SelectionsExploded, m.TablesPublished,
	}

	snap := make(map[string]float64, len(counters))
	for _, c := range counters {
		snap[c.Name()] = c.Value()
	}
	return snap
}
