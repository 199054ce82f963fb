package observability

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics counts practice operations, their failures and durations.
type Metrics struct {
	mu sync.Mutex

	requestTotal  atomic.Int64
	requestFailed atomic.Int64

	operations map[string]*OperationMetrics
	failures   map[string]int64 // by error code

	// durations keeps the most recent maxDurations samples.
	durations    []time.Duration
	maxDurations int
}

// OperationMetrics holds counters for one operation name.
type OperationMetrics struct {
	count         atomic.Int64
	errorCount    atomic.Int64
	totalDuration atomic.Int64 // milliseconds
}

// NewMetrics creates a new metrics collector.
func NewMetrics(maxDurations int) *Metrics {
	if maxDurations <= 0 {
		maxDurations = 1000
	}
	return &Metrics{
		operations:   make(map[string]*OperationMetrics),
		failures:     make(map[string]int64),
		durations:    make([]time.Duration, 0, maxDurations),
		maxDurations: maxDurations,
	}
}

func (m *Metrics) operation(name string) *OperationMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	om, ok := m.operations[name]
	if !ok {
		om = &OperationMetrics{}
		m.operations[name] = om
	}
	return om
}

// RecordRequest records a request.
func (m *Metrics) RecordRequest(operation string) {
	m.requestTotal.Add(1)
	m.operation(operation).count.Add(1)
}

// RecordFailure records a failed request under its error code.
func (m *Metrics) RecordFailure(operation, code string) {
	m.requestFailed.Add(1)
	m.operation(operation).errorCount.Add(1)

	m.mu.Lock()
	m.failures[code]++
	m.mu.Unlock()
}

// RecordDuration records a request duration.
func (m *Metrics) RecordDuration(operation string, d time.Duration) {
	m.operation(operation).totalDuration.Add(d.Milliseconds())

	m.mu.Lock()
	if len(m.durations) >= m.maxDurations {
		m.durations = m.durations[1:]
	}
	m.durations = append(m.durations, d)
	m.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the metrics.
func (m *Metrics) Snapshot() *MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := &MetricsSnapshot{
		RequestTotal:  m.requestTotal.Load(),
		RequestFailed: m.requestFailed.Load(),
		Operations:    make(map[string]OperationSnapshot, len(m.operations)),
		Failures:      make(map[string]int64, len(m.failures)),
		P50:           percentile(m.durations, 0.50),
		P95:           percentile(m.durations, 0.95),
	}
	for name, om := range m.operations {
		op := OperationSnapshot{
			Count:      om.count.Load(),
			ErrorCount: om.errorCount.Load(),
		}
		if op.Count > 0 {
			op.AverageDurationMs = om.totalDuration.Load() / op.Count
		}
		snap.Operations[name] = op
	}
	for code, n := range m.failures {
		snap.Failures[code] = n
	}
	return snap
}

// percentile must be called with lock held.
func percentile(samples []time.Duration, p float64) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := slices.Clone(samples)
	slices.Sort(sorted)
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}

// MetricsSnapshot represents a point-in-time snapshot of metrics.
type MetricsSnapshot struct {
	RequestTotal  int64
	RequestFailed int64
	Operations    map[string]OperationSnapshot
	Failures      map[string]int64
	P50           time.Duration
	P95           time.Duration
}

// OperationSnapshot represents metrics for one operation.
type OperationSnapshot struct {
	Count             int64
	ErrorCount        int64
	AverageDurationMs int64
}
