package twostep

import "sync/atomic"

// MetricID identifies a specific engine counter.
type MetricID uint16

const (
	// MetricIdentifySuccess counts Step A successes.
	MetricIdentifySuccess MetricID = iota
	// MetricIdentifyFailure counts Step A rejections.
	MetricIdentifyFailure
	// MetricChallengeIssued counts pending login records created.
	MetricChallengeIssued
	// MetricChallengeSuccess counts Step B successes.
	MetricChallengeSuccess
	// MetricChallengeFailure counts Step B rejections.
	MetricChallengeFailure
	// MetricChallengeReplay counts consume attempts that lost the
	// single-use race or replayed a consumed code.
	MetricChallengeReplay
	// MetricTokenIssued counts signed tokens handed out.
	MetricTokenIssued
	// MetricTokenParseFailure counts tokens that failed verification.
	MetricTokenParseFailure
	// MetricUserCreated counts registrations.
	MetricUserCreated
	// MetricNotifyFailure counts best-effort notification failures.
	MetricNotifyFailure
	// MetricStoreFailure counts user/login store backend failures.
	MetricStoreFailure

	metricIDCount
)

const cacheLineSize = 64

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds cache-line-padded atomic counters. All operations are
// no-ops when disabled.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]paddedCounter
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// NewMetrics creates a Metrics instance configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Enabled reports whether counters are being recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Inc adds one to the counter identified by id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Get returns the current value of one counter.
func (m *Metrics) Get(id MetricID) uint64 {
	if m == nil || !m.enabled || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot returns a copy of all counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{Counters: make(map[MetricID]uint64, metricIDCount)}
	if m == nil || !m.enabled {
		return snap
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		snap.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	return snap
}
