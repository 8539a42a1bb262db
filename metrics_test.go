package twostep

import (
	"sync"
	"testing"
)

func TestMetricsDisabledByDefault(t *testing.T) {
	m := NewMetrics(MetricsConfig{})
	if m.Enabled() {
		t.Fatal("metrics should be disabled by default")
	}
	m.Inc(MetricIdentifySuccess)
	if got := m.Get(MetricIdentifySuccess); got != 0 {
		t.Errorf("disabled metrics recorded %d", got)
	}
	if len(NewMetrics(MetricsConfig{}).Snapshot().Counters) != 0 {
		t.Error("disabled snapshot should be empty")
	}
}

func TestMetricsIncAndGet(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	for i := 0; i < 3; i++ {
		m.Inc(MetricTokenIssued)
	}
	m.Inc(MetricChallengeReplay)

	if got := m.Get(MetricTokenIssued); got != 3 {
		t.Errorf("tokens issued = %d, want 3", got)
	}
	if got := m.Get(MetricChallengeReplay); got != 1 {
		t.Errorf("replays = %d, want 1", got)
	}
	if got := m.Get(MetricStoreFailure); got != 0 {
		t.Errorf("untouched counter = %d, want 0", got)
	}
}

func TestMetricsOutOfRangeID(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(metricIDCount)
	m.Inc(metricIDCount + 100)
	if got := m.Get(metricIDCount); got != 0 {
		t.Errorf("out-of-range id recorded %d", got)
	}
}

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricIdentifySuccess)
	m.Inc(MetricIdentifySuccess)

	snap := m.Snapshot()
	if snap.Counters[MetricIdentifySuccess] != 2 {
		t.Errorf("snapshot identify success = %d, want 2", snap.Counters[MetricIdentifySuccess])
	}

	// Snapshot is a copy; later increments do not show up in it.
	m.Inc(MetricIdentifySuccess)
	if snap.Counters[MetricIdentifySuccess] != 2 {
		t.Error("snapshot mutated after the fact")
	}
}

func TestMetricsConcurrentInc(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const workers = 8
	const perWorker = 1000
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				m.Inc(MetricChallengeIssued)
			}
		}()
	}
	wg.Wait()

	if got := m.Get(MetricChallengeIssued); got != workers*perWorker {
		t.Errorf("concurrent count = %d, want %d", got, workers*perWorker)
	}
}

func TestMetricsNilReceiver(t *testing.T) {
	var m *Metrics
	m.Inc(MetricIdentifySuccess)
	if m.Enabled() {
		t.Error("nil metrics reported enabled")
	}
	if got := m.Get(MetricIdentifySuccess); got != 0 {
		t.Errorf("nil metrics returned %d", got)
	}
	if snap := m.Snapshot(); len(snap.Counters) != 0 {
		t.Error("nil snapshot should be empty")
	}
}
