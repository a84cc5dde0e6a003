package fleetclient

import (
	"strings"
	"sync"
	"testing"
)

func TestMetricsCountAndSnapshot(t *testing.T) {
	m := NewMetrics(true)
	m.Inc(MetricLoginSuccess)
	m.Inc(MetricLoginSuccess)
	m.Inc(MetricCachePurged)

	snap := m.Snapshot()
	if got := snap.Counters["login_success"]; got != 2 {
		t.Fatalf("expected login_success=2, got %d", got)
	}
	if got := snap.Counters["cache_purged"]; got != 1 {
		t.Fatalf("expected cache_purged=1, got %d", got)
	}
	if got := snap.Counters["logout"]; got != 0 {
		t.Fatalf("expected logout=0, got %d", got)
	}
	if len(snap.Counters) != int(metricIDCount) {
		t.Fatalf("snapshot must cover every metric, got %d entries", len(snap.Counters))
	}
}

func TestDisabledMetricsAreInert(t *testing.T) {
	m := NewMetrics(false)
	if m != nil {
		t.Fatal("disabled metrics must be nil")
	}
	m.Inc(MetricLogout)

	snap := m.Snapshot()
	for name, v := range snap.Counters {
		if v != 0 {
			t.Fatalf("disabled metrics must stay zero, %s=%d", name, v)
		}
	}
}

func TestMetricsConcurrentIncrements(t *testing.T) {
	m := NewMetrics(true)
	const workers = 8
	const perWorker = 1000

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				m.Inc(MetricSessionInvalidated)
			}
		}()
	}
	wg.Wait()

	if got := m.Snapshot().Counters["session_invalidated"]; got != workers*perWorker {
		t.Fatalf("expected %d increments, got %d", workers*perWorker, got)
	}
}

func TestSnapshotStringListsCounters(t *testing.T) {
	m := NewMetrics(true)
	m.Inc(MetricBootAnonymous)

	s := m.Snapshot().String()
	if !strings.Contains(s, "boot_anonymous=1") {
		t.Fatalf("expected boot_anonymous=1 in %q", s)
	}
}

func TestMetricIDString(t *testing.T) {
	if MetricLoginSuccess.String() != "login_success" {
		t.Fatalf("unexpected name %q", MetricLoginSuccess.String())
	}
	if got := MetricID(200).String(); got != "metric(200)" {
		t.Fatalf("unexpected name for unknown id: %q", got)
	}
}
