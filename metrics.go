package fleetclient

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
)

// MetricID identifies one client counter.
type MetricID uint16

const (
	// MetricLoginSuccess counts credential logins that resolved a session.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts rejected credential logins.
	MetricLoginFailure
	// MetricLogout counts logout calls, local or backend-confirmed.
	MetricLogout
	// MetricLogoutBackendFailed counts logouts where the backend call failed
	// and only local teardown ran.
	MetricLogoutBackendFailed
	// MetricBootAuthenticated counts boots that restored a session from a
	// stored token.
	MetricBootAuthenticated
	// MetricBootAnonymous counts boots with no stored token.
	MetricBootAnonymous
	// MetricBootRejected counts boots where the stored token was rejected.
	MetricBootRejected
	// MetricSessionInvalidated counts 401-triggered forced logouts.
	MetricSessionInvalidated
	// MetricCachePurged counts full cache purges.
	MetricCachePurged

	metricIDCount
)

var metricNames = [metricIDCount]string{
	MetricLoginSuccess:        "login_success",
	MetricLoginFailure:        "login_failure",
	MetricLogout:              "logout",
	MetricLogoutBackendFailed: "logout_backend_failed",
	MetricBootAuthenticated:   "boot_authenticated",
	MetricBootAnonymous:       "boot_anonymous",
	MetricBootRejected:        "boot_rejected",
	MetricSessionInvalidated:  "session_invalidated",
	MetricCachePurged:         "cache_purged",
}

func (id MetricID) String() string {
	if id >= metricIDCount {
		return fmt.Sprintf("metric(%d)", uint16(id))
	}
	return metricNames[id]
}

const cacheLineSize = 64

// paddedCounter keeps each counter on its own cache line so hot counters do
// not false-share under concurrent increments.
type paddedCounter struct {
	v atomic.Uint64
	_ [cacheLineSize - 8]byte
}

// Metrics holds the in-process counters. A nil *Metrics is valid and counts
// nothing.
type Metrics struct {
	counters [metricIDCount]paddedCounter
}

// NewMetrics returns nil when disabled; every method tolerates that.
func NewMetrics(enabled bool) *Metrics {
	if !enabled {
		return nil
	}
	return &Metrics{}
}

func (m *Metrics) Inc(id MetricID) {
	if m == nil || id >= metricIDCount {
		return
	}
	m.counters[id].v.Add(1)
}

func (m *Metrics) get(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return m.counters[id].v.Load()
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters map[string]uint64
}

// Snapshot copies every counter. Safe on a nil receiver.
func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{Counters: make(map[string]uint64, metricIDCount)}
	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id.String()] = m.get(id)
	}
	return s
}

func (s MetricsSnapshot) String() string {
	names := make([]string, 0, len(s.Counters))
	for name := range s.Counters {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s=%d", name, s.Counters[name])
	}
	return b.String()
}
