package adminAuth

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one in-process counter or histogram.
type MetricID uint16

const (
	// MetricLoginSuccess counts logins that produced a session.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts logins rejected by the credential backend.
	MetricLoginFailure
	// MetricLoginSuperseded counts logins discarded because a logout or newer login won.
	MetricLoginSuperseded
	MetricRegisterSuccess
	MetricRegisterDuplicate
	MetricLogout
	// MetricSessionRestored counts sessions recovered by Start.
	MetricSessionRestored
	// MetricSessionCorrupt counts stored sessions discarded as unreadable.
	MetricSessionCorrupt
	MetricRoleChangeSuccess
	MetricRoleChangeDenied
	MetricProfileUpdate
	MetricPasswordChangeSuccess
	MetricPasswordChangeInvalidOld
	MetricBootstrapAdminCreated
	// MetricBackendUnavailable counts operations that failed with ErrConnectivity.
	MetricBackendUnavailable
	// MetricLoginThrottled counts logins refused by the attempt throttle.
	MetricLoginThrottled
	// MetricLoginLatency is the only histogram; it times Login end to end.
	MetricLoginLatency
	metricIDCount
)

const latencyBuckets = 8

// counter sits alone on a 64-byte line so hot counters do not share one.
type counter struct {
	n   atomic.Uint64
	pad [56]byte
}

// Metrics is a fixed set of lock-free counters. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]counter
	latency       [latencyBuckets]atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of every counter and histogram.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns a Metrics honouring cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to counter id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	m.counters[id].n.Add(1)
}

// Observe records d in the histogram id. Only MetricLoginLatency is a histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enableLatency || id != MetricLoginLatency {
		return
	}
	m.latency[bucketIndex(d)].Add(1)
}

// Value returns the current value of counter id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return m.counters[id].n.Load()
}

// Snapshot copies all counters, and the latency histogram when enabled.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	snap := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)-1),
		Histograms: make(map[MetricID][]uint64, 1),
	}
	for id := range MetricLoginLatency {
		snap.Counters[id] = m.counters[id].n.Load()
	}
	if m.enableLatency {
		hist := make([]uint64, 0, latencyBuckets)
		for i := range m.latency {
			hist = append(hist, m.latency[i].Load())
		}
		snap.Histograms[MetricLoginLatency] = hist
	}
	return snap
}

// Upper bounds: 5ms, 10ms, 25ms, 50ms, 100ms, 250ms, 500ms, +Inf. Argon2 verification
// alone usually lands in the 25-100ms buckets.
var latencyBounds = [latencyBuckets - 1]time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

func bucketIndex(d time.Duration) int {
	for i, bound := range latencyBounds {
		if d <= bound {
			return i
		}
	}
	return latencyBuckets - 1
}
