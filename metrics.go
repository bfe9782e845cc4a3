package httpd

import (
	"sync/atomic"
	"time"

	"github.com/behrlich/reactor-httpd/internal/interfaces"
)

// LatencyBuckets defines the request-latency histogram buckets in
// nanoseconds, logarithmically spaced from 1us to 10s.
var LatencyBuckets = []uint64{
	1_000,
	10_000,
	100_000,
	1_000_000,
	10_000_000,
	100_000_000,
	1_000_000_000,
	10_000_000_000,
}

const numLatencyBuckets = 8

// Metrics tracks connection and request statistics for a running server.
type Metrics struct {
	ConnectionsAccepted atomic.Uint64
	ConnectionsClosed   atomic.Uint64
	RequestsServed      atomic.Uint64
	RequestErrors       atomic.Uint64

	BytesRead    atomic.Uint64
	BytesWritten atomic.Uint64

	QueueDepthTotal atomic.Uint64
	QueueDepthCount atomic.Uint64
	MaxQueueDepth   atomic.Uint32

	TotalLatencyNs atomic.Uint64
	OpCount        atomic.Uint64

	LatencyBuckets [numLatencyBuckets]atomic.Uint64

	StartTime atomic.Int64
	StopTime  atomic.Int64
}

// NewMetrics creates a new metrics instance with StartTime set to now.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

func (m *Metrics) recordAccept() { m.ConnectionsAccepted.Add(1) }
func (m *Metrics) recordClose()  { m.ConnectionsClosed.Add(1) }

func (m *Metrics) recordRequest(latencyNs uint64, status int) {
	m.RequestsServed.Add(1)
	if status >= 400 {
		m.RequestErrors.Add(1)
	}
	m.TotalLatencyNs.Add(latencyNs)
	m.OpCount.Add(1)
	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.LatencyBuckets[i].Add(1)
		}
	}
}

func (m *Metrics) recordBytesRead(n uint64)    { m.BytesRead.Add(n) }
func (m *Metrics) recordBytesWritten(n uint64) { m.BytesWritten.Add(n) }

func (m *Metrics) recordQueueDepth(depth uint32) {
	m.QueueDepthTotal.Add(uint64(depth))
	m.QueueDepthCount.Add(1)
	for {
		current := m.MaxQueueDepth.Load()
		if depth <= current {
			break
		}
		if m.MaxQueueDepth.CompareAndSwap(current, depth) {
			break
		}
	}
}

// Stop marks the server as stopped, fixing uptime for the final snapshot.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time copy of Metrics with derived rates.
type MetricsSnapshot struct {
	ConnectionsAccepted uint64
	ConnectionsClosed   uint64
	RequestsServed      uint64
	RequestErrors       uint64

	BytesRead    uint64
	BytesWritten uint64

	AvgQueueDepth float64
	MaxQueueDepth uint32

	AvgLatencyNs uint64
	UptimeNs     uint64

	LatencyP50Ns uint64
	LatencyP99Ns uint64

	LatencyHistogram [numLatencyBuckets]uint64

	RequestsPerSec float64
	ErrorRate      float64
}

// Snapshot takes a point-in-time copy of the metrics with derived stats.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		ConnectionsAccepted: m.ConnectionsAccepted.Load(),
		ConnectionsClosed:   m.ConnectionsClosed.Load(),
		RequestsServed:      m.RequestsServed.Load(),
		RequestErrors:       m.RequestErrors.Load(),
		BytesRead:           m.BytesRead.Load(),
		BytesWritten:        m.BytesWritten.Load(),
		MaxQueueDepth:       m.MaxQueueDepth.Load(),
	}

	if c := m.QueueDepthCount.Load(); c > 0 {
		snap.AvgQueueDepth = float64(m.QueueDepthTotal.Load()) / float64(c)
	}

	opCount := m.OpCount.Load()
	if opCount > 0 {
		snap.AvgLatencyNs = m.TotalLatencyNs.Load() / opCount
	}

	start := m.StartTime.Load()
	stop := m.StopTime.Load()
	if stop > 0 {
		snap.UptimeNs = uint64(stop - start)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - start)
	}

	if snap.UptimeNs > 0 {
		snap.RequestsPerSec = float64(snap.RequestsServed) / (float64(snap.UptimeNs) / 1e9)
	}
	if snap.RequestsServed > 0 {
		snap.ErrorRate = float64(snap.RequestErrors) / float64(snap.RequestsServed) * 100.0
	}

	for i := 0; i < numLatencyBuckets; i++ {
		snap.LatencyHistogram[i] = m.LatencyBuckets[i].Load()
	}
	if opCount > 0 {
		snap.LatencyP50Ns = m.calculatePercentile(0.50)
		snap.LatencyP99Ns = m.calculatePercentile(0.99)
	}

	return snap
}

func (m *Metrics) calculatePercentile(percentile float64) uint64 {
	total := m.OpCount.Load()
	if total == 0 {
		return 0
	}
	target := uint64(float64(total) * percentile)

	prevBucket := uint64(0)
	for i, bucket := range LatencyBuckets {
		count := m.LatencyBuckets[i].Load()
		if count >= target {
			prevCount := uint64(0)
			if i > 0 {
				prevCount = m.LatencyBuckets[i-1].Load()
			}
			if count == prevCount {
				return bucket
			}
			fraction := float64(target-prevCount) / float64(count-prevCount)
			return prevBucket + uint64(fraction*float64(bucket-prevBucket))
		}
		prevBucket = bucket
	}
	return LatencyBuckets[numLatencyBuckets-1]
}

// Reset zeroes every counter; useful in tests.
func (m *Metrics) Reset() {
	m.ConnectionsAccepted.Store(0)
	m.ConnectionsClosed.Store(0)
	m.RequestsServed.Store(0)
	m.RequestErrors.Store(0)
	m.BytesRead.Store(0)
	m.BytesWritten.Store(0)
	m.QueueDepthTotal.Store(0)
	m.QueueDepthCount.Store(0)
	m.MaxQueueDepth.Store(0)
	m.TotalLatencyNs.Store(0)
	m.OpCount.Store(0)
	for i := 0; i < numLatencyBuckets; i++ {
		m.LatencyBuckets[i].Store(0)
	}
	m.StartTime.Store(time.Now().UnixNano())
	m.StopTime.Store(0)
}

// MetricsObserver adapts Metrics to interfaces.Observer, the contract the
// reactor and worker pool report through without importing Metrics
// directly.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver wraps m as an interfaces.Observer.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveAccept() { o.metrics.recordAccept() }
func (o *MetricsObserver) ObserveClose()  { o.metrics.recordClose() }
func (o *MetricsObserver) ObserveRequest(latencyNs uint64, status int) {
	o.metrics.recordRequest(latencyNs, status)
}
func (o *MetricsObserver) ObserveBytesRead(n uint64)    { o.metrics.recordBytesRead(n) }
func (o *MetricsObserver) ObserveBytesWritten(n uint64) { o.metrics.recordBytesWritten(n) }
func (o *MetricsObserver) ObserveQueueDepth(depth uint32) {
	o.metrics.recordQueueDepth(depth)
}

var _ interfaces.Observer = (*MetricsObserver)(nil)
