package qchain

import (
	"slices"
	"sync"
	"time"
)

// latencySamples is how many recent wait times the percentiles are taken over.
const latencySamples = 1000

/*
Metrics counts the collective traffic of a Runtime. Every rendezvous of the group
is one collective; gathers additionally record how many amplitudes were moved.
*/
type Metrics struct {
	mu sync.RWMutex

	Collectives      int64
	Broadcasts       int64
	Reductions       int64
	Gathers          int64
	GatheredElements int64
	Saves            int64
	Loads            int64
	TotalWaitTime    time.Duration
	AverageWaitTime  time.Duration
	P95WaitTime      time.Duration
	P99WaitTime      time.Duration
	LastCollective   time.Time

	// ring of the most recent wait times; next is the slot to overwrite
	waits []time.Duration
	next  int
}

func NewMetrics() *Metrics {
	return &Metrics{
		waits: make([]time.Duration, 0, latencySamples),
	}
}

// recordCollective is called once per completed rendezvous with the time the
// first rank arrived.
func (m *Metrics) recordCollective(started time.Time) {
	duration := time.Since(started)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Collectives++
	m.TotalWaitTime += duration
	m.LastCollective = time.Now()
	m.updateLatencyPercentiles(duration)
}

func (m *Metrics) recordBroadcast() {
	m.mu.Lock()
	m.Broadcasts++
	m.mu.Unlock()
}

func (m *Metrics) recordReduction() {
	m.mu.Lock()
	m.Reductions++
	m.mu.Unlock()
}

func (m *Metrics) recordGather(elements int) {
	m.mu.Lock()
	m.Gathers++
	m.GatheredElements += int64(elements)
	m.mu.Unlock()
}

func (m *Metrics) recordSave() {
	m.mu.Lock()
	m.Saves++
	m.mu.Unlock()
}

func (m *Metrics) recordLoad() {
	m.mu.Lock()
	m.Loads++
	m.mu.Unlock()
}

func (m *Metrics) updateLatencyPercentiles(duration time.Duration) {
	m.AverageWaitTime = m.TotalWaitTime / time.Duration(m.Collectives)

	if len(m.waits) < latencySamples {
		m.waits = append(m.waits, duration)
	} else {
		m.waits[m.next] = duration
		m.next = (m.next + 1) % latencySamples
	}

	sorted := slices.Clone(m.waits)
	slices.Sort(sorted)

	m.P95WaitTime = sorted[percentileIndex(len(sorted), 0.95)]
	m.P99WaitTime = sorted[percentileIndex(len(sorted), 0.99)]
}

// percentileIndex returns the index of the q-th quantile in a sorted slice of n > 0 samples.
func percentileIndex(n int, q float64) int {
	return min(int(float64(n)*q), n-1)
}

// ExportMetrics returns a snapshot keyed by metric name.
func (m *Metrics) ExportMetrics() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"collectives":       m.Collectives,
		"broadcasts":        m.Broadcasts,
		"reductions":        m.Reductions,
		"gathers":           m.Gathers,
		"gathered_elements": m.GatheredElements,
		"saves":             m.Saves,
		"loads":             m.Loads,
		"avg_wait":          m.AverageWaitTime.Microseconds(),
		"p95_wait":          m.P95WaitTime.Microseconds(),
		"p99_wait":          m.P99WaitTime.Microseconds(),
	}
}
