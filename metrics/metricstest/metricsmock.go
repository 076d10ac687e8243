// Package metricstest provides an in-memory metrics backend for tests.
package metricstest

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/zalando/waypoint/metrics"
)

// MockMetrics records the measurements in memory, with the keys of the
// CodaHale backend. The zero value is ready to use.
type MockMetrics struct {
	// Prefix is prepended to every key.
	Prefix string

	// Now, when set, is used as the end of the measured durations.
	Now time.Time

	mu       sync.Mutex
	counters map[string]int64
	gauges   map[string]float64
	measures map[string][]time.Duration
}

var _ metrics.Metrics = (*MockMetrics)(nil)

func (m *MockMetrics) locked(f func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counters == nil {
		m.counters = make(map[string]int64)
		m.gauges = make(map[string]float64)
		m.measures = make(map[string][]time.Duration)
	}

	f()
}

func (m *MockMetrics) MeasureSince(key string, start time.Time) {
	end := m.Now
	if end.IsZero() {
		end = time.Now()
	}

	key = m.Prefix + key
	m.locked(func() { m.measures[key] = append(m.measures[key], end.Sub(start)) })
}

func (m *MockMetrics) IncCounter(key string) { m.IncCounterBy(key, 1) }

func (m *MockMetrics) IncCounterBy(key string, value int64) {
	key = m.Prefix + key
	m.locked(func() { m.counters[key] += value })
}

func (m *MockMetrics) UpdateGauge(key string, value float64) {
	key = m.Prefix + key
	m.locked(func() { m.gauges[key] = value })
}

func (m *MockMetrics) MeasureMatch(start time.Time) {
	m.MeasureSince(metrics.KeyMatch, start)
}

func (m *MockMetrics) IncRejections(code int) {
	m.IncCounter(fmt.Sprintf(metrics.KeyRejections, code))
}

func (m *MockMetrics) MeasureServe(route, method string, code int, start time.Time) {
	m.MeasureSince(fmt.Sprintf(metrics.KeyServe, method, code), start)
	m.MeasureSince(fmt.Sprintf(metrics.KeyServeRoute, route, method, code), start)
}

func (m *MockMetrics) MeasureUpstream(host string, start time.Time) {
	m.MeasureSince(fmt.Sprintf(metrics.KeyUpstream, metrics.HostKey(host)), start)
}

func (m *MockMetrics) IncUpstreamErrors(host string) {
	m.IncCounter(fmt.Sprintf(metrics.KeyErrorsUpstream, metrics.HostKey(host)))
}

func (*MockMetrics) RegisterHandler(path string, mux *http.ServeMux) {
	mux.Handle(path, http.NotFoundHandler())
}

func (*MockMetrics) Close() {}

// Counter returns the value of a counter, and whether it was ever
// incremented.
func (m *MockMetrics) Counter(key string) (v int64, ok bool) {
	m.locked(func() { v, ok = m.counters[key] })
	return
}

// Gauge returns the last value of a gauge.
func (m *MockMetrics) Gauge(key string) (v float64, ok bool) {
	m.locked(func() { v, ok = m.gauges[key] })
	return
}

// Measure returns the recorded durations of a timer.
func (m *MockMetrics) Measure(key string) (d []time.Duration, ok bool) {
	m.locked(func() {
		d, ok = m.measures[key]
		d = append([]time.Duration(nil), d...)
	})

	return
}
