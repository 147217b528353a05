// Package bandwidth tracks transmitted-byte throughput over a sliding
// window and derives an advisory quality scalar from it.
//
// The Monitor keeps per-transfer byte samples for one monitor interval and
// reports the observed rate. The QualityAdapter smooths that rate and maps
// it to a clamped quality value that effect producers read to scale their
// own output (particle counts, update frequency, and the like); this
// package never interprets the value itself.
//
// Both types are mutex-protected so they may be fed from transport
// instrumentation and read from the cooperative tick without coordination.
package bandwidth

import (
	"fmt"
	"sync"
	"time"

	"github.com/slipwire/slipwire/errs"
	"github.com/slipwire/slipwire/internal/options"
)

// Defaults for the monitoring window and quality range.
const (
	DefaultMonitorInterval = 1.0 // seconds
	DefaultTargetBandwidth = 64 * 1024.0
	DefaultMinQuality      = 0.1
	DefaultMaxQuality      = 1.0
)

// sample is one recorded transfer.
type sample struct {
	bytes     int
	timestamp float64
}

// Monitor accumulates transfer sizes over a sliding time window.
type Monitor struct {
	mu       sync.Mutex
	interval float64
	now      func() float64
	samples  []sample
}

// MonitorOption configures a Monitor.
type MonitorOption = options.Option[*Monitor]

// WithMonitorInterval sets the sliding window length in seconds.
func WithMonitorInterval(seconds float64) MonitorOption {
	return options.New(func(m *Monitor) error {
		if seconds <= 0 {
			return fmt.Errorf("%w: monitor interval %v must be positive", errs.ErrInvalidConfig, seconds)
		}
		m.interval = seconds

		return nil
	})
}

// WithMonitorClock overrides the monitor's time source (seconds as a
// float). Tests inject a fake clock for determinism.
func WithMonitorClock(now func() float64) MonitorOption {
	return options.NoError(func(m *Monitor) {
		m.now = now
	})
}

// NewMonitor creates a bandwidth monitor with a one-second window by
// default.
func NewMonitor(opts ...MonitorOption) (*Monitor, error) {
	m := &Monitor{
		interval: DefaultMonitorInterval,
		now: func() float64 {
			return float64(time.Now().UnixNano()) / float64(time.Second)
		},
	}
	if err := options.Apply(m, opts...); err != nil {
		return nil, err
	}

	return m, nil
}

// RecordTransfer appends a byte-count sample at the current time and
// purges samples that have aged out of the window.
func (m *Monitor) RecordTransfer(bytes int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.purgeLocked(now)
	m.samples = append(m.samples, sample{bytes: bytes, timestamp: now})
}

// Rate returns the observed throughput in bytes per second: the window's
// byte total divided by the span between its newest and oldest samples.
// Returns 0 while fewer than two samples remain in the window.
func (m *Monitor) Rate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.purgeLocked(m.now())
	if len(m.samples) < 2 {
		return 0
	}

	total := 0
	for _, s := range m.samples {
		total += s.bytes
	}

	span := m.samples[len(m.samples)-1].timestamp - m.samples[0].timestamp
	if span <= 0 {
		return 0
	}

	return float64(total) / span
}

// purgeLocked drops samples older than the window. Callers hold m.mu.
func (m *Monitor) purgeLocked(now float64) {
	cutoff := now - m.interval
	i := 0
	for i < len(m.samples) && m.samples[i].timestamp < cutoff {
		i++
	}
	if i > 0 {
		m.samples = append(m.samples[:0], m.samples[i:]...)
	}
}

// QualityAdapter maps smoothed throughput to a quality scalar in
// [minQuality, maxQuality].
//
// Each Tick folds the monitor's current rate into a running average with
// exponential smoothing (0.9 old, 0.1 new) and clamps the ratio of that
// average to the target bandwidth. Quality starts at maxQuality so
// producers run at full output until real measurements arrive.
type QualityAdapter struct {
	mu      sync.Mutex
	monitor *Monitor
	target  float64
	min     float64
	max     float64

	avgRate float64
	quality float64
}

// AdapterOption configures a QualityAdapter.
type AdapterOption = options.Option[*QualityAdapter]

// WithTargetBandwidth sets the throughput, in bytes per second, that maps
// to full quality.
func WithTargetBandwidth(bytesPerSecond float64) AdapterOption {
	return options.New(func(a *QualityAdapter) error {
		if bytesPerSecond <= 0 {
			return fmt.Errorf("%w: target bandwidth %v must be positive", errs.ErrInvalidConfig, bytesPerSecond)
		}
		a.target = bytesPerSecond

		return nil
	})
}

// WithQualityRange sets the clamp bounds for the quality scalar.
func WithQualityRange(minQuality, maxQuality float64) AdapterOption {
	return options.New(func(a *QualityAdapter) error {
		if minQuality < 0 || maxQuality <= 0 || minQuality > maxQuality {
			return fmt.Errorf("%w: quality range [%v, %v]", errs.ErrInvalidConfig, minQuality, maxQuality)
		}
		a.min = minQuality
		a.max = maxQuality

		return nil
	})
}

// NewQualityAdapter creates an adapter reading from monitor.
func NewQualityAdapter(monitor *Monitor, opts ...AdapterOption) (*QualityAdapter, error) {
	if monitor == nil {
		return nil, fmt.Errorf("%w: quality adapter requires a monitor", errs.ErrInvalidConfig)
	}

	a := &QualityAdapter{
		monitor: monitor,
		target:  DefaultTargetBandwidth,
		min:     DefaultMinQuality,
		max:     DefaultMaxQuality,
	}
	if err := options.Apply(a, opts...); err != nil {
		return nil, err
	}
	a.quality = a.max

	return a, nil
}

// Tick folds the current throughput into the running average and updates
// the quality scalar. Call once per monitor interval.
func (a *QualityAdapter) Tick() {
	current := a.monitor.Rate()

	a.mu.Lock()
	defer a.mu.Unlock()

	a.avgRate = 0.9*a.avgRate + 0.1*current
	a.quality = clamp(a.avgRate/a.target, a.min, a.max)
}

// Quality returns the current quality scalar. Always within
// [minQuality, maxQuality].
func (a *QualityAdapter) Quality() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.quality
}

// AverageRate returns the smoothed throughput in bytes per second.
func (a *QualityAdapter) AverageRate() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.avgRate
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}

	return v
}
