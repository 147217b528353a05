package bandwidth

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/slipwire/slipwire/errs"
)

// fakeClock is a manually advanced time source shared by monitor tests.
type fakeClock struct {
	now float64
}

func (c *fakeClock) read() float64 { return c.now }

func newTestMonitor(t *testing.T, clock *fakeClock, interval float64) *Monitor {
	t.Helper()
	m, err := NewMonitor(WithMonitorClock(clock.read), WithMonitorInterval(interval))
	require.NoError(t, err)
	return m
}

func TestMonitor_RateOverWindow(t *testing.T) {
	clock := &fakeClock{}
	m := newTestMonitor(t, clock, 1.0)

	m.RecordTransfer(1000)
	clock.now = 0.5
	m.RecordTransfer(1000)

	// 2000 bytes over a 0.5s span.
	require.InDelta(t, 4000.0, m.Rate(), 1e-9)
}

func TestMonitor_FewerThanTwoSamples(t *testing.T) {
	clock := &fakeClock{}
	m := newTestMonitor(t, clock, 1.0)

	require.Zero(t, m.Rate())
	m.RecordTransfer(500)
	require.Zero(t, m.Rate())
}

func TestMonitor_PurgesAgedSamples(t *testing.T) {
	clock := &fakeClock{}
	m := newTestMonitor(t, clock, 1.0)

	m.RecordTransfer(10000)
	clock.now = 0.2
	m.RecordTransfer(100)
	clock.now = 0.4
	m.RecordTransfer(100)

	// Advance so the t=0 and t=0.2 samples age out of the 1.0s window.
	clock.now = 1.3
	m.RecordTransfer(100)

	// Remaining samples: t=0.4 and t=1.3 → 200 bytes over 0.9s.
	require.InDelta(t, 200.0/0.9, m.Rate(), 1e-9)
}

func TestMonitor_RateWithZeroSpan(t *testing.T) {
	clock := &fakeClock{}
	m := newTestMonitor(t, clock, 1.0)

	m.RecordTransfer(100)
	m.RecordTransfer(100)
	require.Zero(t, m.Rate(), "identical timestamps cannot produce a rate")
}

func TestNewMonitor_Validation(t *testing.T) {
	_, err := NewMonitor(WithMonitorInterval(0))
	require.ErrorIs(t, err, errs.ErrInvalidConfig)
}

func TestQualityAdapter_StartsAtMax(t *testing.T) {
	clock := &fakeClock{}
	m := newTestMonitor(t, clock, 1.0)
	a, err := NewQualityAdapter(m, WithQualityRange(0.2, 0.9))
	require.NoError(t, err)

	require.InDelta(t, 0.9, a.Quality(), 1e-9)
}

func TestQualityAdapter_ClampsAllRatios(t *testing.T) {
	tests := []struct {
		name  string
		bytes int
		ticks int
	}{
		{name: "zero bandwidth", bytes: 0, ticks: 5},
		{name: "at target", bytes: 1024, ticks: 50},
		{name: "huge bandwidth", bytes: 100 * 1024 * 1024, ticks: 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := &fakeClock{}
			m := newTestMonitor(t, clock, 10.0)
			a, err := NewQualityAdapter(m,
				WithTargetBandwidth(1024),
				WithQualityRange(0.1, 1.0),
			)
			require.NoError(t, err)

			for i := 0; i < tt.ticks; i++ {
				clock.now += 0.1
				if tt.bytes > 0 {
					m.RecordTransfer(tt.bytes)
				}
				a.Tick()

				q := a.Quality()
				require.GreaterOrEqual(t, q, 0.1)
				require.LessOrEqual(t, q, 1.0)
				require.False(t, math.IsNaN(q))
			}
		})
	}
}

func TestQualityAdapter_ExponentialSmoothing(t *testing.T) {
	clock := &fakeClock{}
	m := newTestMonitor(t, clock, 5.0)
	a, err := NewQualityAdapter(m, WithTargetBandwidth(1000), WithQualityRange(0, 1))
	require.NoError(t, err)

	// Steady 500 B/s: one 500-byte transfer per second.
	m.RecordTransfer(500)
	clock.now = 1
	m.RecordTransfer(500)

	rate := m.Rate()
	require.InDelta(t, 1000.0, rate, 1e-9) // 1000 bytes over 1s

	a.Tick()
	require.InDelta(t, 0.1*rate, a.AverageRate(), 1e-9)
	require.InDelta(t, 0.1*rate/1000.0, a.Quality(), 1e-9)

	a.Tick()
	require.InDelta(t, 0.9*0.1*rate+0.1*rate, a.AverageRate(), 1e-9)
}

func TestQualityAdapter_DegradesTowardMinWhenIdle(t *testing.T) {
	clock := &fakeClock{}
	m := newTestMonitor(t, clock, 1.0)
	a, err := NewQualityAdapter(m, WithTargetBandwidth(1024), WithQualityRange(0.25, 1.0))
	require.NoError(t, err)

	// No traffic at all: every tick folds in a zero rate and quality must
	// settle at the floor, never below it.
	for i := 0; i < 10; i++ {
		clock.now += 1
		a.Tick()
	}
	require.InDelta(t, 0.25, a.Quality(), 1e-9)
}

func TestNewQualityAdapter_Validation(t *testing.T) {
	clock := &fakeClock{}
	m := newTestMonitor(t, clock, 1.0)

	_, err := NewQualityAdapter(nil)
	require.ErrorIs(t, err, errs.ErrInvalidConfig)

	_, err = NewQualityAdapter(m, WithTargetBandwidth(-1))
	require.ErrorIs(t, err, errs.ErrInvalidConfig)

	_, err = NewQualityAdapter(m, WithQualityRange(0.9, 0.1))
	require.ErrorIs(t, err, errs.ErrInvalidConfig)
}
