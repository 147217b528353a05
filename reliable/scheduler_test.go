package reliable

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestManualScheduler_FiresInDeadlineOrder(t *testing.T) {
	s := NewManualScheduler()

	var order []string
	s.Schedule(30*time.Millisecond, func() { order = append(order, "c") })
	s.Schedule(10*time.Millisecond, func() { order = append(order, "a") })
	s.Schedule(20*time.Millisecond, func() { order = append(order, "b") })

	s.Advance(25 * time.Millisecond)
	require.Equal(t, []string{"a", "b"}, order)
	require.Equal(t, 1, s.Pending())

	s.Advance(10 * time.Millisecond)
	require.Equal(t, []string{"a", "b", "c"}, order)
	require.Zero(t, s.Pending())
}

func TestManualScheduler_CancelRemovesCallback(t *testing.T) {
	s := NewManualScheduler()

	fired := false
	token := s.Schedule(10*time.Millisecond, func() { fired = true })
	s.Cancel(token)

	s.Advance(time.Second)
	require.False(t, fired)

	// Cancelling again, or cancelling a fired token, is a no-op.
	s.Cancel(token)
}

func TestManualScheduler_CallbackMaySchedule(t *testing.T) {
	s := NewManualScheduler()

	var fires int
	var rearm func()
	rearm = func() {
		fires++
		if fires < 3 {
			s.Schedule(10*time.Millisecond, rearm)
		}
	}
	s.Schedule(10*time.Millisecond, rearm)

	// One advance covers all three chained deadlines.
	s.Advance(35 * time.Millisecond)
	require.Equal(t, 3, fires)
	require.Zero(t, s.Pending())
}

func TestManualScheduler_RescheduledBeyondWindowWaits(t *testing.T) {
	s := NewManualScheduler()

	var fires int
	s.Schedule(10*time.Millisecond, func() {
		fires++
		s.Schedule(100*time.Millisecond, func() { fires++ })
	})

	s.Advance(20 * time.Millisecond)
	require.Equal(t, 1, fires)
	require.Equal(t, 1, s.Pending())

	s.Advance(100 * time.Millisecond)
	require.Equal(t, 2, fires)
}

func TestTimerScheduler_FiresAndCancels(t *testing.T) {
	s := NewTimerScheduler()

	fired := make(chan struct{})
	s.Schedule(5*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("scheduled callback never fired")
	}

	var cancelled atomic.Bool
	token := s.Schedule(50*time.Millisecond, func() { cancelled.Store(true) })
	s.Cancel(token)

	time.Sleep(100 * time.Millisecond)
	require.False(t, cancelled.Load())
}
