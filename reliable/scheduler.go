package reliable

import (
	"sort"
	"sync"
	"time"
)

// Token identifies a scheduled callback so it can be cancelled.
type Token uint64

// Scheduler arms cancellable delayed callbacks. The sender holds one token
// per in-flight message for its pending retry; cancelling removes the
// callback, so firing after cancellation never happens.
//
// Implementations must tolerate Cancel with a token that already fired or
// was already cancelled.
type Scheduler interface {
	// Schedule runs fn after delay, unless cancelled first.
	Schedule(delay time.Duration, fn func()) Token

	// Cancel removes a pending callback. A no-op for unknown tokens.
	Cancel(token Token)
}

// TimerScheduler schedules callbacks on real time using time.AfterFunc.
type TimerScheduler struct {
	mu     sync.Mutex
	next   Token
	timers map[Token]*time.Timer
}

var _ Scheduler = (*TimerScheduler)(nil)

// NewTimerScheduler creates a real-time scheduler.
func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{timers: make(map[Token]*time.Timer)}
}

// Schedule implements Scheduler.
func (s *TimerScheduler) Schedule(delay time.Duration, fn func()) Token {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.next++
	token := s.next
	s.timers[token] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		_, pending := s.timers[token]
		delete(s.timers, token)
		s.mu.Unlock()

		// Lost the race against Cancel: stay silent.
		if pending {
			fn()
		}
	})

	return token
}

// Cancel implements Scheduler.
func (s *TimerScheduler) Cancel(token Token) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, ok := s.timers[token]; ok {
		timer.Stop()
		delete(s.timers, token)
	}
}

// ManualScheduler schedules callbacks on a virtual clock advanced by the
// caller. It serves hosts that drive everything from a single cooperative
// tick, and makes retry tests deterministic.
type ManualScheduler struct {
	mu      sync.Mutex
	now     time.Duration
	next    Token
	pending map[Token]manualEntry
}

type manualEntry struct {
	deadline time.Duration
	fn       func()
}

var _ Scheduler = (*ManualScheduler)(nil)

// NewManualScheduler creates a scheduler whose clock starts at zero.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{pending: make(map[Token]manualEntry)}
}

// Schedule implements Scheduler.
func (s *ManualScheduler) Schedule(delay time.Duration, fn func()) Token {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.next++
	token := s.next
	s.pending[token] = manualEntry{deadline: s.now + delay, fn: fn}

	return token
}

// Cancel implements Scheduler.
func (s *ManualScheduler) Cancel(token Token) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.pending, token)
}

// Advance moves the virtual clock forward and fires every callback whose
// deadline has passed, in deadline order. Callbacks run without the
// scheduler lock held, so they may schedule or cancel freely; callbacks
// scheduled during Advance fire only if their deadline still falls within
// the advanced window.
func (s *ManualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now + d
	s.mu.Unlock()

	for {
		fn, ok := s.popDue(target)
		if !ok {
			break
		}
		fn()
	}

	s.mu.Lock()
	s.now = target
	s.mu.Unlock()
}

// Pending reports how many callbacks are armed.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.pending)
}

// popDue removes and returns the earliest callback due at or before
// target, advancing the clock to its deadline.
func (s *ManualScheduler) popDue(target time.Duration) (func(), bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tokens := make([]Token, 0, len(s.pending))
	for token, entry := range s.pending {
		if entry.deadline <= target {
			tokens = append(tokens, token)
		}
	}
	if len(tokens) == 0 {
		return nil, false
	}

	sort.Slice(tokens, func(i, j int) bool {
		a, b := s.pending[tokens[i]], s.pending[tokens[j]]
		if a.deadline != b.deadline {
			return a.deadline < b.deadline
		}
		return tokens[i] < tokens[j]
	})

	earliest := tokens[0]
	entry := s.pending[earliest]
	delete(s.pending, earliest)
	if entry.deadline > s.now {
		s.now = entry.deadline
	}

	return entry.fn, true
}
