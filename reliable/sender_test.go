package reliable

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/slipwire/slipwire/bandwidth"
	"github.com/slipwire/slipwire/errs"
	"github.com/slipwire/slipwire/wire"
)

// recordingTransport captures every frame handed to the transport and can
// be told to fail attempts.
type recordingTransport struct {
	mu     sync.Mutex
	frames [][]byte
	err    error
}

func (tr *recordingTransport) send(frame []byte) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.frames = append(tr.frames, append([]byte(nil), frame...))
	return tr.err
}

func (tr *recordingTransport) count() int {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return len(tr.frames)
}

func (tr *recordingTransport) packet(t *testing.T, i int) wire.Packet {
	t.Helper()
	tr.mu.Lock()
	defer tr.mu.Unlock()
	p, err := wire.Decode(tr.frames[i])
	require.NoError(t, err)
	return p
}

type outcomeRecorder struct {
	mu       sync.Mutex
	outcomes []Outcome
}

func (r *outcomeRecorder) record(o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
}

func (r *outcomeRecorder) all() []Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Outcome(nil), r.outcomes...)
}

func newTestSender(t *testing.T, tr *recordingTransport, sched Scheduler, rec *outcomeRecorder, opts ...Option) *Sender {
	t.Helper()
	base := []Option{
		WithOutcomeFunc(rec.record),
		WithSenderClock(func() float64 { return 100.0 }),
	}
	s, err := NewSender(tr.send, sched, append(base, opts...)...)
	require.NoError(t, err)
	return s
}

func TestSend_AckStopsRetries(t *testing.T) {
	tr := &recordingTransport{}
	sched := NewManualScheduler()
	rec := &outcomeRecorder{}
	s := newTestSender(t, tr, sched, rec)

	id, err := s.Send([]byte("hello state"))
	require.NoError(t, err)
	require.Equal(t, 1, tr.count())

	status, ok := s.Status(id)
	require.True(t, ok)
	require.Equal(t, StatusWaitingAck, status)

	s.Ack(id)
	require.Zero(t, s.InFlight())
	require.Zero(t, sched.Pending(), "ack must cancel the retry timer")

	sched.Advance(time.Minute)
	require.Equal(t, 1, tr.count(), "no retries after ack")

	outcomes := rec.all()
	require.Len(t, outcomes, 1)
	require.Equal(t, id, outcomes[0].ID)
	require.NoError(t, outcomes[0].Err)
	require.Equal(t, 1, outcomes[0].Attempts)
}

func TestSend_ExhaustsRetries(t *testing.T) {
	tr := &recordingTransport{}
	sched := NewManualScheduler()
	rec := &outcomeRecorder{}
	s := newTestSender(t, tr, sched, rec,
		WithMaxRetries(3),
		WithAckTimeout(100*time.Millisecond),
	)

	id, err := s.Send([]byte("never acknowledged"))
	require.NoError(t, err)

	// Never acknowledge: exactly 3 attempts, then failure, then silence.
	sched.Advance(10 * time.Second)
	require.Equal(t, 3, tr.count())
	require.Zero(t, sched.Pending(), "no timers after exhaustion")
	require.Zero(t, s.InFlight())

	outcomes := rec.all()
	require.Len(t, outcomes, 1)
	require.Equal(t, id, outcomes[0].ID)
	require.ErrorIs(t, outcomes[0].Err, errs.ErrRetriesExhausted)
	require.Equal(t, 3, outcomes[0].Attempts)

	// Attempts are numbered 1..3 on the wire, same id throughout.
	for i := 0; i < 3; i++ {
		p := tr.packet(t, i)
		require.Equal(t, id, p.ID)
		require.Equal(t, i+1, p.Attempt)
	}

	sched.Advance(10 * time.Second)
	require.Equal(t, 3, tr.count(), "exhausted message must stay silent")
}

func TestSend_RetriesUntilLateAck(t *testing.T) {
	tr := &recordingTransport{}
	sched := NewManualScheduler()
	rec := &outcomeRecorder{}
	s := newTestSender(t, tr, sched, rec, WithMaxRetries(5), WithAckTimeout(time.Second))

	id, err := s.Send([]byte("eventually acknowledged"))
	require.NoError(t, err)

	sched.Advance(2500 * time.Millisecond) // two timeouts fire
	require.Equal(t, 3, tr.count())

	s.Ack(id)
	sched.Advance(time.Minute)
	require.Equal(t, 3, tr.count())

	outcomes := rec.all()
	require.Len(t, outcomes, 1)
	require.NoError(t, outcomes[0].Err)
	require.Equal(t, 3, outcomes[0].Attempts)
}

func TestSend_TransportErrorsStillConsumeAttempts(t *testing.T) {
	tr := &recordingTransport{err: errors.New("connection reset")}
	sched := NewManualScheduler()
	rec := &outcomeRecorder{}
	s := newTestSender(t, tr, sched, rec, WithMaxRetries(2), WithAckTimeout(time.Second))

	_, err := s.Send([]byte("doomed"))
	require.NoError(t, err, "transient transport failure is not a Send error")

	sched.Advance(time.Minute)
	require.Equal(t, 2, tr.count())

	outcomes := rec.all()
	require.Len(t, outcomes, 1)
	require.ErrorIs(t, outcomes[0].Err, errs.ErrRetriesExhausted)
}

func TestCancel_StopsRetriesWithDistinctReason(t *testing.T) {
	tr := &recordingTransport{}
	sched := NewManualScheduler()
	rec := &outcomeRecorder{}
	s := newTestSender(t, tr, sched, rec)

	id, err := s.Send([]byte("cancelled mid-flight"))
	require.NoError(t, err)

	require.NoError(t, s.Cancel(id))
	require.Zero(t, sched.Pending())

	sched.Advance(time.Minute)
	require.Equal(t, 1, tr.count())

	outcomes := rec.all()
	require.Len(t, outcomes, 1)
	require.ErrorIs(t, outcomes[0].Err, errs.ErrSendCancelled)

	// A late ack for a cancelled message is a no-op.
	s.Ack(id)
	require.Len(t, rec.all(), 1)

	require.ErrorIs(t, s.Cancel("no-such-id"), errs.ErrUnknownMessage)
}

func TestSend_ConcurrentMessagesTrackedIndependently(t *testing.T) {
	tr := &recordingTransport{}
	sched := NewManualScheduler()
	rec := &outcomeRecorder{}
	s := newTestSender(t, tr, sched, rec, WithMaxRetries(2), WithAckTimeout(time.Second))

	idA, err := s.Send([]byte("message a"))
	require.NoError(t, err)
	idB, err := s.Send([]byte("message b"))
	require.NoError(t, err)
	require.Equal(t, 2, s.InFlight())

	// Ack A; B runs out of retries on its own.
	s.Ack(idA)
	sched.Advance(time.Minute)

	outcomes := rec.all()
	require.Len(t, outcomes, 2)
	byID := map[string]Outcome{}
	for _, o := range outcomes {
		byID[o.ID] = o
	}
	require.NoError(t, byID[idA].Err)
	require.ErrorIs(t, byID[idB].Err, errs.ErrRetriesExhausted)
}

func TestSend_CompressesLargePayloads(t *testing.T) {
	tr := &recordingTransport{}
	sched := NewManualScheduler()
	rec := &outcomeRecorder{}
	s := newTestSender(t, tr, sched, rec)

	payload := make([]byte, 4096) // zeros: maximally compressible
	_, err := s.Send(payload)
	require.NoError(t, err)

	p := tr.packet(t, 0)
	require.True(t, p.Compressed)
	require.Less(t, len(p.Data), len(payload))
	require.Equal(t, len(payload), p.OriginalSize)
	require.Equal(t, len(p.Data), p.Checksum)
}

func TestSend_SmallPayloadsSkipCompression(t *testing.T) {
	tr := &recordingTransport{}
	sched := NewManualScheduler()
	rec := &outcomeRecorder{}
	s := newTestSender(t, tr, sched, rec)

	_, err := s.Send([]byte("tiny"))
	require.NoError(t, err)

	p := tr.packet(t, 0)
	require.False(t, p.Compressed)
	require.Equal(t, []byte("tiny"), p.Data)
}

func TestSend_ValidatesPayload(t *testing.T) {
	tr := &recordingTransport{}
	sched := NewManualScheduler()
	rec := &outcomeRecorder{}
	s := newTestSender(t, tr, sched, rec)

	_, err := s.Send(nil)
	require.ErrorIs(t, err, errs.ErrInvalidPayload)
	require.Zero(t, tr.count())
}

func TestSend_RecordsBytesIntoMonitor(t *testing.T) {
	clock := 0.0
	monitor, err := bandwidth.NewMonitor(bandwidth.WithMonitorClock(func() float64 { return clock }))
	require.NoError(t, err)

	tr := &recordingTransport{}
	sched := NewManualScheduler()
	rec := &outcomeRecorder{}
	s := newTestSender(t, tr, sched, rec, WithMonitor(monitor))

	_, err = s.Send([]byte("first frame"))
	require.NoError(t, err)
	clock = 0.5
	_, err = s.Send([]byte("second frame"))
	require.NoError(t, err)

	require.Positive(t, monitor.Rate(), "transmitted frames must feed the monitor")
}

func TestNewSender_Validation(t *testing.T) {
	sched := NewManualScheduler()

	_, err := NewSender(nil, sched)
	require.ErrorIs(t, err, errs.ErrInvalidConfig)

	_, err = NewSender(func([]byte) error { return nil }, nil)
	require.ErrorIs(t, err, errs.ErrInvalidConfig)

	_, err = NewSender(func([]byte) error { return nil }, sched, WithMaxRetries(0))
	require.ErrorIs(t, err, errs.ErrInvalidConfig)

	_, err = NewSender(func([]byte) error { return nil }, sched, WithAckTimeout(0))
	require.ErrorIs(t, err, errs.ErrInvalidConfig)
}
