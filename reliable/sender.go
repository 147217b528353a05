// Package reliable delivers payloads at-least-once over a one-way
// transport using acknowledgements and bounded retry.
//
// Each logical message moves through a per-message state machine:
//
//	Sending → WaitingAck → Acked
//	                     → Retrying → Sending (attempt + 1)
//	                     → Failed (retries exhausted, or cancelled)
//
// The retry timer is a scheduled callback armed for the ack timeout and
// cancelled on acknowledgement, never a blocking wait. Messages are
// tracked independently by id; the sender makes no ordering promises
// across messages — two sends may be acknowledged, retried or delivered
// out of order.
package reliable

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/slipwire/slipwire/bandwidth"
	"github.com/slipwire/slipwire/compress"
	"github.com/slipwire/slipwire/errs"
	"github.com/slipwire/slipwire/internal/options"
	"github.com/slipwire/slipwire/wire"
)

// Defaults for the retry state machine.
const (
	DefaultMaxRetries = 3
	DefaultAckTimeout = 250 * time.Millisecond
)

// Transport transmits one encoded frame, one way. A non-nil error marks
// the attempt as failed at the transport layer; the attempt still counts
// against the retry budget and the ack timeout drives the retry.
type Transport func(frame []byte) error

// Status is the per-message delivery state.
type Status uint8

const (
	StatusSending Status = iota + 1
	StatusWaitingAck
	StatusAcked
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSending:
		return "Sending"
	case StatusWaitingAck:
		return "WaitingAck"
	case StatusAcked:
		return "Acked"
	case StatusFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Outcome is the terminal result of one logical message.
type Outcome struct {
	// ID is the message id assigned at Send.
	ID string

	// Attempts is how many transmissions were made.
	Attempts int

	// Err is nil for an acknowledged message, errs.ErrRetriesExhausted
	// when the retry budget ran out, or errs.ErrSendCancelled for an
	// explicit cancellation.
	Err error
}

// OutcomeFunc receives terminal outcomes. Called outside the sender's
// lock; it may call back into the sender.
type OutcomeFunc func(Outcome)

type message struct {
	id       string
	original []byte
	attempt  int
	status   Status
	token    Token
	armed    bool
}

// Sender tracks in-flight messages and drives their retry state machines.
// Safe for concurrent use.
type Sender struct {
	transport  Transport
	scheduler  Scheduler
	codec      compress.ThresholdCodec
	monitor    *bandwidth.Monitor
	logger     *zap.Logger
	onOutcome  OutcomeFunc
	maxRetries int
	ackTimeout time.Duration
	now        func() float64
	newID      func() string

	mu       sync.Mutex
	inFlight map[string]*message
}

// Option configures a Sender.
type Option = options.Option[*Sender]

// WithMaxRetries sets the total transmission budget per message,
// including the first attempt.
func WithMaxRetries(n int) Option {
	return options.New(func(s *Sender) error {
		if n < 1 {
			return fmt.Errorf("%w: max retries %d below 1", errs.ErrInvalidConfig, n)
		}
		s.maxRetries = n

		return nil
	})
}

// WithAckTimeout sets how long each attempt waits for an acknowledgement
// before retrying.
func WithAckTimeout(d time.Duration) Option {
	return options.New(func(s *Sender) error {
		if d <= 0 {
			return fmt.Errorf("%w: ack timeout %v must be positive", errs.ErrInvalidConfig, d)
		}
		s.ackTimeout = d

		return nil
	})
}

// WithCodec sets the payload codec. Defaults to the LZ77 codec behind the
// default minimum-size threshold.
func WithCodec(codec compress.ThresholdCodec) Option {
	return options.NoError(func(s *Sender) {
		s.codec = codec
	})
}

// WithMonitor records each transmitted frame's size into monitor.
func WithMonitor(monitor *bandwidth.Monitor) Option {
	return options.NoError(func(s *Sender) {
		s.monitor = monitor
	})
}

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return options.NoError(func(s *Sender) {
		s.logger = logger
	})
}

// WithOutcomeFunc registers the callback invoked once per message when it
// reaches a terminal state.
func WithOutcomeFunc(fn OutcomeFunc) Option {
	return options.NoError(func(s *Sender) {
		s.onOutcome = fn
	})
}

// WithSenderClock overrides the packet timestamp source (seconds as a
// float).
func WithSenderClock(now func() float64) Option {
	return options.NoError(func(s *Sender) {
		s.now = now
	})
}

// NewSender creates a sender transmitting through transport and arming
// retry timers on scheduler.
func NewSender(transport Transport, scheduler Scheduler, opts ...Option) (*Sender, error) {
	if transport == nil {
		return nil, fmt.Errorf("%w: sender requires a transport", errs.ErrInvalidConfig)
	}
	if scheduler == nil {
		return nil, fmt.Errorf("%w: sender requires a scheduler", errs.ErrInvalidConfig)
	}

	s := &Sender{
		transport:  transport,
		scheduler:  scheduler,
		codec:      compress.NewThresholdCodec(compress.NewLZ77Codec(), compress.DefaultMinCompressSize),
		logger:     zap.NewNop(),
		maxRetries: DefaultMaxRetries,
		ackTimeout: DefaultAckTimeout,
		now: func() float64 {
			return float64(time.Now().UnixNano()) / float64(time.Second)
		},
		newID:    uuid.NewString,
		inFlight: make(map[string]*message),
	}
	if err := options.Apply(s, opts...); err != nil {
		return nil, err
	}

	return s, nil
}

// Send registers payload as a tracked message and transmits the first
// attempt. The terminal outcome arrives through the OutcomeFunc; Send
// itself only fails on validation.
//
// Returns:
//   - string: the assigned message id
//   - error: errs.ErrInvalidPayload or errs.ErrOutputTooLarge for
//     payloads that are rejected before any attempt
func (s *Sender) Send(payload []byte) (string, error) {
	if len(payload) == 0 {
		return "", fmt.Errorf("%w: empty payload", errs.ErrInvalidPayload)
	}
	if len(payload) > compress.MaxDecompressedSize {
		return "", fmt.Errorf("%w: payload of %d bytes exceeds %d", errs.ErrOutputTooLarge, len(payload), compress.MaxDecompressedSize)
	}

	msg := &message{
		id:       s.newID(),
		original: payload,
		attempt:  1,
		status:   StatusSending,
	}

	s.mu.Lock()
	s.inFlight[msg.id] = msg
	s.mu.Unlock()

	s.transmit(msg)

	return msg.id, nil
}

// transmit performs one attempt: compress, frame, hand to the transport,
// record bytes, arm the ack timer.
func (s *Sender) transmit(msg *message) {
	data, compressed, err := s.codec.Compress(msg.original)
	if err != nil {
		// Compression never fails for valid input; treat it as a failed
		// attempt and let the timeout path retry or give up.
		s.logger.Error("compress failed",
			zap.String("id", msg.id),
			zap.Int("attempt", msg.attempt),
			zap.Error(err))
		data, compressed = msg.original, false
	}

	packet := wire.New(msg.id, data, compressed, len(msg.original), msg.attempt, s.now())
	frame, err := packet.Encode()
	if err != nil {
		s.logger.Error("encode failed",
			zap.String("id", msg.id),
			zap.Int("attempt", msg.attempt),
			zap.Error(err))
	} else {
		if sendErr := s.transport(frame); sendErr != nil {
			s.logger.Warn("transport send failed",
				zap.String("id", msg.id),
				zap.Int("attempt", msg.attempt),
				zap.Error(sendErr))
		}
		if s.monitor != nil {
			s.monitor.RecordTransfer(len(frame))
		}
	}

	s.mu.Lock()
	if current, ok := s.inFlight[msg.id]; !ok || current != msg {
		// Acked or cancelled while transmitting.
		s.mu.Unlock()
		return
	}
	msg.status = StatusWaitingAck
	msg.token = s.scheduler.Schedule(s.ackTimeout, func() { s.onTimeout(msg.id) })
	msg.armed = true
	s.mu.Unlock()
}

// onTimeout runs when an attempt's ack timer fires.
func (s *Sender) onTimeout(id string) {
	s.mu.Lock()
	msg, ok := s.inFlight[id]
	if !ok || msg.status != StatusWaitingAck {
		s.mu.Unlock()
		return
	}
	msg.armed = false

	if msg.attempt >= s.maxRetries {
		msg.status = StatusFailed
		delete(s.inFlight, id)
		attempts := msg.attempt
		s.mu.Unlock()

		s.logger.Warn("message failed",
			zap.String("id", id),
			zap.Int("attempts", attempts))
		s.finish(Outcome{ID: id, Attempts: attempts, Err: errs.ErrRetriesExhausted})

		return
	}

	msg.attempt++
	msg.status = StatusSending
	attempt := msg.attempt
	s.mu.Unlock()

	s.logger.Debug("retrying message",
		zap.String("id", id),
		zap.Int("attempt", attempt))
	s.transmit(msg)
}

// Ack marks a message as acknowledged and cancels its pending retry. An
// unknown id is a no-op: acknowledgements arriving after cancellation,
// failure, or a duplicate ack are expected.
func (s *Sender) Ack(id string) {
	s.mu.Lock()
	msg, ok := s.inFlight[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	if msg.armed {
		s.scheduler.Cancel(msg.token)
		msg.armed = false
	}
	msg.status = StatusAcked
	delete(s.inFlight, id)
	attempts := msg.attempt
	s.mu.Unlock()

	s.finish(Outcome{ID: id, Attempts: attempts})
}

// Cancel explicitly abandons an in-flight message: the retry timer is
// removed and the message fails with a distinct cancelled reason.
//
// Returns errs.ErrUnknownMessage if the id is not in flight.
func (s *Sender) Cancel(id string) error {
	s.mu.Lock()
	msg, ok := s.inFlight[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", errs.ErrUnknownMessage, id)
	}
	if msg.armed {
		s.scheduler.Cancel(msg.token)
		msg.armed = false
	}
	msg.status = StatusFailed
	delete(s.inFlight, id)
	attempts := msg.attempt
	s.mu.Unlock()

	s.finish(Outcome{ID: id, Attempts: attempts, Err: errs.ErrSendCancelled})

	return nil
}

// InFlight reports how many messages are awaiting acknowledgement.
func (s *Sender) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.inFlight)
}

// Status reports a message's current state. The second return is false
// once the message has reached a terminal state and been forgotten.
func (s *Sender) Status(id string) (Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.inFlight[id]
	if !ok {
		return 0, false
	}

	return msg.status, true
}

func (s *Sender) finish(outcome Outcome) {
	if s.onOutcome != nil {
		s.onOutcome(outcome)
	}
}
