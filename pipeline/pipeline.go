// Package pipeline wires the slipwire components into the outbound and
// inbound dataflows:
//
//	outbound: state → delta encode → compress → reliable send → transport
//	inbound:  transport → size/shape validation → decompress → delta decode
//
// A Pipeline represents one logical peer link. It keeps the last state
// sent and the last state received as delta baselines; the codec cannot
// detect a peer whose baseline drifted (see package delta), so hosts that
// need stronger guarantees should send periodic full snapshots by calling
// ResetBaseline.
//
// The bandwidth monitor is fed by the sender's transmissions; Tick drives
// the quality adapter and is expected once per monitor interval from the
// host's heartbeat.
package pipeline

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/slipwire/slipwire/bandwidth"
	"github.com/slipwire/slipwire/compress"
	"github.com/slipwire/slipwire/config"
	"github.com/slipwire/slipwire/delta"
	"github.com/slipwire/slipwire/errs"
	"github.com/slipwire/slipwire/format"
	"github.com/slipwire/slipwire/internal/options"
	"github.com/slipwire/slipwire/predict"
	"github.com/slipwire/slipwire/reliable"
	"github.com/slipwire/slipwire/wire"
)

// Pipeline owns one peer link's codecs, monitors and sender.
//
// SendState/Receive hold an internal mutex only long enough to swap
// baselines; the heavy work (diffing, compression) runs on the caller.
type Pipeline struct {
	codec     compress.ThresholdCodec
	delta     *delta.Codec
	predictor *predict.Buffer
	monitor   *bandwidth.Monitor
	adapter   *bandwidth.QualityAdapter
	sender    *reliable.Sender
	logger    *zap.Logger

	mu           sync.Mutex
	lastSent     delta.State
	lastReceived delta.State
}

// Option configures a Pipeline beyond its Config.
type Option = options.Option[*settings]

// settings collects construction-time dependencies that are not part of
// the flat recognized-options surface.
type settings struct {
	logger    *zap.Logger
	scheduler reliable.Scheduler
	onOutcome reliable.OutcomeFunc
	clock     func() float64
}

// WithLogger sets the structured logger shared by the pipeline and its
// sender. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return options.NoError(func(s *settings) {
		s.logger = logger
	})
}

// WithScheduler overrides the retry scheduler. Defaults to a real-time
// scheduler; tick-driven hosts pass a reliable.ManualScheduler they
// advance themselves.
func WithScheduler(scheduler reliable.Scheduler) Option {
	return options.NoError(func(s *settings) {
		s.scheduler = scheduler
	})
}

// WithOutcomeFunc registers the terminal-outcome callback for sends.
func WithOutcomeFunc(fn reliable.OutcomeFunc) Option {
	return options.NoError(func(s *settings) {
		s.onOutcome = fn
	})
}

// WithClock overrides the time source (seconds as a float) used for
// packet timestamps, delta timestamps and bandwidth samples.
func WithClock(clock func() float64) Option {
	return options.NoError(func(s *settings) {
		s.clock = clock
	})
}

// New builds a pipeline from a normalized configuration and the host's
// one-way transport. Acknowledgements are fed in through Ack.
func New(cfg config.Config, transport reliable.Transport, opts ...Option) (*Pipeline, error) {
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	set := &settings{logger: zap.NewNop()}
	if err := options.Apply(set, opts...); err != nil {
		return nil, err
	}
	if set.scheduler == nil {
		set.scheduler = reliable.NewTimerScheduler()
	}

	codec, err := buildCodec(cfg)
	if err != nil {
		return nil, err
	}
	threshold := compress.NewThresholdCodec(codec, cfg.MinCompressSize)

	var deltaOpts []delta.Option
	monitorOpts := []bandwidth.MonitorOption{
		bandwidth.WithMonitorInterval(cfg.MonitorInterval.Seconds()),
	}
	if set.clock != nil {
		deltaOpts = append(deltaOpts, delta.WithClock(set.clock))
		monitorOpts = append(monitorOpts, bandwidth.WithMonitorClock(set.clock))
	}

	deltaCodec, err := delta.NewCodec(deltaOpts...)
	if err != nil {
		return nil, err
	}

	monitor, err := bandwidth.NewMonitor(monitorOpts...)
	if err != nil {
		return nil, err
	}

	adapter, err := bandwidth.NewQualityAdapter(monitor,
		bandwidth.WithTargetBandwidth(cfg.TargetBandwidth),
		bandwidth.WithQualityRange(cfg.MinQuality, cfg.MaxQuality),
	)
	if err != nil {
		return nil, err
	}

	predictor, err := predict.NewBuffer(cfg.PredictionBufferCapacity)
	if err != nil {
		return nil, err
	}

	senderOpts := []reliable.Option{
		reliable.WithCodec(threshold),
		reliable.WithMonitor(monitor),
		reliable.WithLogger(set.logger),
		reliable.WithMaxRetries(cfg.MaxRetries),
		reliable.WithAckTimeout(cfg.AckTimeout.Duration),
	}
	if set.onOutcome != nil {
		senderOpts = append(senderOpts, reliable.WithOutcomeFunc(set.onOutcome))
	}
	if set.clock != nil {
		senderOpts = append(senderOpts, reliable.WithSenderClock(set.clock))
	}

	sender, err := reliable.NewSender(transport, set.scheduler, senderOpts...)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		codec:     threshold,
		delta:     deltaCodec,
		predictor: predictor,
		monitor:   monitor,
		adapter:   adapter,
		sender:    sender,
		logger:    set.logger,
	}, nil
}

func buildCodec(cfg config.Config) (compress.Codec, error) {
	cType, err := cfg.CompressionType()
	if err != nil {
		return nil, err
	}

	// The LZ77 codec honors the configured window; the other backends
	// manage their own dictionaries.
	if cType == format.CompressionLZ77 {
		return compress.NewLZ77CodecSized(cfg.WindowSize, cfg.LookaheadSize)
	}

	return compress.CreateCodec(cType, "pipeline")
}

// SendState delta-encodes state against the last state sent on this link
// and hands it to the reliable sender. Returns the tracked message id.
func (p *Pipeline) SendState(state delta.State) (string, error) {
	p.mu.Lock()
	previous := p.lastSent
	p.mu.Unlock()

	encoded, err := p.delta.Encode(state, previous)
	if err != nil {
		return "", err
	}

	id, err := p.sender.Send(encoded)
	if err != nil {
		return "", err
	}

	p.mu.Lock()
	p.lastSent = state
	p.mu.Unlock()

	return id, nil
}

// SendRaw sends an opaque payload through the reliable sender without
// delta encoding. Used for traffic that is not key-value state.
func (p *Pipeline) SendRaw(payload []byte) (string, error) {
	return p.sender.Send(payload)
}

// Receive validates, decompresses and delta-decodes one inbound frame,
// returning the reconstructed state. Integrity failures discard the frame
// and are reported as typed errors; callers log and move on.
func (p *Pipeline) Receive(frame []byte) (delta.State, error) {
	packet, err := wire.Decode(frame)
	if err != nil {
		p.logger.Warn("dropping invalid frame", zap.Error(err))
		return nil, err
	}

	payload, err := p.codec.Decompress(packet.Data, packet.Compressed)
	if err != nil {
		p.logger.Warn("dropping undecompressable packet",
			zap.String("id", packet.ID),
			zap.Error(err))
		return nil, err
	}

	p.mu.Lock()
	base := p.lastReceived
	p.mu.Unlock()

	state, err := p.delta.Decode(payload, base)
	if err != nil {
		p.logger.Warn("dropping undecodable state",
			zap.String("id", packet.ID),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", errs.ErrInvalidPayload, err)
	}

	p.mu.Lock()
	p.lastReceived = state
	p.mu.Unlock()

	return state, nil
}

// Ack feeds an acknowledgement from the transport's ack channel.
func (p *Pipeline) Ack(id string) {
	p.sender.Ack(id)
}

// Cancel abandons an in-flight message.
func (p *Pipeline) Cancel(id string) error {
	return p.sender.Cancel(id)
}

// Tick drives the quality adapter. Call once per monitor interval.
func (p *Pipeline) Tick() {
	p.adapter.Tick()
}

// Quality returns the advisory quality scalar for effect producers.
func (p *Pipeline) Quality() float64 {
	return p.adapter.Quality()
}

// Bandwidth returns the currently observed throughput in bytes per second.
func (p *Pipeline) Bandwidth() float64 {
	return p.monitor.Rate()
}

// Predictor exposes the per-entity history buffer fed by state producers.
func (p *Pipeline) Predictor() *predict.Buffer {
	return p.predictor
}

// InFlight reports how many messages await acknowledgement.
func (p *Pipeline) InFlight() int {
	return p.sender.InFlight()
}

// ResetBaseline clears both delta baselines so the next send and receive
// work on full snapshots. Used to resynchronize after a suspected drift
// or a reconnect.
func (p *Pipeline) ResetBaseline() {
	p.mu.Lock()
	p.lastSent = nil
	p.lastReceived = nil
	p.mu.Unlock()
}
