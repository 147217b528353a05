// Package slipwire provides a network-optimization layer for real-time game
// state synchronization.
//
// Slipwire reduces the bandwidth and latency cost of streaming frequently
// updated game state between peers by combining several techniques behind a
// single pipeline:
//
//   - Sliding-window LZ77 compression tuned for small state payloads, with
//     pluggable S2, LZ4 and Zstd backends
//   - Delta encoding that transmits only the fields that changed since the
//     last acknowledged state
//   - Client-side prediction that extrapolates entity state between updates
//     using linear velocity estimation
//   - Bandwidth monitoring with adaptive quality scaling
//   - Reliable delivery with acknowledgements, timeouts and bounded retries
//
// # Basic Usage
//
// Creating a pipeline over a caller-supplied transport:
//
//	import "github.com/slipwire/slipwire"
//
//	cfg := slipwire.DefaultConfig()
//	pipe, _ := slipwire.NewPipeline(cfg, func(frame []byte) error {
//	    return conn.Send(frame) // any frame-oriented transport
//	})
//
//	// Send the current game state; only changed fields go on the wire.
//	id, _ := pipe.SendState(delta.State{"x": 10.0, "y": 4.5})
//
//	// Acknowledge delivery when the peer confirms receipt.
//	pipe.Ack(id)
//
// Receiving on the other side:
//
//	state, err := pipe.Receive(frame)
//
// # Standalone Components
//
// Every stage of the pipeline is usable on its own. The compress package
// exposes the codecs, delta the state differ, predict the extrapolation
// buffer, bandwidth the monitor and quality adapter, and reliable the
// retry state machine. The transport/websocket package provides a
// ready-made transport over gorilla/websocket.
//
// # Package Structure
//
// This package provides convenient top-level wrappers around the pipeline
// and compress packages, simplifying the most common use cases. For
// fine-grained control, use the subpackages directly.
package slipwire

import (
	"github.com/slipwire/slipwire/compress"
	"github.com/slipwire/slipwire/config"
	"github.com/slipwire/slipwire/format"
	"github.com/slipwire/slipwire/pipeline"
	"github.com/slipwire/slipwire/reliable"
)

// DefaultConfig returns the recommended pipeline configuration:
//
//   - LZ77 compression with a 4096-byte window and 18-byte lookahead
//   - 100-byte minimum compression threshold
//   - 64 KiB/s target bandwidth, quality clamped to [0.1, 1.0]
//   - 250ms acknowledgement timeout, 3 delivery attempts
//   - 16-sample prediction buffer per entity
func DefaultConfig() config.Config {
	return config.Default()
}

// LoadConfig reads a pipeline configuration from a YAML file, applying
// defaults for omitted fields and validating the result.
func LoadConfig(path string) (config.Config, error) {
	return config.Load(path)
}

// NewPipeline creates a full send/receive pipeline over the given transport.
//
// The transport is any function that ships one frame to the peer; delivery
// tracking, retries and compression are handled by the pipeline.
//
// Parameters:
//   - cfg: Pipeline configuration (see DefaultConfig and LoadConfig)
//   - transport: Frame send function invoked for every transmission attempt
//   - opts: Optional overrides (see pipeline.Option)
//
// Returns:
//   - *pipeline.Pipeline: The created pipeline.
//   - error: An error if the configuration is invalid.
func NewPipeline(cfg config.Config, transport reliable.Transport, opts ...pipeline.Option) (*pipeline.Pipeline, error) {
	return pipeline.New(cfg, transport, opts...)
}

// NewCodec creates a threshold codec with the default LZ77 backend and
// the default minimum compression size.
//
// Payloads below the threshold, and payloads the backend cannot shrink,
// pass through verbatim. Use compress.NewThresholdCodec directly to pick
// a different backend or threshold.
func NewCodec() (compress.ThresholdCodec, error) {
	codec, err := compress.GetCodec(format.CompressionLZ77)
	if err != nil {
		return compress.ThresholdCodec{}, err
	}

	return compress.NewThresholdCodec(codec, compress.DefaultMinCompressSize), nil
}
