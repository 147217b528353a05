// Package delta implements structural diff/merge of flat key-value states.
//
// Encode compares the current state against the previous one the peer is
// known to hold and transmits only the changed keys when that is actually
// smaller on the wire; otherwise it falls back to a full snapshot. The
// envelope is self-describing, so Decode knows whether to merge or replace.
//
// The codec does not verify that the base supplied to Decode is the state
// the encoder diffed against. Feeding a stale or wrong base silently
// produces a drifted state; keeping encoder and decoder bases in lockstep
// is the transport layer's job.
package delta

import (
	"fmt"
	"reflect"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/slipwire/slipwire/errs"
	"github.com/slipwire/slipwire/format"
	"github.com/slipwire/slipwire/internal/options"
)

// State is a flat key-value snapshot of some entity or subsystem.
// Values are either numeric or opaque; the codec never interprets them
// beyond equality.
type State map[string]any

// envelope is the msgpack wire form of an encoded state.
type envelope struct {
	Encoding  uint8   `msgpack:"e"`
	Timestamp float64 `msgpack:"ts"`
	Fields    State   `msgpack:"f"`
}

// Codec encodes and decodes states, diffing against a known base.
// Safe for concurrent use; it holds no per-message state.
type Codec struct {
	now func() float64
}

// Option configures a Codec.
type Option = options.Option[*Codec]

// WithClock overrides the timestamp source. Timestamps are seconds as a
// float; tests inject a fixed clock for determinism.
func WithClock(now func() float64) Option {
	return options.NoError(func(c *Codec) {
		c.now = now
	})
}

// NewCodec creates a delta codec.
func NewCodec(opts ...Option) (*Codec, error) {
	c := &Codec{
		now: func() float64 {
			return float64(time.Now().UnixNano()) / float64(time.Second)
		},
	}
	if err := options.Apply(c, opts...); err != nil {
		return nil, err
	}

	return c, nil
}

// Encode serializes current for a peer that holds previous.
//
// With a nil previous no delta is possible and a full snapshot is
// returned. Otherwise the changed keys (including keys removed from
// current, transmitted as explicit nils) are packed as a delta, and the
// smaller of the delta and full serializations wins.
//
// Returns:
//   - []byte: msgpack-encoded envelope, full or delta
//   - error: serialization failure
func (c *Codec) Encode(current, previous State) ([]byte, error) {
	full, err := msgpack.Marshal(envelope{
		Encoding:  uint8(format.TypeFull),
		Timestamp: c.now(),
		Fields:    current,
	})
	if err != nil {
		return nil, fmt.Errorf("encode full state: %w", err)
	}
	if previous == nil {
		return full, nil
	}

	changed := diff(current, previous)
	encoded, err := msgpack.Marshal(envelope{
		Encoding:  uint8(format.TypeDelta),
		Timestamp: c.now(),
		Fields:    changed,
	})
	if err != nil {
		return nil, fmt.Errorf("encode delta state: %w", err)
	}

	if len(full) <= len(encoded) {
		return full, nil
	}

	return encoded, nil
}

// Decode reverses Encode.
//
// Full snapshots are returned directly. Deltas are overlaid on a copy of
// base: changed keys replace the base values, and keys the encoder marked
// removed (nil) are deleted. The base itself is never modified.
//
// Returns:
//   - State: the reconstructed state
//   - error: errs.ErrInvalidPayload for a delta without a base, or a
//     deserialization failure
func (c *Codec) Decode(encoded []byte, base State) (State, error) {
	var env envelope
	if err := msgpack.Unmarshal(encoded, &env); err != nil {
		return nil, fmt.Errorf("decode state envelope: %w", err)
	}

	switch format.EncodingType(env.Encoding) {
	case format.TypeFull:
		return env.Fields, nil

	case format.TypeDelta:
		if base == nil {
			return nil, fmt.Errorf("%w: delta received without a base state", errs.ErrInvalidPayload)
		}

		merged := make(State, len(base)+len(env.Fields))
		for k, v := range base {
			merged[k] = v
		}
		for k, v := range env.Fields {
			if v == nil {
				delete(merged, k)
				continue
			}
			merged[k] = v
		}

		return merged, nil

	default:
		return nil, fmt.Errorf("%w: unknown state encoding 0x%02x", errs.ErrInvalidPayload, env.Encoding)
	}
}

// Timestamp extracts the encode-time timestamp from an encoded state
// without fully decoding it. Hosts use it for their own staleness policy.
func Timestamp(encoded []byte) (float64, error) {
	var env envelope
	if err := msgpack.Unmarshal(encoded, &env); err != nil {
		return 0, fmt.Errorf("decode state envelope: %w", err)
	}

	return env.Timestamp, nil
}

// diff returns the keys of current whose values differ from previous,
// plus explicit nils for keys present in previous but gone from current.
func diff(current, previous State) State {
	changed := make(State)
	for k, v := range current {
		prev, ok := previous[k]
		if !ok || !reflect.DeepEqual(v, prev) {
			changed[k] = v
		}
	}
	for k := range previous {
		if _, ok := current[k]; !ok {
			changed[k] = nil
		}
	}

	return changed
}
