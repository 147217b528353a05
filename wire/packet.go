// Package wire defines the packet exchanged between slipwire peers and its
// msgpack framing.
//
// A packet correlates retries and acknowledgements by id, carries the
// possibly-compressed payload, and holds two integrity signals: the
// length-based checksum (detects truncation) and an xxHash64 digest
// (detects corruption). The digest is optional on the wire — receivers
// skip digest verification when the field is zero, so length-only senders
// stay compatible.
//
// Size bounds are enforced before a frame is parsed, keeping hostile
// inputs from reaching the decompressor at all.
package wire

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/slipwire/slipwire/compress"
	"github.com/slipwire/slipwire/errs"
	"github.com/slipwire/slipwire/internal/hash"
)

// maxFrameSize bounds the encoded frame: the payload bound plus headroom
// for the envelope fields.
const maxFrameSize = compress.MaxCompressedSize + 1024

// Packet is one transmission attempt of a tracked message.
type Packet struct {
	// ID correlates retries and acknowledgements of the same logical
	// message. Opaque to the receiver.
	ID string `msgpack:"id"`

	// Data is the payload, compressed when Compressed is set.
	Data []byte `msgpack:"data"`

	// Compressed reports whether Data passed through a compressor. When
	// set, len(Data) is strictly smaller than OriginalSize.
	Compressed bool `msgpack:"compressed"`

	// Timestamp is the send time of this attempt, in seconds.
	Timestamp float64 `msgpack:"timestamp"`

	// Attempt is the retry counter, starting at 1 and strictly increasing
	// per retry of the same message.
	Attempt int `msgpack:"attempt"`

	// Checksum is the byte length of Data. A weak integrity signal that
	// detects truncation only.
	Checksum int `msgpack:"checksum"`

	// OriginalSize is the size of Data before compression, for
	// diagnostics and ratio reporting.
	OriginalSize int `msgpack:"original_size"`

	// Digest is the xxHash64 of Data, or zero when the sender did not
	// provide one.
	Digest uint64 `msgpack:"digest,omitempty"`
}

// New builds a packet for one send attempt, filling in both integrity
// signals from data.
func New(id string, data []byte, compressed bool, originalSize int, attempt int, timestamp float64) Packet {
	return Packet{
		ID:           id,
		Data:         data,
		Compressed:   compressed,
		Timestamp:    timestamp,
		Attempt:      attempt,
		Checksum:     len(data),
		OriginalSize: originalSize,
		Digest:       hash.Digest(data),
	}
}

// Encode serializes the packet as a msgpack frame.
func (p Packet) Encode() ([]byte, error) {
	frame, err := msgpack.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode packet %s: %w", p.ID, err)
	}

	return frame, nil
}

// Decode parses and verifies a frame received from a peer.
//
// Frames over the size bound are rejected with errs.ErrPayloadTooLarge
// before any parsing. Frames that parse but fail Verify are rejected with
// the corresponding integrity error.
func Decode(frame []byte) (Packet, error) {
	if len(frame) > maxFrameSize {
		return Packet{}, fmt.Errorf("%w: frame of %d bytes exceeds %d", errs.ErrPayloadTooLarge, len(frame), maxFrameSize)
	}

	var p Packet
	if err := msgpack.Unmarshal(frame, &p); err != nil {
		return Packet{}, fmt.Errorf("%w: %v", errs.ErrInvalidPayload, err)
	}
	if err := p.Verify(); err != nil {
		return Packet{}, err
	}

	return p, nil
}

// Verify checks the packet's structural invariants and integrity signals.
func (p Packet) Verify() error {
	if p.ID == "" {
		return fmt.Errorf("%w: empty packet id", errs.ErrInvalidPayload)
	}
	if p.Attempt < 1 {
		return fmt.Errorf("%w: attempt %d below 1", errs.ErrInvalidPayload, p.Attempt)
	}
	if len(p.Data) > compress.MaxCompressedSize {
		return fmt.Errorf("%w: payload of %d bytes exceeds %d", errs.ErrPayloadTooLarge, len(p.Data), compress.MaxCompressedSize)
	}
	if p.Compressed && len(p.Data) >= p.OriginalSize {
		return fmt.Errorf("%w: compressed payload not smaller than original (%d >= %d)", errs.ErrInvalidPayload, len(p.Data), p.OriginalSize)
	}
	if p.Checksum != len(p.Data) {
		return fmt.Errorf("%w: checksum %d, payload length %d", errs.ErrChecksumMismatch, p.Checksum, len(p.Data))
	}
	if p.Digest != 0 && p.Digest != hash.Digest(p.Data) {
		return fmt.Errorf("%w: packet %s", errs.ErrDigestMismatch, p.ID)
	}

	return nil
}
