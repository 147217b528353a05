package compress

import (
	"fmt"

	"github.com/slipwire/slipwire/errs"
)

// Defaults for the LZ77 sliding window. The window must fit a uint16
// distance; the lookahead must fit a uint8 length.
const (
	DefaultWindowSize    = 4096
	DefaultLookaheadSize = 18

	minMatchLength   = 3
	maxWindowSize    = 1<<16 - 1
	maxLookaheadSize = 1<<8 - 1
)

// Token stream layout. Each token starts with a flag byte:
//
//	tokenLiteral:  flag, literal byte
//	tokenMatch:    flag, distance uint16 (little endian), length uint8, next literal byte
//	tokenMatchEnd: flag, distance uint16 (little endian), length uint8
//
// tokenMatchEnd is only valid as the final token: it is a back-reference
// whose match runs to the very end of the input, so no literal follows.
const (
	tokenLiteral  = 0x00
	tokenMatch    = 0x01
	tokenMatchEnd = 0x02
)

// LZ77Codec is a dependency-free sliding-window codec.
//
// The encoder scans the input left to right, keeping a dictionary window
// over the last windowSize bytes. Runs of at least three bytes that recur
// within the window are replaced by (distance, length, next-literal)
// back-references; everything else is emitted as literals. Matches may
// overlap their own output (distance < length), which the decoder handles
// with a byte-by-byte self-referential copy.
//
// It favors predictable behavior over ratio: for state-sync frames full of
// repeated field names and runs, it routinely beats the framing overhead;
// for incompressible data the ThresholdCodec wrapper falls back to sending
// the original bytes.
type LZ77Codec struct {
	windowSize    int
	lookaheadSize int
}

var _ Codec = LZ77Codec{}

// NewLZ77Codec creates an LZ77 codec with the default window (4096) and
// lookahead (18).
func NewLZ77Codec() LZ77Codec {
	codec, _ := NewLZ77CodecSized(DefaultWindowSize, DefaultLookaheadSize)
	return codec
}

// NewLZ77CodecSized creates an LZ77 codec with a custom window and lookahead.
//
// Parameters:
//   - windowSize: dictionary window in bytes, in [minMatchLength+1, 65535]
//   - lookaheadSize: maximum match length, in [minMatchLength, 255]
//
// Returns:
//   - LZ77Codec: the configured codec
//   - error: errs.ErrInvalidConfig if either size is out of range
func NewLZ77CodecSized(windowSize, lookaheadSize int) (LZ77Codec, error) {
	if windowSize <= minMatchLength || windowSize > maxWindowSize {
		return LZ77Codec{}, fmt.Errorf("%w: window size %d out of range", errs.ErrInvalidConfig, windowSize)
	}
	if lookaheadSize < minMatchLength || lookaheadSize > maxLookaheadSize {
		return LZ77Codec{}, fmt.Errorf("%w: lookahead size %d out of range", errs.ErrInvalidConfig, lookaheadSize)
	}

	return LZ77Codec{windowSize: windowSize, lookaheadSize: lookaheadSize}, nil
}

// Compress encodes data as an LZ77 token stream.
//
// The output may be larger than the input for incompressible data; callers
// that need the smaller-of-two behavior should go through ThresholdCodec.
func (c LZ77Codec) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	// Worst case is two bytes per literal; reserve for the common case of
	// mildly compressible input instead.
	out := make([]byte, 0, len(data)+len(data)/8+8)

	pos := 0
	for pos < len(data) {
		distance, length := c.findLongestMatch(data, pos)
		if length >= minMatchLength {
			next := pos + length
			if next < len(data) {
				out = append(out, tokenMatch, byte(distance), byte(distance>>8), byte(length), data[next])
				pos = next + 1
			} else {
				out = append(out, tokenMatchEnd, byte(distance), byte(distance>>8), byte(length))
				pos = next
			}
		} else {
			out = append(out, tokenLiteral, data[pos])
			pos++
		}
	}

	return out, nil
}

// findLongestMatch searches the window behind pos for the longest run that
// matches the bytes at pos, preferring the nearest start on equal length.
// The match may extend past pos into its own output (overlap).
func (c LZ77Codec) findLongestMatch(data []byte, pos int) (distance, length int) {
	limit := len(data) - pos
	if limit > c.lookaheadSize {
		limit = c.lookaheadSize
	}
	if limit < minMatchLength {
		return 0, 0
	}

	windowStart := pos - c.windowSize
	if windowStart < 0 {
		windowStart = 0
	}

	best := 0
	bestDistance := 0
	for start := pos - 1; start >= windowStart; start-- {
		if data[start] != data[pos] {
			continue
		}

		n := 1
		for n < limit && data[start+n] == data[pos+n] {
			n++
		}

		if n > best {
			best = n
			bestDistance = pos - start
			if best == limit {
				break
			}
		}
	}

	if best < minMatchLength {
		return 0, 0
	}

	return bestDistance, best
}

// Decompress reconstructs the original payload from an LZ77 token stream.
//
// Back-references are resolved byte by byte against the already
// reconstructed output, so overlapping matches expand correctly. Fails with
// errs.ErrPayloadTooLarge when the input exceeds MaxCompressedSize,
// errs.ErrOutputTooLarge as soon as the reconstruction would exceed
// MaxDecompressedSize, and errs.ErrMalformedStream for any token the
// encoder could not have produced.
func (c LZ77Codec) Decompress(data []byte) ([]byte, error) {
	if err := checkCompressedBound(data); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}

	out := make([]byte, 0, len(data)*2)

	i := 0
	for i < len(data) {
		flag := data[i]
		i++

		switch flag {
		case tokenLiteral:
			if i >= len(data) {
				return nil, fmt.Errorf("%w: truncated literal token", errs.ErrMalformedStream)
			}
			if len(out)+1 > MaxDecompressedSize {
				return nil, fmt.Errorf("%w: output exceeds %d", errs.ErrOutputTooLarge, MaxDecompressedSize)
			}
			out = append(out, data[i])
			i++

		case tokenMatch, tokenMatchEnd:
			if i+3 > len(data) {
				return nil, fmt.Errorf("%w: truncated back-reference", errs.ErrMalformedStream)
			}
			distance := int(data[i]) | int(data[i+1])<<8
			length := int(data[i+2])
			i += 3

			if distance == 0 || distance > len(out) {
				return nil, fmt.Errorf("%w: back-reference distance %d outside reconstructed output", errs.ErrMalformedStream, distance)
			}
			if length < minMatchLength {
				return nil, fmt.Errorf("%w: back-reference length %d below minimum match", errs.ErrMalformedStream, length)
			}
			grow := length
			if flag == tokenMatch {
				grow++
			}
			if len(out)+grow > MaxDecompressedSize {
				return nil, fmt.Errorf("%w: output exceeds %d", errs.ErrOutputTooLarge, MaxDecompressedSize)
			}

			start := len(out) - distance
			for k := 0; k < length; k++ {
				out = append(out, out[start+k])
			}

			if flag == tokenMatch {
				if i >= len(data) {
					return nil, fmt.Errorf("%w: back-reference missing trailing literal", errs.ErrMalformedStream)
				}
				out = append(out, data[i])
				i++
			} else if i != len(data) {
				return nil, fmt.Errorf("%w: end-of-input back-reference followed by more tokens", errs.ErrMalformedStream)
			}

		default:
			return nil, fmt.Errorf("%w: unknown token flag 0x%02x", errs.ErrMalformedStream, flag)
		}
	}

	return out, nil
}
