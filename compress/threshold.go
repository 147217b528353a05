package compress

import "fmt"

// DefaultMinCompressSize is the payload size below which compression is
// skipped entirely; token framing overhead dominates on tiny payloads.
const DefaultMinCompressSize = 100

// ThresholdCodec is the pipeline-facing wrapper around a Codec.
//
// It implements the contract the rest of the pipeline relies on: the
// compressed form is used only when it is strictly smaller than the
// original, otherwise the original bytes pass through untouched and the
// payload is flagged as uncompressed. Payloads under minSize skip the
// codec entirely.
type ThresholdCodec struct {
	codec   Codec
	minSize int
}

// NewThresholdCodec wraps codec with the threshold and smaller-output
// rules. A minSize of zero or below disables the threshold (every payload
// is offered to the codec).
func NewThresholdCodec(codec Codec, minSize int) ThresholdCodec {
	return ThresholdCodec{codec: codec, minSize: minSize}
}

// Compress returns the bytes to transmit and whether they are compressed.
//
// Invariant: compressed == true implies len(out) < len(data); otherwise
// out is the original slice.
func (t ThresholdCodec) Compress(data []byte) (out []byte, compressed bool, err error) {
	if len(data) < t.minSize {
		return data, false, nil
	}

	encoded, err := t.codec.Compress(data)
	if err != nil {
		return nil, false, fmt.Errorf("compress payload: %w", err)
	}
	if len(encoded) >= len(data) {
		return data, false, nil
	}

	return encoded, true, nil
}

// Decompress reverses Compress given the out-of-band compressed flag.
// Uncompressed payloads still pass through the shared size bound.
func (t ThresholdCodec) Decompress(data []byte, compressed bool) ([]byte, error) {
	if !compressed {
		if err := checkDecompressedBound(len(data)); err != nil {
			return nil, err
		}

		return data, nil
	}

	return t.codec.Decompress(data)
}
