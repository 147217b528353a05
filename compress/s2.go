package compress

import (
	"fmt"

	"github.com/klauspost/compress/s2"

	"github.com/slipwire/slipwire/errs"
)

// S2Codec compresses payloads with S2, a Snappy-compatible format tuned
// for speed. A good choice when peers negotiate away from the built-in
// LZ77 codec and throughput matters more than ratio.
type S2Codec struct{}

var _ Codec = S2Codec{}

// NewS2Codec creates a new S2 codec.
func NewS2Codec() S2Codec {
	return S2Codec{}
}

// Compress compresses the input data using S2 block encoding.
func (c S2Codec) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	return s2.Encode(nil, data), nil
}

// Decompress decompresses an S2 block.
//
// The declared decoded length is checked against MaxDecompressedSize
// before any allocation, so a bomb is rejected without buffering it.
func (c S2Codec) Decompress(data []byte) ([]byte, error) {
	if err := checkCompressedBound(data); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}

	decodedLen, err := s2.DecodedLen(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrMalformedStream, err)
	}
	if err := checkDecompressedBound(decodedLen); err != nil {
		return nil, err
	}

	decompressed, err := s2.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrMalformedStream, err)
	}

	return decompressed, nil
}
