package compress

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pierrec/lz4/v4"

	"github.com/slipwire/slipwire/errs"
)

// lz4CompressorPool pools lz4.Compressor instances for reuse.
// The lz4.Compressor maintains internal state that benefits from reuse.
var lz4CompressorPool = sync.Pool{
	New: func() any {
		return &lz4.Compressor{}
	},
}

// LZ4Codec compresses payloads with LZ4 block encoding.
type LZ4Codec struct{}

var _ Codec = LZ4Codec{}

// NewLZ4Codec creates a new LZ4 codec.
func NewLZ4Codec() LZ4Codec {
	return LZ4Codec{}
}

// Compress compresses the input data using LZ4 block encoding.
// Uses a pooled lz4.Compressor to avoid rebuilding its hash table.
func (c LZ4Codec) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	dst := make([]byte, lz4.CompressBlockBound(len(data)))

	lc, _ := lz4CompressorPool.Get().(*lz4.Compressor)
	defer lz4CompressorPool.Put(lc)

	n, err := lc.CompressBlock(data, dst)
	if err != nil {
		return nil, err
	}

	return dst[:n], nil
}

// Decompress decompresses an LZ4 block.
//
// LZ4 blocks do not carry the decoded length, so the buffer starts at 4x
// the compressed size and doubles on short-buffer errors, capped at
// MaxDecompressedSize. Exceeding the cap is treated as a decompression
// bomb and rejected.
func (c LZ4Codec) Decompress(data []byte) ([]byte, error) {
	if err := checkCompressedBound(data); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}

	bufSize := len(data) * 4
	if bufSize > MaxDecompressedSize {
		bufSize = MaxDecompressedSize
	}

	for {
		buf := make([]byte, bufSize)
		n, err := lz4.UncompressBlock(data, buf)
		if err != nil {
			if errors.Is(err, lz4.ErrInvalidSourceShortBuffer) && bufSize < MaxDecompressedSize {
				bufSize *= 2
				if bufSize > MaxDecompressedSize {
					bufSize = MaxDecompressedSize
				}

				continue
			}
			if errors.Is(err, lz4.ErrInvalidSourceShortBuffer) {
				return nil, fmt.Errorf("%w: lz4 output exceeds %d", errs.ErrOutputTooLarge, MaxDecompressedSize)
			}

			return nil, fmt.Errorf("%w: %v", errs.ErrMalformedStream, err)
		}

		return buf[:n], nil
	}
}
