//go:build cgo

package compress

import (
	"fmt"

	"github.com/valyala/gozstd"

	"github.com/slipwire/slipwire/errs"
)

// Compress compresses the input data using Zstandard level 3.
func (c ZstdCodec) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	return gozstd.CompressLevel(nil, data, 3), nil
}

// Decompress decompresses Zstd-compressed data.
func (c ZstdCodec) Decompress(data []byte) ([]byte, error) {
	if err := checkCompressedBound(data); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}

	decompressed, err := gozstd.Decompress(nil, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrMalformedStream, err)
	}
	if err := checkDecompressedBound(len(decompressed)); err != nil {
		return nil, err
	}

	return decompressed, nil
}
