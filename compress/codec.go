package compress

import (
	"fmt"

	"github.com/slipwire/slipwire/errs"
	"github.com/slipwire/slipwire/format"
)

// Hard size bounds enforced on every decompression path. They bound the
// damage an untrusted peer can do with a crafted payload.
const (
	// MaxCompressedSize is the largest compressed input accepted by any
	// Decompressor. Larger inputs are rejected before parsing.
	MaxCompressedSize = 10 * 1024 * 1024

	// MaxDecompressedSize is the largest output any Decompressor will
	// reconstruct. Reconstruction aborts once the output would exceed it.
	MaxDecompressedSize = 50 * 1024 * 1024
)

// Compressor compresses a byte payload.
//
// Implementations are pure functions over their input: the input slice is
// never modified and the returned slice is newly allocated (except for the
// no-op codec, which returns its input). Safe for concurrent use.
type Compressor interface {
	// Compress compresses data and returns the compressed result.
	// The output carries no framing beyond what the algorithm itself needs;
	// callers track whether a payload was compressed out of band.
	Compress(data []byte) ([]byte, error)
}

// Decompressor reverses a Compressor.
//
// Implementations must validate their input and fail with an integrity
// error (errs.ErrMalformedStream, errs.ErrPayloadTooLarge or
// errs.ErrOutputTooLarge) rather than panic or over-allocate on corrupt
// or hostile data.
type Decompressor interface {
	// Decompress reconstructs the original payload from compressed data.
	Decompress(data []byte) ([]byte, error)
}

// Codec combines both directions of a compression algorithm.
type Codec interface {
	Compressor
	Decompressor
}

// CreateCodec creates a Codec for the given compression type.
//
// Parameters:
//   - compressionType: algorithm selector (None, LZ77, S2, LZ4, Zstd)
//   - target: description of the usage site, used in error messages
//
// Returns:
//   - Codec: codec instance for the specified type
//   - error: invalid compression type error
func CreateCodec(compressionType format.CompressionType, target string) (Codec, error) {
	switch compressionType {
	case format.CompressionNone:
		return NewNoOpCodec(), nil
	case format.CompressionLZ77:
		return NewLZ77Codec(), nil
	case format.CompressionS2:
		return NewS2Codec(), nil
	case format.CompressionLZ4:
		return NewLZ4Codec(), nil
	case format.CompressionZstd:
		return NewZstdCodec(), nil
	default:
		return nil, fmt.Errorf("invalid %s compression: %s", target, compressionType)
	}
}

var builtinCodecs = map[format.CompressionType]Codec{
	format.CompressionNone: NewNoOpCodec(),
	format.CompressionLZ77: NewLZ77Codec(),
	format.CompressionS2:   NewS2Codec(),
	format.CompressionLZ4:  NewLZ4Codec(),
	format.CompressionZstd: NewZstdCodec(),
}

// GetCodec retrieves a built-in Codec for the specified compression type.
func GetCodec(compressionType format.CompressionType) (Codec, error) {
	if codec, ok := builtinCodecs[compressionType]; ok {
		return codec, nil
	}

	return nil, fmt.Errorf("unsupported compression type: %s", compressionType)
}

// checkCompressedBound rejects inputs over MaxCompressedSize before any
// parsing happens. Shared by every Decompressor backend.
func checkCompressedBound(data []byte) error {
	if len(data) > MaxCompressedSize {
		return fmt.Errorf("%w: %d bytes exceeds %d", errs.ErrPayloadTooLarge, len(data), MaxCompressedSize)
	}

	return nil
}

// checkDecompressedBound rejects reconstructed outputs over
// MaxDecompressedSize. Backends that cannot abort mid-stream call it on
// their final output; the LZ77 decoder checks incrementally instead.
func checkDecompressedBound(size int) error {
	if size > MaxDecompressedSize {
		return fmt.Errorf("%w: %d bytes exceeds %d", errs.ErrOutputTooLarge, size, MaxDecompressedSize)
	}

	return nil
}

// Stats describes a single compression operation for diagnostics and
// ratio reporting.
type Stats struct {
	// Algorithm identifies the compression algorithm used.
	Algorithm format.CompressionType

	// OriginalSize is the size of input data before compression.
	OriginalSize int

	// CompressedSize is the size of data actually sent. Equals OriginalSize
	// when the payload was passed through uncompressed.
	CompressedSize int

	// Compressed reports whether compression was actually applied.
	Compressed bool
}

// Ratio returns compressed size / original size. Values below 1.0 indicate
// successful compression; 0.0 is returned for an empty original.
func (s Stats) Ratio() float64 {
	if s.OriginalSize == 0 {
		return 0.0
	}

	return float64(s.CompressedSize) / float64(s.OriginalSize)
}

// SpaceSavings returns the space savings as a percentage (0-100%).
func (s Stats) SpaceSavings() float64 {
	if s.OriginalSize == 0 {
		return 0.0
	}

	return (1.0 - s.Ratio()) * 100.0
}
