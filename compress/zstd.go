package compress

// ZstdCodec compresses payloads with Zstandard.
//
// Best ratio of the pluggable backends, at a higher CPU cost than S2 or
// LZ4. Two implementations are selected at build time:
//
//   - cgo builds use valyala/gozstd (bindings to the reference library)
//   - pure-Go builds use klauspost/compress/zstd
//
// Both enforce the shared size bounds on decompression.
type ZstdCodec struct{}

var _ Codec = ZstdCodec{}

// NewZstdCodec creates a new Zstd codec with default settings.
func NewZstdCodec() ZstdCodec {
	return ZstdCodec{}
}
