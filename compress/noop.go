package compress

// NoOpCodec bypasses data without compression.
//
// Useful when compression is disabled in configuration, for baseline
// measurements, and for payloads that are already compressed.
type NoOpCodec struct{}

var _ Codec = NoOpCodec{}

// NewNoOpCodec creates a codec that passes data through unchanged.
func NewNoOpCodec() NoOpCodec {
	return NoOpCodec{}
}

// Compress returns the input slice as-is, without copying.
//
// The returned slice shares the input's memory; callers must not modify
// the input afterwards if they keep the result.
func (c NoOpCodec) Compress(data []byte) ([]byte, error) {
	return data, nil
}

// Decompress returns the input slice as-is, subject to the shared size
// bound so oversized payloads are still rejected.
func (c NoOpCodec) Decompress(data []byte) ([]byte, error) {
	if err := checkCompressedBound(data); err != nil {
		return nil, err
	}

	return data, nil
}
