// Package compress provides the byte-level codecs used by the slipwire
// pipeline to shrink state payloads before transmission.
//
// The default codec is a self-contained LZ77 sliding-window implementation
// with no external dependencies, suitable for small real-time state frames.
// S2, LZ4 and Zstandard backends are available for peers that negotiate a
// stronger algorithm; all backends are selected through the same
// format.CompressionType factory.
//
// Every decompression path enforces two hard bounds regardless of backend:
//
//   - MaxCompressedSize (10 MB): over-long inputs are rejected before any
//     parsing is attempted.
//   - MaxDecompressedSize (50 MB): reconstruction aborts as soon as the
//     output would exceed the bound.
//
// Together these guard against decompression bombs from untrusted peers.
//
// Use ThresholdCodec for the pipeline-facing contract: payloads under the
// configured minimum size, and payloads the codec cannot actually shrink,
// pass through unmodified and are flagged as uncompressed.
package compress
