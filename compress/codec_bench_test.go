package compress

import (
	"bytes"
	"testing"

	"github.com/slipwire/slipwire/format"
)

// benchPayload mimics a serialized state frame: repeated field names with
// varying values, the shape the pipeline actually compresses.
func benchPayload(frames int) []byte {
	var buf bytes.Buffer
	for i := 0; i < frames; i++ {
		buf.WriteString("entity:")
		buf.WriteByte(byte('0' + i%10))
		buf.WriteString(" x=10.5 y=-3.25 vx=0.01 vy=0.0 hp=100 state=idle ")
	}
	return buf.Bytes()
}

func BenchmarkCompress(b *testing.B) {
	payload := benchPayload(128)

	for _, cType := range []format.CompressionType{
		format.CompressionLZ77,
		format.CompressionS2,
		format.CompressionLZ4,
		format.CompressionZstd,
	} {
		codec, err := GetCodec(cType)
		if err != nil {
			b.Fatal(err)
		}

		b.Run(cType.String(), func(b *testing.B) {
			b.SetBytes(int64(len(payload)))
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := codec.Compress(payload); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkDecompress(b *testing.B) {
	payload := benchPayload(128)

	for _, cType := range []format.CompressionType{
		format.CompressionLZ77,
		format.CompressionS2,
		format.CompressionLZ4,
		format.CompressionZstd,
	} {
		codec, err := GetCodec(cType)
		if err != nil {
			b.Fatal(err)
		}
		encoded, err := codec.Compress(payload)
		if err != nil {
			b.Fatal(err)
		}

		b.Run(cType.String(), func(b *testing.B) {
			b.SetBytes(int64(len(payload)))
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := codec.Decompress(encoded); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
