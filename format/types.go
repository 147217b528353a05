package format

type (
	EncodingType    uint8
	CompressionType uint8
)

const (
	// TypeFull represents a full state snapshot with no delta applied.
	TypeFull EncodingType = 0x1
	// TypeDelta represents a state encoded as changed keys against a base.
	TypeDelta EncodingType = 0x2

	CompressionNone CompressionType = 0x1 // CompressionNone represents no compression.
	CompressionLZ77 CompressionType = 0x2 // CompressionLZ77 represents the built-in sliding-window codec.
	CompressionS2   CompressionType = 0x3 // CompressionS2 represents S2 compression.
	CompressionLZ4  CompressionType = 0x4 // CompressionLZ4 represents LZ4 compression.
	CompressionZstd CompressionType = 0x5 // CompressionZstd represents Zstandard compression.
)

func (e EncodingType) String() string {
	switch e {
	case TypeFull:
		return "Full"
	case TypeDelta:
		return "Delta"
	default:
		return "Unknown"
	}
}

func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "None"
	case CompressionLZ77:
		return "LZ77"
	case CompressionS2:
		return "S2"
	case CompressionLZ4:
		return "LZ4"
	case CompressionZstd:
		return "Zstd"
	default:
		return "Unknown"
	}
}
