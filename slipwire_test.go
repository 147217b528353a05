package slipwire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/slipwire/slipwire/delta"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
}

func TestNewCodecRoundTrip(t *testing.T) {
	codec, err := NewCodec()
	require.NoError(t, err)

	input := bytes.Repeat([]byte("abcabcabc"), 64)
	encoded, compressed, err := codec.Compress(input)
	require.NoError(t, err)
	require.True(t, compressed)
	require.Less(t, len(encoded), len(input))

	decoded, err := codec.Decompress(encoded, compressed)
	require.NoError(t, err)
	require.Equal(t, input, decoded)
}

func TestNewCodecSkipsSmallPayloads(t *testing.T) {
	codec, err := NewCodec()
	require.NoError(t, err)

	input := []byte("tiny")
	out, compressed, err := codec.Compress(input)
	require.NoError(t, err)
	require.False(t, compressed)
	require.Equal(t, input, out)
}

func TestNewPipelineEndToEnd(t *testing.T) {
	var frames [][]byte
	pipe, err := NewPipeline(DefaultConfig(), func(frame []byte) error {
		buf := make([]byte, len(frame))
		copy(buf, frame)
		frames = append(frames, buf)
		return nil
	})
	require.NoError(t, err)

	peer, err := NewPipeline(DefaultConfig(), func([]byte) error { return nil })
	require.NoError(t, err)

	state := delta.State{"x": 12.5, "y": -3.0, "name": "player-1"}
	id, err := pipe.SendState(state)
	require.NoError(t, err)
	require.NotEmpty(t, id)
	require.Len(t, frames, 1)

	received, err := peer.Receive(frames[0])
	require.NoError(t, err)
	require.Equal(t, state, received)

	pipe.Ack(id)
	require.Equal(t, 0, pipe.InFlight())
}

func TestNewPipelineRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinQuality = 2.0
	cfg.MaxQuality = 1.0

	_, err := NewPipeline(cfg, func([]byte) error { return nil })
	require.Error(t, err)
}
