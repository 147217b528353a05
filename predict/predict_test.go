package predict

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/slipwire/slipwire/errs"
)

func newTestBuffer(t *testing.T, capacity int) *Buffer {
	t.Helper()
	b, err := NewBuffer(capacity)
	require.NoError(t, err)
	return b
}

func TestPredict_LinearExtrapolation(t *testing.T) {
	b := newTestBuffer(t, DefaultCapacity)

	b.Update("player-1", Sample{Timestamp: 0, Fields: map[string]any{"x": 0.0}})
	b.Update("player-1", Sample{Timestamp: 1, Fields: map[string]any{"x": 10.0}})

	got := b.Predict("player-1", 2)
	require.NotNil(t, got)
	require.InDelta(t, 20.0, got["x"], 1e-9)
}

func TestPredict_InsufficientHistory(t *testing.T) {
	b := newTestBuffer(t, DefaultCapacity)

	require.Nil(t, b.Predict("ghost", 1.0), "unknown entity")

	b.Update("player-1", Sample{Timestamp: 0, Fields: map[string]any{"x": 0.0}})
	require.Nil(t, b.Predict("player-1", 1.0), "single sample")
}

func TestPredict_NonPositiveElapsedTime(t *testing.T) {
	b := newTestBuffer(t, DefaultCapacity)

	b.Update("e", Sample{Timestamp: 5, Fields: map[string]any{"x": 1.0}})
	b.Update("e", Sample{Timestamp: 5, Fields: map[string]any{"x": 7.0}})

	got := b.Predict("e", 10)
	require.Equal(t, map[string]any{"x": 7.0}, got, "dt == 0 must return the latest fields unchanged")

	// Out-of-order timestamps likewise cannot be extrapolated.
	b.Update("e", Sample{Timestamp: 3, Fields: map[string]any{"x": 2.0}})
	got = b.Predict("e", 10)
	require.Equal(t, map[string]any{"x": 2.0}, got)
}

func TestPredict_NonNumericFieldsPassThrough(t *testing.T) {
	b := newTestBuffer(t, DefaultCapacity)

	b.Update("e", Sample{Timestamp: 0, Fields: map[string]any{"x": 0.0, "mode": "walk"}})
	b.Update("e", Sample{Timestamp: 1, Fields: map[string]any{"x": 4.0, "mode": "run"}})

	got := b.Predict("e", 3)
	require.InDelta(t, 12.0, got["x"], 1e-9)
	require.Equal(t, "run", got["mode"])
}

func TestPredict_MixedNumericTypes(t *testing.T) {
	b := newTestBuffer(t, DefaultCapacity)

	// Samples arriving off the wire carry whatever integer width the
	// serializer chose; velocity must still come out right.
	b.Update("e", Sample{Timestamp: 0, Fields: map[string]any{"hp": int64(100)}})
	b.Update("e", Sample{Timestamp: 2, Fields: map[string]any{"hp": int8(90)}})

	got := b.Predict("e", 4)
	require.InDelta(t, 80.0, got["hp"], 1e-9)
}

func TestPredict_FieldMissingFromPrevious(t *testing.T) {
	b := newTestBuffer(t, DefaultCapacity)

	b.Update("e", Sample{Timestamp: 0, Fields: map[string]any{"x": 0.0}})
	b.Update("e", Sample{Timestamp: 1, Fields: map[string]any{"x": 5.0, "y": 3.0}})

	got := b.Predict("e", 2)
	require.InDelta(t, 10.0, got["x"], 1e-9)
	require.Equal(t, 3.0, got["y"], "field with no history passes through")
}

func TestUpdate_EvictsOldestAtCapacity(t *testing.T) {
	b := newTestBuffer(t, 3)

	for i := 0; i < 10; i++ {
		b.Update("e", Sample{Timestamp: float64(i), Fields: map[string]any{"x": float64(i * 10)}})
	}
	require.Equal(t, 3, b.Len("e"))

	// Newest two samples are t=9 (x=90) and t=8 (x=80): velocity 10/s.
	got := b.Predict("e", 11)
	require.InDelta(t, 110.0, got["x"], 1e-9)
}

func TestBuffer_EntitiesAreIndependent(t *testing.T) {
	b := newTestBuffer(t, DefaultCapacity)

	b.Update("a", Sample{Timestamp: 0, Fields: map[string]any{"x": 0.0}})
	b.Update("a", Sample{Timestamp: 1, Fields: map[string]any{"x": 1.0}})
	b.Update("b", Sample{Timestamp: 0, Fields: map[string]any{"x": 0.0}})

	require.NotNil(t, b.Predict("a", 2))
	require.Nil(t, b.Predict("b", 2))
}

func TestNewBuffer_Validation(t *testing.T) {
	_, err := NewBuffer(1)
	require.ErrorIs(t, err, errs.ErrInvalidConfig)

	_, err = NewBuffer(2)
	require.NoError(t, err)
}
