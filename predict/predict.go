// Package predict maintains bounded per-entity state history and
// extrapolates future states from the rate of change between the two most
// recent samples.
//
// Prediction is advisory: with fewer than two samples for an entity there
// is nothing to extrapolate from and Predict returns nil. That is the
// normal warm-up condition, not an error.
package predict

import (
	"fmt"
	"sync"

	"github.com/slipwire/slipwire/errs"
)

// DefaultCapacity is the per-entity history depth used when none is
// configured. Two samples suffice for linear prediction; the rest absorb
// out-of-order arrivals and smoothing done by consumers.
const DefaultCapacity = 16

// Sample is one time-stamped observation of an entity's state.
// Timestamps are monotonic seconds. Only numeric field values participate
// in prediction; everything else passes through from the latest sample.
type Sample struct {
	Timestamp float64
	Fields    map[string]any
}

// ring is a fixed-capacity insertion-ordered buffer of samples, oldest
// evicted first.
type ring struct {
	samples []Sample
	head    int // next write position
	count   int
}

func newRing(capacity int) *ring {
	return &ring{samples: make([]Sample, capacity)}
}

func (r *ring) push(s Sample) {
	r.samples[r.head] = s
	r.head = (r.head + 1) % len(r.samples)
	if r.count < len(r.samples) {
		r.count++
	}
}

// latest returns the n-th newest sample (0 = newest).
func (r *ring) latest(n int) Sample {
	idx := (r.head - 1 - n + 2*len(r.samples)) % len(r.samples)
	return r.samples[idx]
}

// Buffer tracks history for any number of entities, each in its own
// bounded ring created lazily on first update. Entities are never
// explicitly destroyed; memory is bounded by capacity per entity, not
// lifetime.
//
// Safe for concurrent use.
type Buffer struct {
	mu       sync.Mutex
	capacity int
	entities map[string]*ring
}

// NewBuffer creates a prediction buffer holding up to capacity samples per
// entity.
//
// Returns:
//   - *Buffer: the buffer
//   - error: errs.ErrInvalidConfig if capacity is below 2, the minimum
//     history linear prediction needs
func NewBuffer(capacity int) (*Buffer, error) {
	if capacity < 2 {
		return nil, fmt.Errorf("%w: prediction buffer capacity %d below minimum 2", errs.ErrInvalidConfig, capacity)
	}

	return &Buffer{
		capacity: capacity,
		entities: make(map[string]*ring),
	}, nil
}

// Update appends a sample to the entity's history, evicting the oldest
// sample once the ring is full.
func (b *Buffer) Update(entityID string, sample Sample) {
	b.mu.Lock()
	defer b.mu.Unlock()

	r, ok := b.entities[entityID]
	if !ok {
		r = newRing(b.capacity)
		b.entities[entityID] = r
	}
	r.push(sample)
}

// Len reports how many samples are currently held for an entity.
func (b *Buffer) Len(entityID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	r, ok := b.entities[entityID]
	if !ok {
		return 0
	}

	return r.count
}

// Predict extrapolates the entity's state at targetTime from its two
// newest samples.
//
// Numeric fields are extended linearly: velocity is the per-second change
// between the two samples, applied over targetTime minus the latest
// timestamp. Non-numeric fields pass through from the latest sample.
//
// Returns nil when the entity has fewer than two samples (insufficient
// history; expected during warm-up). When the elapsed time between the two
// newest samples is zero or negative, extrapolation is impossible and the
// latest fields are returned unchanged.
func (b *Buffer) Predict(entityID string, targetTime float64) map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()

	r, ok := b.entities[entityID]
	if !ok || r.count < 2 {
		return nil
	}

	latest := r.latest(0)
	previous := r.latest(1)

	dt := latest.Timestamp - previous.Timestamp
	if dt <= 0 {
		return copyFields(latest.Fields)
	}

	ahead := targetTime - latest.Timestamp
	predicted := make(map[string]any, len(latest.Fields))
	for key, value := range latest.Fields {
		cur, curOK := asFloat(value)
		prev, prevOK := asFloat(previous.Fields[key])
		if !curOK || !prevOK {
			predicted[key] = value
			continue
		}

		velocity := (cur - prev) / dt
		predicted[key] = cur + velocity*ahead
	}

	return predicted
}

func copyFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}

	return out
}

// asFloat widens any numeric value to float64. Prediction treats all
// numbers uniformly; the caller gets float64 back regardless of the
// sample's concrete numeric type.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
