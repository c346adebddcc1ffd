package geoindex

import (
	"context"
	"iter"
	"math"
	"sync"

	"habinest-backend/internal/domain"

	"github.com/google/uuid"
)

// Memory is a brute-force great-circle index held in process memory.
type Memory struct {
	mu     sync.RWMutex
	points map[uuid.UUID]domain.Point
}

func NewMemory() *Memory {
	return &Memory{points: make(map[uuid.UUID]domain.Point)}
}

func (m *Memory) Accepts(p domain.Point) error {
	return p.Validate()
}

func (m *Memory) Upsert(_ context.Context, id uuid.UUID, p domain.Point) error {
	if err := m.Accepts(p); err != nil {
		return err
	}
	m.mu.Lock()
	m.points[id] = p
	m.mu.Unlock()
	return nil
}

func (m *Memory) Remove(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	delete(m.points, id)
	m.mu.Unlock()
	return nil
}

// ranked computes every distance under the read lock and returns them sorted.
func (m *Memory) ranked(center domain.Point, radiusMeters float64) []Hit {
	m.mu.RLock()
	hits := make([]Hit, 0, len(m.points))
	for id, p := range m.points {
		d := domain.GreatCircleDistance(center, p)
		if d <= radiusMeters {
			hits = append(hits, Hit{ListingID: id, DistanceMeters: d})
		}
	}
	m.mu.RUnlock()
	sortHits(hits)
	return hits
}

func (m *Memory) WithinRadius(ctx context.Context, center domain.Point, radiusMeters float64) iter.Seq2[Hit, error] {
	return func(yield func(Hit, error) bool) {
		if err := validateQuery(center, radiusMeters); err != nil {
			yield(Hit{}, err)
			return
		}
		yieldAll(ctx, m.ranked(center, radiusMeters), yield)
	}
}

func (m *Memory) Nearest(ctx context.Context, center domain.Point, k int) ([]Hit, error) {
	if err := center.Validate(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, domain.Validationf("k must be positive")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	hits := m.ranked(center, math.Inf(1))
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (m *Memory) Rebuild(_ context.Context, entries map[uuid.UUID]domain.Point) error {
	next := make(map[uuid.UUID]domain.Point, len(entries))
	for id, p := range entries {
		if err := p.Validate(); err != nil {
			return err
		}
		next[id] = p
	}
	m.mu.Lock()
	m.points = next
	m.mu.Unlock()
	return nil
}

func (m *Memory) Len(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.points), nil
}
