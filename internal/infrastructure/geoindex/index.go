package geoindex

import (
	"bytes"
	"context"
	"iter"
	"sort"

	"habinest-backend/internal/domain"

	"github.com/google/uuid"
)

// Hit is one listing returned by a proximity query.
type Hit struct {
	ListingID      uuid.UUID
	DistanceMeters float64
}

// Index maps listing ids to coordinates and answers proximity queries.
// Writes are visible to queries started after the write returns.
type Index interface {
	// Accepts reports whether p can be stored; Upsert fails exactly when Accepts does.
	Accepts(p domain.Point) error
	Upsert(ctx context.Context, id uuid.UUID, p domain.Point) error
	Remove(ctx context.Context, id uuid.UUID) error
	// WithinRadius yields hits ascending by distance, ties by id. Each range over the
	// sequence takes a fresh snapshot.
	WithinRadius(ctx context.Context, center domain.Point, radiusMeters float64) iter.Seq2[Hit, error]
	Nearest(ctx context.Context, center domain.Point, k int) ([]Hit, error)
	// Rebuild replaces the whole index with entries.
	Rebuild(ctx context.Context, entries map[uuid.UUID]domain.Point) error
	Len(ctx context.Context) (int, error)
}

func lessHit(a, b Hit) bool {
	if a.DistanceMeters != b.DistanceMeters {
		return a.DistanceMeters < b.DistanceMeters
	}
	return bytes.Compare(a.ListingID[:], b.ListingID[:]) < 0
}

func sortHits(hits []Hit) {
	sort.Slice(hits, func(i, j int) bool { return lessHit(hits[i], hits[j]) })
}

// yieldAll walks hits, stopping on consumer break or context cancellation.
func yieldAll(ctx context.Context, hits []Hit, yield func(Hit, error) bool) {
	for _, h := range hits {
		if err := ctx.Err(); err != nil {
			yield(Hit{}, err)
			return
		}
		if !yield(h, nil) {
			return
		}
	}
}

// Collect drains seq into a slice, returning the first error.
func Collect(seq iter.Seq2[Hit, error]) ([]Hit, error) {
	var out []Hit
	for h, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}

func validateQuery(center domain.Point, radiusMeters float64) error {
	if err := center.Validate(); err != nil {
		return err
	}
	if !(radiusMeters > 0) {
		return domain.Validationf("radiusMeters must be positive")
	}
	return nil
}
