package search

import (
	"bytes"
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"habinest-backend/internal/domain"
	"habinest-backend/internal/infrastructure/database"
	"habinest-backend/internal/infrastructure/geoindex"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SortKey string

const (
	SortPrice    SortKey = "price"
	SortRating   SortKey = "rating"
	SortDistance SortKey = "distance"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200

	// keeps IN lists under sqlite's bound-parameter limit
	idChunkSize = 500
)

// ParseSortKey accepts "" as "use the default for the filter".
func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case "", SortPrice, SortRating, SortDistance:
		return k, nil
	}
	return "", domain.Validationf("sortBy must be one of price, rating, distance (got %q)", s)
}

type Near struct {
	Center       domain.Point
	RadiusMeters float64
}

// Filter is a search request. Nil fields do not constrain the result.
type Filter struct {
	PriceMin    *float64
	PriceMax    *float64
	SharingType *domain.SharingType
	Gender      *domain.Gender
	Near        *Near
	MinRating   *float64
	SortBy      SortKey
	Limit       int
	Offset      int
}

type Result struct {
	Items []domain.Summary `json:"items"`
	Total int              `json:"total"`
}

// Validate checks the filter and fills in the default sort and page size.
func (f *Filter) Validate() error {
	for _, p := range []*float64{f.PriceMin, f.PriceMax} {
		if p != nil && (math.IsNaN(*p) || *p < 0) {
			return domain.Validationf("price bounds must be non-negative numbers")
		}
	}
	if f.PriceMin != nil && f.PriceMax != nil && *f.PriceMin > *f.PriceMax {
		return domain.Validationf("priceMin %v exceeds priceMax %v", *f.PriceMin, *f.PriceMax)
	}
	if f.SharingType != nil && !f.SharingType.Valid() {
		return domain.Validationf("unknown sharingType %q", string(*f.SharingType))
	}
	if f.Gender != nil && !f.Gender.Valid() {
		return domain.Validationf("unknown gender %q", string(*f.Gender))
	}
	if f.Near != nil {
		if err := f.Near.Center.Validate(); err != nil {
			return err
		}
		if !(f.Near.RadiusMeters > 0) {
			return domain.Validationf("radiusMeters must be positive")
		}
	}
	if f.MinRating != nil && (math.IsNaN(*f.MinRating) || *f.MinRating < domain.MinScore || *f.MinRating > domain.MaxScore) {
		return domain.Validationf("minRating must be within [%d, %d]", domain.MinScore, domain.MaxScore)
	}
	switch f.SortBy {
	case "":
		f.SortBy = SortPrice
		if f.Near != nil {
			f.SortBy = SortDistance
		}
	case SortDistance:
		if f.Near == nil {
			return domain.Validationf("sortBy distance requires near")
		}
	case SortPrice, SortRating:
	default:
		return domain.Validationf("unknown sortBy %q", string(f.SortBy))
	}
	if f.Limit < 0 || f.Offset < 0 {
		return domain.Validationf("limit and offset must be non-negative")
	}
	if f.Limit == 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	return nil
}

// Service plans searches: proximity comes from the geo index, attribute and
// rating predicates run in the store, ranking happens here.
type Service struct {
	DB      *gorm.DB
	Index   geoindex.Index
	Timeout time.Duration
}

// Query returns the ranked page for f. A cancelled ctx yields its error and no items.
func (s *Service) Query(ctx context.Context, f Filter) (*Result, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := database.WithTimeout(ctx, s.Timeout)
	defer cancel()

	var distances map[uuid.UUID]float64
	if f.Near != nil {
		var err error
		distances, err = s.within(ctx, f.Near)
		if err != nil {
			return nil, database.ClassifyCtx(ctx, err)
		}
		if len(distances) == 0 {
			return &Result{Items: []domain.Summary{}}, nil
		}
	}

	rows, err := s.fetch(ctx, f, distances)
	if err != nil {
		return nil, database.ClassifyCtx(ctx, err)
	}

	items := make([]domain.Summary, 0, len(rows))
	for i := range rows {
		sum := rows[i].Summarize()
		if distances != nil {
			d := distances[rows[i].ID]
			sum.DistanceMeters = &d
		}
		items = append(items, sum)
	}
	rank(items, f.SortBy)

	if err := ctx.Err(); err != nil {
		return nil, database.ClassifyCtx(ctx, err)
	}
	total := len(items)
	return &Result{Items: page(items, f.Offset, f.Limit), Total: total}, nil
}

func (s *Service) within(ctx context.Context, near *Near) (map[uuid.UUID]float64, error) {
	out := make(map[uuid.UUID]float64)
	for hit, err := range s.Index.WithinRadius(ctx, near.Center, near.RadiusMeters) {
		if err != nil {
			return nil, err
		}
		out[hit.ListingID] = hit.DistanceMeters
	}
	return out, nil
}

// where builds the attribute and rating predicates.
func where(f Filter) (string, []interface{}) {
	clauses := []string{}
	args := []interface{}{}

	if f.PriceMin != nil {
		clauses = append(clauses, "price_range >= ?")
		args = append(args, *f.PriceMin)
	}
	if f.PriceMax != nil {
		clauses = append(clauses, "price_range <= ?")
		args = append(args, *f.PriceMax)
	}
	if f.SharingType != nil {
		clauses = append(clauses, "sharing_type = ?")
		args = append(args, string(*f.SharingType))
	}
	if f.Gender != nil {
		clauses = append(clauses, "gender = ?")
		args = append(args, string(*f.Gender))
	}
	if f.MinRating != nil {
		clauses = append(clauses, "rating_count > 0 AND rating_mean >= ?")
		args = append(args, *f.MinRating)
	}

	if len(clauses) == 0 {
		return "1=1", args
	}
	return strings.Join(clauses, " AND "), args
}

func (s *Service) fetch(ctx context.Context, f Filter, distances map[uuid.UUID]float64) ([]domain.Listing, error) {
	cond, args := where(f)
	base := func() *gorm.DB {
		return s.DB.WithContext(ctx).Omit("ratings").Where(cond, args...)
	}

	if distances == nil {
		var rows []domain.Listing
		if err := base().Find(&rows).Error; err != nil {
			return nil, err
		}
		return rows, nil
	}

	ids := make([]uuid.UUID, 0, len(distances))
	for id := range distances {
		ids = append(ids, id)
	}
	var rows []domain.Listing
	for start := 0; start < len(ids); start += idChunkSize {
		end := min(start+idChunkSize, len(ids))
		var chunk []domain.Listing
		if err := base().Where("id IN ?", ids[start:end]).Find(&chunk).Error; err != nil {
			return nil, err
		}
		rows = append(rows, chunk...)
	}
	return rows, nil
}

func idLess(a, b uuid.UUID) bool {
	return bytes.Compare(a[:], b[:]) < 0
}

// rank orders items by key, breaking every tie by id ascending.
func rank(items []domain.Summary, key SortKey) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		switch key {
		case SortDistance:
			if *a.DistanceMeters != *b.DistanceMeters {
				return *a.DistanceMeters < *b.DistanceMeters
			}
		case SortRating:
			// unrated last
			am, bm := a.Aggregate.Mean, b.Aggregate.Mean
			if (am == nil) != (bm == nil) {
				return am != nil
			}
			if am != nil && *am != *bm {
				return *am > *bm
			}
		default:
			if a.PriceRange != b.PriceRange {
				return a.PriceRange < b.PriceRange
			}
		}
		return idLess(a.ID, b.ID)
	})
}

func page(items []domain.Summary, offset, limit int) []domain.Summary {
	if offset >= len(items) {
		return []domain.Summary{}
	}
	end := min(offset+limit, len(items))
	return items[offset:end]
}
