package listings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"habinest-backend/internal/domain"
	"habinest-backend/internal/infrastructure/database"
	"habinest-backend/internal/infrastructure/events"
	"habinest-backend/internal/infrastructure/geoindex"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Service is the listing store. Every committed write is mirrored into Index before the call returns.
type Service struct {
	DB        *gorm.DB
	Index     geoindex.Index
	Publisher events.Publisher
	Timeout   time.Duration
	Retries   int

	// indexLocks serialize index syncs per listing (striped by id).
	indexLocks [64]sync.Mutex
}

type CreateListingInput struct {
	Name        string
	Address     string
	PriceRange  float64
	SharingType domain.SharingType
	Photo       string
	Gender      domain.Gender
	Coordinates *domain.Point
}

// Patch holds the mutable fields; nil leaves a field unchanged.
type Patch struct {
	Address     *string
	PriceRange  *float64
	Photo       *string
	Coordinates *domain.Point
}

func (p Patch) empty() bool {
	return p.Address == nil && p.PriceRange == nil && p.Photo == nil && p.Coordinates == nil
}

// errStale marks a versioned write that lost the race.
var errStale = errors.New("listing version changed")

func (s *Service) retries() int {
	if s.Retries < 1 {
		return 1
	}
	return s.Retries
}

func (s *Service) CreateListing(ctx context.Context, in CreateListingInput, actor string) (*domain.Listing, error) {
	if in.Coordinates == nil {
		return nil, domain.Validationf("coordinates are required")
	}
	listing := &domain.Listing{
		Name:        strings.TrimSpace(in.Name),
		Address:     strings.TrimSpace(in.Address),
		PriceRange:  in.PriceRange,
		SharingType: in.SharingType,
		Photo:       in.Photo,
		Gender:      in.Gender,
		Coordinates: *in.Coordinates,
	}
	if err := listing.Validate(); err != nil {
		return nil, err
	}
	if err := s.indexable(listing.Coordinates); err != nil {
		return nil, err
	}

	ctx, cancel := database.WithTimeout(ctx, s.Timeout)
	defer cancel()

	var ev domain.ListingEvent
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(listing).Error; err != nil {
			if database.IsDuplicate(err) {
				return domain.Validationf("listing name %q already exists", listing.Name)
			}
			return err
		}
		ev = domain.NewListingEvent(listing.ID, domain.EventListingCreated, actor, map[string]interface{}{
			"name":       listing.Name,
			"priceRange": listing.PriceRange,
			"gender":     listing.Gender,
		})
		return tx.Create(&ev).Error
	})
	if err != nil {
		return nil, database.ClassifyCtx(ctx, err)
	}

	s.syncIndex(ctx, listing.ID)
	events.PublishAll(ctx, s.Publisher, ev)
	return listing, nil
}

func (s *Service) GetListing(ctx context.Context, id uuid.UUID) (*domain.Listing, error) {
	ctx, cancel := database.WithTimeout(ctx, s.Timeout)
	defer cancel()

	var listing domain.Listing
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&listing).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NotFoundf("listing %s", id)
		}
		return nil, database.ClassifyCtx(ctx, err)
	}
	return &listing, nil
}

// Exists reports whether a listing with id is stored.
func (s *Service) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	ctx, cancel := database.WithTimeout(ctx, s.Timeout)
	defer cancel()

	var n int64
	if err := s.DB.WithContext(ctx).Model(&domain.Listing{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, database.ClassifyCtx(ctx, err)
	}
	return n > 0, nil
}

func (s *Service) UpdateListing(ctx context.Context, id uuid.UUID, patch Patch, actor string) (*domain.Listing, error) {
	if patch.empty() {
		return s.GetListing(ctx, id)
	}
	listing, err := s.Mutate(ctx, id, func(l *domain.Listing) ([]domain.ListingEvent, error) {
		changed := map[string]interface{}{}
		if patch.Address != nil {
			l.Address = strings.TrimSpace(*patch.Address)
			changed["address"] = l.Address
		}
		if patch.PriceRange != nil {
			l.PriceRange = *patch.PriceRange
			changed["priceRange"] = l.PriceRange
		}
		if patch.Photo != nil {
			l.Photo = *patch.Photo
			changed["photo"] = l.Photo
		}
		if patch.Coordinates != nil {
			l.Coordinates = *patch.Coordinates
			changed["coordinates"] = l.Coordinates
		}
		if err := l.Validate(); err != nil {
			return nil, err
		}
		if patch.Coordinates != nil {
			if err := s.indexable(l.Coordinates); err != nil {
				return nil, err
			}
		}
		return []domain.ListingEvent{domain.NewListingEvent(l.ID, domain.EventListingUpdated, actor, changed)}, nil
	})
	if err != nil {
		return nil, err
	}
	if patch.Coordinates != nil {
		s.syncIndex(ctx, id)
	}
	return listing, nil
}

// Mutate applies fn to the current row and writes it back with a version check,
// rerunning fn on a fresh read when another writer got there first. The events fn
// returns are stored in the same transaction and published after commit.
func (s *Service) Mutate(ctx context.Context, id uuid.UUID, fn func(*domain.Listing) ([]domain.ListingEvent, error)) (*domain.Listing, error) {
	for attempt := 1; attempt <= s.retries(); attempt++ {
		listing, evs, err := s.tryMutate(ctx, id, fn)
		if err == nil {
			events.PublishAll(ctx, s.Publisher, evs...)
			return listing, nil
		}
		if !errors.Is(err, errStale) {
			return nil, err
		}
		log.Debug().Str("listing_id", id.String()).Int("attempt", attempt).Msg("listing write lost version race, retrying")
	}
	return nil, domain.Conflictf("listing %s is being modified concurrently", id)
}

func (s *Service) tryMutate(ctx context.Context, id uuid.UUID, fn func(*domain.Listing) ([]domain.ListingEvent, error)) (*domain.Listing, []domain.ListingEvent, error) {
	listing, err := s.GetListing(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	evs, err := fn(listing)
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := database.WithTimeout(ctx, s.Timeout)
	defer cancel()

	prev := listing.Version
	listing.Version++
	listing.UpdatedAt = time.Now()
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Listing{}).
			Where("id = ? AND version = ?", id, prev).
			Updates(map[string]interface{}{
				"address":      listing.Address,
				"price_range":  listing.PriceRange,
				"photo":        listing.Photo,
				"longitude":    listing.Coordinates.Longitude,
				"latitude":     listing.Coordinates.Latitude,
				"ratings":      listing.Ratings,
				"rating_count": listing.Aggregate.Count,
				"rating_mean":  listing.Aggregate.Mean,
				"version":      listing.Version,
				"updated_at":   listing.UpdatedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errStale
		}
		for i := range evs {
			if err := tx.Create(&evs[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, errStale) {
		return nil, nil, errStale
	}
	if err != nil {
		return nil, nil, database.ClassifyCtx(ctx, err)
	}
	return listing, evs, nil
}

// DeleteListing removes the listing. Bookmarks and visits that reference it are left in place
// and filtered out on read.
func (s *Service) DeleteListing(ctx context.Context, id uuid.UUID, actor string) error {
	ctx, cancel := database.WithTimeout(ctx, s.Timeout)
	defer cancel()

	ev := domain.NewListingEvent(id, domain.EventListingDeleted, actor, nil)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&domain.Listing{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.NotFoundf("listing %s", id)
		}
		return tx.Create(&ev).Error
	})
	if err != nil {
		return database.ClassifyCtx(ctx, err)
	}

	s.syncIndex(ctx, id)
	events.PublishAll(ctx, s.Publisher, ev)
	return nil
}

// ListListings returns every stored listing, oldest first. Filtering belongs to search.
func (s *Service) ListListings(ctx context.Context) ([]domain.Listing, error) {
	ctx, cancel := database.WithTimeout(ctx, s.Timeout)
	defer cancel()

	var listings []domain.Listing
	if err := s.DB.WithContext(ctx).Order("created_at ASC, id ASC").Find(&listings).Error; err != nil {
		return nil, database.ClassifyCtx(ctx, err)
	}
	return listings, nil
}

// Reindex rebuilds the geo index from the stored coordinates and returns the number of entries.
func (s *Service) Reindex(ctx context.Context) (int, error) {
	if s.Index == nil {
		return 0, errors.New("no geo index configured")
	}
	ctx, cancel := database.WithTimeout(ctx, s.Timeout)
	defer cancel()

	var rows []struct {
		ID        uuid.UUID
		Longitude float64
		Latitude  float64
	}
	if err := s.DB.WithContext(ctx).Model(&domain.Listing{}).Select("id, longitude, latitude").Scan(&rows).Error; err != nil {
		return 0, database.ClassifyCtx(ctx, err)
	}
	entries := make(map[uuid.UUID]domain.Point, len(rows))
	for _, r := range rows {
		entries[r.ID] = domain.Point{Longitude: r.Longitude, Latitude: r.Latitude}
	}
	if err := s.Index.Rebuild(ctx, entries); err != nil {
		return 0, fmt.Errorf("rebuild geo index: %w", err)
	}
	return len(entries), nil
}

// indexable rejects coordinates the configured index cannot hold, so no stored
// listing is invisible to proximity search.
func (s *Service) indexable(p domain.Point) error {
	if s.Index == nil {
		return nil
	}
	return s.Index.Accepts(p)
}

// syncIndex makes the index entry for id match the committed row: the stored
// coordinates, or no entry once the listing is deleted. Syncs for one id run one at
// a time and read the row under the lock, so whichever runs last writes the latest
// committed state no matter how the writers' commits and syncs interleave.
func (s *Service) syncIndex(ctx context.Context, id uuid.UUID) {
	if s.Index == nil {
		return
	}
	ctx, cancel := database.WithTimeout(context.WithoutCancel(ctx), s.Timeout)
	defer cancel()

	mu := &s.indexLocks[int(id[15])%len(s.indexLocks)]
	mu.Lock()
	defer mu.Unlock()

	var row struct {
		Longitude float64
		Latitude  float64
	}
	res := s.DB.WithContext(ctx).Model(&domain.Listing{}).
		Select("longitude, latitude").
		Where("id = ?", id).
		Limit(1).
		Scan(&row)

	var err error
	switch {
	case res.Error != nil:
		err = res.Error
	case res.RowsAffected == 0:
		err = s.Index.Remove(ctx, id)
	default:
		err = s.Index.Upsert(ctx, id, domain.Point{Longitude: row.Longitude, Latitude: row.Latitude})
	}
	if err != nil {
		log.Error().Err(err).Str("listing_id", id.String()).Msg("geo index sync failed")
	}
}
