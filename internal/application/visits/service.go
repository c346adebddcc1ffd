package visits

import (
	"context"
	"errors"
	"strings"
	"time"

	"habinest-backend/internal/application/listings"
	"habinest-backend/internal/domain"
	"habinest-backend/internal/infrastructure/database"
	"habinest-backend/internal/infrastructure/events"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type Service struct {
	DB        *gorm.DB
	Listings  *listings.Service
	Publisher events.Publisher
	Timeout   time.Duration
	Retries   int
}

type RequestVisitInput struct {
	UserID      string
	ListingID   uuid.UUID
	RequestedAt time.Time
	// IdempotencyKey makes a retried request return the visit created by the first attempt.
	IdempotencyKey string
}

var errStaleStatus = errors.New("visit status changed")

func (s *Service) retries() int {
	if s.Retries < 1 {
		return 1
	}
	return s.Retries
}

func (s *Service) RequestVisit(ctx context.Context, in RequestVisitInput) (*domain.Visit, error) {
	userID := strings.TrimSpace(in.UserID)
	if userID == "" {
		return nil, domain.Validationf("user id is required")
	}
	if in.RequestedAt.IsZero() {
		return nil, domain.Validationf("requestedAt is required")
	}
	key := strings.TrimSpace(in.IdempotencyKey)
	if len(key) > 128 {
		return nil, domain.Validationf("idempotency key longer than 128 characters")
	}

	if key != "" {
		if v, err := s.findByKey(ctx, userID, key); err != nil || v != nil {
			return v, err
		}
	}

	ok, err := s.Listings.Exists(ctx, in.ListingID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.NotFoundf("listing %s", in.ListingID)
	}

	visit := &domain.Visit{
		UserID:      userID,
		ListingID:   in.ListingID,
		RequestedAt: in.RequestedAt.UTC(),
		Status:      domain.VisitRequested,
	}
	if key != "" {
		visit.IdempotencyKey = &key
	}

	tctx, cancel := database.WithTimeout(ctx, s.Timeout)
	defer cancel()

	var ev domain.ListingEvent
	err = s.DB.WithContext(tctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(visit).Error; err != nil {
			return err
		}
		ev = domain.NewListingEvent(visit.ListingID, domain.EventVisitRequested, userID, map[string]interface{}{
			"visitId":     visit.ID,
			"requestedAt": visit.RequestedAt,
		})
		return tx.Create(&ev).Error
	})
	if err != nil {
		// a concurrent retry with the same key won the insert
		if key != "" && database.IsDuplicate(err) {
			return s.findByKey(ctx, userID, key)
		}
		return nil, database.ClassifyCtx(tctx, err)
	}
	events.PublishAll(ctx, s.Publisher, ev)
	return visit, nil
}

func (s *Service) findByKey(ctx context.Context, userID, key string) (*domain.Visit, error) {
	ctx, cancel := database.WithTimeout(ctx, s.Timeout)
	defer cancel()

	var v domain.Visit
	err := s.DB.WithContext(ctx).Where("user_id = ? AND idempotency_key = ?", userID, key).Take(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, database.ClassifyCtx(ctx, err)
	}
	return &v, nil
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*domain.Visit, error) {
	ctx, cancel := database.WithTimeout(ctx, s.Timeout)
	defer cancel()

	var v domain.Visit
	if err := s.DB.WithContext(ctx).Where("id = ?", id).Take(&v).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NotFoundf("visit %s", id)
		}
		return nil, database.ClassifyCtx(ctx, err)
	}
	return &v, nil
}

// loadFor is load restricted to userID's visits when userID is set.
func (s *Service) loadFor(ctx context.Context, id uuid.UUID, userID string) (*domain.Visit, error) {
	v, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if userID = strings.TrimSpace(userID); userID != "" && v.UserID != userID {
		return nil, domain.NotFoundf("visit %s", id)
	}
	return v, nil
}

// GetVisit returns the visit. A visit whose listing was deleted reads as NotFound for the listing.
// A non-empty userID scopes the read: another user's visit reads as NotFound.
func (s *Service) GetVisit(ctx context.Context, id uuid.UUID, userID string) (*domain.Visit, error) {
	v, err := s.loadFor(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	ok, err := s.Listings.Exists(ctx, v.ListingID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.NotFoundf("listing %s of visit %s", v.ListingID, id)
	}
	return v, nil
}

// Transition moves the visit along the state machine. Re-entering the terminal state it
// already holds succeeds without a write. Confirm and complete need the listing to exist;
// cancel is always allowed so callers can clear out orphaned requests.
// A non-empty actor must own the visit; an empty actor is an unscoped operator call.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, action domain.VisitAction, actor string) (*domain.Visit, error) {
	for attempt := 1; attempt <= s.retries(); attempt++ {
		v, err := s.tryTransition(ctx, id, action, actor)
		if !errors.Is(err, errStaleStatus) {
			return v, err
		}
		log.Debug().Str("visit_id", id.String()).Int("attempt", attempt).Msg("visit status changed underneath, retrying")
	}
	return nil, domain.Conflictf("visit %s is being modified concurrently", id)
}

func (s *Service) tryTransition(ctx context.Context, id uuid.UUID, action domain.VisitAction, actor string) (*domain.Visit, error) {
	v, err := s.loadFor(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	next, noop, err := domain.NextVisitStatus(v.Status, action)
	if err != nil {
		return nil, err
	}
	if noop {
		return v, nil
	}
	if action != domain.ActionCancel {
		ok, err := s.Listings.Exists(ctx, v.ListingID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, domain.NotFoundf("listing %s of visit %s", v.ListingID, id)
		}
	}

	tctx, cancel := database.WithTimeout(ctx, s.Timeout)
	defer cancel()

	prev := v.Status
	now := time.Now()
	ev := domain.NewListingEvent(v.ListingID, domain.EventVisitTransition, actor, map[string]interface{}{
		"visitId": v.ID,
		"from":    prev,
		"to":      next,
	})
	err = s.DB.WithContext(tctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Visit{}).
			Where("id = ? AND status = ?", id, prev).
			Updates(map[string]interface{}{"status": next, "updated_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errStaleStatus
		}
		return tx.Create(&ev).Error
	})
	if errors.Is(err, errStaleStatus) {
		return nil, errStaleStatus
	}
	if err != nil {
		return nil, database.ClassifyCtx(tctx, err)
	}

	v.Status = next
	v.UpdatedAt = now
	events.PublishAll(ctx, s.Publisher, ev)
	return v, nil
}

// ListVisits returns the user's visits with live listings, most recent request first.
func (s *Service) ListVisits(ctx context.Context, userID string) ([]domain.Visit, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domain.Validationf("user id is required")
	}
	ctx, cancel := database.WithTimeout(ctx, s.Timeout)
	defer cancel()

	var out []domain.Visit
	err := s.DB.WithContext(ctx).
		Joins("JOIN listings ON listings.id = visits.listing_id").
		Where("visits.user_id = ?", userID).
		Order("visits.requested_at DESC, visits.id ASC").
		Find(&out).Error
	if err != nil {
		return nil, database.ClassifyCtx(ctx, err)
	}
	return out, nil
}

// PruneOrphans deletes visits that point at deleted listings.
func (s *Service) PruneOrphans(ctx context.Context) (int64, error) {
	ctx, cancel := database.WithTimeout(ctx, s.Timeout)
	defer cancel()

	db := s.DB.WithContext(ctx)
	res := db.Where("listing_id NOT IN (?)", db.Model(&domain.Listing{}).Select("id")).Delete(&domain.Visit{})
	if res.Error != nil {
		return 0, database.ClassifyCtx(ctx, res.Error)
	}
	return res.RowsAffected, nil
}
