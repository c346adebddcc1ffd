package listingevents

import (
	"context"
	"time"

	"habinest-backend/internal/domain"
	"habinest-backend/internal/infrastructure/database"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const maxEvents = 500

type Service struct {
	DB      *gorm.DB
	Timeout time.Duration
}

// ListByListing returns the audit trail of a listing, oldest first. Events outlive the listing.
func (s *Service) ListByListing(ctx context.Context, listingID uuid.UUID, limit int) ([]domain.ListingEvent, error) {
	if listingID == uuid.Nil {
		return nil, domain.Validationf("listing id is required")
	}
	if limit <= 0 || limit > maxEvents {
		limit = maxEvents
	}
	ctx, cancel := database.WithTimeout(ctx, s.Timeout)
	defer cancel()

	var events []domain.ListingEvent
	if err := s.DB.WithContext(ctx).
		Where("listing_id = ?", listingID).
		Order("created_at ASC, event_id ASC").
		Limit(limit).
		Find(&events).Error; err != nil {
		return nil, database.ClassifyCtx(ctx, err)
	}
	return events, nil
}
