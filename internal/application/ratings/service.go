package ratings

import (
	"context"
	"errors"
	"strings"
	"time"

	"habinest-backend/internal/application/listings"
	"habinest-backend/internal/domain"
	"habinest-backend/internal/infrastructure/database"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service maintains the embedded reviews of a listing and their aggregate.
// Appends go through the listing store's versioned write, so the aggregate is
// always recomputed from the exact sequence that gets stored.
type Service struct {
	Listings *listings.Service
}

type AppendRatingInput struct {
	ListingID uuid.UUID
	Reviewer  string
	Score     float64
	Comment   string
}

type AppendRatingResult struct {
	Rating    domain.Rating    `json:"rating"`
	Aggregate domain.Aggregate `json:"aggregate"`
}

func (s *Service) AppendRating(ctx context.Context, in AppendRatingInput) (*AppendRatingResult, error) {
	reviewer := strings.TrimSpace(in.Reviewer)
	if reviewer == "" {
		return nil, domain.Validationf("reviewer is required")
	}
	if err := domain.ValidateScore(in.Score); err != nil {
		return nil, err
	}

	var rating domain.Rating
	listing, err := s.Listings.Mutate(ctx, in.ListingID, func(l *domain.Listing) ([]domain.ListingEvent, error) {
		rating = domain.Rating{
			Reviewer:  reviewer,
			Score:     in.Score,
			Comment:   strings.TrimSpace(in.Comment),
			CreatedAt: time.Now().UTC(),
		}
		l.Ratings = append(l.Ratings, rating)
		l.Aggregate = domain.ComputeAggregate(l.Ratings)
		return []domain.ListingEvent{domain.NewListingEvent(l.ID, domain.EventRatingAppended, reviewer, map[string]interface{}{
			"score": in.Score,
			"count": l.Aggregate.Count,
			"mean":  l.Aggregate.Mean,
		})}, nil
	})
	if err != nil {
		return nil, err
	}
	return &AppendRatingResult{Rating: rating, Aggregate: listing.Aggregate}, nil
}

// GetAggregate returns the stored summary without loading the reviews.
func (s *Service) GetAggregate(ctx context.Context, listingID uuid.UUID) (domain.Aggregate, error) {
	ctx, cancel := database.WithTimeout(ctx, s.Listings.Timeout)
	defer cancel()

	var agg domain.Aggregate
	err := s.Listings.DB.WithContext(ctx).Model(&domain.Listing{}).
		Select("rating_count, rating_mean").
		Where("id = ?", listingID).
		Take(&agg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Aggregate{}, domain.NotFoundf("listing %s", listingID)
		}
		return domain.Aggregate{}, database.ClassifyCtx(ctx, err)
	}
	return agg, nil
}

// ListRatings returns the reviews in insertion order.
func (s *Service) ListRatings(ctx context.Context, listingID uuid.UUID) ([]domain.Rating, error) {
	l, err := s.Listings.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	return l.Ratings, nil
}

// Recompute derives the aggregate from the stored reviews, for comparison with GetAggregate.
func (s *Service) Recompute(ctx context.Context, listingID uuid.UUID) (domain.Aggregate, error) {
	l, err := s.Listings.GetListing(ctx, listingID)
	if err != nil {
		return domain.Aggregate{}, err
	}
	return domain.ComputeAggregate(l.Ratings), nil
}
