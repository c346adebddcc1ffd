package bookmarks

import (
	"context"
	"strings"
	"time"

	"habinest-backend/internal/application/listings"
	"habinest-backend/internal/domain"
	"habinest-backend/internal/infrastructure/database"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Service struct {
	DB       *gorm.DB
	Listings *listings.Service
	Timeout  time.Duration
}

func requireUser(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", domain.Validationf("user id is required")
	}
	return userID, nil
}

// AddBookmark saves listingID for userID. Saving twice returns the first record unchanged.
func (s *Service) AddBookmark(ctx context.Context, userID string, listingID uuid.UUID) (*domain.Bookmark, error) {
	userID, err := requireUser(userID)
	if err != nil {
		return nil, err
	}
	ok, err := s.Listings.Exists(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.NotFoundf("listing %s", listingID)
	}

	ctx, cancel := database.WithTimeout(ctx, s.Timeout)
	defer cancel()

	db := s.DB.WithContext(ctx)
	bm := &domain.Bookmark{UserID: userID, ListingID: listingID}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(bm).Error; err != nil {
		return nil, database.ClassifyCtx(ctx, err)
	}
	var stored domain.Bookmark
	if err := db.Where("user_id = ? AND listing_id = ?", userID, listingID).Take(&stored).Error; err != nil {
		return nil, database.ClassifyCtx(ctx, err)
	}
	return &stored, nil
}

// RemoveBookmark deletes the pair if present.
func (s *Service) RemoveBookmark(ctx context.Context, userID string, listingID uuid.UUID) error {
	userID, err := requireUser(userID)
	if err != nil {
		return err
	}
	ctx, cancel := database.WithTimeout(ctx, s.Timeout)
	defer cancel()

	if err := s.DB.WithContext(ctx).
		Where("user_id = ? AND listing_id = ?", userID, listingID).
		Delete(&domain.Bookmark{}).Error; err != nil {
		return database.ClassifyCtx(ctx, err)
	}
	return nil
}

// ListBookmarks returns the listings userID saved, in the order they were saved.
// Bookmarks whose listing was deleted are skipped.
func (s *Service) ListBookmarks(ctx context.Context, userID string) ([]domain.Summary, error) {
	userID, err := requireUser(userID)
	if err != nil {
		return nil, err
	}
	ctx, cancel := database.WithTimeout(ctx, s.Timeout)
	defer cancel()

	var rows []domain.Listing
	err = s.DB.WithContext(ctx).
		Model(&domain.Listing{}).
		Omit("ratings").
		Joins("JOIN bookmarks ON bookmarks.listing_id = listings.id").
		Where("bookmarks.user_id = ?", userID).
		Order("bookmarks.created_at ASC, listings.id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, database.ClassifyCtx(ctx, err)
	}
	out := make([]domain.Summary, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].Summarize())
	}
	return out, nil
}

// IsBookmarked is false for a bookmark whose listing no longer exists.
func (s *Service) IsBookmarked(ctx context.Context, userID string, listingID uuid.UUID) (bool, error) {
	userID, err := requireUser(userID)
	if err != nil {
		return false, err
	}
	ctx, cancel := database.WithTimeout(ctx, s.Timeout)
	defer cancel()

	var n int64
	err = s.DB.WithContext(ctx).
		Model(&domain.Bookmark{}).
		Joins("JOIN listings ON listings.id = bookmarks.listing_id").
		Where("bookmarks.user_id = ? AND bookmarks.listing_id = ?", userID, listingID).
		Count(&n).Error
	if err != nil {
		return false, database.ClassifyCtx(ctx, err)
	}
	return n > 0, nil
}

// PruneOrphans deletes bookmarks that point at deleted listings.
func (s *Service) PruneOrphans(ctx context.Context) (int64, error) {
	ctx, cancel := database.WithTimeout(ctx, s.Timeout)
	defer cancel()

	db := s.DB.WithContext(ctx)
	res := db.Where("listing_id NOT IN (?)", db.Model(&domain.Listing{}).Select("id")).Delete(&domain.Bookmark{})
	if res.Error != nil {
		return 0, database.ClassifyCtx(ctx, res.Error)
	}
	return res.RowsAffected, nil
}
