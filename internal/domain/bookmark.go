package domain

import (
	"time"

	"github.com/google/uuid"
)

// Bookmark records that a user saved a listing. The (user, listing) pair is the key.
type Bookmark struct {
	UserID    string    `gorm:"column:user_id;type:varchar(128);primaryKey" json:"userId"`
	ListingID uuid.UUID `gorm:"column:listing_id;type:uuid;primaryKey;index" json:"listingId"`
	CreatedAt time.Time `gorm:"column:created_at" json:"createdAt"`
}

func (Bookmark) TableName() string {
	return "bookmarks"
}
