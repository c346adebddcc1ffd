package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Listing event types.
const (
	EventListingCreated  = "LISTING_CREATED"
	EventListingUpdated  = "LISTING_UPDATED"
	EventListingDeleted  = "LISTING_DELETED"
	EventRatingAppended  = "RATING_APPENDED"
	EventVisitRequested  = "VISIT_REQUESTED"
	EventVisitTransition = "VISIT_TRANSITIONED"
)

// ListingEvent is an append-only audit record written in the same transaction as the change it describes.
type ListingEvent struct {
	EventID   uuid.UUID      `gorm:"column:event_id;type:uuid;primaryKey" json:"eventId"`
	ListingID uuid.UUID      `gorm:"column:listing_id;type:uuid;not null;index" json:"listingId"`
	EventType string         `gorm:"column:event_type;type:varchar(30);not null" json:"eventType"`
	EventData datatypes.JSON `gorm:"column:event_data;not null" json:"eventData"`
	Actor     *string        `gorm:"column:actor" json:"actor"`
	CreatedAt time.Time      `gorm:"column:created_at" json:"createdAt"`
}

func (ListingEvent) TableName() string {
	return "listing_events"
}

func (le *ListingEvent) BeforeCreate(tx *gorm.DB) error {
	if le.EventID == uuid.Nil {
		le.EventID = uuid.New()
	}
	return nil
}

// NewListingEvent builds an event with data marshaled to JSON. Empty actor means the system.
func NewListingEvent(listingID uuid.UUID, eventType, actor string, data map[string]interface{}) ListingEvent {
	if data == nil {
		data = map[string]interface{}{}
	}
	b, _ := json.Marshal(data)
	ev := ListingEvent{
		ListingID: listingID,
		EventType: eventType,
		EventData: datatypes.JSON(b),
	}
	if actor != "" {
		ev.Actor = &actor
	}
	return ev
}
