package domain

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// VisitStatus is a state of the viewing-request lifecycle.
type VisitStatus string

const (
	VisitRequested VisitStatus = "Requested"
	VisitConfirmed VisitStatus = "Confirmed"
	VisitCancelled VisitStatus = "Cancelled"
	VisitCompleted VisitStatus = "Completed"
)

func (s VisitStatus) Valid() bool {
	switch s {
	case VisitRequested, VisitConfirmed, VisitCancelled, VisitCompleted:
		return true
	}
	return false
}

// Terminal reports whether no further transition leaves s.
func (s VisitStatus) Terminal() bool {
	return s == VisitCancelled || s == VisitCompleted
}

func (s VisitStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid visit status %q", string(s))
	}
	return string(s), nil
}

func (s *VisitStatus) Scan(value interface{}) error {
	str, err := scanString(value)
	if err != nil {
		return err
	}
	if !VisitStatus(str).Valid() {
		return fmt.Errorf("invalid visit status %q", str)
	}
	*s = VisitStatus(str)
	return nil
}

// VisitAction is a caller request to move a visit forward.
type VisitAction string

const (
	ActionConfirm  VisitAction = "confirm"
	ActionCancel   VisitAction = "cancel"
	ActionComplete VisitAction = "complete"
)

// ParseVisitAction validates an action name.
func ParseVisitAction(s string) (VisitAction, error) {
	switch a := VisitAction(s); a {
	case ActionConfirm, ActionCancel, ActionComplete:
		return a, nil
	}
	return "", Validationf("action must be one of confirm, cancel, complete (got %q)", s)
}

// target is the state each action leads to.
func (a VisitAction) target() VisitStatus {
	switch a {
	case ActionConfirm:
		return VisitConfirmed
	case ActionCancel:
		return VisitCancelled
	case ActionComplete:
		return VisitCompleted
	}
	return ""
}

var visitTransitions = map[VisitStatus][]VisitStatus{
	VisitRequested: {VisitConfirmed, VisitCancelled},
	VisitConfirmed: {VisitCompleted, VisitCancelled},
}

// NextVisitStatus applies action to current. noop is true when a terminal state is
// re-entered, which succeeds without a write.
func NextVisitStatus(current VisitStatus, action VisitAction) (next VisitStatus, noop bool, err error) {
	target := action.target()
	if target == "" {
		return "", false, Validationf("unknown action %q", string(action))
	}
	if current.Terminal() && current == target {
		return current, true, nil
	}
	for _, allowed := range visitTransitions[current] {
		if allowed == target {
			return target, false, nil
		}
	}
	return "", false, InvalidTransitionf("cannot %s a visit in state %s", action, current)
}

// Visit is a request by a user to view a listing at a given time.
type Visit struct {
	ID             uuid.UUID   `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID         string      `gorm:"column:user_id;type:varchar(128);not null;index;uniqueIndex:idx_visits_idempotency,priority:1" json:"userId"`
	ListingID      uuid.UUID   `gorm:"column:listing_id;type:uuid;not null;index" json:"listingId"`
	RequestedAt    time.Time   `gorm:"column:requested_at;not null" json:"requestedAt"`
	Status         VisitStatus `gorm:"column:status;type:varchar(16);not null" json:"status"`
	IdempotencyKey *string     `gorm:"column:idempotency_key;type:varchar(128);uniqueIndex:idx_visits_idempotency,priority:2" json:"-"`
	CreatedAt      time.Time   `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt      time.Time   `gorm:"column:updated_at" json:"updatedAt"`
}

func (Visit) TableName() string {
	return "visits"
}

func (v *Visit) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	if v.Status == "" {
		v.Status = VisitRequested
	}
	return nil
}
