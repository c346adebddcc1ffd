package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Point is a (longitude, latitude) pair in degrees. It marshals to JSON as [lon, lat].
type Point struct {
	Longitude float64 `gorm:"column:longitude;not null"`
	Latitude  float64 `gorm:"column:latitude;not null"`
}

// Validate checks that the pair lies on the globe.
func (p Point) Validate() error {
	if math.IsNaN(p.Longitude) || math.IsNaN(p.Latitude) {
		return Validationf("coordinates must be numbers")
	}
	if p.Longitude < -180 || p.Longitude > 180 {
		return Validationf("longitude %v out of range [-180, 180]", p.Longitude)
	}
	if p.Latitude < -90 || p.Latitude > 90 {
		return Validationf("latitude %v out of range [-90, 90]", p.Latitude)
	}
	return nil
}

func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{p.Longitude, p.Latitude})
}

func (p *Point) UnmarshalJSON(data []byte) error {
	var pair []float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("coordinates must be [longitude, latitude]: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("coordinates must have exactly 2 elements, got %d", len(pair))
	}
	p.Longitude, p.Latitude = pair[0], pair[1]
	return nil
}

// Aggregate is the derived rating summary. Mean is nil while Count is zero.
type Aggregate struct {
	Count int      `gorm:"column:rating_count;not null;default:0" json:"count"`
	Mean  *float64 `gorm:"column:rating_mean" json:"mean"`
}

// ComputeAggregate recomputes the summary from the full rating sequence.
func ComputeAggregate(ratings []Rating) Aggregate {
	if len(ratings) == 0 {
		return Aggregate{}
	}
	var sum float64
	for _, r := range ratings {
		sum += r.Score
	}
	mean := sum / float64(len(ratings))
	return Aggregate{Count: len(ratings), Mean: &mean}
}

// Listing is a rentable unit. Ratings are stored inline with the row.
type Listing struct {
	ID          uuid.UUID                   `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name        string                      `gorm:"column:name;not null;uniqueIndex" json:"name"`
	Address     string                      `gorm:"column:address;not null" json:"address"`
	PriceRange  float64                     `gorm:"column:price_range;not null;index" json:"priceRange"`
	SharingType SharingType                 `gorm:"column:sharing_type;type:varchar(16);not null;index" json:"sharingType"`
	Photo       string                      `gorm:"column:photo" json:"photo"`
	Gender      Gender                      `gorm:"column:gender;type:varchar(16);not null;index" json:"gender"`
	Coordinates Point                       `gorm:"embedded" json:"coordinates"`
	Ratings     datatypes.JSONSlice[Rating] `gorm:"column:ratings;not null" json:"ratings"`
	Aggregate   Aggregate                   `gorm:"embedded" json:"aggregate"`
	Version     int64                       `gorm:"column:version;not null;default:1" json:"-"`
	CreatedAt   time.Time                   `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt   time.Time                   `gorm:"column:updated_at" json:"updatedAt"`
}

func (Listing) TableName() string {
	return "listings"
}

// BeforeCreate assigns the identifier and an empty rating sequence.
func (l *Listing) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.Ratings == nil {
		l.Ratings = datatypes.JSONSlice[Rating]{}
	}
	if l.Version == 0 {
		l.Version = 1
	}
	return nil
}

// Validate enforces the write-time invariants shared by create and update.
func (l *Listing) Validate() error {
	if l.Name == "" {
		return Validationf("name is required")
	}
	if math.IsNaN(l.PriceRange) || math.IsInf(l.PriceRange, 0) || l.PriceRange <= 0 {
		return Validationf("priceRange must be positive")
	}
	if !l.Gender.Valid() {
		return Validationf("gender must be one of Gents, Women, Coliving (got %q)", string(l.Gender))
	}
	if !l.SharingType.Valid() {
		return Validationf("sharingType must be one of single, double, triple, quad (got %q)", string(l.SharingType))
	}
	return l.Coordinates.Validate()
}

// Summary is the read model returned by search.
type Summary struct {
	ID             uuid.UUID   `json:"id"`
	Name           string      `json:"name"`
	Address        string      `json:"address"`
	PriceRange     float64     `json:"priceRange"`
	SharingType    SharingType `json:"sharingType"`
	Photo          string      `json:"photo"`
	Gender         Gender      `json:"gender"`
	Coordinates    Point       `json:"coordinates"`
	Aggregate      Aggregate   `json:"aggregate"`
	DistanceMeters *float64    `json:"distanceMeters,omitempty"`
}

// Summarize projects a listing without its review bodies.
func (l *Listing) Summarize() Summary {
	return Summary{
		ID:          l.ID,
		Name:        l.Name,
		Address:     l.Address,
		PriceRange:  l.PriceRange,
		SharingType: l.SharingType,
		Photo:       l.Photo,
		Gender:      l.Gender,
		Coordinates: l.Coordinates,
		Aggregate:   l.Aggregate,
	}
}
