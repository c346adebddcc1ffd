package domain

import (
	"database/sql/driver"
	"fmt"
)

// Gender is the occupancy category of a listing. Only the constants below are valid.
type Gender string

const (
	GenderGents    Gender = "Gents"
	GenderWomen    Gender = "Women"
	GenderColiving Gender = "Coliving"
)

// Genders lists the closed set in display order.
var Genders = []Gender{GenderGents, GenderWomen, GenderColiving}

// ParseGender converts s into a Gender, rejecting anything outside the closed set.
func ParseGender(s string) (Gender, error) {
	g := Gender(s)
	if !g.Valid() {
		return "", Validationf("gender must be one of Gents, Women, Coliving (got %q)", s)
	}
	return g, nil
}

func (g Gender) Valid() bool {
	switch g {
	case GenderGents, GenderWomen, GenderColiving:
		return true
	}
	return false
}

// Value refuses to persist a value outside the closed set.
func (g Gender) Value() (driver.Value, error) {
	if !g.Valid() {
		return nil, fmt.Errorf("invalid gender %q", string(g))
	}
	return string(g), nil
}

// Scan implements sql.Scanner.
func (g *Gender) Scan(value interface{}) error {
	s, err := scanString(value)
	if err != nil {
		return err
	}
	parsed, err := ParseGender(s)
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

// SharingType is the room-sharing arrangement of a listing.
type SharingType string

const (
	SharingSingle SharingType = "single"
	SharingDouble SharingType = "double"
	SharingTriple SharingType = "triple"
	SharingQuad   SharingType = "quad"
)

// SharingTypes lists the closed set in display order.
var SharingTypes = []SharingType{SharingSingle, SharingDouble, SharingTriple, SharingQuad}

// ParseSharingType converts s into a SharingType, rejecting unknown values.
func ParseSharingType(s string) (SharingType, error) {
	t := SharingType(s)
	if !t.Valid() {
		return "", Validationf("sharingType must be one of single, double, triple, quad (got %q)", s)
	}
	return t, nil
}

func (t SharingType) Valid() bool {
	switch t {
	case SharingSingle, SharingDouble, SharingTriple, SharingQuad:
		return true
	}
	return false
}

func (t SharingType) Value() (driver.Value, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid sharing type %q", string(t))
	}
	return string(t), nil
}

func (t *SharingType) Scan(value interface{}) error {
	s, err := scanString(value)
	if err != nil {
		return err
	}
	parsed, err := ParseSharingType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func scanString(value interface{}) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", fmt.Errorf("unsupported type %T for enum column", value)
	}
}
