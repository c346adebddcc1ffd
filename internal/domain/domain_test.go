package domain

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeAggregate_Empty(t *testing.T) {
	agg := ComputeAggregate(nil)
	assert.Equal(t, 0, agg.Count)
	assert.Nil(t, agg.Mean, "no ratings must not look like a zero mean")
}

func TestComputeAggregate_Mean(t *testing.T) {
	agg := ComputeAggregate([]Rating{{Score: 4}, {Score: 5}})
	require.NotNil(t, agg.Mean)
	assert.Equal(t, 2, agg.Count)
	assert.InDelta(t, 4.5, *agg.Mean, 1e-9)
}

func TestComputeAggregate_RatedZero(t *testing.T) {
	agg := ComputeAggregate([]Rating{{Score: 0}})
	require.NotNil(t, agg.Mean)
	assert.Equal(t, 1, agg.Count)
	assert.Equal(t, 0.0, *agg.Mean)
}

func TestValidateScore(t *testing.T) {
	tests := []struct {
		score   float64
		wantErr bool
	}{
		{0, false},
		{5, false},
		{2.5, false},
		{-0.1, true},
		{5.01, true},
		{math.NaN(), true},
	}
	for _, tt := range tests {
		err := ValidateScore(tt.score)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrValidation, "score %v", tt.score)
		} else {
			assert.NoError(t, err, "score %v", tt.score)
		}
	}
}

func TestParseGender(t *testing.T) {
	for _, g := range Genders {
		got, err := ParseGender(string(g))
		require.NoError(t, err)
		assert.Equal(t, g, got)
	}
	_, err := ParseGender("women")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = ParseGender("")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestGenderValueRejectsUnknown(t *testing.T) {
	_, err := Gender("Mixed").Value()
	assert.Error(t, err)
	v, err := GenderWomen.Value()
	require.NoError(t, err)
	assert.Equal(t, "Women", v)
}

func TestPointJSON_LongitudeFirst(t *testing.T) {
	b, err := json.Marshal(Point{Longitude: 77.59, Latitude: 12.97})
	require.NoError(t, err)
	assert.JSONEq(t, `[77.59, 12.97]`, string(b))

	var p Point
	require.NoError(t, json.Unmarshal([]byte(`[10.5, -3.25]`), &p))
	assert.Equal(t, 10.5, p.Longitude)
	assert.Equal(t, -3.25, p.Latitude)

	assert.Error(t, json.Unmarshal([]byte(`[1]`), &p))
}

func TestPointValidate(t *testing.T) {
	assert.NoError(t, Point{Longitude: 180, Latitude: -90}.Validate())
	assert.ErrorIs(t, Point{Longitude: 181}.Validate(), ErrValidation)
	assert.ErrorIs(t, Point{Latitude: 90.5}.Validate(), ErrValidation)
}

func TestGreatCircleDistance(t *testing.T) {
	bangalore := Point{Longitude: 77.5946, Latitude: 12.9716}
	chennai := Point{Longitude: 80.2707, Latitude: 13.0827}

	d := GreatCircleDistance(bangalore, chennai)
	assert.InDelta(t, 290_000, d, 5_000)
	assert.Equal(t, 0.0, GreatCircleDistance(bangalore, bangalore))
	assert.InDelta(t, d, GreatCircleDistance(chennai, bangalore), 1e-6)
}

func TestNextVisitStatus(t *testing.T) {
	tests := []struct {
		name     string
		from     VisitStatus
		action   VisitAction
		want     VisitStatus
		wantNoop bool
		wantErr  error
	}{
		{"confirm requested", VisitRequested, ActionConfirm, VisitConfirmed, false, nil},
		{"cancel requested", VisitRequested, ActionCancel, VisitCancelled, false, nil},
		{"complete requested", VisitRequested, ActionComplete, "", false, ErrInvalidTransition},
		{"complete confirmed", VisitConfirmed, ActionComplete, VisitCompleted, false, nil},
		{"cancel confirmed", VisitConfirmed, ActionCancel, VisitCancelled, false, nil},
		{"confirm confirmed", VisitConfirmed, ActionConfirm, "", false, ErrInvalidTransition},
		{"cancel cancelled", VisitCancelled, ActionCancel, VisitCancelled, true, nil},
		{"confirm cancelled", VisitCancelled, ActionConfirm, "", false, ErrInvalidTransition},
		{"complete cancelled", VisitCancelled, ActionComplete, "", false, ErrInvalidTransition},
		{"complete completed", VisitCompleted, ActionComplete, VisitCompleted, true, nil},
		{"cancel completed", VisitCompleted, ActionCancel, "", false, ErrInvalidTransition},
		{"confirm completed", VisitCompleted, ActionConfirm, "", false, ErrInvalidTransition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, noop, err := NextVisitStatus(tt.from, tt.action)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantNoop, noop)
		})
	}
}

func TestParseVisitAction(t *testing.T) {
	a, err := ParseVisitAction("confirm")
	require.NoError(t, err)
	assert.Equal(t, ActionConfirm, a)
	_, err = ParseVisitAction("approve")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestListingValidate(t *testing.T) {
	valid := func() *Listing {
		return &Listing{
			Name:        "Sunrise PG",
			PriceRange:  8000,
			SharingType: SharingDouble,
			Gender:      GenderWomen,
			Coordinates: Point{Longitude: 77.59, Latitude: 12.97},
		}
	}
	assert.NoError(t, valid().Validate())

	l := valid()
	l.PriceRange = 0
	assert.ErrorIs(t, l.Validate(), ErrValidation)

	l = valid()
	l.Gender = "Mixed"
	assert.ErrorIs(t, l.Validate(), ErrValidation)

	l = valid()
	l.Name = ""
	assert.ErrorIs(t, l.Validate(), ErrValidation)

	l = valid()
	l.Coordinates.Latitude = 100
	assert.ErrorIs(t, l.Validate(), ErrValidation)
}
