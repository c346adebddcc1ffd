package search

import (
	"errors"
	"net/http/httptest"
	"testing"

	searchsvc "habinest-backend/internal/application/search"
	"habinest-backend/internal/domain"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// parse runs parseFilter against a request for the given query string.
func parse(t *testing.T, query string) (searchsvc.Filter, error) {
	t.Helper()
	var (
		f   searchsvc.Filter
		err error
	)
	app := fiber.New()
	app.Get("/search", func(c *fiber.Ctx) error {
		f, err = parseFilter(c)
		return c.SendStatus(fiber.StatusNoContent)
	})
	resp, testErr := app.Test(httptest.NewRequest("GET", "/search"+query, nil))
	require.NoError(t, testErr)
	resp.Body.Close()
	return f, err
}

func TestParseFilter_Full(t *testing.T) {
	f, err := parse(t, "?priceMin=1000&priceMax=10000&sharingType=double&gender=Women&minRating=4&lon=77.59&lat=12.97&radius=2500&sortBy=rating&limit=10&offset=5")
	require.NoError(t, err)
	require.NotNil(t, f.PriceMin)
	require.NotNil(t, f.PriceMax)
	assert.Equal(t, 1000.0, *f.PriceMin)
	assert.Equal(t, 10000.0, *f.PriceMax)
	require.NotNil(t, f.SharingType)
	assert.Equal(t, domain.SharingDouble, *f.SharingType)
	require.NotNil(t, f.Gender)
	assert.Equal(t, domain.GenderWomen, *f.Gender)
	require.NotNil(t, f.Near)
	assert.Equal(t, domain.Point{Longitude: 77.59, Latitude: 12.97}, f.Near.Center)
	assert.Equal(t, 2500.0, f.Near.RadiusMeters)
	assert.Equal(t, searchsvc.SortRating, f.SortBy)
	assert.Equal(t, 10, f.Limit)
	assert.Equal(t, 5, f.Offset)
}

func TestParseFilter_Empty(t *testing.T) {
	f, err := parse(t, "")
	require.NoError(t, err)
	assert.Nil(t, f.Near)
	assert.Nil(t, f.Gender)
	assert.Equal(t, searchsvc.DefaultLimit, f.Limit)
}

func TestParseFilter_Rejects(t *testing.T) {
	for _, q := range []string{
		"?priceMin=cheap",
		"?gender=Mixed",
		"?sharingType=dorm",
		"?lon=77.5",
		"?lon=77.5&lat=12.9",
		"?sortBy=newest",
		"?limit=x",
		"?minRating=6",
	} {
		_, err := parse(t, q)
		assert.True(t, errors.Is(err, domain.ErrValidation), q)
	}
}
