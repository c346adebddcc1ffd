package search

import (
	searchsvc "habinest-backend/internal/application/search"
	"habinest-backend/internal/domain"
	"habinest-backend/internal/pkg/response"
	"habinest-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *searchsvc.Service
}

// GET /api/v1/listings/search?priceMin=&priceMax=&sharingType=&gender=&lon=&lat=&radius=&minRating=&sortBy=&limit=&offset=
func (h *Handlers) Search(c *fiber.Ctx) error {
	f, err := parseFilter(c)
	if err != nil {
		return response.FromError(c, err)
	}
	res, err := h.Service.Query(c.UserContext(), f)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Listings fetched successfully", fiber.Map{"listings": res.Items}, fiber.Map{
		"total":  res.Total,
		"limit":  f.Limit,
		"offset": f.Offset,
		"sortBy": f.SortBy,
	})
}

func parseFilter(c *fiber.Ctx) (searchsvc.Filter, error) {
	var f searchsvc.Filter
	var err error

	if f.PriceMin, err = validation.OptionalFloat("priceMin", c.Query("priceMin")); err != nil {
		return f, err
	}
	if f.PriceMax, err = validation.OptionalFloat("priceMax", c.Query("priceMax")); err != nil {
		return f, err
	}
	if f.MinRating, err = validation.OptionalFloat("minRating", c.Query("minRating")); err != nil {
		return f, err
	}
	if s := c.Query("sharingType"); s != "" {
		st, err := domain.ParseSharingType(s)
		if err != nil {
			return f, err
		}
		f.SharingType = &st
	}
	if s := c.Query("gender"); s != "" {
		g, err := domain.ParseGender(s)
		if err != nil {
			return f, err
		}
		f.Gender = &g
	}

	lon, err := validation.OptionalFloat("lon", c.Query("lon"))
	if err != nil {
		return f, err
	}
	lat, err := validation.OptionalFloat("lat", c.Query("lat"))
	if err != nil {
		return f, err
	}
	radius, err := validation.OptionalFloat("radius", c.Query("radius"))
	if err != nil {
		return f, err
	}
	switch {
	case lon == nil && lat == nil && radius == nil:
	case lon == nil || lat == nil || radius == nil:
		return f, domain.Validationf("lon, lat and radius must be given together")
	default:
		f.Near = &searchsvc.Near{
			Center:       domain.Point{Longitude: *lon, Latitude: *lat},
			RadiusMeters: *radius,
		}
	}

	if f.SortBy, err = searchsvc.ParseSortKey(c.Query("sortBy")); err != nil {
		return f, err
	}
	if f.Limit, err = validation.OptionalInt("limit", c.Query("limit")); err != nil {
		return f, err
	}
	if f.Offset, err = validation.OptionalInt("offset", c.Query("offset")); err != nil {
		return f, err
	}
	err = f.Validate()
	return f, err
}
