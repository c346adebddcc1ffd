package ratings

import (
	ratingsvc "habinest-backend/internal/application/ratings"
	"habinest-backend/internal/middleware"
	"habinest-backend/internal/pkg/response"
	"habinest-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *ratingsvc.Service
}

type appendRatingBody struct {
	Score   *float64 `json:"score"`
	Comment string   `json:"comment"`
}

// POST /api/v1/listings/:listingId/ratings (the caller is the reviewer)
func (h *Handlers) AppendRating(c *fiber.Ctx) error {
	id, err := validation.UUID("listingId", c.Params("listingId"))
	if err != nil {
		return response.FromError(c, err)
	}
	var body appendRatingBody
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	if body.Score == nil {
		return response.Error(c, "Missing required field: score", fiber.StatusBadRequest, nil)
	}
	res, err := h.Service.AppendRating(c.UserContext(), ratingsvc.AppendRatingInput{
		ListingID: id,
		Reviewer:  middleware.GetCaller(c),
		Score:     *body.Score,
		Comment:   body.Comment,
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Rating added successfully", res, nil)
}

// GET /api/v1/listings/:listingId/ratings
func (h *Handlers) ListRatings(c *fiber.Ctx) error {
	id, err := validation.UUID("listingId", c.Params("listingId"))
	if err != nil {
		return response.FromError(c, err)
	}
	rs, err := h.Service.ListRatings(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Ratings fetched successfully", fiber.Map{"ratings": rs}, fiber.Map{"count": len(rs)})
}

// GET /api/v1/listings/:listingId/aggregate
func (h *Handlers) GetAggregate(c *fiber.Ctx) error {
	id, err := validation.UUID("listingId", c.Params("listingId"))
	if err != nil {
		return response.FromError(c, err)
	}
	agg, err := h.Service.GetAggregate(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Aggregate fetched successfully", agg, nil)
}
