package listingevents

import (
	lesvc "habinest-backend/internal/application/listingevents"
	"habinest-backend/internal/pkg/response"
	"habinest-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *lesvc.Service
}

// GET /api/v1/listings/:listingId/events?limit=
func (h *Handlers) ListEvents(c *fiber.Ctx) error {
	id, err := validation.UUID("listingId", c.Params("listingId"))
	if err != nil {
		return response.FromError(c, err)
	}
	limit, err := validation.OptionalInt("limit", c.Query("limit"))
	if err != nil {
		return response.FromError(c, err)
	}
	events, err := h.Service.ListByListing(c.UserContext(), id, limit)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Listing events fetched successfully", fiber.Map{"events": events}, nil)
}
