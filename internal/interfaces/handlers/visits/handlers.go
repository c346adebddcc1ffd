package visits

import (
	"time"

	visitsvc "habinest-backend/internal/application/visits"
	"habinest-backend/internal/domain"
	"habinest-backend/internal/middleware"
	"habinest-backend/internal/pkg/response"
	"habinest-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
)

// IdempotencyHeader lets a client retry a visit request safely.
const IdempotencyHeader = "Idempotency-Key"

type Handlers struct {
	Service *visitsvc.Service
}

type requestVisitBody struct {
	ListingID   string    `json:"listingId"`
	RequestedAt time.Time `json:"requestedAt"`
}

// POST /api/v1/visits
func (h *Handlers) RequestVisit(c *fiber.Ctx) error {
	var body requestVisitBody
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	listingID, err := validation.UUID("listingId", body.ListingID)
	if err != nil {
		return response.FromError(c, err)
	}
	v, err := h.Service.RequestVisit(c.UserContext(), visitsvc.RequestVisitInput{
		UserID:         middleware.GetCaller(c),
		ListingID:      listingID,
		RequestedAt:    body.RequestedAt,
		IdempotencyKey: c.Get(IdempotencyHeader),
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Visit requested", v, nil)
}

// GET /api/v1/visits
func (h *Handlers) ListVisits(c *fiber.Ctx) error {
	vs, err := h.Service.ListVisits(c.UserContext(), middleware.GetCaller(c))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Visits fetched successfully", fiber.Map{"visits": vs}, fiber.Map{"count": len(vs)})
}

// GET /api/v1/visits/:visitId (another user's visit reads as 404)
func (h *Handlers) GetVisit(c *fiber.Ctx) error {
	id, err := validation.UUID("visitId", c.Params("visitId"))
	if err != nil {
		return response.FromError(c, err)
	}
	v, err := h.Service.GetVisit(c.UserContext(), id, middleware.GetCaller(c))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Visit fetched successfully", v, nil)
}

// POST /api/v1/visits/:visitId/:action  (action: confirm | cancel | complete)
func (h *Handlers) Transition(c *fiber.Ctx) error {
	id, err := validation.UUID("visitId", c.Params("visitId"))
	if err != nil {
		return response.FromError(c, err)
	}
	action, err := domain.ParseVisitAction(c.Params("action"))
	if err != nil {
		return response.FromError(c, err)
	}
	v, err := h.Service.Transition(c.UserContext(), id, action, middleware.GetCaller(c))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Visit updated", v, nil)
}
