package listings

import (
	listsvc "habinest-backend/internal/application/listings"
	"habinest-backend/internal/domain"
	"habinest-backend/internal/middleware"
	"habinest-backend/internal/pkg/response"
	"habinest-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *listsvc.Service
}

type createListingBody struct {
	Name        string        `json:"name"`
	Address     string        `json:"address"`
	PriceRange  float64       `json:"priceRange"`
	SharingType string        `json:"sharingType"`
	Photo       string        `json:"photo"`
	Gender      string        `json:"gender"`
	Coordinates *domain.Point `json:"coordinates"`
}

type updateListingBody struct {
	Address     *string       `json:"address"`
	PriceRange  *float64      `json:"priceRange"`
	Photo       *string       `json:"photo"`
	Coordinates *domain.Point `json:"coordinates"`
}

// POST /api/v1/listings
func (h *Handlers) CreateListing(c *fiber.Ctx) error {
	var body createListingBody
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	if err := validation.Required("name", body.Name); err != nil {
		return response.FromError(c, err)
	}
	gender, err := domain.ParseGender(body.Gender)
	if err != nil {
		return response.FromError(c, err)
	}
	sharing, err := domain.ParseSharingType(body.SharingType)
	if err != nil {
		return response.FromError(c, err)
	}

	listing, err := h.Service.CreateListing(c.UserContext(), listsvc.CreateListingInput{
		Name:        body.Name,
		Address:     body.Address,
		PriceRange:  body.PriceRange,
		SharingType: sharing,
		Photo:       body.Photo,
		Gender:      gender,
		Coordinates: body.Coordinates,
	}, middleware.GetCaller(c))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Listing created successfully", listing, nil)
}

// GET /api/v1/listings
func (h *Handlers) ListListings(c *fiber.Ctx) error {
	listings, err := h.Service.ListListings(c.UserContext())
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Listings fetched successfully", fiber.Map{"listings": listings}, fiber.Map{"count": len(listings)})
}

// GET /api/v1/listings/:listingId
func (h *Handlers) GetListing(c *fiber.Ctx) error {
	id, err := validation.UUID("listingId", c.Params("listingId"))
	if err != nil {
		return response.FromError(c, err)
	}
	listing, err := h.Service.GetListing(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Listing fetched successfully", listing, nil)
}

// PATCH /api/v1/listings/:listingId
func (h *Handlers) UpdateListing(c *fiber.Ctx) error {
	id, err := validation.UUID("listingId", c.Params("listingId"))
	if err != nil {
		return response.FromError(c, err)
	}
	var body updateListingBody
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	listing, err := h.Service.UpdateListing(c.UserContext(), id, listsvc.Patch{
		Address:     body.Address,
		PriceRange:  body.PriceRange,
		Photo:       body.Photo,
		Coordinates: body.Coordinates,
	}, middleware.GetCaller(c))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Listing updated successfully", listing, nil)
}

// DELETE /api/v1/listings/:listingId
func (h *Handlers) DeleteListing(c *fiber.Ctx) error {
	id, err := validation.UUID("listingId", c.Params("listingId"))
	if err != nil {
		return response.FromError(c, err)
	}
	if err := h.Service.DeleteListing(c.UserContext(), id, middleware.GetCaller(c)); err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Listing deleted successfully", fiber.Map{"listingId": id}, nil)
}
