package bookmarks

import (
	bmsvc "habinest-backend/internal/application/bookmarks"
	"habinest-backend/internal/middleware"
	"habinest-backend/internal/pkg/response"
	"habinest-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *bmsvc.Service
}

// PUT /api/v1/bookmarks/:listingId
func (h *Handlers) AddBookmark(c *fiber.Ctx) error {
	id, err := validation.UUID("listingId", c.Params("listingId"))
	if err != nil {
		return response.FromError(c, err)
	}
	bm, err := h.Service.AddBookmark(c.UserContext(), middleware.GetCaller(c), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Listing bookmarked", bm, nil)
}

// DELETE /api/v1/bookmarks/:listingId
func (h *Handlers) RemoveBookmark(c *fiber.Ctx) error {
	id, err := validation.UUID("listingId", c.Params("listingId"))
	if err != nil {
		return response.FromError(c, err)
	}
	if err := h.Service.RemoveBookmark(c.UserContext(), middleware.GetCaller(c), id); err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Bookmark removed", fiber.Map{"listingId": id}, nil)
}

// GET /api/v1/bookmarks
func (h *Handlers) ListBookmarks(c *fiber.Ctx) error {
	items, err := h.Service.ListBookmarks(c.UserContext(), middleware.GetCaller(c))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Bookmarks fetched successfully", fiber.Map{"listings": items}, fiber.Map{"count": len(items)})
}

// GET /api/v1/bookmarks/:listingId
func (h *Handlers) IsBookmarked(c *fiber.Ctx) error {
	id, err := validation.UUID("listingId", c.Params("listingId"))
	if err != nil {
		return response.FromError(c, err)
	}
	ok, err := h.Service.IsBookmarked(c.UserContext(), middleware.GetCaller(c), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Bookmark status fetched", fiber.Map{"listingId": id, "bookmarked": ok}, nil)
}
