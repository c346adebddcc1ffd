package router

import (
	"net/http"

	bmsvc "habinest-backend/internal/application/bookmarks"
	healthsvc "habinest-backend/internal/application/health"
	lesvc "habinest-backend/internal/application/listingevents"
	listsvc "habinest-backend/internal/application/listings"
	ratingsvc "habinest-backend/internal/application/ratings"
	searchsvc "habinest-backend/internal/application/search"
	visitsvc "habinest-backend/internal/application/visits"
	"habinest-backend/internal/config"
	bmhandler "habinest-backend/internal/interfaces/handlers/bookmarks"
	healthhandler "habinest-backend/internal/interfaces/handlers/health"
	lehandler "habinest-backend/internal/interfaces/handlers/listingevents"
	listhandler "habinest-backend/internal/interfaces/handlers/listings"
	ratinghandler "habinest-backend/internal/interfaces/handlers/ratings"
	searchhandler "habinest-backend/internal/interfaces/handlers/search"
	visithandler "habinest-backend/internal/interfaces/handlers/visits"
	"habinest-backend/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/redis/go-redis/v9"
)

// Deps are the wired services the HTTP layer binds to. Rdb may be nil.
type Deps struct {
	Config    *config.Config
	Rdb       *redis.Client
	Listings  *listsvc.Service
	Ratings   *ratingsvc.Service
	Search    *searchsvc.Service
	Bookmarks *bmsvc.Service
	Visits    *visitsvc.Service
	Events    *lesvc.Service
	Health    *healthsvc.Collector
}

func CreateApp(d Deps) *fiber.App {
	cfg := d.Config
	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler(d.Rdb),
		EnableTrustedProxyCheck: true,
	})

	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: cfg.CORSOrigins,
		AllowLocalhost: cfg.Env != "production",
	}))
	app.Use(middleware.HealthMarker(d.Rdb))
	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())
	app.Use(middleware.CallerIdentity())

	hh := &healthhandler.Handlers{
		Collector:      d.Health,
		Rdb:            d.Rdb,
		HealthAdminKey: cfg.HealthAdminKey,
	}
	app.Get("/reset", hh.Reset)
	app.Get("/health/json", hh.JSON)
	app.Get("/health/errors", hh.Errors)

	api := app.Group("/api/v1")

	// Listings (search is registered ahead of /:listingId)
	sh := &searchhandler.Handlers{Service: d.Search}
	lh := &listhandler.Handlers{Service: d.Listings}
	rh := &ratinghandler.Handlers{Service: d.Ratings}
	leh := &lehandler.Handlers{Service: d.Events}
	lg := api.Group("/listings")
	lg.Get("/search", sh.Search)
	lg.Get("/", lh.ListListings)
	lg.Post("/", middleware.RequireCaller(), lh.CreateListing)
	lg.Get("/:listingId", lh.GetListing)
	lg.Patch("/:listingId", middleware.RequireCaller(), lh.UpdateListing)
	lg.Delete("/:listingId", middleware.RequireCaller(), lh.DeleteListing)
	lg.Get("/:listingId/ratings", rh.ListRatings)
	lg.Post("/:listingId/ratings", middleware.RequireCaller(), rh.AppendRating)
	lg.Get("/:listingId/aggregate", rh.GetAggregate)
	lg.Get("/:listingId/events", leh.ListEvents)

	// Bookmarks
	bh := &bmhandler.Handlers{Service: d.Bookmarks}
	bg := api.Group("/bookmarks", middleware.RequireCaller())
	bg.Get("/", bh.ListBookmarks)
	bg.Get("/:listingId", bh.IsBookmarked)
	bg.Put("/:listingId", bh.AddBookmark)
	bg.Delete("/:listingId", bh.RemoveBookmark)

	// Visits
	vh := &visithandler.Handlers{Service: d.Visits}
	vg := api.Group("/visits", middleware.RequireCaller())
	vg.Post("/", vh.RequestVisit)
	vg.Get("/", vh.ListVisits)
	vg.Get("/:visitId", vh.GetVisit)
	vg.Post("/:visitId/:action", vh.Transition)

	return app
}

// Handler exposes the fiber app as a net/http handler.
func Handler(app *fiber.App) http.Handler {
	return adaptor.FiberApp(app)
}
