package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	bmsvc "habinest-backend/internal/application/bookmarks"
	healthsvc "habinest-backend/internal/application/health"
	lesvc "habinest-backend/internal/application/listingevents"
	listsvc "habinest-backend/internal/application/listings"
	ratingsvc "habinest-backend/internal/application/ratings"
	searchsvc "habinest-backend/internal/application/search"
	visitsvc "habinest-backend/internal/application/visits"
	"habinest-backend/internal/config"
	"habinest-backend/internal/infrastructure/database"
	"habinest-backend/internal/infrastructure/events"
	"habinest-backend/internal/infrastructure/geoindex"
	"habinest-backend/internal/interfaces/router"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// App is the fully wired process: storage, index, services and the fiber app bound to them.
type App struct {
	Config    *config.Config
	DB        *gorm.DB
	Rdb       *redis.Client
	Index     geoindex.Index
	Publisher events.Publisher

	Listings  *listsvc.Service
	Ratings   *ratingsvc.Service
	Search    *searchsvc.Service
	Bookmarks *bmsvc.Service
	Visits    *visitsvc.Service
	Events    *lesvc.Service
	Health    *healthsvc.Collector

	Fiber *fiber.App
}

// SetupLogging configures the global zerolog logger from cfg.
func SetupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if cfg.Env != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

// New opens every backing resource named by cfg, migrates the schema and wires the services.
// The geo index starts empty; call Reindex before serving.
func New(cfg *config.Config) (*App, error) {
	db, err := database.Open(cfg.DatabaseURL, cfg.SQLitePath)
	if err != nil {
		return nil, err
	}
	if err := database.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis url: %w", err)
		}
		rdb = redis.NewClient(opts)
	}

	idx, err := NewIndex(cfg, rdb)
	if err != nil {
		return nil, err
	}

	var pub events.Publisher = events.Nop{}
	if cfg.AMQPURL != "" {
		pub = events.NewAMQP(cfg.AMQPURL, cfg.AMQPQueue)
	}

	return Wire(cfg, db, rdb, idx, pub), nil
}

// Reindex rebuilds the geo index from the listing store.
func (a *App) Reindex(ctx context.Context) (int, error) {
	n, err := a.Listings.Reindex(ctx)
	if err != nil {
		return 0, fmt.Errorf("reindex: %w", err)
	}
	log.Info().Int("listings", n).Str("backend", a.Config.GeoBackend).Msg("geo index rebuilt")
	return n, nil
}

// NewIndex picks the geo index backend. The redis backend needs a client.
func NewIndex(cfg *config.Config, rdb *redis.Client) (geoindex.Index, error) {
	switch cfg.GeoBackend {
	case config.GeoBackendRedis:
		if rdb == nil {
			return nil, errors.New("GEO_BACKEND=redis requires REDIS_URL")
		}
		return geoindex.NewRedis(rdb, geoindex.DefaultRedisKey), nil
	default:
		return geoindex.NewMemory(), nil
	}
}

// Wire binds services and routes over already opened resources.
func Wire(cfg *config.Config, db *gorm.DB, rdb *redis.Client, idx geoindex.Index, pub events.Publisher) *App {
	ls := &listsvc.Service{DB: db, Index: idx, Publisher: pub, Timeout: cfg.StoreTimeout, Retries: cfg.WriteRetries}
	a := &App{
		Config:    cfg,
		DB:        db,
		Rdb:       rdb,
		Index:     idx,
		Publisher: pub,
		Listings:  ls,
		Ratings:   &ratingsvc.Service{Listings: ls},
		Search:    &searchsvc.Service{DB: db, Index: idx, Timeout: cfg.StoreTimeout},
		Bookmarks: &bmsvc.Service{DB: db, Listings: ls, Timeout: cfg.StoreTimeout},
		Visits:    &visitsvc.Service{DB: db, Listings: ls, Publisher: pub, Timeout: cfg.StoreTimeout, Retries: cfg.WriteRetries},
		Events:    &lesvc.Service{DB: db, Timeout: cfg.StoreTimeout},
		Health: &healthsvc.Collector{
			Rdb:         rdb,
			Index:       idx,
			GeoBackend:  cfg.GeoBackend,
			AMQPEnabled: cfg.AMQPURL != "",
		},
	}
	if sqlDB, err := db.DB(); err == nil {
		a.Health.DB = sqlDB
	}
	a.Fiber = router.CreateApp(router.Deps{
		Config:    cfg,
		Rdb:       rdb,
		Listings:  a.Listings,
		Ratings:   a.Ratings,
		Search:    a.Search,
		Bookmarks: a.Bookmarks,
		Visits:    a.Visits,
		Events:    a.Events,
		Health:    a.Health,
	})
	return a
}

// Close releases the publisher, redis and database handles.
func (a *App) Close() {
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			log.Warn().Err(err).Msg("publisher close")
		}
	}
	if a.Rdb != nil {
		_ = a.Rdb.Close()
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
