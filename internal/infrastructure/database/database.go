package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"habinest-backend/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open opens a GORM DB. A postgres DSN wins; otherwise the pure-Go sqlite file at sqlitePath is used.
// PreferSimpleProtocol disables prepared statement caching to avoid 42P05
// ("prepared statement already exists") when using connection poolers (e.g. PgBouncer).
func Open(dsn, sqlitePath string) (*gorm.DB, error) {
	cfg := &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	}
	if strings.TrimSpace(dsn) != "" {
		return gorm.Open(postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true,
		}), cfg)
	}
	return OpenSQLite(sqlitePath, cfg)
}

// OpenSQLite opens a sqlite file with WAL and a busy timeout so concurrent writers queue instead of failing.
func OpenSQLite(path string, cfg *gorm.Config) (*gorm.DB, error) {
	if cfg == nil {
		cfg = &gorm.Config{TranslateError: true, Logger: logger.Default.LogMode(logger.Silent)}
	}
	db, err := gorm.Open(sqlite.Open(path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(0)"), cfg)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// sqlite has a single writer; one connection keeps transactions serialized.
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// AutoMigrate creates or updates the tables for listings, bookmarks, visits and listing events.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Listing{},
		&domain.Bookmark{},
		&domain.Visit{},
		&domain.ListingEvent{},
	)
}

// WithTimeout bounds a store operation by d unless ctx already has an earlier deadline.
func WithTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// Classify maps driver and context errors onto the domain error kinds.
// Errors that already carry a domain kind pass through unchanged.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrTimeout):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return domain.ErrTimeout
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return domain.ErrNotFound
	case IsDuplicate(err):
		return domain.Validationf("duplicate key")
	}
	return err
}

// IsDuplicate reports a unique-constraint violation. TranslateError covers the known
// dialects; the string match catches drivers that report it as plain text.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "sqlstate 23505")
}

// ClassifyCtx is Classify with the operation's context consulted first: drivers
// report an expired deadline in their own words.
func ClassifyCtx(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	}
	return Classify(err)
}
