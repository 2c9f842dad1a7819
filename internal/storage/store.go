// Package storage persists members, offer types and offers in postgres or
// sqlite and records an OfferAssigned event per committed offer.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"offernexus/internal/offers"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Store implements offers.Store on a SQL database.
type Store struct {
	db     *sqlx.DB
	tracer trace.Tracer
}

// Open connects to the database and verifies the connection.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	switch driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if driver == DriverSQLite {
		// sqlite allows one writer; in-memory databases live on one connection.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return New(db), nil
}

// New wraps an open database.
func New(db *sqlx.DB) *Store {
	return &Store{
		db:     db,
		tracer: otel.Tracer("offernexus/storage"),
	}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Repository opens a new unit of work.
func (s *Store) Repository() offers.Repository {
	return newSession(s)
}

var _ offers.Store = (*Store)(nil)

// failure classifies a database error for the offers service.
func failure(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return offers.Cancelled(ctx)
	}
	return fmt.Errorf("%w: %s: %w", offers.ErrPersistence, op, err)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			return strings.Contains(liteErr.Error(), "UNIQUE constraint failed")
		}
	}
	return false
}
