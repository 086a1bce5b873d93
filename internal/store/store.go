// Package store is the accessor for the job board's record collections.
//
// Every method maps to exactly one backend call. Nothing is retried and no
// transaction spans two collections: callers that need two writes issue two
// calls and own the consequences of the second one failing.
package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"quicktasker/gig-service/internal/apperr"
)

//go:embed schema.sql
var schema string

// DB is the part of *pgxpool.Pool the accessors use.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store groups the per-collection accessors.
type Store struct {
	Listings *Listings
	Messages *Messages
	Ratings  *Ratings
	Profiles *Profiles
}

// New returns a Store backed by pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{
		Listings: &Listings{pool: pool},
		Messages: &Messages{pool: pool},
		Ratings:  &Ratings{pool: pool},
		Profiles: &Profiles{pool: pool},
	}
}

// Migrate creates the tables when they do not exist yet.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// notFound converts pgx.ErrNoRows into apperr.ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.ErrNotFound
	}
	return err
}
