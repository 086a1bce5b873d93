package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"quicktasker/gig-service/internal/apperr"
	"quicktasker/gig-service/internal/model"
)

const listingColumns = `id, poster_id, city, address, description, wage, wage_type,
	created_at, user_email, user_phone, workers_needed, lat, lng,
	date_from, date_to, hours_per_day, applicants, status`

// Listings accesses the jobs collection.
type Listings struct {
	pool DB
}

// ListingPatch is a partial update. Nil fields are left untouched.
type ListingPatch struct {
	WorkersNeeded *int
	Applicants    []string
	Status        *model.ListingStatus
}

func scanListing(row pgx.Row) (model.Listing, error) {
	var (
		l        model.Listing
		wageType string
		status   string
	)
	err := row.Scan(
		&l.ID, &l.PosterID, &l.City, &l.Address, &l.Description, &l.Wage, &wageType,
		&l.CreatedAt, &l.UserEmail, &l.UserPhone, &l.WorkersNeeded, &l.Lat, &l.Lng,
		&l.DateFrom, &l.DateTo, &l.HoursPerDay, &l.Applicants, &status,
	)
	l.WageType = model.WageType(wageType)
	l.Status = model.ListingStatus(status)
	return l, err
}

// ListAll returns every listing in arrival order. Filtering and sorting for
// presentation are the caller's job.
func (s *Listings) ListAll(ctx context.Context) ([]model.Listing, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+listingColumns+` FROM jobs ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("listAll query: %w", err)
	}
	defer rows.Close()

	out := make([]model.Listing, 0)
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("listAll scan: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listAll rows: %w", err)
	}
	return out, nil
}

// Get returns one listing or apperr.ErrNotFound.
func (s *Listings) Get(ctx context.Context, id string) (model.Listing, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.Listing{}, fmt.Errorf("get listing: %w", apperr.ErrNotFound)
	}
	l, err := scanListing(s.pool.QueryRow(ctx,
		`SELECT `+listingColumns+` FROM jobs WHERE id = $1`, id))
	if err != nil {
		return model.Listing{}, fmt.Errorf("get listing: %w", notFound(err))
	}
	return l, nil
}

// Insert stores l with a fresh id and returns the stored record.
func (s *Listings) Insert(ctx context.Context, l model.Listing) (model.Listing, error) {
	if l.Applicants == nil {
		l.Applicants = []string{}
	}
	if l.Status == "" {
		l.Status = model.StatusOpen
	}
	out, err := scanListing(s.pool.QueryRow(ctx,
		`INSERT INTO jobs (id, poster_id, city, address, description, wage, wage_type,
		                   user_email, user_phone, workers_needed, lat, lng,
		                   date_from, date_to, hours_per_day, applicants, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		 RETURNING `+listingColumns,
		uuid.NewString(), l.PosterID, l.City, l.Address, l.Description, l.Wage, string(l.WageType),
		l.UserEmail, l.UserPhone, l.WorkersNeeded, l.Lat, l.Lng,
		l.DateFrom, l.DateTo, l.HoursPerDay, l.Applicants, string(l.Status),
	))
	if err != nil {
		return model.Listing{}, fmt.Errorf("insert listing: %w", err)
	}
	return out, nil
}

// Update applies patch to the listing with the given id.
func (s *Listings) Update(ctx context.Context, id string, patch ListingPatch) (model.Listing, error) {
	set, args := patch.assignments()
	if set == "" {
		return s.Get(ctx, id)
	}

	args = append(args, id)
	l, err := scanListing(s.pool.QueryRow(ctx,
		fmt.Sprintf(`UPDATE jobs SET %s WHERE id = $%d RETURNING `+listingColumns, set, len(args)),
		args...,
	))
	if err != nil {
		return model.Listing{}, fmt.Errorf("update listing: %w", notFound(err))
	}
	return l, nil
}

// assignments renders the SET clause of p with numbered placeholders.
func (p ListingPatch) assignments() (string, []any) {
	var (
		sets []string
		args []any
	)
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if p.WorkersNeeded != nil {
		add("workers_needed", *p.WorkersNeeded)
	}
	if p.Applicants != nil {
		add("applicants", p.Applicants)
	}
	if p.Status != nil {
		add("status", string(*p.Status))
	}
	return strings.Join(sets, ", "), args
}

// DeleteExpired removes listings whose date-to lies before the given day and
// returns how many were deleted. Only the scheduled cleanup calls this.
func (s *Listings) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM jobs WHERE date_to IS NOT NULL AND date_to < $1::date`,
		before.Format(time.DateOnly),
	)
	if err != nil {
		return 0, fmt.Errorf("delete expired: %w", err)
	}
	return tag.RowsAffected(), nil
}
