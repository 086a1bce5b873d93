package store

import (
	"context"
	"fmt"

	"quicktasker/gig-service/internal/apperr"
	"quicktasker/gig-service/internal/model"
)

// Profiles accesses the profiles collection.
type Profiles struct {
	pool DB
}

// Get returns the profile with the given id or apperr.ErrNotFound.
func (s *Profiles) Get(ctx context.Context, id string) (model.Profile, error) {
	var (
		p       model.Profile
		pending *string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, phone, display_name, avatar_url, should_rate, pending_rater_id
		 FROM profiles WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.Email, &p.Phone, &p.DisplayName, &p.AvatarURL, &p.ShouldRate, &pending)
	if err != nil {
		return model.Profile{}, fmt.Errorf("get profile: %w", notFound(err))
	}
	if pending != nil {
		p.PendingRaterID = *pending
	}
	return p, nil
}

// SaveIdentity copies the session identity into the profile row, creating
// it on first sight. Email and display name follow the auth provider; phone
// and avatar are only filled in while the stored ones are empty.
func (s *Profiles) SaveIdentity(ctx context.Context, id model.Identity) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO profiles (id, email, phone, display_name, avatar_url) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET
		   email        = COALESCE(NULLIF(EXCLUDED.email, ''), profiles.email),
		   display_name = COALESCE(NULLIF(EXCLUDED.display_name, ''), profiles.display_name),
		   phone        = COALESCE(NULLIF(profiles.phone, ''), EXCLUDED.phone),
		   avatar_url   = COALESCE(NULLIF(profiles.avatar_url, ''), EXCLUDED.avatar_url)`,
		id.ID, id.Email, id.Phone, id.DisplayName, id.AvatarURL,
	)
	if err != nil {
		return fmt.Errorf("save identity: %w", err)
	}
	return nil
}

// SetAvatar writes the avatar URL of the profile, creating the row if the
// user has never had one.
func (s *Profiles) SetAvatar(ctx context.Context, id, url string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO profiles (id, avatar_url) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET avatar_url = EXCLUDED.avatar_url`,
		id, url,
	)
	if err != nil {
		return fmt.Errorf("set avatar: %w", err)
	}
	return nil
}

// SetPendingRating raises the should-rate flag on id with raterID as the
// only user allowed to rate it. A flag already held by another rater is
// left alone and reported as a conflict.
func (s *Profiles) SetPendingRating(ctx context.Context, id, raterID string) error {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO profiles (id, should_rate, pending_rater_id) VALUES ($1, true, $2)
		 ON CONFLICT (id) DO UPDATE SET should_rate = true, pending_rater_id = EXCLUDED.pending_rater_id
		 WHERE NOT profiles.should_rate OR profiles.pending_rater_id = EXCLUDED.pending_rater_id`,
		id, raterID,
	)
	if err != nil {
		return fmt.Errorf("set pending rating: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("This worker is already waiting for another rating")
	}
	return nil
}

// ClearPendingRating lowers the should-rate flag and drops the pending rater.
func (s *Profiles) ClearPendingRating(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE profiles SET should_rate = false, pending_rater_id = NULL WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("clear pending rating: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("clear pending rating: %w", apperr.ErrNotFound)
	}
	return nil
}
