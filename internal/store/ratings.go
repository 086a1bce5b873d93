package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"quicktasker/gig-service/internal/model"
)

// Ratings accesses the ratings collection.
type Ratings struct {
	pool DB
}

// Insert stores r and returns it with its id and timestamp.
func (s *Ratings) Insert(ctx context.Context, r model.Rating) (model.Rating, error) {
	r.ID = uuid.NewString()
	err := s.pool.QueryRow(ctx,
		`INSERT INTO ratings (id, user_id, rater_id, score, comment)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		r.ID, r.UserID, r.RaterID, r.Score, r.Comment,
	).Scan(&r.CreatedAt)
	if err != nil {
		return model.Rating{}, fmt.Errorf("insert rating: %w", err)
	}
	return r, nil
}

// ListForUser returns every rating received by userID, newest first.
func (s *Ratings) ListForUser(ctx context.Context, userID string) ([]model.Rating, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, rater_id, score, comment, created_at
		 FROM ratings
		 WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listRatings query: %w", err)
	}
	defer rows.Close()

	out := make([]model.Rating, 0)
	for rows.Next() {
		var r model.Rating
		if err := rows.Scan(&r.ID, &r.UserID, &r.RaterID, &r.Score, &r.Comment, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("listRatings scan: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listRatings rows: %w", err)
	}
	return out, nil
}
