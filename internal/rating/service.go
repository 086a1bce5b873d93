// Package rating records a rater's evaluation of a counterpart after a job
// is completed.
//
// A user can be rated only while their profile carries the should-rate flag
// with the rater as pending rater. Submitting stores the rating and then
// clears the flag; the two writes are independent and nothing is rolled
// back if the second fails.
package rating

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"quicktasker/gig-service/internal/apperr"
	"quicktasker/gig-service/internal/form"
	"quicktasker/gig-service/internal/model"
)

// Ratings stores ratings.
type Ratings interface {
	Insert(ctx context.Context, r model.Rating) (model.Rating, error)
}

// Profiles reads and clears the should-rate flag.
type Profiles interface {
	Get(ctx context.Context, id string) (model.Profile, error)
	ClearPendingRating(ctx context.Context, id string) error
}

// Submission is a rating as entered by the rater.
type Submission struct {
	UserID  string `json:"user_id" validate:"required"`
	Score   int    `json:"score"`
	Comment string `json:"comment"`
}

// Service runs the rating workflow.
type Service struct {
	ratings  Ratings
	profiles Profiles
	val      *form.Validator
	logger   *slog.Logger
}

// NewService returns a configured Service.
func NewService(ratings Ratings, profiles Profiles, val *form.Validator, logger *slog.Logger) *Service {
	return &Service{ratings: ratings, profiles: profiles, val: val, logger: logger}
}

// Check validates s without touching the store.
func (s *Service) Check(sub Submission) error {
	fields := form.FieldErrors(s.val.ValidateStruct(sub))
	if sub.Score < model.MinScore || sub.Score > model.MaxScore {
		fields["score"] = "Please choose a star rating"
	}
	if n := utf8.RuneCountInString(strings.TrimSpace(sub.Comment)); n < model.MinCommentLength {
		fields["comment"] = fmt.Sprintf("Comment must be at least %d characters (%d so far)", model.MinCommentLength, n)
	}
	if len(fields) > 0 {
		return &apperr.ValidationError{Msg: "Rating is incomplete", Fields: fields}
	}
	return nil
}

// Submit stores the rating of sub.UserID by rater and clears the rated
// profile's should-rate flag. If the flag cannot be cleared the rating is
// kept and the error wraps apperr.ErrPartialWrite.
func (s *Service) Submit(ctx context.Context, rater model.Identity, sub Submission) (model.Rating, error) {
	if err := s.Check(sub); err != nil {
		return model.Rating{}, err
	}
	if sub.UserID == rater.ID {
		return model.Rating{}, apperr.Invalid("You cannot rate yourself")
	}

	p, err := s.profiles.Get(ctx, sub.UserID)
	if err != nil {
		return model.Rating{}, err
	}
	if !p.ShouldRate || p.PendingRaterID != rater.ID {
		return model.Rating{}, apperr.Conflict("There is no pending rating for this user")
	}

	r, err := s.ratings.Insert(ctx, model.Rating{
		UserID:  sub.UserID,
		RaterID: rater.ID,
		Score:   sub.Score,
		Comment: strings.TrimSpace(sub.Comment),
	})
	if err != nil {
		return model.Rating{}, fmt.Errorf("submit rating: %w", err)
	}

	if err := s.profiles.ClearPendingRating(ctx, sub.UserID); err != nil {
		s.logger.Error("Rating stored but should-rate flag not cleared",
			"rating_id", r.ID, "user_id", sub.UserID, "rater_id", rater.ID, "error", err.Error())
		return r, fmt.Errorf("clear rating flag: %w: %w", apperr.ErrPartialWrite, err)
	}

	s.logger.Info("Rating submitted", "rating_id", r.ID, "user_id", sub.UserID, "score", r.Score)
	return r, nil
}
