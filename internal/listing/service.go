package listing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"quicktasker/gig-service/internal/apperr"
	"quicktasker/gig-service/internal/form"
	"quicktasker/gig-service/internal/model"
	"quicktasker/gig-service/internal/store"
)

// Store is the subset of store.Listings the service needs.
type Store interface {
	ListAll(ctx context.Context) ([]model.Listing, error)
	Get(ctx context.Context, id string) (model.Listing, error)
	Insert(ctx context.Context, l model.Listing) (model.Listing, error)
	Update(ctx context.Context, id string, patch store.ListingPatch) (model.Listing, error)
}

// PendingRatings reads worker profiles and flags them as owing a rating.
type PendingRatings interface {
	Get(ctx context.Context, id string) (model.Profile, error)
	SetPendingRating(ctx context.Context, userID, raterID string) error
}

var (
	// ErrNoWorkersNeeded is returned by Apply when the listing is fully staffed.
	ErrNoWorkersNeeded = apperr.Conflict("no workers needed")
	// ErrNotApplicant is returned by Complete for a worker who never applied.
	ErrNotApplicant = apperr.Conflict("worker did not apply to this job")
	// ErrRatingPending is returned by Complete when another rater already
	// holds the worker's should-rate flag.
	ErrRatingPending = apperr.Conflict("worker is already waiting for another rating")
)

// Service encapsulates the listing lifecycle.
// It has no dependency on net/http.
type Service struct {
	listings Store
	pending  PendingRatings
	val      *form.Validator
	baseURL  string
	logger   *slog.Logger
}

// NewService returns a configured Service. baseURL prefixes generated
// rating links.
func NewService(listings Store, pending PendingRatings, val *form.Validator, baseURL string, logger *slog.Logger) *Service {
	return &Service{listings: listings, pending: pending, val: val, baseURL: baseURL, logger: logger}
}

// List fetches every listing and returns the ones passing f, ordered by f.Order.
func (s *Service) List(ctx context.Context, f Filter) ([]model.Listing, error) {
	all, err := s.listings.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return Apply(all, f), nil
}

// Get returns one listing.
func (s *Service) Get(ctx context.Context, id string) (model.Listing, error) {
	return s.listings.Get(ctx, id)
}

// Create validates values as a job posting form and inserts the listing on
// behalf of poster. Invalid forms never reach the store.
func (s *Service) Create(ctx context.Context, poster model.Identity, values map[string]string) (model.Listing, error) {
	f := form.NewListingForm(s.val, values)

	var created model.Listing
	if err := f.Submit(ctx, s.insertFrom(f, poster, &created)); err != nil {
		return model.Listing{}, s.submitErr(f, err)
	}
	s.logger.Info("Listing created", "listing_id", created.ID, "poster_id", poster.ID)
	return created, nil
}

// StepResult is the outcome of one continue action of the posting wizard.
// Created is set once the final step has inserted the listing.
type StepResult struct {
	Number  int
	Step    form.Step
	Last    bool
	Created *model.Listing
}

// Continue runs the continue action of step n (1-based) of the posting
// wizard with every value collected so far. Earlier steps validate only
// their own fields and advance; the final step submits the whole form and
// inserts the listing on behalf of poster.
func (s *Service) Continue(ctx context.Context, poster model.Identity, n int, values map[string]string) (StepResult, error) {
	f := form.NewListingForm(s.val, values)
	w, err := form.ResumeWizard(f, form.ListingSteps, n)
	if err != nil {
		return StepResult{}, apperr.Invalid(err.Error())
	}
	res := StepResult{Number: n, Step: w.Step(), Last: w.Last()}

	var created model.Listing
	submitted, err := w.Next(ctx, s.insertFrom(f, poster, &created))
	if err != nil {
		return res, s.submitErr(f, err)
	}
	if submitted {
		s.logger.Info("Listing created", "listing_id", created.ID, "poster_id", poster.ID, "via", "wizard")
		res.Created = &created
	}
	return res, nil
}

func (s *Service) insertFrom(f *form.Form, poster model.Identity, out *model.Listing) func(context.Context) error {
	return func(ctx context.Context) error {
		l, err := form.ListingFromForm(f)
		if err != nil {
			return err
		}
		l.PosterID = poster.ID
		l.UserEmail = poster.Email
		*out, err = s.listings.Insert(ctx, l)
		return err
	}
}

// submitErr turns a failed submit into the field errors of f or a wrapped
// store error.
func (s *Service) submitErr(f *form.Form, err error) error {
	if errors.Is(err, form.ErrInvalid) {
		return f.Err()
	}
	return fmt.Errorf("create listing: %w", err)
}

// Apply adds applicant to the listing and decrements its worker count.
//
// The count is read and then written in two separate calls with no lock, so
// two concurrent applicants may both read N and both write N-1.
func (s *Service) Apply(ctx context.Context, applicant model.Identity, id string) (model.Listing, error) {
	l, err := s.listings.Get(ctx, id)
	if err != nil {
		return model.Listing{}, err
	}

	if l.Status != model.StatusOpen {
		return model.Listing{}, apperr.Conflict("this job is no longer open")
	}
	if l.PosterID == applicant.ID {
		return model.Listing{}, apperr.Conflict("you cannot apply to your own job")
	}
	if l.WorkersNeeded != nil && *l.WorkersNeeded <= 0 {
		return model.Listing{}, ErrNoWorkersNeeded
	}

	name := applicant.ApplicantName()
	if name == "" {
		return model.Listing{}, apperr.Invalid("set a display name before applying")
	}
	if l.HasApplicant(name) {
		return model.Listing{}, apperr.Conflict("you have already applied to this job")
	}

	patch := store.ListingPatch{Applicants: append(slices.Clone(l.Applicants), name)}
	if l.WorkersNeeded != nil {
		n := *l.WorkersNeeded - 1
		patch.WorkersNeeded = &n
	}

	updated, err := s.listings.Update(ctx, id, patch)
	if err != nil {
		return model.Listing{}, fmt.Errorf("apply: %w", err)
	}
	s.logger.Info("Applied to listing", "listing_id", id, "applicant", name)
	return updated, nil
}

// Complete marks the listing completed. When workerID is set, the worker
// must be an applicant without a rating pending from someone else, and
// their profile is flagged so that the poster can rate them. The two writes
// are independent: if the flag fails the listing stays completed and
// apperr.ErrPartialWrite is returned.
func (s *Service) Complete(ctx context.Context, poster model.Identity, id, workerID string) (model.Listing, error) {
	l, err := s.listings.Get(ctx, id)
	if err != nil {
		return model.Listing{}, err
	}
	if l.PosterID != poster.ID {
		return model.Listing{}, apperr.ErrForbidden
	}
	if !IsTransitionAllowed(l.Status, model.StatusCompleted) {
		return model.Listing{}, apperr.Conflict(fmt.Sprintf("transition %s → %s is not allowed", l.Status, model.StatusCompleted))
	}
	workerID = strings.TrimSpace(workerID)
	if workerID != "" {
		if err := s.checkWorker(ctx, l, poster.ID, workerID); err != nil {
			return model.Listing{}, err
		}
	}

	status := model.StatusCompleted
	updated, err := s.listings.Update(ctx, id, store.ListingPatch{Status: &status})
	if err != nil {
		return model.Listing{}, fmt.Errorf("complete: %w", err)
	}

	if workerID != "" {
		if err := s.pending.SetPendingRating(ctx, workerID, poster.ID); err != nil {
			s.logger.Error("Listing completed but rating flag not set",
				"listing_id", id, "worker_id", workerID, "error", err.Error())
			return updated, fmt.Errorf("flag rating for %s: %w: %w", workerID, apperr.ErrPartialWrite, err)
		}
	}
	return updated, nil
}

func (s *Service) checkWorker(ctx context.Context, l model.Listing, raterID, workerID string) error {
	w, err := s.pending.Get(ctx, workerID)
	if errors.Is(err, apperr.ErrNotFound) {
		return ErrNotApplicant
	}
	if err != nil {
		return fmt.Errorf("load worker: %w", err)
	}
	if !l.HasApplicant(model.Identity{DisplayName: w.DisplayName, Email: w.Email}.ApplicantName()) {
		return ErrNotApplicant
	}
	if w.ShouldRate && w.PendingRaterID != raterID {
		return ErrRatingPending
	}
	return nil
}

// RatingLink returns the absolute URL where the poster of a completed job
// rates the worker.
func (s *Service) RatingLink(ctx context.Context, requester model.Identity, id string) (string, error) {
	l, err := s.listings.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if l.PosterID != requester.ID {
		return "", apperr.ErrForbidden
	}
	if !IsCompleted(l.Status) {
		return "", apperr.Conflict("job is not completed yet")
	}
	return s.baseURL + "/rate/" + l.ID, nil
}
