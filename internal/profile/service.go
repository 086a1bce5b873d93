package profile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"quicktasker/gig-service/internal/apperr"
	"quicktasker/gig-service/internal/model"
)

// MaxAvatarBytes bounds an avatar upload.
const MaxAvatarBytes = 5 << 20

var avatarTypes = []string{"image/png", "image/jpeg", "image/webp", "image/gif"}

// Listings lists every job.
type Listings interface {
	ListAll(ctx context.Context) ([]model.Listing, error)
}

// Ratings lists the ratings a user received.
type Ratings interface {
	ListForUser(ctx context.Context, userID string) ([]model.Rating, error)
}

// Profiles reads profile rows and records avatars.
type Profiles interface {
	Get(ctx context.Context, id string) (model.Profile, error)
	SetAvatar(ctx context.Context, id, url string) error
}

// Storage keeps uploaded files.
type Storage interface {
	Upload(ctx context.Context, path, contentType string, body []byte) (string, error)
	PublicURL(path string) string
}

// Summary is everything a profile page shows.
type Summary struct {
	Own            bool            `json:"own"`
	Profile        model.Profile   `json:"profile"`
	MyJobs         []model.Listing `json:"my_jobs"`
	MyApplications []model.Listing `json:"my_applications"`
	Ratings        []model.Rating  `json:"ratings"`
	AverageRating  float64         `json:"average_rating"`
	RatingCount    int             `json:"rating_count"`
}

// RatingLabel formats the average for display; "N/A" when nobody rated yet.
func (s Summary) RatingLabel() string {
	if s.RatingCount == 0 {
		return "N/A"
	}
	return strconv.FormatFloat(s.AverageRating, 'f', 1, 64)
}

// Service builds profile summaries.
type Service struct {
	listings Listings
	ratings  Ratings
	profiles Profiles
	storage  Storage
	logger   *slog.Logger
}

// NewService returns a configured Service.
func NewService(listings Listings, ratings Ratings, profiles Profiles, storage Storage, logger *slog.Logger) *Service {
	return &Service{listings: listings, ratings: ratings, profiles: profiles, storage: storage, logger: logger}
}

// Summary recomputes the profile page for v from scratch.
func (s *Service) Summary(ctx context.Context, v View) (Summary, error) {
	var sum Summary

	switch v := v.(type) {
	case Own:
		p, err := s.profiles.Get(ctx, v.Identity.ID)
		if err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return Summary{}, err
		}
		sum.Own = true
		sum.Profile = merge(v.Identity, p)
	case Public:
		p, err := s.profiles.Get(ctx, v.UserID)
		if err != nil {
			return Summary{}, err
		}
		p.ShouldRate, p.PendingRaterID = false, ""
		sum.Profile = p
	default:
		return Summary{}, fmt.Errorf("unknown profile view %T", v)
	}

	all, err := s.listings.ListAll(ctx)
	if err != nil {
		return Summary{}, err
	}
	sum.MyJobs = make([]model.Listing, 0)
	sum.MyApplications = make([]model.Listing, 0)
	for _, l := range all {
		if sum.Profile.Email != "" && l.UserEmail == sum.Profile.Email {
			sum.MyJobs = append(sum.MyJobs, l)
		}
		if sum.Profile.DisplayName != "" && l.HasApplicant(sum.Profile.DisplayName) {
			sum.MyApplications = append(sum.MyApplications, l)
		}
	}

	sum.Ratings, err = s.ratings.ListForUser(ctx, v.subject())
	if err != nil {
		return Summary{}, err
	}
	sum.RatingCount = len(sum.Ratings)
	sum.AverageRating = average(sum.Ratings)
	return sum, nil
}

// UploadAvatar stores data as the avatar of user and returns its public URL.
func (s *Service) UploadAvatar(ctx context.Context, user model.Identity, data []byte) (string, error) {
	if len(data) == 0 {
		return "", apperr.Invalid("Please choose an image")
	}
	if len(data) > MaxAvatarBytes {
		return "", apperr.Invalid(fmt.Sprintf("Image must be at most %d MB", MaxAvatarBytes>>20))
	}
	mt := mimetype.Detect(data)
	if !mimetype.EqualsAny(mt.String(), avatarTypes...) {
		return "", apperr.Invalid("Image must be PNG, JPEG, WebP or GIF")
	}

	path := fmt.Sprintf("%s/%s%s", user.ID, uuid.NewString(), mt.Extension())
	stored, err := s.storage.Upload(ctx, path, mt.String(), bytes.Clone(data))
	if err != nil {
		return "", fmt.Errorf("upload avatar: %w", err)
	}
	url := s.storage.PublicURL(stored)

	if err := s.profiles.SetAvatar(ctx, user.ID, url); err != nil {
		s.logger.Error("Avatar uploaded but profile not updated", "user_id", user.ID, "path", stored, "error", err.Error())
		return url, fmt.Errorf("save avatar: %w: %w", apperr.ErrPartialWrite, err)
	}
	return url, nil
}

// merge fills the profile row from the session identity. Stored values win
// over the identity except for the email, which the auth provider owns.
func merge(id model.Identity, p model.Profile) model.Profile {
	p.ID = id.ID
	if id.Email != "" {
		p.Email = id.Email
	}
	if p.Phone == "" {
		p.Phone = id.Phone
	}
	if p.DisplayName == "" {
		p.DisplayName = id.DisplayName
	}
	if p.AvatarURL == "" {
		p.AvatarURL = id.AvatarURL
	}
	return p
}

func average(rs []model.Rating) float64 {
	if len(rs) == 0 {
		return 0
	}
	sum := 0
	for _, r := range rs {
		sum += r.Score
	}
	return float64(sum) / float64(len(rs))
}
