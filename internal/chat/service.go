package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"quicktasker/gig-service/internal/apperr"
	"quicktasker/gig-service/internal/feed"
	"quicktasker/gig-service/internal/model"
)

// Listings resolves the job a conversation belongs to.
type Listings interface {
	Get(ctx context.Context, id string) (model.Listing, error)
}

// Access is what one user may see of a job's conversation. The poster sees
// every message; an applicant sees the messages they sent or received.
type Access struct {
	JobID    string
	UserID   string
	PosterID string
}

// Poster reports whether the user posted the job.
func (a Access) Poster() bool { return a.UserID == a.PosterID }

// Sees reports whether m belongs to the user's side of the conversation.
func (a Access) Sees(m model.Message) bool {
	return a.Poster() || m.SenderID == a.UserID || m.ReceiverID == a.UserID
}

// Service sends messages and opens channels.
type Service struct {
	feed     feed.Feed
	messages feed.MessageStore
	listings Listings
	logger   *slog.Logger
}

// NewService returns a Service. messages should publish its inserts on f
// (see feed.NotifyingMessages) or channels will never see new messages.
func NewService(f feed.Feed, messages feed.MessageStore, listings Listings, logger *slog.Logger) *Service {
	return &Service{feed: f, messages: messages, listings: listings, logger: logger}
}

// Authorize returns the access of user to the conversation of jobID. Only
// the poster and the job's applicants take part; anyone else gets
// apperr.ErrForbidden.
func (s *Service) Authorize(ctx context.Context, user model.Identity, jobID string) (Access, error) {
	l, err := s.listings.Get(ctx, jobID)
	if err != nil {
		return Access{}, err
	}
	a := Access{JobID: l.ID, UserID: user.ID, PosterID: l.PosterID}
	if !a.Poster() && !l.HasApplicant(user.ApplicantName()) {
		return Access{}, apperr.ErrForbidden
	}
	return a, nil
}

// History returns the part of the conversation of jobID that user may see,
// in creation order.
func (s *Service) History(ctx context.Context, user model.Identity, jobID string) ([]model.Message, error) {
	a, err := s.Authorize(ctx, user, jobID)
	if err != nil {
		return nil, err
	}
	all, err := s.messages.ListByJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	visible := make([]model.Message, 0, len(all))
	for _, m := range all {
		if a.Sees(m) {
			visible = append(visible, m)
		}
	}
	return visible, nil
}

// Send stores a message from sender to receiverID. One side of every
// message is the poster. It does not touch any open Channel: the message
// reaches channels through the feed.
func (s *Service) Send(ctx context.Context, jobID string, sender model.Identity, receiverID, content string) (model.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return model.Message{}, apperr.Invalid("message is empty")
	}
	if sender.ID == "" || receiverID == "" {
		return model.Message{}, apperr.Invalid("conversation participants are not known yet")
	}
	if sender.ID == receiverID {
		return model.Message{}, apperr.Invalid("cannot send a message to yourself")
	}
	a, err := s.Authorize(ctx, sender, jobID)
	if err != nil {
		return model.Message{}, err
	}
	if !a.Poster() && receiverID != a.PosterID {
		return model.Message{}, apperr.ErrForbidden
	}

	msg, err := s.messages.Insert(ctx, model.Message{
		JobID:      jobID,
		SenderID:   sender.ID,
		ReceiverID: receiverID,
		Content:    content,
	})
	if err != nil {
		return model.Message{}, fmt.Errorf("send message: %w", err)
	}
	return msg, nil
}

// With opens a channel on jobID for user, runs fn and releases the channel
// when fn returns, whatever the outcome. fn should only pass on messages
// the access sees.
func (s *Service) With(ctx context.Context, user model.Identity, jobID string, fn func(ctx context.Context, c *Channel, a Access) error) (err error) {
	a, err := s.Authorize(ctx, user, jobID)
	if err != nil {
		return err
	}

	c := NewChannel(s.feed, s.messages, s.logger)
	if err := c.Open(ctx, jobID); err != nil {
		return err
	}
	defer func() {
		if cerr := c.Close(); cerr != nil {
			s.logger.Error("release chat channel failed", "job_id", jobID, "error", cerr.Error())
			err = errors.Join(err, cerr)
		}
	}()
	return fn(ctx, c, a)
}
