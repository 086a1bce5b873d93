package mailer

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/http"

	"quicktasker/gig-service/internal/apperr"
	"quicktasker/gig-service/internal/form"
	"quicktasker/gig-service/internal/respond"
)

// Sender delivers one email.
type Sender interface {
	Send(ctx context.Context, to, subject, html string) (string, error)
}

// ApplicationNotice tells a poster that someone applied to their job.
type ApplicationNotice struct {
	ApplicantEmail string `json:"applicant_email" validate:"required,email"`
	PosterEmail    string `json:"poster_email" validate:"required,email"`
	Description    string `json:"description" validate:"required"`
	City           string `json:"city" validate:"required"`
}

// Subject is the email subject line for n.
func (n ApplicationNotice) Subject() string {
	return fmt.Sprintf("New application for your job in %s", n.City)
}

// HTML is the email body for n. User input is escaped.
func (n ApplicationNotice) HTML() string {
	return fmt.Sprintf(
		"<p><strong>%s</strong> applied to your job in <strong>%s</strong>.</p><blockquote>%s</blockquote><p>Reply to them at %s.</p>",
		html.EscapeString(n.ApplicantEmail),
		html.EscapeString(n.City),
		html.EscapeString(n.Description),
		html.EscapeString(n.ApplicantEmail),
	)
}

// Handler serves POST /notifications/application.
type Handler struct {
	sender Sender
	val    *form.Validator
	logger *slog.Logger
}

// NewHandler returns a configured Handler.
func NewHandler(sender Sender, val *form.Validator, logger *slog.Logger) *Handler {
	return &Handler{sender: sender, val: val, logger: logger}
}

// RegisterRoutes mounts the notification route on mux behind gate.
func (h *Handler) RegisterRoutes(mux *http.ServeMux, gate func(http.Handler) http.Handler) {
	mux.Handle("POST /notifications/application", gate(http.HandlerFunc(h.application)))
}

func (h *Handler) application(w http.ResponseWriter, r *http.Request) {
	var n ApplicationNotice
	if err := respond.Decode(r, &n); err != nil {
		respond.Err(w, h.logger, err, "")
		return
	}
	if errs := h.val.ValidateStruct(n); len(errs) > 0 {
		respond.Err(w, h.logger, &apperr.ValidationError{Msg: "Invalid notification", Fields: form.FieldErrors(errs)}, "")
		return
	}

	id, err := h.sender.Send(r.Context(), n.PosterEmail, n.Subject(), n.HTML())
	if err != nil {
		respond.Err(w, h.logger, err, "Could not send email")
		return
	}
	h.logger.Info("Application email sent", "id", id)
	respond.JSON(w, http.StatusOK, map[string]string{"id": id})
}
