package profile

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"quicktasker/gig-service/internal/apperr"
	"quicktasker/gig-service/internal/respond"
	"quicktasker/gig-service/internal/session"
)

// Handler serves the profile routes:
//
//	GET  /profiles/me         → own profile
//	GET  /profiles/{id}       → someone else's profile
//	POST /profiles/me/avatar  → multipart "avatar" upload
type Handler struct {
	svc    *Service
	logger *slog.Logger
}

// NewHandler returns a configured Handler.
func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// RegisterRoutes mounts the profile routes on mux behind gate.
func (h *Handler) RegisterRoutes(mux *http.ServeMux, gate func(http.Handler) http.Handler) {
	mux.Handle("GET /profiles/me", gate(http.HandlerFunc(h.summary)))
	mux.Handle("GET /profiles/{id}", gate(http.HandlerFunc(h.summary)))
	mux.Handle("POST /profiles/me/avatar", gate(http.HandlerFunc(h.avatar)))
}

type summaryResponse struct {
	Summary
	RatingLabel string `json:"rating_label"`
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	view, err := ResolveView(r)
	if err != nil {
		respond.Err(w, h.logger, err, "")
		return
	}
	sum, err := h.svc.Summary(r.Context(), view)
	if err != nil {
		respond.Err(w, h.logger, err, "Could not load profile")
		return
	}
	respond.JSON(w, http.StatusOK, summaryResponse{Summary: sum, RatingLabel: sum.RatingLabel()})
}

func (h *Handler) avatar(w http.ResponseWriter, r *http.Request) {
	user, ok := session.FromContext(r.Context())
	if !ok {
		respond.Err(w, h.logger, apperr.ErrUnauthenticated, "")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxAvatarBytes+1<<20)
	file, _, err := r.FormFile("avatar")
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			respond.Err(w, h.logger, apperr.Invalid("Image is too large"), "")
			return
		}
		respond.Err(w, h.logger, apperr.Invalid("Please choose an image"), "")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxAvatarBytes+1))
	if err != nil {
		respond.Err(w, h.logger, err, "Could not read image")
		return
	}

	url, err := h.svc.UploadAvatar(r.Context(), user, data)
	if err != nil {
		respond.Err(w, h.logger, err, "Could not upload avatar")
		return
	}
	respond.JSON(w, http.StatusOK, map[string]string{"avatar_url": url})
}
