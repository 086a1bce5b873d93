package rating

import (
	"log/slog"
	"net/http"

	"quicktasker/gig-service/internal/apperr"
	"quicktasker/gig-service/internal/respond"
	"quicktasker/gig-service/internal/session"
)

// Handler serves POST /ratings.
type Handler struct {
	svc    *Service
	logger *slog.Logger
}

// NewHandler returns a configured Handler.
func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// RegisterRoutes mounts the rating routes on mux behind gate.
func (h *Handler) RegisterRoutes(mux *http.ServeMux, gate func(http.Handler) http.Handler) {
	mux.Handle("POST /ratings", gate(http.HandlerFunc(h.submit)))
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	rater, ok := session.FromContext(r.Context())
	if !ok {
		respond.Err(w, h.logger, apperr.ErrUnauthenticated, "")
		return
	}

	var sub Submission
	if err := respond.Decode(r, &sub); err != nil {
		respond.Err(w, h.logger, err, "")
		return
	}

	rt, err := h.svc.Submit(r.Context(), rater, sub)
	if err != nil {
		respond.Err(w, h.logger, err, "Could not submit rating")
		return
	}
	respond.JSON(w, http.StatusCreated, rt)
}
