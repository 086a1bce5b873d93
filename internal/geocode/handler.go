package geocode

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"quicktasker/gig-service/internal/respond"
)

// Looker resolves an address query.
type Looker interface {
	Lookup(ctx context.Context, query string) ([]Suggestion, error)
}

// Handler serves GET /geocode?q=. A failed lookup degrades to no
// suggestions plus an error message; it never fails the request.
type Handler struct {
	geo    Looker
	logger *slog.Logger
}

// NewHandler returns a configured Handler.
func NewHandler(geo Looker, logger *slog.Logger) *Handler {
	return &Handler{geo: geo, logger: logger}
}

// RegisterRoutes mounts the geocoding route on mux behind gate.
func (h *Handler) RegisterRoutes(mux *http.ServeMux, gate func(http.Handler) http.Handler) {
	mux.Handle("GET /geocode", gate(http.HandlerFunc(h.lookup)))
}

type lookupResponse struct {
	Suggestions []Suggestion `json:"suggestions"`
	Error       string       `json:"error,omitempty"`
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		respond.JSON(w, http.StatusOK, lookupResponse{Suggestions: []Suggestion{}})
		return
	}

	s, err := h.geo.Lookup(r.Context(), q)
	if err != nil {
		h.logger.Warn("Geocoding failed", "query", q, "error", err.Error())
		respond.JSON(w, http.StatusOK, lookupResponse{Suggestions: []Suggestion{}, Error: "Could not look up the address: " + err.Error()})
		return
	}
	respond.JSON(w, http.StatusOK, lookupResponse{Suggestions: s})
}
