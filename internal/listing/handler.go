package listing

import (
	"log/slog"
	"net/http"
	"strconv"

	"quicktasker/gig-service/internal/apperr"
	"quicktasker/gig-service/internal/form"
	"quicktasker/gig-service/internal/respond"
	"quicktasker/gig-service/internal/session"
)

// Handler serves the listing routes:
//
//	GET  /listings                        → filtered, sorted listings (public)
//	GET  /listings/{id}                   → one listing (public)
//	POST /listings                        → post a job
//	POST /listings/new/steps/{step}       → continue one step of the posting wizard; the last one posts
//	POST /listings/{id}/apply             → apply as the session user
//	POST /listings/{id}/complete          → mark completed, flag the worker for rating
//	POST /listings/{id}/rating-link       → absolute rating URL for a completed job
type Handler struct {
	svc    *Service
	logger *slog.Logger
}

// NewHandler returns a configured Handler.
func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// RegisterRoutes mounts the listing routes on mux. gate wraps every route
// that needs a signed-in user.
func (h *Handler) RegisterRoutes(mux *http.ServeMux, gate func(http.Handler) http.Handler) {
	mux.HandleFunc("GET /listings", h.list)
	mux.HandleFunc("GET /listings/{id}", h.get)
	mux.Handle("POST /listings", gate(http.HandlerFunc(h.create)))
	mux.Handle("POST /listings/new/steps/{step}", gate(http.HandlerFunc(h.step)))
	mux.Handle("POST /listings/{id}/apply", gate(http.HandlerFunc(h.apply)))
	mux.Handle("POST /listings/{id}/complete", gate(http.HandlerFunc(h.complete)))
	mux.Handle("POST /listings/{id}/rating-link", gate(http.HandlerFunc(h.ratingLink)))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	f, err := ParseFilter(r.URL.Query())
	if err != nil {
		respond.Err(w, h.logger, err, "Could not load jobs")
		return
	}
	listings, err := h.svc.List(r.Context(), f)
	if err != nil {
		respond.Err(w, h.logger, err, "Could not load jobs")
		return
	}
	respond.JSON(w, http.StatusOK, listings)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	l, err := h.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		respond.Err(w, h.logger, err, "Could not load job")
		return
	}
	respond.JSON(w, http.StatusOK, l)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	poster, ok := session.FromContext(r.Context())
	if !ok {
		respond.Err(w, h.logger, apperr.ErrUnauthenticated, "")
		return
	}

	values, err := form.DecodeValues(r.Body)
	if err != nil {
		respond.Err(w, h.logger, apperr.Invalid("Could not decode request body"), "")
		return
	}

	l, err := h.svc.Create(r.Context(), poster, values)
	if err != nil {
		respond.Err(w, h.logger, err, "Could not post job")
		return
	}

	w.Header().Set("Location", "/listings/"+l.ID)
	respond.JSON(w, http.StatusCreated, l)
}

func (h *Handler) step(w http.ResponseWriter, r *http.Request) {
	poster, ok := session.FromContext(r.Context())
	if !ok {
		respond.Err(w, h.logger, apperr.ErrUnauthenticated, "")
		return
	}
	n, err := strconv.Atoi(r.PathValue("step"))
	if err != nil {
		respond.Err(w, h.logger, apperr.Invalid("step must be a number"), "")
		return
	}
	values, err := form.DecodeValues(r.Body)
	if err != nil {
		respond.Err(w, h.logger, apperr.Invalid("Could not decode request body"), "")
		return
	}

	res, err := h.svc.Continue(r.Context(), poster, n, values)
	if err != nil {
		respond.Err(w, h.logger, err, "Could not post job")
		return
	}
	if res.Created != nil {
		w.Header().Set("Location", "/listings/"+res.Created.ID)
		respond.JSON(w, http.StatusCreated, res.Created)
		return
	}

	body := map[string]any{"step": res.Number, "name": res.Step.Name, "last": res.Last}
	if !res.Last {
		body["next"] = res.Number + 1
	}
	respond.JSON(w, http.StatusOK, body)
}

func (h *Handler) apply(w http.ResponseWriter, r *http.Request) {
	applicant, ok := session.FromContext(r.Context())
	if !ok {
		respond.Err(w, h.logger, apperr.ErrUnauthenticated, "")
		return
	}
	l, err := h.svc.Apply(r.Context(), applicant, r.PathValue("id"))
	if err != nil {
		respond.Err(w, h.logger, err, "Could not apply")
		return
	}
	respond.JSON(w, http.StatusOK, l)
}

func (h *Handler) complete(w http.ResponseWriter, r *http.Request) {
	poster, ok := session.FromContext(r.Context())
	if !ok {
		respond.Err(w, h.logger, apperr.ErrUnauthenticated, "")
		return
	}

	var body struct {
		WorkerID string `json:"worker_id"`
	}
	if r.ContentLength != 0 {
		if err := respond.Decode(r, &body); err != nil {
			respond.Err(w, h.logger, err, "")
			return
		}
	}

	l, err := h.svc.Complete(r.Context(), poster, r.PathValue("id"), body.WorkerID)
	if err != nil {
		respond.Err(w, h.logger, err, "Could not complete job")
		return
	}
	respond.JSON(w, http.StatusOK, l)
}

func (h *Handler) ratingLink(w http.ResponseWriter, r *http.Request) {
	requester, ok := session.FromContext(r.Context())
	if !ok {
		respond.Err(w, h.logger, apperr.ErrUnauthenticated, "")
		return
	}
	url, err := h.svc.RatingLink(r.Context(), requester, r.PathValue("id"))
	if err != nil {
		respond.Err(w, h.logger, err, "Could not generate rating link")
		return
	}
	respond.JSON(w, http.StatusOK, map[string]string{"url": url})
}
