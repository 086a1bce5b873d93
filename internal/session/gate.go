package session

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"quicktasker/gig-service/internal/model"
)

// Recorder keeps the profile row of a user in step with their identity.
type Recorder interface {
	SaveIdentity(ctx context.Context, id model.Identity) error
}

// Gate redirects anonymous requests to a public route.
type Gate struct {
	auth        Authenticator
	publicRoute string
	logger      *slog.Logger

	recorder Recorder
	mu       sync.Mutex
	recorded map[string]model.Identity
}

// NewGate returns a Gate that sends anonymous users to publicRoute.
func NewGate(auth Authenticator, publicRoute string, logger *slog.Logger) *Gate {
	return &Gate{auth: auth, publicRoute: publicRoute, logger: logger}
}

// WithRecorder makes g save the identity of every admitted user. The row is
// written the first time a user is seen by this process and again whenever
// their identity changes.
func (g *Gate) WithRecorder(r Recorder) *Gate {
	g.recorder = r
	g.recorded = make(map[string]model.Identity)
	return g
}

// Require runs the session check on every request and calls next only when
// a user is present. The identity is available to next via FromContext.
func (g *Gate) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := g.auth.CurrentUser(r.Context(), TokenFromRequest(r))
		if err != nil || id.ID == "" {
			g.logger.Debug("Session check failed", "path", r.URL.Path, "error", err)
			http.Redirect(w, r, g.publicRoute, http.StatusFound)
			return
		}
		g.record(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// record saves id unless it was already saved unchanged. A failed save is
// logged and retried on the next request.
func (g *Gate) record(ctx context.Context, id model.Identity) {
	if g.recorder == nil {
		return
	}
	g.mu.Lock()
	last, ok := g.recorded[id.ID]
	g.mu.Unlock()
	if ok && last == id {
		return
	}

	if err := g.recorder.SaveIdentity(ctx, id); err != nil {
		g.logger.Warn("Save identity failed", "user_id", id.ID, "error", err.Error())
		return
	}
	g.mu.Lock()
	g.recorded[id.ID] = id
	g.mu.Unlock()
}
