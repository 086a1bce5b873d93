// Package profile aggregates what the job board knows about one user: their
// posted jobs, their applications and the ratings they received.
package profile

import (
	"net/http"

	"quicktasker/gig-service/internal/apperr"
	"quicktasker/gig-service/internal/model"
	"quicktasker/gig-service/internal/session"
)

// View selects whose profile is shown. It is either Own or Public.
type View interface {
	subject() string
}

// Own is the signed-in user's own profile.
type Own struct {
	Identity model.Identity
}

// Public is another user's profile, addressed by id.
type Public struct {
	UserID string
}

func (v Own) subject() string    { return v.Identity.ID }
func (v Public) subject() string { return v.UserID }

// ResolveView decides the view once per request: a route carrying an {id}
// is Public, anything else is the session user's Own view.
func ResolveView(r *http.Request) (View, error) {
	if id := r.PathValue("id"); id != "" {
		return Public{UserID: id}, nil
	}
	id, ok := session.FromContext(r.Context())
	if !ok {
		return nil, apperr.ErrUnauthenticated
	}
	return Own{Identity: id}, nil
}
