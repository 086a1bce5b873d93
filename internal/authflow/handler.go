package authflow

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"quicktasker/gig-service/internal/apperr"
	"quicktasker/gig-service/internal/config"
	"quicktasker/gig-service/internal/form"
	"quicktasker/gig-service/internal/respond"
	"quicktasker/gig-service/internal/session"
)

// ExchangeTimeout bounds the OAuth code exchange. A slower provider
// abandons the flow.
const ExchangeTimeout = 5 * time.Second

const stateCookie = "oauth_state"

// Provider signs users in and out with the hosted auth service.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (Session, error)
	SignOut(ctx context.Context, token string) error
}

// Publisher announces session changes.
type Publisher interface {
	Publish(ev session.Event)
}

// Options are the redirect targets and cookie policy.
type Options struct {
	AppHome       string
	PublicRoute   string
	SecureCookies bool
}

// OAuthConfig builds the oauth2 configuration, or nil when the redirect flow
// is not configured.
func OAuthConfig(c config.OAuthConfig) *oauth2.Config {
	if c.ClientID == "" {
		return nil
	}
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Endpoint:     oauth2.Endpoint{AuthURL: c.AuthURL, TokenURL: c.TokenURL},
		RedirectURL:  c.RedirectURL,
		Scopes:       []string{"openid", "email", "profile"},
	}
}

// Handler serves the sign-in routes:
//
//	POST /auth/login         → password sign-in
//	POST /auth/logout        → sign out
//	GET  /auth/oauth/start   → redirect to the OAuth provider
//	GET  /auth/callback      → OAuth callback
type Handler struct {
	provider Provider
	auth     session.Authenticator
	events   Publisher
	oauth    *oauth2.Config
	val      *form.Validator
	opts     Options
	logger   *slog.Logger

	exchangeTimeout time.Duration
}

// NewHandler returns a configured Handler. oauth may be nil.
func NewHandler(provider Provider, auth session.Authenticator, events Publisher, oauth *oauth2.Config, val *form.Validator, opts Options, logger *slog.Logger) *Handler {
	return &Handler{
		provider:        provider,
		auth:            auth,
		events:          events,
		oauth:           oauth,
		val:             val,
		opts:            opts,
		logger:          logger,
		exchangeTimeout: ExchangeTimeout,
	}
}

// RegisterRoutes mounts the sign-in routes on mux. They are public.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /auth/login", h.login)
	mux.HandleFunc("POST /auth/logout", h.logout)
	if h.oauth != nil {
		mux.HandleFunc("GET /auth/oauth/start", h.oauthStart)
		mux.HandleFunc("GET /auth/callback", h.oauthCallback)
	}
}

type credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := respond.Decode(r, &c); err != nil {
		respond.Err(w, h.logger, err, "")
		return
	}
	if errs := h.val.ValidateStruct(c); len(errs) > 0 {
		respond.Err(w, h.logger, &apperr.ValidationError{Msg: "Please enter your email and password", Fields: form.FieldErrors(errs)}, "")
		return
	}

	s, err := h.provider.SignIn(r.Context(), c.Email, c.Password)
	if err != nil {
		respond.Err(w, h.logger, err, "Could not sign in")
		return
	}

	h.setToken(w, s.AccessToken, s.ExpiresIn)
	h.events.Publish(session.Event{Type: session.SignedIn, UserID: s.User.ID})
	h.logger.Info("User signed in", "user_id", s.User.ID)
	http.Redirect(w, r, h.opts.AppHome, http.StatusSeeOther)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	token := session.TokenFromRequest(r)
	if token != "" {
		id, idErr := h.auth.CurrentUser(r.Context(), token)
		if err := h.provider.SignOut(r.Context(), token); err != nil {
			respond.Err(w, h.logger, err, "Could not sign out")
			return
		}
		if idErr == nil {
			h.events.Publish(session.Event{Type: session.SignedOut, UserID: id.ID})
			h.logger.Info("User signed out", "user_id", id.ID)
		}
	}
	h.setToken(w, "", -1)
	http.Redirect(w, r, h.opts.PublicRoute, http.StatusSeeOther)
}

func (h *Handler) oauthStart(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/auth",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		Secure:   h.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.oauth.AuthCodeURL(state), http.StatusFound)
}

func (h *Handler) oauthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		msg := q.Get("error_description")
		if msg == "" {
			msg = e
		}
		respond.Err(w, h.logger, apperr.Invalid(msg), "")
		return
	}

	c, err := r.Cookie(stateCookie)
	if err != nil || c.Value == "" || c.Value != q.Get("state") {
		respond.Err(w, h.logger, apperr.Invalid("Sign-in request expired, please try again"), "")
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Path: "/auth", MaxAge: -1})

	ctx, cancel := context.WithTimeout(r.Context(), h.exchangeTimeout)
	defer cancel()
	tok, err := h.oauth.Exchange(ctx, q.Get("code"))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			h.logger.Warn("OAuth exchange abandoned", "timeout", h.exchangeTimeout.String())
			respond.Error(w, http.StatusGatewayTimeout, "Sign-in timed out, please try again")
			return
		}
		respond.Err(w, h.logger, err, "Could not complete sign-in")
		return
	}

	id, err := h.auth.CurrentUser(r.Context(), tok.AccessToken)
	if err != nil {
		respond.Err(w, h.logger, err, "")
		return
	}

	maxAge := 0
	if !tok.Expiry.IsZero() {
		maxAge = int(time.Until(tok.Expiry).Seconds())
	}
	h.setToken(w, tok.AccessToken, maxAge)
	h.events.Publish(session.Event{Type: session.SignedIn, UserID: id.ID})
	h.logger.Info("User signed in", "user_id", id.ID, "via", "oauth")
	http.Redirect(w, r, h.opts.AppHome, http.StatusFound)
}

// setToken writes the access token cookie. maxAge < 0 deletes it.
func (h *Handler) setToken(w http.ResponseWriter, token string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
