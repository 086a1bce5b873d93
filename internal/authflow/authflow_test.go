package authflow

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/neilotoole/slogt"
	"golang.org/x/oauth2"

	"quicktasker/gig-service/internal/apperr"
	"quicktasker/gig-service/internal/config"
	"quicktasker/gig-service/internal/form"
	"quicktasker/gig-service/internal/model"
	"quicktasker/gig-service/internal/session"
)

func TestClient_SignIn(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/token" || r.URL.Query().Get("grant_type") != "password" {
			t.Errorf("unexpected request %s", r.URL)
		}
		if r.Header.Get("apikey") != "anon" {
			t.Errorf("apikey = %q", r.Header.Get("apikey"))
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "right" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error": "invalid_grant", "error_description": "Invalid login credentials"}`)
			return
		}
		_, _ = io.WriteString(w, `{"access_token": "tok", "expires_in": 3600, "user": {"id": "u1", "email": "a@b.c"}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "anon")
	s, err := c.SignIn(context.Background(), "a@b.c", "right")
	if err != nil {
		t.Fatal(err)
	}
	if s.AccessToken != "tok" || s.User.ID != "u1" || s.ExpiresIn != 3600 {
		t.Errorf("session = %+v", s)
	}

	_, err = c.SignIn(context.Background(), "a@b.c", "wrong")
	var ve *apperr.ValidationError
	if !errors.As(err, &ve) || ve.Msg != "Invalid login credentials" {
		t.Errorf("SignIn(wrong) = %v, want the provider message as a validation error", err)
	}
}

func TestClient_SignOut(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if r.URL.Path != "/logout" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if err := NewClient(srv.URL, "anon").SignOut(context.Background(), "tok"); err != nil {
		t.Fatal(err)
	}
	if auth != "Bearer tok" {
		t.Errorf("Authorization = %q", auth)
	}

	if err := NewClient("", "anon").SignOut(context.Background(), "tok"); err == nil {
		t.Error("unconfigured SignOut() expected error")
	}
}

type testProvider struct {
	signIn     func(email, password string) (Session, error)
	signedOut  []string
	signOutErr error
}

func (p *testProvider) SignIn(_ context.Context, email, password string) (Session, error) {
	return p.signIn(email, password)
}

func (p *testProvider) SignOut(_ context.Context, token string) error {
	if p.signOutErr != nil {
		return p.signOutErr
	}
	p.signedOut = append(p.signedOut, token)
	return nil
}

type authFunc func(token string) (model.Identity, error)

func (f authFunc) CurrentUser(_ context.Context, token string) (model.Identity, error) { return f(token) }

var knownTokens = authFunc(func(token string) (model.Identity, error) {
	if token == "tok" {
		return model.Identity{ID: "u1"}, nil
	}
	return model.Identity{}, apperr.ErrUnauthenticated
})

type recorder struct {
	mu     sync.Mutex
	events []session.Event
}

func record(b *session.Broker) *recorder {
	r := &recorder{}
	b.OnSessionChange(func(ev session.Event) {
		r.mu.Lock()
		r.events = append(r.events, ev)
		r.mu.Unlock()
	})
	return r
}

var opts = Options{AppHome: "/listings", PublicRoute: "/login"}

func newHandler(t *testing.T, p Provider, oc *oauth2.Config) (*http.ServeMux, *Handler, *recorder) {
	t.Helper()
	b := session.NewBroker()
	rec := record(b)
	h := NewHandler(p, knownTokens, b, oc, form.New(), opts, slogt.New(t))
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return mux, h, rec
}

func cookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestLogin(t *testing.T) {
	p := &testProvider{signIn: func(email, password string) (Session, error) {
		if password != "right" {
			return Session{}, apperr.Invalid("Invalid login credentials")
		}
		s := Session{AccessToken: "tok", ExpiresIn: 3600}
		s.User.ID = "u1"
		return s, nil
	}}
	mux, _, events := newHandler(t, p, nil)

	t.Run("Success", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email": "a@b.c", "password": "right"}`)))
		resp := rec.Result()
		if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/listings" {
			t.Fatalf("Got %d to %q, want 303 to /listings", resp.StatusCode, resp.Header.Get("Location"))
		}
		c := cookie(resp, session.CookieName)
		if c == nil || c.Value != "tok" || !c.HttpOnly || c.MaxAge != 3600 {
			t.Errorf("cookie = %+v", c)
		}
		if diff := cmp.Diff([]session.Event{{Type: session.SignedIn, UserID: "u1"}}, events.events); diff != "" {
			t.Errorf("events mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email": "a@b.c", "password": "wrong"}`)))
		if rec.Code != http.StatusUnprocessableEntity || !strings.Contains(rec.Body.String(), "Invalid login credentials") {
			t.Errorf("Got %d %s", rec.Code, rec.Body)
		}
		if cookie(rec.Result(), session.CookieName) != nil {
			t.Error("rejected sign-in must not set a cookie")
		}
	})

	t.Run("Missing fields", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email": "not-an-email"}`)))
		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("Got HTTP status %d, want 422", rec.Code)
		}
	})
}

func TestLogout(t *testing.T) {
	p := &testProvider{}
	mux, _, events := newHandler(t, p, nil)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "tok"})
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	resp := rec.Result()
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/login" {
		t.Fatalf("Got %d to %q, want 303 to /login", resp.StatusCode, resp.Header.Get("Location"))
	}
	if c := cookie(resp, session.CookieName); c == nil || c.MaxAge >= 0 {
		t.Errorf("cookie should be cleared, got %+v", c)
	}
	if diff := cmp.Diff([]string{"tok"}, p.signedOut); diff != "" {
		t.Errorf("signed out mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]session.Event{{Type: session.SignedOut, UserID: "u1"}}, events.events); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestLogout_ProviderError(t *testing.T) {
	p := &testProvider{signOutErr: errors.New("auth provider returned 500: down")}
	mux, _, events := newHandler(t, p, nil)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Got HTTP status %d, want 500", rec.Code)
	}
	if len(events.events) != 0 {
		t.Error("failed sign-out must not publish")
	}
}

func tokenServer(t *testing.T, delay time.Duration) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
		_ = r.ParseForm()
		if r.Form.Get("code") != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error": "invalid_grant"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token": "tok", "token_type": "bearer", "expires_in": 3600}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func oauthConfig(tokenURL string) *oauth2.Config {
	return OAuthConfig(config.OAuthConfig{
		ClientID:    "client",
		AuthURL:     "https://provider.example/authorize",
		TokenURL:    tokenURL,
		RedirectURL: "http://localhost:8080/auth/callback",
	})
}

func TestOAuthConfig_Disabled(t *testing.T) {
	if OAuthConfig(config.OAuthConfig{}) != nil {
		t.Error("OAuthConfig() without client id should be nil")
	}
	mux, _, _ := newHandler(t, &testProvider{}, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/oauth/start", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("Got HTTP status %d, want 404", rec.Code)
	}
}

func TestOAuthStart(t *testing.T) {
	mux, _, _ := newHandler(t, &testProvider{}, oauthConfig("http://unused"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/oauth/start", nil))

	resp := rec.Result()
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("Got HTTP status %d, want 302", resp.StatusCode)
	}
	state := cookie(resp, stateCookie)
	if state == nil || state.Value == "" {
		t.Fatal("state cookie not set")
	}
	loc, err := url.Parse(resp.Header.Get("Location"))
	if err != nil {
		t.Fatal(err)
	}
	if loc.Host != "provider.example" || loc.Query().Get("state") != state.Value || loc.Query().Get("client_id") != "client" {
		t.Errorf("redirect = %s", loc)
	}
}

func callback(t *testing.T, mux *http.ServeMux, query, state string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/auth/callback?"+query, nil)
	if state != "" {
		req.AddCookie(&http.Cookie{Name: stateCookie, Value: state})
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec.Result()
}

func TestOAuthCallback(t *testing.T) {
	srv := tokenServer(t, 0)
	mux, _, events := newHandler(t, &testProvider{}, oauthConfig(srv.URL))

	resp := callback(t, mux, "code=good-code&state=s1", "s1")
	if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != "/listings" {
		t.Fatalf("Got %d to %q, want 302 to /listings", resp.StatusCode, resp.Header.Get("Location"))
	}
	if c := cookie(resp, session.CookieName); c == nil || c.Value != "tok" {
		t.Errorf("cookie = %+v", c)
	}
	if diff := cmp.Diff([]session.Event{{Type: session.SignedIn, UserID: "u1"}}, events.events); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestOAuthCallback_Refused(t *testing.T) {
	srv := tokenServer(t, 0)
	tests := []struct {
		name       string
		query      string
		state      string
		wantStatus int
	}{
		{"State mismatch", "code=good-code&state=s1", "other", http.StatusUnprocessableEntity},
		{"No state cookie", "code=good-code&state=s1", "", http.StatusUnprocessableEntity},
		{"Provider error", "error=access_denied&error_description=User+cancelled", "s1", http.StatusUnprocessableEntity},
		{"Bad code", "code=bad&state=s1", "s1", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux, _, events := newHandler(t, &testProvider{}, oauthConfig(srv.URL))
			resp := callback(t, mux, tt.query, tt.state)
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("Got HTTP status %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if len(events.events) != 0 || cookie(resp, session.CookieName) != nil {
				t.Error("refused callback must not sign in")
			}
		})
	}
}

func TestOAuthCallback_Timeout(t *testing.T) {
	srv := tokenServer(t, time.Second)
	mux, h, events := newHandler(t, &testProvider{}, oauthConfig(srv.URL))
	h.exchangeTimeout = 20 * time.Millisecond

	resp := callback(t, mux, "code=good-code&state=s1", "s1")
	if resp.StatusCode != http.StatusGatewayTimeout {
		t.Errorf("Got HTTP status %d, want 504", resp.StatusCode)
	}
	if len(events.events) != 0 {
		t.Error("abandoned flow must not sign in")
	}
}
