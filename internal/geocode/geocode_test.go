package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/neilotoole/slogt"
)

const sample = `{
  "results": [
    {"formatted": "Bulevar oslobođenja 1, Novi Sad, Serbia",
     "components": {"city": "Novi Sad", "road": "Bulevar oslobođenja", "country": "Serbia"},
     "geometry": {"lat": 45.25, "lng": 19.84}},
    {"formatted": "Glavna 3, Futog, Serbia",
     "components": {"town": "Futog", "road": "Glavna", "country": "Serbia"},
     "geometry": {"lat": 45.24, "lng": 19.71}},
    {"formatted": "Selo, Serbia",
     "components": {"village": "Kać", "country": "Serbia"},
     "geometry": {"lat": 45.3, "lng": 19.9}}
  ],
  "status": {"code": 200, "message": "OK"}
}`

func TestLookup(t *testing.T) {
	var calls int
	var gotQuery, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		gotQuery = r.URL.Query().Get("q")
		gotKey = r.URL.Query().Get("key")
		_, _ = io.WriteString(w, sample)
	}))
	defer srv.Close()

	got, err := New(srv.URL, "k1").Lookup(context.Background(), "bulevar 1")
	if err != nil {
		t.Fatal(err)
	}
	want := []Suggestion{
		{Formatted: "Bulevar oslobođenja 1, Novi Sad, Serbia", City: "Novi Sad", Road: "Bulevar oslobođenja", Lat: 45.25, Lng: 19.84, Country: "Serbia"},
		{Formatted: "Glavna 3, Futog, Serbia", City: "Futog", Road: "Glavna", Lat: 45.24, Lng: 19.71, Country: "Serbia"},
		{Formatted: "Selo, Serbia", City: "Kać", Lat: 45.3, Lng: 19.9, Country: "Serbia"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("suggestions mismatch (-want +got):\n%s", diff)
	}
	if gotQuery != "bulevar 1" || gotKey != "k1" {
		t.Errorf("query = %q key = %q", gotQuery, gotKey)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestLookup_NoRetry(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = io.WriteString(w, `{"results": [], "status": {"code": 402, "message": "quota exceeded"}}`)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "k1").Lookup(context.Background(), "x")
	if err == nil || !strings.Contains(err.Error(), "quota exceeded") {
		t.Errorf("Lookup() = %v, want the provider message", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want exactly 1", calls)
	}
}

func TestLookup_NotConfigured(t *testing.T) {
	if _, err := New("http://unused", "").Lookup(context.Background(), "x"); err == nil {
		t.Error("Lookup() without key expected error")
	}
}

type lookerFunc func(ctx context.Context, q string) ([]Suggestion, error)

func (f lookerFunc) Lookup(ctx context.Context, q string) ([]Suggestion, error) { return f(ctx, q) }

func passGate(next http.Handler) http.Handler { return next }

func TestHandler(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		looker   lookerFunc
		wantBody string
	}{
		{
			name:  "Suggestions",
			query: "?q=novi",
			looker: func(context.Context, string) ([]Suggestion, error) {
				return []Suggestion{{Formatted: "Novi Sad", City: "Novi Sad", Lat: 1, Lng: 2}}, nil
			},
			wantBody: `{"suggestions": [{"formatted": "Novi Sad", "city": "Novi Sad", "road": "", "lat": 1, "lng": 2, "country": ""}]}`,
		},
		{
			name:  "Degrades on error",
			query: "?q=novi",
			looker: func(context.Context, string) ([]Suggestion, error) {
				return nil, errors.New("timeout")
			},
			wantBody: `{"suggestions": [], "error": "Could not look up the address: timeout"}`,
		},
		{
			name:  "Empty query",
			query: "?q=%20",
			looker: func(context.Context, string) ([]Suggestion, error) {
				t.Error("lookup must not be called for an empty query")
				return nil, nil
			},
			wantBody: `{"suggestions": []}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			NewHandler(tt.looker, slogt.New(t)).RegisterRoutes(mux, passGate)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/geocode"+tt.query, nil))
			if rec.Code != http.StatusOK {
				t.Fatalf("Got HTTP status %d, want 200", rec.Code)
			}
			var got, want any
			_ = json.Unmarshal(rec.Body.Bytes(), &got)
			_ = json.Unmarshal([]byte(tt.wantBody), &want)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("body mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
