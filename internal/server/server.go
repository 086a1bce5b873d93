// Package server assembles the HTTP surface of the gig service.
package server

import (
	"bufio"
	"log/slog"
	"net"
	"net/http"
	"time"

	"quicktasker/gig-service/internal/respond"
)

// Version is reported by /health.
const Version = "1.0.0"

// Routes is a domain handler that mounts gated routes.
type Routes interface {
	RegisterRoutes(mux *http.ServeMux, gate func(http.Handler) http.Handler)
}

// New returns the root handler: /health, every domain's routes and request
// logging around all of it.
func New(logger *slog.Logger, gate func(http.Handler) http.Handler, public func(*http.ServeMux), routes ...Routes) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", health)
	if public != nil {
		public(mux)
	}
	for _, r := range routes {
		r.RegisterRoutes(mux, gate)
	}
	return logRequests(logger, mux)
}

func health(w http.ResponseWriter, _ *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "gig-service",
		"version": Version,
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// Hijack hands the connection to the websocket upgrade.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	r.status = http.StatusSwitchingProtocols
	return http.NewResponseController(r.ResponseWriter).Hijack()
}

func logRequests(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		logger.Info("Request received", "method", r.Method, "path", r.URL.Path)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Debug("Request served", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start).String())
	})
}
