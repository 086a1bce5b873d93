// gig-service
//
// Backend of the local-gig job board. Exposes a REST API used by the web
// client to:
//   - browse and filter job listings, post jobs, apply, complete jobs
//   - chat per job, with a websocket stream fed by Redis pub/sub
//   - rate the counterpart of a completed job
//   - show profiles with posted jobs, applications and average rating
//
// A cron job deletes listings whose end date has passed. gRPC serves the
// standard health service.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"quicktasker/gig-service/internal/authflow"
	"quicktasker/gig-service/internal/chat"
	"quicktasker/gig-service/internal/config"
	"quicktasker/gig-service/internal/db"
	"quicktasker/gig-service/internal/feed"
	"quicktasker/gig-service/internal/form"
	"quicktasker/gig-service/internal/geocode"
	"quicktasker/gig-service/internal/grpcserver"
	"quicktasker/gig-service/internal/listing"
	"quicktasker/gig-service/internal/mailer"
	"quicktasker/gig-service/internal/profile"
	"quicktasker/gig-service/internal/rating"
	"quicktasker/gig-service/internal/scheduler"
	"quicktasker/gig-service/internal/server"
	"quicktasker/gig-service/internal/session"
	"quicktasker/gig-service/internal/storage"
	"quicktasker/gig-service/internal/store"
)

const healthInterval = 15 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("service", "gig-service")

	// ── Config ──────────────────────────────────────────────────────────────
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("Could not read .env", "error", err.Error())
	}
	cfg, err := config.Load()
	if err != nil {
		fatal(logger, "Config error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── PostgreSQL ───────────────────────────────────────────────────────────
	logger.Info("Connecting to PostgreSQL")
	pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		fatal(logger, "PostgreSQL", err)
	}
	defer pool.Close()
	if err := store.Migrate(ctx, pool); err != nil {
		fatal(logger, "PostgreSQL", err)
	}
	logger.Info("PostgreSQL connected")

	// ── Redis ────────────────────────────────────────────────────────────────
	logger.Info("Connecting to Redis")
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		fatal(logger, "Redis", err)
	}
	defer rdb.Close()
	logger.Info("Redis connected")

	// ── Domain ───────────────────────────────────────────────────────────────
	st := store.New(pool)
	val := form.New()
	changes := feed.NewRedis(rdb, logger)
	messages := feed.NewNotifyingMessages(st.Messages, changes, logger)
	broker := session.NewBroker()
	auth := session.NewJWTAuthenticator(cfg.JWTSecret)
	gate := session.NewGate(auth, cfg.PublicRoute, logger).WithRecorder(st.Profiles)

	listings := listing.NewService(st.Listings, st.Profiles, val, cfg.PublicBaseURL, logger)
	chats := chat.NewService(changes, messages, st.Listings, logger)
	ratings := rating.NewService(st.Ratings, st.Profiles, val, logger)
	files := storage.New(cfg.StorageURL, cfg.StorageKey, cfg.StorageBucket)
	profiles := profile.NewService(st.Listings, st.Ratings, st.Profiles, files, logger)

	signIn := authflow.NewHandler(
		authflow.NewClient(cfg.AuthURL, cfg.AuthAPIKey),
		auth,
		broker,
		authflow.OAuthConfig(cfg.OAuth),
		val,
		authflow.Options{
			AppHome:       cfg.AppHome,
			PublicRoute:   cfg.PublicRoute,
			SecureCookies: strings.HasPrefix(cfg.PublicBaseURL, "https://"),
		},
		logger,
	)

	// ── HTTP server ──────────────────────────────────────────────────────────
	handler := server.New(logger, gate.Require, signIn.RegisterRoutes,
		listing.NewHandler(listings, logger),
		chat.NewHandler(chats, broker, cfg.AllowedOrigins, logger),
		rating.NewHandler(ratings, logger),
		profile.NewHandler(profiles, logger),
		geocode.NewHandler(geocode.New(cfg.GeocoderURL, cfg.GeocoderKey), logger),
		mailer.NewHandler(mailer.New(cfg.MailAPIURL, cfg.MailAPIKey, cfg.MailFrom), val, logger),
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		// Cancelling ctx ends long-lived chat streams, which Shutdown does not.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		logger.Info("HTTP listening", "version", server.Version, "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal(logger, "HTTP server error", err)
		}
	}()

	// ── gRPC health ──────────────────────────────────────────────────────────
	health := grpcserver.New(logger,
		grpcserver.Check{Name: "postgres", Ping: pool.Ping},
		grpcserver.Check{Name: "redis", Ping: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
	)
	lis, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.GRPCPort))
	if err != nil {
		fatal(logger, "gRPC listen", err)
	}
	go health.Watch(ctx, healthInterval)
	go func() {
		logger.Info("gRPC listening", "port", cfg.GRPCPort)
		if err := health.Serve(lis); err != nil {
			logger.Error("gRPC server error", "error", err.Error())
		}
	}()

	// ── Scheduler ────────────────────────────────────────────────────────────
	cleanup := scheduler.New(st.Listings, cfg.CleanupSpec, logger)
	if err := cleanup.Start(ctx); err != nil {
		fatal(logger, "Scheduler", err)
	}

	// ── Graceful shutdown ────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err.Error())
	}
	cancel()
	cleanup.Stop()
	health.Stop()
	logger.Info("Stopped")
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err.Error())
	os.Exit(1)
}
