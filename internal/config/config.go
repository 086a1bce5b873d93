// Package config loads and validates environment variables at startup.
// Fail-fast: if a required variable is missing, the process exits with an error.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/robfig/cron/v3"
)

// Config holds all runtime configuration for the gig service.
type Config struct {
	Port          string
	GRPCPort      string
	DatabaseURL   string
	RedisURL      string
	JWTSecret     string
	PublicBaseURL string // absolute base for generated links, e.g. rating links
	PublicRoute   string // where the session gate sends anonymous users
	AppHome       string // where a successful sign-in lands
	CleanupSpec   string // cron spec for expired-listing cleanup

	// AllowedOrigins are extra host patterns allowed to open chat streams.
	AllowedOrigins []string

	GeocoderURL string
	GeocoderKey string

	MailAPIURL string
	MailAPIKey string
	MailFrom   string

	StorageURL    string
	StorageKey    string
	StorageBucket string

	AuthURL    string
	AuthAPIKey string

	OAuth OAuthConfig
}

// OAuthConfig describes the external OAuth provider used by the redirect flow.
// The flow is disabled when ClientID is empty.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	RedirectURL  string
}

// Load reads environment variables and returns a validated Config.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	spec := getenv("CLEANUP_SPEC", "@daily")
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("CLEANUP_SPEC %q is not a valid cron spec: %w", spec, err)
	}

	return &Config{
		Port:          getenv("GIG_PORT", "8080"),
		GRPCPort:      getenv("GRPC_PORT", "9090"),
		DatabaseURL:   dbURL,
		RedisURL:      redisURL,
		JWTSecret:     secret,
		PublicBaseURL: strings.TrimRight(getenv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		PublicRoute:   getenv("PUBLIC_ROUTE", "/login"),
		AppHome:       getenv("APP_HOME", "/listings"),
		CleanupSpec:   spec,

		AllowedOrigins: splitList(os.Getenv("ALLOWED_ORIGINS")),

		GeocoderURL: getenv("GEOCODER_URL", "https://api.opencagedata.com/geocode/v1/json"),
		GeocoderKey: os.Getenv("GEOCODER_KEY"),

		MailAPIURL: getenv("MAIL_API_URL", "https://api.resend.com"),
		MailAPIKey: os.Getenv("MAIL_API_KEY"),
		MailFrom:   getenv("MAIL_FROM", "QuickTasker <noreply@quicktasker.app>"),

		StorageURL:    os.Getenv("STORAGE_URL"),
		StorageKey:    os.Getenv("STORAGE_KEY"),
		StorageBucket: getenv("STORAGE_BUCKET", "avatars"),

		AuthURL:    os.Getenv("AUTH_URL"),
		AuthAPIKey: os.Getenv("AUTH_API_KEY"),

		OAuth: OAuthConfig{
			ClientID:     os.Getenv("OAUTH_CLIENT_ID"),
			ClientSecret: os.Getenv("OAUTH_CLIENT_SECRET"),
			AuthURL:      os.Getenv("OAUTH_AUTH_URL"),
			TokenURL:     os.Getenv("OAUTH_TOKEN_URL"),
			RedirectURL:  os.Getenv("OAUTH_REDIRECT_URL"),
		},
	}, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
