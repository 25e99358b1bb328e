package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environments accepted for SPAPI_ENV.
const (
	EnvSandbox    = "sandbox"
	EnvProduction = "production"
)

// Config contains runtime configuration values.
type Config struct {
	Environment string
	HTTPPort    string
	FrontendURL string

	// LWA OAuth client credentials (token exchange).
	AmazonClientID     string
	AmazonClientSecret string
	RedirectURI        string
	// Seller Central application id embedded in the consent URL. Falls back
	// to the client id when unset, matching how the app was registered.
	SPAppID       string
	TokenEndpoint string
	ConsentURL    string

	// SP-API request signing credentials, distinct from the OAuth pair.
	SPAPIEnv           string
	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	UserAgent          string

	TokenSafetyBuffer time.Duration
	StateTTL          time.Duration
	UpstreamTimeout   time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	// Optional; when set the refresh token is persisted in Postgres instead
	// of Redis.
	DatabaseURL string

	ServiceName       string
	RateLimitRPM      int
	TelemetryEndpoint string
	TelemetryInsecure bool

	CORSAllowedOrigins   []string
	CORSAllowedMethods   []string
	CORSAllowedHeaders   []string
	CORSAllowCredentials bool
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Environment:          getEnv("APP_ENV", "development"),
		HTTPPort:             getEnv("HTTP_PORT", "8080"),
		FrontendURL:          getEnv("FRONTEND_URL", "http://localhost:3000"),
		AmazonClientID:       strings.TrimSpace(os.Getenv("AMAZON_CLIENT_ID")),
		AmazonClientSecret:   strings.TrimSpace(os.Getenv("AMAZON_CLIENT_SECRET")),
		RedirectURI:          strings.TrimSpace(os.Getenv("AMAZON_REDIRECT_URI")),
		SPAppID:              strings.TrimSpace(os.Getenv("SP_APP_ID")),
		TokenEndpoint:        getEnv("LWA_TOKEN_ENDPOINT", "https://api.amazon.com/auth/o2/token"),
		ConsentURL:           getEnv("SP_CONSENT_URL", "https://sellercentral.amazon.com/apps/authorize/consent"),
		SPAPIEnv:             strings.ToLower(getEnv("SPAPI_ENV", EnvSandbox)),
		AWSRegion:            getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:       strings.TrimSpace(os.Getenv("AWS_ACCESS_KEY_ID")),
		AWSSecretAccessKey:   strings.TrimSpace(os.Getenv("AWS_SECRET_ACCESS_KEY")),
		UserAgent:            getEnv("SPAPI_USER_AGENT", "StackOverflowed-App/0.1 (Language=Go)"),
		TokenSafetyBuffer:    getDuration("TOKEN_SAFETY_BUFFER", time.Minute),
		StateTTL:             getDuration("AUTH_STATE_TTL", 10*time.Minute),
		UpstreamTimeout:      getDuration("UPSTREAM_TIMEOUT", 15*time.Second),
		RedisAddr:            getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword:        os.Getenv("REDIS_PASSWORD"),
		RedisDB:              getInt("REDIS_DB", 0),
		DatabaseURL:          strings.TrimSpace(os.Getenv("DATABASE_URL")),
		ServiceName:          getEnv("SERVICE_NAME", "spapi-gateway"),
		RateLimitRPM:         getInt("RATE_LIMIT_RPM", 600),
		TelemetryEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TelemetryInsecure:    getBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		CORSAllowedOrigins:   getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		CORSAllowedMethods:   getList("CORS_ALLOWED_METHODS", []string{"GET", "POST", "OPTIONS"}),
		CORSAllowedHeaders:   getList("CORS_ALLOWED_HEADERS", []string{"Authorization", "Content-Type"}),
		CORSAllowCredentials: getBool("CORS_ALLOW_CREDENTIALS", false),
	}

	if cfg.AmazonClientID == "" {
		return Config{}, fmt.Errorf("AMAZON_CLIENT_ID is required")
	}
	if cfg.AmazonClientSecret == "" {
		return Config{}, fmt.Errorf("AMAZON_CLIENT_SECRET is required")
	}
	if cfg.RedirectURI == "" {
		return Config{}, fmt.Errorf("AMAZON_REDIRECT_URI is required")
	}
	if cfg.AWSAccessKeyID == "" || cfg.AWSSecretAccessKey == "" {
		return Config{}, fmt.Errorf("AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY are required for request signing")
	}
	if cfg.SPAPIEnv != EnvSandbox && cfg.SPAPIEnv != EnvProduction {
		return Config{}, fmt.Errorf("SPAPI_ENV must be %q or %q", EnvSandbox, EnvProduction)
	}
	if cfg.SPAppID == "" {
		cfg.SPAppID = cfg.AmazonClientID
	}
	if cfg.TokenSafetyBuffer < 0 {
		cfg.TokenSafetyBuffer = time.Minute
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(v) {
		case "1", "true", "t", "yes", "y", "on":
			return true
		case "0", "false", "f", "no", "n", "off":
			return false
		}
	}
	return def
}

func getList(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok {
		parts := strings.Split(v, ",")
		var cleaned []string
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				cleaned = append(cleaned, trimmed)
			}
		}
		if len(cleaned) > 0 {
			return cleaned
		}
	}
	return def
}
