package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	HTTPAddr string
	LogLevel string

	DatabaseURL string

	// Gateway → service bearer token; also sent to the sync service.
	GameServiceToken string
	AllowedOrigins   []string

	AuthServiceURL   string
	AuthServiceToken string

	// Player mirror; sync is disabled when empty.
	SyncServiceURL   string
	SyncEndpointPath string
	SyncInterval     time.Duration

	// Cross-instance notifications; local-only when empty.
	NATSURL           string
	NATSSubjectPrefix string

	MintGraceWindow     time.Duration
	MintStaleThreshold  time.Duration
	MintSweepInterval   time.Duration
	MintPendingPageSize int

	// Cloudflare R2 (collectible metadata). Upload is skipped when the bucket is empty.
	R2AccountID       string
	R2AccessKeyID     string
	R2AccessKeySecret string
	R2Bucket          string
	CDNBaseURL        string

	OTELExporterOTLPEndpoint string
	OTELServiceName          string
}

// Load reads .env (if present) and then the process environment.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Env:      getEnv("ENV", "dev"),
		HTTPAddr: getEnv("HTTP_ADDR", ":5200"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		GameServiceToken: getEnv("GAME_SERVICE_TOKEN", ""),
		AllowedOrigins:   getEnvAsList("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),

		AuthServiceURL:   getEnv("AUTH_SERVICE_URL", ""),
		AuthServiceToken: getEnv("AUTH_SERVICE_TOKEN", ""),

		SyncServiceURL:   getEnv("SYNC_SERVICE_URL", ""),
		SyncEndpointPath: getEnv("SYNC_PLAYERS_PATH", "/api/v1/public/players"),
		SyncInterval:     getEnvAsDuration("SYNC_INTERVAL", time.Minute),

		NATSURL:           getEnv("NATS_URL", ""),
		NATSSubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "mint"),

		MintGraceWindow:     getEnvAsDuration("MINT_GRACE_WINDOW", 10*time.Second),
		MintStaleThreshold:  getEnvAsDuration("MINT_STALE_THRESHOLD", 5*time.Minute),
		MintSweepInterval:   getEnvAsDuration("MINT_SWEEP_INTERVAL", 30*time.Second),
		MintPendingPageSize: getEnvAsInt("MINT_PENDING_PAGE_SIZE", 50),

		R2AccountID:       getEnv("CLOUDFLARE_ACCOUNT_ID", ""),
		R2AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
		R2AccessKeySecret: getEnv("R2_ACCESS_KEY_SECRET", ""),
		R2Bucket:          getEnv("R2_BUCKET_NAME", ""),
		CDNBaseURL:        getEnv("CDN_BASE_URL", ""),

		OTELExporterOTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELServiceName:          getEnv("OTEL_SERVICE_NAME", "chess-mint-rewards"),
	}
}

func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return fmt.Errorf("HTTP_ADDR is required")
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.GameServiceToken == "" {
		return fmt.Errorf("GAME_SERVICE_TOKEN is required")
	}
	if c.AuthServiceURL == "" {
		return fmt.Errorf("AUTH_SERVICE_URL is required")
	}
	if c.MintGraceWindow <= 0 {
		return fmt.Errorf("MINT_GRACE_WINDOW must be > 0")
	}
	if c.MintStaleThreshold <= c.MintGraceWindow {
		return fmt.Errorf("MINT_STALE_THRESHOLD must be greater than MINT_GRACE_WINDOW")
	}
	if c.MintSweepInterval <= 0 {
		return fmt.Errorf("MINT_SWEEP_INTERVAL must be > 0")
	}
	if c.MintPendingPageSize < 1 || c.MintPendingPageSize > 200 {
		return fmt.Errorf("MINT_PENDING_PAGE_SIZE must be 1..200")
	}
	if c.R2Bucket != "" && (c.R2AccountID == "" || c.R2AccessKeyID == "" || c.R2AccessKeySecret == "") {
		return fmt.Errorf("R2_BUCKET_NAME requires CLOUDFLARE_ACCOUNT_ID, R2_ACCESS_KEY_ID and R2_ACCESS_KEY_SECRET")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvAsInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvAsDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// getEnvAsList splits a comma-separated value and trims each entry.
func getEnvAsList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
