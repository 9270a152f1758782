package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates runtime configuration for the filedrop API.
type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Activity ActivityConfig
	Auth     AuthConfig
	MinIO    MinIOConfig
	Metrics  MetricsConfig
}

// ServerConfig parameterizes the HTTP server.
type ServerConfig struct {
	Host            string
	Port            int
	MaxPortAttempts int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
}

// Address returns the listen address in host:port form.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StoreConfig describes the dated file store and its retention policy.
type StoreConfig struct {
	// Backend selects the store implementation: "fs" or "minio".
	Backend       string
	Root          string
	RetentionDays int
	SweepInterval time.Duration
}

// ActivityConfig tunes the download activity journal.
type ActivityConfig struct {
	JournalPath   string
	FlushInterval time.Duration
	DedupWindow   time.Duration
}

// AuthConfig groups authentication-related settings.
type AuthConfig struct {
	// Password is the shared drop password, bcrypt-hashed at startup when
	// PasswordHash is not supplied directly.
	Password     string
	PasswordHash string
	JWTSecret    string
	TokenTTL     time.Duration
	BcryptCost   int
}

// MinIOConfig carries object store connection details for the blob backend.
type MinIOConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
	Region          string
}

// MetricsConfig groups observability settings.
type MetricsConfig struct {
	PrometheusPath string
}

// Load reads configuration values from environment variables, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host:            getString("FILEDROP_HOST", "0.0.0.0"),
			Port:            getInt("FILEDROP_PORT", 3000),
			MaxPortAttempts: getInt("FILEDROP_MAX_PORT_ATTEMPTS", 50),
			ReadTimeout:     getDuration("FILEDROP_READ_TIMEOUT", 15*time.Minute),
			WriteTimeout:    getDuration("FILEDROP_WRITE_TIMEOUT", 15*time.Minute),
			IdleTimeout:     getDuration("FILEDROP_IDLE_TIMEOUT", 60*time.Second),
		},
		Store: StoreConfig{
			Backend:       strings.ToLower(getString("FILEDROP_STORE_BACKEND", "fs")),
			Root:          getString("FILEDROP_FILE_DIR", "./files"),
			RetentionDays: getInt("FILEDROP_EXPIRE_DAYS", 7),
			SweepInterval: getDuration("FILEDROP_SWEEP_INTERVAL", 24*time.Hour),
		},
		Activity: ActivityConfig{
			JournalPath:   getString("FILEDROP_DOWNLOAD_JOURNAL", "./download.json"),
			FlushInterval: getDuration("FILEDROP_FLUSH_INTERVAL", 5*time.Minute),
			DedupWindow:   getDuration("FILEDROP_DEDUP_WINDOW", 3*time.Second),
		},
		Auth: loadAuthConfig(),
		MinIO: MinIOConfig{
			Endpoint:        getString("MINIO_ENDPOINT", "localhost:9000"),
			AccessKeyID:     getString("MINIO_ROOT_USER", "filedrop"),
			SecretAccessKey: getString("MINIO_ROOT_PASSWORD", "change-me-strong-password"),
			Bucket:          getString("MINIO_BUCKET", "filedrop"),
			UseSSL:          getBool("MINIO_USE_SSL", false),
			Region:          getString("MINIO_REGION", ""),
		},
		Metrics: MetricsConfig{
			PrometheusPath: getString("FILEDROP_METRICS_PATH", "/metrics"),
		},
	}

	if cfg.Store.Backend != "fs" && cfg.Store.Backend != "minio" {
		return Config{}, fmt.Errorf("invalid store backend %q, available: fs, minio", cfg.Store.Backend)
	}
	if cfg.Store.RetentionDays < 1 {
		return Config{}, fmt.Errorf("retention days must be at least 1, got %d", cfg.Store.RetentionDays)
	}
	if cfg.Server.MaxPortAttempts < 1 {
		return Config{}, fmt.Errorf("max port attempts must be at least 1, got %d", cfg.Server.MaxPortAttempts)
	}

	return cfg, nil
}

func getString(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.ToLower(strings.TrimSpace(val))
		switch val {
		case "1", "true", "t", "yes", "y":
			return true
		case "0", "false", "f", "no", "n":
			return false
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func loadAuthConfig() AuthConfig {
	cost := getInt("FILEDROP_AUTH_BCRYPT_COST", 12)
	if cost < 4 || cost > 31 {
		cost = 12
	}

	return AuthConfig{
		Password:     getString("FILEDROP_PASSWORD", ""),
		PasswordHash: getString("FILEDROP_PASSWORD_HASH", ""),
		JWTSecret:    getString("FILEDROP_JWT_SECRET", "change-me-to-a-32-byte-secret"),
		TokenTTL:     getDuration("FILEDROP_TOKEN_TTL", 72*time.Hour),
		BcryptCost:   cost,
	}
}
