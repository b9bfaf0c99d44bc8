/*
Package configs loads the server configuration from environment variables.

Every setting has a development default; JWT_SECRET and DATABASE_URL become mandatory
in any other environment. The S3 settings are all-or-none: leaving them empty disables
attachments instead of failing the start.
*/
package configs

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// EnvDevelopment is the default environment.
	EnvDevelopment = "development"

	defaultPort          = 8888
	defaultJWTSecret     = "your_default_insecure_secret_key_change_me"
	defaultDatabaseURL   = "sqlite://run/db.sqlite"
	defaultHeartbeat     = 30 * time.Second
	defaultMessageRate   = 1.0
	defaultMessageBurst  = 5
	defaultStreamRate    = 0.5
	defaultStreamBurst   = 5
	minPort, maxPort     = 1024, 65535
	envS3BucketName      = "S3_BUCKET_NAME"
	envS3Endpoint        = "S3_ENDPOINT"
	envS3AccessKeyID     = "S3_ACCESS_KEY_ID"
	envS3SecretAccessKey = "S3_SECRET_ACCESS_KEY"
)

// AppConfig contains all configuration parameters required for the application to run.
type AppConfig struct {
	// General Server Settings
	Environment string
	Port        int

	// Security Settings
	AllowedOrigins []string
	JWTSecret      string

	// Database Settings
	DatabaseDSN string

	// Event stream Settings
	HeartbeatInterval time.Duration

	// Rate limits, per client IP
	MessageRate  float64
	MessageBurst int
	StreamRate   float64
	StreamBurst  int

	// S3 Storage Settings
	S3BucketName      string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
}

// IsDevelopment reports whether the server runs in the development environment.
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

// StorageEnabled reports whether S3 attachments are configured.
func (c *AppConfig) StorageEnabled() bool {
	return c.S3BucketName != ""
}

// LoadConfig reads, defaults and validates the configuration.
func LoadConfig() (*AppConfig, error) {
	cfg := &AppConfig{}
	var err error

	// --- General Server Settings ---
	cfg.Environment = os.Getenv("ENVIRONMENT")
	if cfg.Environment == "" {
		cfg.Environment = EnvDevelopment
	}

	if cfg.Port, err = intEnv("PORT", defaultPort); err != nil {
		return nil, err
	}
	if cfg.Port < minPort || cfg.Port > maxPort {
		return nil, fmt.Errorf("port number %d is outside the recommended range (%d-%d) to avoid privileged ports", cfg.Port, minPort, maxPort)
	}

	// --- Security Settings ---
	cfg.AllowedOrigins = []string{}
	for _, origin := range strings.Split(os.Getenv("ALLOWED_ORIGINS"), ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
		}
	}

	if cfg.JWTSecret, err = requiredOutsideDevelopment(cfg, "JWT_SECRET", defaultJWTSecret); err != nil {
		return nil, err
	}

	// --- Database Settings ---
	if cfg.DatabaseDSN, err = requiredOutsideDevelopment(cfg, "DATABASE_URL", defaultDatabaseURL); err != nil {
		return nil, err
	}

	// --- Event stream Settings ---
	cfg.HeartbeatInterval = defaultHeartbeat
	if raw := os.Getenv("HEARTBEAT_INTERVAL"); raw != "" {
		cfg.HeartbeatInterval, err = time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid HEARTBEAT_INTERVAL environment variable: %w", err)
		}
		if cfg.HeartbeatInterval <= 0 {
			return nil, fmt.Errorf("HEARTBEAT_INTERVAL must be positive, got %s", cfg.HeartbeatInterval)
		}
	}

	// --- Rate limits ---
	if cfg.MessageRate, err = rateEnv("MESSAGE_RATE", defaultMessageRate); err != nil {
		return nil, err
	}
	if cfg.MessageBurst, err = intEnv("MESSAGE_BURST", defaultMessageBurst); err != nil {
		return nil, err
	}
	if cfg.StreamRate, err = rateEnv("STREAM_RATE", defaultStreamRate); err != nil {
		return nil, err
	}
	if cfg.StreamBurst, err = intEnv("STREAM_BURST", defaultStreamBurst); err != nil {
		return nil, err
	}

	// --- S3 Storage Settings ---
	cfg.S3BucketName = os.Getenv(envS3BucketName)
	cfg.S3Endpoint = os.Getenv(envS3Endpoint)
	cfg.S3AccessKeyID = os.Getenv(envS3AccessKeyID)
	cfg.S3SecretAccessKey = os.Getenv(envS3SecretAccessKey)

	if err := checkStorage(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// requiredOutsideDevelopment returns the variable, its default in development, or an error elsewhere.
func requiredOutsideDevelopment(cfg *AppConfig, name, fallback string) (string, error) {
	value := os.Getenv(name)
	if value != "" {
		return value, nil
	}

	if cfg.IsDevelopment() {
		return fallback, nil
	}

	return "", fmt.Errorf("%s environment variable is required in %s environment", name, cfg.Environment)
}

// checkStorage rejects a partially configured S3 connection.
func checkStorage(cfg *AppConfig) error {
	settings := map[string]string{
		envS3BucketName:      cfg.S3BucketName,
		envS3Endpoint:        cfg.S3Endpoint,
		envS3AccessKeyID:     cfg.S3AccessKeyID,
		envS3SecretAccessKey: cfg.S3SecretAccessKey,
	}

	var missing []string
	for _, name := range []string{envS3BucketName, envS3Endpoint, envS3AccessKeyID, envS3SecretAccessKey} {
		if settings[name] == "" {
			missing = append(missing, name)
		}
	}

	if len(missing) == 0 || len(missing) == len(settings) {
		return nil
	}

	return fmt.Errorf("incomplete S3 configuration, missing %s", strings.Join(missing, ", "))
}

func intEnv(name string, fallback int) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", name, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d", name, v)
	}

	return v, nil
}

func rateEnv(name string, fallback float64) (float64, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback, nil
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", name, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %g", name, v)
	}

	return v, nil
}
