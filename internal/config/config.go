// Package config handles loading and validation of service configuration.
// Supports both development (env vars, .env, CONFIG_FILE) and production
// (Secret Manager) modes.
package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"storefront/internal/storage"
)

// EnvPrefix namespaces environment variables. Each variable is looked up as
// STOREFRONT_<NAME> first and then as plain <NAME>.
const EnvPrefix = "STOREFRONT"

// Config holds all service configuration.
// Environment determines whether API credentials load from env vars (development)
// or Secret Manager (production).
type Config struct {
	// Server settings
	Port        string `envconfig:"PORT" default:"8080"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"` // "development" or "production"
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`          // "debug", "info", "warn", "error"

	// GCP settings (required in production)
	GCPProject string `envconfig:"GCP_PROJECT"`
	SecretID   string `envconfig:"SECRET_ID" default:"storefront-api"`

	// Storefront API
	API APIConfig `ignored:"true"`

	// Cart state persistence
	Storage StorageConfig `ignored:"true"`

	// Background reconciliation; 0 disables the poller.
	PollInterval time.Duration `envconfig:"POLL_INTERVAL" default:"5m"`
}

// APIConfig describes the remote storefront API.
// In production, URL and VisitorToken come from Secret Manager as JSON.
type APIConfig struct {
	URL          string        `json:"url" envconfig:"API_URL"`
	VisitorToken string        `json:"visitor_token,omitempty" envconfig:"VISITOR_TOKEN"`
	ChromeTLS    bool          `json:"chrome_tls,omitempty" envconfig:"CHROME_TLS"`
	Timeout      time.Duration `json:"-" envconfig:"API_TIMEOUT" default:"30s"`
}

// StorageConfig selects where cart state and the visitor token live.
type StorageConfig struct {
	Backend  string `envconfig:"STORAGE_BACKEND" default:"memory"` // memory, file or redis
	FilePath string `envconfig:"STORAGE_FILE" default:"storefront-state.json"`
	RedisURL string `envconfig:"REDIS_URL"`
}

// Load reads configuration from .env, file, environment, or Secret Manager.
// Priority: CONFIG_FILE (if set) → ENV vars / Secret Manager.
// Validates all required fields and returns an error if any are missing.
func Load(ctx context.Context) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	// If CONFIG_FILE is set, load everything from the JSON file
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromFile(configPath)
	}

	cfg := &Config{}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}
	if err := envconfig.Process(EnvPrefix, &cfg.API); err != nil {
		return nil, fmt.Errorf("reading API environment: %w", err)
	}
	if err := envconfig.Process(EnvPrefix, &cfg.Storage); err != nil {
		return nil, fmt.Errorf("reading storage environment: %w", err)
	}

	if cfg.Environment == "production" {
		if cfg.GCPProject == "" {
			return nil, fmt.Errorf("GCP_PROJECT required in production environment")
		}
		if err := cfg.loadFromSecretManager(ctx); err != nil {
			return nil, fmt.Errorf("loading API config: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadDotEnv applies variables from .env files without overriding the
// environment. Missing files are fine.
func loadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// loadFromFile reads all configuration from a JSON file.
// Used for local development to avoid multiple ENV vars.
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Use a struct that matches the JSON structure
	var fileConfig struct {
		Port         string    `json:"port"`
		Environment  string    `json:"environment"`
		LogLevel     string    `json:"log_level"`
		PollInterval string    `json:"poll_interval"`
		API          APIConfig `json:"api"`
		APITimeout   string    `json:"api_timeout"`
		Storage      struct {
			Backend  string `json:"backend"`
			FilePath string `json:"file_path"`
			RedisURL string `json:"redis_url"`
		} `json:"storage"`
	}

	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg := &Config{
		Port:        withDefault(fileConfig.Port, "8080"),
		Environment: withDefault(fileConfig.Environment, "development"),
		LogLevel:    withDefault(fileConfig.LogLevel, "info"),
		API:         fileConfig.API,
		Storage: StorageConfig{
			Backend:  withDefault(fileConfig.Storage.Backend, storage.BackendMemory),
			FilePath: withDefault(fileConfig.Storage.FilePath, "storefront-state.json"),
			RedisURL: fileConfig.Storage.RedisURL,
		},
	}

	if cfg.PollInterval, err = parseDuration("poll_interval", fileConfig.PollInterval, "5m"); err != nil {
		return nil, err
	}
	if cfg.API.Timeout, err = parseDuration("api_timeout", fileConfig.APITimeout, "30s"); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// withDefault returns val if non-empty, otherwise defaultVal.
func withDefault(val, defaultVal string) string {
	if val != "" {
		return val
	}
	return defaultVal
}

func parseDuration(field, val, defaultVal string) (time.Duration, error) {
	d, err := time.ParseDuration(withDefault(val, defaultVal))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", field, err)
	}
	return d, nil
}

// loadFromSecretManager fetches API config from GCP Secret Manager.
// Secret name format: projects/{project}/secrets/{secret_id}/versions/latest
// Values in the secret override those from the environment.
func (c *Config) loadFromSecretManager(ctx context.Context) error {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("creating secret manager client: %w", err)
	}
	defer client.Close()

	secretName := fmt.Sprintf("projects/%s/secrets/%s/versions/latest",
		c.GCPProject, c.SecretID)

	result, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: secretName,
	})
	if err != nil {
		return fmt.Errorf("accessing secret %s: %w", secretName, err)
	}

	return c.applySecret(result.Payload.Data)
}

// applySecret merges the secret JSON payload into the API config.
func (c *Config) applySecret(data []byte) error {
	var secret APIConfig
	if err := json.Unmarshal(data, &secret); err != nil {
		return fmt.Errorf("parsing secret JSON: %w", err)
	}
	if secret.URL != "" {
		c.API.URL = secret.URL
	}
	if secret.VisitorToken != "" {
		c.API.VisitorToken = secret.VisitorToken
	}
	return nil
}

// validate checks that all required configuration fields are present.
func (c *Config) validate() error {
	switch c.Environment {
	case "development", "production", "test":
	default:
		return fmt.Errorf("invalid environment %q", c.Environment)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}

	if c.API.URL == "" {
		return fmt.Errorf("api_url is required")
	}
	// Validate API URL is well-formed
	u, err := url.Parse(c.API.URL)
	if err != nil {
		return fmt.Errorf("invalid api_url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid api_url: must be an absolute http(s) URL")
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api_timeout must be positive")
	}
	if c.PollInterval < 0 {
		return fmt.Errorf("poll_interval must not be negative")
	}

	switch c.Storage.Backend {
	case storage.BackendMemory:
	case storage.BackendFile:
		if c.Storage.FilePath == "" {
			return fmt.Errorf("storage file path is required for the file backend")
		}
	case storage.BackendRedis:
		if c.Storage.RedisURL == "" {
			return fmt.Errorf("redis_url is required for the redis backend")
		}
	default:
		return fmt.Errorf("invalid storage backend %q (memory, file or redis)", c.Storage.Backend)
	}

	return nil
}
