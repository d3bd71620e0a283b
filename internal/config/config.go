// Package config handles loading and validation of service configuration.
// Supports both development (env vars) and production (Secret Manager) modes.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
)

// Config holds all service configuration.
// Environment determines whether secrets load from env vars (development) or Secret Manager (production).
type Config struct {
	// Server settings
	Port        string
	Environment string // "development" or "production"
	LogLevel    string // "debug", "info", "warn", "error"

	// GCP settings (required in production)
	GCPProject string
	AppID      string

	// App-level configuration (loaded from secrets)
	App AppConfig
}

// AppConfig contains settings shared by all shops on this install.
// In production, this is loaded from Secret Manager as JSON.
// In development, loaded from individual env vars or CONFIG_FILE.
type AppConfig struct {
	// DatabaseURL is the Postgres connection string for funnel and
	// credential storage.
	DatabaseURL string `json:"database_url"`

	// AppURL is the public base URL of this service. Its origin is
	// always part of the sign allow-list.
	AppURL string `json:"app_url,omitempty"`

	// APIVersion selects the Admin API version for product lookups.
	APIVersion string `json:"api_version,omitempty"`

	// PlatformDomain is the commerce platform's checkout edge domain.
	// Signing probes pay.<domain> and checkout.<domain> first.
	PlatformDomain string `json:"platform_domain,omitempty"`

	// AllowedOrigins lists extra origins permitted to call /offers/sign,
	// beyond platform subdomains and the app's own origin.
	AllowedOrigins []string `json:"allowed_origins,omitempty"`

	// MinExtensionVersion flags checkout extensions older than this
	// version in request logs. Never blocks a request.
	MinExtensionVersion string `json:"min_extension_version,omitempty"`
}

// Load reads configuration from file, environment, or Secret Manager.
// Priority: CONFIG_FILE (if set) → ENV vars / Secret Manager.
// Validates all required fields and returns an error if any are missing.
func Load(ctx context.Context) (*Config, error) {
	// If CONFIG_FILE is set, load everything from the JSON file
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromFile(configPath)
	}

	// Otherwise, use ENV vars / Secret Manager approach
	cfg := &Config{
		Port:        envOrDefault("PORT", "8080"),
		Environment: envOrDefault("ENVIRONMENT", "development"),
		LogLevel:    envOrDefault("LOG_LEVEL", "info"),
		GCPProject:  os.Getenv("GCP_PROJECT"),
		AppID:       os.Getenv("APP_ID"),
	}

	// Load app config based on environment
	var err error
	if cfg.Environment == "production" {
		if cfg.GCPProject == "" {
			return nil, fmt.Errorf("GCP_PROJECT required in production environment")
		}
		if cfg.AppID == "" {
			return nil, fmt.Errorf("APP_ID required in production environment")
		}
		err = cfg.loadFromSecretManager(ctx)
	} else {
		err = cfg.loadFromEnv()
	}
	if err != nil {
		return nil, fmt.Errorf("loading app config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
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
		Port        string    `json:"port"`
		Environment string    `json:"environment"`
		LogLevel    string    `json:"log_level"`
		AppID       string    `json:"app_id"`
		App         AppConfig `json:"app"`
	}

	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg := &Config{
		Port:        withDefault(fileConfig.Port, "8080"),
		Environment: withDefault(fileConfig.Environment, "development"),
		LogLevel:    withDefault(fileConfig.LogLevel, "info"),
		AppID:       fileConfig.AppID,
		App:         fileConfig.App,
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

// loadFromSecretManager fetches app config from GCP Secret Manager.
// Secret name format: projects/{project}/secrets/{app_id}/versions/latest
func (c *Config) loadFromSecretManager(ctx context.Context) error {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("creating secret manager client: %w", err)
	}
	defer client.Close()

	secretName := fmt.Sprintf("projects/%s/secrets/%s/versions/latest",
		c.GCPProject, c.AppID)

	result, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: secretName,
	})
	if err != nil {
		return fmt.Errorf("accessing secret %s: %w", secretName, err)
	}

	if err := json.Unmarshal(result.Payload.Data, &c.App); err != nil {
		return fmt.Errorf("parsing secret JSON: %w", err)
	}

	return nil
}

// loadFromEnv reads app config from individual environment variables.
// Used in development mode for local testing.
func (c *Config) loadFromEnv() error {
	c.App = AppConfig{
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		AppURL:              os.Getenv("APP_URL"),
		APIVersion:          os.Getenv("API_VERSION"),
		PlatformDomain:      os.Getenv("PLATFORM_DOMAIN"),
		MinExtensionVersion: os.Getenv("MIN_EXTENSION_VERSION"),
	}

	// Comma-separated list of extra sign origins
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.App.AllowedOrigins = append(c.App.AllowedOrigins, o)
			}
		}
	}

	return nil
}

// validate checks required fields and fills platform defaults.
func (c *Config) validate() error {
	if c.App.DatabaseURL == "" {
		return fmt.Errorf("database_url is required")
	}

	if c.App.AppURL != "" {
		if _, err := url.Parse(c.App.AppURL); err != nil {
			return fmt.Errorf("invalid app_url: %w", err)
		}
	}

	c.App.APIVersion = withDefault(c.App.APIVersion, "2024-07")
	c.App.PlatformDomain = withDefault(c.App.PlatformDomain, "shopify.com")

	return nil
}

// envOrDefault returns the environment variable value or the default if not set.
func envOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
