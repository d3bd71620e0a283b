package config

import (
	"context"
	"os"
	"strings"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"CONFIG_FILE", "PORT", "ENVIRONMENT", "LOG_LEVEL",
		"GCP_PROJECT", "APP_ID", "DATABASE_URL", "APP_URL",
		"API_VERSION", "PLATFORM_DOMAIN", "ALLOWED_ORIGINS",
		"MIN_EXTENSION_VERSION",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/upsell")
	t.Setenv("APP_URL", "https://upsell.example.com")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com,")
	t.Setenv("MIN_EXTENSION_VERSION", "1.4.0")

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Port != "9090" {
		t.Errorf("Port = %s, want 9090", cfg.Port)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %s, want debug", cfg.LogLevel)
	}
	if cfg.App.DatabaseURL != "postgres://localhost:5432/upsell" {
		t.Errorf("DatabaseURL = %s", cfg.App.DatabaseURL)
	}
	if cfg.App.AppURL != "https://upsell.example.com" {
		t.Errorf("AppURL = %s", cfg.App.AppURL)
	}
	if cfg.App.MinExtensionVersion != "1.4.0" {
		t.Errorf("MinExtensionVersion = %s, want 1.4.0", cfg.App.MinExtensionVersion)
	}

	// Comma-separated origins, whitespace and empties dropped
	if len(cfg.App.AllowedOrigins) != 2 {
		t.Fatalf("AllowedOrigins = %v, want 2 entries", cfg.App.AllowedOrigins)
	}
	if cfg.App.AllowedOrigins[0] != "https://a.example.com" || cfg.App.AllowedOrigins[1] != "https://b.example.com" {
		t.Errorf("AllowedOrigins = %v", cfg.App.AllowedOrigins)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/upsell")

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %s, want 8080", cfg.Port)
	}
	if cfg.Environment != "development" {
		t.Errorf("Environment = %s, want development", cfg.Environment)
	}
	if cfg.App.APIVersion != "2024-07" {
		t.Errorf("APIVersion = %s, want 2024-07", cfg.App.APIVersion)
	}
	if cfg.App.PlatformDomain != "shopify.com" {
		t.Errorf("PlatformDomain = %s, want shopify.com", cfg.App.PlatformDomain)
	}
}

func TestLoadMissingDatabaseURL(t *testing.T) {
	clearEnv(t)

	_, err := Load(context.Background())
	if err == nil || !strings.Contains(err.Error(), "database_url is required") {
		t.Errorf("Load() error = %v, want database_url error", err)
	}
}

func TestLoadProductionRequiresGCP(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/upsell")

	_, err := Load(context.Background())
	if err == nil || !strings.Contains(err.Error(), "GCP_PROJECT") {
		t.Errorf("Load() error = %v, want GCP_PROJECT error", err)
	}

	t.Setenv("GCP_PROJECT", "test-project")
	_, err = Load(context.Background())
	if err == nil || !strings.Contains(err.Error(), "APP_ID") {
		t.Errorf("Load() error = %v, want APP_ID error", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	clearEnv(t)

	content := `{
		"port": "9090",
		"environment": "test",
		"log_level": "debug",
		"app_id": "upsell-app",
		"app": {
			"database_url": "postgres://localhost:5432/upsell",
			"app_url": "https://upsell.example.com",
			"platform_domain": "shopify.dev",
			"allowed_origins": ["https://staging.example.net"]
		}
	}`

	tmpFile, err := os.CreateTemp("", "config-*.json")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer os.Remove(tmpFile.Name())
	if _, err := tmpFile.WriteString(content); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	tmpFile.Close()

	t.Setenv("CONFIG_FILE", tmpFile.Name())

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Port != "9090" {
		t.Errorf("Port = %s, want 9090", cfg.Port)
	}
	if cfg.AppID != "upsell-app" {
		t.Errorf("AppID = %s, want upsell-app", cfg.AppID)
	}
	if cfg.App.PlatformDomain != "shopify.dev" {
		t.Errorf("PlatformDomain = %s, want shopify.dev", cfg.App.PlatformDomain)
	}
	if cfg.App.APIVersion != "2024-07" {
		t.Errorf("APIVersion = %s, want default applied", cfg.App.APIVersion)
	}
	if len(cfg.App.AllowedOrigins) != 1 {
		t.Errorf("AllowedOrigins = %v", cfg.App.AllowedOrigins)
	}
}

func TestLoadFromFileErrors(t *testing.T) {
	clearEnv(t)

	t.Run("file not found", func(t *testing.T) {
		t.Setenv("CONFIG_FILE", "/nonexistent/config.json")
		_, err := Load(context.Background())
		if err == nil {
			t.Error("expected error for nonexistent file")
		}
	})

	t.Run("invalid JSON", func(t *testing.T) {
		tmpFile, _ := os.CreateTemp("", "config-*.json")
		defer os.Remove(tmpFile.Name())
		tmpFile.WriteString("{invalid json")
		tmpFile.Close()

		t.Setenv("CONFIG_FILE", tmpFile.Name())
		_, err := Load(context.Background())
		if err == nil {
			t.Error("expected error for invalid JSON")
		}
	})

	t.Run("missing database_url", func(t *testing.T) {
		tmpFile, _ := os.CreateTemp("", "config-*.json")
		defer os.Remove(tmpFile.Name())
		tmpFile.WriteString(`{"app": {}}`)
		tmpFile.Close()

		t.Setenv("CONFIG_FILE", tmpFile.Name())
		_, err := Load(context.Background())
		if err == nil || !strings.Contains(err.Error(), "database_url is required") {
			t.Errorf("expected database_url error, got: %v", err)
		}
	})
}

func TestEnvOrDefault(t *testing.T) {
	t.Setenv("TEST_ENV_VAR", "custom")
	if got := envOrDefault("TEST_ENV_VAR", "default"); got != "custom" {
		t.Errorf("envOrDefault with set var = %q, want custom", got)
	}

	os.Unsetenv("TEST_ENV_VAR_UNSET")
	if got := envOrDefault("TEST_ENV_VAR_UNSET", "default"); got != "default" {
		t.Errorf("envOrDefault with unset var = %q, want default", got)
	}
}

func TestWithDefault(t *testing.T) {
	if got := withDefault("value", "default"); got != "value" {
		t.Errorf("withDefault(value, default) = %q, want value", got)
	}
	if got := withDefault("", "default"); got != "default" {
		t.Errorf("withDefault('', default) = %q, want default", got)
	}
}
