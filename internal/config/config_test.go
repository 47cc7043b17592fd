package config

import (
	"testing"
	"time"
)

func validConfig() Config {
	c := Config{}
	c.App.Env = "local"
	c.App.Port = 8080
	c.DB.Host = "localhost"
	c.DB.Port = 5432
	c.DB.User = "survey"
	c.DB.Name = "survey"
	c.Redis.Host = "localhost"
	c.Redis.Port = 6379
	c.Auth.JWTSecret = "secret"
	c.Auth.AdminUser = "admin"
	c.Auth.AdminPassword = "pw"
	return c
}

func TestValidateAppliesDefaults(t *testing.T) {
	c := validConfig()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode default disable, got %q", c.DB.SSLMode)
	}
	if c.Auth.AccessTokenTTL != 15*time.Minute {
		t.Fatalf("expected default access TTL, got %v", c.Auth.AccessTokenTTL)
	}
	if c.Survey.PromptLanguage != "ja-JP" {
		t.Fatalf("expected default prompt language, got %q", c.Survey.PromptLanguage)
	}
}

func TestValidateProductionRequiresTwilio(t *testing.T) {
	c := validConfig()
	c.App.Env = "production"
	c.DB.SSLMode = "require"
	c.Auth.JWTIssuer = "survey"
	c.Auth.JWTAudience = "survey-admin"
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for missing twilio auth token in production")
	}
}

func TestValidateRejectsBadEnv(t *testing.T) {
	c := validConfig()
	c.App.Env = "qa"
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for invalid APP_ENV")
	}
}
