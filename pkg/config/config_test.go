package config

import (
	"strings"
	"testing"
)

func productionConfig() *Config {
	return &Config{
		Environment:          EnvProduction,
		LogLevel:             "info",
		SessionAuthKey:       strings.Repeat("a", 32),
		SessionEncryptionKey: strings.Repeat("b", 32),
		SentryDSN:            "https://key@sentry.example.com/1",
		DefaultWarningLevel:  10,
	}
}

func TestValidateForProduction(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "development skips checks", mutate: func(c *Config) {
			c.Environment = EnvDevelopment
			c.SessionAuthKey = ""
			c.SentryDSN = ""
		}},
		{name: "short auth key", mutate: func(c *Config) { c.SessionAuthKey = "short" }, wantErr: "SESSION_AUTH_KEY"},
		{name: "short encryption key", mutate: func(c *Config) { c.SessionEncryptionKey = "short" }, wantErr: "SESSION_ENCRYPTION_KEY"},
		{name: "dev default keys", mutate: func(c *Config) { c.SessionAuthKey = "dev-auth-key-32-bytes-long!!!!!!!" }, wantErr: "development defaults"},
		{name: "debug logging", mutate: func(c *Config) { c.LogLevel = "debug" }, wantErr: "LOG_LEVEL"},
		{name: "missing sentry", mutate: func(c *Config) { c.SentryDSN = "" }, wantErr: "SENTRY_DSN"},
		{name: "weak admin password", mutate: func(c *Config) { c.AdminPassword = "secret" }, wantErr: "ADMIN_PASSWORD"},
		{name: "negative warning level", mutate: func(c *Config) { c.DefaultWarningLevel = -1 }, wantErr: "STOCK_DEFAULT_WARNING_LEVEL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := productionConfig()
			tt.mutate(cfg)
			err := ValidateForProduction(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("expected nil error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error mentioning %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateForProduction_CollectsAllProblems(t *testing.T) {
	cfg := productionConfig()
	cfg.SentryDSN = ""
	cfg.LogLevel = "debug"

	err := ValidateForProduction(cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"SENTRY_DSN", "LOG_LEVEL"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %v", want, err)
		}
	}
}
