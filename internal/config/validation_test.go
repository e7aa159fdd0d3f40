package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		ListenAddr:       "127.0.0.1:8080",
		WebhookRateLimit: 10,
		WebhookRateBurst: 30,
		DatabaseURL:      "postgres://atendai:pw@localhost:5432/atendai?sslmode=disable",
		GeminiAPIKey:     "test-key",
		GeminiModel:      DefaultGeminiModel,
		EmbedderModel:    DefaultEmbedderModel,
		CRMAPIBase:       "https://services.leadconnectorhq.com",
		CRMClientID:      "client",
		CRMClientSecret:  "secret",
		CRMCompanyID:     "company",
		CRMRedirectURI:   "https://example.com/oauth/callback",
	}
}

func TestValidate_OK(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"missing database url", func(c *Config) { c.DatabaseURL = "" }, ErrMissingDatabaseURL},
		{"wrong database scheme", func(c *Config) { c.DatabaseURL = "mysql://localhost/x" }, ErrInvalidDatabaseURL},
		{"missing gemini key", func(c *Config) { c.GeminiAPIKey = "" }, ErrMissingGeminiAPIKey},
		{"missing client id", func(c *Config) { c.CRMClientID = "" }, ErrMissingCRMCredentials},
		{"missing client secret", func(c *Config) { c.CRMClientSecret = "" }, ErrMissingCRMCredentials},
		{"missing company id", func(c *Config) { c.CRMCompanyID = "" }, ErrMissingCRMCredentials},
		{"missing redirect uri", func(c *Config) { c.CRMRedirectURI = "" }, ErrMissingCRMCredentials},
		{"bad api base", func(c *Config) { c.CRMAPIBase = "not a url" }, ErrInvalidCRMAPIBase},
		{"zero rate limit", func(c *Config) { c.WebhookRateLimit = 0 }, ErrInvalidRateLimit},
		{"zero burst", func(c *Config) { c.WebhookRateBurst = 0 }, ErrInvalidRateLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
