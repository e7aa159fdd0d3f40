package config

import (
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_EnvOverridesAndDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@dbhost:5432/atendai")
	t.Setenv("GEMINI_API_KEY", "env-gemini-key")
	t.Setenv("GHL_CLIENT_ID", "cid")
	t.Setenv("GHL_CLIENT_SECRET", "csecret")
	t.Setenv("GHL_COMPANY_ID", "co")
	t.Setenv("GHL_AUTH_REDIRECT_URI", "https://example.com/cb")
	t.Setenv("ATENDAI_LOG_LEVEL", "debug")

	// Run from a directory without a config.yaml so only env + defaults apply.
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://u:p@dbhost:5432/atendai", cfg.DatabaseURL)
	assert.Equal(t, "env-gemini-key", cfg.GeminiAPIKey)
	assert.Equal(t, DefaultGeminiModel, cfg.GeminiModel)
	assert.Equal(t, DefaultEmbedderModel, cfg.EmbedderModel)
	assert.Equal(t, "https://services.leadconnectorhq.com", cfg.CRMAPIBase)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel())
}

func TestLoad_FailsFastOnMissingSecrets(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@dbhost:5432/atendai")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GHL_CLIENT_ID", "cid")
	t.Setenv("GHL_CLIENT_SECRET", "csecret")
	t.Setenv("GHL_COMPANY_ID", "co")
	t.Setenv("GHL_AUTH_REDIRECT_URI", "https://example.com/cb")
	t.Chdir(t.TempDir())

	_, err := Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingGeminiAPIKey)
}

func TestMarshalJSON_MasksSecrets(t *testing.T) {
	cfg := validConfig()
	cfg.GeminiAPIKey = "super-secret-gemini-key"
	cfg.CRMClientSecret = "0123456789abcdef"

	data, err := json.Marshal(cfg)
	require.NoError(t, err)

	s := string(data)
	assert.NotContains(t, s, "super-secret-gemini-key")
	assert.NotContains(t, s, "0123456789abcdef")
	assert.Contains(t, s, maskedValue)
}

func TestMaskSecret(t *testing.T) {
	assert.Empty(t, maskSecret(""))
	assert.Equal(t, maskedValue, maskSecret("short"))
	masked := maskSecret("abcdefghijklmnop")
	assert.NotContains(t, masked, "cdefghijklmn")
	assert.Contains(t, masked, maskedValue)
}

func TestLogLevel_Fallback(t *testing.T) {
	c := Config{LogLevelName: "nonsense"}
	assert.Equal(t, slog.LevelInfo, c.LogLevel())
	c.LogLevelName = "warn"
	assert.Equal(t, slog.LevelWarn, c.LogLevel())
}
