package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, k := range []string{"CONFIG_FILE", "PORT", "GEMINI_MODELS", "RATE_LIMIT_PER_MINUTE", "JWT_SECRET"} {
		t.Setenv(k, "")
	}

	cfg := Load()
	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, DefaultGeminiModels, cfg.GeminiModels)
	assert.Equal(t, 30, cfg.RateLimit)
	assert.Equal(t, "local", cfg.UploadBackend)
	assert.Equal(t, 5*time.Minute, cfg.PredictionTimeout)
	assert.Empty(t, cfg.JWTSecret)
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "waterlog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "8080"
db_name: floods
gemini_models: [gemini-1.5-flash]
rate_limit_per_minute: 5
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "9090")
	t.Setenv("GEMINI_MODELS", "")
	t.Setenv("PREDICTION_TIMEOUT", "90s")
	t.Setenv("MODERATION_TIMEOUT", "not-a-duration")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.1, ,10.0.0.2")

	cfg := Load()
	assert.Equal(t, "9090", cfg.Port, "env wins over file")
	assert.Equal(t, "floods", cfg.DBName)
	assert.Equal(t, []string{"gemini-1.5-flash"}, cfg.GeminiModels)
	assert.Equal(t, 5, cfg.RateLimit)
	assert.Equal(t, 90*time.Second, cfg.PredictionTimeout)
	assert.Equal(t, 20*time.Second, cfg.ModerationTimeout)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, cfg.TrustedProxies)
}

func TestGetStringSliceEnv(t *testing.T) {
	t.Setenv("GEMINI_MODELS", " a ,b,, c ")
	assert.Equal(t, []string{"a", "b", "c"}, getStringSliceEnv("GEMINI_MODELS", nil))
}
