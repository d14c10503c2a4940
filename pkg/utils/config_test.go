package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	assert.NoError(t, Validate(DefaultConfig()))
}

func TestLoadConfigLayers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dealflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9999"
backfill:
  delay: 5s
  gemini_model: from-yaml
logging:
  level: debug
`), 0o644))

	t.Setenv("DEALFLOW_BACKFILL_GEMINI_MODEL", "from-env")
	t.Setenv("DEALFLOW_DATABASE_PATH", filepath.Join(dir, "data.db"))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.Addr, "yaml overrides default")
	assert.Equal(t, 5*time.Second, cfg.Backfill.Delay)
	assert.Equal(t, "from-env", cfg.Backfill.GeminiModel, "env overrides yaml")
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, filepath.Join(dir, "data.db"), cfg.Database.Path)
	assert.Equal(t, ":7070", cfg.Server.TCPAddr, "untouched default survives")
	assert.Equal(t, "data/companies_final.csv", cfg.Data.CompaniesOut)
}

func TestLoadConfigGeminiKeyFallback(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "plain-key")
	t.Setenv("DEALFLOW_BACKFILL_ENABLED", "true")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.True(t, cfg.Backfill.Enabled)
	assert.Equal(t, "plain-key", cfg.Backfill.GeminiAPIKey)
}

func TestValidateRejects(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.Level = "loud"
	assert.Error(t, Validate(cfg))

	cfg = DefaultConfig()
	cfg.Backfill.Enabled = true
	assert.Error(t, Validate(cfg), "backfill needs a key")

	cfg = DefaultConfig()
	cfg.Auth.JWTSecret = "short"
	assert.Error(t, Validate(cfg))

	cfg = DefaultConfig()
	cfg.Auth.Registration = "invite"
	assert.Error(t, Validate(cfg))
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
