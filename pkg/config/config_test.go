package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvAPIURL, EnvImageHost, EnvLogLevel, EnvDataDir} {
		t.Setenv(k, "")
	}
}

func TestLoadCreatesDefaultFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), "itms console configuration")
	assert.DirExists(t, filepath.Join(dir, "logs"))

	assert.Equal(t, "http://localhost:5000", cfg.API.BaseURL)
	assert.Equal(t, 15*time.Second, cfg.API.Timeout)
	assert.Equal(t, "/api/dashboard/reviews", cfg.API.Endpoints.Reviews)
	assert.Equal(t, "/api/dashboard/reviews/{id}", cfg.API.Endpoints.ReviewDetail)
	assert.Equal(t, "reviews.csv", cfg.Export.FileName)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "/dashboard", cfg.UI.Redirect)
	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, filepath.Join(dir, "itms.db"), cfg.JournalPath())
	assert.Equal(t, cfg.API.BaseURL, cfg.ImageHost())
}

func TestLoadFileOverridesAndEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte(`
api:
  base_url: https://itms.example.com/
  timeout: 3s
  endpoints:
    reviews: /v2/reviews
log:
  level: DEBUG
`), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "https://itms.example.com", cfg.API.BaseURL, "trailing slash trimmed")
	assert.Equal(t, 3*time.Second, cfg.API.Timeout)
	assert.Equal(t, "/v2/reviews", cfg.API.Endpoints.Reviews)
	assert.Equal(t, "/api/dashboard/export/review", cfg.API.Endpoints.Export, "unset endpoints keep defaults")
	assert.Equal(t, "debug", cfg.Log.Level)

	t.Setenv(EnvAPIURL, "https://override.example.com")
	t.Setenv(EnvImageHost, "https://img.example.com")
	cfg, err = LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "https://override.example.com", cfg.API.BaseURL)
	assert.Equal(t, "https://img.example.com", cfg.ImageHost())
}

func TestValidation(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name string
		yaml string
	}{
		{"bad url", "api:\n  base_url: not a url\n"},
		{"bad level", "log:\n  level: loud\n"},
		{"detail without id", "api:\n  endpoints:\n    review_detail: /reviews\n"},
		{"file name with slash", "export:\n  file_name: a/b.csv\n"},
		{"malformed yaml", "api: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), FileName)
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o600))
			_, err := LoadFile(path)
			assert.Error(t, err)
		})
	}
}

func TestDefaultDataDirFromEnv(t *testing.T) {
	t.Setenv(EnvDataDir, "/tmp/itms-test-data")
	dir, err := DefaultDataDir()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/itms-test-data", dir)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "reviews.csv", filepath.Base(cfg.ExportPath()))
}
