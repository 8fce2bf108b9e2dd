package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
models:
  default_vision: "gpt-4o-mini"
  definitions:
    gpt-4o-mini:
      provider: "openai"
      model_name: "gpt-4o-mini"
      api_key: "${SPECMATCH_TEST_KEY}"
      timeout: "45s"
s3:
  endpoint: "localhost:9000"
  bucket: "screenshots"
matching:
  other_names: ["其他", "其它", "other"]
  strict_category: false
`

func TestParse_DefaultsAndEnv(t *testing.T) {
	t.Setenv("SPECMATCH_TEST_KEY", "sk-test")

	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	model, ok := cfg.GetVisionModel("")
	require.True(t, ok)
	assert.Equal(t, "sk-test", model.APIKey)
	assert.Equal(t, 45*time.Second, model.Timeout)

	assert.Equal(t, 2048, cfg.ImageProcessing.MaxDimension)
	assert.Equal(t, "png", cfg.ImageProcessing.Format)
	assert.Equal(t, int64(4*1024*1024), cfg.ImageProcessing.MaxUploadBytes)
	assert.Equal(t, 3002, cfg.Server.Port)
	assert.NotEmpty(t, cfg.Server.BuildID)
	assert.Equal(t, "catalog.db", cfg.Catalog.DBPath)
	assert.Equal(t, 30, cfg.Vision.RateLimit)
	assert.True(t, cfg.S3.Enabled())
	assert.False(t, cfg.Matching.IsStrictCategory())
	assert.Equal(t, []string{"其他", "其它", "other"}, cfg.Matching.OtherNames)
}

func TestParse_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "unknown default model", yaml: "models:\n  default_vision: missing\n"},
		{name: "bucket without endpoint", yaml: "s3:\n  bucket: b\n"},
		{name: "bad image format", yaml: "image_processing:\n  format: gif\n"},
		{name: "bad quality", yaml: "image_processing:\n  quality: 101\n"},
		{name: "broken yaml", yaml: "models: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestParse_EmptyConfigIsValid(t *testing.T) {
	cfg, err := Parse([]byte(""))
	require.NoError(t, err)
	assert.False(t, cfg.S3.Enabled())
	assert.True(t, cfg.Matching.IsStrictCategory())
	assert.Equal(t, 0, cfg.Server.RateLimit)
	assert.False(t, cfg.App.Debug)
	assert.Equal(t, "debug_logs", cfg.App.DebugDir)
	assert.Equal(t, "specmatch", cfg.App.LogPrefix)
}

func TestLoad(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 8080\n  rate_limit: 60\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Server.BurstLimit)
}
