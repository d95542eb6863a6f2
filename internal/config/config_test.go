package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 2500*time.Millisecond, cfg.AutoInterval)
	assert.Equal(t, 0.9, cfg.FrameQuality)
	assert.Equal(t, "jpeg", cfg.FrameFormat)
	assert.False(t, cfg.FoldLateResults)
	require.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("AUTO_INTERVAL", "3000")
	t.Setenv("ANALYSIS_TIMEOUT", "1500ms")
	t.Setenv("FRAME_QUALITY", "0.75")
	t.Setenv("FOLD_LATE_RESULTS", "true")
	t.Setenv("CAMERA_SOURCE", "directory")

	cfg := Load()

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 3*time.Second, cfg.AutoInterval)
	assert.Equal(t, 1500*time.Millisecond, cfg.AnalysisTimeout)
	assert.Equal(t, 0.75, cfg.FrameQuality)
	assert.True(t, cfg.FoldLateResults)
	assert.Equal(t, "directory", cfg.CameraSource)
}

func TestLoad_InvalidEnvKeepsDefault(t *testing.T) {
	t.Setenv("PORT", "not-a-port")
	t.Setenv("AUTO_INTERVAL", "soon")
	t.Setenv("ARCHIVE_ENABLED", "maybe")

	cfg := Load()

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 2500*time.Millisecond, cfg.AutoInterval)
	assert.True(t, cfg.ArchiveEnabled)
}

func TestLoad_YAMLOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "visionbridge.yaml")
	content := []byte("port: 7070\nanalysis_url: http://vision:8000\nauto_interval: 2s\nframe_format: webp\n")
	require.NoError(t, os.WriteFile(path, content, 0644))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "7171")

	cfg := Load()

	assert.Equal(t, 7171, cfg.Port, "environment wins over the file")
	assert.Equal(t, "http://vision:8000", cfg.AnalysisURL)
	assert.Equal(t, 2*time.Second, cfg.AutoInterval)
	assert.Equal(t, "webp", cfg.FrameFormat)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port", func(c *Config) { c.Port = 0 }},
		{"backend", func(c *Config) { c.AnalysisBackend = "grpc" }},
		{"source", func(c *Config) { c.CameraSource = "rtsp" }},
		{"format", func(c *Config) { c.FrameFormat = "bmp" }},
		{"quality", func(c *Config) { c.FrameQuality = 1.5 }},
		{"interval", func(c *Config) { c.AutoInterval = 0 }},
		{"flush", func(c *Config) { c.FlushInterval = 0 }},
		{"zero timeout", func(c *Config) { c.AnalysisTimeout = 0 }},
		{"negative timeout", func(c *Config) { c.AnalysisTimeout = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
