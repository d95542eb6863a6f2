package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port         int    `yaml:"port"`
	Password     string `yaml:"password"`
	PasswordHash string `yaml:"password_hash"` // bcrypt hash, wins over Password

	AnalysisBackend string        `yaml:"analysis_backend"` // http | ollama
	AnalysisURL     string        `yaml:"analysis_url"`
	AnalysisTimeout time.Duration `yaml:"analysis_timeout"`
	OllamaURL       string        `yaml:"ollama_url"`
	OllamaModel     string        `yaml:"ollama_model"`

	CameraSource     string  `yaml:"camera_source"` // device | directory
	CameraDevice     string  `yaml:"camera_device"`
	CameraDirectory  string  `yaml:"camera_dir"`
	CameraWidth      int     `yaml:"camera_width"`  // hint passed to the device
	CameraHeight     int     `yaml:"camera_height"` // hint passed to the device
	CameraFacingMode string  `yaml:"camera_facing_mode"`
	FrameFormat      string  `yaml:"frame_format"`  // jpeg | webp
	FrameQuality     float64 `yaml:"frame_quality"` // 0 < q <= 1

	AutoInterval    time.Duration `yaml:"auto_interval"`
	HealthInterval  time.Duration `yaml:"health_interval"` // 0 disables periodic probing
	FoldLateResults bool          `yaml:"fold_late_results"`

	ArchiveEnabled   bool   `yaml:"archive_enabled"`
	ImageDirectory   string `yaml:"image_dir"`
	DatabasePath     string `yaml:"db_path"`
	ImageBufferLimit int    `yaml:"buffer_limit"`   // captures per session kept between flushes
	FlushInterval    int    `yaml:"flush_interval"` // seconds
	LogDirectory     string `yaml:"log_dir"`

	APIRateLimit float64 `yaml:"api_rate_limit"` // requests per second, 0 disables
	APIRateBurst int     `yaml:"api_rate_burst"`
}

// Load reads .env (if present), then an optional YAML file named by
// CONFIG_FILE, then environment variables. Later sources win.
func Load() *Config {
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			fmt.Fprintf(os.Stderr, "config: ignoring %s: %v\n", path, err)
		}
	}
	cfg.applyEnv()
	return cfg
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:             8080,
		AnalysisBackend:  "http",
		AnalysisURL:      "http://localhost:8000",
		AnalysisTimeout:  10 * time.Second,
		OllamaURL:        "http://localhost:11434",
		OllamaModel:      "llava",
		CameraSource:     "device",
		CameraDevice:     "0",
		CameraDirectory:  filepath.Join(".", "frames"),
		CameraWidth:      1920,
		CameraHeight:     1080,
		CameraFacingMode: "environment",
		FrameFormat:      "jpeg",
		FrameQuality:     0.9,
		AutoInterval:     2500 * time.Millisecond,
		HealthInterval:   30 * time.Second,
		ArchiveEnabled:   true,
		ImageDirectory:   filepath.Join(".", "images"),
		DatabasePath:     filepath.Join(".", "data", "captures.db"),
		ImageBufferLimit: 10,
		FlushInterval:    30,
		LogDirectory:     filepath.Join(".", "logs"),
		APIRateLimit:     20,
		APIRateBurst:     40,
	}
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) applyEnv() {
	c.Port = getEnvAsInt("PORT", c.Port)
	c.Password = getEnv("PASSWORD", c.Password)
	c.PasswordHash = getEnv("PASSWORD_HASH", c.PasswordHash)

	c.AnalysisBackend = getEnv("ANALYSIS_BACKEND", c.AnalysisBackend)
	c.AnalysisURL = getEnv("ANALYSIS_URL", c.AnalysisURL)
	c.AnalysisTimeout = getEnvAsDuration("ANALYSIS_TIMEOUT", c.AnalysisTimeout)
	c.OllamaURL = getEnv("OLLAMA_URL", c.OllamaURL)
	c.OllamaModel = getEnv("OLLAMA_MODEL", c.OllamaModel)

	c.CameraSource = getEnv("CAMERA_SOURCE", c.CameraSource)
	c.CameraDevice = getEnv("CAMERA_DEVICE", c.CameraDevice)
	c.CameraDirectory = getEnv("CAMERA_DIR", c.CameraDirectory)
	c.CameraWidth = getEnvAsInt("CAMERA_WIDTH", c.CameraWidth)
	c.CameraHeight = getEnvAsInt("CAMERA_HEIGHT", c.CameraHeight)
	c.CameraFacingMode = getEnv("CAMERA_FACING_MODE", c.CameraFacingMode)
	c.FrameFormat = getEnv("FRAME_FORMAT", c.FrameFormat)
	c.FrameQuality = getEnvAsFloat("FRAME_QUALITY", c.FrameQuality)

	c.AutoInterval = getEnvAsDuration("AUTO_INTERVAL", c.AutoInterval)
	c.HealthInterval = getEnvAsDuration("HEALTH_INTERVAL", c.HealthInterval)
	c.FoldLateResults = getEnvAsBool("FOLD_LATE_RESULTS", c.FoldLateResults)

	c.ArchiveEnabled = getEnvAsBool("ARCHIVE_ENABLED", c.ArchiveEnabled)
	c.ImageDirectory = getEnv("IMAGE_DIR", c.ImageDirectory)
	c.DatabasePath = getEnv("DB_PATH", c.DatabasePath)
	c.ImageBufferLimit = getEnvAsInt("BUFFER_LIMIT", c.ImageBufferLimit)
	c.FlushInterval = getEnvAsInt("FLUSH_INTERVAL", c.FlushInterval)
	c.LogDirectory = getEnv("LOG_DIR", c.LogDirectory)

	c.APIRateLimit = getEnvAsFloat("API_RATE_LIMIT", c.APIRateLimit)
	c.APIRateBurst = getEnvAsInt("API_RATE_BURST", c.APIRateBurst)
}

// Validate reports the first setting the server cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("invalid port %d", c.Port)
	case c.AnalysisBackend != "http" && c.AnalysisBackend != "ollama":
		return fmt.Errorf("unknown analysis backend %q", c.AnalysisBackend)
	case c.CameraSource != "device" && c.CameraSource != "directory":
		return fmt.Errorf("unknown camera source %q", c.CameraSource)
	case c.FrameFormat != "jpeg" && c.FrameFormat != "webp":
		return fmt.Errorf("unknown frame format %q", c.FrameFormat)
	case c.FrameQuality <= 0 || c.FrameQuality > 1:
		return fmt.Errorf("frame quality %.2f out of range (0, 1]", c.FrameQuality)
	case c.AutoInterval <= 0:
		return errors.New("auto interval must be positive")
	case c.AnalysisTimeout <= 0:
		return errors.New("analysis timeout must be positive")
	case c.ArchiveEnabled && c.FlushInterval <= 0:
		return errors.New("flush interval must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("2.5s") or plain milliseconds ("2500").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}
