package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the complete application configuration
type Config struct {
	API       APIConfig       `yaml:"api"`
	Camera    CameraConfig    `yaml:"camera"`
	Detection DetectionConfig `yaml:"detection"`
	Recording RecordingConfig `yaml:"recording"`
	Session   SessionConfig   `yaml:"session"`
}

// APIConfig contains the remote survey service settings
type APIConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// CameraConfig contains camera acquisition settings
type CameraConfig struct {
	DeviceID int `yaml:"device_id"`
	Width    int `yaml:"width"`
	Height   int `yaml:"height"`
}

// DetectionConfig contains face detection settings
type DetectionConfig struct {
	CascadeFile string `yaml:"cascade_file"`
}

// RecordingConfig contains continuous recorder settings
type RecordingConfig struct {
	FPS     float64 `yaml:"fps"`
	TempDir string  `yaml:"temp_dir"`
}

// SessionConfig contains session behavior settings
type SessionConfig struct {
	// DurationWarningSeconds is the advisory threshold after which the
	// UI surfaces a non-blocking warning; it never auto-submits or
	// cancels
	DurationWarningSeconds int `yaml:"duration_warning_seconds"`
}

// Default values applied when the config omits them
const (
	DefaultWidth                  = 640
	DefaultHeight                 = 480
	DefaultFPS                    = 15.0
	DefaultTimeoutSeconds         = 30
	DefaultDurationWarningSeconds = 120
)

// Load reads and parses the configuration from the specified YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// Save writes the configuration to the specified YAML file
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.Camera.Width == 0 {
		c.Camera.Width = DefaultWidth
	}
	if c.Camera.Height == 0 {
		c.Camera.Height = DefaultHeight
	}
	if c.Recording.FPS == 0 {
		c.Recording.FPS = DefaultFPS
	}
	if c.API.TimeoutSeconds == 0 {
		c.API.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if c.Session.DurationWarningSeconds == 0 {
		c.Session.DurationWarningSeconds = DefaultDurationWarningSeconds
	}
}
