// Package config provides configuration management.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"port-dues/internal/logging"
)

// Config is the main application configuration
type Config struct {
	// Version is the configuration version
	Version string `json:"version"`

	// Schedule contains tariff schedule settings
	Schedule ScheduleConfig `json:"schedule"`

	// Server contains HTTP server settings
	Server ServerConfig `json:"server"`

	// Explanation contains explanation anchoring settings
	Explanation ExplanationConfig `json:"explanation"`

	// Logging contains logging configuration
	Logging logging.Config `json:"logging"`
}

// ScheduleConfig contains tariff schedule settings
type ScheduleConfig struct {
	// Directory holds published schedule snapshot files
	Directory string `json:"directory"`

	// SourceDir holds schedule payload files (HCL or JSON) to publish
	SourceDir string `json:"source_dir"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	// Addr is the listen address
	Addr string `json:"addr"`

	// ReadTimeoutSeconds bounds request body reads
	ReadTimeoutSeconds int `json:"read_timeout_seconds"`
}

// ExplanationConfig contains explanation anchoring settings
type ExplanationConfig struct {
	// TimeoutMs bounds the external reference lookup. On timeout the
	// result is returned with an empty explanation set.
	TimeoutMs int `json:"timeout_ms"`

	// MappingFile is an optional rule_id to clause reference mapping
	MappingFile string `json:"mapping_file,omitempty"`
}

// Default returns a default configuration
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	baseDir := filepath.Join(homeDir, ".port-dues")

	return &Config{
		Version: "1.0",
		Schedule: ScheduleConfig{
			Directory: filepath.Join(baseDir, "schedules"),
			SourceDir: "./tariffs",
		},
		Server: ServerConfig{
			Addr:               ":8080",
			ReadTimeoutSeconds: 10,
		},
		Explanation: ExplanationConfig{
			TimeoutMs: 500,
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load loads configuration from a file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, err
	}

	return config, nil
}

// Save saves configuration to a file
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Global configuration instance
var globalConfig = Default()

// Get returns the global configuration
func Get() *Config {
	return globalConfig
}

// Set sets the global configuration
func Set(config *Config) {
	globalConfig = config
}
