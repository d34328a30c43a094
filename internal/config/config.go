// Package config provides configuration management.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"cloudmask/internal/logging"
)

// Config is the main application configuration
type Config struct {
	// Version is the configuration version
	Version string `json:"version"`

	// Engine contains image-service connection settings
	Engine EngineConfig `json:"engine"`

	// Output contains output configuration
	Output OutputConfig `json:"output"`

	// Logging contains logging configuration
	Logging logging.Config `json:"logging"`
}

// EngineConfig contains image-service connection settings
type EngineConfig struct {
	// Endpoint is the base URL of the image-processing service
	Endpoint string `json:"endpoint"`

	// Project is the service project to bill requests against
	Project string `json:"project"`

	// TokenEnv names the environment variable holding the access token
	TokenEnv string `json:"token_env"`

	// TimeoutSeconds bounds each round trip
	TimeoutSeconds int `json:"timeout_seconds"`
}

// OutputConfig contains output-related settings
type OutputConfig struct {
	// MapFile is the default path for the rendered HTML map
	MapFile string `json:"map_file"`

	// Zoom is the initial map zoom level
	Zoom int `json:"zoom"`

	// MinZoom is the minimum zoom level at which layers render
	MinZoom int `json:"min_zoom"`
}

// Default returns a default configuration
func Default() *Config {
	return &Config{
		Version: "1.0",
		Engine: EngineConfig{
			Endpoint:       "https://imagery.example.com",
			Project:        "",
			TokenEnv:       "CLOUDMASK_TOKEN",
			TimeoutSeconds: 60,
		},
		Output: OutputConfig{
			MapFile: "cloudmask.html",
			Zoom:    12,
			MinZoom: 9,
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
