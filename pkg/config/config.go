// Package config provides configuration loading and management for scanview.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Display parameters for the presentation loop
	Display struct {
		// FrameBudgetMillis is the target duration of one presentation frame
		FrameBudgetMillis int `yaml:"frameBudgetMillis"`

		// ColorQuantile selects robust color-scale bounds: the displayed
		// range is the [q, 1-q] quantile interval of the visible values.
		// 0 selects the raw min/max.
		ColorQuantile float64 `yaml:"colorQuantile"`

		// StatusLines is the number of status log lines retained
		StatusLines int `yaml:"statusLines"`
	} `yaml:"display"`

	// Volume parameters for synthetic test-volume generation
	Volume struct {
		// Pattern is the default synthetic pattern name
		// (densityRamp, solidSphere, shells, noise)
		Pattern string `yaml:"pattern"`

		// Size is the edge length of the generated cubic volume in voxels
		Size int `yaml:"size"`

		// Workers specifies how many goroutines fill label slabs in parallel
		Workers int `yaml:"workers"`
	} `yaml:"volume"`

	// Convert parameters for the streaming-format conversion step
	Convert struct {
		// ChunkDepth is the number of Z slices per chunk in converted files
		ChunkDepth int `yaml:"chunkDepth"`

		// OutputDir is the directory converted volumes are written to
		OutputDir string `yaml:"outputDir"`
	} `yaml:"convert"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Display.FrameBudgetMillis = 16
	cfg.Display.ColorQuantile = 0.0
	cfg.Display.StatusLines = 64

	cfg.Volume.Pattern = "densityRamp"
	cfg.Volume.Size = 128
	cfg.Volume.Workers = runtime.NumCPU()

	cfg.Convert.ChunkDepth = 16
	cfg.Convert.OutputDir = "converted_volumes"

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
