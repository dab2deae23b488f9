// Package config loads and owns the process-level configuration: the
// filesystem roots, logging, the external archive tool, naming patterns,
// and the optional Radarr/Sonarr instances. Runtime-mutable settings (the
// repeat interval, retention, subfolder policy) live in the settings KV
// store instead.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jinzhu/copier"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/cineripr/releasepipeline/internal/pathutil"
)

// Config represents the complete application configuration.
type Config struct {
	Paths    PathsConfig         `yaml:"paths" mapstructure:"paths"`
	Database DatabaseConfig      `yaml:"database" mapstructure:"database"`
	Log      LogConfig           `yaml:"log" mapstructure:"log"`
	Tool     ToolConfig          `yaml:"tool" mapstructure:"tool"`
	Rename   RenameConfig        `yaml:"rename" mapstructure:"rename"`
	Arrs     []ArrInstanceConfig `yaml:"arrs" mapstructure:"arrs"`
}

// PathsConfig holds the filesystem roots the pipeline operates on. Movie
// and TV-show roots are optional; without them renamed releases stay in
// the staging tree.
type PathsConfig struct {
	DownloadRoots []string `yaml:"download_roots" mapstructure:"download_roots"`
	ExtractedRoot string   `yaml:"extracted_root" mapstructure:"extracted_root"`
	FinishedRoot  string   `yaml:"finished_root" mapstructure:"finished_root"`
	MovieRoot     string   `yaml:"movie_root" mapstructure:"movie_root"`
	TVShowRoot    string   `yaml:"tvshow_root" mapstructure:"tvshow_root"`
}

// DatabaseConfig locates the sqlite settings store.
type DatabaseConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// LogConfig controls the rotating file logger.
type LogConfig struct {
	File       string `yaml:"file" mapstructure:"file"`
	Level      string `yaml:"level" mapstructure:"level"`
	MaxSize    int    `yaml:"max_size" mapstructure:"max_size"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAge     int    `yaml:"max_age" mapstructure:"max_age"`
	Compress   bool   `yaml:"compress" mapstructure:"compress"`
}

// ToolConfig configures the external archive tool. Path overrides the
// candidate auto-detection.
type ToolConfig struct {
	Path       string   `yaml:"path" mapstructure:"path"`
	Candidates []string `yaml:"candidates" mapstructure:"candidates"`
}

// RenameConfig carries the naming patterns applied after extraction.
type RenameConfig struct {
	Enabled       *bool  `yaml:"enabled" mapstructure:"enabled"`
	FolderPattern string `yaml:"folder_pattern" mapstructure:"folder_pattern"`
	FilePattern   string `yaml:"file_pattern" mapstructure:"file_pattern"`
}

// RenameEnabled reports the effective switch (default on).
func (c RenameConfig) RenameEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// ArrInstanceConfig is one configured Radarr or Sonarr endpoint.
type ArrInstanceConfig struct {
	Name   string `yaml:"name" mapstructure:"name"`
	Type   string `yaml:"type" mapstructure:"type"`
	URL    string `yaml:"url" mapstructure:"url"`
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
}

// DefaultConfig returns the built-in defaults, rooted at configDir.
func DefaultConfig(configDir string) *Config {
	if configDir == "" {
		configDir = "."
	}
	boolTrue := true
	return &Config{
		Paths: PathsConfig{
			ExtractedRoot: filepath.Join(configDir, "extracted"),
			FinishedRoot:  filepath.Join(configDir, "finished"),
		},
		Database: DatabaseConfig{
			Path: filepath.Join(configDir, "releasepipeline.db"),
		},
		Log: LogConfig{
			Level:      "info",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     28,
		},
		Tool: ToolConfig{
			Candidates: []string{"7z", "7za", "7zr"},
		},
		Rename: RenameConfig{
			Enabled:       &boolTrue,
			FolderPattern: "$T{ ($6)}{ ($Y)}",
			FilePattern:   "$T",
		},
	}
}

// DeepCopy returns an independent copy of the configuration.
func (c *Config) DeepCopy() *Config {
	var out Config
	if err := copier.CopyWithOption(&out, c, copier.Option{DeepCopy: true}); err != nil {
		clone := *c
		return &clone
	}
	return &out
}

// Validate checks the configuration for contradictions that must abort
// startup.
func (c *Config) Validate() error {
	if len(c.Paths.DownloadRoots) == 0 {
		return fmt.Errorf("paths.download_roots must name at least one directory")
	}
	for _, root := range c.Paths.DownloadRoots {
		if strings.TrimSpace(root) == "" {
			return fmt.Errorf("paths.download_roots contains an empty entry")
		}
	}
	if c.Paths.ExtractedRoot == "" {
		return fmt.Errorf("paths.extracted_root is required")
	}
	if c.Paths.FinishedRoot == "" {
		return fmt.Errorf("paths.finished_root is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	for i, inst := range c.Arrs {
		switch strings.ToLower(inst.Type) {
		case "radarr", "sonarr":
		default:
			return fmt.Errorf("arrs[%d]: type must be radarr or sonarr, got %q", i, inst.Type)
		}
		if inst.URL == "" || inst.APIKey == "" {
			return fmt.Errorf("arrs[%d] (%s): url and api_key are required", i, inst.Name)
		}
	}
	return nil
}

// ValidateDirectories ensures the writable roots exist (creating them when
// absent) and are writable.
func (c *Config) ValidateDirectories() error {
	for _, dir := range []struct{ name, path string }{
		{"extracted_root", c.Paths.ExtractedRoot},
		{"finished_root", c.Paths.FinishedRoot},
		{"movie_root", c.Paths.MovieRoot},
		{"tvshow_root", c.Paths.TVShowRoot},
	} {
		if dir.path == "" {
			continue
		}
		if err := pathutil.CheckDirectoryWritable(dir.path); err != nil {
			return fmt.Errorf("%s: %w", dir.name, err)
		}
	}
	for _, root := range c.Paths.DownloadRoots {
		if _, err := os.Stat(root); err != nil {
			return fmt.Errorf("download root %s: %w", root, err)
		}
	}
	return pathutil.CheckFileDirectoryWritable(c.Database.Path, "database")
}

// LoadConfig reads configFile (YAML via viper), overlaying the defaults.
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configFile)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file %s: %w", configFile, err)
	}

	config := DefaultConfig(filepath.Dir(configFile))
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", configFile, err)
	}
	return config, nil
}

// SaveToFile writes the configuration as YAML.
func SaveToFile(config *Config, filename string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(filename, data, 0o644)
}
