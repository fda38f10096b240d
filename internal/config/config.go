// Package config provides configuration loading and structs for the shelf service.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug   bool          `yaml:"debug"`
	Server  ServerConfig  `yaml:"server"`
	Store   StoreConfig   `yaml:"store"`
	Gallery GalleryConfig `yaml:"gallery"`
	Seed    SeedConfig    `yaml:"seed"`
	Search  SearchConfig  `yaml:"search"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	// RateLimit is the sustained requests per second across all clients; 0 disables limiting.
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
}

// StoreConfig selects and configures the bucket store.
type StoreConfig struct {
	// Driver is one of "redis", "sqlite", or "memory".
	Driver        string `yaml:"driver"`
	CacheEndpoint string `yaml:"cache_endpoint"`
	DatabasePath  string `yaml:"database_path"`
}

// GalleryConfig holds the URL bases for gallery cards.
type GalleryConfig struct {
	ImageBase string `yaml:"image_base"`
	SiteBase  string `yaml:"site_base"`
	// Paths maps a bucket name to its site path segment when they differ.
	Paths map[string]string `yaml:"paths"`
}

// SeedConfig lists dataset files loaded at startup and directories watched for changes.
type SeedConfig struct {
	Files            []string `yaml:"files"`
	WatchDirectories []string `yaml:"watch_directories"`
	Extensions       []string `yaml:"extensions"`
	Recursive        *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (s *SeedConfig) RecursiveOrDefault() bool {
	if s.Recursive != nil {
		return *s.Recursive
	}
	return true
}

// SearchConfig holds item search settings.
type SearchConfig struct {
	// IndexPath is the bleve index directory; empty keeps the index in memory.
	IndexPath    string `yaml:"index_path"`
	DefaultLimit int    `yaml:"default_limit"`
	MaxLimit     int    `yaml:"max_limit"`
	Fuzziness    int    `yaml:"fuzziness"`
}

// Load reads and parses the config file at path, applies environment
// overrides and defaults, and expands paths.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Store.DatabasePath = expandPath(cfg.Store.DatabasePath, configDir)
	cfg.Search.IndexPath = expandPath(cfg.Search.IndexPath, configDir)
	for i := range cfg.Seed.Files {
		cfg.Seed.Files[i] = expandPath(cfg.Seed.Files[i], configDir)
	}
	for i := range cfg.Seed.WatchDirectories {
		cfg.Seed.WatchDirectories[i] = expandPath(cfg.Seed.WatchDirectories[i], configDir)
	}

	return &cfg, nil
}

// Default returns the configuration used when no config file exists: the
// environment overrides on top of the built-in defaults. Lambda deployments
// run this way, configured only by CACHE_ENDPOINT.
func Default() *Config {
	var cfg Config
	cfg.applyEnvOverrides()
	ApplyDefaults(&cfg)
	return &cfg
}

// applyEnvOverrides lets the environment (or a .env file loaded by the caller)
// override file settings. CACHE_ENDPOINT is the variable the deployed
// functions already receive.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CACHE_ENDPOINT"); v != "" {
		c.Store.CacheEndpoint = v
	}
	if v := os.Getenv("SHELF_STORE_DRIVER"); v != "" {
		c.Store.Driver = strings.ToLower(v)
	}
	if v := os.Getenv("SHELF_DB_PATH"); v != "" {
		c.Store.DatabasePath = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory. Empty paths stay empty.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
