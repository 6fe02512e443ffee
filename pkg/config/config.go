package config

import (
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/driveyard/driveyard/pkg/disk"
)

// Config captures service level configuration loaded from config.yaml.
type Config struct {
	Server    ServerConfig           `yaml:"server"`
	CORS      CORSConfig             `yaml:"cors"`
	Signing   SigningConfig          `yaml:"signing"`
	Upload    UploadConfig           `yaml:"upload"`
	RateLimit RateLimitConfig        `yaml:"rate_limit"`
	Database  DatabaseConfig         `yaml:"database"`
	Disks     map[string]disk.Config `yaml:"disks"`
}

// ServerConfig defines HTTP server options.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// CORSConfig defines CORS middleware settings.
type CORSConfig struct {
	AllowOrigin      string `yaml:"allow_origin"`
	AllowMethods     string `yaml:"allow_methods"`
	AllowHeaders     string `yaml:"allow_headers"`
	AllowCredentials bool   `yaml:"allow_credentials"`
}

// SigningConfig defines the signed URL secret and default expiry window.
type SigningConfig struct {
	Secret     string `yaml:"secret"`
	TTLSeconds int    `yaml:"ttl_seconds"`
}

// TTL returns the default signed URL lifetime.
func (s SigningConfig) TTL() time.Duration {
	return time.Duration(s.TTLSeconds) * time.Second
}

// UploadConfig defines file upload constraints.
type UploadConfig struct {
	MaxSize int64 `yaml:"max_size"`
}

// RateLimitConfig defines per-IP limits on the upload endpoint.
type RateLimitConfig struct {
	Enabled         bool `yaml:"enabled"`
	Requests        int  `yaml:"requests"`
	DurationMinutes int  `yaml:"duration_minutes"`
}

// Window returns the duration the request budget applies to.
func (r RateLimitConfig) Window() time.Duration {
	return time.Duration(r.DurationMinutes) * time.Minute
}

// DatabaseConfig defines the database backend configuration. It is only
// consulted when at least one disk runs the database driver.
type DatabaseConfig struct {
	Driver   string         `yaml:"driver"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	MySQL    MySQLConfig    `yaml:"mysql"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// SQLiteConfig contains SQLite specific settings.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// MySQLConfig contains MySQL specific connection details.
type MySQLConfig struct {
	DSN string `yaml:"dsn"`
}

// PostgresConfig contains PostgreSQL specific connection details.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// Load reads a YAML configuration file from the provided path.
// It searches in the current working directory first, then next to the
// binary executable.
func Load(name string) (*Config, error) {
	configPath := findConfigFile(name)
	if configPath == "" {
		log.Printf("Warning: config file %q not found, using defaults", name)
		cfg := defaultConfig()
		applyDefaults(cfg)
		return cfg, nil
	}

	log.Printf("Loading config from: %s", configPath)
	f, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer func() { _ = f.Close() }()

	var parsed Config
	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	applyDefaults(&parsed)
	return &parsed, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address: ":8080",
		},
		CORS: CORSConfig{
			AllowOrigin:      "*",
			AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
			AllowHeaders:     "*",
			AllowCredentials: false,
		},
		Disks: map[string]disk.Config{
			"assets": {
				Driver:      "local",
				Root:        "data/assets",
				Visibility:  disk.VisibilityPublic,
				ServeAssets: true,
				BasePath:    "/assets",
			},
		},
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Signing.TTLSeconds <= 0 {
		cfg.Signing.TTLSeconds = 3600
	}
	if cfg.Upload.MaxSize <= 0 {
		cfg.Upload.MaxSize = 10 * 1024 * 1024 // 10MB
	}
	if cfg.RateLimit.Requests <= 0 {
		cfg.RateLimit.Requests = 30
	}
	if cfg.RateLimit.DurationMinutes <= 0 {
		cfg.RateLimit.DurationMinutes = 10
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.SQLite.Path == "" {
		cfg.Database.SQLite.Path = "data/driveyard.db"
	}
	for name, dc := range cfg.Disks {
		if dc.Visibility == "" {
			dc.Visibility = disk.VisibilityPublic
		}
		switch strings.ToLower(dc.Driver) {
		case "", "local":
			if dc.Root == "" {
				dc.Root = filepath.Join("data", name)
			}
		}
		dc.BasePath = NormalizeBasePath(dc.BasePath)
		if dc.BasePath == "" {
			dc.BasePath = "/" + name
		}
		cfg.Disks[name] = dc
	}
}

// findConfigFile searches for a config file in the current directory first,
// then next to the binary executable. Returns the full path or empty string.
func findConfigFile(name string) string {
	// 1. Current working directory
	if _, err := os.Stat(name); err == nil {
		abs, _ := filepath.Abs(name)
		return abs
	}

	// 2. Next to the binary executable
	exe, err := os.Executable()
	if err == nil {
		exeDir := filepath.Dir(exe)
		candidate := filepath.Join(exeDir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	return ""
}

// NormalizeBasePath cleans up user input and returns a URL path prefix
// suitable for routing.
// Examples:
//
//	"", "/", " ."        -> ""
//	"assets"             -> "/assets"
//	"/assets/"           -> "/assets"
//	"/nested/prefix/"    -> "/nested/prefix"
func NormalizeBasePath(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}
	cleaned := path.Clean("/" + strings.TrimPrefix(trimmed, "/"))
	if cleaned == "." || cleaned == "/" {
		return ""
	}
	return strings.TrimSuffix(cleaned, "/")
}
