package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// fileConfig is the on-disk shape. Durations are strings, booleans are
// pointers so an explicit false in the file still overrides a default.
type fileConfig struct {
	RootDir        string   `yaml:"root_dir" toml:"root_dir"`
	Workers        int      `yaml:"workers" toml:"workers"`
	MaxRetries     *int     `yaml:"max_retries" toml:"max_retries"`
	RoundDelay     string   `yaml:"round_delay" toml:"round_delay"`
	RequestTimeout string   `yaml:"request_timeout" toml:"request_timeout"`
	VerifyExisting *bool    `yaml:"verify_existing" toml:"verify_existing"`
	ManifestURL    string   `yaml:"manifest_url" toml:"manifest_url"`
	AssetBaseURL   string   `yaml:"asset_base_url" toml:"asset_base_url"`
	RuntimeAPIURL  string   `yaml:"runtime_api_url" toml:"runtime_api_url"`
	Mirrors        []string `yaml:"mirrors" toml:"mirrors"`
	CacheURL       string   `yaml:"cache_url" toml:"cache_url"`
	History        *bool    `yaml:"history" toml:"history"`
	DBPath         string   `yaml:"db_path" toml:"db_path"`
	Host           string   `yaml:"host" toml:"host"`
	Port           int      `yaml:"port" toml:"port"`
	LogLevel       string   `yaml:"log_level" toml:"log_level"`
	Progress       *bool    `yaml:"progress" toml:"progress"`
}

// LoadFromFile loads configuration from a YAML (.yaml, .yml) or TOML (.toml)
// file on top of the defaults returned by New.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), &fc); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q (want .yaml, .yml or .toml)", ext)
	}

	cfg := New()
	if err := fc.apply(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (fc fileConfig) apply(cfg *Config) error {
	if fc.RootDir != "" {
		cfg.RootDir = fc.RootDir
	}
	if fc.Workers != 0 {
		cfg.Workers = fc.Workers
	}
	if fc.MaxRetries != nil {
		cfg.MaxRetries = *fc.MaxRetries
	}
	if fc.RoundDelay != "" {
		d, err := time.ParseDuration(fc.RoundDelay)
		if err != nil {
			return fmt.Errorf("parse round_delay: %w", err)
		}
		cfg.RoundDelay = d
	}
	if fc.RequestTimeout != "" {
		d, err := time.ParseDuration(fc.RequestTimeout)
		if err != nil {
			return fmt.Errorf("parse request_timeout: %w", err)
		}
		cfg.RequestTimeout = d
	}
	if fc.VerifyExisting != nil {
		cfg.VerifyExisting = *fc.VerifyExisting
	}
	if fc.ManifestURL != "" {
		cfg.ManifestURL = fc.ManifestURL
	}
	if fc.AssetBaseURL != "" {
		cfg.AssetBaseURL = fc.AssetBaseURL
	}
	if fc.RuntimeAPIURL != "" {
		cfg.RuntimeAPIURL = fc.RuntimeAPIURL
	}
	if len(fc.Mirrors) > 0 {
		cfg.Mirrors = append([]string(nil), fc.Mirrors...)
	}
	if fc.CacheURL != "" {
		cfg.CacheURL = fc.CacheURL
	}
	if fc.History != nil {
		cfg.History = *fc.History
	}
	if fc.DBPath != "" {
		cfg.DBPath = fc.DBPath
	}
	if fc.Host != "" {
		cfg.Host = fc.Host
	}
	if fc.Port != 0 {
		cfg.Port = fc.Port
	}
	if fc.LogLevel != "" {
		cfg.LogLevel = fc.LogLevel
	}
	if fc.Progress != nil {
		cfg.Progress = *fc.Progress
	}
	return nil
}

// LoadFromEnv overlays GAMEFETCH_* environment variables onto c.
// GAMEFETCH_MIRRORS is a comma separated list.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("GAMEFETCH_ROOT"); v != "" {
		c.RootDir = v
	}
	if v := os.Getenv("GAMEFETCH_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse GAMEFETCH_WORKERS: %w", err)
		}
		c.Workers = n
	}
	if v := os.Getenv("GAMEFETCH_MAX_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse GAMEFETCH_MAX_RETRIES: %w", err)
		}
		c.MaxRetries = n
	}
	if v := os.Getenv("GAMEFETCH_MIRRORS"); v != "" {
		c.Mirrors = nil
		for _, m := range strings.Split(v, ",") {
			if m = strings.TrimSpace(m); m != "" {
				c.Mirrors = append(c.Mirrors, m)
			}
		}
	}
	if v := os.Getenv("GAMEFETCH_CACHE_URL"); v != "" {
		c.CacheURL = v
	}
	if v := os.Getenv("GAMEFETCH_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	return nil
}
