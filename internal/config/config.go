package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

const (
	DefaultManifestURL   = "https://launchermeta.mojang.com/mc/game/version_manifest.json"
	DefaultAssetBaseURL  = "https://resources.download.minecraft.net"
	DefaultRuntimeAPIURL = "https://api.azul.com/metadata/v1/zulu/packages/"
)

// Config holds all configuration for the gamefetch application
type Config struct {
	// Installation
	RootDir    string // user-provided
	AbsRootDir string // resolved/absolute path

	// Download behavior
	Workers        int           // concurrent transfers per round
	MaxRetries     int           // retry ceiling; total attempts = MaxRetries+1
	RoundDelay     time.Duration // pause before re-dispatching failures
	RequestTimeout time.Duration // per-request deadline
	VerifyExisting bool          // re-hash files that are already present

	// Remote endpoints
	ManifestURL   string
	AssetBaseURL  string
	RuntimeAPIURL string
	Mirrors       []string // fetchurl servers for hash-addressed fetches
	CacheURL      string   // gocloud blob URL, e.g. file:///var/cache/gamefetch

	// History
	History   bool
	DBPath    string // user-provided
	AbsDBPath string // resolved/absolute path

	// Server configuration
	Host string
	Port int
	Addr string // computed from Host:Port

	// Output
	LogLevel string // debug|info|warn|error
	Progress bool

	// Validation & computed
	Version   string    // app version
	StartTime time.Time // when the app started
}

// New creates a Config with default values
func New() *Config {
	return &Config{
		Workers:        8,
		MaxRetries:     3,
		RequestTimeout: 60 * time.Second,
		ManifestURL:    DefaultManifestURL,
		AssetBaseURL:   DefaultAssetBaseURL,
		RuntimeAPIURL:  DefaultRuntimeAPIURL,
		Host:           "127.0.0.1",
		Port:           8080,
		LogLevel:       "info",
		Progress:       true,
		StartTime:      time.Now(),
		Version:        "1.0.0",
	}
}

// Validate checks that all required configuration is present and valid
func (c *Config) Validate() error {
	// Validate port range
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d (must be 1-65535)", c.Port)
	}

	// Validate workers
	if c.Workers < 1 {
		c.Workers = runtime.NumCPU()
		if c.Workers < 1 {
			c.Workers = 1
		}
	}

	if c.MaxRetries < 0 {
		return fmt.Errorf("invalid max retries: %d (must be >= 0)", c.MaxRetries)
	}
	if c.RoundDelay < 0 {
		return fmt.Errorf("invalid round delay: %s", c.RoundDelay)
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 60 * time.Second
	}

	if strings.TrimSpace(c.ManifestURL) == "" {
		return fmt.Errorf("manifest url is required")
	}
	if strings.TrimSpace(c.AssetBaseURL) == "" {
		return fmt.Errorf("asset base url is required")
	}
	c.AssetBaseURL = strings.TrimRight(c.AssetBaseURL, "/")

	// Validate log level
	validLevels := []string{"debug", "info", "warn", "error"}
	c.LogLevel = strings.ToLower(c.LogLevel)
	valid := false
	for _, level := range validLevels {
		if c.LogLevel == level {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid log level: %s (must be debug|info|warn|error)", c.LogLevel)
	}

	// Compute address
	c.Addr = c.ComputeAddr()

	return nil
}

// ResolveRootDir expands the installation directory and resolves it to an absolute path
// If empty, defaults to $HOME/.gamefetch (%APPDATA%\.gamefetch on Windows)
func (c *Config) ResolveRootDir() error {
	if c.RootDir == "" {
		c.RootDir = defaultRootDir()
	}

	expanded, err := expandHome(c.RootDir)
	if err != nil {
		return err
	}
	c.RootDir = expanded

	abs, err := filepath.Abs(c.RootDir)
	if err != nil {
		return fmt.Errorf("resolve absolute path for %s: %w", c.RootDir, err)
	}
	c.AbsRootDir = abs

	return nil
}

// ResolveDBPath expands the database path and resolves it to an absolute path
// If empty, defaults to OS cache directory
func (c *Config) ResolveDBPath() error {
	if c.DBPath == "" {
		c.DBPath = defaultCacheDBPath()
	}

	expanded, err := expandHome(c.DBPath)
	if err != nil {
		return err
	}
	c.DBPath = expanded

	abs, err := filepath.Abs(c.DBPath)
	if err != nil {
		return fmt.Errorf("resolve absolute path for %s: %w", c.DBPath, err)
	}
	c.AbsDBPath = abs

	return nil
}

func expandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expand home directory: %w", err)
	}
	if p == "~" {
		return home, nil
	}
	return filepath.Join(home, p[2:]), nil
}

// ComputeAddr returns the full server address as host:port
func (c *Config) ComputeAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// String returns a pretty-printed representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf(`Config{
  Install:
    RootDir: %s (resolved: %s)
  Download:
    Workers: %d
    MaxRetries: %d
    RoundDelay: %s
    RequestTimeout: %s
    VerifyExisting: %t
  Remote:
    ManifestURL: %s
    AssetBaseURL: %s
    RuntimeAPIURL: %s
    Mirrors: %d
    CacheURL: %s
  History:
    Enabled: %t
    DBPath: %s (resolved: %s)
  Server:
    Addr: %s
  Logging:
    LogLevel: %s
  Meta:
    Version: %s
    StartTime: %s
}`, c.RootDir, c.AbsRootDir,
		c.Workers, c.MaxRetries, c.RoundDelay, c.RequestTimeout, c.VerifyExisting,
		c.ManifestURL, c.AssetBaseURL, c.RuntimeAPIURL, len(c.Mirrors), c.CacheURL,
		c.History, c.DBPath, c.AbsDBPath,
		c.Addr,
		c.LogLevel,
		c.Version, c.StartTime.Format(time.RFC3339))
}

// Summary returns a one-line summary of key configuration
func (c *Config) Summary() map[string]any {
	return map[string]any{
		"root_dir":        c.AbsRootDir,
		"workers":         c.Workers,
		"max_retries":     c.MaxRetries,
		"round_delay":     c.RoundDelay.String(),
		"request_timeout": c.RequestTimeout.String(),
		"verify_existing": c.VerifyExisting,
		"mirrors":         len(c.Mirrors),
		"cache":           c.CacheURL != "",
		"history":         c.History,
		"db_path":         c.AbsDBPath,
		"log_level":       c.LogLevel,
		"version":         c.Version,
	}
}

// defaultRootDir mirrors the launcher convention of a dot directory in the
// user's profile.
func defaultRootDir() string {
	if runtime.GOOS == "windows" {
		if appdata := os.Getenv("APPDATA"); appdata != "" {
			return filepath.Join(appdata, ".gamefetch")
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".gamefetch")
	}
	return ".gamefetch"
}

// defaultCacheDBPath returns the cross-platform default path for the SQLite DB
// - Windows: %APPDATA%/gamefetch/history.db
// - Linux/macOS: $HOME/.cache/gamefetch/history.db
func defaultCacheDBPath() string {
	if runtime.GOOS == "windows" {
		if appdata := os.Getenv("APPDATA"); appdata != "" {
			return filepath.Join(appdata, "gamefetch", "history.db")
		}
		// Fallback to user home if APPDATA is not set
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, "AppData", "Roaming", "gamefetch", "history.db")
		}
		// Last resort: current directory
		return "history.db"
	}
	// Linux/macOS default cache location
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cache", "gamefetch", "history.db")
	}
	// Fallback: place in working directory
	return filepath.Join("gamefetch", "history.db")
}
