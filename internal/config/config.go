package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"

	"github.com/vango-dev/persist/internal/errors"
	"github.com/vango-dev/persist/pkg/kvdb"
	"github.com/vango-dev/persist/pkg/webstorage"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "persist.json"

	// DefaultDir is the default data directory.
	DefaultDir = ".persist"

	// DefaultOrigin is the default origin URL.
	DefaultOrigin = "http://localhost"

	// DefaultInspectAddr is the default inspector listen address.
	DefaultInspectAddr = "localhost:7340"

	// DefaultLogLevel is the default log level.
	DefaultLogLevel = "info"
)

// Config represents the complete persist.json configuration.
type Config struct {
	// Dir holds local.json and the database files. Relative paths are
	// resolved against the directory of the config file.
	Dir string `json:"dir,omitempty" env:"PERSIST_DIR"`

	// Origin is the URL storage events and cookies are scoped to.
	Origin string `json:"origin,omitempty" env:"PERSIST_ORIGIN"`

	// Quota is the local area size limit in bytes. Zero disables it.
	Quota int `json:"quota,omitempty" env:"PERSIST_QUOTA"`

	// Database selects the key-value database.
	Database DatabaseConfig `json:"database,omitempty"`

	// Inspect contains inspector server configuration.
	Inspect InspectConfig `json:"inspect,omitempty"`

	// Log contains logging configuration.
	Log LogConfig `json:"log,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// DatabaseConfig names the database and object store.
type DatabaseConfig struct {
	// Name is the database name; the file is <dir>/<name>.db.
	Name string `json:"name,omitempty" env:"PERSIST_DB_NAME"`

	// Store is the object store name.
	Store string `json:"store,omitempty" env:"PERSIST_DB_STORE"`
}

// InspectConfig contains inspector settings.
type InspectConfig struct {
	// Addr is the listen address.
	Addr string `json:"addr,omitempty" env:"PERSIST_INSPECT_ADDR"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level,omitempty" env:"PERSIST_LOG_LEVEL"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Dir:    DefaultDir,
		Origin: DefaultOrigin,
		Quota:  webstorage.DefaultQuota,
		Database: DatabaseConfig{
			Name:  kvdb.DefaultDatabase,
			Store: kvdb.DefaultObjectStore,
		},
		Inspect: InspectConfig{Addr: DefaultInspectAddr},
		Log:     LogConfig{Level: DefaultLogLevel},
	}
}

// Load reads configuration from the specified directory.
// It looks for persist.json in the directory.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("P010").
				WithDetail("No " + ConfigFileName + " found at " + path).
				WithSuggestion("Create the file or omit --config to use the defaults")
		}
		return nil, errors.New("P010").Wrap(err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("P010").
			WithDetail("Failed to parse " + ConfigFileName + ": " + err.Error()).
			WithSuggestion("Check that " + ConfigFileName + " is valid JSON")
	}

	cfg.configPath = path
	cfg.applyDefaults()
	return cfg, nil
}

// Resolve loads the configuration the command line asks for. An explicit
// path must exist. Without one, the nearest persist.json above the working
// directory is used, or the defaults when there is none. Environment
// overrides are applied and the result is validated.
func Resolve(path string) (*Config, error) {
	var cfg *Config
	switch {
	case path != "":
		loaded, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	default:
		wd, err := os.Getwd()
		if err != nil {
			return nil, errors.New("P010").Wrap(err)
		}
		if root, err := FindProjectRoot(wd); err == nil {
			loaded, err := Load(root)
			if err != nil {
				return nil, err
			}
			cfg = loaded
		} else {
			cfg = New()
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from PERSIST_* environment variables.
func (c *Config) ApplyEnv() error {
	if err := env.Parse(c); err != nil {
		return errors.New("P010").Wrap(fmt.Errorf("parse env: %w", err))
	}
	c.applyDefaults()
	return nil
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New("P010").Wrap(err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.New("P010").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// ConfigDir returns the directory containing the config file.
func (c *Config) ConfigDir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Dir == "" {
		c.Dir = DefaultDir
	}
	if c.Origin == "" {
		c.Origin = DefaultOrigin
	}
	if c.Database.Name == "" {
		c.Database.Name = kvdb.DefaultDatabase
	}
	if c.Database.Store == "" {
		c.Database.Store = kvdb.DefaultObjectStore
	}
	if c.Inspect.Addr == "" {
		c.Inspect.Addr = DefaultInspectAddr
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Origin)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("P010").
			WithDetail(fmt.Sprintf("origin %q must be an http or https URL with a host", c.Origin))
	}
	if c.Quota < 0 {
		return errors.New("P010").
			WithDetail("quota must not be negative")
	}
	if strings.ContainsAny(c.Database.Name, `/\`) {
		return errors.New("P010").
			WithDetail(fmt.Sprintf("database name %q must not contain path separators", c.Database.Name))
	}
	if _, _, err := net.SplitHostPort(c.Inspect.Addr); err != nil {
		return errors.New("P010").
			WithDetail(fmt.Sprintf("inspect address %q must be host:port", c.Inspect.Addr))
	}
	if _, err := c.SlogLevel(); err != nil {
		return errors.New("P010").
			WithDetail(err.Error()).
			WithSuggestion("Use one of debug, info, warn, error")
	}
	return nil
}

// DirPath returns the absolute data directory.
func (c *Config) DirPath() string {
	dir := c.Dir
	if !filepath.IsAbs(dir) && c.configPath != "" {
		dir = filepath.Join(c.ConfigDir(), dir)
	}
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return dir
}

// SlogLevel parses the configured log level.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	return level, nil
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil
}

// FindProjectRoot walks up directories to find the directory containing
// persist.json.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("P010").
				WithDetail("No " + ConfigFileName + " found in " + startDir + " or any parent directory")
		}
		dir = parent
	}
}
