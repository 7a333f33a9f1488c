// Package config handles the XDG configuration directory, the settings file,
// and environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	// AppName is the application directory name.
	AppName = "taskdesk"

	// SettingsFile is the YAML settings filename inside the config dir.
	SettingsFile = "config.yaml"

	// LogFile receives log output unless --debug sends it to stderr.
	LogFile = "taskdesk.log"

	// DefaultAPIURL is used when nothing else configures the service address.
	DefaultAPIURL = "http://localhost:5000/api"

	// DefaultAPITimeout bounds each gateway call.
	DefaultAPITimeout = 5 * time.Second

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "TASKDESK"
)

// APISettings configures the remote task service.
type APISettings struct {
	URL     string            `yaml:"url"`
	Token   string            `yaml:"token,omitempty"`
	Timeout string            `yaml:"timeout,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
}

// LogSettings configures logging.
type LogSettings struct {
	Level string `yaml:"level,omitempty"`
	// File overrides the log file; relative paths are inside the config dir.
	File string `yaml:"file,omitempty"`
}

// Settings models config.yaml.
type Settings struct {
	API APISettings `yaml:"api"`
	Log LogSettings `yaml:"log"`
}

// Config holds configuration paths and settings.
type Config struct {
	// Dir is the configuration directory path.
	Dir string

	// Debug enables debug logging.
	Debug bool

	// Quiet suppresses informational output.
	Quiet bool

	// Settings is the merged result of config.yaml and environment overrides.
	Settings Settings

	// Logger is shared by every component built from this config. May be nil.
	Logger *logrus.Entry
}

// New creates a Config for the default or specified config directory and
// loads its settings. If configDir is empty, uses XDG_CONFIG_HOME/taskdesk
// or $HOME/.config/taskdesk.
func New(configDir string) (*Config, error) {
	dir := configDir
	if dir == "" {
		dir = DefaultConfigDir()
	}
	cfg := &Config{Dir: dir}
	if err := cfg.load(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultConfigDir returns the default configuration directory.
// Uses XDG_CONFIG_HOME if set, otherwise $HOME/.config.
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home can't be determined
		return AppName
	}
	return filepath.Join(home, ".config", AppName)
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment.
// A missing file is not an error. Existing variables are not overwritten.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	return nil
}

// SettingsPath returns the path to config.yaml.
func (c *Config) SettingsPath() string {
	return filepath.Join(c.Dir, SettingsFile)
}

// LogPath returns the path of the log file used when logs stay off stderr.
func (c *Config) LogPath() string {
	f := strings.TrimSpace(c.Settings.Log.File)
	switch {
	case f == "":
		return filepath.Join(c.Dir, LogFile)
	case filepath.IsAbs(f):
		return f
	default:
		return filepath.Join(c.Dir, f)
	}
}

// EnsureDir creates the config directory if it doesn't exist.
// Directory is created with mode 0700.
func (c *Config) EnsureDir() error {
	return os.MkdirAll(c.Dir, 0700)
}

// APIURL returns the base address of the remote service.
func (c *Config) APIURL() string {
	if u := strings.TrimSpace(c.Settings.API.URL); u != "" {
		return strings.TrimRight(u, "/")
	}
	return DefaultAPIURL
}

// SetAPIURL overrides the base address, e.g. from a command-line flag.
func (c *Config) SetAPIURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if err := validateURL(raw); err != nil {
		return err
	}
	c.Settings.API.URL = raw
	return nil
}

// APITimeout returns the per-call gateway timeout.
func (c *Config) APITimeout() time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(c.Settings.API.Timeout))
	if err != nil || d <= 0 {
		return DefaultAPITimeout
	}
	return d
}

// LogLevel returns the configured log level; --debug wins.
func (c *Config) LogLevel() string {
	if c.Debug {
		return "debug"
	}
	if lvl := strings.TrimSpace(c.Settings.Log.Level); lvl != "" {
		return strings.ToLower(lvl)
	}
	return "warn"
}

func (c *Config) load() error {
	data, err := os.ReadFile(c.SettingsPath())
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &c.Settings); err != nil {
			return fmt.Errorf("config: parse %s: %w", c.SettingsPath(), err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return fmt.Errorf("config: read %s: %w", c.SettingsPath(), err)
	}
	c.applyEnv()
	return c.Settings.validate()
}

func (c *Config) applyEnv() {
	if v, ok := lookupEnv("API_URL"); ok {
		c.Settings.API.URL = v
	}
	if v, ok := lookupEnv("API_TOKEN"); ok {
		c.Settings.API.Token = v
	}
	if v, ok := lookupEnv("API_TIMEOUT"); ok {
		c.Settings.API.Timeout = v
	}
	if v, ok := lookupEnv("LOG_LEVEL"); ok {
		c.Settings.Log.Level = v
	}
}

func lookupEnv(key string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + "_" + key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (s Settings) validate() error {
	if u := strings.TrimSpace(s.API.URL); u != "" {
		if err := validateURL(u); err != nil {
			return err
		}
	}
	if t := strings.TrimSpace(s.API.Timeout); t != "" {
		d, err := time.ParseDuration(t)
		if err != nil || d <= 0 {
			return fmt.Errorf("config: api.timeout must be a positive duration, got %q", t)
		}
	}
	if lvl := strings.TrimSpace(s.Log.Level); lvl != "" {
		if _, err := logrus.ParseLevel(lvl); err != nil {
			return fmt.Errorf("config: log.level: %w", err)
		}
	}
	return nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config: api url must be an absolute http(s) URL, got %q", raw)
	}
	return nil
}
