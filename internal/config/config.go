package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

// AppName is the directory name used under the XDG config and data homes.
const AppName = "lamplighter"

// Config represents the application configuration
type Config struct {
	Hue       HueConfig       `yaml:"hue"`
	Pairing   PairingConfig   `yaml:"pairing"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Log       LogConfig       `yaml:"log"`
}

// HueConfig contains Hue bridge connection settings
type HueConfig struct {
	Timeout      Duration `yaml:"timeout"`        // HTTP timeout for bridge requests
	RateLimitRPS float64  `yaml:"rate_limit_rps"` // Max requests per second towards the bridge
	DeviceType   string   `yaml:"device_type"`    // Client identifier sent when registering
}

// PairingConfig contains link-button pairing settings
type PairingConfig struct {
	RetryInterval Duration `yaml:"retry_interval"`
}

// DiscoveryConfig selects bridge discovery sources
type DiscoveryConfig struct {
	Timeout Duration `yaml:"timeout"` // mDNS browse window
	MDNS    *bool    `yaml:"mdns"`
	Cloud   *bool    `yaml:"cloud"`
}

// UseMDNS reports whether mDNS discovery is enabled (default: true)
func (c *DiscoveryConfig) UseMDNS() bool {
	return c.MDNS == nil || *c.MDNS
}

// UseCloud reports whether N-UPnP cloud discovery is enabled (default: true)
func (c *DiscoveryConfig) UseCloud() bool {
	return c.Cloud == nil || *c.Cloud
}

// LedgerConfig contains invocation ledger settings
type LedgerConfig struct {
	Enabled   *bool    `yaml:"enabled"`
	Path      string   `yaml:"path"`
	Retention Duration `yaml:"retention"` // Entries older than this are pruned on startup
}

// IsEnabled reports whether the ledger is enabled (default: true)
func (c *LedgerConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`
	Colors bool   `yaml:"colors"`
	JSON   bool   `yaml:"json"`
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Paths are the default file locations for a user.
type Paths struct {
	Config  string // optional YAML settings
	Session string // bridge.cnf
	Ledger  string // SQLite ledger
}

// DefaultPaths resolves file locations under the XDG base directories.
func DefaultPaths() Paths {
	return Paths{
		Config:  filepath.Join(xdg.ConfigHome, AppName, "config.yaml"),
		Session: filepath.Join(xdg.ConfigHome, AppName, "bridge.cnf"),
		Ledger:  filepath.Join(xdg.DataHome, AppName, "ledger.sqlite"),
	}
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{Log: LogConfig{Colors: true}}
	cfg.applyDefaults()
	return cfg
}

// Load reads and parses the configuration file. A missing file is not an
// error: defaults are returned instead.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := expandEnvVars(string(data))

	cfg := Config{Log: LogConfig{Colors: true}}
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "warn"
	}

	// Hue defaults
	if cfg.Hue.Timeout == 0 {
		cfg.Hue.Timeout = Duration(10 * time.Second)
	}
	if cfg.Hue.RateLimitRPS == 0 {
		cfg.Hue.RateLimitRPS = 10.0 // bridge guidance: about 10 light commands per second
	}
	if cfg.Hue.DeviceType == "" {
		cfg.Hue.DeviceType = "lamplighter#cli"
	}

	if cfg.Pairing.RetryInterval == 0 {
		cfg.Pairing.RetryInterval = Duration(5 * time.Second)
	}

	if cfg.Ledger.Retention == 0 {
		cfg.Ledger.Retention = Duration(90 * 24 * time.Hour)
	}

	if cfg.Discovery.Timeout == 0 {
		cfg.Discovery.Timeout = Duration(3 * time.Second)
	}
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	// Match ${VAR} or ${VAR:default}
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}
