// Package config provides configuration management for camscout.
//
// A single YAML file describes one reconnaissance run: what to scan, which
// dictionaries to use, how hard to attack, where results go and which store
// backend keeps them in between stages. Every field has a default, so a run
// without any config file scans nothing until targets are supplied on the
// command line.
//
// Config file locations (priority order):
//  1. $CAMSCOUT_CONFIG
//  2. ./camscout.yaml
//  3. $XDG_CONFIG_HOME/camscout/config.yaml
//  4. ~/.config/camscout/config.yaml
//  5. /etc/camscout/config.yaml
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults for a new installation
const (
	DefaultPorts          = "554,5554,8554"
	DefaultBackend        = "memory"
	DefaultPluginDir      = "./plugins"
	DefaultPluginSymbol   = "NewStore"
	DefaultSQLitePath     = "./camscout.db"
	DefaultThumbnailDir   = "/tmp"
	DefaultReportPath     = "./result.json"
	DefaultMaxWorkers     = 64
	DefaultTiming         = 4 // nmap -T4, set before decoding so an explicit 0 survives
	DefaultProbeTimeout   = 2 * time.Second
	DefaultConnectTimeout = 30 * time.Second
)

// ErrInvalidConfig is wrapped by every validation failure
var ErrInvalidConfig = errors.New("invalid configuration")

// Load finds and loads the config file, or returns defaults if none found
func Load() (*Config, string, error) {
	path := FindConfigPath()

	if path == "" {
		// No config found - return defaults
		return DefaultConfig(), "", nil
	}

	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	// Start from defaults so omitted booleans keep their default value
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	return cfg, path, nil
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	cfg := &Config{
		Scan: ScanConfig{ServiceDetection: true, Timing: DefaultTiming},
	}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Ports == "" {
		c.Ports = DefaultPorts
	}

	if c.Scan.Dir == "" {
		c.Scan.Dir = os.TempDir()
	}
	if c.Scan.Timeout == 0 {
		c.Scan.Timeout = Duration(10 * time.Minute)
	}

	if c.Attack.Timeout == 0 {
		c.Attack.Timeout = Duration(DefaultProbeTimeout)
	}
	if c.Attack.MaxWorkers <= 0 {
		c.Attack.MaxWorkers = DefaultMaxWorkers
	}

	if c.Store.Backend == "" {
		c.Store.Backend = DefaultBackend
	}
	if c.Store.PluginDir == "" {
		c.Store.PluginDir = DefaultPluginDir
	}
	if c.Store.Symbol == "" {
		c.Store.Symbol = DefaultPluginSymbol
	}
	if c.Store.SQLitePath == "" {
		c.Store.SQLitePath = DefaultSQLitePath
	}
	if c.Store.ConnectTimeout == 0 {
		c.Store.ConnectTimeout = Duration(DefaultConnectTimeout)
	}

	if c.Thumbnails.Dir == "" {
		c.Thumbnails.Dir = DefaultThumbnailDir
	}
	if c.Thumbnails.FFmpeg == "" {
		c.Thumbnails.FFmpeg = "ffmpeg"
	}
	if c.Thumbnails.Timeout == 0 {
		c.Thumbnails.Timeout = Duration(30 * time.Second)
	}

	if c.Validation.Timeout == 0 {
		c.Validation.Timeout = Duration(10 * time.Second)
	}
	if c.Validation.Transport == "" {
		c.Validation.Transport = "tcp"
	}

	if c.Report.Path == "" {
		c.Report.Path = DefaultReportPath
	}
	if len(c.Report.Formats) == 0 {
		c.Report.Formats = []string{"json"}
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "console"
	}
}

// Validate checks the values a run cannot proceed without
func (c *Config) Validate() error {
	if err := ValidatePorts(c.Ports); err != nil {
		return err
	}
	if c.Scan.Timing < 0 || c.Scan.Timing > 5 {
		return fmt.Errorf("%w: scan timing %d out of range 0-5", ErrInvalidConfig, c.Scan.Timing)
	}
	if c.Attack.Interval < 0 {
		return fmt.Errorf("%w: negative attack interval", ErrInvalidConfig)
	}
	if c.Store.Backend == "postgres" && c.Store.PostgresDSN == "" {
		return fmt.Errorf("%w: postgres backend requires store.postgres_dsn", ErrInvalidConfig)
	}
	switch c.Validation.Transport {
	case "tcp", "udp":
	default:
		return fmt.Errorf("%w: unknown validation transport %q", ErrInvalidConfig, c.Validation.Transport)
	}
	for _, f := range c.Report.Formats {
		switch f {
		case "json", "yaml", "m3u":
		default:
			return fmt.Errorf("%w: unknown report format %q", ErrInvalidConfig, f)
		}
	}
	return nil
}

// ValidatePorts checks a port list in nmap format.
// Supported: "554,8554" or "1-1000" or "554,8000-8100"
func ValidatePorts(portRange string) error {
	if strings.TrimSpace(portRange) == "" {
		return fmt.Errorf("%w: empty port list", ErrInvalidConfig)
	}
	for _, part := range strings.Split(portRange, ",") {
		part = strings.TrimSpace(part)
		if lo, hi, ok := strings.Cut(part, "-"); ok {
			start, err := parsePort(lo)
			if err != nil {
				return err
			}
			end, err := parsePort(hi)
			if err != nil {
				return err
			}
			if end < start {
				return fmt.Errorf("%w: invalid port range %s", ErrInvalidConfig, part)
			}
			continue
		}
		if _, err := parsePort(part); err != nil {
			return err
		}
	}
	return nil
}

func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || port < 1 || port > 65535 {
		return 0, fmt.Errorf("%w: invalid port number %q", ErrInvalidConfig, s)
	}
	return port, nil
}

// Summary returns a human-readable config summary
func (c *Config) Summary() string {
	summary := fmt.Sprintf("Targets: %v, Ports: %s\n", c.Targets, c.Ports)
	summary += fmt.Sprintf("Store: %s, Workers: %d, Probe timeout: %s, Interval: %s\n",
		c.Store.Backend, c.Attack.MaxWorkers, c.Attack.Timeout.Duration(), c.Attack.Interval.Duration())
	summary += fmt.Sprintf("Report: %s (%s)", c.Report.Path, strings.Join(c.Report.Formats, ","))
	return summary
}
