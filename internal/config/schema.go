package config

import (
	"time"
)

// Config is the root configuration structure
type Config struct {
	Version      int              `yaml:"version"`
	Targets      []string         `yaml:"targets"`
	Ports        string           `yaml:"ports"`
	Scan         ScanConfig       `yaml:"scan"`
	Dictionaries DictionaryConfig `yaml:"dictionaries"`
	Attack       AttackConfig     `yaml:"attack"`
	Store        StoreConfig      `yaml:"store"`
	Thumbnails   ThumbnailConfig  `yaml:"thumbnails"`
	Validation   ValidationConfig `yaml:"validation"`
	Report       ReportConfig     `yaml:"report"`
	Logging      LoggingConfig    `yaml:"logging"`
}

// ScanConfig controls the network mapper
type ScanConfig struct {
	Dir               string   `yaml:"dir"`               // where XML reports are written
	Timing            int      `yaml:"timing"`            // nmap timing template, 0-5
	ServiceDetection  bool     `yaml:"service_detection"` // -sV
	SkipHostDiscovery bool     `yaml:"skip_host_discovery,omitempty"`
	Timeout           Duration `yaml:"timeout"`
}

// DictionaryConfig points at the credential and route dictionaries.
// Empty paths fall back to the built-in dictionaries.
type DictionaryConfig struct {
	Credentials string `yaml:"credentials,omitempty"`
	Routes      string `yaml:"routes,omitempty"`
}

// AttackConfig tunes the attack engine
type AttackConfig struct {
	Timeout    Duration `yaml:"timeout"`     // per probe
	Interval   Duration `yaml:"interval"`    // minimum gap between probes, 0 = unpaced
	MaxWorkers int      `yaml:"max_workers"` // concurrent records
}

// StoreConfig selects and configures the stream store backend
type StoreConfig struct {
	Backend        string   `yaml:"backend"`
	PluginDir      string   `yaml:"plugin_dir"`
	Symbol         string   `yaml:"symbol,omitempty"`
	SQLitePath     string   `yaml:"sqlite_path,omitempty"`
	PostgresDSN    string   `yaml:"postgres_dsn,omitempty"`
	ConnectTimeout Duration `yaml:"connect_timeout"`

	// Options are passed through to plugin backends
	Options map[string]string `yaml:"options,omitempty"`
}

// ThumbnailConfig controls thumbnail generation
type ThumbnailConfig struct {
	Dir     string   `yaml:"dir"`
	FFmpeg  string   `yaml:"ffmpeg"`
	Timeout Duration `yaml:"timeout"`
}

// ValidationConfig controls stream playback checks
type ValidationConfig struct {
	Timeout   Duration `yaml:"timeout"`
	Transport string   `yaml:"transport"` // tcp or udp
}

// ReportConfig controls where results are written
type ReportConfig struct {
	Path    string   `yaml:"path"`
	Formats []string `yaml:"formats"` // json, yaml, m3u
}

// LoggingConfig mirrors the logger options
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Output     string `yaml:"output"` // console, file, both
	FilePath   string `yaml:"file_path,omitempty"`
	MaxSize    int    `yaml:"max_size,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty"`
	MaxAge     int    `yaml:"max_age,omitempty"`
}

// Duration wraps time.Duration for YAML unmarshaling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
