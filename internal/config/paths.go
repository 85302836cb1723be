package config

import (
	"os"
	"path/filepath"
)

const (
	// EnvConfigPath names an explicit config file
	EnvConfigPath = "CAMSCOUT_CONFIG"
	// ConfigFileName is looked up in the working directory
	ConfigFileName = "camscout.yaml"
	// ConfigDirName is the per-user and system config directory name
	ConfigDirName = "camscout"

	configFile = "config.yaml"
)

// SearchPaths lists the config file candidates in lookup order. Locations
// whose base variable is unset are left out.
func SearchPaths() []string {
	var paths []string
	if explicit := os.Getenv(EnvConfigPath); explicit != "" {
		paths = append(paths, explicit)
	}
	paths = append(paths, ConfigFileName)
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, filepath.Join(xdg, ConfigDirName, configFile))
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		paths = append(paths, filepath.Join(home, ".config", ConfigDirName, configFile))
	}
	return append(paths, filepath.Join("/etc", ConfigDirName, configFile))
}

// FindConfigPath returns the first candidate that is a regular file, made
// absolute when possible, or "" when none exists.
func FindConfigPath() string {
	for _, candidate := range SearchPaths() {
		info, err := os.Stat(candidate)
		if err != nil || info.IsDir() {
			continue
		}
		if abs, err := filepath.Abs(candidate); err == nil {
			return abs
		}
		return candidate
	}
	return ""
}
