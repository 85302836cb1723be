// Package dict loads the credential and route dictionaries used by the
// attack engine. An empty path selects the embedded defaults.
package dict

import (
	"bufio"
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed defaults/credentials.json
var defaultCredentials []byte

//go:embed defaults/routes
var defaultRoutes []byte

// ErrEmptyDictionary is returned when a dictionary yields no entries
var ErrEmptyDictionary = errors.New("dictionary is empty")

// CredentialsFile is the on-disk credentials format. JSON documents parse
// as YAML, so both are accepted.
type CredentialsFile struct {
	Usernames []string `yaml:"usernames"`
	Passwords []string `yaml:"passwords"`

	// Legacy singular keys
	Username []string `yaml:"username,omitempty"`
	Password []string `yaml:"password,omitempty"`
}

// RoutesFile is the JSON routes format
type RoutesFile struct {
	URLs []string `yaml:"urls"`
}

// Dictionary holds the ordered candidate lists
type Dictionary struct {
	usernames []string
	passwords []string
	routes    []string
}

// New creates a dictionary from in-memory lists
func New(usernames, passwords, routes []string) Dictionary {
	return Dictionary{usernames: usernames, passwords: passwords, routes: routes}
}

// Usernames returns candidate usernames in trial order
func (d Dictionary) Usernames() []string { return d.usernames }

// Passwords returns candidate passwords in trial order
func (d Dictionary) Passwords() []string { return d.passwords }

// Routes returns candidate routes in trial order
func (d Dictionary) Routes() []string { return d.routes }

// Load reads both dictionaries
func Load(credentialsPath, routesPath string) (Dictionary, error) {
	usernames, passwords, err := LoadCredentials(credentialsPath)
	if err != nil {
		return Dictionary{}, err
	}
	routes, err := LoadRoutes(routesPath)
	if err != nil {
		return Dictionary{}, err
	}
	return New(usernames, passwords, routes), nil
}

// LoadCredentials reads a credentials dictionary from path or the defaults
func LoadCredentials(path string) (usernames, passwords []string, err error) {
	data := defaultCredentials
	source := "embedded credentials"
	if strings.TrimSpace(path) != "" {
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read credentials dictionary %s: %w", path, err)
		}
		source = path
	}
	return ParseCredentials(data, source)
}

// ParseCredentials decodes a credentials document
func ParseCredentials(data []byte, source string) (usernames, passwords []string, err error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil, fmt.Errorf("%s: %w", source, ErrEmptyDictionary)
	}

	var file CredentialsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, nil, fmt.Errorf("failed to parse %s: %w", source, err)
	}

	usernames = append(file.Usernames, file.Username...)
	passwords = append(file.Passwords, file.Password...)
	if len(usernames) == 0 || len(passwords) == 0 {
		return nil, nil, fmt.Errorf("%s: need at least one username and one password: %w", source, ErrEmptyDictionary)
	}
	return usernames, passwords, nil
}

// LoadRoutes reads a routes dictionary from path or the defaults
func LoadRoutes(path string) ([]string, error) {
	if strings.TrimSpace(path) == "" {
		return ParseRoutes(defaultRoutes, "embedded routes")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read routes dictionary %s: %w", path, err)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return ParseRoutesJSON(data, path)
	}
	return ParseRoutes(data, path)
}

// ParseRoutes reads one route per line. Blank lines and lines starting
// with # are skipped; use "/" for the root route.
func ParseRoutes(data []byte, source string) ([]string, error) {
	var routes []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		routes = append(routes, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", source, err)
	}
	if len(routes) == 0 {
		return nil, fmt.Errorf("%s: %w", source, ErrEmptyDictionary)
	}
	return routes, nil
}

// ParseRoutesJSON reads a {"urls": [...]} document
func ParseRoutesJSON(data []byte, source string) ([]string, error) {
	var file RoutesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", source, err)
	}
	if len(file.URLs) == 0 {
		return nil, fmt.Errorf("%s: %w", source, ErrEmptyDictionary)
	}
	return file.URLs, nil
}
