package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".authcrawl"

// XDGConfigFile is the file name looked up in the XDG config directory.
const XDGConfigFile = "config.yaml"

// Environment variables read by ApplyEnv. They keep credentials out of
// the process arguments.
const (
	EnvUsername = "AUTHCRAWL_USERNAME"
	EnvPassword = "AUTHCRAWL_PASSWORD"
	EnvCookie   = "AUTHCRAWL_COOKIE"
)

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// LoadConfigFile decodes the YAML file at path. Unknown keys are rejected
// so that a misspelled option does not silently fall back to its default.
// An empty file yields an empty File.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is chosen by the user
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
	}
	if err != nil {
		return nil, err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid configuration %s: %w", path, err)
	}
	return &f, nil
}

// searchPaths lists the implicit configuration locations, most specific
// first: the working directory, the home directory, then XDG.
func searchPaths() []string {
	var paths []string
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, DefaultConfigFile))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, DefaultConfigFile))
	}
	return append(paths, filepath.Join(XDGConfigDir(), XDGConfigFile))
}

// FindConfigFile returns configPath when it exists, or the first existing
// implicit location when configPath is empty. It returns "" when nothing
// is found.
func FindConfigFile(configPath string) string {
	candidates := searchPaths()
	if configPath != "" {
		candidates = []string{configPath}
	}
	for _, path := range candidates {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// ApplyEnv overrides credentials from the environment. getenv is usually
// os.Getenv.
func ApplyEnv(c *Config, getenv func(string) string) {
	setString(&c.Username, getenv(EnvUsername))
	setString(&c.Password, getenv(EnvPassword))
	setString(&c.Cookie, getenv(EnvCookie))
}
