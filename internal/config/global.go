// Package config handles the global configuration file and output paths.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// GlobalConfig represents configuration stored in ~/.config/bibfill/config.yml.
// Command-line flags take precedence over every value here.
type GlobalConfig struct {
	Email     string        `yaml:"email,omitempty"`      // Sent to polite APIs (crossref, unpaywall)
	S2APIKey  string        `yaml:"s2_api_key,omitempty"` // Semantic Scholar API key
	Timeout   time.Duration `yaml:"timeout,omitempty"`    // Per-request timeout, e.g. "20s"
	Sources   []string      `yaml:"sources,omitempty"`    // Only query these sources
	DontQuery []string      `yaml:"dont_query,omitempty"` // Never query these sources
	Overwrite []string      `yaml:"overwrite,omitempty"`  // Fields replaced even when set
	CachePath string        `yaml:"cache_path,omitempty"` // SQLite response cache
	CacheTTL  time.Duration `yaml:"cache_ttl,omitempty"`  // Age after which cached responses expire
}

const (
	// GlobalConfigDir is the directory name under XDG_CONFIG_HOME.
	GlobalConfigDir = "bibfill"
	// GlobalConfigFile is the config file name.
	GlobalConfigFile = "config.yml"

	// EnvEmail and EnvS2APIKey override the file when set.
	EnvEmail    = "BIBFILL_EMAIL"
	EnvS2APIKey = "S2_API_KEY"
)

// ErrInvalidConfig is returned when the config file holds unusable values.
var ErrInvalidConfig = errors.New("invalid config")

// GlobalConfigPath returns the path to the global config file.
// Respects XDG_CONFIG_HOME, defaults to ~/.config/bibfill/config.yml.
func GlobalConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, GlobalConfigDir, GlobalConfigFile)
}

// LoadGlobalConfig loads the global configuration file and applies
// environment overrides. A missing file yields an empty config.
func LoadGlobalConfig() (*GlobalConfig, error) {
	path := GlobalConfigPath()
	if path == "" {
		cfg := &GlobalConfig{}
		cfg.applyEnv()
		return cfg, nil
	}
	return LoadFile(path)
}

// LoadFile loads configuration from path, then applies environment
// overrides.
func LoadFile(path string) (*GlobalConfig, error) {
	var cfg GlobalConfig
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("reading global config: %w", err)
	}

	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("%w: negative timeout %s", ErrInvalidConfig, cfg.Timeout)
	}
	if cfg.CacheTTL < 0 {
		return nil, fmt.Errorf("%w: negative cache_ttl %s", ErrInvalidConfig, cfg.CacheTTL)
	}
	cfg.CachePath = ExpandPath(cfg.CachePath)
	cfg.applyEnv()
	return &cfg, nil
}

func (c *GlobalConfig) applyEnv() {
	if v := os.Getenv(EnvEmail); v != "" {
		c.Email = v
	}
	if v := os.Getenv(EnvS2APIKey); v != "" {
		c.S2APIKey = v
	}
}

// HelpfulConfigMessage describes where the config file lives and what it
// may contain.
func HelpfulConfigMessage() string {
	configPath := GlobalConfigPath()
	return fmt.Sprintf(`Optional settings live in %s, for example:

  email: you@example.org
  s2_api_key: ...
  timeout: 20s
  dont_query: [researchr]
  cache_path: ~/.cache/bibfill/responses.db
  cache_ttl: 720h

%s and %s in the environment (or a .env file) override the file.`,
		configPath, EnvEmail, EnvS2APIKey)
}
