// Package config loads the YAML (or JSON) configuration shared by the
// sigpolicy binaries.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"xdao.co/sigpolicy/compliance"
)

type Config struct {
	Logging    LogConfig        `json:"logging" yaml:"logging"`
	Validation ValidationConfig `json:"validation" yaml:"validation"`
	Fetch      FetchConfig      `json:"fetch" yaml:"fetch"`
	Stores     StoresConfig     `json:"stores" yaml:"stores"`
	Policies   []PolicyConfig   `json:"policies" yaml:"policies"`
	Metrics    MetricsConfig    `json:"metrics" yaml:"metrics"`
	Server     ServerConfig     `json:"server" yaml:"server"`
}

type LogConfig struct {
	Level      string `json:"level" yaml:"level"`           // debug, info, warn, error
	OutputPath string `json:"outputPath" yaml:"outputPath"` // file path, "stdout" or "stderr"
	Encoding   string `json:"encoding" yaml:"encoding"`     // json or console
}

type ValidationConfig struct {
	Mode           string `json:"mode" yaml:"mode"` // permissive or strict
	RejectImplicit bool   `json:"rejectImplicit" yaml:"rejectImplicit"`
}

type FetchConfig struct {
	Disabled  bool     `json:"disabled" yaml:"disabled"`
	Timeout   Duration `json:"timeout" yaml:"timeout"`
	MaxBytes  int64    `json:"maxBytes" yaml:"maxBytes"`
	UserAgent string   `json:"userAgent" yaml:"userAgent"`
}

// StoresConfig lists policy document store backends in read-fallback order.
type StoresConfig struct {
	// WritePolicy is "first" (write to the first backend) or "all" (replicate).
	WritePolicy string          `json:"writePolicy" yaml:"writePolicy"`
	Backends    []BackendConfig `json:"backends" yaml:"backends"`
}

type BackendConfig struct {
	// Name labels the backend in logs; it defaults to Type.
	Name    string            `json:"name" yaml:"name"`
	Type    string            `json:"type" yaml:"type"`
	Options map[string]string `json:"options" yaml:"options"`
}

// PolicyConfig maps a policy identifier or URL to a local document copy.
type PolicyConfig struct {
	Identifier string `json:"identifier" yaml:"identifier"`
	URL        string `json:"url" yaml:"url"`
	File       string `json:"file" yaml:"file"`
	MediaType  string `json:"mediaType" yaml:"mediaType"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Address string `json:"address" yaml:"address"`
	Path    string `json:"path" yaml:"path"`
}

type ServerConfig struct {
	Listen      string `json:"listen" yaml:"listen"`
	MaxMsgBytes int    `json:"maxMsgBytes" yaml:"maxMsgBytes"`
}

const (
	WriteFirst = "first"
	WriteAll   = "all"
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

// Load reads and parses the configuration file. Relative policy file paths
// resolve against the directory holding the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data, strings.ToLower(filepath.Ext(path)))
	if err != nil {
		return nil, err
	}
	base := filepath.Dir(path)
	for i := range cfg.Policies {
		if f := cfg.Policies[i].File; f != "" && !filepath.IsAbs(f) {
			cfg.Policies[i].File = filepath.Join(base, f)
		}
	}
	return cfg, nil
}

// Parse decodes data as YAML or JSON by extension (".yaml", ".yml", ".json").
// Any other extension tries JSON first and falls back to YAML.
func Parse(data []byte, ext string) (*Config, error) {
	var cfg Config
	var parseErr error
	switch ext {
	case ".yaml", ".yml":
		parseErr = yaml.Unmarshal(data, &cfg)
	case ".json":
		parseErr = json.Unmarshal(data, &cfg)
	default:
		parseErr = json.Unmarshal(data, &cfg)
		if parseErr != nil {
			cfg = Config{}
			if yamlErr := yaml.Unmarshal(data, &cfg); yamlErr != nil {
				return nil, fmt.Errorf("failed to parse config file (tried JSON and YAML): %w", parseErr)
			}
			parseErr = nil
		}
	}
	if parseErr != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", parseErr)
	}

	setDefaults(&cfg)
	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.OutputPath == "" {
		cfg.Logging.OutputPath = "stderr"
	}
	if cfg.Logging.Encoding == "" {
		cfg.Logging.Encoding = "console"
	}

	if cfg.Validation.Mode == "" {
		cfg.Validation.Mode = compliance.Permissive.String()
	}

	if cfg.Fetch.Timeout == 0 {
		cfg.Fetch.Timeout = Duration(30 * time.Second)
	}
	if cfg.Fetch.MaxBytes == 0 {
		cfg.Fetch.MaxBytes = 16 << 20
	}
	if cfg.Fetch.UserAgent == "" {
		cfg.Fetch.UserAgent = "sigpolicy/1"
	}

	if cfg.Stores.WritePolicy == "" {
		cfg.Stores.WritePolicy = WriteFirst
	}
	for i := range cfg.Stores.Backends {
		if cfg.Stores.Backends[i].Name == "" {
			cfg.Stores.Backends[i].Name = cfg.Stores.Backends[i].Type
		}
	}

	if cfg.Metrics.Address == "" {
		cfg.Metrics.Address = ":2112"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	if cfg.Server.Listen == "" {
		cfg.Server.Listen = "127.0.0.1:7777"
	}
	if cfg.Server.MaxMsgBytes == 0 {
		cfg.Server.MaxMsgBytes = 16 << 20
	}
}

func validateConfig(cfg *Config) error {
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q must be debug, info, warn or error", cfg.Logging.Level)
	}
	switch cfg.Logging.Encoding {
	case "json", "console":
	default:
		return fmt.Errorf("logging.encoding %q must be json or console", cfg.Logging.Encoding)
	}

	if _, err := compliance.ParseMode(cfg.Validation.Mode); err != nil {
		return fmt.Errorf("validation.mode: %w", err)
	}

	if cfg.Fetch.Timeout < 0 {
		return fmt.Errorf("fetch.timeout must not be negative")
	}
	if cfg.Fetch.MaxBytes < 0 {
		return fmt.Errorf("fetch.maxBytes must not be negative")
	}

	switch cfg.Stores.WritePolicy {
	case WriteFirst, WriteAll:
	default:
		return fmt.Errorf("stores.writePolicy %q must be %q or %q", cfg.Stores.WritePolicy, WriteFirst, WriteAll)
	}
	seen := make(map[string]bool, len(cfg.Stores.Backends))
	for i, b := range cfg.Stores.Backends {
		if b.Type == "" {
			return fmt.Errorf("stores.backends[%d].type is required", i)
		}
		if seen[b.Name] {
			return fmt.Errorf("stores.backends[%d]: duplicate name %q", i, b.Name)
		}
		seen[b.Name] = true
	}

	for i, p := range cfg.Policies {
		if p.File == "" {
			return fmt.Errorf("policies[%d].file is required", i)
		}
		if p.Identifier == "" && p.URL == "" {
			return fmt.Errorf("policies[%d] needs an identifier or url", i)
		}
	}

	if cfg.Server.MaxMsgBytes < 0 {
		return fmt.Errorf("server.maxMsgBytes must not be negative")
	}
	return nil
}
