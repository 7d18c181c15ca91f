// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for rigchat.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/jeranaias/rigchat/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete rigchat configuration.
type Config struct {
	Ollama  OllamaConfig  `toml:"ollama"`
	Storage StorageConfig `toml:"storage"`
	UI      UIConfig      `toml:"ui"`
	Log     LogConfig     `toml:"log"`
}

// OllamaConfig contains the backend settings.
type OllamaConfig struct {
	// URL is the Ollama server address
	URL string `toml:"url"`
	// DefaultModel is bound to conversations created without a model
	DefaultModel string `toml:"default_model"`
	// ConnectTimeout bounds each connection check and model listing
	ConnectTimeout Duration `toml:"connect_timeout"`
	// GenerateTimeout bounds a whole generation; 0 disables it
	GenerateTimeout Duration `toml:"generate_timeout"`
}

// StorageConfig contains the database location.
type StorageConfig struct {
	// Path of the SQLite database; empty means ~/.rigchat/rigchat.db
	Path string `toml:"path"`
}

// UIConfig contains UI configuration.
type UIConfig struct {
	// Theme is the UI theme: "dark", "light", "auto"
	Theme string `toml:"theme"`
	// RenderMarkdown renders responses as markdown
	RenderMarkdown bool `toml:"render_markdown"`
}

// LogConfig contains logging configuration.
type LogConfig struct {
	// Level is one of trace, debug, info, warn, error
	Level string `toml:"level"`
	// Path of the log file; empty means ~/.rigchat/logs/rigchat.log
	Path string `toml:"path"`
}

// Duration is a time.Duration written as "5s" in TOML.
type Duration struct {
	time.Duration
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// DefaultOllamaURL uses an explicit IPv4 address to avoid IPv6 resolution issues.
const DefaultOllamaURL = "http://127.0.0.1:11434"

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Ollama: OllamaConfig{
			URL:             DefaultOllamaURL,
			DefaultModel:    "",
			ConnectTimeout:  Duration{5 * time.Second},
			GenerateTimeout: Duration{0},
		},
		UI: UIConfig{
			Theme:          "auto",
			RenderMarkdown: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the rigchat configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".rigchat"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from ~/.rigchat/config.toml, falling back to
// defaults when the file does not exist. Environment overrides are applied last.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		cfg := Default()
		cfg.ApplyEnvOverrides()
		return cfg, err
	}

	if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
		cfg := Default()
		cfg.ApplyEnvOverrides()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
		return cfg, nil
	}

	return LoadFromPath(path)
}

// LoadTOML decodes a TOML file over cfg and fills missing values.
func LoadTOML(cfg *Config, path string) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	fillDefaults(cfg)
	return nil
}

// LoadFromPath loads configuration from a specific file path with full validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	// Booleans cannot be told apart from "unset", so start from defaults.
	if err := LoadTOML(cfg, path); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}

	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// fillDefaults fills in any missing values with defaults.
func fillDefaults(cfg *Config) {
	defaults := Default()

	if cfg.Ollama.URL == "" {
		cfg.Ollama.URL = defaults.Ollama.URL
	}
	if cfg.Ollama.ConnectTimeout.Duration == 0 {
		cfg.Ollama.ConnectTimeout = defaults.Ollama.ConnectTimeout
	}
	if cfg.UI.Theme == "" {
		cfg.UI.Theme = defaults.UI.Theme
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes the configuration atomically with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("# rigchat configuration file\n\n")
	if err := cfg.WriteTOML(&buf); err != nil {
		return err
	}

	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// WriteTOML encodes the configuration as TOML.
func (c *Config) WriteTOML(w io.Writer) error {
	if err := toml.NewEncoder(w).Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// =============================================================================
// KEY ACCESS
// =============================================================================

// Keys lists the settable configuration keys in file order.
var Keys = []string{
	"ollama.url",
	"ollama.default_model",
	"ollama.connect_timeout",
	"ollama.generate_timeout",
	"storage.path",
	"ui.theme",
	"ui.render_markdown",
	"log.level",
	"log.path",
}

// Set assigns value to a dotted key such as "ollama.url". The result is
// not validated; call Validate before saving.
func (c *Config) Set(key, value string) error {
	switch strings.ToLower(key) {
	case "ollama.url":
		c.Ollama.URL = value
	case "ollama.default_model":
		c.Ollama.DefaultModel = value
	case "ollama.connect_timeout":
		return c.Ollama.ConnectTimeout.UnmarshalText([]byte(value))
	case "ollama.generate_timeout":
		return c.Ollama.GenerateTimeout.UnmarshalText([]byte(value))
	case "storage.path":
		c.Storage.Path = value
	case "ui.theme":
		c.UI.Theme = value
	case "ui.render_markdown":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("ui.render_markdown: %w", err)
		}
		c.UI.RenderMarkdown = b
	case "log.level":
		c.Log.Level = value
	case "log.path":
		c.Log.Path = value
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}

// Get returns the value of a dotted key as it would be written with Set.
func (c *Config) Get(key string) (string, error) {
	switch strings.ToLower(key) {
	case "ollama.url":
		return c.Ollama.URL, nil
	case "ollama.default_model":
		return c.Ollama.DefaultModel, nil
	case "ollama.connect_timeout":
		return c.Ollama.ConnectTimeout.String(), nil
	case "ollama.generate_timeout":
		return c.Ollama.GenerateTimeout.String(), nil
	case "storage.path":
		return c.Storage.Path, nil
	case "ui.theme":
		return c.UI.Theme, nil
	case "ui.render_markdown":
		return strconv.FormatBool(c.UI.RenderMarkdown), nil
	case "log.level":
		return c.Log.Level, nil
	case "log.path":
		return c.Log.Path, nil
	default:
		return "", fmt.Errorf("unknown config key: %s", key)
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

var (
	validThemes    = map[string]bool{"auto": true, "dark": true, "light": true}
	validLogLevels = map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true, "disabled": true}
)

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if u, err := url.Parse(c.Ollama.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "ollama.url",
			Message: fmt.Sprintf("invalid URL '%s', must be http(s)://host[:port]", c.Ollama.URL),
		})
	}
	if c.Ollama.ConnectTimeout.Duration < 0 {
		errs = append(errs, ValidationError{Field: "ollama.connect_timeout", Message: "must not be negative"})
	}
	if c.Ollama.GenerateTimeout.Duration < 0 {
		errs = append(errs, ValidationError{Field: "ollama.generate_timeout", Message: "must not be negative"})
	}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: auto, dark, light", c.UI.Theme),
		})
	}
	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("invalid level '%s'", c.Log.Level),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - RIGCHAT_OLLAMA_URL: overrides ollama.url
//   - RIGCHAT_MODEL: overrides ollama.default_model
//   - RIGCHAT_LOG_LEVEL: overrides log.level
//   - RIGCHAT_DB: overrides storage.path
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("RIGCHAT_OLLAMA_URL"); v != "" {
		c.Ollama.URL = v
	}
	if v := os.Getenv("RIGCHAT_MODEL"); v != "" {
		c.Ollama.DefaultModel = v
	}
	if v := os.Getenv("RIGCHAT_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("RIGCHAT_DB"); v != "" {
		c.Storage.Path = v
	}
}
