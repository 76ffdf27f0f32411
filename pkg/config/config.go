// Package config loads the AutoAct YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root of the configuration file.
type Config struct {
	KnowledgeBase KnowledgeBaseConfig `yaml:"knowledge_base" json:"knowledge_base"`
	Browser       BrowserConfig       `yaml:"browser" json:"browser"`
	Toolbar       ToolbarConfig       `yaml:"toolbar" json:"toolbar"`
	Bus           BusConfig           `yaml:"bus" json:"bus"`
	Logging       LoggingConfig       `yaml:"logging" json:"logging"`
}

// KnowledgeBaseConfig locates the context store.
type KnowledgeBaseConfig struct {
	// Path is the SQLite database file. A leading ~ is expanded.
	Path string `yaml:"path" json:"path"`

	// Watch refetches contexts everywhere when the file changes on disk.
	Watch bool `yaml:"watch" json:"watch"`
}

// BrowserConfig controls the browser host.
type BrowserConfig struct {
	Headless bool   `yaml:"headless" json:"headless"`
	StartURL string `yaml:"start_url" json:"start_url"`

	// Matches and Excludes are URL globs deciding which pages get a
	// content script. Excludes take precedence.
	Matches  []string `yaml:"matches" json:"matches"`
	Excludes []string `yaml:"excludes" json:"excludes"`

	Viewport Viewport `yaml:"viewport" json:"viewport"`
}

// Viewport is the browser window size.
type Viewport struct {
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
}

// ToolbarConfig tunes the floating add button.
type ToolbarConfig struct {
	ControlID    string  `yaml:"control_id" json:"control_id"`
	AnchorOffset float64 `yaml:"anchor_offset" json:"anchor_offset"`
}

// BusConfig tunes message delivery.
type BusConfig struct {
	RequestTimeout        time.Duration `yaml:"request_timeout" json:"request_timeout"`
	DiscardStaleResponses bool          `yaml:"discard_stale_responses" json:"discard_stale_responses"`
}

// LoggingConfig defines logging configuration
type LoggingConfig struct {
	// Verbosity controls logging level: quiet, normal, verbose, debug
	Verbosity string `yaml:"verbosity" json:"verbosity"`

	// Directory holds the session log files. Empty means ~/.autoact/logs.
	Directory string `yaml:"directory" json:"directory"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		KnowledgeBase: KnowledgeBaseConfig{
			Path:  "~/.autoact/knowledgebase.db",
			Watch: true,
		},
		Browser: BrowserConfig{
			StartURL: "https://example.com",
			Matches:  []string{"https://*", "http://*"},
			Excludes: []string{"chrome://*", "about:*"},
			Viewport: Viewport{Width: 1280, Height: 720},
		},
		Toolbar: ToolbarConfig{
			ControlID:    "btnAddToKnowledgebase",
			AnchorOffset: 4,
		},
		Bus: BusConfig{
			RequestTimeout:        10 * time.Second,
			DiscardStaleResponses: true,
		},
		Logging: LoggingConfig{
			Verbosity: "normal",
		},
	}
}

// DefaultPath returns ~/.autoact/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".autoact", "config.yaml"), nil
}

// Load reads the configuration at path over the defaults and validates
// it. An empty path reads DefaultPath if that file exists.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
		// No file: defaults.
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if strings.TrimSpace(c.KnowledgeBase.Path) == "" {
		return fmt.Errorf("knowledge_base.path is required")
	}

	if c.Browser.Viewport.Width < 0 || c.Browser.Viewport.Height < 0 {
		return fmt.Errorf("browser.viewport cannot be negative")
	}
	if _, err := NewURLMatcher(c.Browser.Matches, c.Browser.Excludes); err != nil {
		return err
	}

	if strings.TrimSpace(c.Toolbar.ControlID) == "" {
		return fmt.Errorf("toolbar.control_id is required")
	}
	if c.Toolbar.AnchorOffset < 0 {
		return fmt.Errorf("toolbar.anchor_offset cannot be negative")
	}

	if c.Bus.RequestTimeout <= 0 {
		return fmt.Errorf("bus.request_timeout must be positive")
	}

	// Set default verbosity if not specified
	c.Logging.Verbosity = strings.ToLower(strings.TrimSpace(c.Logging.Verbosity))
	if c.Logging.Verbosity == "" {
		c.Logging.Verbosity = "normal"
	}
	validLevels := map[string]bool{
		"quiet":   true,
		"normal":  true,
		"verbose": true,
		"debug":   true,
	}
	if !validLevels[c.Logging.Verbosity] {
		return fmt.Errorf("invalid logging verbosity: %s (must be 'quiet', 'normal', 'verbose', or 'debug')", c.Logging.Verbosity)
	}

	return nil
}

// KnowledgeBasePath returns the database path with ~ expanded.
func (c *Config) KnowledgeBasePath() (string, error) {
	return ExpandHome(c.KnowledgeBase.Path)
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
