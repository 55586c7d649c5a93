// Package config loads the livecontrol YAML configuration.
//
// A minimal file connects one account and enables comment listening:
//
//	accounts:
//	  - id: shop-a
//	    platform: douyin
//	auto_reply:
//	  rules:
//	    - pattern: "*price*"
//	      reply: "The price is in the pinned link"
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultDir is the directory under the user's home holding the config and logs.
	DefaultDir = ".livecontrol"

	// DefaultFile is the config file name inside DefaultDir.
	DefaultFile = "config.yaml"

	DefaultSource        = "control"
	DefaultBroadcastAddr = "127.0.0.1:12354"
	DefaultModel         = "gpt-4o-mini"
	DefaultContextTokens = 2000
	DefaultSpeakInterval = 30 * time.Second
	DefaultPopupInterval = 30 * time.Second

	minInterval = time.Second
)

// Config is the whole configuration file.
type Config struct {
	Browser  BrowserConfig   `yaml:"browser"`
	Accounts []AccountConfig `yaml:"accounts"`

	AutoReply AutoReplyConfig `yaml:"auto_reply"`
	AutoSpeak AutoSpeakConfig `yaml:"auto_speak"`
	AutoPopup AutoPopupConfig `yaml:"auto_popup"`

	// AutoStartOnLive starts AutoStartTasks whenever an account goes live.
	AutoStartOnLive bool     `yaml:"auto_start_on_live"`
	AutoStartTasks  []string `yaml:"auto_start_tasks"`
}

// BrowserConfig selects the Chromium binary.
type BrowserConfig struct {
	ChromePath string `yaml:"chrome_path"`
	Headless   bool   `yaml:"headless"`
}

// AccountConfig is one account to connect.
type AccountConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Platform string `yaml:"platform"`

	// StorageState points at a Playwright storage state file with saved cookies.
	StorageState string `yaml:"storage_state"`
}

// AutoReplyConfig configures comment listening and replies.
type AutoReplyConfig struct {
	Source    string          `yaml:"source"`
	Rules     []RuleConfig    `yaml:"rules"`
	AI        AIConfig        `yaml:"ai"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
}

// RuleConfig is a canned reply for comments matching a glob pattern.
type RuleConfig struct {
	Pattern string `yaml:"pattern"`
	Reply   string `yaml:"reply"`
}

// AIConfig configures language model replies.
type AIConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Model         string `yaml:"model"`
	BaseURL       string `yaml:"base_url"`
	APIKey        string `yaml:"api_key"`
	SystemPrompt  string `yaml:"system_prompt"`
	ContextTokens int    `yaml:"context_tokens"`
}

// BroadcastConfig configures the websocket comment feed.
type BroadcastConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// AutoSpeakConfig configures scripted messages.
type AutoSpeakConfig struct {
	Messages []string `yaml:"messages"`

	// Interval is the minimum wait between messages, MaxInterval the maximum.
	Interval    time.Duration `yaml:"interval"`
	MaxInterval time.Duration `yaml:"max_interval"`
	Random      bool          `yaml:"random"`
	ExtraSpaces bool          `yaml:"extra_spaces"`
}

// AutoPopupConfig configures the product popup loop.
type AutoPopupConfig struct {
	ProductIDs  []int         `yaml:"product_ids"`
	Interval    time.Duration `yaml:"interval"`
	MaxInterval time.Duration `yaml:"max_interval"`
	Random      bool          `yaml:"random"`
}

// Example is an annotated configuration covering every section.
//
//go:embed example.yaml
var Example []byte

// DefaultPath returns ~/.livecontrol/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, DefaultDir, DefaultFile), nil
}

// Default returns a configuration with every default applied and no accounts.
func Default() *Config {
	c := &Config{}
	c.ApplyDefaults()
	return c
}

// Load reads path, applies defaults and validates. An empty path means
// DefaultPath, which may be absent; an explicit path must exist.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse decodes YAML, applies defaults and validates.
func Parse(data []byte) (*Config, error) {
	c := &Config{}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// WriteExample writes the annotated example configuration to path unless a
// file already exists there.
func WriteExample(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, Example, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	for i := range c.Accounts {
		if c.Accounts[i].Name == "" {
			c.Accounts[i].Name = c.Accounts[i].ID
		}
	}

	r := &c.AutoReply
	if r.Source == "" {
		r.Source = DefaultSource
	}
	if r.Broadcast.Addr == "" {
		r.Broadcast.Addr = DefaultBroadcastAddr
	}
	if r.AI.Model == "" {
		r.AI.Model = DefaultModel
	}
	if r.AI.ContextTokens == 0 {
		r.AI.ContextTokens = DefaultContextTokens
	}

	s := &c.AutoSpeak
	if s.Interval == 0 {
		s.Interval = DefaultSpeakInterval
	}
	if s.MaxInterval == 0 {
		s.MaxInterval = s.Interval
	}

	p := &c.AutoPopup
	if p.Interval == 0 {
		p.Interval = DefaultPopupInterval
	}
	if p.MaxInterval == 0 {
		p.MaxInterval = p.Interval
	}
}

// Validate checks the configuration after defaults are applied.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Accounts))
	for i, a := range c.Accounts {
		if a.ID == "" {
			return fmt.Errorf("accounts[%d]: id is required", i)
		}
		if seen[a.ID] {
			return fmt.Errorf("accounts[%d]: duplicate id %q", i, a.ID)
		}
		seen[a.ID] = true
		if a.Platform == "" {
			return fmt.Errorf("account %q: platform is required", a.ID)
		}
	}

	for i, r := range c.AutoReply.Rules {
		if r.Pattern == "" || r.Reply == "" {
			return fmt.Errorf("auto_reply.rules[%d]: pattern and reply are required", i)
		}
	}
	if c.AutoReply.AI.ContextTokens < 0 {
		return fmt.Errorf("auto_reply.ai.context_tokens cannot be negative")
	}

	if err := validateInterval("auto_speak", c.AutoSpeak.Interval, c.AutoSpeak.MaxInterval); err != nil {
		return err
	}
	if err := validateInterval("auto_popup", c.AutoPopup.Interval, c.AutoPopup.MaxInterval); err != nil {
		return err
	}
	for _, id := range c.AutoPopup.ProductIDs {
		if id <= 0 {
			return fmt.Errorf("auto_popup.product_ids: %d is not a valid product id", id)
		}
	}

	validTasks := map[string]bool{"autoReply": true, "autoSpeak": true, "autoPopup": true}
	for _, t := range c.AutoStartTasks {
		if !validTasks[t] {
			return fmt.Errorf("invalid auto_start_tasks entry: %s (must be 'autoReply', 'autoSpeak' or 'autoPopup')", t)
		}
	}
	return nil
}

func validateInterval(section string, lo, hi time.Duration) error {
	if lo < minInterval {
		return fmt.Errorf("%s.interval must be at least %s, got %s", section, minInterval, lo)
	}
	if hi < lo {
		return fmt.Errorf("%s.max_interval (%s) is shorter than interval (%s)", section, hi, lo)
	}
	return nil
}

// Account returns the account with id.
func (c *Config) Account(id string) (AccountConfig, bool) {
	for _, a := range c.Accounts {
		if a.ID == id {
			return a, true
		}
	}
	return AccountConfig{}, false
}
