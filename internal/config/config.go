// Package config handles TOML configuration parsing and validation for
// the ACD daemon.
package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/ipv4acd/ipv4acd/internal/acd"
	"github.com/ipv4acd/ipv4acd/internal/events"
)

// Config is the top-level configuration for acdprobed.
type Config struct {
	LogLevel  string           `toml:"log_level"`
	Instances []InstanceConfig `toml:"instance"`
	Hooks     HooksConfig      `toml:"hooks"`
	API       APIConfig        `toml:"api"`
}

// InstanceConfig describes one watched address: one acd.Detector.
type InstanceConfig struct {
	Interface string `toml:"interface"`
	Address   string `toml:"address"`
	MAC       string `toml:"mac"` // explicit hardware address, or "" to read the interface's
	Priority  int    `toml:"priority"`
}

// HooksConfig holds event hook settings shared by every instance.
type HooksConfig struct {
	EventBufferSize   int           `toml:"event_buffer_size"`
	ScriptConcurrency int           `toml:"script_concurrency"`
	ScriptTimeout     string        `toml:"script_timeout"`
	Scripts           []ScriptHook  `toml:"script"`
	Webhooks          []WebhookHook `toml:"webhook"`
}

// ScriptHook defines a script hook.
type ScriptHook struct {
	Name      string   `toml:"name"`
	Events    []string `toml:"events"`
	Command   string   `toml:"command"`
	Timeout   string   `toml:"timeout"`
	Instances []string `toml:"instances"`
}

// WebhookHook defines a webhook hook.
type WebhookHook struct {
	Name         string            `toml:"name"`
	Events       []string          `toml:"events"`
	URL          string            `toml:"url"`
	Method       string            `toml:"method"`
	Headers      map[string]string `toml:"headers"`
	Timeout      string            `toml:"timeout"`
	Retries      int               `toml:"retries"`
	RetryBackoff string            `toml:"retry_backoff"`
	Secret       string            `toml:"secret"`
	Template     string            `toml:"template"`
}

// APIConfig holds HTTP API settings.
type APIConfig struct {
	Enabled   bool   `toml:"enabled"`
	Listen    string `toml:"listen"`
	AuthToken string `toml:"auth_token"` // bcrypt hash; empty disables auth
}

// Load reads and parses a TOML config file, applies defaults, and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if cfg.Hooks.EventBufferSize == 0 {
		cfg.Hooks.EventBufferSize = DefaultEventBufferSize
	}
	if cfg.Hooks.ScriptConcurrency == 0 {
		cfg.Hooks.ScriptConcurrency = DefaultScriptConcurrency
	}
	if cfg.Hooks.ScriptTimeout == "" {
		cfg.Hooks.ScriptTimeout = DefaultScriptTimeout.String()
	}
	if cfg.API.Listen == "" {
		cfg.API.Listen = DefaultAPIListen
	}
	for i := range cfg.Hooks.Webhooks {
		if cfg.Hooks.Webhooks[i].Method == "" {
			cfg.Hooks.Webhooks[i].Method = "POST"
		}
		if cfg.Hooks.Webhooks[i].Retries == 0 {
			cfg.Hooks.Webhooks[i].Retries = DefaultWebhookRetries
		}
		if cfg.Hooks.Webhooks[i].RetryBackoff == "" {
			cfg.Hooks.Webhooks[i].RetryBackoff = DefaultWebhookBackoff.String()
		}
	}
}

// validate checks the configuration for errors.
func validate(cfg *Config) error {
	if len(cfg.Instances) == 0 {
		return fmt.Errorf("at least one [[instance]] is required")
	}

	seen := make(map[string]bool, len(cfg.Instances))
	for i, inst := range cfg.Instances {
		if inst.Interface == "" {
			return fmt.Errorf("instance[%d]: interface is required", i)
		}
		if inst.Address == "" {
			return fmt.Errorf("instance[%d]: address is required", i)
		}
		ip := net.ParseIP(inst.Address).To4()
		if ip == nil {
			return fmt.Errorf("instance[%d]: address %q is not a valid IPv4 address", i, inst.Address)
		}
		if inst.MAC != "" {
			if _, err := net.ParseMAC(inst.MAC); err != nil {
				return fmt.Errorf("instance[%d]: mac %q: %w", i, inst.MAC, err)
			}
		}
		key := inst.Interface + "/" + inst.Address
		if seen[key] {
			return fmt.Errorf("instance[%d]: duplicate interface/address pair %s", i, key)
		}
		seen[key] = true
	}

	if cfg.Hooks.ScriptTimeout != "" {
		if _, err := time.ParseDuration(cfg.Hooks.ScriptTimeout); err != nil {
			return fmt.Errorf("hooks.script_timeout: %w", err)
		}
	}
	for i, h := range cfg.Hooks.Webhooks {
		if h.URL == "" {
			return fmt.Errorf("hooks.webhook[%d]: url is required", i)
		}
		if h.Timeout != "" {
			if _, err := time.ParseDuration(h.Timeout); err != nil {
				return fmt.Errorf("hooks.webhook[%d].timeout: %w", i, err)
			}
		}
		if h.RetryBackoff != "" {
			if _, err := time.ParseDuration(h.RetryBackoff); err != nil {
				return fmt.Errorf("hooks.webhook[%d].retry_backoff: %w", i, err)
			}
		}
	}

	if cfg.API.Enabled && cfg.API.Listen == "" {
		return fmt.Errorf("api.listen is required when api is enabled")
	}

	return nil
}

// AcdPriority returns the instance's configured acd.Priority.
func (i InstanceConfig) AcdPriority() acd.Priority {
	return acd.Priority(i.Priority)
}

// ToEventsConfig converts a ScriptHook into the events package's runtime
// ScriptConfig, parsing its duration string.
func (s ScriptHook) ToEventsConfig() (events.ScriptConfig, error) {
	timeout := DefaultScriptTimeout
	if s.Timeout != "" {
		d, err := time.ParseDuration(s.Timeout)
		if err != nil {
			return events.ScriptConfig{}, fmt.Errorf("script[%s].timeout: %w", s.Name, err)
		}
		timeout = d
	}
	return events.ScriptConfig{
		Name:      s.Name,
		Events:    s.Events,
		Command:   s.Command,
		Timeout:   timeout,
		Instances: s.Instances,
	}, nil
}

// ToEventsConfig converts a WebhookHook into the events package's runtime
// WebhookConfig, parsing its duration strings.
func (w WebhookHook) ToEventsConfig() (events.WebhookConfig, error) {
	timeout := DefaultWebhookTimeout
	if w.Timeout != "" {
		d, err := time.ParseDuration(w.Timeout)
		if err != nil {
			return events.WebhookConfig{}, fmt.Errorf("webhook[%s].timeout: %w", w.Name, err)
		}
		timeout = d
	}
	backoff := DefaultWebhookBackoff
	if w.RetryBackoff != "" {
		d, err := time.ParseDuration(w.RetryBackoff)
		if err != nil {
			return events.WebhookConfig{}, fmt.Errorf("webhook[%s].retry_backoff: %w", w.Name, err)
		}
		backoff = d
	}
	return events.WebhookConfig{
		Name:         w.Name,
		Events:       w.Events,
		URL:          w.URL,
		Method:       w.Method,
		Headers:      w.Headers,
		Timeout:      timeout,
		Retries:      w.Retries,
		RetryBackoff: backoff,
		Secret:       w.Secret,
		Template:     w.Template,
	}, nil
}
