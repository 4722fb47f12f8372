package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadFromFile loads a server Config from path, trying YAML first and
// falling back to JSON, then fills unset listen, size, inbox, timeout,
// logging and storage fields from Default(). Metrics fields are left as
// the file gives them.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file (tried YAML and JSON): %w", err)
		}
	}

	setDefaults(cfg)
	return cfg, nil
}

// LoadClientFromFile loads a ClientConfig the same way.
func LoadClientFromFile(path string) (*ClientConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read client config file: %w", err)
	}

	cfg := &ClientConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse client config file (tried YAML and JSON): %w", err)
		}
	}

	setClientDefaults(cfg)
	return cfg, nil
}

// SaveToFile writes cfg to path, choosing JSON or YAML by extension.
func SaveToFile(cfg *Config, path string) error {
	var data []byte
	var err error
	if strings.HasSuffix(path, ".json") {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Default returns the protocol's documented defaults (router.DefaultConfig,
// inbox.DefaultConfig, etc. mirrored as plain values so this package does
// not need to import router/inbox just to describe their defaults).
func Default() Config {
	cfg := Config{
		ListenAddr:       "0.0.0.0:7890",
		MessageSizeLimit: 16 * 1024 * 1024,
		InboxLimits:      InboxLimits{PerChannelCapacity: 1024, AggregateCapacity: 16384},
		Timeouts: TimeoutsConfig{
			TraversalDeadline: 5 * time.Second,
			HopTimeout:        3 * time.Second,
			RequestTimeout:    10 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
		Metrics: MetricsConfig{Enabled: true, Addr: "0.0.0.0:9090", Path: "/metrics"},
		Storage: StorageConfig{Type: "memory"},
	}
	return cfg
}

func setDefaults(cfg *Config) {
	d := Default()
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = d.ListenAddr
	}
	if cfg.MessageSizeLimit == 0 {
		cfg.MessageSizeLimit = d.MessageSizeLimit
	}
	if cfg.InboxLimits.PerChannelCapacity == 0 {
		cfg.InboxLimits.PerChannelCapacity = d.InboxLimits.PerChannelCapacity
	}
	if cfg.InboxLimits.AggregateCapacity == 0 {
		cfg.InboxLimits.AggregateCapacity = d.InboxLimits.AggregateCapacity
	}
	if cfg.Timeouts.TraversalDeadline == 0 {
		cfg.Timeouts.TraversalDeadline = d.Timeouts.TraversalDeadline
	}
	if cfg.Timeouts.HopTimeout == 0 {
		cfg.Timeouts.HopTimeout = d.Timeouts.HopTimeout
	}
	if cfg.Timeouts.RequestTimeout == 0 {
		cfg.Timeouts.RequestTimeout = d.Timeouts.RequestTimeout
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = d.Logging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = d.Logging.Format
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = d.Logging.Output
	}
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = d.Storage.Type
	}
}

func setClientDefaults(cfg *ClientConfig) {
	d := Default()
	if cfg.Timeouts.RequestTimeout == 0 {
		cfg.Timeouts.RequestTimeout = d.Timeouts.RequestTimeout
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = d.Logging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = d.Logging.Format
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = d.Logging.Output
	}
}
