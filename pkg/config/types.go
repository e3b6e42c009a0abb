package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent chronos configuration stored as
// config.toml in the .chronos/ directory. The TOML layout uses sections for
// logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Storage     StorageConfig     `toml:"storage"`
	Reasoner    ReasonerConfig    `toml:"reasoner"`
	Historian   HistorianConfig   `toml:"historian"`
	API         APIConfig         `toml:"api"`
	EventStream EventStreamConfig `toml:"eventstream"`
}

// StorageConfig selects and parameterizes the persistence backend.
type StorageConfig struct {
	Driver      string `toml:"driver,omitempty"` // "sqlite", "postgres", or "inmemory"
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresURL string `toml:"postgres_url,omitempty"`
}

// ReasonerConfig holds the reasoning-step backend settings.
type ReasonerConfig struct {
	Provider string `toml:"provider,omitempty"` // "openai", "anthropic", or "ollama"
	Model    string `toml:"model,omitempty"`
	Target   string `toml:"target,omitempty"` // base URL override
	APIKey   string `toml:"api_key,omitempty"`
}

// HistorianConfig tunes compaction and prompt history.
type HistorianConfig struct {
	Threshold    int `toml:"threshold,omitempty"`
	HistoryLimit int `toml:"history_limit,omitempty"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// EventStreamConfig holds Kafka turn-event publishing settings.
type EventStreamConfig struct {
	Enabled bool   `toml:"enabled,omitempty"`
	Brokers string `toml:"brokers,omitempty"` // comma-separated host:port list
	Topic   string `toml:"topic,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.driver": {
		get: func(c *Config) string { return c.Storage.Driver },
		set: func(c *Config, v string) error { c.Storage.Driver = v; return nil },
	},
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"storage.postgres_url": {
		get: func(c *Config) string { return c.Storage.PostgresURL },
		set: func(c *Config, v string) error { c.Storage.PostgresURL = v; return nil },
	},
	"reasoner.provider": {
		get: func(c *Config) string { return c.Reasoner.Provider },
		set: func(c *Config, v string) error { c.Reasoner.Provider = v; return nil },
	},
	"reasoner.model": {
		get: func(c *Config) string { return c.Reasoner.Model },
		set: func(c *Config, v string) error { c.Reasoner.Model = v; return nil },
	},
	"reasoner.target": {
		get: func(c *Config) string { return c.Reasoner.Target },
		set: func(c *Config, v string) error { c.Reasoner.Target = v; return nil },
	},
	"reasoner.api_key": {
		get: func(c *Config) string { return c.Reasoner.APIKey },
		set: func(c *Config, v string) error { c.Reasoner.APIKey = v; return nil },
	},
	"historian.threshold": {
		get: func(c *Config) string {
			if c.Historian.Threshold == 0 {
				return ""
			}
			return strconv.Itoa(c.Historian.Threshold)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for historian.threshold: %w", err)
			}
			c.Historian.Threshold = n
			return nil
		},
	},
	"historian.history_limit": {
		get: func(c *Config) string {
			if c.Historian.HistoryLimit == 0 {
				return ""
			}
			return strconv.Itoa(c.Historian.HistoryLimit)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for historian.history_limit: %w", err)
			}
			c.Historian.HistoryLimit = n
			return nil
		},
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"eventstream.enabled": {
		get: func(c *Config) string { return strconv.FormatBool(c.EventStream.Enabled) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for eventstream.enabled: %w", err)
			}
			c.EventStream.Enabled = b
			return nil
		},
	},
	"eventstream.brokers": {
		get: func(c *Config) string { return c.EventStream.Brokers },
		set: func(c *Config, v string) error { c.EventStream.Brokers = v; return nil },
	},
	"eventstream.topic": {
		get: func(c *Config) string { return c.EventStream.Topic },
		set: func(c *Config, v string) error { c.EventStream.Topic = v; return nil },
	},
}
