package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent engram configuration stored as config.toml
// in the config directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version    int              `toml:"version"`
	Store      StoreConfig      `toml:"store"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Extraction ExtractionConfig `toml:"extraction"`
	Injection  InjectionConfig  `toml:"injection"`
	Status     StatusConfig     `toml:"status"`
	Events     EventsConfig     `toml:"events"`
	Engine     EngineConfig     `toml:"engine"`
	API        APIConfig        `toml:"api"`
}

// StoreConfig selects the checkpoint backend.
type StoreConfig struct {
	Provider   string `toml:"provider,omitempty"`
	SQLitePath string `toml:"sqlite_path,omitempty"`
}

// PostgresConfig holds connection settings for the postgres backend.
type PostgresConfig struct {
	Host     string `toml:"host,omitempty"`
	Port     uint   `toml:"port,omitempty"`
	Database string `toml:"database,omitempty"`
	User     string `toml:"user,omitempty"`
	Password string `toml:"password,omitempty"`
	MinConns uint   `toml:"min_conns,omitempty"`
	MaxConns uint   `toml:"max_conns,omitempty"`
}

// ExtractionConfig holds settings for the fact-extraction collaborator.
type ExtractionConfig struct {
	Target      string  `toml:"target,omitempty"`
	Model       string  `toml:"model,omitempty"`
	APIKey      string  `toml:"api_key,omitempty"`
	Temperature float64 `toml:"temperature,omitempty"`
	MaxTokens   uint    `toml:"max_tokens,omitempty"`
	Threshold   uint    `toml:"threshold,omitempty"`
}

// InjectionConfig controls how memory is rendered into prompts.
type InjectionConfig struct {
	Format      string `toml:"format,omitempty"`
	MaxIdentity uint   `toml:"max_identity,omitempty"`
}

// StatusConfig controls host-visible progress reporting.
type StatusConfig struct {
	Enabled      bool `toml:"enabled,omitempty"`
	ShowInjected bool `toml:"show_injected,omitempty"`
}

// EventsConfig selects the event stream backend.
type EventsConfig struct {
	Provider string   `toml:"provider,omitempty"`
	Brokers  []string `toml:"brokers,omitempty"`
	Topic    string   `toml:"topic,omitempty"`
}

// EngineConfig tunes the engine's worker pool.
type EngineConfig struct {
	Workers   uint `toml:"workers,omitempty"`
	QueueSize uint `toml:"queue_size,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func uintKey(get func(c *Config) uint, set func(c *Config, n uint)) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if get(c) == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(get(c)), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid unsigned integer %q: %w", v, err)
			}
			set(c, uint(n))
			return nil
		},
	}
}

func boolKey(get func(c *Config) bool, set func(c *Config, b bool)) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strconv.FormatBool(get(c)) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid boolean %q: %w", v, err)
			}
			set(c, b)
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"store.provider": {
		get: func(c *Config) string { return c.Store.Provider },
		set: func(c *Config, v string) error { c.Store.Provider = v; return nil },
	},
	"store.sqlite_path": {
		get: func(c *Config) string { return c.Store.SQLitePath },
		set: func(c *Config, v string) error { c.Store.SQLitePath = v; return nil },
	},
	"postgres.host": {
		get: func(c *Config) string { return c.Postgres.Host },
		set: func(c *Config, v string) error { c.Postgres.Host = v; return nil },
	},
	"postgres.port": uintKey(
		func(c *Config) uint { return c.Postgres.Port },
		func(c *Config, n uint) { c.Postgres.Port = n },
	),
	"postgres.database": {
		get: func(c *Config) string { return c.Postgres.Database },
		set: func(c *Config, v string) error { c.Postgres.Database = v; return nil },
	},
	"postgres.user": {
		get: func(c *Config) string { return c.Postgres.User },
		set: func(c *Config, v string) error { c.Postgres.User = v; return nil },
	},
	"postgres.password": {
		get: func(c *Config) string { return c.Postgres.Password },
		set: func(c *Config, v string) error { c.Postgres.Password = v; return nil },
	},
	"postgres.min_conns": uintKey(
		func(c *Config) uint { return c.Postgres.MinConns },
		func(c *Config, n uint) { c.Postgres.MinConns = n },
	),
	"postgres.max_conns": uintKey(
		func(c *Config) uint { return c.Postgres.MaxConns },
		func(c *Config, n uint) { c.Postgres.MaxConns = n },
	),
	"extraction.target": {
		get: func(c *Config) string { return c.Extraction.Target },
		set: func(c *Config, v string) error { c.Extraction.Target = v; return nil },
	},
	"extraction.model": {
		get: func(c *Config) string { return c.Extraction.Model },
		set: func(c *Config, v string) error { c.Extraction.Model = v; return nil },
	},
	"extraction.api_key": {
		get: func(c *Config) string { return c.Extraction.APIKey },
		set: func(c *Config, v string) error { c.Extraction.APIKey = v; return nil },
	},
	"extraction.temperature": {
		get: func(c *Config) string {
			return strconv.FormatFloat(c.Extraction.Temperature, 'f', -1, 64)
		},
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for extraction.temperature: %w", err)
			}
			c.Extraction.Temperature = f
			return nil
		},
	},
	"extraction.max_tokens": uintKey(
		func(c *Config) uint { return c.Extraction.MaxTokens },
		func(c *Config, n uint) { c.Extraction.MaxTokens = n },
	),
	"extraction.threshold": uintKey(
		func(c *Config) uint { return c.Extraction.Threshold },
		func(c *Config, n uint) { c.Extraction.Threshold = n },
	),
	"injection.format": {
		get: func(c *Config) string { return c.Injection.Format },
		set: func(c *Config, v string) error { c.Injection.Format = v; return nil },
	},
	"injection.max_identity": uintKey(
		func(c *Config) uint { return c.Injection.MaxIdentity },
		func(c *Config, n uint) { c.Injection.MaxIdentity = n },
	),
	"status.enabled": boolKey(
		func(c *Config) bool { return c.Status.Enabled },
		func(c *Config, b bool) { c.Status.Enabled = b },
	),
	"status.show_injected": boolKey(
		func(c *Config) bool { return c.Status.ShowInjected },
		func(c *Config, b bool) { c.Status.ShowInjected = b },
	),
	"events.provider": {
		get: func(c *Config) string { return c.Events.Provider },
		set: func(c *Config, v string) error { c.Events.Provider = v; return nil },
	},
	"events.topic": {
		get: func(c *Config) string { return c.Events.Topic },
		set: func(c *Config, v string) error { c.Events.Topic = v; return nil },
	},
	"engine.workers": uintKey(
		func(c *Config) uint { return c.Engine.Workers },
		func(c *Config, n uint) { c.Engine.Workers = n },
	),
	"engine.queue_size": uintKey(
		func(c *Config) uint { return c.Engine.QueueSize },
		func(c *Config, n uint) { c.Engine.QueueSize = n },
	),
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
}
