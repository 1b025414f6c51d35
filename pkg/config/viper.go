package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if present in the resolved config directory), and binds environment
// variables with the ENGRAM_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (ENGRAM_API_LISTEN, ENGRAM_STORE_PROVIDER, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	dir := configDir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving config dir: %w", err)
		}
		dir = filepath.Join(home, DirName)
	}
	v.AddConfigPath(dir)

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix("ENGRAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Store
	v.SetDefault("store.provider", d.Store.Provider)
	v.SetDefault("store.sqlite_path", d.Store.SQLitePath)

	// Postgres
	v.SetDefault("postgres.host", d.Postgres.Host)
	v.SetDefault("postgres.port", d.Postgres.Port)
	v.SetDefault("postgres.database", d.Postgres.Database)
	v.SetDefault("postgres.user", d.Postgres.User)
	v.SetDefault("postgres.password", d.Postgres.Password)
	v.SetDefault("postgres.min_conns", d.Postgres.MinConns)
	v.SetDefault("postgres.max_conns", d.Postgres.MaxConns)

	// Extraction
	v.SetDefault("extraction.target", d.Extraction.Target)
	v.SetDefault("extraction.model", d.Extraction.Model)
	v.SetDefault("extraction.api_key", d.Extraction.APIKey)
	v.SetDefault("extraction.temperature", d.Extraction.Temperature)
	v.SetDefault("extraction.max_tokens", d.Extraction.MaxTokens)
	v.SetDefault("extraction.threshold", d.Extraction.Threshold)

	// Injection
	v.SetDefault("injection.format", d.Injection.Format)
	v.SetDefault("injection.max_identity", d.Injection.MaxIdentity)

	// Status
	v.SetDefault("status.enabled", d.Status.Enabled)
	v.SetDefault("status.show_injected", d.Status.ShowInjected)

	// Events
	v.SetDefault("events.provider", d.Events.Provider)
	v.SetDefault("events.brokers", d.Events.Brokers)
	v.SetDefault("events.topic", d.Events.Topic)

	// Engine
	v.SetDefault("engine.workers", d.Engine.Workers)
	v.SetDefault("engine.queue_size", d.Engine.QueueSize)

	// API
	v.SetDefault("api.listen", d.API.Listen)
}
