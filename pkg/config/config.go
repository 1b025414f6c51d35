package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

const (
	configFile = "config.toml"

	// DirName is the per-user config directory under $HOME.
	DirName = ".engram"

	// v0 is the alpha version of the config
	v0 = 0

	// CurrentV is the currently supported version, points to v0
	CurrentV = v0
)

type Configer struct {
	targetPath string
}

// NewConfiger resolves the config directory and returns a Configer bound to
// its config.toml. An empty override resolves to ~/.engram.
func NewConfiger(override string) (*Configer, error) {
	dir := override
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home dir: %w", err)
		}
		dir = filepath.Join(home, DirName)
	}

	path := filepath.Join(dir, configFile)
	if _, err := os.Stat(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	return &Configer{targetPath: path}, nil
}

// ValidConfigKeys returns the list of all supported configuration key names
// in a stable order matching the TOML section layout.
func ValidConfigKeys() []string {
	ordered := []string{
		"store.provider",
		"store.sqlite_path",
		"postgres.host",
		"postgres.port",
		"postgres.database",
		"postgres.user",
		"postgres.password",
		"postgres.min_conns",
		"postgres.max_conns",
		"extraction.target",
		"extraction.model",
		"extraction.api_key",
		"extraction.temperature",
		"extraction.max_tokens",
		"extraction.threshold",
		"injection.format",
		"injection.max_identity",
		"status.enabled",
		"status.show_injected",
		"events.provider",
		"events.topic",
		"engine.workers",
		"engine.queue_size",
		"api.listen",
	}

	// Sanity: only return keys that actually exist in the map.
	result := make([]string, 0, len(ordered))
	seen := make(map[string]bool, len(ordered))
	for _, k := range ordered {
		if _, ok := configKeys[k]; ok {
			result = append(result, k)
			seen[k] = true
		}
	}

	// Append any keys in the map that we missed in the ordered list.
	for k := range configKeys {
		if !seen[k] {
			result = append(result, k)
		}
	}

	return result
}

// IsValidConfigKey returns true if the given key is a supported configuration key.
func IsValidConfigKey(key string) bool {
	_, ok := configKeys[key]
	return ok
}

func (c *Configer) GetTarget() string {
	return c.targetPath
}

// LoadConfig loads the configuration from config.toml. If the file does not
// exist, returns NewDefaultConfig() so callers always receive a
// fully-populated Config with sane defaults. Fields explicitly set in the
// file override the defaults.
func (c *Configer) LoadConfig() (*Config, error) {
	data, err := os.ReadFile(c.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewDefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg, err := ParseConfigTOML(data)
	if err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	return cfg, nil
}

// applyDefaults fills zero-value fields in cfg with values from NewDefaultConfig().
func applyDefaults(cfg *Config) {
	defaults := NewDefaultConfig()

	if cfg.Version == 0 {
		cfg.Version = defaults.Version
	}

	if cfg.Store.Provider == "" {
		cfg.Store.Provider = defaults.Store.Provider
	}
	if cfg.Store.SQLitePath == "" {
		cfg.Store.SQLitePath = defaults.Store.SQLitePath
	}

	if cfg.Postgres.Host == "" {
		cfg.Postgres.Host = defaults.Postgres.Host
	}
	if cfg.Postgres.Port == 0 {
		cfg.Postgres.Port = defaults.Postgres.Port
	}
	if cfg.Postgres.Database == "" {
		cfg.Postgres.Database = defaults.Postgres.Database
	}
	if cfg.Postgres.User == "" {
		cfg.Postgres.User = defaults.Postgres.User
	}
	if cfg.Postgres.MinConns == 0 {
		cfg.Postgres.MinConns = defaults.Postgres.MinConns
	}
	if cfg.Postgres.MaxConns == 0 {
		cfg.Postgres.MaxConns = defaults.Postgres.MaxConns
	}

	if cfg.Extraction.Target == "" {
		cfg.Extraction.Target = defaults.Extraction.Target
	}
	if cfg.Extraction.Model == "" {
		cfg.Extraction.Model = defaults.Extraction.Model
	}
	if cfg.Extraction.Temperature == 0 {
		cfg.Extraction.Temperature = defaults.Extraction.Temperature
	}
	if cfg.Extraction.MaxTokens == 0 {
		cfg.Extraction.MaxTokens = defaults.Extraction.MaxTokens
	}
	if cfg.Extraction.Threshold == 0 {
		cfg.Extraction.Threshold = defaults.Extraction.Threshold
	}

	if cfg.Injection.Format == "" {
		cfg.Injection.Format = defaults.Injection.Format
	}
	if cfg.Injection.MaxIdentity == 0 {
		cfg.Injection.MaxIdentity = defaults.Injection.MaxIdentity
	}

	if cfg.Events.Provider == "" {
		cfg.Events.Provider = defaults.Events.Provider
	}
	if cfg.Events.Topic == "" {
		cfg.Events.Topic = defaults.Events.Topic
	}

	if cfg.Engine.Workers == 0 {
		cfg.Engine.Workers = defaults.Engine.Workers
	}
	if cfg.Engine.QueueSize == 0 {
		cfg.Engine.QueueSize = defaults.Engine.QueueSize
	}

	if cfg.API.Listen == "" {
		cfg.API.Listen = defaults.API.Listen
	}
}

// SaveConfig persists the configuration to config.toml, creating the config
// directory if needed.
func (c *Configer) SaveConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("cannot save nil config")
	}

	if c.targetPath == "" {
		return errors.New("cannot save empty target path")
	}

	if err := os.MkdirAll(filepath.Dir(c.targetPath), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(c.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// SetConfigValue loads the config, sets the given key to the given value, and saves it.
// Returns an error if the key is not a valid config key.
func (c *Configer) SetConfigValue(key string, value string) error {
	info, ok := configKeys[key]
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return err
	}

	if err := info.set(cfg, value); err != nil {
		return err
	}

	return c.SaveConfig(cfg)
}

// GetConfigValue loads the config and returns the string representation of the given key.
// Returns an error if the key is not a valid config key.
func (c *Configer) GetConfigValue(key string) (string, error) {
	info, ok := configKeys[key]
	if !ok {
		return "", fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return "", err
	}

	return info.get(cfg), nil
}

// ParseConfigTOML parses raw TOML bytes into a Config.
// Returns an error if the version field is present and not equal to CurrentV.
func ParseConfigTOML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config TOML: %w", err)
	}

	if cfg.Version != 0 && cfg.Version != CurrentV {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentV)
	}

	return cfg, nil
}
