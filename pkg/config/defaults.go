package config

const (
	defaultStoreProvider = "sqlite"
	defaultSQLitePath    = "engram.db"

	defaultPostgresHost     = "localhost"
	defaultPostgresPort     = 5432
	defaultPostgresDatabase = "engram"
	defaultPostgresUser     = "engram"
	defaultPostgresMinConns = 1
	defaultPostgresMaxConns = 5

	defaultExtractionTarget      = "http://localhost:11434/v1"
	defaultExtractionModel       = "llama3.1"
	defaultExtractionTemperature = 0.1
	defaultExtractionMaxTokens   = 2000
	defaultExtractionThreshold   = 3

	defaultInjectionFormat      = "structured"
	defaultInjectionMaxIdentity = 10

	defaultEventsProvider = "nop"
	defaultEventsTopic    = "engram.events"

	defaultEngineWorkers   = 3
	defaultEngineQueueSize = 64

	defaultAPIListen = ":8081"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Store: StoreConfig{
			Provider:   defaultStoreProvider,
			SQLitePath: defaultSQLitePath,
		},
		Postgres: PostgresConfig{
			Host:     defaultPostgresHost,
			Port:     defaultPostgresPort,
			Database: defaultPostgresDatabase,
			User:     defaultPostgresUser,
			MinConns: defaultPostgresMinConns,
			MaxConns: defaultPostgresMaxConns,
		},
		Extraction: ExtractionConfig{
			Target:      defaultExtractionTarget,
			Model:       defaultExtractionModel,
			Temperature: defaultExtractionTemperature,
			MaxTokens:   defaultExtractionMaxTokens,
			Threshold:   defaultExtractionThreshold,
		},
		Injection: InjectionConfig{
			Format:      defaultInjectionFormat,
			MaxIdentity: defaultInjectionMaxIdentity,
		},
		Status: StatusConfig{
			Enabled:      true,
			ShowInjected: false,
		},
		Events: EventsConfig{
			Provider: defaultEventsProvider,
			Topic:    defaultEventsTopic,
		},
		Engine: EngineConfig{
			Workers:   defaultEngineWorkers,
			QueueSize: defaultEngineQueueSize,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
	}
}
