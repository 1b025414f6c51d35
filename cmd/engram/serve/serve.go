// Package servecmder provides the serve command for running the memory API
// server with its full engine stack.
package servecmder

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/engramhq/engram/api"
	"github.com/engramhq/engram/pkg/checkpoint"
	"github.com/engramhq/engram/pkg/checkpoint/inmemory"
	pgcheckpoint "github.com/engramhq/engram/pkg/checkpoint/postgres"
	sqlitecheckpoint "github.com/engramhq/engram/pkg/checkpoint/sqlite"
	"github.com/engramhq/engram/pkg/config"
	"github.com/engramhq/engram/pkg/engine"
	"github.com/engramhq/engram/pkg/eventstream"
	kafkastream "github.com/engramhq/engram/pkg/eventstream/kafka"
	"github.com/engramhq/engram/pkg/eventstream/nop"
	"github.com/engramhq/engram/pkg/filter"
	"github.com/engramhq/engram/pkg/format"
	"github.com/engramhq/engram/pkg/llm/openaichat"
	"github.com/engramhq/engram/pkg/logger"
	"github.com/engramhq/engram/pkg/merge"
)

type ServeCommander struct {
	apiListen     string
	storeProvider string
	sqlitePath    string
	target        string
	model         string
	eventsProv    string
	debug         bool
	logger        *zap.Logger
}

const serveLongDesc string = `Run the Engram memory API server.

The server exposes per-user memory over HTTP:
  GET  /memory/:user           Full memory snapshot
  GET  /memory/:user/context   Rendered context for prompt injection
  POST /memory/:user/turns     Fold conversation turns into memory
  POST /filter/inlet           Inject memory into a conversation (host hook)
  POST /filter/outlet          Fold a finished exchange into memory (host hook)

Configuration comes from config.toml, ENGRAM_* environment variables, and
flags, in ascending precedence.`

const serveShortDesc string = "Run the Engram memory API server"

var serveFlags = config.FlagSet{
	config.FlagAPIListen: {
		Name: "api-listen", Shorthand: "a", ViperKey: "api.listen",
		Description: "Address for API server to listen on",
	},
	config.FlagStoreProvider: {
		Name: "store", ViperKey: "store.provider",
		Description: "Checkpoint store provider (postgres, sqlite, inmemory)",
	},
	config.FlagSQLite: {
		Name: "sqlite", Shorthand: "s", ViperKey: "store.sqlite_path",
		Description: "Path to SQLite database",
	},
	config.FlagTarget: {
		Name: "target", Shorthand: "t", ViperKey: "extraction.target",
		Description: "Fact-extraction API base URL",
	},
	config.FlagModel: {
		Name: "model", Shorthand: "m", ViperKey: "extraction.model",
		Description: "Fact-extraction model",
	},
	config.FlagEventsProv: {
		Name: "events", ViperKey: "events.provider",
		Description: "Event stream provider (nop, kafka)",
	},
}

var serveFlagKeys = []string{
	config.FlagAPIListen,
	config.FlagStoreProvider,
	config.FlagSQLite,
	config.FlagTarget,
	config.FlagModel,
	config.FlagEventsProv,
}

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}

			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}
			config.BindRegisteredFlags(v, cmd, serveFlags, serveFlagKeys)

			return cmder.run(v)
		},
	}

	config.AddStringFlag(cmd, serveFlags, config.FlagAPIListen, &cmder.apiListen)
	config.AddStringFlag(cmd, serveFlags, config.FlagStoreProvider, &cmder.storeProvider)
	config.AddStringFlag(cmd, serveFlags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, serveFlags, config.FlagTarget, &cmder.target)
	config.AddStringFlag(cmd, serveFlags, config.FlagModel, &cmder.model)
	config.AddStringFlag(cmd, serveFlags, config.FlagEventsProv, &cmder.eventsProv)

	return cmd
}

func (c *ServeCommander) run(v *viper.Viper) error {
	c.logger = logger.NewLogger(c.debug)
	defer c.logger.Sync()

	store, err := c.createStore(v)
	if err != nil {
		return err
	}
	defer store.Close()

	completer := openaichat.New(openaichat.Config{
		BaseURL: v.GetString("extraction.target"),
		APIKey:  v.GetString("extraction.api_key"),
	})

	orchestrator := merge.New(completer, merge.Config{
		Model:       v.GetString("extraction.model"),
		Temperature: v.GetFloat64("extraction.temperature"),
		MaxTokens:   v.GetInt("extraction.max_tokens"),
	}, c.logger)

	publisher, err := c.createPublisher(v)
	if err != nil {
		return err
	}
	defer publisher.Close()

	eng := engine.New(store, orchestrator, engine.Config{
		Workers:   v.GetUint("engine.workers"),
		QueueSize: v.GetUint("engine.queue_size"),
	}, c.logger, engine.WithPublisher(publisher))
	defer eng.Close()

	filt := filter.New(eng, c.filterConfig(v), c.logger, filter.WithPublisher(publisher))

	apiConfig := api.Config{
		ListenAddr: v.GetString("api.listen"),
	}
	apiServer := api.NewServer(apiConfig, eng, filt, c.logger)

	c.logger.Info("starting engram",
		zap.String("api_addr", apiConfig.ListenAddr),
		zap.String("store", v.GetString("store.provider")),
		zap.String("model", v.GetString("extraction.model")),
	)

	errChan := make(chan error, 1)

	go func() {
		if err := apiServer.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		return apiServer.Shutdown()
	}
}

// filterConfig maps the injection and status settings onto the filter. An
// unknown injection format is logged and falls back to structured rather
// than failing startup.
func (c *ServeCommander) filterConfig(v *viper.Viper) filter.Config {
	cfg := filter.Config{
		Threshold:    v.GetUint("extraction.threshold"),
		MaxIdentity:  v.GetInt("injection.max_identity"),
		ShowStatus:   v.GetBool("status.enabled"),
		ShowInjected: v.GetBool("status.show_injected"),
	}

	mode, err := format.ParseMode(v.GetString("injection.format"))
	if err != nil {
		c.logger.Warn("unknown injection format, using structured",
			zap.String("format", v.GetString("injection.format")))
		mode = format.ModeStructured
	}
	cfg.Format = mode

	return cfg
}

func (c *ServeCommander) createStore(v *viper.Viper) (checkpoint.Store, error) {
	switch provider := v.GetString("store.provider"); provider {
	case "postgres":
		store, err := pgcheckpoint.NewStore(context.Background(), pgcheckpoint.Config{
			Host:     v.GetString("postgres.host"),
			Port:     v.GetInt("postgres.port"),
			Database: v.GetString("postgres.database"),
			User:     v.GetString("postgres.user"),
			Password: v.GetString("postgres.password"),
			MinConns: int32(v.GetInt("postgres.min_conns")),
			MaxConns: int32(v.GetInt("postgres.max_conns")),
		}, c.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create postgres store: %w", err)
		}
		c.logger.Info("using postgres storage",
			zap.String("host", v.GetString("postgres.host")),
			zap.String("database", v.GetString("postgres.database")),
		)
		return store, nil

	case "sqlite":
		store, err := sqlitecheckpoint.NewStore(v.GetString("store.sqlite_path"), c.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite store: %w", err)
		}
		c.logger.Info("using SQLite storage", zap.String("path", v.GetString("store.sqlite_path")))
		return store, nil

	case "inmemory":
		c.logger.Info("using in-memory storage")
		return inmemory.NewStore(), nil

	default:
		return nil, fmt.Errorf("unknown store provider: %q (supported: postgres, sqlite, inmemory)", provider)
	}
}

func (c *ServeCommander) createPublisher(v *viper.Viper) (eventstream.Publisher, error) {
	switch provider := v.GetString("events.provider"); provider {
	case "kafka":
		brokers := v.GetStringSlice("events.brokers")
		if len(brokers) == 0 {
			return nil, fmt.Errorf("events.brokers required for the kafka provider")
		}
		c.logger.Info("publishing events to kafka",
			zap.Strings("brokers", brokers),
			zap.String("topic", v.GetString("events.topic")),
		)
		return kafkastream.New(kafkastream.Config{
			Brokers: brokers,
			Topic:   v.GetString("events.topic"),
		}), nil

	case "nop", "":
		return nop.New(), nil

	default:
		return nil, fmt.Errorf("unknown events provider: %q (supported: nop, kafka)", provider)
	}
}
