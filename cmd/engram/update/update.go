// Package updatecmder provides the update command for folding conversation
// turns into a user's durable memory from the command line.
package updatecmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/engramhq/engram/pkg/checkpoint"
	"github.com/engramhq/engram/pkg/checkpoint/inmemory"
	pgcheckpoint "github.com/engramhq/engram/pkg/checkpoint/postgres"
	sqlitecheckpoint "github.com/engramhq/engram/pkg/checkpoint/sqlite"
	"github.com/engramhq/engram/pkg/config"
	"github.com/engramhq/engram/pkg/engine"
	"github.com/engramhq/engram/pkg/llm/openaichat"
	"github.com/engramhq/engram/pkg/logger"
	"github.com/engramhq/engram/pkg/memory"
	"github.com/engramhq/engram/pkg/merge"
)

const updateLongDesc string = `Fold conversation turns into a user's durable memory.

Reads a JSON array of {"role", "content"} turns from stdin (or --file) and
runs one full update cycle: merge through the extraction model, commit,
refresh, summarize, persist.

Examples:
  engram update alice < turns.json
  engram update alice --file turns.json`

const updateShortDesc string = "Fold conversation turns into a user's memory"

type UpdateCommander struct {
	file       string
	sqlitePath string
	model      string
	target     string
	logFile    string
	debug      bool
}

func NewUpdateCmd() *cobra.Command {
	cmder := &UpdateCommander{}

	cmd := &cobra.Command{
		Use:   "update <user>",
		Short: updateShortDesc,
		Long:  updateLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.debug, _ = cmd.Flags().GetBool("debug")

			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("model") {
				v.Set("extraction.model", cmder.model)
			}
			if cmd.Flags().Changed("target") {
				v.Set("extraction.target", cmder.target)
			}
			if cmd.Flags().Changed("sqlite") {
				v.Set("store.sqlite_path", cmder.sqlitePath)
			}

			return cmder.run(v, args[0])
		},
	}

	cmd.Flags().StringVarP(&cmder.file, "file", "F", "", "Read turns from file instead of stdin")
	cmd.Flags().StringVarP(&cmder.sqlitePath, "sqlite", "s", "", "Path to SQLite database")
	cmd.Flags().StringVarP(&cmder.model, "model", "m", "", "Fact-extraction model")
	cmd.Flags().StringVarP(&cmder.target, "target", "t", "", "Fact-extraction API base URL")
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also write JSON logs to this file")

	return cmd
}

func (c *UpdateCommander) run(v *viper.Viper, userID string) error {
	l := logger.New(logger.WithPretty(true), logger.WithDebug(c.debug))
	if c.logFile != "" {
		f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer f.Close()
		l = logger.Multi(l, logger.New(logger.WithJSON(true), logger.WithWriter(f), logger.WithDebug(c.debug)))
	}

	turns, err := c.readTurns()
	if err != nil {
		return err
	}
	if len(turns) == 0 {
		return fmt.Errorf("no turns provided")
	}

	store, err := openStore(v)
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
	}, zap.NewNop())

	eng := engine.New(store, orchestrator, engine.Config{}, zap.NewNop())
	defer eng.Close()

	l.Info("updating memory", "user", userID, "turns", len(turns),
		"model", v.GetString("extraction.model"))

	state, err := eng.Update(context.Background(), userID, turns)
	if err != nil {
		return fmt.Errorf("updating memory: %w", err)
	}

	l.Info("memory updated", "user", userID, "facts", state.FactCount)
	if state.Summary != "" {
		fmt.Println()
		fmt.Println(state.Summary)
	}

	return nil
}

func (c *UpdateCommander) readTurns() ([]memory.Turn, error) {
	var r io.Reader = os.Stdin
	if c.file != "" {
		f, err := os.Open(c.file)
		if err != nil {
			return nil, fmt.Errorf("opening turns file: %w", err)
		}
		defer f.Close()
		r = f
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading turns: %w", err)
	}

	var turns []memory.Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		return nil, fmt.Errorf("parsing turns: %w", err)
	}

	return turns, nil
}

func openStore(v *viper.Viper) (checkpoint.Store, error) {
	switch provider := v.GetString("store.provider"); provider {
	case "postgres":
		return pgcheckpoint.NewStore(context.Background(), pgcheckpoint.Config{
			Host:     v.GetString("postgres.host"),
			Port:     v.GetInt("postgres.port"),
			Database: v.GetString("postgres.database"),
			User:     v.GetString("postgres.user"),
			Password: v.GetString("postgres.password"),
			MinConns: int32(v.GetInt("postgres.min_conns")),
			MaxConns: int32(v.GetInt("postgres.max_conns")),
		}, zap.NewNop())

	case "sqlite":
		return sqlitecheckpoint.NewStore(v.GetString("store.sqlite_path"), zap.NewNop())

	case "inmemory":
		return inmemory.NewStore(), nil

	default:
		return nil, fmt.Errorf("unknown store provider: %q (supported: postgres, sqlite, inmemory)", provider)
	}
}
