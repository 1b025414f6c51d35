// Package showcmder provides the show command for printing a user's memory
// profile straight from the checkpoint store.
package showcmder

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/engramhq/engram/pkg/checkpoint"
	"github.com/engramhq/engram/pkg/checkpoint/inmemory"
	pgcheckpoint "github.com/engramhq/engram/pkg/checkpoint/postgres"
	sqlitecheckpoint "github.com/engramhq/engram/pkg/checkpoint/sqlite"
	"github.com/engramhq/engram/pkg/config"
	"github.com/engramhq/engram/pkg/format"
)

const showLongDesc string = `Print a user's memory profile.

Reads the user's memory snapshot from the configured checkpoint store and
renders it in the requested format (structured, natural, or bullet).

Examples:
  engram show alice
  engram show alice --format natural`

const showShortDesc string = "Print a user's memory profile"

type ShowCommander struct {
	formatName string
	sqlitePath string
}

func NewShowCmd() *cobra.Command {
	cmder := &ShowCommander{}

	cmd := &cobra.Command{
		Use:   "show <user>",
		Short: showShortDesc,
		Long:  showLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("format") {
				v.Set("injection.format", cmder.formatName)
			}
			if cmd.Flags().Changed("sqlite") {
				v.Set("store.sqlite_path", cmder.sqlitePath)
			}
			return cmder.run(v, args[0])
		},
	}

	cmd.Flags().StringVarP(&cmder.formatName, "format", "f", "structured", "Rendering format (structured, natural, bullet)")
	cmd.Flags().StringVarP(&cmder.sqlitePath, "sqlite", "s", "", "Path to SQLite database")

	return cmd
}

func (c *ShowCommander) run(v *viper.Viper, userID string) error {
	mode, err := format.ParseMode(v.GetString("injection.format"))
	if err != nil {
		return err
	}

	store, err := openStore(v)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("preparing checkpoint schema: %w", err)
	}

	state, err := store.Get(ctx, userID)
	if err != nil {
		var notFound checkpoint.ErrNotFound
		if !errors.As(err, &notFound) {
			return fmt.Errorf("loading memory: %w", err)
		}
		fmt.Printf("No memory stored for user %q yet.\n", userID)
		return nil
	}

	rendered := format.Render(state, mode, format.Options{
		MaxIdentity: v.GetInt("injection.max_identity"),
	})
	if rendered == "" {
		fmt.Printf("No memory stored for user %q yet.\n", userID)
		return nil
	}

	fmt.Println(rendered)
	return nil
}

// openStore builds a read path to the configured checkpoint backend. CLI
// commands keep store internals quiet; errors surface through the command.
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
