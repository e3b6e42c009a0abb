// Package recallcmder provides the recall command for one-off raw-log
// investigations from the terminal.
package recallcmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/misaka-coder/chronos/pkg/cliui"
	"github.com/misaka-coder/chronos/pkg/config"
	"github.com/misaka-coder/chronos/pkg/dotdir"
	"github.com/misaka-coder/chronos/pkg/logger"
	"github.com/misaka-coder/chronos/pkg/memory"
	"github.com/misaka-coder/chronos/pkg/reasoner"
	"github.com/misaka-coder/chronos/pkg/storage"
	"github.com/misaka-coder/chronos/pkg/storage/postgres"
	"github.com/misaka-coder/chronos/pkg/storage/sqlite"
)

type recallCommander struct {
	debug bool

	storageDriver string
	sqlitePath    string
	postgresURL   string
	provider      string
	model         string
	target        string

	v *viper.Viper
}

var recallFlags = []string{
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagProvider,
	config.FlagModel,
	config.FlagTarget,
}

const recallLongDesc string = `Investigate the raw chat log for a specific day.

Runs the same lookup the engine performs when the model emits a
[RECALL|YYYY-MM-DD|query] directive: the day's verbatim turns are handed
to the reasoning backend along with the question, and the extracted
answer is printed. Summaries are never consulted; this reads primary
sources only.

Example:
  chronos recall 2026-02-26 "what was decided about the cat"`

const recallShortDesc string = "Investigate the raw log for a specific day"

func NewRecallCmd() *cobra.Command {
	cmder := &recallCommander{}

	cmd := &cobra.Command{
		Use:   "recall <date> <query>",
		Short: recallShortDesc,
		Long:  recallLongDesc,
		Args:  cobra.ExactArgs(2),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}

			config.BindRegisteredFlags(v, cmd, config.Flags, recallFlags)
			cmder.v = v

			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			configDir, _ := cmd.Flags().GetString("config-dir")
			return cmder.run(configDir, args[0], args[1])
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagStorageDriver, &cmder.storageDriver)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgres, &cmder.postgresURL)
	config.AddStringFlag(cmd, config.Flags, config.FlagProvider, &cmder.provider)
	config.AddStringFlag(cmd, config.Flags, config.FlagModel, &cmder.model)
	config.AddStringFlag(cmd, config.Flags, config.FlagTarget, &cmder.target)

	return cmd
}

func (c *recallCommander) run(configDir, dateKey, query string) error {
	log := logger.New(logger.WithPretty(true), logger.WithDebug(c.debug))

	store, err := newStorageDriver(c.v, configDir)
	if err != nil {
		return err
	}
	defer store.Close()

	call, err := reasoner.NewCaller(reasoner.Config{
		Provider: c.v.GetString("reasoner.provider"),
		Model:    c.v.GetString("reasoner.model"),
		APIKey:   c.v.GetString("reasoner.api_key"),
		BaseURL:  c.v.GetString("reasoner.target"),
	})
	if err != nil {
		return fmt.Errorf("creating reasoner: %w", err)
	}

	investigator := memory.NewInvestigator(store, call, log)

	result, err := investigator.Recall(context.Background(), dateKey, query)
	if err != nil {
		return fmt.Errorf("recall: %w", err)
	}

	fmt.Printf("\n  %s %s\n", cliui.KeyStyle.Render("Date:"), cliui.ValueStyle.Render(dateKey))
	fmt.Printf("  %s %s\n\n", cliui.KeyStyle.Render("Query:"), cliui.ValueStyle.Render(query))
	fmt.Println(result)

	return nil
}

func newStorageDriver(v *viper.Viper, configDir string) (storage.Driver, error) {
	switch driver := v.GetString("storage.driver"); driver {
	case "postgres":
		store, err := postgres.NewDriver(context.Background(), v.GetString("storage.postgres_url"))
		if err != nil {
			return nil, fmt.Errorf("creating postgres store: %w", err)
		}
		return store, nil

	case "sqlite", "":
		path := v.GetString("storage.sqlite_path")
		if path == "" {
			var err error
			path, err = dotdir.NewManager().DefaultDBPath(configDir)
			if err != nil {
				return nil, fmt.Errorf("resolving database path: %w", err)
			}
		}
		store, err := sqlite.NewDriver(path)
		if err != nil {
			return nil, fmt.Errorf("creating sqlite store: %w", err)
		}
		return store, nil

	case "inmemory":
		return nil, fmt.Errorf("inmemory storage has no persisted log to recall from")

	default:
		return nil, fmt.Errorf("unknown storage driver: %q", driver)
	}
}
