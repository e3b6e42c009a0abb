// Package compactcmder provides the compact command for forcing a
// historian compaction pass outside the turn loop.
package compactcmder

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

type compactCommander struct {
	user  string
	debug bool

	storageDriver string
	sqlitePath    string
	postgresURL   string
	provider      string
	model         string
	target        string
	threshold     int

	v *viper.Viper
}

var compactFlags = []string{
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagProvider,
	config.FlagModel,
	config.FlagTarget,
	config.FlagThreshold,
}

const compactLongDesc string = `Run one historian compaction pass for a user.

The historian condenses the oldest uncompacted turns into a dated factual
summary, leaving the two most recent uncompacted turns untouched. The
pass only fires once the uncompacted count clears the threshold, so this
command is a no-op on a quiet log.`

const compactShortDesc string = "Run one historian compaction pass"

func NewCompactCmd() *cobra.Command {
	cmder := &compactCommander{}

	cmd := &cobra.Command{
		Use:   "compact",
		Short: compactShortDesc,
		Long:  compactLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}

			config.BindRegisteredFlags(v, cmd, config.Flags, compactFlags)
			cmder.v = v

			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			configDir, _ := cmd.Flags().GetString("config-dir")
			return cmder.run(configDir)
		},
	}

	cmd.Flags().StringVarP(&cmder.user, "user", "u", "", "User id whose log to compact (required)")
	_ = cmd.MarkFlagRequired("user")

	config.AddStringFlag(cmd, config.Flags, config.FlagStorageDriver, &cmder.storageDriver)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgres, &cmder.postgresURL)
	config.AddStringFlag(cmd, config.Flags, config.FlagProvider, &cmder.provider)
	config.AddStringFlag(cmd, config.Flags, config.FlagModel, &cmder.model)
	config.AddStringFlag(cmd, config.Flags, config.FlagTarget, &cmder.target)
	config.AddIntFlag(cmd, config.Flags, config.FlagThreshold, &cmder.threshold)

	return cmd
}

func (c *compactCommander) run(configDir string) error {
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

	historian := memory.NewHistorian(store, call, c.v.GetInt("historian.threshold"), log, nil)

	compacted, err := historian.MaybeCompact(context.Background(), c.user)
	if err != nil {
		return fmt.Errorf("compaction: %w", err)
	}

	if compacted == 0 {
		fmt.Printf("%s Nothing to compact for %s\n", cliui.SuccessMark, cliui.ValueStyle.Render(c.user))
		return nil
	}

	fmt.Printf("%s Compacted %s turns for %s\n",
		cliui.SuccessMark,
		cliui.ValueStyle.Render(fmt.Sprintf("%d", compacted)),
		cliui.ValueStyle.Render(c.user),
	)

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
		return nil, fmt.Errorf("inmemory storage has no persisted log to compact")

	default:
		return nil, fmt.Errorf("unknown storage driver: %q", driver)
	}
}
