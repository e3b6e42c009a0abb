// Package chatcmder provides the chat command for an interactive
// conversation backed by the chronos memory engine.
package chatcmder

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/misaka-coder/chronos/pkg/cliui"
	"github.com/misaka-coder/chronos/pkg/config"
	"github.com/misaka-coder/chronos/pkg/dotdir"
	"github.com/misaka-coder/chronos/pkg/logger"
	"github.com/misaka-coder/chronos/pkg/memory"
	"github.com/misaka-coder/chronos/pkg/reasoner"
	"github.com/misaka-coder/chronos/pkg/storage"
	"github.com/misaka-coder/chronos/pkg/storage/inmemory"
	"github.com/misaka-coder/chronos/pkg/storage/postgres"
	"github.com/misaka-coder/chronos/pkg/storage/sqlite"
)

type chatCommander struct {
	user  string
	debug bool

	// Flag targets. The effective values are read from viper so the
	// flag > env > config file > default precedence applies.
	storageDriver string
	sqlitePath    string
	postgresURL   string
	provider      string
	model         string
	target        string
	threshold     int
	historyLimit  int

	v *viper.Viper
}

// chatFlags lists the registry keys for the config-backed flags this
// command declares.
var chatFlags = []string{
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagProvider,
	config.FlagModel,
	config.FlagTarget,
	config.FlagThreshold,
	config.FlagHistoryLimit,
}

const chatLongDesc string = `Start an interactive chat session backed by the chronos memory engine.

Every message is recorded to the raw log. Once enough uncompacted turns
pile up, the historian condenses the oldest of them into a dated factual
summary. The model can actively recall a specific day's raw log by
emitting a [RECALL|YYYY-MM-DD|query] directive in its reply; chronos
intercepts it, investigates that day, and asks the model for a final
answer grounded in what it found.

There is no implicit default user: pick one with --user so separate
people (or separate agents) keep separate histories.`

const chatShortDesc string = "Start an interactive chat session"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}

			config.BindRegisteredFlags(v, cmd, config.Flags, chatFlags)
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

	cmd.Flags().StringVarP(&cmder.user, "user", "u", "", "User id owning this conversation (required)")
	_ = cmd.MarkFlagRequired("user")

	config.AddStringFlag(cmd, config.Flags, config.FlagStorageDriver, &cmder.storageDriver)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgres, &cmder.postgresURL)
	config.AddStringFlag(cmd, config.Flags, config.FlagProvider, &cmder.provider)
	config.AddStringFlag(cmd, config.Flags, config.FlagModel, &cmder.model)
	config.AddStringFlag(cmd, config.Flags, config.FlagTarget, &cmder.target)
	config.AddIntFlag(cmd, config.Flags, config.FlagThreshold, &cmder.threshold)
	config.AddIntFlag(cmd, config.Flags, config.FlagHistoryLimit, &cmder.historyLimit)

	return cmd
}

func (c *chatCommander) run(configDir string) error {
	log := logger.New(logger.WithPretty(true), logger.WithDebug(c.debug))

	store, storeDesc, err := newStorageDriver(c.v, configDir)
	if err != nil {
		return err
	}
	defer store.Close()

	provider := c.v.GetString("reasoner.provider")

	call, err := reasoner.NewCaller(reasoner.Config{
		Provider: provider,
		Model:    c.v.GetString("reasoner.model"),
		APIKey:   c.v.GetString("reasoner.api_key"),
		BaseURL:  c.v.GetString("reasoner.target"),
	})
	if err != nil {
		return fmt.Errorf("creating reasoner: %w", err)
	}

	engine := memory.NewEngine(store, call, log, memory.Options{
		Threshold:    c.v.GetInt("historian.threshold"),
		HistoryLimit: c.v.GetInt("historian.history_limit"),
	})

	fmt.Println()
	fmt.Printf("  %s %s\n", cliui.KeyStyle.Render("User:"), cliui.ValueStyle.Render(c.user))
	fmt.Printf("  %s %s\n", cliui.KeyStyle.Render("Storage:"), cliui.DimStyle.Render(storeDesc))
	fmt.Printf("  %s %s\n\n", cliui.KeyStyle.Render("Reasoner:"), cliui.DimStyle.Render(provider))
	fmt.Printf("  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. exit or quit to leave."))

	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print(cliui.UserPrompt)
		if !scanner.Scan() {
			// EOF or read error
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			break
		}

		reply, err := engine.ProcessTurn(context.Background(), c.user, input)
		if err != nil {
			fmt.Printf("  %s %s\n\n", cliui.FailMark, err)
			continue
		}

		fmt.Printf("%s%s\n\n", cliui.AssistantPrompt, reply)
	}

	return scanner.Err()
}

// newStorageDriver builds the storage backend selected in viper. The
// returned description is for display only.
func newStorageDriver(v *viper.Viper, configDir string) (storage.Driver, string, error) {
	switch driver := v.GetString("storage.driver"); driver {
	case "postgres":
		store, err := postgres.NewDriver(context.Background(), v.GetString("storage.postgres_url"))
		if err != nil {
			return nil, "", fmt.Errorf("creating postgres store: %w", err)
		}
		return store, "postgres", nil

	case "inmemory":
		return inmemory.NewDriver(), "in-memory (volatile)", nil

	case "sqlite", "":
		path := v.GetString("storage.sqlite_path")
		if path == "" {
			var err error
			path, err = dotdir.NewManager().DefaultDBPath(configDir)
			if err != nil {
				return nil, "", fmt.Errorf("resolving database path: %w", err)
			}
		}
		store, err := sqlite.NewDriver(path)
		if err != nil {
			return nil, "", fmt.Errorf("creating sqlite store: %w", err)
		}
		return store, path, nil

	default:
		return nil, "", fmt.Errorf("unknown storage driver: %q", driver)
	}
}
