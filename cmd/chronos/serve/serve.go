// Package servecmder provides the serve command for running the chronos
// HTTP API server.
package servecmder

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/misaka-coder/chronos/api"
	"github.com/misaka-coder/chronos/pkg/config"
	"github.com/misaka-coder/chronos/pkg/dotdir"
	"github.com/misaka-coder/chronos/pkg/eventstream"
	"github.com/misaka-coder/chronos/pkg/eventstream/kafka"
	"github.com/misaka-coder/chronos/pkg/logger"
	"github.com/misaka-coder/chronos/pkg/memory"
	"github.com/misaka-coder/chronos/pkg/observability"
	"github.com/misaka-coder/chronos/pkg/reasoner"
	"github.com/misaka-coder/chronos/pkg/storage"
	"github.com/misaka-coder/chronos/pkg/storage/inmemory"
	"github.com/misaka-coder/chronos/pkg/storage/postgres"
	"github.com/misaka-coder/chronos/pkg/storage/sqlite"
)

type serveCommander struct {
	debug bool

	storageDriver string
	sqlitePath    string
	postgresURL   string
	provider      string
	model         string
	target        string
	threshold     int
	historyLimit  int
	listen        string

	v      *viper.Viper
	logger *zap.Logger
}

var serveFlags = []string{
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagProvider,
	config.FlagModel,
	config.FlagTarget,
	config.FlagThreshold,
	config.FlagHistoryLimit,
	config.FlagAPIListen,
}

const serveLongDesc string = `Run the chronos HTTP API server.

The server exposes the memory engine over HTTP:
  POST /v1/turns            Process one conversational turn
  GET  /v1/recall           Recall a day's raw log (date, q query params)
  GET  /v1/summaries/:date  Fetch a compacted daily summary
  GET  /metrics             Prometheus metrics

With eventstream.enabled set, each completed turn is also published to a
Kafka topic keyed by user id.`

const serveShortDesc string = "Run the chronos HTTP API server"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}

			config.BindRegisteredFlags(v, cmd, config.Flags, serveFlags)
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

	config.AddStringFlag(cmd, config.Flags, config.FlagStorageDriver, &cmder.storageDriver)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgres, &cmder.postgresURL)
	config.AddStringFlag(cmd, config.Flags, config.FlagProvider, &cmder.provider)
	config.AddStringFlag(cmd, config.Flags, config.FlagModel, &cmder.model)
	config.AddStringFlag(cmd, config.Flags, config.FlagTarget, &cmder.target)
	config.AddIntFlag(cmd, config.Flags, config.FlagThreshold, &cmder.threshold)
	config.AddIntFlag(cmd, config.Flags, config.FlagHistoryLimit, &cmder.historyLimit)
	config.AddStringFlag(cmd, config.Flags, config.FlagAPIListen, &cmder.listen)

	return cmd
}

func (c *serveCommander) run(configDir string) error {
	c.logger = logger.NewZapLogger(c.debug)
	defer c.logger.Sync()

	store, err := c.createStore(configDir)
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

	publisher, err := c.createPublisher()
	if err != nil {
		return err
	}
	if publisher != nil {
		defer publisher.Close()
	}

	metrics := observability.NewMetrics("chronos")

	engine := memory.NewEngine(store, call, logger.New(logger.WithDebug(c.debug)), memory.Options{
		Threshold:    c.v.GetInt("historian.threshold"),
		HistoryLimit: c.v.GetInt("historian.history_limit"),
		Publisher:    publisher,
		Metrics:      metrics,
	})

	listen := c.v.GetString("api.listen")
	server := api.NewServer(api.Config{ListenAddr: listen}, engine, store, c.logger)

	c.logger.Info("starting api server",
		zap.String("listen", listen),
		zap.String("storage", c.v.GetString("storage.driver")),
		zap.String("provider", c.v.GetString("reasoner.provider")),
	)

	errChan := make(chan error, 1)

	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("api server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		return server.Shutdown()
	}
}

func (c *serveCommander) createStore(configDir string) (storage.Driver, error) {
	switch driver := c.v.GetString("storage.driver"); driver {
	case "postgres":
		store, err := postgres.NewDriver(context.Background(), c.v.GetString("storage.postgres_url"))
		if err != nil {
			return nil, fmt.Errorf("creating postgres store: %w", err)
		}
		c.logger.Info("using postgres storage")
		return store, nil

	case "inmemory":
		c.logger.Info("using in-memory storage")
		return inmemory.NewDriver(), nil

	case "sqlite", "":
		path := c.v.GetString("storage.sqlite_path")
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
		c.logger.Info("using sqlite storage", zap.String("path", path))
		return store, nil

	default:
		return nil, fmt.Errorf("unknown storage driver: %q", driver)
	}
}

// createPublisher returns a Kafka publisher when the event stream is
// enabled, nil otherwise. A nil publisher disables publishing entirely.
func (c *serveCommander) createPublisher() (eventstream.Publisher, error) {
	if !c.v.GetBool("eventstream.enabled") {
		return nil, nil
	}

	brokers := strings.Split(c.v.GetString("eventstream.brokers"), ",")
	for i := range brokers {
		brokers[i] = strings.TrimSpace(brokers[i])
	}

	topic := c.v.GetString("eventstream.topic")
	if topic == "" {
		return nil, fmt.Errorf("eventstream enabled but no topic configured")
	}

	c.logger.Info("publishing turn events",
		zap.Strings("brokers", brokers),
		zap.String("topic", topic),
	)

	return kafka.NewPublisher(brokers, topic), nil
}
