// Package servecmder provides the serve command that runs the full server:
// session API, background consolidation worker, and event publishing.
package servecmder

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/ene/api"
	"github.com/papercomputeco/ene/pkg/config"
	"github.com/papercomputeco/ene/pkg/consolidate"
	"github.com/papercomputeco/ene/pkg/eventstream"
	"github.com/papercomputeco/ene/pkg/eventstream/kafka"
	"github.com/papercomputeco/ene/pkg/eventstream/nop"
	"github.com/papercomputeco/ene/pkg/ledger/sqlite"
	"github.com/papercomputeco/ene/pkg/llm"
	"github.com/papercomputeco/ene/pkg/llm/provider"
	"github.com/papercomputeco/ene/pkg/logger"
	"github.com/papercomputeco/ene/pkg/session"
)

type ServeCommander struct {
	configDir  string
	listen     string
	sqlitePath string
	debug      bool
	logger     *slog.Logger
}

const serveLongDesc string = `Run the Ene server.

Serves live conversation sessions over websockets, persists every turn to
the ledger, and consolidates conversations into reflections in the
background.`

const serveShortDesc string = "Run the Ene server"

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

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return err
			}

			// Flags override env and file values.
			_ = v.BindPFlag("api.listen", cmd.Flags().Lookup("listen"))
			_ = v.BindPFlag("storage.sqlite_path", cmd.Flags().Lookup("sqlite"))

			return cmder.run(v)
		},
	}

	cmd.Flags().StringVarP(&cmder.listen, "listen", "l", ":8080", "Address for the server to listen on")
	cmd.Flags().StringVarP(&cmder.sqlitePath, "sqlite", "s", "ene.db", "Path to the SQLite database")
	cmd.Flags().StringVarP(&cmder.configDir, "config", "c", "", "Directory containing config.toml")

	return cmd
}

func (c *ServeCommander) run(v *viper.Viper) error {
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}

	c.logger = logger.New(
		logger.WithDebug(c.debug || cfg.Log.Debug),
		logger.WithJSON(cfg.Log.JSON),
		logger.WithPretty(!cfg.Log.JSON),
	)

	store, err := sqlite.New(cfg.Storage.SQLitePath)
	if err != nil {
		return fmt.Errorf("opening ledger: %w", err)
	}
	defer store.Close()
	c.logger.Info("ledger opened", "path", cfg.Storage.SQLitePath)

	completer, err := provider.New(provider.Config{
		Provider: cfg.LLM.Provider,
		Model:    cfg.LLM.Model,
		APIKey:   cfg.LLM.APIKey,
		BaseURL:  cfg.LLM.BaseURL,
	})
	if err != nil {
		return fmt.Errorf("creating llm provider: %w", err)
	}
	if completer == nil {
		c.logger.Warn("no llm provider configured, sessions will degrade")
	} else {
		c.logger.Info("llm provider ready", "provider", completer.Name())
	}
	client := llm.NewService(completer, c.logger)

	publisher := c.newPublisher(cfg)
	defer publisher.Close()

	worker := consolidate.NewWorker(&consolidate.Config{
		Store:       store,
		LLM:         client,
		Classifier:  consolidate.NewClassifier(store, client, c.logger),
		Publisher:   publisher,
		Threshold:   cfg.Consolidate.Threshold,
		NumWorkers:  cfg.Consolidate.Workers,
		QueueSize:   cfg.Consolidate.QueueSize,
		UnitTimeout: cfg.Consolidate.UnitTimeout,
		Logger:      c.logger,
	})

	loop := session.NewLoop(store, client, worker, publisher, c.logger)

	server := api.NewServer(api.Config{ListenAddr: cfg.API.Listen}, store, loop, c.logger)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		worker.Close()
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
	}

	if err := server.Shutdown(); err != nil {
		c.logger.Warn("server shutdown error", "error", err)
	}

	// Drain queued consolidations before the store closes.
	worker.Close()

	return nil
}

func (c *ServeCommander) newPublisher(cfg *config.Config) eventstream.Publisher {
	if len(cfg.Events.KafkaBrokers) > 0 {
		c.logger.Info("publishing events to kafka",
			"brokers", cfg.Events.KafkaBrokers, "topic", cfg.Events.KafkaTopic)
		return kafka.NewPublisher(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic)
	}

	c.logger.Info("event publishing disabled")
	return nop.NewPublisher()
}
