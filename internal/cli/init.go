// Package cli wires configuration, logging and the ledger engine into the
// finledger command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"finledger/internal/amqp"
	"finledger/internal/config"
	"finledger/internal/log"
	"finledger/internal/registry"
	"finledger/internal/services"
	"finledger/internal/storage"
	"finledger/internal/vocab"
)

// SetupLogger initializes structured logging at the configured level and
// sets it as the default logger. Logs go to out so stdout stays JSON only.
func SetupLogger(level string, out io.Writer) (*log.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	logger := log.New(log.Config{
		Level:     lvl,
		Component: log.ComponentCLI,
		Output:    out,
	})
	log.SetDefault(logger)
	return logger, nil
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// App holds the long-lived pieces a command works with.
type App struct {
	Config   *config.Config
	Logger   *log.Logger
	Registry *registry.Registry
	Ledger   *services.Ledger
	AMQP     *amqp.Client // nil unless AMQP_URL is set
}

// NewApp builds the engine from cfg. The AMQP connection is optional: when
// it cannot be established the ledger runs without publishing events.
func NewApp(cfg *config.Config, logger *log.Logger) (*App, error) {
	v, err := vocab.Load(cfg.VocabularyPath)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: registry.New(cfg.DataDir, storage.Options{BusyTimeout: cfg.SQLiteBusyTimeout}, logger),
	}

	opts := []services.Option{
		services.WithLogger(logger),
		services.WithPolicy(services.NewPolicy(cfg.BudgetNearThreshold, cfg.GoalPaceTolerance)),
	}
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, ledger events disabled", log.FieldError, err)
		} else {
			app.AMQP = client
			opts = append(opts, services.WithPublisher(client))
		}
	}
	app.Ledger = services.NewLedger(v, opts...)

	return app, nil
}

// Close releases every open store and the AMQP connection.
func (a *App) Close() error {
	var errs []error
	if a.Registry != nil {
		if err := a.Registry.Close(); err != nil {
			errs = append(errs, fmt.Errorf("registry: %w", err))
		}
	}
	if a.AMQP != nil {
		if err := a.AMQP.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	return errors.Join(errs...)
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM.
func GracefulShutdown(parent context.Context, logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
