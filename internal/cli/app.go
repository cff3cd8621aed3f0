package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/sheikh-saqib/wallet-ledger/internal/config"
	"github.com/sheikh-saqib/wallet-ledger/internal/events/kafka"
	interfaces "github.com/sheikh-saqib/wallet-ledger/internal/interfaces"
	"github.com/sheikh-saqib/wallet-ledger/internal/ledger"
	"github.com/sheikh-saqib/wallet-ledger/internal/logging"
	"github.com/sheikh-saqib/wallet-ledger/internal/storage/memory"
	"github.com/sheikh-saqib/wallet-ledger/internal/storage/postgres"
	"github.com/sheikh-saqib/wallet-ledger/internal/storage/sqlite"
	"go.uber.org/zap"
)

// app is everything a command needs, built from the resolved configuration.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	store  interfaces.LedgerStore
	ledger *ledger.Ledger

	closers []func() error
}

func loadConfig(opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath, opts.envFile)
	if err != nil {
		return nil, err
	}

	if opts.driver != "" {
		cfg.Store.Driver = opts.driver
	}
	if opts.dsn != "" {
		cfg.Store.DSN = opts.dsn
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newApp(ctx context.Context, opts *rootOptions) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger}

	a.store, err = openStore(ctx, cfg)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	a.closers = append(a.closers, a.store.Close)

	ledgerOpts := []ledger.Option{
		ledger.WithLogger(logger),
		ledger.WithRetryPolicy(cfg.Retry.Policy()),
		ledger.WithAttemptTimeout(cfg.Ledger.AttemptTimeout),
	}
	if len(cfg.Kafka.Brokers) > 0 {
		pub := kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		ledgerOpts = append(ledgerOpts, ledger.WithPublisher(pub))
		a.closers = append(a.closers, pub.Close)
		logger.Info("publishing transaction events",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic))
	}
	a.ledger = ledger.NewLedger(a.store, ledgerOpts...)

	return a, nil
}

func openStore(ctx context.Context, cfg *config.Config) (interfaces.LedgerStore, error) {
	switch cfg.Store.Driver {
	case "memory":
		return memory.NewMemoryLedgerStore(), nil
	case "postgres":
		db, err := postgres.Open(ctx, cfg.Store.DSN)
		if err != nil {
			return nil, err
		}
		return postgres.NewPostgresLedgerStore(db, postgres.WithLockTimeout(cfg.Ledger.LockTimeout)), nil
	case "sqlite":
		return sqlite.Open(ctx, sqlite.DSN(cfg.Store.DSN, cfg.Store.BusyTimeout))
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// Close releases the publisher and store in reverse order of creation.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	_ = a.logger.Sync()
	return errors.Join(errs...)
}
