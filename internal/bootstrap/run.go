package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/target/stockgate/config"
	"github.com/target/stockgate/internal/data"
	"github.com/target/stockgate/internal/observability/statsd"
	"github.com/target/stockgate/internal/ports"
)

// Infrastructure holds the shared connections of the process.
type Infrastructure struct {
	Redis   redis.UniversalClient
	Pool    *pgxpool.Pool  // nil unless the remote documents live in Postgres
	Metrics *statsd.Client // nil when StatsD is disabled
}

// MetricsSink returns the StatsD sink, or nil when metrics are off.
//
//nolint:ireturn // nil interface disables emission in the services.
func (i *Infrastructure) MetricsSink() statsd.Sink {
	if i == nil || i.Metrics == nil {
		return nil
	}
	return i.Metrics
}

// Documents returns the shared document store, or nil when documents are
// served per client by Firestore.
func (i *Infrastructure) Documents() ports.DocumentStore {
	if i == nil || i.Pool == nil {
		return nil
	}
	return data.NewDocumentRepo(i.Pool)
}

// Close releases every connection.
func (i *Infrastructure) Close() error {
	if i == nil {
		return nil
	}
	var errs []error
	if i.Pool != nil {
		i.Pool.Close()
	}
	if err := i.Metrics.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close statsd: %w", err))
	}
	if i.Redis != nil {
		if err := i.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	return errors.Join(errs...)
}

// InitInfrastructure connects Redis, StatsD when enabled and, when configured,
// Postgres with migrations.
func InitInfrastructure(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (*Infrastructure, error) {
	dbCfg := DatabaseConfig{DBConfig: cfg.Postgres, RedisConfig: cfg.Redis, Logger: logger}

	redisClient, err := ConnectRedis(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	infra := &Infrastructure{Redis: redisClient, Metrics: NewMetricsClient(cfg.Metrics, logger)}

	if !cfg.NeedsPostgres() {
		return infra, nil
	}

	if cfg.Postgres.RunMigrationsOnStart {
		if err := migrateDatabase(ctx, dbCfg, logger); err != nil {
			return nil, errors.Join(err, infra.Close())
		}
	} else {
		logger.InfoContext(ctx, "skipping database migrations on startup", "reason", "disabled via config")
	}

	pool, err := ConnectPool(ctx, dbCfg)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("connect pool: %w", err), infra.Close())
	}
	infra.Pool = pool
	return infra, nil
}

func migrateDatabase(ctx context.Context, dbCfg DatabaseConfig, logger *slog.Logger) error {
	db, err := ConnectDB(dbCfg)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close migration database failed", "error", cerr)
		}
	}()
	return RunMigrations(ctx, db, logger)
}

// Run serves HTTP until ctx is canceled, then shuts down the server and every client runtime.
func Run(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	infra, err := InitInfrastructure(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := infra.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close infrastructure failed", "error", cerr)
		}
	}()

	runtimes, err := NewRuntimes(ctx, RuntimesOptions{
		Config:    cfg,
		Redis:     infra.Redis,
		Documents: infra.Documents(),
		Metrics:   infra.MetricsSink(),
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("client runtimes: %w", err)
	}
	defer runtimes.Close()

	server := StartHTTPServer(&HTTPServerConfig{
		Config:  cfg,
		Clients: runtimes,
		Logger:  logger,
	})

	<-ctx.Done()
	logger.Info("shutdown signal received")

	// ctx is already done; shut down on a fresh deadline.
	return ShutdownHTTPServer(ShutdownConfig{
		Context: context.WithoutCancel(ctx),
		Server:  server,
		Timeout: cfg.HTTP.ShutdownTimeout,
		Logger:  logger,
	})
}
