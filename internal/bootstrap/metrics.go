package bootstrap

import (
	"log/slog"

	"github.com/target/stockgate/config"
	"github.com/target/stockgate/internal/observability/statsd"
)

// NewMetricsClient dials StatsD when metrics are enabled. A failed dial is
// logged and leaves metrics off, matching the disabled case.
func NewMetricsClient(cfg config.MetricsConfig, logger *slog.Logger) *statsd.Client {
	if !cfg.Enabled {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	client, err := statsd.NewClient(statsd.Config{
		Enabled: true,
		Address: cfg.StatsdAddress,
		Prefix:  cfg.Prefix,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("failed to initialise statsd client", "error", err)
		return nil
	}
	return client
}
