package cmd

import (
	"context"
	"database/sql"

	"github.com/spf13/cobra"

	"shiftcast/internal/cache"
	"shiftcast/internal/config"
	"shiftcast/internal/forecast"
	"shiftcast/internal/inference"
	"shiftcast/internal/observability"
	"shiftcast/internal/postgres"
	"shiftcast/internal/snowflake"
	"shiftcast/pkg/models"
)

// application is everything a command needs to run the pipeline.
type application struct {
	cfg      *models.Config
	logger   *observability.Logger
	metrics  *observability.Metrics
	pipeline *forecast.Pipeline
	// predictor and cache are the pipeline's collaborators, kept for
	// health reporting and cache refreshes. cache is nil when disabled.
	predictor forecast.Predictor
	cache     *cache.PredictionCache
	ping      func(ctx context.Context) error
	closers   []func() error
}

type appOptions struct {
	noCache bool
}

// buildApp is swapped in tests.
var buildApp = newApplication

func newApplication(ctx context.Context, cmd *cobra.Command, root *rootOptions, opts appOptions) (*application, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	a := &application{
		cfg:     cfg,
		logger:  newLogger(cfg, root),
		metrics: observability.NewMetrics(),
	}
	if err := a.wire(ctx, opts); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func needsSnowflake(cfg *models.Config) bool {
	return cfg.Source.Kind == models.SourceSnowflake ||
		cfg.Inference.Strategy == models.StrategyUDF ||
		cfg.Inference.Strategy == models.StrategyRegistry
}

func (a *application) wire(ctx context.Context, opts appOptions) error {
	cfg := a.cfg

	partition, err := forecast.ParsePartition(cfg.Pipeline.Partition)
	if err != nil {
		return err
	}

	var sfDB *sql.DB
	if needsSnowflake(cfg) {
		if err := config.ResolveCredentials(ctx, cfg); err != nil {
			return err
		}
		svc := snowflake.NewService(snowflake.ConfigFromModel(cfg.Snowflake))
		if err := svc.Connect(ctx); err != nil {
			return err
		}
		a.closers = append(a.closers, svc.Close)
		a.ping = svc.TestConnection
		if sfDB, err = svc.DB(); err != nil {
			return err
		}
		a.logger.Debug("connected to snowflake", "account", cfg.Snowflake.Account, "warehouse", cfg.Snowflake.Warehouse)
	}

	var source forecast.Source
	switch cfg.Source.Kind {
	case models.SourcePostgres:
		pool, err := postgres.Connect(ctx, cfg.Source.PostgresDSN)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() error {
			pool.Close()
			return nil
		})
		if a.ping == nil {
			a.ping = pool.Ping
		}
		if source, err = postgres.NewHistorySource(pool, cfg.Source.Table, cfg.Source.Timeout); err != nil {
			return err
		}
	default:
		if source, err = snowflake.NewHistorySource(sfDB, cfg.Source.Table, cfg.Source.CitiesView, cfg.Snowflake.Timeout); err != nil {
			return err
		}
	}

	// A nil *sql.DB must not become a non-nil interface.
	var querier snowflake.Querier
	if sfDB != nil {
		querier = sfDB
	}
	predictor, err := inference.New(cfg.Inference, querier, a.logger, a.metrics)
	if err != nil {
		return err
	}

	pipelineOpts := forecast.Options{
		Partition: partition,
		Logger:    a.logger,
		Metrics:   a.metrics,
	}
	if !opts.noCache {
		pc, err := cache.New(ctx, cfg.Cache)
		switch {
		case err != nil:
			a.logger.Warn("result cache unavailable, continuing without it", "error", err.Error())
		case pc != nil:
			pipelineOpts.Cache = pc
			a.cache = pc
			a.closers = append(a.closers, pc.Close)
		}
	}

	a.predictor = predictor
	a.pipeline = forecast.NewPipeline(source, predictor, pipelineOpts)
	return nil
}

// healthDetails reports cache counters and the inference circuit state for
// the /health endpoint.
func (a *application) healthDetails() map[string]interface{} {
	details := make(map[string]interface{})
	if a.cache != nil {
		if stats, ok := a.cache.Stats(); ok {
			details["cache"] = map[string]interface{}{
				"items":     stats.ItemCount,
				"hits":      stats.Hits,
				"misses":    stats.Misses,
				"evictions": stats.Evictions,
				"expired":   stats.Expired,
				"hit_rate":  stats.HitRate(),
			}
		}
	}
	if r, ok := a.predictor.(*inference.Retrying); ok {
		details["inference_circuit"] = r.BreakerState()
	}
	return details
}

// Close releases connections in reverse order of acquisition.
func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", "error", err.Error())
		}
	}
	a.closers = nil
	a.logger.Sync()
}
