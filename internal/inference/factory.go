package inference

import (
	"fmt"
	"time"

	"shiftcast/internal/forecast"
	"shiftcast/internal/observability"
	"shiftcast/internal/snowflake"
	"shiftcast/pkg/errors"
	"shiftcast/pkg/models"
)

// retryDelay is the pause before the single inference retry.
const retryDelay = 500 * time.Millisecond

// New builds the predictor selected by cfg.Strategy. db is only used by the
// in-warehouse strategies and may be nil otherwise.
func New(cfg models.Inference, db snowflake.Querier, logger *observability.Logger, metrics *observability.Metrics) (forecast.Predictor, error) {
	strategy := cfg.Strategy
	if strategy == "" {
		strategy = models.StrategyUDF
	}

	if (strategy == models.StrategyUDF || strategy == models.StrategyRegistry) && db == nil {
		return nil, errors.ConfigError(
			fmt.Sprintf("The %s strategy needs a Snowflake connection", strategy), "inference.strategy")
	}

	var (
		base forecast.Predictor
		err  error
	)
	switch strategy {
	case models.StrategyUDF:
		base, err = snowflake.NewUDFPredictor(db, cfg.UDFName, cfg.Timeout)
	case models.StrategyRegistry:
		if cfg.ModelName == "" {
			return nil, errors.ConfigError("inference.model_name is required for the registry strategy", "inference.model_name")
		}
		base, err = snowflake.NewRegistryPredictor(db, cfg.ModelName, cfg.ModelVersion, cfg.OutputField, cfg.Timeout)
	case models.StrategyHTTP:
		base, err = NewHTTPPredictor(cfg.Endpoint, cfg.Timeout)
	case models.StrategyLinear:
		base, err = NewLinearModel(cfg.Coefficients, cfg.Intercept)
	default:
		return nil, errors.ConfigError(
			fmt.Sprintf("Unknown inference strategy %q (want udf, registry, http or linear)", strategy),
			"inference.strategy")
	}
	if err != nil {
		return nil, err
	}

	predictor := forecast.Predictor(NewInstrumented(base, strategy, metrics))
	if cfg.Retry {
		predictor = NewRetrying(predictor, retryDelay, logger)
	}
	return predictor, nil
}
