package inference

import (
	"context"
	"time"

	"shiftcast/internal/forecast"
	"shiftcast/internal/observability"
	"shiftcast/pkg/errors"
)

// Retrying gives a predictor one more attempt on transient failures and
// stops calling it while its circuit is open. Every failure it returns
// carries ErrCodeServiceUnavailable.
type Retrying struct {
	next    forecast.Predictor
	config  *errors.RetryConfig
	breaker *errors.CircuitBreaker
}

// NewRetrying wraps next. delay is the pause before the single retry.
func NewRetrying(next forecast.Predictor, delay time.Duration, logger *observability.Logger) *Retrying {
	if logger == nil {
		logger = observability.NopLogger()
	}
	config := errors.SingleRetryConfig(delay)
	config.OnRetry = func(attempt int, err error, delay time.Duration) {
		logger.Warn("retrying inference",
			"attempt", attempt,
			"delay", delay.String(),
			"code", string(errors.GetErrorCode(err)))
	}

	return &Retrying{
		next:    next,
		config:  config,
		breaker: errors.NewCircuitBreaker("inference", 5, 30*time.Second),
	}
}

// Predict implements forecast.Predictor.
func (r *Retrying) Predict(ctx context.Context, rows []forecast.FeatureRow) ([]float64, error) {
	var preds []float64
	err := r.breaker.Execute(ctx, func() error {
		return errors.Retry(ctx, r.config, func(ctx context.Context) error {
			var err error
			preds, err = r.next.Predict(ctx, rows)
			return err
		})
	})
	if err != nil {
		if errors.GetErrorCode(err) != errors.ErrCodeServiceUnavailable {
			wrapped := errors.ServiceUnavailableError("Inference failed", err)
			if errors.IsRecoverable(err) {
				wrapped.AsRecoverable()
			}
			return nil, wrapped
		}
		return nil, err
	}
	return preds, nil
}

// BreakerState reports the circuit state: closed, open or half-open.
func (r *Retrying) BreakerState() string {
	return r.breaker.GetState()
}

// Instrumented records call counts and latency per strategy.
type Instrumented struct {
	next     forecast.Predictor
	strategy string
	metrics  *observability.Metrics
}

// NewInstrumented wraps next. A nil metrics disables recording.
func NewInstrumented(next forecast.Predictor, strategy string, metrics *observability.Metrics) *Instrumented {
	return &Instrumented{next: next, strategy: strategy, metrics: metrics}
}

// Predict implements forecast.Predictor.
func (i *Instrumented) Predict(ctx context.Context, rows []forecast.FeatureRow) ([]float64, error) {
	start := time.Now()
	preds, err := i.next.Predict(ctx, rows)
	i.metrics.ObserveInference(i.strategy, len(rows), time.Since(start), err)
	return preds, err
}
