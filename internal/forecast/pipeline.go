package forecast

import (
	"context"
	"time"

	"github.com/google/uuid"

	"shiftcast/internal/observability"
	"shiftcast/pkg/errors"
)

// Source reads historical shift sales.
type Source interface {
	// Cities lists the distinct cities present in the table, sorted.
	Cities(ctx context.Context) ([]string, error)
	// ShiftSales returns every record of a city, both shifts, placeholders included.
	ShiftSales(ctx context.Context, city string) ([]ShiftSalesRecord, error)
}

// Predictor invokes the regression model. It must return exactly one value per
// row, in row order.
type Predictor interface {
	Predict(ctx context.Context, rows []FeatureRow) ([]float64, error)
}

// ResultCache stores pipeline results keyed strictly on (city, shift).
type ResultCache interface {
	Get(ctx context.Context, city string, shift Shift) ([]PredictionRow, bool, error)
	Set(ctx context.Context, city string, shift Shift, rows []PredictionRow) error
}

// Options configures a Pipeline. Zero values are usable.
type Options struct {
	Partition Partition
	Cache     ResultCache
	Logger    *observability.Logger
	Metrics   *observability.Metrics
}

// Pipeline turns a city's history into predictions for its next shift.
type Pipeline struct {
	source    Source
	predictor Predictor
	partition Partition
	cache     ResultCache
	logger    *observability.Logger
	metrics   *observability.Metrics
}

// NewPipeline wires a source and a predictor together.
func NewPipeline(source Source, predictor Predictor, opts Options) *Pipeline {
	if opts.Partition == "" {
		opts.Partition = PartitionLocation
	}
	if opts.Logger == nil {
		opts.Logger = observability.NopLogger()
	}
	return &Pipeline{
		source:    source,
		predictor: predictor,
		partition: opts.Partition,
		cache:     opts.Cache,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
	}
}

// Partition reports the configured trailing-average partition.
func (p *Pipeline) Partition() Partition {
	return p.partition
}

// Cities lists the selectable cities.
func (p *Pipeline) Cities(ctx context.Context) ([]string, error) {
	return p.source.Cities(ctx)
}

// Features builds one feature row per location active on the next shift.
func (p *Pipeline) Features(ctx context.Context, city string, shift Shift) ([]FeatureRow, error) {
	if shift != ShiftAM && shift != ShiftPM {
		return nil, errors.New(errors.ErrCodeInvalidShift, "Shift must be AM or PM").
			WithContext("shift", string(shift))
	}

	records, err := p.source.ShiftSales(ctx, city)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.EmptyCityError(city)
	}

	windowed := ComputeTrailingAverage(records, p.partition)
	selected := FilterShift(windowed, city, shift)

	target, err := SelectTargetDate(selected)
	if err != nil {
		return nil, errors.NoTargetDateError(city, string(shift))
	}

	rows := BuildFeatureRows(selected, target)
	p.logger.Debug("feature rows built",
		"city", city,
		"shift", string(shift),
		"target_date", target.Format("2006-01-02"),
		"records", len(records),
		"rows", len(rows),
		"partition", string(p.partition))
	return rows, nil
}

// Predict runs the full pipeline: cache lookup, features, inference, join.
// Inference failures always surface with ErrCodeServiceUnavailable so callers
// can tell "no data" from "no model".
func (p *Pipeline) Predict(ctx context.Context, city string, shift Shift) (rows []PredictionRow, err error) {
	start := time.Now()
	log := p.logger.WithFields(map[string]interface{}{
		"run_id": uuid.NewString(),
		"city":   city,
		"shift":  string(shift),
	})

	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = string(errors.GetErrorCode(err))
		}
		p.metrics.ObservePipeline(outcome, time.Since(start))
	}()

	if p.cache != nil {
		cached, ok, cacheErr := p.cache.Get(ctx, city, shift)
		switch {
		case cacheErr != nil:
			log.Warn("result cache lookup failed", "error", cacheErr)
			p.metrics.CacheMiss()
		case ok:
			p.metrics.CacheHit()
			log.Debug("served from result cache", "rows", len(cached))
			return cached, nil
		default:
			p.metrics.CacheMiss()
		}
	}

	features, err := p.Features(ctx, city, shift)
	if err != nil {
		log.Warn("feature preparation failed", "code", string(errors.GetErrorCode(err)))
		return nil, err
	}

	predictions, err := p.predictor.Predict(ctx, features)
	if err != nil {
		if errors.GetErrorCode(err) != errors.ErrCodeServiceUnavailable {
			wrapped := errors.ServiceUnavailableError("Inference failed", err)
			if errors.IsRecoverable(err) {
				wrapped.AsRecoverable()
			}
			err = wrapped
		}
		log.Error("inference failed", "rows", len(features), "error", err)
		return nil, err
	}

	rows, err = JoinPredictions(features, predictions)
	if err != nil {
		log.Error("prediction join failed", "error", err)
		return nil, err
	}

	if p.cache != nil {
		if cacheErr := p.cache.Set(ctx, city, shift, rows); cacheErr != nil {
			log.Warn("result cache store failed", "error", cacheErr)
		}
	}

	log.Info("pipeline completed", "rows", len(rows), "elapsed", time.Since(start).String())
	return rows, nil
}
