package snowflake

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"shiftcast/internal/forecast"
	"shiftcast/pkg/errors"
)

// DefaultOutputField is the column name model registry regressions emit.
const DefaultOutputField = "output_feature_0"

// RegistryPredictor scores feature rows with a model from the Snowflake model
// registry. The default version is resolved once and reused.
type RegistryPredictor struct {
	db          Querier
	model       string
	outputField string
	timeout     time.Duration

	mu      sync.Mutex
	version string
}

// NewRegistryPredictor validates names and returns a predictor. An empty
// version means the model's default version.
func NewRegistryPredictor(db Querier, model, version, outputField string, timeout time.Duration) (*RegistryPredictor, error) {
	if err := ValidateIdentifier("inference.model_name", model); err != nil {
		return nil, err
	}
	if version != "" {
		if err := ValidateIdentifier("inference.model_version", version); err != nil {
			return nil, err
		}
	}
	if outputField == "" {
		outputField = DefaultOutputField
	}
	if err := ValidateIdentifier("inference.output_field", outputField); err != nil {
		return nil, err
	}
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	return &RegistryPredictor{
		db:          db,
		model:       model,
		version:     version,
		outputField: outputField,
		timeout:     timeout,
	}, nil
}

// ResolveVersion returns the pinned version or looks up the default one.
func (p *RegistryPredictor) ResolveVersion(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.version != "" {
		return p.version, nil
	}

	query := fmt.Sprintf("SHOW VERSIONS IN MODEL %s", p.model)
	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return "", inferenceFailure("Model not found in registry",
			errors.SQLError("Failed to list model versions", query, err)).
			WithContext("model", p.model)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeResultParsing, "Failed to read model versions")
	}
	nameIdx, defaultIdx := -1, -1
	for i, c := range cols {
		switch strings.ToLower(c) {
		case "name":
			nameIdx = i
		case "is_default_version":
			defaultIdx = i
		}
	}
	if nameIdx < 0 || defaultIdx < 0 {
		return "", errors.New(errors.ErrCodeResultParsing, "Unexpected SHOW VERSIONS output").
			WithContext("columns", cols)
	}

	var version string
	for rows.Next() {
		values := make([]interface{}, len(cols))
		valuePtrs := make([]interface{}, len(cols))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return "", errors.Wrap(err, errors.ErrCodeResultParsing, "Failed to read model versions")
		}
		if truthy(values[defaultIdx]) {
			version = asString(values[nameIdx])
			break
		}
	}
	if err := rows.Err(); err != nil {
		return "", inferenceFailure("Failed to list model versions", err)
	}

	if version == "" {
		return "", errors.ServiceUnavailableError("Model has no default version", nil).
			WithContext("model", p.model).
			WithSuggestions("Pin inference.model_version in the config")
	}
	if err := ValidateIdentifier("model version", version); err != nil {
		return "", errors.ServiceUnavailableError("Registry returned an unusable version name", err)
	}

	p.version = version
	return version, nil
}

func (p *RegistryPredictor) query(version, values string) string {
	return fmt.Sprintf(
		"WITH mv AS MODEL %s VERSION %s SELECT v.column1 AS ordinal, mv!PREDICT(%s):%s::FLOAT AS prediction FROM (VALUES %s) AS v ORDER BY ordinal",
		p.model, version, featureArgs(), p.outputField, values)
}

// Predict implements forecast.Predictor.
func (p *RegistryPredictor) Predict(ctx context.Context, rows []forecast.FeatureRow) ([]float64, error) {
	if len(rows) == 0 {
		return []float64{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	version, err := p.ResolveVersion(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]float64, len(rows))
	for start := 0; start < len(rows); start += maxBatchRows {
		end := start + maxBatchRows
		if end > len(rows) {
			end = len(rows)
		}

		values, args := valuesList(rows[start:end], start)
		if err := scanPredictions(ctx, p.db, p.query(version, values), args, out, start, end); err != nil {
			return nil, inferenceFailure("Model registry inference failed", err).
				WithContext("model", p.model).
				WithContext("version", version)
		}
	}
	return out, nil
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return strings.EqualFold(t, "true")
	case []byte:
		return strings.EqualFold(string(t), "true")
	}
	return false
}

func asString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}
