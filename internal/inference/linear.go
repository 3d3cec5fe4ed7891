package inference

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"shiftcast/internal/forecast"
	"shiftcast/pkg/errors"
)

// LinearModel evaluates intercept + X·coefficients locally.
type LinearModel struct {
	coef      *mat.VecDense
	intercept float64
}

// NewLinearModel expects one coefficient per feature column.
func NewLinearModel(coefficients []float64, intercept float64) (*LinearModel, error) {
	if len(coefficients) != len(forecast.FeatureColumns) {
		return nil, errors.ConfigError(
			fmt.Sprintf("inference.coefficients needs %d values (%v), got %d",
				len(forecast.FeatureColumns), forecast.FeatureColumns, len(coefficients)),
			"inference.coefficients")
	}

	c := make([]float64, len(coefficients))
	copy(c, coefficients)
	return &LinearModel{coef: mat.NewVecDense(len(c), c), intercept: intercept}, nil
}

// Predict implements forecast.Predictor.
func (m *LinearModel) Predict(ctx context.Context, rows []forecast.FeatureRow) ([]float64, error) {
	if len(rows) == 0 {
		return []float64{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	width := len(forecast.FeatureColumns)
	data := make([]float64, 0, len(rows)*width)
	for _, r := range rows {
		data = append(data, r.Vector()...)
	}
	x := mat.NewDense(len(rows), width, data)

	var y mat.VecDense
	y.MulVec(x, m.coef)

	out := make([]float64, len(rows))
	for i := range out {
		out[i] = y.AtVec(i) + m.intercept
	}
	return out, nil
}
