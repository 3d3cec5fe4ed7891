package snowflake

import (
	"context"
	"database/sql"
	"database/sql/driver"
	stderrors "errors"
	"fmt"
	"net"
	"strings"
	"time"

	"shiftcast/internal/forecast"
	"shiftcast/pkg/errors"
)

// DefaultUDF is the scalar function the regression model was deployed as.
const DefaultUDF = "udf_linreg_predict_location_sales"

// maxBatchRows bounds the size of a single VALUES list.
const maxBatchRows = 500

// UDFPredictor scores feature rows with a scalar UDF.
type UDFPredictor struct {
	db      Querier
	udf     string
	timeout time.Duration
}

// NewUDFPredictor validates the function name and returns a predictor.
func NewUDFPredictor(db Querier, udf string, timeout time.Duration) (*UDFPredictor, error) {
	if udf == "" {
		udf = DefaultUDF
	}
	if err := ValidateIdentifier("inference.udf_name", udf); err != nil {
		return nil, err
	}
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &UDFPredictor{db: db, udf: udf, timeout: timeout}, nil
}

// valuesList renders "(?, ?, ...), (...)" for n rows of width placeholders
// and the matching arguments: the row ordinal followed by the feature vector.
func valuesList(rows []forecast.FeatureRow, offset int) (string, []interface{}) {
	width := len(forecast.FeatureColumns) + 1
	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", width), ", ") + ")"

	tuples := make([]string, len(rows))
	args := make([]interface{}, 0, len(rows)*width)
	for i, r := range rows {
		tuples[i] = placeholder
		args = append(args, offset+i)
		for _, v := range r.Vector() {
			args = append(args, v)
		}
	}
	return strings.Join(tuples, ", "), args
}

// featureArgs returns "v.column2, ..., v.column8", the feature columns of a
// VALUES tuple in model order.
func featureArgs() string {
	cols := make([]string, len(forecast.FeatureColumns))
	for i := range forecast.FeatureColumns {
		cols[i] = fmt.Sprintf("v.column%d", i+2)
	}
	return strings.Join(cols, ", ")
}

func (p *UDFPredictor) query(values string) string {
	return fmt.Sprintf("SELECT v.column1 AS ordinal, %s(%s) AS prediction FROM (VALUES %s) AS v ORDER BY ordinal",
		p.udf, featureArgs(), values)
}

// Predict implements forecast.Predictor.
func (p *UDFPredictor) Predict(ctx context.Context, rows []forecast.FeatureRow) ([]float64, error) {
	if len(rows) == 0 {
		return []float64{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	out := make([]float64, len(rows))
	for start := 0; start < len(rows); start += maxBatchRows {
		end := start + maxBatchRows
		if end > len(rows) {
			end = len(rows)
		}

		values, args := valuesList(rows[start:end], start)
		query := p.query(values)
		if err := scanPredictions(ctx, p.db, query, args, out, start, end); err != nil {
			return nil, inferenceFailure("UDF inference failed", err).
				WithContext("udf", p.udf)
		}
	}
	return out, nil
}

// scanPredictions runs query and stores each (ordinal, prediction) pair in
// out. Every ordinal in [start, end) must come back exactly once.
func scanPredictions(ctx context.Context, db Querier, query string, args []interface{}, out []float64, start, end int) error {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return errors.SQLError("Inference query failed", query, err)
	}
	defer rows.Close()

	seen := make(map[int]bool, end-start)
	for rows.Next() {
		var (
			ordinal    int
			prediction sql.NullFloat64
		)
		if err := rows.Scan(&ordinal, &prediction); err != nil {
			return errors.Wrap(err, errors.ErrCodeResultParsing, "Failed to read prediction")
		}
		if ordinal < start || ordinal >= end || seen[ordinal] {
			return errors.New(errors.ErrCodeResultParsing, "Unexpected row ordinal in inference result").
				WithContext("ordinal", ordinal)
		}
		if !prediction.Valid {
			return errors.New(errors.ErrCodeResultParsing, "Model returned a null prediction").
				WithContext("ordinal", ordinal)
		}
		seen[ordinal] = true
		out[ordinal] = prediction.Float64
	}
	if err := rows.Err(); err != nil {
		return errors.SQLError("Inference query failed", query, err)
	}

	if len(seen) != end-start {
		return errors.New(errors.ErrCodeResultParsing, "Inference returned fewer predictions than rows").
			WithContext("expected", end-start).
			WithContext("received", len(seen))
	}
	return nil
}

// inferenceFailure wraps err as ServiceUnavailable. Only timeouts and dropped
// connections are marked recoverable; a missing model or a bad result is not.
func inferenceFailure(message string, err error) *errors.AppError {
	appErr := errors.ServiceUnavailableError(message, err)
	if transient(err) {
		appErr.AsRecoverable()
	}
	return appErr
}

func transient(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, driver.ErrBadConn) {
		return true
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	switch errors.GetErrorCode(err) {
	case errors.ErrCodeSQLTimeout, errors.ErrCodeConnectionTimeout, errors.ErrCodeNetworkUnavailable:
		return true
	}
	return false
}
