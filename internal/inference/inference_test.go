package inference

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shiftcast/internal/forecast"
	"shiftcast/internal/observability"
	"shiftcast/internal/snowflake"
	"shiftcast/internal/testutil"
	"shiftcast/pkg/errors"
	"shiftcast/pkg/models"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
)

func featureRows() []forecast.FeatureRow {
	return []forecast.FeatureRow{
		{LocationID: 1, Month: 5, DayOfWeek: 2, Latitude: 49.2, Longitude: -123.1, CityPopulation: 100, AvgLocationShiftSales: 10, Shift: 1},
		{LocationID: 2, Month: 5, DayOfWeek: 2, Latitude: 49.3, Longitude: -123.2, CityPopulation: 100, AvgLocationShiftSales: 20, Shift: 1},
	}
}

func TestHTTPPredictor(t *testing.T) {
	var received batchPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Header().Set("Content-Type", "application/json")
		// Out of order on purpose.
		_, _ = w.Write([]byte(`{"data": [[1, 250.5], [0, -4]]}`))
	}))
	defer server.Close()

	p, err := NewHTTPPredictor(server.URL, time.Second)
	require.NoError(t, err)

	preds, err := p.Predict(context.Background(), featureRows())
	require.NoError(t, err)
	assert.Equal(t, []float64{-4, 250.5}, preds)

	require.Len(t, received.Data, 2)
	assert.Equal(t, []float64{0, 5, 2, 49.2, -123.1, 100, 10, 1}, received.Data[0])
	assert.Equal(t, 1.0, received.Data[1][0])
}

func TestHTTPPredictor_Failures(t *testing.T) {
	tests := []struct {
		name        string
		handler     http.HandlerFunc
		recoverable bool
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "model not loaded", http.StatusInternalServerError)
			},
		},
		{
			name: "overloaded",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "busy", http.StatusServiceUnavailable)
			},
			recoverable: true,
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"data": "nope"`))
			},
		},
		{
			name: "too few rows",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"data": [[0, 1]]}`))
			},
		},
		{
			name: "duplicate index",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"data": [[0, 1], [0, 2]]}`))
			},
		},
		{
			name: "fractional index",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"data": [[0, 1], [0.5, 2]]}`))
			},
		},
		{
			name: "slow endpoint",
			handler: func(w http.ResponseWriter, r *http.Request) {
				time.Sleep(200 * time.Millisecond)
				_, _ = w.Write([]byte(`{"data": [[0, 1], [1, 2]]}`))
			},
			recoverable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			p, err := NewHTTPPredictor(server.URL, 50*time.Millisecond)
			require.NoError(t, err)

			_, err = p.Predict(context.Background(), featureRows())
			require.Error(t, err)
			assert.True(t, stderrors.Is(err, errors.ErrServiceUnavailable), "got %v", err)
			assert.Equal(t, tt.recoverable, errors.IsRecoverable(err))
		})
	}
}

func TestNewHTTPPredictor_RequiresEndpoint(t *testing.T) {
	_, err := NewHTTPPredictor("", 0)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConfigInvalid, errors.GetErrorCode(err))
}

func TestLinearModel(t *testing.T) {
	m, err := NewLinearModel([]float64{0, 0, 0, 0, 0, 2, 10}, 1.5)
	require.NoError(t, err)

	preds, err := m.Predict(context.Background(), featureRows())
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{31.5, 51.5}, preds, 1e-9)

	empty, err := m.Predict(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = NewLinearModel([]float64{1, 2}, 0)
	require.Error(t, err)
}

func TestRetrying_RetriesOnce(t *testing.T) {
	calls := 0
	inner := &testutil.MockPredictor{Fn: func(rows []forecast.FeatureRow) ([]float64, error) {
		calls++
		if calls == 1 {
			return nil, errors.ServiceUnavailableError("timeout", nil).AsRecoverable()
		}
		return []float64{1, 2}, nil
	}}

	r := NewRetrying(inner, time.Millisecond, nil)
	preds, err := r.Predict(context.Background(), featureRows())
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, preds)
	assert.Equal(t, 2, calls)
}

func TestRetrying_GivesUpAfterOneRetry(t *testing.T) {
	inner := &testutil.MockPredictor{Err: errors.ServiceUnavailableError("timeout", nil).AsRecoverable()}

	r := NewRetrying(inner, time.Millisecond, nil)
	_, err := r.Predict(context.Background(), featureRows())
	require.Error(t, err)
	assert.Equal(t, 2, inner.Calls)
	assert.Equal(t, errors.ErrCodeServiceUnavailable, errors.GetErrorCode(err))
}

func TestRetrying_PermanentServiceErrorNotRetried(t *testing.T) {
	inner := &testutil.MockPredictor{Err: errors.ServiceUnavailableError("Model has no default version", nil)}

	r := NewRetrying(inner, time.Millisecond, nil)
	_, err := r.Predict(context.Background(), featureRows())
	require.Error(t, err)
	assert.Equal(t, 1, inner.Calls)
	assert.Equal(t, errors.ErrCodeServiceUnavailable, errors.GetErrorCode(err))
	assert.False(t, errors.IsRecoverable(err))
}

func TestRetrying_NonTransientNotRetried(t *testing.T) {
	inner := &testutil.MockPredictor{Err: stderrors.New("bad request")}

	r := NewRetrying(inner, time.Millisecond, nil)
	_, err := r.Predict(context.Background(), featureRows())
	require.Error(t, err)
	assert.Equal(t, 1, inner.Calls)
	assert.Equal(t, errors.ErrCodeServiceUnavailable, errors.GetErrorCode(err))
}

func TestRetrying_CircuitOpens(t *testing.T) {
	inner := &testutil.MockPredictor{Err: stderrors.New("down")}
	r := NewRetrying(inner, time.Millisecond, nil)

	for i := 0; i < 5; i++ {
		_, _ = r.Predict(context.Background(), featureRows())
	}
	assert.Equal(t, "open", r.BreakerState())

	calls := inner.Calls
	_, err := r.Predict(context.Background(), featureRows())
	require.Error(t, err)
	assert.Equal(t, calls, inner.Calls, "open circuit must not call the model")
	assert.True(t, stderrors.Is(err, errors.ErrServiceUnavailable))
}

func TestInstrumented(t *testing.T) {
	metrics := observability.NewMetrics()
	ok := NewInstrumented(&testutil.MockPredictor{}, "linear", metrics)
	bad := NewInstrumented(&testutil.MockPredictor{Err: stderrors.New("x")}, "http", metrics)

	_, err := ok.Predict(context.Background(), featureRows())
	require.NoError(t, err)
	_, err = bad.Predict(context.Background(), featureRows())
	require.Error(t, err)

	count, err := promtest.GatherAndCount(metrics.Registry(), "shiftcast_inference_calls_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestNew(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	tests := []struct {
		name    string
		cfg     models.Inference
		db      snowflake.Querier
		wantErr bool
		check   func(t *testing.T, p forecast.Predictor)
	}{
		{
			name: "default is udf",
			cfg:  models.Inference{},
			db:   db,
			check: func(t *testing.T, p forecast.Predictor) {
				inst, ok := p.(*Instrumented)
				require.True(t, ok)
				assert.IsType(t, &snowflake.UDFPredictor{}, inst.next)
			},
		},
		{
			name: "registry with retry",
			cfg:  models.Inference{Strategy: models.StrategyRegistry, ModelName: "shift_model", Retry: true},
			db:   db,
			check: func(t *testing.T, p forecast.Predictor) {
				assert.IsType(t, &Retrying{}, p)
			},
		},
		{
			name: "linear needs no db",
			cfg:  models.Inference{Strategy: models.StrategyLinear, Coefficients: make([]float64, 7)},
		},
		{
			name: "http",
			cfg:  models.Inference{Strategy: models.StrategyHTTP, Endpoint: "http://localhost:9/predict"},
		},
		{name: "udf without db", cfg: models.Inference{Strategy: models.StrategyUDF}, wantErr: true},
		{name: "registry without model", cfg: models.Inference{Strategy: models.StrategyRegistry}, db: db, wantErr: true},
		{name: "unknown strategy", cfg: models.Inference{Strategy: "magic"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.cfg, tt.db, nil, nil)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, errors.ErrCodeConfigInvalid, errors.GetErrorCode(err))
				return
			}
			require.NoError(t, err)
			require.NotNil(t, p)
			if tt.check != nil {
				tt.check(t, p)
			}
		})
	}
}
