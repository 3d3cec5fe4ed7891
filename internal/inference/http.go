// Package inference holds the model invocation strategies that do not run
// inside the warehouse, plus the retry and metrics wrappers shared by all of
// them.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"shiftcast/internal/forecast"
	"shiftcast/pkg/errors"
)

// batchPayload is the row-batch envelope used by external model endpoints:
// each inner array starts with the row index.
type batchPayload struct {
	Data [][]float64 `json:"data"`
}

// HTTPPredictor posts feature rows to a model-serving endpoint.
type HTTPPredictor struct {
	endpoint   string
	httpClient *http.Client
}

// NewHTTPPredictor returns a predictor for endpoint.
func NewHTTPPredictor(endpoint string, timeout time.Duration) (*HTTPPredictor, error) {
	if endpoint == "" {
		return nil, errors.ConfigError("inference.endpoint is required for the http strategy", "inference.endpoint")
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &HTTPPredictor{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Predict implements forecast.Predictor.
func (p *HTTPPredictor) Predict(ctx context.Context, rows []forecast.FeatureRow) ([]float64, error) {
	if len(rows) == 0 {
		return []float64{}, nil
	}

	request := batchPayload{Data: make([][]float64, len(rows))}
	for i, r := range rows {
		request.Data[i] = append([]float64{float64(i)}, r.Vector()...)
	}

	requestBody, err := json.Marshal(request)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "Failed to encode inference request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(requestBody))
	if err != nil {
		return nil, errors.ConfigError(fmt.Sprintf("Invalid inference endpoint: %v", err), "inference.endpoint")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.ServiceUnavailableError("Inference endpoint unreachable", err).
			WithContext("endpoint", p.endpoint).
			AsRecoverable()
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		appErr := errors.ServiceUnavailableError(
			fmt.Sprintf("Inference endpoint returned %d: %s", resp.StatusCode, bytes.TrimSpace(body)), nil).
			WithContext("endpoint", p.endpoint).
			WithContext("status", resp.StatusCode)
		if transientStatus(resp.StatusCode) {
			appErr.AsRecoverable()
		}
		return nil, appErr
	}

	var response batchPayload
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, errors.ServiceUnavailableError("Malformed inference response",
			errors.Wrap(err, errors.ErrCodeResultParsing, "Failed to decode inference response"))
	}

	return orderByIndex(response.Data, len(rows))
}

// orderByIndex places each [index, value] pair at its index. Every index in
// [0, n) must appear exactly once.
func orderByIndex(data [][]float64, n int) ([]float64, error) {
	if len(data) != n {
		return nil, errors.ServiceUnavailableError("Inference response row count mismatch", nil).
			WithContext("expected", n).
			WithContext("received", len(data))
	}

	out := make([]float64, n)
	seen := make([]bool, n)
	for _, pair := range data {
		if len(pair) != 2 {
			return nil, errors.ServiceUnavailableError("Inference response rows must be [index, value]", nil)
		}
		idx := int(pair[0])
		if float64(idx) != pair[0] || idx < 0 || idx >= n || seen[idx] {
			return nil, errors.ServiceUnavailableError("Inference response has an invalid row index", nil).
				WithContext("index", pair[0])
		}
		seen[idx] = true
		out[idx] = pair[1]
	}
	return out, nil
}

// transientStatus reports statuses a serving endpoint returns while it is
// overloaded or restarting.
func transientStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
