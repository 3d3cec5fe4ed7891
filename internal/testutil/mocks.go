package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"shiftcast/internal/forecast"
)

// MockSource is an in-memory forecast.Source.
type MockSource struct {
	mu      sync.Mutex
	Records []forecast.ShiftSalesRecord
	Err     error
	Calls   int
}

// NewMockSource returns a source over the given records.
func NewMockSource(records []forecast.ShiftSalesRecord) *MockSource {
	return &MockSource{Records: records}
}

// Cities implements forecast.Source.
func (m *MockSource) Cities(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}

	seen := make(map[string]bool)
	var cities []string
	for _, r := range m.Records {
		if !seen[r.City] {
			seen[r.City] = true
			cities = append(cities, r.City)
		}
	}
	sort.Strings(cities)
	return cities, nil
}

// ShiftSales implements forecast.Source.
func (m *MockSource) ShiftSales(ctx context.Context, city string) ([]forecast.ShiftSalesRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}

	var out []forecast.ShiftSalesRecord
	for _, r := range m.Records {
		if r.City == city {
			out = append(out, r)
		}
	}
	return out, nil
}

// MockPredictor returns canned predictions. When Fn is nil every row gets
// its trailing average plus Offset.
type MockPredictor struct {
	mu       sync.Mutex
	Fn       func(rows []forecast.FeatureRow) ([]float64, error)
	Offset   float64
	Err      error
	Calls    int
	LastRows []forecast.FeatureRow
}

// Predict implements forecast.Predictor.
func (m *MockPredictor) Predict(ctx context.Context, rows []forecast.FeatureRow) ([]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	m.LastRows = rows
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Fn != nil {
		return m.Fn(rows)
	}

	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = r.AvgLocationShiftSales + m.Offset
	}
	return out, nil
}

// MockCache is a map-backed forecast.ResultCache.
type MockCache struct {
	mu      sync.Mutex
	entries map[string][]forecast.PredictionRow
	GetErr  error
	SetErr  error
	Gets    int
	Sets    int
}

// NewMockCache returns an empty cache.
func NewMockCache() *MockCache {
	return &MockCache{entries: make(map[string][]forecast.PredictionRow)}
}

func mockKey(city string, shift forecast.Shift) string {
	return fmt.Sprintf("%s|%s", city, shift)
}

// Get implements forecast.ResultCache.
func (m *MockCache) Get(ctx context.Context, city string, shift forecast.Shift) ([]forecast.PredictionRow, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Gets++
	if m.GetErr != nil {
		return nil, false, m.GetErr
	}
	rows, ok := m.entries[mockKey(city, shift)]
	return rows, ok, nil
}

// Set implements forecast.ResultCache.
func (m *MockCache) Set(ctx context.Context, city string, shift forecast.Shift, rows []forecast.PredictionRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sets++
	if m.SetErr != nil {
		return m.SetErr
	}
	m.entries[mockKey(city, shift)] = rows
	return nil
}

// Len reports the number of cached keys.
func (m *MockCache) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
