// Package forecast prepares one inference-ready feature row per food-truck
// location for the next unobserved shift and joins model output back onto it.
package forecast

import (
	"fmt"
	"strings"
	"time"

	"shiftcast/pkg/errors"
)

// Shift is one of the two daily service windows.
type Shift string

const (
	ShiftAM Shift = "AM"
	ShiftPM Shift = "PM"
)

// ParseShift accepts AM or PM in any case.
func ParseShift(s string) (Shift, error) {
	switch Shift(strings.ToUpper(strings.TrimSpace(s))) {
	case ShiftAM:
		return ShiftAM, nil
	case ShiftPM:
		return ShiftPM, nil
	}
	return "", errors.New(errors.ErrCodeInvalidShift, fmt.Sprintf("Invalid shift %q", s)).
		WithContext("shift", s).
		WithSeverity(errors.SeverityWarning).
		WithSuggestions("Use AM or PM")
}

// Encode returns the model's binary indicator: AM=1, PM=0.
func (s Shift) Encode() int {
	if s == ShiftAM {
		return 1
	}
	return 0
}

// Partition selects which records share a trailing-average window.
type Partition string

const (
	// PartitionLocation blends AM and PM history into one average per location.
	PartitionLocation Partition = "location"
	// PartitionLocationShift tracks AM and PM history separately.
	PartitionLocationShift Partition = "location_shift"
)

// ParsePartition validates a configured partition key. Empty means PartitionLocation.
func ParsePartition(s string) (Partition, error) {
	switch Partition(strings.ToLower(strings.TrimSpace(s))) {
	case "", PartitionLocation:
		return PartitionLocation, nil
	case PartitionLocationShift:
		return PartitionLocationShift, nil
	}
	return "", errors.ConfigError(fmt.Sprintf("Unknown partition %q (want location or location_shift)", s), "pipeline.partition")
}

// ShiftSalesRecord is one row of the historical table. A nil ShiftSales marks
// a placeholder for a shift that has not been observed yet.
type ShiftSalesRecord struct {
	LocationID     int64     `json:"location_id" db:"location_id"`
	City           string    `json:"city" db:"city"`
	Shift          Shift     `json:"shift" db:"shift"`
	Date           time.Time `json:"date" db:"date"`
	ShiftSales     *float64  `json:"shift_sales" db:"shift_sales"`
	Latitude       float64   `json:"latitude" db:"latitude"`
	Longitude      float64   `json:"longitude" db:"longitude"`
	CityPopulation float64   `json:"city_population" db:"city_population"`
	Month          int       `json:"month" db:"month"`
	DayOfWeek      int       `json:"day_of_week" db:"day_of_week"`
}

// IsPlaceholder reports whether the record marks an unobserved shift.
func (r ShiftSalesRecord) IsPlaceholder() bool {
	return r.ShiftSales == nil
}

// WindowedRecord is a record with its trailing average attached.
type WindowedRecord struct {
	ShiftSalesRecord
	AvgLocationShiftSales float64 `json:"avg_location_shift_sales"`
}

// FeatureColumns is the column order the regression model was trained on.
var FeatureColumns = []string{
	"MONTH",
	"DAY_OF_WEEK",
	"LATITUDE",
	"LONGITUDE",
	"CITY_POPULATION",
	"AVG_LOCATION_SHIFT_SALES",
	"SHIFT",
}

// FeatureRow is the model input for one location on the target date.
type FeatureRow struct {
	LocationID            int64     `json:"location_id"`
	City                  string    `json:"city"`
	Date                  time.Time `json:"date"`
	Latitude              float64   `json:"latitude"`
	Longitude             float64   `json:"longitude"`
	CityPopulation        float64   `json:"city_population"`
	Month                 int       `json:"month"`
	DayOfWeek             int       `json:"day_of_week"`
	AvgLocationShiftSales float64   `json:"avg_location_shift_sales"`
	Shift                 int       `json:"shift"`
}

// Vector returns the feature values in FeatureColumns order.
func (f FeatureRow) Vector() []float64 {
	return []float64{
		float64(f.Month),
		float64(f.DayOfWeek),
		f.Latitude,
		f.Longitude,
		f.CityPopulation,
		f.AvgLocationShiftSales,
		float64(f.Shift),
	}
}

// PredictionRow is a feature row joined with the model's output.
type PredictionRow struct {
	LocationID            int64   `json:"location_id"`
	Latitude              float64 `json:"latitude"`
	Longitude             float64 `json:"longitude"`
	AvgLocationShiftSales float64 `json:"avg_location_shift_sales"`
	PredictedShiftSales   float64 `json:"predicted_shift_sales"`
}

// CalendarDate truncates t to midnight UTC of its calendar day.
func CalendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
