package forecast

import (
	"time"

	"shiftcast/pkg/errors"
)

// FilterShift keeps the records of one city and shift, in input order.
func FilterShift(records []WindowedRecord, city string, shift Shift) []WindowedRecord {
	var out []WindowedRecord
	for _, r := range records {
		if r.City == city && r.Shift == shift {
			out = append(out, r)
		}
	}
	return out
}

// SelectTargetDate returns the earliest date among placeholder records. The
// first placeholder row stands for "tomorrow" regardless of how far ahead the
// table has been materialized, so wall-clock time is never consulted.
func SelectTargetDate(records []WindowedRecord) (time.Time, error) {
	var target time.Time
	found := false

	for _, r := range records {
		if !r.IsPlaceholder() {
			continue
		}
		d := CalendarDate(r.Date)
		if !found || d.Before(target) {
			target = d
			found = true
		}
	}

	if !found {
		return time.Time{}, errors.New(errors.ErrCodeNoTargetDate, "No placeholder row found").
			WithSeverity(errors.SeverityWarning)
	}
	return target, nil
}

// BuildFeatureRows turns the records dated targetDate into model input. Raw
// sales are dropped and the shift is encoded as AM=1, PM=0.
func BuildFeatureRows(records []WindowedRecord, targetDate time.Time) []FeatureRow {
	day := CalendarDate(targetDate)

	var rows []FeatureRow
	for _, r := range records {
		if !sameDay(r.Date, day) {
			continue
		}
		rows = append(rows, FeatureRow{
			LocationID:            r.LocationID,
			City:                  r.City,
			Date:                  day,
			Latitude:              r.Latitude,
			Longitude:             r.Longitude,
			CityPopulation:        r.CityPopulation,
			Month:                 r.Month,
			DayOfWeek:             r.DayOfWeek,
			AvgLocationShiftSales: r.AvgLocationShiftSales,
			Shift:                 r.Shift.Encode(),
		})
	}
	return rows
}

// JoinPredictions pairs each feature row with the prediction at the same
// position. The lengths must match.
func JoinPredictions(rows []FeatureRow, predictions []float64) ([]PredictionRow, error) {
	if len(rows) != len(predictions) {
		return nil, errors.ServiceUnavailableError("Inference returned a different number of predictions than rows", nil).
			WithContext("rows", len(rows)).
			WithContext("predictions", len(predictions))
	}

	out := make([]PredictionRow, len(rows))
	for i, r := range rows {
		out[i] = PredictionRow{
			LocationID:            r.LocationID,
			Latitude:              r.Latitude,
			Longitude:             r.Longitude,
			AvgLocationShiftSales: r.AvgLocationShiftSales,
			PredictedShiftSales:   predictions[i],
		}
	}
	return out, nil
}

// ClampForDisplay returns a copy with negative predictions raised to zero.
// Negative sales are meaningless on a map or in a table.
func ClampForDisplay(rows []PredictionRow) []PredictionRow {
	out := make([]PredictionRow, len(rows))
	for i, r := range rows {
		if r.PredictedShiftSales < 0 {
			r.PredictedShiftSales = 0
		}
		out[i] = r
	}
	return out
}
