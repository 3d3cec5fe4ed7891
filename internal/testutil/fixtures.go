package testutil

import (
	"time"

	"shiftcast/internal/forecast"
)

// Day returns midnight UTC of 2023-05-<day>, the fixture calendar.
func Day(day int) time.Time {
	return time.Date(2023, time.May, day, 0, 0, 0, 0, time.UTC)
}

// Sales returns a pointer for ShiftSalesRecord.ShiftSales.
func Sales(v float64) *float64 {
	return &v
}

// RecordBuilder builds shift sales records for one city.
type RecordBuilder struct {
	city       string
	population float64
	records    []forecast.ShiftSalesRecord
}

// NewRecordBuilder starts a record set for a city.
func NewRecordBuilder(city string, population float64) *RecordBuilder {
	return &RecordBuilder{city: city, population: population}
}

// Observed adds a record with known sales.
func (b *RecordBuilder) Observed(locationID int64, shift forecast.Shift, date time.Time, sales float64) *RecordBuilder {
	return b.add(locationID, shift, date, Sales(sales))
}

// Placeholder adds a future record with unknown sales.
func (b *RecordBuilder) Placeholder(locationID int64, shift forecast.Shift, date time.Time) *RecordBuilder {
	return b.add(locationID, shift, date, nil)
}

func (b *RecordBuilder) add(locationID int64, shift forecast.Shift, date time.Time, sales *float64) *RecordBuilder {
	b.records = append(b.records, forecast.ShiftSalesRecord{
		LocationID:     locationID,
		City:           b.city,
		Shift:          shift,
		Date:           date,
		ShiftSales:     sales,
		Latitude:       49.28 + float64(locationID)/1000,
		Longitude:      -123.12 - float64(locationID)/1000,
		CityPopulation: b.population,
		Month:          int(date.Month()),
		DayOfWeek:      int(date.Weekday()),
	})
	return b
}

// Records returns a copy of the built records.
func (b *RecordBuilder) Records() []forecast.ShiftSalesRecord {
	out := make([]forecast.ShiftSalesRecord, len(b.records))
	copy(out, b.records)
	return out
}

// VancouverHistory is a small two-location history with placeholders on the
// 5th and 6th of May for both shifts.
func VancouverHistory() []forecast.ShiftSalesRecord {
	return NewRecordBuilder("Vancouver", 2632000).
		Observed(1, forecast.ShiftAM, Day(1), 10).
		Observed(1, forecast.ShiftPM, Day(1), 100).
		Observed(1, forecast.ShiftAM, Day(2), 20).
		Observed(1, forecast.ShiftPM, Day(2), 200).
		Observed(1, forecast.ShiftAM, Day(3), 30).
		Observed(1, forecast.ShiftAM, Day(4), 40).
		Placeholder(1, forecast.ShiftAM, Day(5)).
		Placeholder(1, forecast.ShiftPM, Day(5)).
		Placeholder(1, forecast.ShiftAM, Day(6)).
		Observed(2, forecast.ShiftAM, Day(3), 50).
		Placeholder(2, forecast.ShiftAM, Day(5)).
		Placeholder(2, forecast.ShiftPM, Day(6)).
		Records()
}
