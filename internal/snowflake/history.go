package snowflake

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	"shiftcast/internal/forecast"
	"shiftcast/pkg/errors"
)

// Default objects of the Tasty Bytes analytics schema.
const (
	DefaultTable      = "frostbyte_tasty_bytes_dev.analytics.shift_sales"
	DefaultCitiesView = "frostbyte_tasty_bytes_dev.analytics.shift_sales_v"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*(\.[A-Za-z_][A-Za-z0-9_$]*){0,2}$`)

// ValidateIdentifier accepts name, schema.name or db.schema.name made of
// unquoted identifier characters. Anything else is refused before it reaches
// a query string.
func ValidateIdentifier(field, name string) error {
	if !identifierPattern.MatchString(name) {
		return errors.ValidationError(field, name, "must be an unquoted identifier such as db.schema.table")
	}
	return nil
}

// Querier is the part of *sql.DB the adapters use.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// HistorySource reads shift sales from a warehouse table.
type HistorySource struct {
	db         Querier
	table      string
	citiesView string
	timeout    time.Duration
}

// NewHistorySource validates the object names and returns a source.
func NewHistorySource(db Querier, table, citiesView string, timeout time.Duration) (*HistorySource, error) {
	if table == "" {
		table = DefaultTable
	}
	if citiesView == "" {
		citiesView = DefaultCitiesView
	}
	if err := ValidateIdentifier("source.table", table); err != nil {
		return nil, err
	}
	if err := ValidateIdentifier("source.cities_view", citiesView); err != nil {
		return nil, err
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &HistorySource{db: db, table: table, citiesView: citiesView, timeout: timeout}, nil
}

func (h *HistorySource) citiesQuery() string {
	return fmt.Sprintf("SELECT DISTINCT city FROM %s ORDER BY city", h.citiesView)
}

func (h *HistorySource) shiftSalesQuery() string {
	return fmt.Sprintf(`SELECT location_id, city, shift, date, shift_sales, latitude, longitude,
       city_population, month, day_of_week
FROM %s
WHERE city = ?
ORDER BY location_id, date, shift`, h.table)
}

// Cities implements forecast.Source.
func (h *HistorySource) Cities(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	query := h.citiesQuery()
	rows, err := h.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.SQLError("Failed to list cities", query, err)
	}
	defer rows.Close()

	var cities []string
	for rows.Next() {
		var city sql.NullString
		if err := rows.Scan(&city); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeResultParsing, "Failed to read city")
		}
		if city.Valid && city.String != "" {
			cities = append(cities, city.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.SQLError("Failed to list cities", query, err)
	}
	return cities, nil
}

// ShiftSales implements forecast.Source.
func (h *HistorySource) ShiftSales(ctx context.Context, city string) ([]forecast.ShiftSalesRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	query := h.shiftSalesQuery()
	rows, err := h.db.QueryContext(ctx, query, city)
	if err != nil {
		return nil, errors.SQLError("Failed to load shift sales", query, err).
			WithContext("city", city)
	}
	defer rows.Close()

	var records []forecast.ShiftSalesRecord
	for rows.Next() {
		var (
			r     forecast.ShiftSalesRecord
			shift string
			sales sql.NullFloat64
		)
		if err := rows.Scan(
			&r.LocationID, &r.City, &shift, &r.Date, &sales,
			&r.Latitude, &r.Longitude, &r.CityPopulation, &r.Month, &r.DayOfWeek,
		); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeResultParsing, "Failed to read shift sales row").
				WithContext("city", city)
		}

		r.Shift, err = forecast.ParseShift(shift)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeResultParsing, "Unexpected shift value in source table").
				WithContext("location_id", r.LocationID)
		}
		r.Date = forecast.CalendarDate(r.Date)
		if sales.Valid {
			v := sales.Float64
			r.ShiftSales = &v
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.SQLError("Failed to load shift sales", query, err).
			WithContext("city", city)
	}
	return records, nil
}
