// Package postgres reads shift sales history from a PostgreSQL replica of the
// warehouse table.
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"shiftcast/internal/forecast"
	"shiftcast/pkg/errors"
)

const (
	// DefaultTable is the replicated shift sales table.
	DefaultTable = "analytics.shift_sales"
	// DefaultTimeout bounds each query when no timeout is configured.
	DefaultTimeout = 30 * time.Second
)

// Querier is satisfied by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Connect opens a pool and checks the server answers.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	if dsn == "" {
		return nil, errors.ConfigError("source.postgres_dsn is required for the postgres source", "source.postgres_dsn")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.ConfigError(fmt.Sprintf("Invalid postgres DSN: %v", err), "source.postgres_dsn")
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, errors.ConnectionError("Failed to reach postgres", err).
			WithSuggestions("Check source.postgres_dsn", "Or set source.kind to snowflake").
			AsRecoverable()
	}
	return pool, nil
}

// HistorySource implements forecast.Source over PostgreSQL.
type HistorySource struct {
	db      Querier
	table   string
	timeout time.Duration
}

// NewHistorySource returns a source reading table, which may be schema
// qualified. An empty table means DefaultTable and a zero timeout means
// DefaultTimeout.
func NewHistorySource(db Querier, table string, timeout time.Duration) (*HistorySource, error) {
	if table == "" {
		table = DefaultTable
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	parts := strings.Split(table, ".")
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			return nil, errors.ValidationError("source.table", table, "empty identifier part")
		}
	}
	if len(parts) > 3 {
		return nil, errors.ValidationError("source.table", table, "too many identifier parts")
	}

	return &HistorySource{db: db, table: pgx.Identifier(parts).Sanitize(), timeout: timeout}, nil
}

func (h *HistorySource) citiesQuery() string {
	return fmt.Sprintf("SELECT DISTINCT city FROM %s WHERE city IS NOT NULL ORDER BY city", h.table)
}

func (h *HistorySource) shiftSalesQuery() string {
	return fmt.Sprintf(`SELECT location_id, city, shift, date, shift_sales, latitude, longitude,
       city_population, month, day_of_week
FROM %s
WHERE city = $1
ORDER BY location_id, date, shift`, h.table)
}

// Cities implements forecast.Source.
func (h *HistorySource) Cities(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	query := h.citiesQuery()
	rows, err := h.db.Query(ctx, query)
	if err != nil {
		return nil, errors.SQLError("Failed to list cities", query, err)
	}

	cities, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, errors.SQLError("Failed to list cities", query, err)
	}
	return cities, nil
}

// ShiftSales implements forecast.Source.
func (h *HistorySource) ShiftSales(ctx context.Context, city string) ([]forecast.ShiftSalesRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	query := h.shiftSalesQuery()
	rows, err := h.db.Query(ctx, query, city)
	if err != nil {
		return nil, errors.SQLError("Failed to load shift sales", query, err).
			WithContext("city", city)
	}

	records, err := pgx.CollectRows(rows, scanRecord)
	if err != nil {
		if errors.GetErrorCode(err) == errors.ErrCodeResultParsing {
			return nil, err
		}
		return nil, errors.SQLError("Failed to load shift sales", query, err).
			WithContext("city", city)
	}
	return records, nil
}

func scanRecord(row pgx.CollectableRow) (forecast.ShiftSalesRecord, error) {
	var (
		r     forecast.ShiftSalesRecord
		shift string
		sales *float64
	)
	if err := row.Scan(
		&r.LocationID, &r.City, &shift, &r.Date, &sales,
		&r.Latitude, &r.Longitude, &r.CityPopulation, &r.Month, &r.DayOfWeek,
	); err != nil {
		return r, err
	}

	s, err := forecast.ParseShift(shift)
	if err != nil {
		return r, errors.Wrap(err, errors.ErrCodeResultParsing, "Unexpected shift value in source table").
			WithContext("location_id", r.LocationID)
	}
	r.Shift = s
	r.Date = forecast.CalendarDate(r.Date)
	r.ShiftSales = sales
	return r, nil
}
