package snowflake

import (
	"context"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shiftcast/internal/forecast"
	"shiftcast/pkg/errors"
	"shiftcast/pkg/models"
)

func validConfig() Config {
	return Config{
		Account:   "test123.us-east-1",
		Username:  "testuser",
		Password:  "testpass",
		Database:  "FROSTBYTE_TASTY_BYTES_DEV",
		Schema:    "ANALYTICS",
		Warehouse: "TEST_WH",
		Role:      "SYSADMIN",
		Timeout:   30 * time.Second,
	}
}

func TestNewService(t *testing.T) {
	config := validConfig()

	service := NewService(config)

	assert.NotNil(t, service)
	assert.Equal(t, config, service.config)
	assert.False(t, service.connected)
	assert.Equal(t, "closed", service.circuitBreaker.GetState())
}

func TestConfigFromModel(t *testing.T) {
	cfg := ConfigFromModel(models.Snowflake{
		Account:   "acct",
		Username:  "user",
		Password:  "pw",
		Role:      "accountadmin",
		Warehouse: "tasty_dsci_wh",
		Database:  "frostbyte_tasty_bytes_dev",
		Schema:    "analytics",
		Timeout:   time.Minute,
	})

	assert.Equal(t, "acct", cfg.Account)
	assert.Equal(t, "user", cfg.Username)
	assert.Equal(t, "tasty_dsci_wh", cfg.Warehouse)
	assert.Equal(t, time.Minute, cfg.Timeout)
}

func TestConfigDSN(t *testing.T) {
	dsn, err := validConfig().DSN()
	require.NoError(t, err)
	assert.Contains(t, dsn, "testuser")
	assert.Contains(t, dsn, "warehouse=TEST_WH")
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantError bool
		errorMsg  string
	}{
		{name: "valid config", mutate: func(c *Config) {}},
		{name: "missing account", mutate: func(c *Config) { c.Account = "" }, wantError: true, errorMsg: "account is required"},
		{name: "missing username", mutate: func(c *Config) { c.Username = "" }, wantError: true, errorMsg: "username is required"},
		{name: "missing password", mutate: func(c *Config) { c.Password = " " }, wantError: true, errorMsg: "password is required"},
		{name: "missing warehouse", mutate: func(c *Config) { c.Warehouse = "" }, wantError: true, errorMsg: "warehouse is required"},
		{name: "missing role", mutate: func(c *Config) { c.Role = "" }, wantError: true, errorMsg: "role is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validConfig()
			tt.mutate(&config)

			err := ValidateConfig(config)
			if tt.wantError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
				assert.Equal(t, errors.ErrCodeConfigMissing, errors.GetErrorCode(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConnect_InvalidConfig(t *testing.T) {
	service := NewService(Config{})

	err := service.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConfigMissing, errors.GetErrorCode(err))
}

func TestDB_NotConnected(t *testing.T) {
	service := NewService(validConfig())

	_, err := service.DB()
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConnectionFailed, errors.GetErrorCode(err))
	assert.NoError(t, service.Close())
}

func TestDB_Connected(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	service := NewService(validConfig())
	service.db = db
	service.connected = true

	got, err := service.DB()
	require.NoError(t, err)
	assert.Same(t, db, got)

	mock.ExpectClose()
	require.NoError(t, service.Close())
	assert.False(t, service.connected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestValidateIdentifier(t *testing.T) {
	valid := []string{
		"shift_sales",
		"analytics.shift_sales",
		"frostbyte_tasty_bytes_dev.analytics.shift_sales",
		"udf_linreg_predict_location_sales",
		"V$1",
	}
	for _, name := range valid {
		assert.NoError(t, ValidateIdentifier("field", name), name)
	}

	invalid := []string{
		"",
		"a.b.c.d",
		"shift_sales; DROP TABLE x",
		"1table",
		"db..table",
		`"quoted"`,
	}
	for _, name := range invalid {
		err := ValidateIdentifier("field", name)
		require.Error(t, err, name)
		assert.Equal(t, errors.ErrCodeValidationFailed, errors.GetErrorCode(err))
	}
}

func TestHistorySource_Cities(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	source, err := NewHistorySource(db, "", "", 0)
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT city FROM frostbyte_tasty_bytes_dev.analytics.shift_sales_v ORDER BY city")).
		WillReturnRows(sqlmock.NewRows([]string{"CITY"}).
			AddRow("Berlin").
			AddRow(nil).
			AddRow("Vancouver"))

	cities, err := source.Cities(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Berlin", "Vancouver"}, cities)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistorySource_CitiesQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	source, err := NewHistorySource(db, "", "", 0)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT DISTINCT city").
		WillReturnError(fmt.Errorf("Object 'SHIFT_SALES_V' does not exist or not authorized"))

	_, err = source.Cities(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeSQLObjectNotFound, errors.GetErrorCode(err))
}

func TestHistorySource_ShiftSales(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	source, err := NewHistorySource(db, "analytics.shift_sales", "analytics.shift_sales_v", time.Second)
	require.NoError(t, err)

	day1 := time.Date(2023, time.May, 1, 0, 0, 0, 0, time.UTC)
	day5 := time.Date(2023, time.May, 5, 0, 0, 0, 0, time.UTC)
	columns := []string{"LOCATION_ID", "CITY", "SHIFT", "DATE", "SHIFT_SALES", "LATITUDE", "LONGITUDE",
		"CITY_POPULATION", "MONTH", "DAY_OF_WEEK"}

	mock.ExpectQuery(regexp.QuoteMeta(source.shiftSalesQuery())).
		WithArgs("Vancouver").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(1, "Vancouver", "AM", day1, 10.5, 49.28, -123.12, 2632000, 5, 1).
			AddRow(1, "Vancouver", "PM", day5, nil, 49.28, -123.12, 2632000, 5, 5))

	records, err := source.ShiftSales(context.Background(), "Vancouver")
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, int64(1), records[0].LocationID)
	assert.Equal(t, forecast.ShiftAM, records[0].Shift)
	require.NotNil(t, records[0].ShiftSales)
	assert.Equal(t, 10.5, *records[0].ShiftSales)
	assert.True(t, records[0].Date.Equal(day1))
	assert.Equal(t, 2632000.0, records[0].CityPopulation)

	assert.Equal(t, forecast.ShiftPM, records[1].Shift)
	assert.True(t, records[1].IsPlaceholder())
	assert.Equal(t, 5, records[1].DayOfWeek)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistorySource_ShiftSalesBadShift(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	source, err := NewHistorySource(db, "", "", 0)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT location_id").
		WithArgs("Vancouver").
		WillReturnRows(sqlmock.NewRows([]string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}).
			AddRow(1, "Vancouver", "NOON", time.Now(), 1.0, 0.0, 0.0, 1, 5, 1))

	_, err = source.ShiftSales(context.Background(), "Vancouver")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeResultParsing, errors.GetErrorCode(err))
}

func TestNewHistorySource_RejectsBadTable(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = NewHistorySource(db, "shift_sales where 1=1", "", 0)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeValidationFailed, errors.GetErrorCode(err))
}
