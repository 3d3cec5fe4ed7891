// Package snowflake reads shift sales history from the warehouse and invokes
// the regression model hosted next to it.
package snowflake

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/snowflakedb/gosnowflake"

	"shiftcast/pkg/errors"
	"shiftcast/pkg/models"
)

// Service owns the warehouse connection pool
type Service struct {
	mu             sync.Mutex
	db             *sql.DB
	config         Config
	connected      bool
	circuitBreaker *errors.CircuitBreaker
}

// Config holds Snowflake connection configuration
type Config struct {
	Account   string
	Username  string
	Password  string
	Database  string
	Schema    string
	Warehouse string
	Role      string
	Timeout   time.Duration
}

// ConfigFromModel maps the on-disk connection settings.
func ConfigFromModel(m models.Snowflake) Config {
	return Config{
		Account:   m.Account,
		Username:  m.Username,
		Password:  m.Password,
		Database:  m.Database,
		Schema:    m.Schema,
		Warehouse: m.Warehouse,
		Role:      m.Role,
		Timeout:   m.Timeout,
	}
}

// NewService creates a new Snowflake service
func NewService(config Config) *Service {
	return &Service{
		config:         config,
		circuitBreaker: errors.NewCircuitBreaker("snowflake", 5, 30*time.Second),
	}
}

// DSN renders the driver connection string.
func (c Config) DSN() (string, error) {
	return gosnowflake.DSN(&gosnowflake.Config{
		Account:       c.Account,
		User:          c.Username,
		Password:      c.Password,
		Database:      c.Database,
		Schema:        c.Schema,
		Warehouse:     c.Warehouse,
		Role:          c.Role,
		LoginTimeout:  c.timeout(),
		Application:   "shiftcast",
		ClientTimeout: c.timeout(),
	})
}

func (c Config) timeout() time.Duration {
	if c.Timeout == 0 {
		return 30 * time.Second
	}
	return c.Timeout
}

// Connect establishes a connection to Snowflake
func (s *Service) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		return nil
	}

	if err := ValidateConfig(s.config); err != nil {
		return err
	}

	return s.circuitBreaker.Execute(ctx, func() error {
		return errors.RetryWithBackoff(ctx, func(ctx context.Context) error {
			dsn, err := s.config.DSN()
			if err != nil {
				return errors.ConfigError(fmt.Sprintf("Invalid Snowflake settings: %v", err), "snowflake")
			}

			db, err := sql.Open("snowflake", dsn)
			if err != nil {
				return errors.ConnectionError("Failed to open Snowflake connection", err).
					WithContext("account", s.config.Account).
					WithContext("warehouse", s.config.Warehouse)
			}

			db.SetMaxOpenConns(10)
			db.SetMaxIdleConns(5)
			db.SetConnMaxLifetime(10 * time.Minute)

			connCtx, cancel := s.getContext(ctx)
			defer cancel()

			if err := db.PingContext(connCtx); err != nil {
				_ = db.Close()

				if strings.Contains(strings.ToLower(err.Error()), "authentication") ||
					strings.Contains(strings.ToLower(err.Error()), "incorrect username or password") {
					return errors.New(errors.ErrCodeAuthenticationFailed, "Authentication failed").
						WithContext("user", s.config.Username).
						WithSuggestions(
							"Verify your username and password",
							"Check the credentials file or keyring entry",
							"Check if your account is locked",
						)
				}

				return errors.ConnectionError("Failed to connect to Snowflake", err).
					WithContext("account", s.config.Account).
					AsRecoverable()
			}

			s.db = db
			s.connected = true
			return nil
		})
	})
}

// Close closes the database connection
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return nil
	}

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}

	s.connected = false
	return nil
}

// DB returns the pool, or an error when Connect has not succeeded.
func (s *Service) DB() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return nil, errors.New(errors.ErrCodeConnectionFailed, "Not connected to Snowflake").
			WithSuggestions("Call Connect() before running queries")
	}
	return s.db, nil
}

// TestConnection tests the database connection
func (s *Service) TestConnection(ctx context.Context) error {
	if err := s.Connect(ctx); err != nil {
		return err
	}

	db, err := s.DB()
	if err != nil {
		return err
	}

	pingCtx, cancel := s.getContext(ctx)
	defer cancel()
	return db.PingContext(pingCtx)
}

func (s *Service) getContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, s.config.timeout())
}

// ValidateConfig validates the Snowflake configuration
func ValidateConfig(config Config) error {
	required := []struct {
		field string
		value string
	}{
		{"account", config.Account},
		{"username", config.Username},
		{"password", config.Password},
		{"warehouse", config.Warehouse},
		{"role", config.Role},
	}

	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return errors.New(errors.ErrCodeConfigMissing, fmt.Sprintf("%s is required", r.field)).
				WithContext("field", "snowflake."+r.field).
				WithSuggestions("Run 'shiftcast setup' to reconfigure")
		}
	}
	return nil
}
