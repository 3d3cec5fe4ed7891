package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorCode represents a unique error code for categorizing errors
type ErrorCode string

const (
	// Connection errors (1xxx)
	ErrCodeConnectionFailed     ErrorCode = "SHC1001"
	ErrCodeConnectionTimeout    ErrorCode = "SHC1002"
	ErrCodeAuthenticationFailed ErrorCode = "SHC1003"
	ErrCodeNetworkUnavailable   ErrorCode = "SHC1004"

	// Configuration errors (2xxx)
	ErrCodeConfigNotFound    ErrorCode = "SHC2001"
	ErrCodeConfigInvalid     ErrorCode = "SHC2002"
	ErrCodeConfigMissing     ErrorCode = "SHC2003"
	ErrCodeCredentialMissing ErrorCode = "SHC2004"

	// Forecast data errors (3xxx)
	ErrCodeEmptyCity    ErrorCode = "SHC3001"
	ErrCodeNoTargetDate ErrorCode = "SHC3002"
	ErrCodeInvalidShift ErrorCode = "SHC3003"

	// SQL execution errors (4xxx)
	ErrCodeSQLSyntax         ErrorCode = "SHC4001"
	ErrCodeSQLPermission     ErrorCode = "SHC4002"
	ErrCodeSQLTimeout        ErrorCode = "SHC4003"
	ErrCodeSQLObjectNotFound ErrorCode = "SHC4005"
	ErrCodeSQLExecution      ErrorCode = "SHC4006"

	// Validation errors (6xxx)
	ErrCodeValidationFailed ErrorCode = "SHC6001"
	ErrCodeInvalidInput     ErrorCode = "SHC6002"

	// Security errors (7xxx)
	ErrCodeEncryptionFailed ErrorCode = "SHC7002"

	// System errors (9xxx)
	ErrCodeInternal           ErrorCode = "SHC9001"
	ErrCodeTimeout            ErrorCode = "SHC9002"
	ErrCodeResourceExhausted  ErrorCode = "SHC9003"
	ErrCodeServiceUnavailable ErrorCode = "SHC9004"
	ErrCodeResultParsing      ErrorCode = "SHC9005"
)

// ErrorSeverity represents the severity level of an error
type ErrorSeverity string

const (
	SeverityCritical ErrorSeverity = "CRITICAL" // System failure, requires immediate attention
	SeverityError    ErrorSeverity = "ERROR"    // Operation failed, but system continues
	SeverityWarning  ErrorSeverity = "WARNING"  // Operation succeeded with issues
	SeverityInfo     ErrorSeverity = "INFO"     // Informational, not an error
)

// Sentinels for errors.Is checks. AppError.Is compares codes only, so any
// AppError carrying the same code matches.
var (
	ErrEmptyCityResult    = &AppError{Code: ErrCodeEmptyCity, Message: "no data for this city"}
	ErrNoTargetDateFound  = &AppError{Code: ErrCodeNoTargetDate, Message: "no target date available"}
	ErrServiceUnavailable = &AppError{Code: ErrCodeServiceUnavailable, Message: "inference service unavailable"}
	ErrInvalidShift       = &AppError{Code: ErrCodeInvalidShift, Message: "invalid shift"}
)

// AppError represents a structured application error with context
type AppError struct {
	Code        ErrorCode
	Message     string
	Severity    ErrorSeverity
	Context     map[string]interface{}
	Cause       error
	Stack       string
	Timestamp   time.Time
	Recoverable bool
	Suggestions []string
}

// Error implements the error interface
func (e *AppError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[%s] %s: %s", e.Code, e.Severity, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf("\nCaused by: %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\nSuggestions:")
		for i, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  %d. %s", i+1, suggestion))
		}
	}

	return b.String()
}

// Unwrap returns the cause of the error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:        code,
		Message:     message,
		Severity:    SeverityError,
		Context:     make(map[string]interface{}),
		Stack:       captureStack(),
		Timestamp:   time.Now(),
		Recoverable: false,
	}
}

// Wrap wraps an existing error with AppError
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}

	appErr := New(code, message)
	appErr.Cause = err

	// Inherit context from a wrapped AppError
	var ae *AppError
	if errors.As(err, &ae) {
		for k, v := range ae.Context {
			appErr.Context[k] = v
		}
	}

	return appErr
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithSeverity sets the error severity
func (e *AppError) WithSeverity(severity ErrorSeverity) *AppError {
	e.Severity = severity
	return e
}

// WithSuggestions adds recovery suggestions
func (e *AppError) WithSuggestions(suggestions ...string) *AppError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// AsRecoverable marks the error as recoverable
func (e *AppError) AsRecoverable() *AppError {
	e.Recoverable = true
	return e
}

// captureStack captures the current stack trace
func captureStack() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])

	var b strings.Builder
	frames := runtime.CallersFrames(pcs[:n])

	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "runtime/") {
			b.WriteString(fmt.Sprintf("%s:%d %s\n", frame.File, frame.Line, frame.Function))
		}
		if !more {
			break
		}
	}

	return b.String()
}

// Common error constructors

// ConnectionError creates a connection-related error
func ConnectionError(message string, cause error) *AppError {
	return Wrap(cause, ErrCodeConnectionFailed, message).
		WithSeverity(SeverityError).
		WithSuggestions(
			"Check your network connection",
			"Verify the Snowflake account identifier",
			"Check firewall settings",
		)
}

// ConfigError creates a configuration-related error
func ConfigError(message string, field string) *AppError {
	return New(ErrCodeConfigInvalid, message).
		WithContext("field", field).
		WithSuggestions(
			fmt.Sprintf("Check the '%s' configuration value", field),
			"Run 'shiftcast setup' to reconfigure",
		)
}

// SQLError creates an SQL execution error
func SQLError(message string, query string, cause error) *AppError {
	err := Wrap(cause, ErrCodeSQLExecution, message).
		WithContext("query", truncateString(query, 200))

	causeText := ""
	if cause != nil {
		causeText = strings.ToLower(cause.Error())
	}

	switch {
	case strings.Contains(causeText, "does not exist") || strings.Contains(causeText, "not found"):
		err.Code = ErrCodeSQLObjectNotFound
		_ = err.WithSuggestions(
			"Verify the table or view exists in the configured database/schema",
			"Ensure the role has access to it",
		)
	case strings.Contains(causeText, "permission") || strings.Contains(causeText, "access denied") ||
		strings.Contains(causeText, "insufficient privileges"):
		err.Code = ErrCodeSQLPermission
		_ = err.WithSuggestions(
			"Check user permissions in Snowflake",
			"Verify the role has required privileges",
		)
	case strings.Contains(causeText, "timeout") || strings.Contains(causeText, "deadline exceeded"):
		err.Code = ErrCodeSQLTimeout
		_ = err.WithSuggestions(
			"Increase the query timeout setting",
			"Check the warehouse size",
		)
	case strings.Contains(causeText, "syntax error"):
		err.Code = ErrCodeSQLSyntax
	}

	return err
}

// ValidationError creates a validation error
func ValidationError(field string, value interface{}, reason string) *AppError {
	return New(ErrCodeValidationFailed, fmt.Sprintf("Validation failed for %s: %s", field, reason)).
		WithContext("field", field).
		WithContext("value", value).
		WithSeverity(SeverityWarning)
}

// EmptyCityError reports a city with no historical rows.
func EmptyCityError(city string) *AppError {
	return New(ErrCodeEmptyCity, fmt.Sprintf("No data for city %q", city)).
		WithContext("city", city).
		WithSeverity(SeverityWarning).
		WithSuggestions("Run 'shiftcast cities' to list the cities present in the source table")
}

// NoTargetDateError reports a city/shift without any placeholder row.
func NoTargetDateError(city, shift string) *AppError {
	return New(ErrCodeNoTargetDate, fmt.Sprintf("No target date available for %s %s shift", city, shift)).
		WithContext("city", city).
		WithContext("shift", shift).
		WithSeverity(SeverityWarning).
		WithSuggestions("Check that future placeholder rows (null shift_sales) have been loaded")
}

// ServiceUnavailableError wraps an inference failure. Callers mark transient
// failures with AsRecoverable so that only those are retried.
func ServiceUnavailableError(message string, cause error) *AppError {
	if cause == nil {
		return New(ErrCodeServiceUnavailable, message)
	}
	return Wrap(cause, ErrCodeServiceUnavailable, message)
}

// IsRecoverable checks if an error is recoverable
func IsRecoverable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Recoverable
	}
	return false
}

// GetErrorCode extracts the error code from an error
func GetErrorCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// truncateString truncates a string to maxLen characters
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
