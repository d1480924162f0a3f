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
	// Input and ingestion errors (1xxx)
	ErrCodeSourceMissing    ErrorCode = "SVYE1001"
	ErrCodeSourceUnreadable ErrorCode = "SVYE1002"
	ErrCodeSourceEmpty      ErrorCode = "SVYE1003"
	ErrCodeEncodingFailed   ErrorCode = "SVYE1004"
	ErrCodeStructuralScan   ErrorCode = "SVYE1005"

	// Schema and harmonization errors (2xxx)
	ErrCodeSchemaDrift    ErrorCode = "SVYE2001"
	ErrCodeParseFailure   ErrorCode = "SVYE2002"
	ErrCodeFieldUnknown   ErrorCode = "SVYE2003"
	ErrCodeMappingInvalid ErrorCode = "SVYE2004"

	// Aggregation errors (3xxx)
	ErrCodeOutlierRejected ErrorCode = "SVYE3001"
	ErrCodeAggregateFailed ErrorCode = "SVYE3002"

	// Warehouse and store errors (4xxx)
	ErrCodeConnectionFailed     ErrorCode = "SVYE4001"
	ErrCodeConnectionTimeout    ErrorCode = "SVYE4002"
	ErrCodeAuthenticationFailed ErrorCode = "SVYE4003"
	ErrCodeNetworkUnavailable   ErrorCode = "SVYE4004"
	ErrCodeSQLExecution         ErrorCode = "SVYE4005"
	ErrCodeSQLTransaction       ErrorCode = "SVYE4006"
	ErrCodePublishFailed        ErrorCode = "SVYE4007"
	ErrCodeStoreFailed          ErrorCode = "SVYE4008"

	// Configuration errors (5xxx)
	ErrCodeConfigNotFound     ErrorCode = "SVYE5001"
	ErrCodeConfigInvalid      ErrorCode = "SVYE5002"
	ErrCodeConfigMissing      ErrorCode = "SVYE5003"
	ErrCodeCredentialNotFound ErrorCode = "SVYE5004"

	// Dataset repository errors (6xxx)
	ErrCodeRepoNotFound   ErrorCode = "SVYE6001"
	ErrCodeRepoSyncFailed ErrorCode = "SVYE6002"
	ErrCodeRepoAuthFailed ErrorCode = "SVYE6003"

	// Output errors (7xxx)
	ErrCodeOutputWrite   ErrorCode = "SVYE7001"
	ErrCodeStagingFailed ErrorCode = "SVYE7002"

	// Validation errors (8xxx)
	ErrCodeValidationFailed ErrorCode = "SVYE8001"
	ErrCodeInvalidInput     ErrorCode = "SVYE8002"
	ErrCodeRequiredField    ErrorCode = "SVYE8003"

	// System errors (9xxx)
	ErrCodeInternal           ErrorCode = "SVYE9001"
	ErrCodeTimeout            ErrorCode = "SVYE9002"
	ErrCodeResourceExhausted  ErrorCode = "SVYE9003"
	ErrCodeServiceUnavailable ErrorCode = "SVYE9004"
)

// ErrorSeverity represents the severity level of an error
type ErrorSeverity string

const (
	SeverityCritical ErrorSeverity = "CRITICAL" // Run aborted, prior outputs untouched
	SeverityError    ErrorSeverity = "ERROR"    // Operation failed, but system continues
	SeverityWarning  ErrorSeverity = "WARNING"  // Operation succeeded with issues
	SeverityInfo     ErrorSeverity = "INFO"     // Informational, not an error
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

	// If wrapping another AppError, inherit some properties
	if ae, ok := err.(*AppError); ok {
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

// FatalInputError creates a non-recoverable input error that aborts the run
func FatalInputError(message string, path string, cause error) *AppError {
	err := New(ErrCodeSourceMissing, message)
	if cause != nil {
		err = Wrap(cause, ErrCodeSourceUnreadable, message)
	}
	return err.
		WithSeverity(SeverityCritical).
		WithContext("path", path).
		WithSuggestions(
			"Check the dataset path in the configuration",
			"Run 'surveyforge inventory' to verify raw datasets",
			"Run 'surveyforge repo sync' if datasets come from a repository",
		)
}

// DriftError creates a recoverable schema drift error
func DriftError(field string, year int) *AppError {
	return New(ErrCodeSchemaDrift, fmt.Sprintf("No source column found for field '%s'", field)).
		WithSeverity(SeverityWarning).
		WithContext("field", field).
		WithContext("survey_year", year).
		AsRecoverable()
}

// ParseError creates a recoverable value parse failure
func ParseError(field string, raw string) *AppError {
	return New(ErrCodeParseFailure, fmt.Sprintf("Could not coerce value for field '%s'", field)).
		WithSeverity(SeverityWarning).
		WithContext("field", field).
		WithContext("raw", truncateString(raw, 80)).
		AsRecoverable()
}

// OutlierError creates a recoverable outlier rejection. The value is
// excluded from the reduction it was headed for, nothing else.
func OutlierError(field string, value float64) *AppError {
	return New(ErrCodeOutlierRejected, fmt.Sprintf("Value for field '%s' is outside the analysis window", field)).
		WithSeverity(SeverityWarning).
		WithContext("field", field).
		WithContext("value", value).
		AsRecoverable()
}

// ConnectionError creates a connection-related error
func ConnectionError(message string, cause error) *AppError {
	return Wrap(cause, ErrCodeConnectionFailed, message).
		WithSeverity(SeverityError).
		WithSuggestions(
			"Check your network connection",
			"Verify the warehouse endpoint is accessible",
			"Check firewall settings",
		)
}

// ConfigError creates a configuration-related error
func ConfigError(message string, field string) *AppError {
	return New(ErrCodeConfigInvalid, message).
		WithContext("field", field).
		WithSuggestions(
			fmt.Sprintf("Check the '%s' configuration value", field),
			"Run 'surveyforge setup' to reconfigure",
			"Run 'surveyforge init' to generate a starter configuration",
		)
}

// SQLError creates an SQL execution error
func SQLError(message string, query string, cause error) *AppError {
	err := Wrap(cause, ErrCodeSQLExecution, message).
		WithContext("query", truncateString(query, 200))

	if strings.Contains(message, "permission") || strings.Contains(message, "access denied") {
		err.Code = ErrCodeAuthenticationFailed
		_ = err.WithSuggestions(
			"Check user permissions in the warehouse",
			"Verify the role has required privileges",
		)
	} else if strings.Contains(message, "timeout") {
		err.Code = ErrCodeConnectionTimeout
		_ = err.WithSuggestions(
			"Increase the publish timeout setting",
			"Check warehouse availability",
		)
	}

	return err
}

// ValidationError creates a validation error
func ValidationError(field string, value interface{}, reason string) *AppError {
	return New(ErrCodeValidationFailed, fmt.Sprintf("Validation failed for %s: %s", field, reason)).
		WithContext("field", field).
		WithContext("value", value).
		WithSeverity(SeverityWarning).
		AsRecoverable()
}

// IsRecoverable checks if an error is recoverable
func IsRecoverable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Recoverable
	}
	return false
}

// IsFatal reports whether an error should abort the run
func IsFatal(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Severity == SeverityCritical
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
