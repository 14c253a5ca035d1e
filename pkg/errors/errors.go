package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeNetwork represents transport failures (DNS, timeout, reset)
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeHTTPStatus represents a non-2xx response
	ErrorTypeHTTPStatus ErrorType = "http_status"
	// ErrorTypeBlocked represents a 403 that survived the referer retry
	ErrorTypeBlocked ErrorType = "blocked"
	// ErrorTypeRateLimit represents rate limiting errors
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeParsing represents HTML parsing errors
	ErrorTypeParsing ErrorType = "parsing"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
	// ErrorTypePersistence represents storage collaborator errors
	ErrorTypePersistence ErrorType = "persistence"
)

// PipelineError represents a failure attributed to one source or stage
type PipelineError struct {
	Type       ErrorType
	Source     string
	Message    string
	StatusCode int
	Err        error
	Time       time.Time
}

// Error implements the error interface
func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Source, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Source, e.Message)
}

// Unwrap returns the underlying error
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is retryable
func (e *PipelineError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeNetwork, ErrorTypePersistence:
		return true
	case ErrorTypeHTTPStatus:
		return e.StatusCode >= 500
	default:
		return false
	}
}

// New creates a new PipelineError
func New(errType ErrorType, source, message string, err error) *PipelineError {
	return &PipelineError{
		Type:    errType,
		Source:  source,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewNetwork creates a new network error
func NewNetwork(source, message string, err error) *PipelineError {
	return New(ErrorTypeNetwork, source, message, err)
}

// NewHTTPStatus creates an error for an unexpected response status
func NewHTTPStatus(source string, statusCode int) *PipelineError {
	e := New(ErrorTypeHTTPStatus, source, fmt.Sprintf("unexpected status code: %d", statusCode), nil)
	e.StatusCode = statusCode
	return e
}

// NewBlocked creates an error for a request still refused after the retry
func NewBlocked(source string, statusCode int) *PipelineError {
	e := New(ErrorTypeBlocked, source, fmt.Sprintf("blocked with status %d after retry", statusCode), nil)
	e.StatusCode = statusCode
	return e
}

// NewRateLimit creates a new rate limit error
func NewRateLimit(source string, statusCode int, retryAfter string) *PipelineError {
	message := "rate limited"
	if retryAfter != "" {
		message = fmt.Sprintf("rate limited; retry after %s", retryAfter)
	}
	e := New(ErrorTypeRateLimit, source, message, nil)
	e.StatusCode = statusCode
	return e
}

// NewParsing creates a new parsing error
func NewParsing(source, message string, err error) *PipelineError {
	return New(ErrorTypeParsing, source, message, err)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(source, message string) *PipelineError {
	return New(ErrorTypeConfiguration, source, message, nil)
}

// NewPersistence creates a new persistence error
func NewPersistence(batch, message string, err error) *PipelineError {
	return New(ErrorTypePersistence, batch, message, err)
}

// IsType reports whether any error in err's chain is a PipelineError of the given type
func IsType(err error, errType ErrorType) bool {
	var pe *PipelineError
	if stderrors.As(err, &pe) {
		return pe.Type == errType
	}
	return false
}

// IsRetryable reports whether err wraps a PipelineError worth retrying
func IsRetryable(err error) bool {
	var pe *PipelineError
	if stderrors.As(err, &pe) {
		return pe.IsRetryable()
	}
	return false
}
