package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeHTTP represents failed vendor HTTP calls
	ErrorTypeHTTP ErrorType = "http"
	// ErrorTypeNotFound represents a looked-up resource that does not exist
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeDuplicate represents a lookup that matched more than one resource
	ErrorTypeDuplicate ErrorType = "duplicate"
	// ErrorTypeNotSupported represents a violated business rule
	ErrorTypeNotSupported ErrorType = "not_supported"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeApplication represents a misconfigured runtime environment
	ErrorTypeApplication ErrorType = "application"
	// ErrorTypeSDK represents misuse of a client in this library
	ErrorTypeSDK ErrorType = "sdk"
	// ErrorTypeAuth represents identity and token errors
	ErrorTypeAuth ErrorType = "auth"
	// ErrorTypeContext represents context cancellation/timeout errors
	ErrorTypeContext ErrorType = "context"
)

// BaseError is the base error type with common fields
type BaseError struct {
	Type      ErrorType
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// NewBaseError creates a new base error
func NewBaseError(errType ErrorType, message string, err error) *BaseError {
	return &BaseError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// HTTP Errors

// HTTPError describes a non-2xx vendor response
type HTTPError struct {
	*BaseError
	URL          string
	Method       string
	StatusCode   int
	Headers      http.Header
	ResponseText string
}

func newHTTPError(method, url string, statusCode int, headers http.Header, responseText string) *HTTPError {
	var b strings.Builder
	b.WriteString("HTTP Exception\n")
	fmt.Fprintf(&b, "URL: %s\n", url)
	fmt.Fprintf(&b, "Headers: %v\n", headers)
	fmt.Fprintf(&b, "Method: %s\n", strings.ToUpper(method))
	fmt.Fprintf(&b, "Response Code: %d\n", statusCode)
	fmt.Fprintf(&b, "Response Text: %s", responseText)

	return &HTTPError{
		BaseError:    NewBaseError(ErrorTypeHTTP, b.String(), nil),
		URL:          url,
		Method:       strings.ToUpper(method),
		StatusCode:   statusCode,
		Headers:      headers,
		ResponseText: responseText,
	}
}

// ClientSideError is returned for 4xx responses
type ClientSideError struct {
	*HTTPError
}

// ServerSideError is returned for every other unsuccessful response
type ServerSideError struct {
	*HTTPError
}

// NewHTTPError classifies an unsuccessful response as client- or server-side
func NewHTTPError(method, url string, statusCode int, headers http.Header, responseText string) error {
	httpErr := newHTTPError(method, url, statusCode, headers, responseText)
	if statusCode >= 400 && statusCode < 500 {
		return &ClientSideError{HTTPError: httpErr}
	}
	return &ServerSideError{HTTPError: httpErr}
}

// NewClientSideError creates a client-side error without a raw response, e.g. from an OAuth2 error body
func NewClientSideError(message string, err error) *ClientSideError {
	return &ClientSideError{HTTPError: &HTTPError{
		BaseError:  NewBaseError(ErrorTypeHTTP, message, err),
		StatusCode: http.StatusBadRequest,
	}}
}

// Domain Errors

// NotFoundError is returned when a named resource cannot be found
type NotFoundError struct {
	*BaseError
	Resource string
	Key      string
}

func NewNotFound(resource, key string) *NotFoundError {
	return &NotFoundError{
		BaseError: NewBaseError(ErrorTypeNotFound, fmt.Sprintf("%s not found: %s", resource, key), nil),
		Resource:  resource,
		Key:       key,
	}
}

// DuplicateFoundError is returned when a lookup by name matches several resources
type DuplicateFoundError struct {
	*BaseError
	Resource string
	Key      string
	Count    int
}

func NewDuplicateFound(resource, key string, count int) *DuplicateFoundError {
	return &DuplicateFoundError{
		BaseError: NewBaseError(ErrorTypeDuplicate, fmt.Sprintf("duplicate %s found: %s (%d matches)", resource, key, count), nil),
		Resource:  resource,
		Key:       key,
		Count:     count,
	}
}

// OperationNotSupportedError is returned when a business rule rejects an operation
type OperationNotSupportedError struct {
	*BaseError
	Operation string
	Reason    string
}

func NewOperationNotSupported(operation, reason string) *OperationNotSupportedError {
	return &OperationNotSupportedError{
		BaseError: NewBaseError(ErrorTypeNotSupported, fmt.Sprintf("%s is not supported: %s", operation, reason), nil),
		Operation: operation,
		Reason:    reason,
	}
}

// Application Errors

// ApplicationError is returned when the runtime environment is misconfigured
type ApplicationError struct {
	*BaseError
}

func NewApplicationError(message string) *ApplicationError {
	return &ApplicationError{BaseError: NewBaseError(ErrorTypeApplication, message, nil)}
}

// SDKClientError is returned when a client of this library is used incorrectly
type SDKClientError struct {
	*BaseError
}

func NewSDKClientError(message string, err error) *SDKClientError {
	return &SDKClientError{BaseError: NewBaseError(ErrorTypeSDK, message, err)}
}

// Auth Errors

// InvalidAccessTokenError is returned when an access token fails validation
type InvalidAccessTokenError struct {
	*BaseError
}

func NewInvalidAccessToken(err error) *InvalidAccessTokenError {
	return &InvalidAccessTokenError{BaseError: NewBaseError(ErrorTypeAuth, "invalid token supplied", err)}
}

// Context Errors

// ErrContextCancelled is returned when context is cancelled
type ErrContextCancelled struct {
	*BaseError
	Operation string
}

func NewContextCancelled(operation string, err error) *ErrContextCancelled {
	return &ErrContextCancelled{
		BaseError: NewBaseError(ErrorTypeContext, fmt.Sprintf("context cancelled: %s", operation), err),
		Operation: operation,
	}
}

// Config Errors

// ErrConfigValidationFailed is returned when configuration validation fails
type ErrConfigValidationFailed struct {
	*BaseError
	Field  string
	Reason string
}

func NewConfigValidationFailed(field, reason string) *ErrConfigValidationFailed {
	return &ErrConfigValidationFailed{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("config validation failed: %s - %s", field, reason), nil),
		Field:     field,
		Reason:    reason,
	}
}

// ErrConfigMissingRequired is returned when a required config value is missing
type ErrConfigMissingRequired struct {
	*BaseError
	Field string
}

func NewConfigMissingRequired(field string) *ErrConfigMissingRequired {
	return &ErrConfigMissingRequired{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("missing required config: %s", field), nil),
		Field:     field,
	}
}

// Helper functions

// typed is implemented by every error in this package through the embedded *BaseError
type typed interface {
	errorType() ErrorType
}

func (e *BaseError) errorType() ErrorType { return e.Type }

// IsErrorType checks if an error, or anything it wraps, is of a specific type
func IsErrorType(err error, errType ErrorType) bool {
	for err != nil {
		if t, ok := err.(typed); ok && t.errorType() == errType {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// IsClientSide reports whether err is a 4xx vendor failure
func IsClientSide(err error) bool {
	var target *ClientSideError
	return errors.As(err, &target)
}

// IsServerSide reports whether err is a non-4xx vendor failure
func IsServerSide(err error) bool {
	var target *ServerSideError
	return errors.As(err, &target)
}

// IsNotFound reports whether err is a NotFoundError
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}
