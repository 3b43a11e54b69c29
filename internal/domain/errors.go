// Package domain defines core types, interfaces, and errors for the connector.
package domain

import "fmt"

// NotFoundError indicates a resource was not found.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ValidationError indicates invalid input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// DomainNotFoundError is returned when a domain cannot be resolved to an
// endpoint, including after a discovery refresh.
type DomainNotFoundError struct {
	Domain string
}

func (e *DomainNotFoundError) Error() string {
	return fmt.Sprintf("unable to find domain: %s", e.Domain)
}

// SourceUnreachableError wraps a network or auth failure talking to a source,
// registry, or discovery API.
type SourceUnreachableError struct {
	Target string
	Cause  error
}

func (e *SourceUnreachableError) Error() string {
	return fmt.Sprintf("source %s unreachable: %v", e.Target, e.Cause)
}

func (e *SourceUnreachableError) Unwrap() error { return e.Cause }

// SchemaResolutionError is returned when neither the registry nor live
// introspection produced a schema for a table.
type SchemaResolutionError struct {
	Table TableName
	Cause error
}

func (e *SchemaResolutionError) Error() string {
	return fmt.Sprintf("resolve schema for %s: %v", e.Table, e.Cause)
}

func (e *SchemaResolutionError) Unwrap() error { return e.Cause }

// UnsupportedOperationError tags a call the configured source cannot serve.
type UnsupportedOperationError struct {
	Operation string
	Source    string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("unsupported operation: %s (source %s)", e.Operation, e.Source)
}

// ConfigurationError indicates missing or malformed startup configuration.
type ConfigurationError struct {
	Key     string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Key == "" {
		return "configuration: " + e.Message
	}
	return fmt.Sprintf("configuration %s: %s", e.Key, e.Message)
}

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrConfiguration creates a ConfigurationError for the given option key.
func ErrConfiguration(key, format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Key: key, Message: fmt.Sprintf(format, args...)}
}

// ErrUnsupported creates an UnsupportedOperationError.
func ErrUnsupported(source, operation string) *UnsupportedOperationError {
	return &UnsupportedOperationError{Operation: operation, Source: source}
}

// ErrUnreachable wraps cause as a SourceUnreachableError for target.
func ErrUnreachable(target string, cause error) *SourceUnreachableError {
	return &SourceUnreachableError{Target: target, Cause: cause}
}
