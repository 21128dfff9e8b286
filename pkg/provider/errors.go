package provider

import (
	"errors"
	"fmt"
)

// Common errors for provider operations.
var (
	// ErrRecordNotFound indicates the target record does not exist at the provider.
	ErrRecordNotFound = errors.New("record not found")

	// ErrHostZoneMismatch indicates a host that does not belong to its configured zone.
	ErrHostZoneMismatch = errors.New("host does not belong to zone")

	// ErrInvalidIP indicates an address that is neither IPv4 nor IPv6.
	ErrInvalidIP = errors.New("invalid IP address")

	// ErrTransport indicates a network, protocol or decoding failure talking to the provider.
	ErrTransport = errors.New("provider transport error")

	// ErrUpdateRejected indicates the provider refused a record write.
	ErrUpdateRejected = errors.New("provider rejected update")

	// ErrUnauthorized indicates the provider rejected the credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrUnknownProviderType indicates no factory is registered for a provider type.
	ErrUnknownProviderType = errors.New("unknown provider type")
)

// ConfigError represents a configuration error.
type ConfigError struct {
	Field   string
	Value   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("configuration error: %s=%q: %s", e.Field, e.Value, e.Message)
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Message)
}

// ErrConfigMissing creates an error for a missing required configuration field.
func ErrConfigMissing(field string) error {
	return &ConfigError{
		Field:   field,
		Message: "required but not set",
	}
}

// ErrConfigInvalid creates an error for an invalid configuration value.
func ErrConfigInvalid(field, value, message string) error {
	return &ConfigError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// ProviderError wraps an error with provider context.
type ProviderError struct {
	Provider  string
	Operation string
	Err       error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Operation, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// WrapError wraps an error with provider context.
// Errors that already carry provider context are returned unchanged.
func WrapError(provider, operation string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	return &ProviderError{
		Provider:  provider,
		Operation: operation,
		Err:       err,
	}
}

// TransportError wraps err so that it matches ErrTransport.
func TransportError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrTransport, fmt.Sprintf(format, args...))
}

// IsNotFound returns true if the error indicates a record was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRecordNotFound)
}

// IsHostZoneMismatch returns true if the error indicates a host outside its zone.
func IsHostZoneMismatch(err error) bool {
	return errors.Is(err, ErrHostZoneMismatch)
}

// IsTransport returns true if the error indicates a transport failure.
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}

// IsUpdateRejected returns true if the error indicates the provider refused a write.
func IsUpdateRejected(err error) bool {
	return errors.Is(err, ErrUpdateRejected)
}

// IsUnauthorized returns true if the error indicates authentication failed.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
