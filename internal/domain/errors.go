package domain

import "errors"

// LookupError is returned when a command names an adapter, engine or
// converter that is not registered. Callers treat it as recoverable.
type LookupError struct {
	Kind string // "adapter", "engine", "converter"
	Name string
}

func (e *LookupError) Error() string {
	return e.Kind + " not found: " + e.Name
}

func (e *LookupError) Unwrap() error {
	switch e.Kind {
	case "adapter":
		return ErrAdapterNotFound
	case "engine":
		return ErrEngineNotFound
	default:
		return ErrNotFound
	}
}

// NewLookupError creates a LookupError for the given registry kind.
func NewLookupError(kind, name string) *LookupError {
	return &LookupError{Kind: kind, Name: name}
}

// HandlerError wraps a failure raised by an event handler during dispatch.
type HandlerError struct {
	EventType string
	Handler   string
	Panicked  bool
	Err       error
}

func (e *HandlerError) Error() string {
	kind := "error"
	if e.Panicked {
		kind = "panic"
	}
	return "handler " + e.Handler + " " + kind + " on " + e.EventType + ": " + e.Err.Error()
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

var (
	// ErrNotFound is the generic lookup failure.
	ErrNotFound = errors.New("not found")

	// ErrAdapterNotFound is returned when a command names an unknown adapter.
	ErrAdapterNotFound = errors.New("adapter not found")

	// ErrEngineNotFound is returned when an engine name is not registered.
	ErrEngineNotFound = errors.New("engine not found")

	// ErrClosed is returned by commands issued after the main engine closed.
	ErrClosed = errors.New("main engine closed")

	// ErrConfigNotFound is returned when configuration file is missing
	ErrConfigNotFound = errors.New("configuration not found")
)
