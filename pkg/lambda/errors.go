package lambda

import (
	"errors"
	"fmt"
)

// Common adapter error types
var (
	ErrLocatorNotFound     = errors.New("locator not registered")
	ErrInvalidLocator      = errors.New("invalid locator")
	ErrNoApplication       = errors.New("no application configured")
	ErrNoFrameworkResolver = errors.New("no framework resolver configured")
	ErrInvalidEnvKey       = errors.New("invalid environment variable key")
	ErrInvalidEvent        = errors.New("invalid invocation event")
)

// BootstrapError is a fatal failure while setting up the runtime. It is
// never converted into a response envelope.
type BootstrapError struct {
	Op  string // Step that failed (e.g. "load settings", "resolve application")
	Err error
}

func (e *BootstrapError) Error() string {
	return fmt.Sprintf("bootstrap %s failed: %v", e.Op, e.Err)
}

func (e *BootstrapError) Unwrap() error {
	return e.Err
}

// TranslationError is raised when an event cannot be turned into a request
type TranslationError struct {
	Field string // Event field that could not be translated
	Err   error
}

func (e *TranslationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("cannot translate event field '%s': %v", e.Field, e.Err)
	}
	return fmt.Sprintf("cannot translate event: %v", e.Err)
}

func (e *TranslationError) Unwrap() error {
	return e.Err
}

// PanicError wraps a value recovered from a panicking application
type PanicError struct {
	Value interface{}
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap returns the panic value when it is an error
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// InvocationError is returned to the platform when a failure was not
// handled by the exception handler, so the platform may retry the event.
type InvocationError struct {
	Err      error
	Envelope *Result
}

func (e *InvocationError) Error() string {
	return e.Err.Error()
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}

// IsBootstrapError returns true if err is or wraps a BootstrapError
func IsBootstrapError(err error) bool {
	var bootstrapErr *BootstrapError
	return errors.As(err, &bootstrapErr)
}

// IsTranslationError returns true if err is or wraps a TranslationError
func IsTranslationError(err error) bool {
	var translationErr *TranslationError
	return errors.As(err, &translationErr)
}

// IsPanic returns true if err is or wraps a recovered panic
func IsPanic(err error) bool {
	var panicErr *PanicError
	return errors.As(err, &panicErr)
}
