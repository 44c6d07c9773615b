package lambda

import (
	"fmt"
	"net/http"
	"sort"
	"sync"

	"serverless-http-adapter/internal/config"
)

// ApplicationFactory builds the application registered under a locator
type ApplicationFactory func() (http.Handler, error)

// Resolver turns "module.attribute" locators from the settings into callables
type Resolver interface {
	Application(locator string) (http.Handler, error)
	ExceptionHandler(locator string) (ExceptionHandler, error)
	Function(locator string) (Function, error)
}

// FrameworkResolver builds an application from a framework settings
// reference when no application locator is configured.
type FrameworkResolver interface {
	// SettingsEnvVar names the environment variable that carries the
	// framework settings reference to the application.
	SettingsEnvVar() string
	Resolve(settingsRef string) (http.Handler, error)
}

// Registry is an in-process Resolver. Packages register their callables
// from init so that the settings file can refer to them by name.
type Registry struct {
	mu           sync.RWMutex
	applications map[string]ApplicationFactory
	handlers     map[string]ExceptionHandler
	functions    map[string]Function
}

// NewRegistry creates an empty Registry
func NewRegistry() *Registry {
	return &Registry{
		applications: make(map[string]ApplicationFactory),
		handlers:     make(map[string]ExceptionHandler),
		functions:    make(map[string]Function),
	}
}

// DefaultRegistry is used by runtimes created without WithResolver
var DefaultRegistry = NewRegistry()

// RegisterApplication registers an application factory on DefaultRegistry
func RegisterApplication(locator string, factory ApplicationFactory) {
	DefaultRegistry.RegisterApplication(locator, factory)
}

// RegisterExceptionHandler registers an exception handler on DefaultRegistry
func RegisterExceptionHandler(locator string, handler ExceptionHandler) {
	DefaultRegistry.RegisterExceptionHandler(locator, handler)
}

// RegisterFunction registers a command function on DefaultRegistry
func RegisterFunction(locator string, fn Function) {
	DefaultRegistry.RegisterFunction(locator, fn)
}

// RegisterApplication registers an application factory. It panics on an
// invalid or duplicate locator, like http.Handle does for patterns.
func (r *Registry) RegisterApplication(locator string, factory ApplicationFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	mustRegister(locator, factory == nil, r.applications[locator] != nil)
	r.applications[locator] = factory
}

// RegisterExceptionHandler registers an exception handler
func (r *Registry) RegisterExceptionHandler(locator string, handler ExceptionHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	mustRegister(locator, handler == nil, r.handlers[locator] != nil)
	r.handlers[locator] = handler
}

// RegisterFunction registers a command function
func (r *Registry) RegisterFunction(locator string, fn Function) {
	r.mu.Lock()
	defer r.mu.Unlock()
	mustRegister(locator, fn == nil, r.functions[locator] != nil)
	r.functions[locator] = fn
}

// Application builds the application registered under locator
func (r *Registry) Application(locator string) (http.Handler, error) {
	if err := ValidateLocator(locator); err != nil {
		return nil, err
	}
	r.mu.RLock()
	factory, ok := r.applications[locator]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: application %q", ErrLocatorNotFound, locator)
	}
	return factory()
}

// ExceptionHandler returns the exception handler registered under locator
func (r *Registry) ExceptionHandler(locator string) (ExceptionHandler, error) {
	if err := ValidateLocator(locator); err != nil {
		return nil, err
	}
	r.mu.RLock()
	handler, ok := r.handlers[locator]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: exception handler %q", ErrLocatorNotFound, locator)
	}
	return handler, nil
}

// Function returns the command function registered under locator
func (r *Registry) Function(locator string) (Function, error) {
	if err := ValidateLocator(locator); err != nil {
		return nil, err
	}
	r.mu.RLock()
	fn, ok := r.functions[locator]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: function %q", ErrLocatorNotFound, locator)
	}
	return fn, nil
}

// Locators lists every registered locator, sorted
func (r *Registry) Locators() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var locators []string
	for locator := range r.applications {
		locators = append(locators, locator)
	}
	for locator := range r.handlers {
		locators = append(locators, locator)
	}
	for locator := range r.functions {
		locators = append(locators, locator)
	}
	sort.Strings(locators)
	return locators
}

// ValidateLocator checks that locator has the "module.attribute" shape
func ValidateLocator(locator string) error {
	if !config.IsValidLocator(locator) {
		return fmt.Errorf("%w: %q", ErrInvalidLocator, locator)
	}
	return nil
}

func mustRegister(locator string, isNil, exists bool) {
	if err := ValidateLocator(locator); err != nil {
		panic("lambda: " + err.Error())
	}
	if isNil {
		panic("lambda: nil registration for " + locator)
	}
	if exists {
		panic("lambda: multiple registrations for " + locator)
	}
}
