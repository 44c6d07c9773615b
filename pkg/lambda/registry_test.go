package lambda

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"testing"
)

func TestValidateLocator(t *testing.T) {
	tests := []struct {
		locator string
		valid   bool
	}{
		{"app.handler", true},
		{"my_app.sub.handler", true},
		{"handler", false},
		{".handler", false},
		{"app.", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.locator, func(t *testing.T) {
			err := ValidateLocator(tt.locator)
			if tt.valid && err != nil {
				t.Errorf("Expected %q to be valid, got %v", tt.locator, err)
			}
			if !tt.valid && !errors.Is(err, ErrInvalidLocator) {
				t.Errorf("Expected ErrInvalidLocator for %q, got %v", tt.locator, err)
			}
		})
	}
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry()
	registry.RegisterApplication("app.application", func() (http.Handler, error) {
		return http.NotFoundHandler(), nil
	})
	registry.RegisterFunction("tasks.cleanup", func(ctx context.Context, event map[string]interface{}) (interface{}, error) {
		return "cleaned", nil
	})
	registry.RegisterExceptionHandler("app.on_error", func(error, map[string]interface{}, interface{}) (bool, error) {
		return true, nil
	})

	t.Run("Lookup", func(t *testing.T) {
		app, err := registry.Application("app.application")
		if err != nil || app == nil {
			t.Fatalf("Expected application, got %v", err)
		}
		fn, err := registry.Function("tasks.cleanup")
		if err != nil {
			t.Fatalf("Expected function, got %v", err)
		}
		if out, _ := fn(context.Background(), nil); out != "cleaned" {
			t.Errorf("Expected cleaned, got %v", out)
		}
		if _, err := registry.ExceptionHandler("app.on_error"); err != nil {
			t.Errorf("Expected exception handler, got %v", err)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		if _, err := registry.Application("app.missing"); !errors.Is(err, ErrLocatorNotFound) {
			t.Errorf("Expected ErrLocatorNotFound, got %v", err)
		}
		if _, err := registry.Function("app.application"); !errors.Is(err, ErrLocatorNotFound) {
			t.Errorf("Expected kinds to be kept apart, got %v", err)
		}
		if _, err := registry.ExceptionHandler("bad"); !errors.Is(err, ErrInvalidLocator) {
			t.Errorf("Expected ErrInvalidLocator, got %v", err)
		}
	})

	t.Run("Locators", func(t *testing.T) {
		want := []string{"app.application", "app.on_error", "tasks.cleanup"}
		if got := registry.Locators(); !reflect.DeepEqual(got, want) {
			t.Errorf("Expected %v, got %v", want, got)
		}
	})

	t.Run("FactoryError", func(t *testing.T) {
		r := NewRegistry()
		r.RegisterApplication("app.broken", func() (http.Handler, error) {
			return nil, errBoom
		})
		if _, err := r.Application("app.broken"); !errors.Is(err, errBoom) {
			t.Errorf("Expected factory error, got %v", err)
		}
	})
}

func TestRegistryPanics(t *testing.T) {
	tests := []struct {
		name     string
		register func(r *Registry)
	}{
		{"invalid locator", func(r *Registry) {
			r.RegisterFunction("nodot", func(context.Context, map[string]interface{}) (interface{}, error) { return nil, nil })
		}},
		{"nil factory", func(r *Registry) {
			r.RegisterApplication("app.nil", nil)
		}},
		{"duplicate", func(r *Registry) {
			h := func(error, map[string]interface{}, interface{}) (bool, error) { return false, nil }
			r.RegisterExceptionHandler("app.dup", h)
			r.RegisterExceptionHandler("app.dup", h)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("Expected registration to panic")
				}
			}()
			tt.register(NewRegistry())
		})
	}
}
