package lambda

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

var errBoom = errors.New("boom")

func failing(err error) InvokeFunc {
	return func(ctx context.Context) (interface{}, error) {
		return nil, err
	}
}

func decodeEnvelope(t *testing.T, result interface{}) map[string]interface{} {
	t.Helper()
	envelope, ok := result.(*Result)
	if !ok {
		t.Fatalf("Expected *Result, got %T", result)
	}
	if envelope.StatusCode != 500 {
		t.Errorf("Expected status 500, got %d", envelope.StatusCode)
	}
	if envelope.Body == nil {
		t.Fatal("Expected envelope body")
	}
	var content map[string]interface{}
	if err := json.Unmarshal([]byte(*envelope.Body), &content); err != nil {
		t.Fatalf("Envelope body is not JSON: %v", err)
	}
	if content["message"] != UncaughtExceptionMessage {
		t.Errorf("Unexpected message %v", content["message"])
	}
	return content
}

func TestExceptionPipelineRun(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		p := NewExceptionPipeline("", true, NewRegistry())
		result, outcome, err := p.Run(context.Background(), func(ctx context.Context) (interface{}, error) {
			return "ok", nil
		}, nil, nil)

		if err != nil || outcome != Succeeded || result != "ok" {
			t.Errorf("Expected succeeded ok, got %v %v %v", result, outcome, err)
		}
	})

	t.Run("UnhandledWithTraceback", func(t *testing.T) {
		p := NewExceptionPipeline("", true, NewRegistry())
		result, outcome, err := p.Run(context.Background(), failing(errBoom), nil, nil)

		if outcome != Unhandled {
			t.Errorf("Expected unhandled, got %v", outcome)
		}
		if !errors.Is(err, errBoom) {
			t.Errorf("Expected boom, got %v", err)
		}

		content := decodeEnvelope(t, result)
		traceback, ok := content["traceback"].([]interface{})
		if !ok || len(traceback) == 0 {
			t.Fatalf("Expected traceback, got %v", content["traceback"])
		}
		if !strings.Contains(traceback[0].(string), "boom") {
			t.Errorf("Expected traceback to name the error, got %v", traceback[0])
		}
	})

	t.Run("NoTracebackWithoutDebug", func(t *testing.T) {
		p := NewExceptionPipeline("", false, NewRegistry())
		result, _, _ := p.Run(context.Background(), failing(errBoom), nil, nil)

		content := decodeEnvelope(t, result)
		if _, ok := content["traceback"]; ok {
			t.Error("Expected no traceback outside debug mode")
		}
	})

	t.Run("Panic", func(t *testing.T) {
		p := NewExceptionPipeline("", true, NewRegistry())
		result, outcome, err := p.Run(context.Background(), func(ctx context.Context) (interface{}, error) {
			panic("kaboom")
		}, nil, nil)

		if outcome != Unhandled || !IsPanic(err) {
			t.Errorf("Expected unhandled panic, got %v %v", outcome, err)
		}
		content := decodeEnvelope(t, result)
		traceback := content["traceback"].([]interface{})
		if len(traceback) < 2 {
			t.Errorf("Expected stack lines in traceback, got %v", traceback)
		}
	})

	t.Run("HandledByExceptionHandler", func(t *testing.T) {
		registry := NewRegistry()
		var gotEvent map[string]interface{}
		var gotCtx interface{}
		registry.RegisterExceptionHandler("handlers.swallow", func(err error, event map[string]interface{}, ictx interface{}) (bool, error) {
			gotEvent, gotCtx = event, ictx
			return true, nil
		})

		event := map[string]interface{}{"httpMethod": "GET"}
		p := NewExceptionPipeline("handlers.swallow", false, registry)
		result, outcome, err := p.Run(context.Background(), failing(errBoom), event, "ictx")

		if outcome != Handled {
			t.Errorf("Expected handled, got %v", outcome)
		}
		if !errors.Is(err, errBoom) {
			t.Errorf("Expected original error, got %v", err)
		}
		decodeEnvelope(t, result)
		if gotEvent["httpMethod"] != "GET" || gotCtx != "ictx" {
			t.Error("Expected handler to receive the event and invocation context")
		}
	})
}

func TestProcessException(t *testing.T) {
	registry := NewRegistry()
	registry.RegisterExceptionHandler("handlers.yes", func(error, map[string]interface{}, interface{}) (bool, error) {
		return true, nil
	})
	registry.RegisterExceptionHandler("handlers.no", func(error, map[string]interface{}, interface{}) (bool, error) {
		return false, nil
	})
	registry.RegisterExceptionHandler("handlers.fails", func(error, map[string]interface{}, interface{}) (bool, error) {
		return true, errors.New("handler failed")
	})
	registry.RegisterExceptionHandler("handlers.panics", func(error, map[string]interface{}, interface{}) (bool, error) {
		panic("handler panicked")
	})

	tests := []struct {
		ref  string
		want bool
	}{
		{"", false},
		{"handlers.yes", true},
		{"handlers.no", false},
		{"handlers.fails", false},
		{"handlers.panics", false},
		{"handlers.missing", false},
		{"not-a-locator", false},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			got := ProcessException(registry, tt.ref, errBoom, nil, nil)
			if got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestTraceback(t *testing.T) {
	wrapped := &TranslationError{Field: "body", Err: errBoom}
	lines := Traceback(wrapped)

	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %v", lines)
	}
	if !strings.HasPrefix(lines[0], "*lambda.TranslationError: ") {
		t.Errorf("Unexpected first line %q", lines[0])
	}
	if lines[1] != "*errors.errorString: boom" {
		t.Errorf("Unexpected second line %q", lines[1])
	}
}
