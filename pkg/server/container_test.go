package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"serverless-http-adapter/internal/apps"
	"serverless-http-adapter/internal/config"
	"serverless-http-adapter/internal/middleware"
	"serverless-http-adapter/pkg/lambda"

	"github.com/gin-gonic/gin"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	settings := config.DefaultSettings()
	settings.Stage = "local"
	settings.LogLevel = "ERROR"
	settings.AppFunction = apps.MuxAppLocator

	rt, err := lambda.NewRuntime(settings, lambda.WithSetenv(func(string, string) error { return nil }))
	if err != nil {
		t.Fatalf("NewRuntime failed: %v", err)
	}
	return NewRouter(rt)
}

func TestInvokeEndpoint(t *testing.T) {
	router := newTestRouter(t)

	t.Run("Success", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/invoke", strings.NewReader(`{"httpMethod": "GET", "path": "/items/7", "headers": {}}`))
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
		}

		var result lambda.Result
		if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
			t.Fatalf("Response is not an envelope: %v", err)
		}
		if result.StatusCode != 200 || result.Body == nil || !strings.Contains(*result.Body, `"id":"7"`) {
			t.Errorf("Unexpected envelope %+v", result)
		}
	})

	t.Run("Failure", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/invoke", strings.NewReader(`{"httpMethod": ["GET"]}`))
		router.ServeHTTP(w, req)

		if w.Code != http.StatusBadGateway {
			t.Fatalf("Expected 502, got %d", w.Code)
		}

		var body map[string]interface{}
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("Response is not JSON: %v", err)
		}
		if body["errorType"] != "InvocationError" {
			t.Errorf("Expected InvocationError, got %v", body["errorType"])
		}
		envelope, ok := body["envelope"].(map[string]interface{})
		if !ok || envelope["statusCode"] != float64(500) {
			t.Errorf("Expected 500 envelope, got %v", body["envelope"])
		}
	})
}

func TestNewContainer(t *testing.T) {
	gin.SetMode(gin.TestMode)

	if _, err := NewContainer(nil, ":0"); err == nil {
		t.Error("Expected error without a runtime")
	}

	settings := config.DefaultSettings()
	settings.LogLevel = "ERROR"
	rt, err := lambda.NewRuntime(settings, lambda.WithSetenv(func(string, string) error { return nil }))
	if err != nil {
		t.Fatalf("NewRuntime failed: %v", err)
	}

	container, err := NewContainer(rt, ":0")
	if err != nil {
		t.Fatalf("Failed to create container: %v", err)
	}
	if container.Runtime != rt || container.Router == nil || container.Server.Handler != container.Router {
		t.Error("Expected container to wire runtime, router and server")
	}

	// Shutdown of a server that never started returns immediately
	if err := container.Close(context.Background()); err != nil {
		t.Errorf("Failed to close container: %v", err)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 from /health, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 from /metrics, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "adapter_invocation_duration_seconds") {
		t.Error("Expected adapter metrics to be exposed")
	}
}

func TestTokenEndpoint(t *testing.T) {
	t.Run("Disabled", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "")
		router := newTestRouter(t)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(`{"user_id": "alice"}`))
		router.ServeHTTP(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("Expected 404 without a secret, got %d", w.Code)
		}
	})

	t.Run("Enabled", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "local-secret")
		router := newTestRouter(t)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(`{"user_id": "alice"}`))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
		}

		var body map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("Response is not JSON: %v", err)
		}

		auth := middleware.NewAuthService(&middleware.AuthConfig{JWTSecret: "local-secret"})
		claims, err := auth.ValidateToken(body["token"])
		if err != nil {
			t.Fatalf("Expected a valid token, got %v", err)
		}
		if claims.UserID != "alice" {
			t.Errorf("Expected user alice, got %s", claims.UserID)
		}
	})

	t.Run("MissingUser", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "local-secret")
		router := newTestRouter(t)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(`{}`))
		router.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", w.Code)
		}
	})
}
