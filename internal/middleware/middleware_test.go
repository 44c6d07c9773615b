package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"serverless-http-adapter/pkg/lambda"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func lambdaRequest(t *testing.T, payload string) *http.Request {
	t.Helper()
	event, err := lambda.ParseEvent([]byte(payload))
	if err != nil {
		t.Fatalf("ParseEvent failed: %v", err)
	}
	canonical, _, err := lambda.TranslateRequest(event, nil, lambda.TranslateOptions{Stage: "dev"})
	if err != nil {
		t.Fatalf("TranslateRequest failed: %v", err)
	}
	req, err := canonical.HTTPRequest(context.Background())
	if err != nil {
		t.Fatalf("HTTPRequest failed: %v", err)
	}
	return req
}

func TestAuthService(t *testing.T) {
	service := NewAuthService(&AuthConfig{JWTSecret: "secret"})

	token, err := service.GenerateToken("user-1")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	claims, err := service.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Errorf("Expected user-1, got %s", claims.UserID)
	}

	other := NewAuthService(&AuthConfig{JWTSecret: "other"})
	if _, err := other.ValidateToken(token); err == nil {
		t.Error("Expected token signed with another secret to be rejected")
	}

	expired := NewAuthService(&AuthConfig{JWTSecret: "secret", TokenDuration: -time.Minute})
	oldToken, _ := expired.GenerateToken("user-1")
	if _, err := service.ValidateToken(oldToken); err == nil {
		t.Error("Expected expired token to be rejected")
	}
}

func TestAuthentication(t *testing.T) {
	service := NewAuthService(&AuthConfig{JWTSecret: "secret"})
	token, _ := service.GenerateToken("user-7")

	router := gin.New()
	router.GET("/private", Authentication(service), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(UserIDKey))
	})

	tests := []struct {
		name       string
		request    func() *http.Request
		wantStatus int
		wantUser   string
	}{
		{
			name: "bearer token",
			request: func() *http.Request {
				req := httptest.NewRequest(http.MethodGet, "/private", nil)
				req.Header.Set("Authorization", "Bearer "+token)
				return req
			},
			wantStatus: http.StatusOK,
			wantUser:   "user-7",
		},
		{
			name: "missing header",
			request: func() *http.Request {
				return httptest.NewRequest(http.MethodGet, "/private", nil)
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "garbage token",
			request: func() *http.Request {
				req := httptest.NewRequest(http.MethodGet, "/private", nil)
				req.Header.Set("Authorization", "Bearer nope")
				return req
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "gateway authorizer principal",
			request: func() *http.Request {
				return lambdaRequest(t, `{"httpMethod": "GET", "path": "/private", "requestContext": {"authorizer": {"principalId": "gw-user"}}}`)
			},
			wantStatus: http.StatusOK,
			wantUser:   "gw-user",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, tt.request())

			if w.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if tt.wantUser != "" && w.Body.String() != tt.wantUser {
				t.Errorf("Expected user %s, got %s", tt.wantUser, w.Body.String())
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(RequestIDKey))
	})

	t.Run("FromHeader", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "given")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Body.String() != "given" || w.Header().Get("X-Request-ID") != "given" {
			t.Errorf("Expected given request id, got %q", w.Body.String())
		}
	})

	t.Run("FromEvent", func(t *testing.T) {
		req := lambdaRequest(t, `{"httpMethod": "GET", "path": "/", "requestContext": {"requestId": "gw-req"}}`)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Body.String() != "gw-req" {
			t.Errorf("Expected gateway request id, got %q", w.Body.String())
		}
	})

	t.Run("Generated", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		if len(w.Body.String()) != 36 {
			t.Errorf("Expected uuid, got %q", w.Body.String())
		}
	})
}

func TestRateLimiter(t *testing.T) {
	router := gin.New()
	router.Use(RateLimiter(1, 2))
	router.GET("/", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	request := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	for i := 0; i < 2; i++ {
		if code := request("10.0.0.1"); code != http.StatusNoContent {
			t.Fatalf("Expected request %d within burst to pass, got %d", i+1, code)
		}
	}
	if code := request("10.0.0.1"); code != http.StatusTooManyRequests {
		t.Errorf("Expected 429 after burst, got %d", code)
	}
	if code := request("10.0.0.2"); code != http.StatusNoContent {
		t.Errorf("Expected other clients to be unaffected, got %d", code)
	}
}

func TestRequestSizeLimit(t *testing.T) {
	router := gin.New()
	router.Use(RequestSizeLimit(8))
	router.POST("/", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123456789")))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected 413, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("small")))
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
}
