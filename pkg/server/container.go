package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"serverless-http-adapter/internal/config"
	"serverless-http-adapter/internal/middleware"
	"serverless-http-adapter/pkg/lambda"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Container holds the dependencies of the local invocation server
type Container struct {
	Runtime *lambda.Runtime
	Router  *gin.Engine
	Server  *http.Server
}

// NewContainer wires a runtime into an HTTP server listening on addr
func NewContainer(rt *lambda.Runtime, addr string) (*Container, error) {
	if rt == nil {
		return nil, fmt.Errorf("failed to create container: %w", lambda.ErrNoApplication)
	}

	router := NewRouter(rt)

	container := &Container{
		Runtime: rt,
		Router:  router,
		Server: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}

	return container, nil
}

// Close shuts the server down, waiting for in-flight invocations
func (c *Container) Close(ctx context.Context) error {
	if c.Server != nil {
		if err := c.Server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shut down server: %w", err)
		}
	}
	return nil
}

// NewRouter exposes the runtime over HTTP: POST an invocation event to
// /invoke and receive the envelope the function would return.
func NewRouter(rt *lambda.Runtime) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC(),
			"mode":      config.GetDeploymentMode(),
			"stage":     rt.Settings().Stage,
		})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Mints bearer tokens for the demo app's /private routes.
	if secret := config.GetEnv("JWT_SECRET", ""); secret != "" {
		auth := middleware.NewAuthService(&middleware.AuthConfig{JWTSecret: secret})
		router.POST("/token", func(c *gin.Context) {
			var req struct {
				UserID string `json:"user_id" binding:"required"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			token, err := auth.GenerateToken(req.UserID)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"token": token})
		})
	}

	router.POST("/invoke", func(c *gin.Context) {
		payload, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		result, err := rt.Invoke(c.Request.Context(), json.RawMessage(payload))
		if err != nil {
			// Mirror the runtime API's error payload.
			var invocationErr *lambda.InvocationError
			body := gin.H{"errorMessage": err.Error(), "errorType": "InvocationError"}
			if errors.As(err, &invocationErr) && invocationErr.Envelope != nil {
				body["envelope"] = invocationErr.Envelope
			}
			c.JSON(http.StatusBadGateway, body)
			return
		}

		c.JSON(http.StatusOK, result)
	})

	return router
}
