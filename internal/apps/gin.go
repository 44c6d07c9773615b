// Package apps contains the applications and callables this function ships
// with. They register themselves under the locators used in the settings file.
package apps

import (
	"fmt"
	"io"
	"net/http"
	"os"

	"serverless-http-adapter/internal/config"
	"serverless-http-adapter/internal/framework"
	"serverless-http-adapter/internal/middleware"
	"serverless-http-adapter/pkg/lambda"

	"github.com/gin-gonic/gin"
)

// GinAppLocator is the locator of the gin application
const GinAppLocator = "apps.gin_app"

// GinSettingsName is the framework settings name of the gin application
const GinSettingsName = "apps.settings"

func init() {
	lambda.RegisterApplication(GinAppLocator, func() (http.Handler, error) {
		return NewGinApp(false)
	})
	framework.RegisterSettings(GinSettingsName, func(engine *gin.Engine) error {
		return installRoutes(engine, true)
	})
}

// NewGinApp builds the gin application. With trailingSlash the routes are
// registered with a trailing "/", matching paths normalised by the adapter.
func NewGinApp(trailingSlash bool) (*gin.Engine, error) {
	if os.Getenv(framework.SettingsEnvVar) != "" || os.Getenv(lambda.DefaultFrameworkSettingsEnvVar) != "" {
		trailingSlash = true
	}
	engine := gin.New()
	engine.RedirectTrailingSlash = false
	if err := installRoutes(engine, trailingSlash); err != nil {
		return nil, err
	}
	return engine, nil
}

func installRoutes(engine *gin.Engine, trailingSlash bool) error {
	route := func(p string) string {
		if trailingSlash && p != "/" {
			return p + "/"
		}
		return p
	}

	engine.Use(middleware.RequestID())
	engine.Use(middleware.StructuredLogger())
	engine.Use(middleware.RateLimiter(
		float64(config.GetEnvAsInt("RATE_LIMIT_RPS", 50)),
		config.GetEnvAsInt("RATE_LIMIT_BURST", 100),
	))
	engine.Use(middleware.RequestSizeLimit(6 << 20))

	engine.GET(route("/health"), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	engine.GET(route("/hello/:name"), func(c *gin.Context) {
		c.String(http.StatusOK, "Hello, %s!", c.Param("name"))
	})

	engine.GET(route("/whoami"), func(c *gin.Context) {
		response := gin.H{
			"script_name": lambda.ScriptName(c.Request),
			"path":        c.Request.URL.Path,
			"scheme":      c.Request.URL.Scheme,
			"secure":      c.Request.TLS != nil,
			"remote_user": lambda.RemoteUser(c.Request),
			"request_id":  c.GetString(middleware.RequestIDKey),
		}
		if event, ok := lambda.EventFromRequest(c.Request); ok {
			response["stage_path"] = event.Path
		}
		c.JSON(http.StatusOK, response)
	})

	engine.POST(route("/echo"), func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			_ = c.Error(err)
			c.AbortWithStatus(http.StatusBadRequest)
			return
		}
		contentType := c.ContentType()
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		c.Data(http.StatusOK, contentType, body)
	})

	engine.GET(route("/cookies"), func(c *gin.Context) {
		c.Writer.Header().Add("Set-Cookie", "session=abc; Path=/; Secure")
		c.Writer.Header().Add("Set-Cookie", "theme=dark; Path=/")
		c.Status(http.StatusNoContent)
	})

	engine.GET(route("/boom"), func(c *gin.Context) {
		panic(fmt.Sprintf("boom at %s", c.Request.URL.Path))
	})

	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		auth := middleware.NewAuthService(&middleware.AuthConfig{JWTSecret: secret})
		private := engine.Group("/private", middleware.Authentication(auth))
		private.GET(route("/profile"), func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"user_id": c.GetString(middleware.UserIDKey)})
		})
	}

	return nil
}
