// Package framework builds gin applications from named settings, the way a
// web framework locates its application from a settings module.
package framework

import (
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SettingsEnvVar carries the active settings name to the application
const SettingsEnvVar = "GIN_SETTINGS_MODULE"

// Configure installs middleware and routes on a fresh engine
type Configure func(engine *gin.Engine) error

var (
	settingsMu sync.RWMutex
	settings   = map[string]Configure{}
)

// RegisterSettings registers a named engine configuration
func RegisterSettings(name string, configure Configure) {
	settingsMu.Lock()
	defer settingsMu.Unlock()

	if name == "" || configure == nil {
		panic("framework: invalid settings registration")
	}
	if _, exists := settings[name]; exists {
		panic("framework: multiple registrations for " + name)
	}
	settings[name] = configure
}

// Names lists the registered settings names
func Names() []string {
	settingsMu.RLock()
	defer settingsMu.RUnlock()

	names := make([]string, 0, len(settings))
	for name := range settings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GinResolver resolves applications from registered gin settings
type GinResolver struct {
	// Debug leaves gin in debug mode.
	Debug bool
}

// NewGinResolver creates a GinResolver
func NewGinResolver(debug bool) *GinResolver {
	return &GinResolver{Debug: debug}
}

// SettingsEnvVar implements lambda.FrameworkResolver
func (g *GinResolver) SettingsEnvVar() string {
	return SettingsEnvVar
}

// Resolve builds a gin engine configured by the named settings. Trailing
// slash redirects are disabled because the adapter normalises paths itself.
func (g *GinResolver) Resolve(settingsRef string) (http.Handler, error) {
	settingsMu.RLock()
	configure, ok := settings[settingsRef]
	settingsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("framework settings %q not registered", settingsRef)
	}

	if !g.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.RedirectTrailingSlash = false
	if err := configure(engine); err != nil {
		return nil, fmt.Errorf("failed to configure %q: %w", settingsRef, err)
	}

	logrus.WithFields(logrus.Fields{
		"settings": settingsRef,
		"routes":   len(engine.Routes()),
	}).Debug("Gin application resolved")

	return engine, nil
}
