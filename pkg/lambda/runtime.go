package lambda

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"serverless-http-adapter/internal/config"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultFrameworkSettingsEnvVar carries the framework settings reference
	// to applications when no FrameworkResolver names another variable.
	DefaultFrameworkSettingsEnvVar = "FRAMEWORK_SETTINGS_MODULE"

	serverType    = "AWS Lambda"
	frameworkName = "serverless-http-adapter"
)

// SettingsLoader loads the settings for GetOrCreate
type SettingsLoader func() (*config.Settings, error)

// Runtime holds the resolved application for the lifetime of the process.
// It is read-only after construction and safe for concurrent Invoke calls.
type Runtime struct {
	settings      *config.Settings
	resolver      Resolver
	framework     FrameworkResolver
	pipeline      *ExceptionPipeline
	app           http.Handler
	trailingSlash bool

	setenv func(key, value string) error
	now    func() time.Time
}

// Option configures a Runtime
type Option func(*Runtime)

// WithResolver sets the locator resolver; DefaultRegistry is used otherwise
func WithResolver(resolver Resolver) Option {
	return func(rt *Runtime) {
		rt.resolver = resolver
	}
}

// WithFrameworkResolver sets the integration used when only framework
// settings are configured.
func WithFrameworkResolver(framework FrameworkResolver) Option {
	return func(rt *Runtime) {
		rt.framework = framework
	}
}

// WithSetenv replaces os.Setenv for exporting environment variables
func WithSetenv(setenv func(key, value string) error) Option {
	return func(rt *Runtime) {
		rt.setenv = setenv
	}
}

var (
	globalRuntime *Runtime
	globalMu      sync.Mutex
)

// GetOrCreate returns the process-wide runtime, bootstrapping it on the
// first successful call. Concurrent first calls bootstrap once.
func GetOrCreate(load SettingsLoader, opts ...Option) (*Runtime, error) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalRuntime != nil {
		return globalRuntime, nil
	}

	settings, err := load()
	if err != nil {
		return nil, &BootstrapError{Op: "load settings", Err: err}
	}

	rt, err := NewRuntime(settings, opts...)
	if err != nil {
		return nil, err
	}

	globalRuntime = rt
	return rt, nil
}

// NewRuntime bootstraps a runtime from settings: it applies the log level,
// exports the environment and resolves the application.
func NewRuntime(settings *config.Settings, opts ...Option) (*Runtime, error) {
	rt := &Runtime{
		settings: settings,
		resolver: DefaultRegistry,
		setenv:   os.Setenv,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(rt)
	}

	if settings.LogLevel != "" {
		level, err := config.ParseLogLevel(settings.LogLevel)
		if err != nil {
			return nil, &BootstrapError{Op: "apply log level", Err: err}
		}
		logrus.SetLevel(level)
	}

	if err := rt.exportEnvironment(); err != nil {
		return nil, &BootstrapError{Op: "export environment", Err: err}
	}

	if err := rt.resolveApplication(); err != nil {
		return nil, &BootstrapError{Op: "resolve application", Err: err}
	}

	rt.pipeline = NewExceptionPipeline(settings.ExceptionHandler, settings.Debug, rt.resolver)

	logrus.WithFields(logrus.Fields{
		"stage":          settings.Stage,
		"app_function":   settings.AppFunction,
		"framework":      settings.FrameworkSettings,
		"trailing_slash": rt.trailingSlash,
		"http":           rt.app != nil,
	}).Info("Runtime bootstrapped")

	return rt, nil
}

// Settings returns the settings the runtime was built with
func (rt *Runtime) Settings() *config.Settings {
	return rt.settings
}

// Application returns the resolved application, nil for non-HTTP targets
func (rt *Runtime) Application() http.Handler {
	return rt.app
}

// TrailingSlash reports whether request paths are normalised to end in "/"
func (rt *Runtime) TrailingSlash() bool {
	return rt.trailingSlash
}

func (rt *Runtime) exportEnvironment() error {
	env := map[string]string{
		"SERVERTYPE": serverType,
		"FRAMEWORK":  frameworkName,
		"PROJECT":    rt.settings.ProjectName,
		"STAGE":      rt.settings.Stage,
	}
	for key, value := range rt.settings.EnvironmentVariables {
		env[key] = value
	}

	keys := make([]string, 0, len(env))
	for key := range env {
		if !isPlainEnvKey(key) {
			return fmt.Errorf("%w: %q", ErrInvalidEnvKey, key)
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if err := rt.setenv(key, env[key]); err != nil {
			return fmt.Errorf("failed to set %s: %w", key, err)
		}
	}
	return nil
}

// isPlainEnvKey accepts printable ASCII names without '='
func isPlainEnvKey(key string) bool {
	if key == "" {
		return false
	}
	for i := 0; i < len(key); i++ {
		c := key[i]
		if c <= ' ' || c > '~' || c == '=' {
			return false
		}
	}
	return true
}

// resolveApplication runs exactly one of the three resolution strategies
func (rt *Runtime) resolveApplication() error {
	s := rt.settings

	var (
		app http.Handler
		err error
	)

	switch {
	case s.AppFunction == "" && s.FrameworkSettings == "":
		// Non-HTTP target: only command events are served.
		return nil

	case s.AppFunction != "":
		if s.FrameworkSettings != "" {
			envVar := DefaultFrameworkSettingsEnvVar
			if rt.framework != nil {
				envVar = rt.framework.SettingsEnvVar()
			}
			if err := rt.setenv(envVar, s.FrameworkSettings); err != nil {
				return fmt.Errorf("failed to set %s: %w", envVar, err)
			}
			rt.trailingSlash = true
		}
		app, err = rt.resolver.Application(s.AppFunction)

	default:
		if rt.framework == nil {
			return ErrNoFrameworkResolver
		}
		app, err = rt.framework.Resolve(s.FrameworkSettings)
		rt.trailingSlash = true
	}

	if err != nil {
		return err
	}
	if app == nil {
		return ErrNoApplication
	}

	rt.app = app
	return nil
}

// Handler returns the function to pass to lambda.Start
func (rt *Runtime) Handler() func(ctx context.Context, event json.RawMessage) (interface{}, error) {
	return rt.Invoke
}

// Invoke serves one event. Failures are turned into a 500 envelope; unless
// the exception handler claims the failure an *InvocationError is returned
// alongside the envelope so the platform can retry the event.
func (rt *Runtime) Invoke(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	var rawEvent map[string]interface{}
	if err := json.Unmarshal(payload, &rawEvent); err != nil {
		logrus.WithField("error", err.Error()).Debug("Invocation payload is not a JSON object")
	}

	var invocationCtx interface{}
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		invocationCtx = lc
	}

	result, outcome, err := rt.pipeline.Run(ctx, func(ctx context.Context) (interface{}, error) {
		return rt.handle(ctx, payload, invocationCtx)
	}, rawEvent, invocationCtx)

	switch outcome {
	case Unhandled:
		envelope, _ := result.(*Result)
		return envelope, &InvocationError{Err: err, Envelope: envelope}
	case Handled:
		logrus.WithField("error", err.Error()).Info("Exception handled by custom handler, not re-raising")
		return result, nil
	default:
		return result, nil
	}
}

func (rt *Runtime) handle(ctx context.Context, payload json.RawMessage, invocationCtx interface{}) (interface{}, error) {
	if rt.settings.Debug {
		logrus.WithField("event", string(payload)).Debug("Lambda event")
	}

	start := rt.now()

	event, err := ParseEvent(payload)
	if err != nil {
		return nil, err
	}

	if !event.IsHTTP() {
		return rt.handleNonHTTP(ctx, event)
	}
	InvocationsTotal.WithLabelValues("http").Inc()

	if rt.app == nil {
		return nil, fmt.Errorf("cannot serve %s %s: %w", event.HTTPMethod, event.Path, ErrNoApplication)
	}

	req, derived, err := TranslateRequest(event, invocationCtx, TranslateOptions{
		Stage:                 rt.settings.Stage,
		Domain:                rt.settings.Domain,
		BasePath:              rt.settings.BasePath,
		TrailingSlash:         rt.trailingSlash,
		BinarySupport:         rt.settings.BinarySupport,
		ContextHeaderMappings: rt.settings.ContextHeaderMappings,
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := req.HTTPRequest(ctx)
	if err != nil {
		return nil, err
	}

	recorder := newResponseRecorder()
	rt.app.ServeHTTP(recorder, httpReq)
	resp := recorder.Response()

	result := TranslateResponse(resp, event, derived.ELB, rt.settings.BinarySupport)

	elapsed := rt.now().Sub(start)
	CommonLog(req, resp, elapsed, requestID(invocationCtx, event))
	ResponsesTotal.WithLabelValues(statusClass(resp.StatusCode)).Inc()
	InvocationDuration.Observe(elapsed.Seconds())

	return result, nil
}

// handleNonHTTP serves command events; anything else is acknowledged with
// an empty result.
func (rt *Runtime) handleNonHTTP(ctx context.Context, event *Event) (interface{}, error) {
	if event.Command == "" {
		InvocationsTotal.WithLabelValues("ignored").Inc()
		logrus.WithField("keys", eventKeys(event.Raw)).Debug("Ignoring non-HTTP event")
		return nil, nil
	}
	InvocationsTotal.WithLabelValues("command").Inc()

	fn, err := rt.resolver.Function(event.Command)
	if err != nil {
		return nil, err
	}

	logrus.WithField("command", event.Command).Info("Running command")
	return fn(ctx, event.Raw)
}

func requestID(invocationCtx interface{}, event *Event) string {
	if lc, ok := invocationCtx.(*lambdacontext.LambdaContext); ok && lc.AwsRequestID != "" {
		return lc.AwsRequestID
	}
	if id := event.RequestID(); id != "" {
		return id
	}
	return uuid.New().String()
}

func eventKeys(raw map[string]interface{}) []string {
	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
