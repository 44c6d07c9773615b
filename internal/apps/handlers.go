package apps

import (
	"context"
	"time"

	"serverless-http-adapter/pkg/lambda"

	"github.com/sirupsen/logrus"
)

// Locators of the exception handler and command functions
const (
	SuppressMalformedLocator = "apps.suppress_malformed_events"
	WarmLocator              = "apps.keep_warm"
)

func init() {
	lambda.RegisterExceptionHandler(SuppressMalformedLocator, SuppressMalformedEvents)
	lambda.RegisterFunction(WarmLocator, KeepWarm)
}

// SuppressMalformedEvents claims failures caused by malformed events, which
// would fail the same way on every retry. Application failures are left to
// the platform's retry policy.
func SuppressMalformedEvents(err error, event map[string]interface{}, invocationCtx interface{}) (bool, error) {
	if lambda.IsTranslationError(err) {
		logrus.WithField("error", err.Error()).Warn("Dropping malformed event")
		return true, nil
	}
	return false, nil
}

// KeepWarm answers scheduled warm-up pings
func KeepWarm(ctx context.Context, event map[string]interface{}) (interface{}, error) {
	return map[string]string{
		"status": "warm",
		"time":   time.Now().UTC().Format(time.RFC3339),
	}, nil
}
