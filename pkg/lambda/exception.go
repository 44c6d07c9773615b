package lambda

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/sirupsen/logrus"
)

// UncaughtExceptionMessage is the operator-facing message of every error envelope
const UncaughtExceptionMessage = "An uncaught exception happened while servicing this request. " +
	"You can investigate this in the function logs."

// Outcome tags how an invocation ended
type Outcome int

const (
	// Succeeded means fn returned without error.
	Succeeded Outcome = iota
	// Handled means fn failed and the exception handler dealt with it.
	Handled
	// Unhandled means fn failed and the error must reach the platform.
	Unhandled
)

func (o Outcome) String() string {
	switch o {
	case Succeeded:
		return "succeeded"
	case Handled:
		return "handled"
	case Unhandled:
		return "unhandled"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// InvokeFunc is one attempt at serving an event
type InvokeFunc func(ctx context.Context) (interface{}, error)

// ExceptionPipeline turns failures into error envelopes and consults the
// configured exception handler.
type ExceptionPipeline struct {
	handlerRef string
	debug      bool
	resolver   Resolver
}

// NewExceptionPipeline creates an ExceptionPipeline. handlerRef may be empty.
func NewExceptionPipeline(handlerRef string, debug bool, resolver Resolver) *ExceptionPipeline {
	if resolver == nil {
		resolver = DefaultRegistry
	}
	return &ExceptionPipeline{
		handlerRef: handlerRef,
		debug:      debug,
		resolver:   resolver,
	}
}

// Run calls fn. Returned errors and panics produce a 500 envelope and are
// offered to the exception handler; the outcome tells the caller whether
// to propagate err.
func (p *ExceptionPipeline) Run(ctx context.Context, fn InvokeFunc, event map[string]interface{}, invocationCtx interface{}) (interface{}, Outcome, error) {
	result, err := safeInvoke(ctx, fn)
	if err == nil {
		return result, Succeeded, nil
	}

	logrus.WithFields(logrus.Fields{
		"error":      err.Error(),
		"error_type": fmt.Sprintf("%T", err),
	}).Error("Uncaught exception while servicing invocation")

	envelope := p.Envelope(err)

	if ProcessException(p.resolver, p.handlerRef, err, event, invocationCtx) {
		ExceptionsTotal.WithLabelValues(Handled.String()).Inc()
		return envelope, Handled, err
	}

	ExceptionsTotal.WithLabelValues(Unhandled.String()).Inc()
	return envelope, Unhandled, err
}

// Envelope builds the 500 response for err. The traceback is included only
// in debug mode.
func (p *ExceptionPipeline) Envelope(err error) *Result {
	content := map[string]interface{}{
		"message": UncaughtExceptionMessage,
	}
	if p.debug {
		content["traceback"] = Traceback(err)
	}

	data, marshalErr := json.MarshalIndent(content, "", "    ")
	if marshalErr != nil {
		data = []byte(fmt.Sprintf(`{"message": %q}`, UncaughtExceptionMessage))
	}
	body := string(data)

	return &Result{
		StatusCode: http.StatusInternalServerError,
		Body:       &body,
	}
}

// ProcessException hands err to the exception handler named by handlerRef
// and reports whether the handler claimed it. Lookup failures, handler
// errors and handler panics are logged and count as not handled.
func ProcessException(resolver Resolver, handlerRef string, err error, event map[string]interface{}, invocationCtx interface{}) (handled bool) {
	if handlerRef == "" {
		return false
	}

	handler, lookupErr := resolver.ExceptionHandler(handlerRef)
	if lookupErr != nil {
		logrus.WithFields(logrus.Fields{
			"exception_handler": handlerRef,
			"error":             lookupErr.Error(),
		}).Error("Failed to process exception via custom handler")
		return false
	}

	defer func() {
		if r := recover(); r != nil {
			logrus.WithFields(logrus.Fields{
				"exception_handler": handlerRef,
				"panic":             fmt.Sprint(r),
			}).Error("Failed to process exception via custom handler")
			handled = false
		}
	}()

	ok, handlerErr := handler(err, event, invocationCtx)
	if handlerErr != nil {
		logrus.WithFields(logrus.Fields{
			"exception_handler": handlerRef,
			"error":             handlerErr.Error(),
		}).Error("Failed to process exception via custom handler")
		return false
	}

	return ok
}

// Traceback renders err as an ordered list of lines: the error chain,
// outermost first, followed by the goroutine stack for panics.
func Traceback(err error) []string {
	var lines []string
	for e := err; e != nil; e = errors.Unwrap(e) {
		lines = append(lines, fmt.Sprintf("%T: %s", e, e.Error()))
	}

	var panicErr *PanicError
	if errors.As(err, &panicErr) {
		for _, line := range strings.Split(strings.TrimRight(string(panicErr.Stack), "\n"), "\n") {
			lines = append(lines, line)
		}
	}

	return lines
}

func safeInvoke(ctx context.Context, fn InvokeFunc) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
			result = nil
		}
	}()
	return fn(ctx)
}
