package lambda

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

// Event is one decoded invocation event. Raw keeps the event as received;
// it is handed to the application and the exception handler and never
// modified.
type Event struct {
	HTTPMethod                      string
	Path                            string
	Headers                         map[string]string
	MultiValueHeaders               map[string][]string
	QueryStringParameters           map[string]string
	MultiValueQueryStringParameters map[string][]string
	Body                            string
	IsBase64Encoded                 bool
	RequestContext                  map[string]interface{}
	Command                         string

	// Whether the event carried the headers / multiValueHeaders keys.
	// The response mirrors exactly these.
	HasHeaders           bool
	HasMultiValueHeaders bool

	Raw map[string]interface{}

	requestContext json.RawMessage
}

type eventWire struct {
	Path                            string              `json:"path"`
	Headers                         map[string]string   `json:"headers"`
	MultiValueHeaders               map[string][]string `json:"multiValueHeaders"`
	QueryStringParameters           map[string]string   `json:"queryStringParameters"`
	MultiValueQueryStringParameters map[string][]string `json:"multiValueQueryStringParameters"`
	Body                            string              `json:"body"`
	IsBase64Encoded                 bool                `json:"isBase64Encoded"`
	RequestContext                  json.RawMessage     `json:"requestContext"`
}

// ParseEvent decodes a raw invocation payload. Only events carrying an
// httpMethod are decoded beyond the top level.
func ParseEvent(data []byte) (*Event, error) {
	raw := map[string]interface{}{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &TranslationError{Err: fmt.Errorf("%w: %v", ErrInvalidEvent, err)}
	}

	event := &Event{Raw: raw}

	if method, ok := raw["httpMethod"]; ok && method != nil {
		s, ok := method.(string)
		if !ok {
			return nil, &TranslationError{Field: "httpMethod", Err: fmt.Errorf("%w: expected string, got %T", ErrInvalidEvent, method)}
		}
		event.HTTPMethod = strings.ToUpper(s)
	}
	if command, ok := raw["command"].(string); ok {
		event.Command = command
	}

	if !event.IsHTTP() {
		return event, nil
	}

	var wire eventWire
	if err := json.Unmarshal(data, &wire); err != nil {
		field := ""
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			field = typeErr.Field
		}
		return nil, &TranslationError{Field: field, Err: fmt.Errorf("%w: %v", ErrInvalidEvent, err)}
	}

	event.Path = wire.Path
	event.Headers = wire.Headers
	event.MultiValueHeaders = wire.MultiValueHeaders
	event.QueryStringParameters = wire.QueryStringParameters
	event.MultiValueQueryStringParameters = wire.MultiValueQueryStringParameters
	event.Body = wire.Body
	event.IsBase64Encoded = wire.IsBase64Encoded
	event.requestContext = wire.RequestContext
	event.RequestContext, _ = raw["requestContext"].(map[string]interface{})

	_, event.HasHeaders = raw["headers"]
	_, event.HasMultiValueHeaders = raw["multiValueHeaders"]

	return event, nil
}

// IsHTTP reports whether the event is an HTTP request
func (e *Event) IsHTTP() bool {
	return e.HTTPMethod != ""
}

// ELBContext returns the load balancer context for events delivered by an
// ALB target group.
func (e *Event) ELBContext() (events.ELBContext, bool) {
	if _, ok := e.RequestContext["elb"]; !ok {
		return events.ELBContext{}, false
	}
	var rc events.ALBTargetGroupRequestContext
	_ = json.Unmarshal(e.requestContext, &rc)
	return rc.ELB, true
}

// PrincipalID returns the authorizer principal, if API Gateway ran one
func (e *Event) PrincipalID() string {
	if len(e.requestContext) == 0 {
		return ""
	}
	var rc events.APIGatewayProxyRequestContext
	if err := json.Unmarshal(e.requestContext, &rc); err == nil {
		if principal, ok := rc.Authorizer["principalId"].(string); ok {
			return principal
		}
		return ""
	}
	authorizer, _ := e.RequestContext["authorizer"].(map[string]interface{})
	principal, _ := authorizer["principalId"].(string)
	return principal
}

// RequestID returns the API Gateway request id, if present
func (e *Event) RequestID() string {
	id, _ := e.RequestContext["requestId"].(string)
	return id
}

// lookupContext resolves a dotted path such as "identity.sourceIp" inside
// the request context.
func (e *Event) lookupContext(path string) (interface{}, bool) {
	var current interface{} = e.RequestContext
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		if current, ok = m[part]; !ok {
			return nil, false
		}
	}
	return current, true
}

// MergeHeaders combines single- and multi-value headers into one map.
// Multi-value headers win and are joined with ", ".
func MergeHeaders(event *Event) map[string]string {
	if len(event.Headers) == 0 && len(event.MultiValueHeaders) == 0 {
		return nil
	}
	merged := make(map[string]string, len(event.Headers)+len(event.MultiValueHeaders))
	for key, value := range event.Headers {
		merged[key] = value
	}
	for key, values := range event.MultiValueHeaders {
		merged[key] = strings.Join(values, ", ")
	}
	return merged
}
