package lambda

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strings"
)

// Result is the envelope returned to API Gateway or the ALB for one
// invocation. Optional fields are emitted only when set.
type Result struct {
	StatusCode        int
	Body              *string
	IsBase64Encoded   *bool
	Headers           map[string]string
	MultiValueHeaders map[string][]string
	StatusDescription *string
}

// MarshalJSON implements json.Marshaler
func (r Result) MarshalJSON() ([]byte, error) {
	out := map[string]interface{}{
		"statusCode": r.StatusCode,
	}
	if r.Body != nil {
		out["body"] = *r.Body
	}
	if r.IsBase64Encoded != nil {
		out["isBase64Encoded"] = *r.IsBase64Encoded
	}
	if r.Headers != nil {
		out["headers"] = r.Headers
	}
	if r.MultiValueHeaders != nil {
		out["multiValueHeaders"] = r.MultiValueHeaders
	}
	if r.StatusDescription != nil {
		out["statusDescription"] = *r.StatusDescription
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler
func (r *Result) UnmarshalJSON(data []byte) error {
	var wire struct {
		StatusCode        int                 `json:"statusCode"`
		Body              *string             `json:"body"`
		IsBase64Encoded   *bool               `json:"isBase64Encoded"`
		Headers           map[string]string   `json:"headers"`
		MultiValueHeaders map[string][]string `json:"multiValueHeaders"`
		StatusDescription *string             `json:"statusDescription"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*r = Result(wire)
	return nil
}

// ApplicationResponse is what the wrapped application wrote for one request
type ApplicationResponse struct {
	StatusCode int
	Header     http.Header
	Data       []byte
}

// Mimetype returns the media type of the Content-Type header, lowercased
// and without parameters.
func (r *ApplicationResponse) Mimetype() string {
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.Split(contentType, ";")[0])
	}
	return strings.ToLower(mediaType)
}

// Status returns the status line, e.g. "200 OK"
func (r *ApplicationResponse) Status() string {
	text := http.StatusText(r.StatusCode)
	if text == "" {
		text = "UNKNOWN"
	}
	return fmt.Sprintf("%d %s", r.StatusCode, strings.ToUpper(text))
}

// Function is a non-HTTP entry point addressed by a "command" event
type Function func(ctx context.Context, event map[string]interface{}) (interface{}, error)

// ExceptionHandler decides whether an invocation failure was dealt with.
// Returning true suppresses the error so the platform does not retry.
type ExceptionHandler func(err error, event map[string]interface{}, invocationCtx interface{}) (bool, error)
