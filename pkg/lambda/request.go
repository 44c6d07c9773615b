package lambda

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"path"
	"strings"
)

const (
	// gatewayDomainMarker identifies hosts generated by API Gateway. Requests
	// to these hosts carry no stage in the path.
	gatewayDomainMarker = "amazonaws.com"

	defaultServerName = "lambda"
	defaultServerPort = "443"
	defaultRemoteAddr = "127.0.0.1"
)

// TranslateOptions are the runtime settings that shape request translation
type TranslateOptions struct {
	Stage                 string
	Domain                string
	BasePath              string
	TrailingSlash         bool
	BinarySupport         bool
	ContextHeaderMappings map[string]string
}

// DerivedContext carries values computed while translating a request that
// the response side needs.
type DerivedContext struct {
	ELB        bool
	ScriptName string
}

// CanonicalRequest is the gateway-neutral request built from one event
type CanonicalRequest struct {
	Method     string
	ScriptName string
	PathInfo   string
	RawQuery   string
	Host       string
	ServerPort string
	RemoteAddr string
	RemoteUser string
	Protocol   string
	Scheme     string
	HTTPS      bool
	Header     http.Header
	Body       []byte

	Event             *Event
	InvocationContext interface{}
}

// TranslateRequest builds the canonical request for an HTTP event. Events
// without an httpMethod are not HTTP requests; nil is returned for them.
func TranslateRequest(event *Event, invocationCtx interface{}, opts TranslateOptions) (*CanonicalRequest, *DerivedContext, error) {
	if event == nil || !event.IsHTTP() {
		return nil, nil, nil
	}

	derived := &DerivedContext{}
	_, derived.ELB = event.ELBContext()

	headers := MergeHeaders(event)
	host := headerValue(headers, "Host")
	derived.ScriptName = ScriptPrefix(host, derived.ELB, opts.Stage, opts.Domain)

	pathInfo, err := url.PathUnescape(event.Path)
	if err != nil {
		return nil, nil, &TranslationError{Field: "path", Err: err}
	}
	if pathInfo == "" {
		pathInfo = "/"
	}
	if opts.BasePath != "" {
		derived.ScriptName = "/" + opts.BasePath
		if pathInfo == derived.ScriptName || strings.HasPrefix(pathInfo, derived.ScriptName+"/") {
			pathInfo = pathInfo[len(derived.ScriptName):]
			if pathInfo == "" {
				pathInfo = "/"
			}
		}
	}
	if opts.TrailingSlash {
		pathInfo = appendSlash(pathInfo)
	}

	body, err := decodeBody(event, opts.BinarySupport)
	if err != nil {
		return nil, nil, err
	}

	header := make(http.Header, len(headers)+len(opts.ContextHeaderMappings))
	for key, value := range headers {
		header.Set(key, value)
	}
	for name, contextPath := range opts.ContextHeaderMappings {
		if value, ok := event.lookupContext(contextPath); ok && value != nil {
			header.Set(name, fmt.Sprint(value))
		}
	}

	req := &CanonicalRequest{
		Method:            event.HTTPMethod,
		ScriptName:        derived.ScriptName,
		PathInfo:          pathInfo,
		RawQuery:          encodeQuery(event),
		Host:              defaultServerName,
		ServerPort:        defaultServerPort,
		RemoteAddr:        defaultRemoteAddr,
		RemoteUser:        event.PrincipalID(),
		Protocol:          "HTTP/1.1",
		Scheme:            "https",
		HTTPS:             true,
		Header:            header,
		Body:              body,
		Event:             event,
		InvocationContext: invocationCtx,
	}

	if host != "" {
		req.Host = host
	}
	if port := header.Get("X-Forwarded-Port"); port != "" {
		req.ServerPort = port
	}
	if forwarded := header.Get("X-Forwarded-For"); forwarded != "" {
		req.RemoteAddr = strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}

	return req, derived, nil
}

// ScriptPrefix decides the script name for a request. API Gateway strips the
// stage from the path, so requests through its generated domain need the
// stage added back for URL building; custom domains do not. Console test
// invocations carry no Host and get the stage unless a domain is configured.
func ScriptPrefix(host string, elb bool, stage, domain string) string {
	if elb || stage == "" {
		return ""
	}
	if host == "" {
		if domain != "" {
			return ""
		}
		return "/" + stage
	}
	if strings.Contains(host, gatewayDomainMarker) {
		return "/" + stage
	}
	return ""
}

// HTTPRequest builds the *http.Request handed to the application. The
// event, invocation context and script name are available to handlers via
// EventFromRequest, InvocationContextFromRequest and ScriptName.
func (c *CanonicalRequest) HTTPRequest(ctx context.Context) (*http.Request, error) {
	u := &url.URL{
		Scheme:   c.Scheme,
		Host:     c.Host,
		Path:     c.PathInfo,
		RawQuery: c.RawQuery,
	}

	ctx = context.WithValue(ctx, eventKey, c.Event)
	ctx = context.WithValue(ctx, invocationContextKey, c.InvocationContext)
	ctx = context.WithValue(ctx, scriptNameKey, c.ScriptName)
	ctx = context.WithValue(ctx, remoteUserKey, c.RemoteUser)

	req, err := http.NewRequestWithContext(ctx, c.Method, u.String(), bytes.NewReader(c.Body))
	if err != nil {
		return nil, &TranslationError{Err: err}
	}

	req.Header = c.Header.Clone()
	if req.Header.Get("X-Forwarded-Proto") == "" {
		req.Header.Set("X-Forwarded-Proto", c.Scheme)
	}
	req.Host = c.Host
	req.Proto = c.Protocol
	req.ProtoMajor, req.ProtoMinor = 1, 1
	req.ContentLength = int64(len(c.Body))
	req.RemoteAddr = net.JoinHostPort(c.RemoteAddr, "0")
	req.RequestURI = u.RequestURI()
	if c.HTTPS {
		// TLS is terminated by the platform before the event is delivered.
		req.TLS = &tls.ConnectionState{HandshakeComplete: true, ServerName: c.Host}
	}

	return req, nil
}

type contextKey int

const (
	eventKey contextKey = iota
	invocationContextKey
	scriptNameKey
	remoteUserKey
)

// EventFromRequest returns the invocation event behind r
func EventFromRequest(r *http.Request) (*Event, bool) {
	event, ok := r.Context().Value(eventKey).(*Event)
	return event, ok && event != nil
}

// InvocationContextFromRequest returns the platform invocation context
// behind r, usually a *lambdacontext.LambdaContext.
func InvocationContextFromRequest(r *http.Request) interface{} {
	return r.Context().Value(invocationContextKey)
}

// ScriptName returns the path prefix the application is mounted under
func ScriptName(r *http.Request) string {
	name, _ := r.Context().Value(scriptNameKey).(string)
	return name
}

// RemoteUser returns the authorizer principal of the request, if any
func RemoteUser(r *http.Request) string {
	user, _ := r.Context().Value(remoteUserKey).(string)
	return user
}

func headerValue(headers map[string]string, name string) string {
	if value, ok := headers[name]; ok {
		return value
	}
	for key, value := range headers {
		if strings.EqualFold(key, name) {
			return value
		}
	}
	return ""
}

// appendSlash adds a trailing slash unless the last segment looks like a file
func appendSlash(p string) string {
	if strings.HasSuffix(p, "/") || path.Ext(p) != "" {
		return p
	}
	return p + "/"
}

func decodeBody(event *Event, binarySupport bool) ([]byte, error) {
	if event.Body == "" {
		return nil, nil
	}
	if binarySupport && event.IsBase64Encoded {
		body, err := base64.StdEncoding.DecodeString(event.Body)
		if err != nil {
			return nil, &TranslationError{Field: "body", Err: err}
		}
		return body, nil
	}
	return []byte(event.Body), nil
}

// encodeQuery prefers multi-value query parameters when present
func encodeQuery(event *Event) string {
	if len(event.MultiValueQueryStringParameters) > 0 {
		return url.Values(event.MultiValueQueryStringParameters).Encode()
	}
	values := url.Values{}
	for key, value := range event.QueryStringParameters {
		values.Set(key, value)
	}
	return values.Encode()
}
