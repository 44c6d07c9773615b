package lambda

import (
	"encoding/base64"
	"strings"
)

// TranslateResponse packs an application response into the envelope the
// platform expects. Only the header fields present on the event are set.
func TranslateResponse(resp *ApplicationResponse, event *Event, elb bool, binarySupport bool) *Result {
	result := &Result{StatusCode: resp.StatusCode}

	// ALB responses must always carry these two fields.
	if elb {
		encoded := false
		status := resp.Status()
		result.IsBase64Encoded = &encoded
		result.StatusDescription = &status
	}

	if len(resp.Data) > 0 {
		if binarySupport && IsBinaryMimetype(resp.Mimetype()) {
			body := base64.StdEncoding.EncodeToString(resp.Data)
			encoded := true
			result.Body = &body
			result.IsBase64Encoded = &encoded
		} else {
			body := strings.ToValidUTF8(string(resp.Data), "�")
			result.Body = &body
		}
	}

	if event.HasHeaders {
		result.Headers = make(map[string]string, len(resp.Header))
		for key, values := range resp.Header {
			if len(values) > 0 {
				result.Headers[key] = values[len(values)-1]
			}
		}
	}
	if event.HasMultiValueHeaders {
		result.MultiValueHeaders = make(map[string][]string, len(resp.Header))
		for key, values := range resp.Header {
			result.MultiValueHeaders[key] = append([]string(nil), values...)
		}
	}

	return result
}

// IsBinaryMimetype reports whether a body of this type is sent base64 encoded
func IsBinaryMimetype(mimetype string) bool {
	return !strings.HasPrefix(mimetype, "text/") && mimetype != "application/json"
}
