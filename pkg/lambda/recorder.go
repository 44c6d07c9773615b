package lambda

import (
	"bytes"
	"net/http"
)

// responseRecorder captures what the application writes for one request.
// Headers changed after WriteHeader are ignored, as with net/http.
type responseRecorder struct {
	header      http.Header
	written     http.Header
	status      int
	wroteHeader bool
	sniffed     bool
	body        bytes.Buffer
}

func newResponseRecorder() *responseRecorder {
	return &responseRecorder{header: http.Header{}}
}

func (r *responseRecorder) Header() http.Header {
	return r.header
}

func (r *responseRecorder) WriteHeader(code int) {
	if r.wroteHeader {
		return
	}
	r.wroteHeader = true
	r.status = code
	r.written = r.header.Clone()
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	if !r.sniffed && len(b) > 0 {
		r.sniffed = true
		if _, ok := r.written["Content-Type"]; !ok {
			r.written.Set("Content-Type", http.DetectContentType(b))
		}
	}
	return r.body.Write(b)
}

// Flush implements http.Flusher; the body is buffered until the handler returns.
func (r *responseRecorder) Flush() {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
}

// Response returns the recorded response
func (r *responseRecorder) Response() *ApplicationResponse {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	return &ApplicationResponse{
		StatusCode: r.status,
		Header:     r.written,
		Data:       r.body.Bytes(),
	}
}
