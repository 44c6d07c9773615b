package lambda

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// CommonLog writes one access line in Common Log Format with the response
// time appended.
func CommonLog(req *CanonicalRequest, resp *ApplicationResponse, responseTime time.Duration, requestID string) {
	ms := float64(responseTime.Nanoseconds()) / 1000000

	user := req.RemoteUser
	if user == "" {
		user = "-"
	}
	target := req.ScriptName + req.PathInfo
	if req.RawQuery != "" {
		target += "?" + req.RawQuery
	}
	size := len(resp.Data)

	line := fmt.Sprintf(`%s - %s [%s] "%s %s %s" %d %d "%s" "%s" %.3fms`,
		req.RemoteAddr,
		user,
		time.Now().Format("02/Jan/2006:15:04:05 -0700"),
		req.Method,
		target,
		req.Protocol,
		resp.StatusCode,
		size,
		valueOrDash(req.Header.Get("Referer")),
		valueOrDash(req.Header.Get("User-Agent")),
		ms,
	)

	fields := logrus.Fields{
		"request_id":       requestID,
		"method":           req.Method,
		"path":             target,
		"status_code":      resp.StatusCode,
		"response_size":    size,
		"response_time_ms": ms,
		"client_ip":        req.RemoteAddr,
	}

	switch {
	case resp.StatusCode >= 500:
		logrus.WithFields(fields).Error(line)
	case resp.StatusCode >= 400:
		logrus.WithFields(fields).Warn(line)
	default:
		logrus.WithFields(fields).Info(line)
	}
}

func valueOrDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
