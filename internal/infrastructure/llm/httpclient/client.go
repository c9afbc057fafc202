// Package httpclient builds the HTTP client shared by the completion backends.
package httpclient

import (
	"net/http"
	"time"

	"formfill/internal/application/port/output"
)

type loggingTransport struct {
	base   http.RoundTripper
	logger output.LoggerPort
}

// RoundTrip logs method, host and status. Bodies carry page content and are not logged.
func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	t.logger.Debug("HTTP Request",
		"method", req.Method,
		"url", req.URL.Redacted(),
		"body_bytes", req.ContentLength)

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		t.logger.Warn("HTTP Request failed",
			"url", req.URL.Redacted(),
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err)
		return nil, err
	}

	t.logger.Debug("HTTP Response",
		"status", resp.Status,
		"statusCode", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())
	return resp, nil
}

// New returns a client that logs every round trip. A nil logger yields a plain client.
func New(logger output.LoggerPort, timeout time.Duration) *http.Client {
	client := &http.Client{Timeout: timeout}
	if logger != nil {
		client.Transport = &loggingTransport{base: http.DefaultTransport, logger: logger}
	}
	return client
}
