// Package httpx builds the HTTP clients vendor adapters hand to their SDKs.
package httpx

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"exo-agent/internal/application/port/output"
)

// LoggingTransport logs outbound vendor requests at debug level. Credentials are
// never logged.
type LoggingTransport struct {
	Base   http.RoundTripper
	Logger output.LoggerPort
}

func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	start := time.Now()
	if t.Logger != nil {
		var bodyBytes []byte
		if req.Body != nil {
			bodyBytes, _ = io.ReadAll(req.Body)
			req.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
		}

		var requestData map[string]interface{}
		if len(bodyBytes) > 0 {
			_ = json.Unmarshal(bodyBytes, &requestData)
		}

		t.Logger.Debug("HTTP Request",
			"method", req.Method,
			"url", req.URL.Redacted(),
			"body", requestData,
		)
	}

	resp, err := base.RoundTrip(req)

	if t.Logger != nil {
		if err != nil {
			t.Logger.Warn("HTTP Request failed", "url", req.URL.Redacted(), "error", err)
		} else {
			t.Logger.Debug("HTTP Response",
				"status", resp.Status,
				"statusCode", resp.StatusCode,
				"duration", time.Since(start).String(),
			)
		}
	}

	return resp, err
}

// NewClient returns a client with the given timeout (zero means none) that logs
// through logger when it is non-nil.
func NewClient(timeout time.Duration, logger output.LoggerPort) *http.Client {
	client := &http.Client{Timeout: timeout}
	if logger != nil {
		client.Transport = &LoggingTransport{
			Base:   http.DefaultTransport,
			Logger: logger,
		}
	}
	return client
}
