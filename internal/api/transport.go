package api

import (
	"log/slog"
	"net/http"
	"time"
)

// Header names set on outgoing requests.
const (
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderUserID         = "X-User-Id"
	HeaderUserEmail      = "X-User-Email"
)

type loggingTransport struct {
	next   http.RoundTripper
	logger *slog.Logger
}

// RoundTrip logs each request's method, path, status, and duration.
func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		t.logger.Warn(
			"request failed",
			"method", req.Method,
			"path", req.URL.Path,
			"duration", time.Since(start),
			"error", err,
		)
		return nil, err
	}
	t.logger.Debug(
		"request",
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)
	return resp, nil
}

type identityTransport struct {
	next      http.RoundTripper
	userID    string
	userEmail string
}

func (t *identityTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.userID == "" && t.userEmail == "" {
		return t.next.RoundTrip(req)
	}
	r := req.Clone(req.Context())
	if t.userID != "" {
		r.Header.Set(HeaderUserID, t.userID)
	}
	if t.userEmail != "" {
		r.Header.Set(HeaderUserEmail, t.userEmail)
	}
	return t.next.RoundTrip(r)
}
