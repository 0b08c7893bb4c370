package libreview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// DefaultHost is the production LibreView API host.
const DefaultHost = "https://api.libreview.io"

// requestTimeout bounds every vendor call; a stalled server must not hang a run.
const requestTimeout = 10 * time.Second

// maxDiagnosticLen caps how much of a failing response body ends up in errors.
const maxDiagnosticLen = 512

// defaultHeaders identify an official mobile client. The vendor rejects
// requests without them. This map is never mutated; per-call headers are
// merged over a fresh copy. Accept-Encoding and Connection are left to the
// HTTP transport, which negotiates gzip and keep-alive itself.
var defaultHeaders = map[string]string{
	"Content-Type":  "application/json",
	"Accept":        "application/json, application/xml, multipart/form-data",
	"product":       "llu.ios",
	"version":       "4.16.0",
	"User-Agent":    "LibreLink/4.16.0 (iPhone; iOS 17.0; Scale/3.00)",
	"Cache-Control": "no-cache",
}

// transport issues single HTTP calls against the vendor API. It enforces the
// method whitelist and the timeout, merges headers, and collapses every
// failure mode (transport error, non-2xx, non-JSON body) into *RequestError.
// It does not retry.
type transport struct {
	http    *resty.Client
	host    string
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

func newTransport(host string, logger *zap.Logger) *transport {
	client := resty.New().
		SetBaseURL(host).
		SetTimeout(requestTimeout).
		SetRetryCount(0).
		SetHeader("User-Agent", defaultHeaders["User-Agent"])

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "libreview",
		MaxRequests: 2,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &transport{
		http:    client,
		host:    host,
		breaker: cb,
		logger:  logger,
	}
}

// execute performs one request and returns the decoded JSON body. headers are
// merged over the default set; body (may be nil) is JSON-encoded for POST.
func (t *transport) execute(ctx context.Context, method, path string, headers map[string]string, body any) (json.RawMessage, error) {
	if method != http.MethodGet && method != http.MethodPost {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, method)
	}

	merged := make(map[string]string, len(defaultHeaders)+len(headers))
	for k, v := range defaultHeaders {
		merged[k] = v
	}
	for k, v := range headers {
		merged[k] = v
	}

	url := t.host + path

	result, err := t.breaker.Execute(func() (any, error) {
		req := t.http.R().
			SetContext(ctx).
			SetHeaders(merged)
		if body != nil {
			req.SetBody(body)
		}

		resp, err := req.Execute(method, path)
		if err != nil {
			return nil, &RequestError{URL: url, Diagnostic: err.Error()}
		}

		raw := resp.Body()
		if resp.IsError() {
			return nil, &RequestError{
				URL:        url,
				Status:     resp.StatusCode(),
				Diagnostic: truncate(string(raw), maxDiagnosticLen),
			}
		}
		if !json.Valid(raw) {
			return nil, &RequestError{
				URL:        url,
				Status:     resp.StatusCode(),
				Diagnostic: "response body is not valid JSON: " + truncate(string(raw), maxDiagnosticLen),
			}
		}
		return json.RawMessage(raw), nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = &RequestError{URL: url, Diagnostic: "circuit breaker open: " + err.Error()}
		}
		t.logger.Warn("vendor request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}

	return result.(json.RawMessage), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
