package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/carelink/portal-gateway/pkg/logger"
)

// uploadPath is the upstream report-submission endpoint
const uploadPath = "/api/v1/report/report"

// Category classifies a relay failure for the caller. Timeouts are surfaced
// separately from unreachability so callers can tell "still processing, try
// again" from "the service is down".
type Category string

const (
	CategoryTimeout     Category = "timeout"
	CategoryUnavailable Category = "unavailable"
	CategoryInternal    Category = "internal"
)

// Error is a categorized relay failure
type Error struct {
	Category Category
	Cause    error
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("relay %s: %v", e.Category, e.Cause)
}

// Unwrap returns the underlying transport error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Config holds relay timeout configuration. The connect window is short; the
// header and body windows are long because the backend may analyze a report
// before answering the upload.
type Config struct {
	UpstreamBaseURL       string
	ConnectTimeout        time.Duration
	ResponseHeaderTimeout time.Duration
	BodyTimeout           time.Duration
}

// Relay streams multipart upload bodies to the upstream backend without
// buffering them. One outbound call per invocation, no retries.
type Relay struct {
	uploadURL   string
	client      *http.Client
	bodyTimeout time.Duration
	logger      *logger.Logger
}

// New creates an upload relay
func New(cfg Config, log *logger.Logger) *Relay {
	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
		// Compression would force buffering of the response
		DisableCompression: true,
	}

	return &Relay{
		uploadURL:   strings.TrimSuffix(cfg.UpstreamBaseURL, "/") + uploadPath,
		client:      &http.Client{Transport: transport},
		bodyTimeout: cfg.BodyTimeout,
		logger:      log,
	}
}

// hopByHopHeaders must not be forwarded to the upstream
var hopByHopHeaders = map[string]struct{}{
	"Host":              {},
	"Connection":        {},
	"Content-Length":    {},
	"Transfer-Encoding": {},
}

// Do forwards the request body to the upstream upload endpoint. On failure
// the returned error is always a *Error with a caller-visible category. On
// success the caller owns the response and must close its body; closing it
// releases the outbound connection and the body-timeout context.
func (rl *Relay) Do(ctx context.Context, header http.Header, body io.Reader) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, rl.bodyTimeout)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rl.uploadURL, body)
	if err != nil {
		cancel()
		return nil, &Error{Category: CategoryInternal, Cause: err}
	}

	copyForwardHeaders(req.Header, header)

	resp, err := rl.client.Do(req)
	if err != nil {
		cancel()
		relayErr := categorize(err)
		rl.logger.WithComponent("relay").
			WithField("category", string(relayErr.Category)).
			WithError(err).
			Warn("Upload relay failed")
		return nil, relayErr
	}

	// The body timeout covers the response read as well; cancellation is
	// deferred until the caller closes the body.
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// copyForwardHeaders copies request headers minus hop-by-hop ones and
// defaults Accept to JSON
func copyForwardHeaders(dst, src http.Header) {
	for key, values := range src {
		if _, skip := hopByHopHeaders[http.CanonicalHeaderKey(key)]; skip {
			continue
		}
		for _, v := range values {
			dst.Add(key, v)
		}
	}

	if dst.Get("Accept") == "" {
		dst.Set("Accept", "application/json")
	}
}

// categorize maps a transport error to a caller-visible failure category
func categorize(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Category: CategoryTimeout, Cause: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Category: CategoryTimeout, Cause: err}
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return &Error{Category: CategoryUnavailable, Cause: err}
	}

	return &Error{Category: CategoryInternal, Cause: err}
}

// cancelOnClose releases the request context when the response body is
// closed, so the connection is returned on every exit path
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
