package proxy

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"prismgate/pkg/config"
)

// relayPathSubstring marks the relay endpoint whose upstream authorization
// is pinned to the service credential regardless of what the caller sent.
const relayPathSubstring = "llm-proxy"

// upstreamBodyLimit caps how much of a failed upstream body is retained
// for diagnostics.
const upstreamBodyLimit = 4096

// Forwarder sends requests to upstream providers. It applies the route's
// header policy, per-route timeout, and retry policy.
type Forwarder struct {
	client     *http.Client
	credential string
	logger     *slog.Logger
}

// NewForwarder creates a forwarder. The credential is the service API key
// used to pin authorization on the relay endpoint; it may be empty, in
// which case the relay forwards whatever authorization the caller sent.
func NewForwarder(client *http.Client, credential string, logger *slog.Logger) *Forwarder {
	if client == nil {
		client = http.DefaultClient
	}
	return &Forwarder{
		client:     client,
		credential: credential,
		logger:     logger,
	}
}

// Forward sends the body to the route's target and returns the upstream
// response. Retriable failures (network errors, timeouts, 5xx, 429) are
// retried per the route's retry policy with exponential backoff. A non-2xx
// final response is returned as an UpstreamError with its body consumed.
//
// The returned response body must be closed by the caller; closing it
// releases the per-attempt timeout.
func (f *Forwarder) Forward(ctx context.Context, route config.Route, inbound http.Header, body []byte) (*http.Response, error) {
	var lastErr error

	delay := route.Retry.BaseDelay
	for attempt := 1; attempt <= route.Retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			f.logger.Debug("retrying upstream request",
				"target", route.TargetURL,
				"attempt", attempt,
				"backoff", delay)

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, &NetworkError{Cause: ctx.Err()}
			case <-timer.C:
			}
			delay = route.Retry.NextDelay(delay)
		}

		resp, err := f.attempt(ctx, route, inbound, body)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, lastErr
		}
		if !retriable(err) {
			return nil, lastErr
		}

		f.logger.Warn("upstream request failed, will retry",
			"target", route.TargetURL,
			"attempt", attempt,
			"error", err)
	}

	return nil, lastErr
}

// attempt performs one upstream round trip with the route's timeout.
func (f *Forwarder) attempt(ctx context.Context, route config.Route, inbound http.Header, body []byte) (*http.Response, error) {
	var attemptCtx context.Context
	var cancel context.CancelFunc
	if route.Timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, route.Timeout)
	} else {
		attemptCtx, cancel = context.WithCancel(ctx)
	}

	req, err := http.NewRequestWithContext(attemptCtx, route.Method, route.TargetURL, bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, &InvalidRequestError{Message: "failed to build upstream request", Cause: err}
	}

	f.applyHeaderPolicy(req, route, inbound)

	resp, err := f.client.Do(req)
	if err != nil {
		cancel()
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, &TimeoutError{Timeout: route.Timeout}
		}
		return nil, &NetworkError{Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		preview, _ := io.ReadAll(io.LimitReader(resp.Body, upstreamBodyLimit))
		resp.Body.Close()
		cancel()
		return nil, &UpstreamError{Status: resp.StatusCode, Body: string(preview)}
	}

	// The timeout stays armed until the caller finishes the body.
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// applyHeaderPolicy builds the upstream header set: forwarded inbound
// headers first, then custom headers (overwriting), then the pinned relay
// authorization (overriding both).
func (f *Forwarder) applyHeaderPolicy(req *http.Request, route config.Route, inbound http.Header) {
	for _, name := range route.ForwardRequestHeaders {
		if values, ok := inbound[http.CanonicalHeaderKey(name)]; ok {
			for _, v := range values {
				req.Header.Add(name, v)
			}
		}
	}

	for name, value := range route.CustomHeaders {
		req.Header.Set(name, value)
	}

	if f.credential != "" && strings.Contains(route.Path, relayPathSubstring) {
		req.Header.Set("Authorization", "Bearer "+f.credential)
	}
}

// retriable reports whether an upstream failure is worth another attempt:
// network errors, timeouts, and 5xx or 429 responses.
func retriable(err error) bool {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return true
	}
	var timeoutErr *TimeoutError
	if errors.As(err, &timeoutErr) {
		return true
	}
	var upstreamErr *UpstreamError
	if errors.As(err, &upstreamErr) {
		return upstreamErr.Status >= 500 || upstreamErr.Status == http.StatusTooManyRequests
	}
	return false
}

// cancelOnClose ties a context cancel to the response body's lifetime.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
