package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
)

// UpstreamErrorKind classifies upstream failures.
type UpstreamErrorKind string

const (
	// KindUnreachable means the upstream could not be dialed.
	KindUnreachable UpstreamErrorKind = "unreachable"

	// KindTimeout means the upstream did not respond within the deadline.
	KindTimeout UpstreamErrorKind = "timeout"

	// KindProtocol means the upstream connection failed mid-exchange.
	KindProtocol UpstreamErrorKind = "protocol"
)

// UpstreamError is a per-request forwarding failure. It maps to 502 or 504
// at the router boundary and is never retried by the proxy.
type UpstreamError struct {
	Kind   UpstreamErrorKind
	Target string
	Cause  error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error [kind=%s, target=%s]: %v", e.Kind, e.Target, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *UpstreamError) Unwrap() error {
	return e.Cause
}

// StatusCode returns the HTTP status this failure maps to: 504 for
// timeouts, 502 otherwise.
func (e *UpstreamError) StatusCode() int {
	if e.Kind == KindTimeout {
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

// classifyUpstreamError converts a transport error into an *UpstreamError.
func classifyUpstreamError(target string, err error) *UpstreamError {
	kind := KindProtocol

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		kind = KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = KindTimeout
	case isConnectionError(err):
		kind = KindUnreachable
	}

	return &UpstreamError{Kind: kind, Target: target, Cause: err}
}

// isConnectionError reports whether err is a dial-level failure.
func isConnectionError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial"
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}
