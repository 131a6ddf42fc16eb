// Package middleware provides the HTTP middleware chain for the proxy:
// panic recovery, request ID assignment, and structured request logging.
package middleware
