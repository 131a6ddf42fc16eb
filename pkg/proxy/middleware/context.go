package middleware

// contextKey is a private type for context values set by middleware.
type contextKey string

const (
	// RequestIDKey carries the request ID.
	RequestIDKey contextKey = "request_id"

	// StartTimeKey carries the request arrival time.
	StartTimeKey contextKey = "start_time"
)
