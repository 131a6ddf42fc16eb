package auth

import "fmt"

// Reason classifies why authentication failed.
type Reason string

const (
	// ReasonMalformed means the credential was missing or not shaped like
	// "Bearer <token>".
	ReasonMalformed Reason = "malformed"

	// ReasonInvalid means the credential was well-formed but did not match
	// any configured secret.
	ReasonInvalid Reason = "invalid"
)

// AuthError is a per-request authentication failure. It always maps to a
// 401 response at the router boundary and never crashes the process.
type AuthError struct {
	Reason  Reason
	Message string
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed (%s): %s", e.Reason, e.Message)
}

// ProxyStatus returns the Proxy-Status response header value for this
// failure, used by callers to distinguish a bad key from a badly shaped one.
func (e *AuthError) ProxyStatus() string {
	switch e.Reason {
	case ReasonMalformed:
		return "malformed-credential"
	default:
		return "invalid-key"
	}
}
