package auth

import (
	"net/http"
	"strings"

	"mercator-hq/janus/pkg/credentials"
)

const bearerPrefix = "Bearer "

// Authenticator resolves the bearer credential on an incoming request to a
// configured identity. It holds only a read-only credential store, so a
// single Authenticator is safe for concurrent use without locking.
type Authenticator struct {
	store *credentials.Store
}

// NewAuthenticator creates an Authenticator backed by the given store.
func NewAuthenticator(store *credentials.Store) *Authenticator {
	return &Authenticator{store: store}
}

// Authenticate extracts the bearer token from the Authorization header and
// looks it up in the credential store. It returns the matched identity, or
// an *AuthError: ReasonMalformed when the header is missing, uses a scheme
// other than Bearer, or carries an empty token; ReasonInvalid when the token
// is well-formed but unknown.
//
// Authenticate is pure: it inspects the request and mutates nothing.
func (a *Authenticator) Authenticate(r *http.Request) (string, error) {
	token, err := a.ExtractToken(r)
	if err != nil {
		return "", err
	}

	identity, ok := a.store.Lookup(token)
	if !ok {
		return "", &AuthError{Reason: ReasonInvalid, Message: "unknown API key"}
	}

	return identity, nil
}

// ExtractToken returns the bearer token from the Authorization header
// without consulting the credential store. The scheme match is exact:
// "Bearer <token>" with a single space and a non-empty token.
func (a *Authenticator) ExtractToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", &AuthError{Reason: ReasonMalformed, Message: "missing Authorization header"}
	}

	if !strings.HasPrefix(header, bearerPrefix) {
		return "", &AuthError{Reason: ReasonMalformed, Message: "Authorization scheme is not Bearer"}
	}

	token := header[len(bearerPrefix):]
	if token == "" {
		return "", &AuthError{Reason: ReasonMalformed, Message: "empty bearer token"}
	}

	return token, nil
}
