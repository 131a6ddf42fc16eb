package credentials

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Entry is a single identity/secret pair.
type Entry struct {
	Identity string
	Secret   string
}

// Store holds the identity-to-secret mapping, keyed by secret value for
// constant-time lookup. It is populated once at construction and never
// mutated afterwards, making it safe for unsynchronized concurrent reads.
type Store struct {
	bySecret map[string]string
}

// ParseError describes a malformed credential entry.
type ParseError struct {
	Line    int
	Message string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("credential parse error at line %d: %s", e.Line, e.Message)
}

// NewStore creates a Store from a slice of entries. Secrets must be unique
// across entries; a duplicate secret is an error because the store is keyed
// by secret value.
func NewStore(entries []Entry) (*Store, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("no credential entries configured")
	}

	bySecret := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.Identity == "" {
			return nil, fmt.Errorf("credential entry with empty identity")
		}
		if e.Secret == "" {
			return nil, fmt.Errorf("credential entry for %q with empty secret", e.Identity)
		}
		if existing, ok := bySecret[e.Secret]; ok {
			return nil, fmt.Errorf("duplicate secret shared by %q and %q", existing, e.Identity)
		}
		bySecret[e.Secret] = e.Identity
	}

	return &Store{bySecret: bySecret}, nil
}

// Load reads a credential file of identity=secret lines and returns a Store.
// Blank lines and lines starting with '#' are skipped. A line without '='
// or with an empty identity or secret is a load error; credentials are a
// startup-time concern and a partially parsed store is worse than a refusal
// to start.
func Load(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open credential file %q: %w", path, err)
	}
	defer f.Close()

	entries, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credential file %q: %w", path, err)
	}

	return NewStore(entries)
}

// Parse reads identity=secret lines from r. Values are split on the first
// '=' only, so secrets may themselves contain '='. Matching is exact and
// case-sensitive; no whitespace is trimmed from identity or secret.
func Parse(r io.Reader) ([]Entry, error) {
	var entries []Entry

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		identity, secret, found := strings.Cut(text, "=")
		if !found {
			return nil, &ParseError{Line: line, Message: "missing '=' separator"}
		}
		if identity == "" {
			return nil, &ParseError{Line: line, Message: "empty identity"}
		}
		if secret == "" {
			return nil, &ParseError{Line: line, Message: fmt.Sprintf("empty secret for %q", identity)}
		}

		entries = append(entries, Entry{Identity: identity, Secret: secret})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}

	return entries, nil
}

// Lookup returns the identity associated with the given secret. The second
// return value reports whether the secret is known. Lookup is read-only and
// safe for concurrent use.
func (s *Store) Lookup(secret string) (string, bool) {
	identity, ok := s.bySecret[secret]
	return identity, ok
}

// Len returns the number of configured credentials.
func (s *Store) Len() int {
	return len(s.bySecret)
}

// Identities returns the configured identity names, in no particular order.
func (s *Store) Identities() []string {
	identities := make([]string, 0, len(s.bySecret))
	for _, identity := range s.bySecret {
		identities = append(identities, identity)
	}
	return identities
}
