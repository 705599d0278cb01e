package tokenstore

import (
	"context"
	"errors"
	"strings"
	"unicode"
)

// ErrNotFound reports that no usable refresh token is persisted. Callers treat
// this as "never authenticated" and fall back to the interactive flow.
//
// Unparseable content (control characters, embedded whitespace) maps to
// ErrNotFound as well: a garbled credential file should trigger
// re-authentication, not a hard failure.
var ErrNotFound = errors.New("tokenstore: no refresh token stored")

// Store reads and writes the refresh token of the single configured identity.
//
// At most one token is persisted per store. Save overwrites unconditionally;
// concurrent writers from separate processes are out of scope (last writer wins).
type Store interface {
	// Load returns the persisted refresh token. Returns ErrNotFound if the
	// token is absent, empty, or unparseable.
	Load(ctx context.Context) (string, error)

	// Save persists the token, replacing any previous value. Returns an error
	// if the backend is read-only or the write fails.
	Save(ctx context.Context, token string) error
}

// sanitize normalizes raw stored content into a token value.
// Returns ErrNotFound for content that cannot be a credential.
func sanitize(raw string) (string, error) {
	token := strings.TrimSpace(raw)
	if token == "" {
		return "", ErrNotFound
	}
	for _, r := range token {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return "", ErrNotFound
		}
	}
	return token, nil
}
