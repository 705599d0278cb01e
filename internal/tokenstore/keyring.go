package tokenstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// keyringService namespaces notegate entries in the OS credential store.
const keyringService = "notegate-refresh-token"

// KeyringStore keeps the refresh token in OS-native credential storage
// (macOS Keychain, Windows Credential Manager, Linux Secret Service).
type KeyringStore struct {
	service string
	user    string
}

var _ Store = (*KeyringStore)(nil)

// NewKeyringStore creates a KeyringStore scoped to the given user identifier.
func NewKeyringStore(user string) (*KeyringStore, error) {
	if user == "" {
		return nil, fmt.Errorf("keyring user cannot be empty")
	}
	return &KeyringStore{service: keyringService, user: user}, nil
}

// Load returns the token from the system keyring. A missing entry maps to
// ErrNotFound so the caller falls through to the interactive flow.
func (k *KeyringStore) Load(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	token, err := keyring.Get(k.service, k.user)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("reading keyring entry for %s: %w", k.user, err)
	}
	return sanitize(token)
}

// Save persists the token to the system keyring, overwriting any existing entry.
func (k *KeyringStore) Save(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	token, err := sanitize(token)
	if err != nil {
		return fmt.Errorf("refusing to save unparseable token: %w", err)
	}
	return keyring.Set(k.service, k.user, token)
}
