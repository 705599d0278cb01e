package tokenstore

import (
	"context"
	"fmt"
	"os"
)

// EnvStore reads the refresh token from an environment variable. It is
// read-only: suitable when an external secret manager injects the token, but
// not for the device-code flow, which must persist rotated tokens.
type EnvStore struct {
	key string
}

var _ Store = (*EnvStore)(nil)

// NewEnvStore creates an EnvStore over the named environment variable.
// The variable must exist at construction time; an unset variable is a
// configuration error, while an empty one surfaces later as ErrNotFound.
func NewEnvStore(key string) (*EnvStore, error) {
	if key == "" {
		return nil, fmt.Errorf("environment variable name cannot be empty")
	}
	if _, ok := os.LookupEnv(key); !ok {
		return nil, fmt.Errorf("environment variable %s not set", key)
	}
	return &EnvStore{key: key}, nil
}

// Load returns the token from the environment variable.
func (e *EnvStore) Load(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return sanitize(os.Getenv(e.key))
}

// Save always fails; environment variables cannot be written back.
func (e *EnvStore) Save(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fmt.Errorf("environment variable storage is read-only")
}
