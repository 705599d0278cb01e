package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/hllvc/notegate/internal/graph"
	"github.com/hllvc/notegate/internal/msauth"
	"github.com/hllvc/notegate/internal/tokenstore"
)

// LogFormat represents the logging output format.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// TokenStorageType represents the backends supported for the refresh token.
type TokenStorageType string

const (
	TokenStorageTypeFile    TokenStorageType = "file"
	TokenStorageTypeEnv     TokenStorageType = "env"
	TokenStorageTypeKeyring TokenStorageType = "keyring"
)

// Default configuration values
const (
	DefaultConfigLogFormat   = LogFormatText
	DefaultConfigAuthStorage = TokenStorageTypeFile
	DefaultConfigTenant      = msauth.DefaultTenant
	DefaultConfigGraphURL    = graph.DefaultBaseURL
)

// Token file locations. The container path matches the conventional Docker
// secrets mount; its presence decides which default applies.
const (
	containerTokenPath = "/run/secrets/ms_refresh_token"
	localTokenDir      = ".onenote_rag"
	localTokenFile     = "refresh_token"
)

// AuthConfig describes where the refresh token is persisted.
type AuthConfig struct {
	Storage TokenStorageType `json:"storage" validate:"required,oneof=file env keyring"`

	// Storage-specific settings (mutually exclusive based on Storage type)
	File        string `json:"file,omitempty"`         // For file storage: path to token file
	EnvKey      string `json:"env_key,omitempty"`      // For env storage: environment variable name
	KeyringUser string `json:"keyring_user,omitempty"` // For keyring storage: user identifier
}

// NewStore creates a token store from the authentication configuration.
func (a *AuthConfig) NewStore() (tokenstore.Store, error) {
	switch a.Storage {
	case TokenStorageTypeFile:
		return tokenstore.NewFileStore(a.File)
	case TokenStorageTypeEnv:
		return tokenstore.NewEnvStore(a.EnvKey)
	case TokenStorageTypeKeyring:
		return tokenstore.NewKeyringStore(a.KeyringUser)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", a.Storage)
	}
}

// AuthorityConfig identifies the application registration and tenant the
// process authenticates against.
type AuthorityConfig struct {
	ClientID string   `json:"client_id" validate:"required"`
	Tenant   string   `json:"tenant"`
	Scopes   []string `json:"scopes,omitempty"`
}

// GraphConfig holds target API configuration.
type GraphConfig struct {
	BaseURL string `json:"base_url" validate:"required,url"`
}

// Config holds the application's configuration.
type Config struct {
	// LogLevel for logging output (defaults to Info if unset).
	LogLevel  slog.Level      `json:"log_level"`
	LogFormat LogFormat       `json:"log_format" validate:"oneof=text json"`
	Auth      AuthConfig      `json:"auth"`
	Authority AuthorityConfig `json:"authority"`
	Graph     GraphConfig     `json:"graph"`
}

// Default creates a new Config with default values applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset config fields with sensible defaults.
func (c *Config) ApplyDefaults() error {
	if c.LogFormat == "" {
		c.LogFormat = DefaultConfigLogFormat
	}
	if c.Auth.Storage == "" {
		c.Auth.Storage = DefaultConfigAuthStorage
	}
	if c.Authority.Tenant == "" {
		c.Authority.Tenant = DefaultConfigTenant
	}
	if len(c.Authority.Scopes) == 0 {
		c.Authority.Scopes = msauth.DefaultScopes
	}
	if c.Graph.BaseURL == "" {
		c.Graph.BaseURL = DefaultConfigGraphURL
	}

	// Dynamic defaults based on storage type
	switch c.Auth.Storage {
	case TokenStorageTypeFile:
		if c.Auth.File == "" {
			path, err := defaultTokenPath()
			if err != nil {
				return fmt.Errorf("auth.file required (auto-detect failed: %w)", err)
			}
			c.Auth.File = path
		}
	case TokenStorageTypeKeyring:
		if c.Auth.KeyringUser == "" {
			currentUser, err := user.Current()
			if err != nil {
				return fmt.Errorf("auth.keyring_user required (auto-detect failed: %w)", err)
			}
			c.Auth.KeyringUser = currentUser.Username
		}
	case TokenStorageTypeEnv:
		// env_key must be explicitly configured (no sensible default)
	}

	return nil
}

// defaultTokenPath resolves the token file location by deployment: the Docker
// secrets path when its mount directory exists, the home-relative path
// otherwise.
func defaultTokenPath() (string, error) {
	if info, err := os.Stat(filepath.Dir(containerTokenPath)); err == nil && info.IsDir() {
		return containerTokenPath, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, localTokenDir, localTokenFile), nil
}

// Validate validates the configuration using struct tags and enum values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	// Azure application IDs are GUIDs; catching a typo here beats an opaque
	// AADSTS error from the authority later
	if _, err := uuid.Parse(c.Authority.ClientID); err != nil {
		return fmt.Errorf("authority.client_id is not a valid application (client) ID: %w", err)
	}

	switch c.Auth.Storage {
	case TokenStorageTypeFile:
		if c.Auth.File == "" {
			return errors.New("auth.file required for file storage")
		}
	case TokenStorageTypeEnv:
		if c.Auth.EnvKey == "" {
			return errors.New("auth.env_key required for env storage")
		}
	case TokenStorageTypeKeyring:
		if c.Auth.KeyringUser == "" {
			return errors.New("auth.keyring_user required for keyring storage")
		}
	}

	return nil
}
