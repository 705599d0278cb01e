// Package app wires configuration, token storage, the authority client, and
// the Graph client into the end-to-end sign-in flow.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/hllvc/notegate/internal/graph"
	"github.com/hllvc/notegate/internal/msauth"
)

// App orchestrates a single authenticate-and-validate run.
type App struct {
	cfg      *Config
	acquirer *Acquirer

	// Operator-facing output; prompts go to errOut so stdout stays pipeable.
	out    io.Writer
	errOut io.Writer
}

// Option configures an App.
type Option func(*App)

// WithOutput redirects operator-facing output, used by tests.
func WithOutput(out, errOut io.Writer) Option {
	return func(a *App) {
		a.out = out
		a.errOut = errOut
	}
}

// New creates a new App instance.
func New(cfg *Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	a := &App{
		cfg:    cfg,
		out:    os.Stdout,
		errOut: os.Stderr,
	}
	for _, opt := range opts {
		opt(a)
	}

	// An unusable store is a configuration error and fails startup, before
	// any network I/O
	store, err := cfg.Auth.NewStore()
	if err != nil {
		return nil, fmt.Errorf("failed to create token store: %w", err)
	}

	authority, err := msauth.New(cfg.Authority.ClientID, cfg.Authority.Tenant,
		msauth.WithScopes(cfg.Authority.Scopes...))
	if err != nil {
		return nil, fmt.Errorf("failed to create authority client: %w", err)
	}

	authorizer, err := NewDeviceAuthorizer(authority, a.errOut)
	if err != nil {
		return nil, fmt.Errorf("failed to create device authorizer: %w", err)
	}

	acquirer, err := NewAcquirer(store, authority.TokenSource, authorizer)
	if err != nil {
		return nil, fmt.Errorf("failed to create token acquirer: %w", err)
	}
	a.acquirer = acquirer

	return a, nil
}

// Run acquires an access token (silently when possible, interactively
// otherwise) and validates it by listing the user's OneNote notebooks.
// All failures propagate to the caller; the CLI reports them and exits
// non-zero.
func (a *App) Run(ctx context.Context) error {
	token, err := a.acquirer.AccessToken(ctx)
	if err != nil {
		return fmt.Errorf("acquiring access token: %w", err)
	}

	slog.InfoContext(ctx, "access token acquired", "expires", token.Expiry)
	fmt.Fprintf(a.out, "Access token obtained: %s (valid until %s)\n",
		previewToken(token.AccessToken), token.Expiry.Format("15:04:05"))

	client, err := graph.New(a.acquirer.SourceWith(ctx, token), graph.WithBaseURL(a.cfg.Graph.BaseURL))
	if err != nil {
		return fmt.Errorf("creating Graph client: %w", err)
	}

	notebooks, err := client.ListNotebooks(ctx)
	if err != nil {
		return fmt.Errorf("validating token against Graph: %w", err)
	}

	fmt.Fprintf(a.out, "Retrieved %d notebook(s):\n", len(notebooks))
	for _, nb := range notebooks {
		fmt.Fprintf(a.out, "  - %s (ID: %s)\n", nb.DisplayName, nb.ID)
	}

	return nil
}

// previewToken renders a credential for display without disclosing it.
func previewToken(token string) string {
	const edge = 8
	if len(token) <= edge*2 {
		return "[redacted]"
	}
	return token[:edge] + "..." + token[len(token)-edge:]
}
