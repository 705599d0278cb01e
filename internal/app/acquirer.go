package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/oauth2"

	"github.com/hllvc/notegate/internal/msauth"
	"github.com/hllvc/notegate/internal/tokenstore"
)

// SilentSourceFactory creates an oauth2.TokenSource that exchanges a stored
// refresh token for access tokens.
type SilentSourceFactory func(refreshToken string) oauth2.TokenSource

// Authorizer runs the interactive device-code flow and returns the granted
// token pair.
type Authorizer interface {
	Authorize(ctx context.Context) (*oauth2.Token, error)
}

// Acquirer supplies valid access tokens for the configured identity.
//
// Decision logic is the two-branch silent-vs-interactive split: a persisted
// refresh token is exchanged silently; an absent or rejected token falls back
// to the interactive device-code flow. Rotated and newly granted refresh
// tokens are persisted before the access token is handed to the caller.
// Access tokens themselves are never persisted.
type Acquirer struct {
	store       tokenstore.Store
	silent      SilentSourceFactory
	interactive Authorizer

	// Serializes acquisition so concurrent callers cannot race a rotation
	// write against a fallback sign-in.
	mu sync.Mutex
}

// NewAcquirer creates an Acquirer. No I/O is performed until AccessToken.
func NewAcquirer(store tokenstore.Store, silent SilentSourceFactory, interactive Authorizer) (*Acquirer, error) {
	if store == nil {
		return nil, fmt.Errorf("missing token store")
	}
	if silent == nil {
		return nil, fmt.Errorf("missing silent token source factory")
	}
	if interactive == nil {
		return nil, fmt.Errorf("missing interactive authorizer")
	}

	return &Acquirer{
		store:       store,
		silent:      silent,
		interactive: interactive,
	}, nil
}

// AccessToken returns a token valid for immediate API use.
//
// Failure classes: transport failures and terminal device-flow failures
// propagate unchanged; a store that cannot be read (other than "nothing
// stored") or written is a configuration error. Authentication failures never
// surface here; they trigger the interactive fallback instead.
func (a *Acquirer) AccessToken(ctx context.Context) (*oauth2.Token, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	stored, err := a.store.Load(ctx)
	if errors.Is(err, tokenstore.ErrNotFound) {
		slog.InfoContext(ctx, "no persisted refresh token, starting interactive sign-in")
		return a.authorizeInteractive(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("loading refresh token: %w", err)
	}

	token, err := a.silent(stored).Token()
	if err == nil {
		a.persistRotation(ctx, stored, token)
		return token, nil
	}
	if !msauth.IsAuthenticationError(err) {
		return nil, fmt.Errorf("silent token exchange: %w", err)
	}

	slog.WarnContext(ctx, "persisted refresh token rejected by authority, starting interactive sign-in", "error", err)
	return a.authorizeInteractive(ctx)
}

// Source adapts the Acquirer to oauth2.TokenSource for use with
// oauth2.Transport. The returned source caches the current token and
// re-acquires only on expiry. The context is bound at construction because
// TokenSource.Token carries none.
func (a *Acquirer) Source(ctx context.Context) oauth2.TokenSource {
	return a.SourceWith(ctx, nil)
}

// SourceWith is Source seeded with an already-acquired token. Callers that
// just ran AccessToken pass its result so the first request reuses it instead
// of triggering a second acquisition. That matters when the grant carried no
// refresh token: nothing was persisted, and a fresh acquisition would walk the
// operator through the device-code flow again in the same run.
func (a *Acquirer) SourceWith(ctx context.Context, token *oauth2.Token) oauth2.TokenSource {
	return oauth2.ReuseTokenSource(token, boundSource{acquirer: a, ctx: ctx})
}

type boundSource struct {
	acquirer *Acquirer
	ctx      context.Context
}

func (s boundSource) Token() (*oauth2.Token, error) {
	return s.acquirer.AccessToken(s.ctx)
}

// authorizeInteractive runs the device-code flow once and persists the granted
// refresh token. A store that cannot accept the new token is an error: losing
// the grant would force the operator through sign-in on every run.
func (a *Acquirer) authorizeInteractive(ctx context.Context) (*oauth2.Token, error) {
	token, err := a.interactive.Authorize(ctx)
	if err != nil {
		return nil, err
	}

	if token.RefreshToken == "" {
		// Authority declined to issue a refresh token (e.g. offline_access
		// not consented). The access token still works for this run.
		slog.WarnContext(ctx, "authority issued no refresh token, next run will prompt again")
		return token, nil
	}

	if err := a.store.Save(ctx, token.RefreshToken); err != nil {
		return nil, fmt.Errorf("persisting refresh token: %w", err)
	}
	return token, nil
}

// persistRotation writes back a rotated refresh token. Write failure is logged
// rather than returned: the access token in hand is valid, and the store keeps
// the previous refresh token for the next attempt.
func (a *Acquirer) persistRotation(ctx context.Context, previous string, token *oauth2.Token) {
	if token.RefreshToken == "" || token.RefreshToken == previous {
		return
	}
	if err := a.store.Save(ctx, token.RefreshToken); err != nil {
		slog.ErrorContext(ctx, "failed to persist rotated refresh token", "error", err)
	}
}
