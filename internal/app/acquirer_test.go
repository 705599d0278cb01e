package app

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/hllvc/notegate/internal/tokenstore"
)

// memStore is an in-memory token store for tests.
type memStore struct {
	token   string
	loadErr error
	saveErr error
	saves   int
}

func (m *memStore) Load(ctx context.Context) (string, error) {
	if m.loadErr != nil {
		return "", m.loadErr
	}
	if m.token == "" {
		return "", tokenstore.ErrNotFound
	}
	return m.token, nil
}

func (m *memStore) Save(ctx context.Context, token string) error {
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.token = token
	return nil
}

// silentResult builds a SilentSourceFactory returning a fixed token or error.
func silentResult(token *oauth2.Token, err error) SilentSourceFactory {
	return func(refreshToken string) oauth2.TokenSource {
		return sourceFunc(func() (*oauth2.Token, error) { return token, err })
	}
}

type sourceFunc func() (*oauth2.Token, error)

func (f sourceFunc) Token() (*oauth2.Token, error) { return f() }

// fakeAuthorizer counts interactive sign-ins.
type fakeAuthorizer struct {
	token *oauth2.Token
	err   error
	calls int
}

func (f *fakeAuthorizer) Authorize(ctx context.Context) (*oauth2.Token, error) {
	f.calls++
	return f.token, f.err
}

func accessToken(access, refresh string) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour),
	}
}

func invalidGrant() error {
	return fmt.Errorf("getting token: %w", &oauth2.RetrieveError{ErrorCode: "invalid_grant"})
}

func TestAccessTokenSilentPath(t *testing.T) {
	store := &memStore{token: "RT1"}
	interactive := &fakeAuthorizer{}
	acquirer, err := NewAcquirer(store, silentResult(accessToken("AT1", "RT1"), nil), interactive)
	if err != nil {
		t.Fatalf("NewAcquirer: %v", err)
	}

	token, err := acquirer.AccessToken(context.Background())
	if err != nil {
		t.Fatalf("AccessToken: %v", err)
	}
	if token.AccessToken != "AT1" {
		t.Errorf("AccessToken = %q, want AT1", token.AccessToken)
	}
	if interactive.calls != 0 {
		t.Errorf("interactive flow ran %d times on silent path, want 0", interactive.calls)
	}
	if store.token != "RT1" {
		t.Errorf("stored token = %q, want unchanged RT1", store.token)
	}
	if store.saves != 0 {
		t.Errorf("store written %d times without rotation, want 0", store.saves)
	}
}

func TestAccessTokenPersistsRotation(t *testing.T) {
	store := &memStore{token: "RT1"}
	acquirer, err := NewAcquirer(store, silentResult(accessToken("AT1", "RT2"), nil), &fakeAuthorizer{})
	if err != nil {
		t.Fatalf("NewAcquirer: %v", err)
	}

	if _, err := acquirer.AccessToken(context.Background()); err != nil {
		t.Fatalf("AccessToken: %v", err)
	}
	if store.token != "RT2" {
		t.Errorf("stored token = %q, want rotated RT2", store.token)
	}
}

func TestAccessTokenEmptyStoreRunsInteractiveOnce(t *testing.T) {
	store := &memStore{}
	interactive := &fakeAuthorizer{token: accessToken("AT1", "RT1")}
	acquirer, err := NewAcquirer(store, silentResult(nil, errors.New("must not be called")), interactive)
	if err != nil {
		t.Fatalf("NewAcquirer: %v", err)
	}

	token, err := acquirer.AccessToken(context.Background())
	if err != nil {
		t.Fatalf("AccessToken: %v", err)
	}
	if token.AccessToken != "AT1" {
		t.Errorf("AccessToken = %q, want AT1", token.AccessToken)
	}
	if interactive.calls != 1 {
		t.Errorf("interactive flow ran %d times, want exactly 1", interactive.calls)
	}
	if store.token != "RT1" {
		t.Errorf("stored token = %q, want granted RT1", store.token)
	}
	if store.saves != 1 {
		t.Errorf("store written %d times, want exactly 1", store.saves)
	}
}

func TestAccessTokenRejectedTokenFallsBack(t *testing.T) {
	store := &memStore{token: "stale"}
	interactive := &fakeAuthorizer{token: accessToken("AT2", "RT2")}
	acquirer, err := NewAcquirer(store, silentResult(nil, invalidGrant()), interactive)
	if err != nil {
		t.Fatalf("NewAcquirer: %v", err)
	}

	token, err := acquirer.AccessToken(context.Background())
	if err != nil {
		t.Fatalf("AccessToken: %v", err)
	}
	if token.AccessToken != "AT2" {
		t.Errorf("AccessToken = %q, want interactive AT2", token.AccessToken)
	}
	if interactive.calls != 1 {
		t.Errorf("interactive flow ran %d times, want 1", interactive.calls)
	}
	if store.token != "RT2" {
		t.Errorf("stored token = %q, want re-granted RT2", store.token)
	}
}

func TestAccessTokenTransportFailureDoesNotFallBack(t *testing.T) {
	store := &memStore{token: "RT1"}
	interactive := &fakeAuthorizer{token: accessToken("AT1", "RT1")}
	acquirer, err := NewAcquirer(store, silentResult(nil, errors.New("dial tcp: connection refused")), interactive)
	if err != nil {
		t.Fatalf("NewAcquirer: %v", err)
	}

	if _, err := acquirer.AccessToken(context.Background()); err == nil {
		t.Fatal("AccessToken succeeded despite transport failure")
	}
	if interactive.calls != 0 {
		t.Errorf("interactive flow ran on transport failure; retryable errors must surface instead")
	}
}

func TestAccessTokenStoreFailureIsFatal(t *testing.T) {
	store := &memStore{loadErr: errors.New("permission denied")}
	interactive := &fakeAuthorizer{}
	acquirer, err := NewAcquirer(store, silentResult(accessToken("AT1", ""), nil), interactive)
	if err != nil {
		t.Fatalf("NewAcquirer: %v", err)
	}

	if _, err := acquirer.AccessToken(context.Background()); err == nil {
		t.Fatal("AccessToken succeeded despite unreadable store")
	}
	if interactive.calls != 0 {
		t.Error("interactive flow ran despite unreadable store; only ErrNotFound may fall through")
	}
}

func TestAccessTokenInteractiveFailurePropagates(t *testing.T) {
	store := &memStore{}
	interactive := &fakeAuthorizer{err: errors.New("device code expired")}
	acquirer, err := NewAcquirer(store, silentResult(nil, nil), interactive)
	if err != nil {
		t.Fatalf("NewAcquirer: %v", err)
	}

	if _, err := acquirer.AccessToken(context.Background()); err == nil {
		t.Fatal("AccessToken succeeded despite failed sign-in")
	}
	if store.saves != 0 {
		t.Errorf("store written %d times after failed sign-in, want 0", store.saves)
	}
}

func TestAccessTokenGrantWithoutRefreshToken(t *testing.T) {
	store := &memStore{}
	interactive := &fakeAuthorizer{token: accessToken("AT1", "")}
	acquirer, err := NewAcquirer(store, silentResult(nil, nil), interactive)
	if err != nil {
		t.Fatalf("NewAcquirer: %v", err)
	}

	token, err := acquirer.AccessToken(context.Background())
	if err != nil {
		t.Fatalf("AccessToken: %v", err)
	}
	if token.AccessToken != "AT1" {
		t.Errorf("AccessToken = %q, want AT1", token.AccessToken)
	}
	if store.saves != 0 {
		t.Errorf("store written %d times with nothing to persist, want 0", store.saves)
	}
}

func TestAccessTokenUnwritableStoreFailsInteractivePath(t *testing.T) {
	store := &memStore{saveErr: errors.New("read-only storage")}
	interactive := &fakeAuthorizer{token: accessToken("AT1", "RT1")}
	acquirer, err := NewAcquirer(store, silentResult(nil, nil), interactive)
	if err != nil {
		t.Fatalf("NewAcquirer: %v", err)
	}

	if _, err := acquirer.AccessToken(context.Background()); err == nil {
		t.Fatal("AccessToken succeeded despite losing the granted refresh token")
	}
}

func TestAccessTokenRotationWriteFailureKeepsToken(t *testing.T) {
	store := &memStore{token: "RT1", saveErr: errors.New("disk full")}
	acquirer, err := NewAcquirer(store, silentResult(accessToken("AT1", "RT2"), nil), &fakeAuthorizer{})
	if err != nil {
		t.Fatalf("NewAcquirer: %v", err)
	}

	// Rotation write-back failure is logged, not fatal: the access token in
	// hand is still valid.
	token, err := acquirer.AccessToken(context.Background())
	if err != nil {
		t.Fatalf("AccessToken: %v", err)
	}
	if token.AccessToken != "AT1" {
		t.Errorf("AccessToken = %q, want AT1", token.AccessToken)
	}
}

func TestSourceWithReusesAcquiredToken(t *testing.T) {
	store := &memStore{}
	interactive := &fakeAuthorizer{token: accessToken("AT1", "")}
	acquirer, err := NewAcquirer(store, silentResult(nil, nil), interactive)
	if err != nil {
		t.Fatalf("NewAcquirer: %v", err)
	}

	// A grant without a refresh token persists nothing, so a second
	// acquisition in the same run would prompt the operator again. The seeded
	// source must hand out the token already in hand instead.
	ctx := context.Background()
	token, err := acquirer.AccessToken(ctx)
	if err != nil {
		t.Fatalf("AccessToken: %v", err)
	}

	got, err := acquirer.SourceWith(ctx, token).Token()
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if got.AccessToken != "AT1" {
		t.Errorf("AccessToken = %q, want AT1", got.AccessToken)
	}
	if interactive.calls != 1 {
		t.Errorf("interactive flow ran %d times in one run, want exactly 1", interactive.calls)
	}
}

func TestSourceWithSkipsRedundantSilentExchange(t *testing.T) {
	store := &memStore{token: "RT1"}
	var exchanges int
	silent := func(refreshToken string) oauth2.TokenSource {
		return sourceFunc(func() (*oauth2.Token, error) {
			exchanges++
			return accessToken("AT1", "RT1"), nil
		})
	}
	acquirer, err := NewAcquirer(store, silent, &fakeAuthorizer{})
	if err != nil {
		t.Fatalf("NewAcquirer: %v", err)
	}

	ctx := context.Background()
	token, err := acquirer.AccessToken(ctx)
	if err != nil {
		t.Fatalf("AccessToken: %v", err)
	}
	if _, err := acquirer.SourceWith(ctx, token).Token(); err != nil {
		t.Fatalf("Token: %v", err)
	}
	if exchanges != 1 {
		t.Errorf("silent exchange ran %d times for a fresh token, want 1", exchanges)
	}
}

func TestSourceCachesUnexpiredToken(t *testing.T) {
	store := &memStore{token: "RT1"}
	var exchanges int
	silent := func(refreshToken string) oauth2.TokenSource {
		return sourceFunc(func() (*oauth2.Token, error) {
			exchanges++
			return accessToken("AT1", "RT1"), nil
		})
	}
	acquirer, err := NewAcquirer(store, silent, &fakeAuthorizer{})
	if err != nil {
		t.Fatalf("NewAcquirer: %v", err)
	}

	source := acquirer.Source(context.Background())
	for range 3 {
		if _, err := source.Token(); err != nil {
			t.Fatalf("Token: %v", err)
		}
	}
	if exchanges != 1 {
		t.Errorf("silent exchange ran %d times for an unexpired token, want 1", exchanges)
	}
}
