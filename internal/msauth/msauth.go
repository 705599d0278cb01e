package msauth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

const (
	// Authority is the Microsoft identity platform host issuing tokens.
	Authority = "https://login.microsoftonline.com"

	// DefaultTenant accepts both personal and work/school accounts.
	DefaultTenant = "common"
)

// DefaultScopes cover the notebooks-listing call. offline_access makes the
// authority issue a refresh token alongside the access token.
var DefaultScopes = []string{"Notes.Read", "offline_access"}

// Endpoint returns the v2.0 OAuth2 endpoints for a tenant under the given
// authority host.
func Endpoint(authority, tenant string) oauth2.Endpoint {
	base := authority + "/" + tenant + "/oauth2/v2.0"
	return oauth2.Endpoint{
		AuthURL:       base + "/authorize",
		TokenURL:      base + "/token",
		DeviceAuthURL: base + "/devicecode",
		AuthStyle:     oauth2.AuthStyleInParams,
	}
}

// Option configures a Client.
type Option func(*Client)

// WithTransport sets a custom base transport for authority requests
// (e.g. for proxies or custom timeouts). Defaults to http.DefaultTransport.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.httpClient.Transport = rt
	}
}

// WithEndpoint overrides the authority endpoints. Used against local test
// authorities; production callers should rely on the tenant-derived default.
func WithEndpoint(endpoint oauth2.Endpoint) Option {
	return func(c *Client) {
		c.cfg.Endpoint = endpoint
	}
}

// WithScopes overrides the requested scopes.
func WithScopes(scopes ...string) Option {
	return func(c *Client) {
		c.cfg.Scopes = scopes
	}
}

// Client talks to the Microsoft identity platform on behalf of a single fixed
// application registration. It performs no retries of its own beyond the
// RFC 8628 poll loop; transport failures surface to the caller.
type Client struct {
	cfg        *oauth2.Config
	httpClient *http.Client
}

// New creates a Client for the given application (client) ID and tenant.
func New(clientID, tenant string, opts ...Option) (*Client, error) {
	if clientID == "" {
		return nil, fmt.Errorf("client ID cannot be empty")
	}
	if tenant == "" {
		tenant = DefaultTenant
	}

	c := &Client{
		cfg: &oauth2.Config{
			ClientID: clientID,
			// Public client: no secret, the device-code grant needs none
			Scopes:   DefaultScopes,
			Endpoint: Endpoint(Authority, tenant),
		},
		httpClient: &http.Client{
			// Bounds every authority round trip, including refreshes that the
			// oauth2 package issues under context.Background
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// TokenSource returns a source that silently exchanges the persisted refresh
// token for access tokens, refreshing on expiry. The authority may rotate the
// refresh token during an exchange; callers observe rotation through the
// RefreshToken field of returned tokens.
func (c *Client) TokenSource(refreshToken string) oauth2.TokenSource {
	initial := &oauth2.Token{
		RefreshToken: refreshToken,
		// AccessToken populated by the first Token() call
	}

	// The oauth2 package injects custom HTTP clients via context. TokenSource
	// has no context parameter, so the context is bound at construction per
	// oauth2's documented API.
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, c.httpClient)
	return c.cfg.TokenSource(ctx, initial)
}
