// Package graph is a minimal Microsoft Graph client covering the OneNote
// notebooks-listing call used to validate a freshly acquired token.
package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
)

// DefaultBaseURL is the Microsoft Graph v1.0 endpoint.
const DefaultBaseURL = "https://graph.microsoft.com/v1.0"

// Notebook is a OneNote notebook as returned by Graph.
type Notebook struct {
	ID               string    `json:"id"`
	DisplayName      string    `json:"displayName"`
	IsDefault        bool      `json:"isDefault"`
	CreatedDateTime  time.Time `json:"createdDateTime"`
	LastModifiedTime time.Time `json:"lastModifiedDateTime"`
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the Graph endpoint, e.g. for sovereign clouds or tests.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithTransport sets the base transport under the bearer-token layer.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.base = rt
	}
}

// Client calls Microsoft Graph with bearer tokens drawn from an
// oauth2.TokenSource. The source is consulted per request, so long-running
// callers transparently pick up refreshed access tokens.
type Client struct {
	baseURL    string
	base       http.RoundTripper
	httpClient *http.Client
}

// New creates a Graph client authenticated by ts.
func New(ts oauth2.TokenSource, opts ...Option) (*Client, error) {
	if ts == nil {
		return nil, fmt.Errorf("missing token source")
	}

	c := &Client{baseURL: DefaultBaseURL}
	for _, opt := range opts {
		opt(c)
	}

	if _, err := url.Parse(c.baseURL); err != nil {
		return nil, fmt.Errorf("invalid Graph base URL: %w", err)
	}

	c.httpClient = &http.Client{
		Timeout:   30 * time.Second,
		Transport: &oauth2.Transport{Source: ts, Base: c.base},
	}
	return c, nil
}

// ListNotebooks returns all of the signed-in user's OneNote notebooks,
// following @odata.nextLink pagination until exhausted.
func (c *Client) ListNotebooks(ctx context.Context) ([]Notebook, error) {
	next := c.baseURL + "/me/onenote/notebooks"

	var notebooks []Notebook
	for next != "" {
		page, nextLink, err := c.listNotebooksPage(ctx, next)
		if err != nil {
			return nil, err
		}
		notebooks = append(notebooks, page...)
		next = nextLink
	}
	return notebooks, nil
}

func (c *Client) listNotebooksPage(ctx context.Context, pageURL string) ([]Notebook, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("building notebooks request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("notebooks request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, "", fmt.Errorf("reading notebooks response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, "", newStatusError(resp.StatusCode, body)
	}

	var page struct {
		Value    []Notebook `json:"value"`
		NextLink string     `json:"@odata.nextLink"`
	}
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, "", fmt.Errorf("parsing notebooks response: %w", err)
	}
	return page.Value, page.NextLink, nil
}
