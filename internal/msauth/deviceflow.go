package msauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// deviceCodeGrantType is the grant_type for RFC 8628 token requests.
const deviceCodeGrantType = "urn:ietf:params:oauth:grant-type:device_code"

const (
	// defaultPollInterval applies when the authority omits the interval,
	// per RFC 8628 section 3.2.
	defaultPollInterval = 5 * time.Second

	// maxPollInterval caps slow_down backoff.
	maxPollInterval = 60 * time.Second
)

// StartDeviceFlow requests a device code and user code from the authority.
// The returned response carries the verification URI and user code to display
// to the operator, the polling interval, and the code's expiry instant.
func (c *Client) StartDeviceFlow(ctx context.Context) (*oauth2.DeviceAuthResponse, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	auth, err := c.cfg.DeviceAuth(ctx)
	if err != nil {
		return nil, fmt.Errorf("requesting device code: %w", err)
	}
	if auth.UserCode == "" || auth.VerificationURI == "" {
		return nil, fmt.Errorf("authority returned incomplete device authorization response")
	}
	return auth, nil
}

// WaitForToken polls the token endpoint until the operator completes sign-in,
// the device code expires, or the authority reports a terminal error. Polling
// honors the authority-specified interval and backs off multiplicatively on
// slow_down responses.
//
// Terminal failures: ErrCodeExpired when the code's lifetime elapses and
// ErrAccessDenied when the operator declines. Transport failures abort the
// wait and surface to the caller.
func (c *Client) WaitForToken(ctx context.Context, auth *oauth2.DeviceAuthResponse) (*oauth2.Token, error) {
	interval := time.Duration(auth.Interval) * time.Second
	if interval <= 0 {
		interval = defaultPollInterval
	}

	if !auth.Expiry.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadlineCause(ctx, auth.Expiry, ErrCodeExpired)
		defer cancel()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if cause := context.Cause(ctx); errors.Is(cause, ErrCodeExpired) {
				return nil, ErrCodeExpired
			}
			return nil, ctx.Err()

		case <-ticker.C:
			token, err := c.exchangeDeviceCode(ctx, auth.DeviceCode)
			if err == nil {
				return token, nil
			}
			// The deadline can fire while an exchange is in flight; the
			// aborted request must still report expiry, not a transport error
			if errors.Is(context.Cause(ctx), ErrCodeExpired) {
				return nil, ErrCodeExpired
			}

			switch authorityErrorCode(err) {
			case "authorization_pending":
				continue

			case "slow_down":
				interval = backoffInterval(interval)
				ticker.Reset(interval)
				continue

			case "expired_token":
				return nil, ErrCodeExpired

			case "access_denied", "authorization_declined":
				// authorization_declined is the Microsoft spelling
				return nil, ErrAccessDenied

			default:
				return nil, fmt.Errorf("device code exchange failed: %w", err)
			}
		}
	}
}

// backoffInterval widens the polling interval after a slow_down response.
// RFC 8628 mandates at least +5s; the multiplicative step keeps a misbehaving
// loop from hammering the authority. Capped at maxPollInterval.
func backoffInterval(current time.Duration) time.Duration {
	return min(current*3/2+5*time.Second, maxPollInterval)
}

// exchangeDeviceCode attempts a single device-code token exchange. Pending and
// slow_down states come back as *oauth2.RetrieveError for the poll loop to
// classify.
func (c *Client) exchangeDeviceCode(ctx context.Context, deviceCode string) (*oauth2.Token, error) {
	form := url.Values{}
	form.Set("grant_type", deviceCodeGrantType)
	form.Set("client_id", c.cfg.ClientID)
	form.Set("device_code", deviceCode)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("building token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		retrieveErr := &oauth2.RetrieveError{Response: resp, Body: body}
		var errResp struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		if jsonErr := json.Unmarshal(body, &errResp); jsonErr == nil {
			retrieveErr.ErrorCode = errResp.Error
			retrieveErr.ErrorDescription = errResp.ErrorDescription
		}
		return nil, retrieveErr
	}

	var tokenResp struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		TokenType    string `json:"token_type"`
		ExpiresIn    int64  `json:"expires_in"`
		Scope        string `json:"scope"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("parsing token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("authority returned empty access token")
	}
	if tokenResp.ExpiresIn <= 0 {
		return nil, fmt.Errorf("authority returned non-positive expires_in: %d", tokenResp.ExpiresIn)
	}

	return &oauth2.Token{
		AccessToken:  tokenResp.AccessToken,
		RefreshToken: tokenResp.RefreshToken,
		TokenType:    tokenResp.TokenType,
		Expiry:       time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second),
	}, nil
}
