// Package msauth acquires OAuth2 tokens from the Microsoft identity platform
// for a public client (no client secret).
//
// Two acquisition paths are provided:
//   - Silent: a persisted refresh token is exchanged for a fresh access token
//     through the standard golang.org/x/oauth2 refresh machinery
//   - Interactive: the device authorization grant (RFC 8628), where the
//     operator signs in on a second device with a displayed user code while
//     this process polls the token endpoint
//
// # Token Sources
//
// Use TokenSource for the silent path:
//
//	c, _ := msauth.New(clientID, msauth.DefaultTenant)
//	ts := c.TokenSource(refreshToken)
//	// ts implements oauth2.TokenSource and can be used with oauth2.Transport
//
// # Device Flow
//
//	auth, _ := c.StartDeviceFlow(ctx)
//	// display auth.VerificationURI and auth.UserCode to the operator
//	tok, err := c.WaitForToken(ctx, auth)
//
// WaitForToken blocks until the operator completes sign-in, the code expires
// (ErrCodeExpired), or the operator declines (ErrAccessDenied).
package msauth
