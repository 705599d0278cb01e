package msauth

import (
	"errors"

	"golang.org/x/oauth2"
)

// Terminal device-flow failures. Neither is retried automatically; the
// operator must restart the flow.
var (
	// ErrCodeExpired reports that the device code's lifetime elapsed before
	// the operator completed sign-in.
	ErrCodeExpired = errors.New("msauth: device code expired before sign-in completed")

	// ErrAccessDenied reports that the operator declined the authorization.
	ErrAccessDenied = errors.New("msauth: operator declined authorization")
)

// authenticationErrorCodes are the authority responses meaning the presented
// credential (refresh token) is invalid, revoked, or insufficient. They are
// equivalent to holding no token at all.
var authenticationErrorCodes = map[string]bool{
	"invalid_grant":         true,
	"invalid_client":        true,
	"unauthorized_client":   true,
	"interaction_required":  true,
	"consent_required":      true,
	"bad_verification_code": true,
}

// IsAuthenticationError reports whether err is an authority rejection of the
// presented credential, as opposed to a transport failure or a terminal
// device-flow failure. Callers fall back to the interactive flow on true.
func IsAuthenticationError(err error) bool {
	var retrieveErr *oauth2.RetrieveError
	if !errors.As(err, &retrieveErr) {
		return false
	}
	if authenticationErrorCodes[retrieveErr.ErrorCode] {
		return true
	}
	// Some authorities omit the error code on 400/401 credential rejections
	if retrieveErr.ErrorCode == "" && retrieveErr.Response != nil {
		status := retrieveErr.Response.StatusCode
		return status == 400 || status == 401
	}
	return false
}

// authorityErrorCode extracts the OAuth error code from an exchange failure,
// or "" when err is not an authority response (e.g. a transport failure).
func authorityErrorCode(err error) string {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return retrieveErr.ErrorCode
	}
	return ""
}
