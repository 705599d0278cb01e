// Package tokenstore persists the single long-lived refresh token between runs.
//
// Three backends with different deployment tradeoffs:
//   - File: local filesystem or a container-mounted volume, atomic writes,
//     owner-only permissions
//   - Env: read-only environment variable access (token injected by an external
//     secret manager, e.g. a Docker secret)
//   - Keyring: OS-native credential storage (macOS Keychain, Windows Credential
//     Manager, Linux Secret Service)
//
// The device-code flow requires a writable backend (file or keyring) so that
// rotated refresh tokens survive the process; env storage only supports the
// silent path.
package tokenstore
