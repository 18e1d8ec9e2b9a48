// Package passkey runs the WebAuthn registration and authentication ceremonies.
package passkey

import "errors"

var (
	// ErrUnauthorized is returned when a ceremony that needs a signed-in user has none.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound is returned for an unknown email or an authenticator the user does not own.
	ErrNotFound = errors.New("not found")
	// ErrSessionExpired is returned by registration Complete when no live challenge is pending.
	ErrSessionExpired = errors.New("registration session expired")
	// ErrVerificationFailed is returned when the attestation does not verify.
	ErrVerificationFailed = errors.New("verification failed")
	// ErrConflict is returned when the credential is already registered.
	ErrConflict = errors.New("credential already registered")
	// ErrPasskeyNotFound is returned when the assertion names an unknown credential.
	ErrPasskeyNotFound = errors.New("passkey not found")
	// ErrInvalidChallenge is returned when the presented challenge matches no pending one.
	ErrInvalidChallenge = errors.New("invalid challenge")
	// ErrChallengeExpired is returned when the pending challenge is past its expiry.
	ErrChallengeExpired = errors.New("challenge expired")
	// ErrAuthenticationFailed is returned when the assertion does not verify or its counter regressed.
	ErrAuthenticationFailed = errors.New("authentication failed")
)
