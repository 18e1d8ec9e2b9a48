package signin

import (
	"errors"

	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/mfa"
	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/passkey"
	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/session"
)

// Failure taxonomy of the sign-in flow. Leaf package sentinels are re-exported so callers
// only need this package for errors.Is checks.
var (
	ErrNotFound             = errors.New("user not found")
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrInvalidContinuation  = errors.New("invalid or expired sign-in continuation")
	ErrInvalidCode          = mfa.ErrInvalidCode
	ErrExpiredCode          = mfa.ErrExpiredCode
	ErrInvalidChallenge     = passkey.ErrInvalidChallenge
	ErrChallengeExpired     = passkey.ErrChallengeExpired
	ErrSessionExpired       = passkey.ErrSessionExpired
	ErrVerificationFailed   = passkey.ErrVerificationFailed
	ErrAuthenticationFailed = passkey.ErrAuthenticationFailed
	ErrPasskeyNotFound      = passkey.ErrPasskeyNotFound
	ErrUnauthorized         = passkey.ErrUnauthorized
	ErrConflict             = passkey.ErrConflict
	ErrInvalidRefreshToken  = session.ErrInvalidRefreshToken
	ErrRefreshTokenReuse    = session.ErrRefreshTokenReuse
)

// MessageInternal is shown for every infrastructure failure.
const MessageInternal = "Something went wrong"

var messages = []struct {
	err error
	msg string
}{
	{ErrInvalidCredentials, "Invalid email or password"},
	{ErrInvalidContinuation, "Session expired"},
	{ErrNotFound, "User not found"},
	{ErrInvalidCode, "Invalid code"},
	{ErrExpiredCode, "Code expired"},
	{ErrInvalidChallenge, "Invalid challenge"},
	{ErrChallengeExpired, "Challenge expired"},
	{ErrSessionExpired, "Session expired"},
	{ErrVerificationFailed, "Verification failed"},
	{ErrAuthenticationFailed, "Authentication failed"},
	{ErrPasskeyNotFound, "Passkey not found"},
	{ErrUnauthorized, "Unauthorized"},
	{ErrConflict, "Already registered"},
	{ErrInvalidRefreshToken, "Session expired"},
	{ErrRefreshTokenReuse, "Session expired"},
}

// Message returns the user-visible message for err. Errors outside the taxonomy map to
// MessageInternal.
func Message(err error) string {
	for _, m := range messages {
		if errors.Is(err, m.err) {
			return m.msg
		}
	}
	return MessageInternal
}

// IsTaxonomy reports whether err is an expected sign-in failure rather than an infrastructure fault.
func IsTaxonomy(err error) bool {
	for _, m := range messages {
		if errors.Is(err, m.err) {
			return true
		}
	}
	return false
}
