package signin

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/mfa"
	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/passkey"
)

func TestMessage(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{ErrInvalidCredentials, "Invalid email or password"},
		{ErrNotFound, "User not found"},
		{mfa.ErrInvalidCode, "Invalid code"},
		{mfa.ErrExpiredCode, "Code expired"},
		{passkey.ErrInvalidChallenge, "Invalid challenge"},
		{passkey.ErrChallengeExpired, "Challenge expired"},
		{passkey.ErrSessionExpired, "Session expired"},
		{fmt.Errorf("%w: bad signature", passkey.ErrVerificationFailed), "Verification failed"},
		{passkey.ErrAuthenticationFailed, "Authentication failed"},
		{passkey.ErrPasskeyNotFound, "Passkey not found"},
		{passkey.ErrUnauthorized, "Unauthorized"},
		{passkey.ErrConflict, "Already registered"},
		{ErrInvalidContinuation, "Session expired"},
		{errors.New("connection refused"), MessageInternal},
		{nil, MessageInternal},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Message(tc.err), "%v", tc.err)
	}
}

func TestIsTaxonomy(t *testing.T) {
	assert.True(t, IsTaxonomy(fmt.Errorf("wrapped: %w", ErrInvalidCode)))
	assert.False(t, IsTaxonomy(errors.New("db down")))
	assert.False(t, IsTaxonomy(passkey.ErrNotFound), "passkey not-found is mapped per operation")
}
