package passkey

import (
	"encoding/json"
	"testing"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/passkey/domain"
)

func newTestVerifier(t *testing.T) *GoWebAuthnVerifier {
	t.Helper()
	v, err := NewGoWebAuthnVerifier(WebAuthnConfig{
		RPDisplayName: "Portfolio Optimizer",
		RPID:          "localhost",
		RPOrigins:     []string{"http://localhost:3000"},
	})
	require.NoError(t, err)
	return v
}

func TestNewGoWebAuthnVerifier_InvalidConfig(t *testing.T) {
	_, err := NewGoWebAuthnVerifier(WebAuthnConfig{RPDisplayName: "x"})
	assert.Error(t, err)
}

func TestGoWebAuthnVerifier_BuildRegistrationOptions(t *testing.T) {
	v := newTestVerifier(t)
	existing := &domain.Authenticator{
		ID:           "a1",
		CredentialID: encodeCredentialID([]byte("existing-credential")),
		DeviceType:   domain.DeviceTypeSingle,
		Transports:   []string{"usb"},
	}

	c, err := v.BuildRegistrationOptions(Owner{ID: "u1", Email: "alice@example.com", Name: "Alice"}, []*domain.Authenticator{existing})
	require.NoError(t, err)
	assert.NotEmpty(t, c.Challenge)

	var session webauthn.SessionData
	require.NoError(t, json.Unmarshal(c.State, &session))
	assert.Equal(t, c.Challenge, session.Challenge)
	assert.Equal(t, []byte("u1"), session.UserID)

	var opts map[string]any
	require.NoError(t, json.Unmarshal(c.Options, &opts))
	assert.Equal(t, "none", opts["attestation"])
	rp, ok := opts["rp"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "localhost", rp["id"])
	exclude, ok := opts["excludeCredentials"].([]any)
	require.True(t, ok)
	assert.Len(t, exclude, 1)
	sel, ok := opts["authenticatorSelection"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "preferred", sel["residentKey"])
	assert.Equal(t, "preferred", sel["userVerification"])
}

func TestGoWebAuthnVerifier_BuildAuthenticationOptions(t *testing.T) {
	v := newTestVerifier(t)

	c, err := v.BuildAuthenticationOptions(nil, nil)
	require.NoError(t, err)
	var opts map[string]any
	require.NoError(t, json.Unmarshal(c.Options, &opts))
	assert.Empty(t, opts["allowCredentials"])
	assert.Equal(t, "preferred", opts["userVerification"])

	owner := Owner{ID: "u1", Email: "alice@example.com"}
	cred := &domain.Authenticator{ID: "a1", CredentialID: encodeCredentialID([]byte("cred-1")), DeviceType: domain.DeviceTypeMulti}
	c, err = v.BuildAuthenticationOptions(&owner, []*domain.Authenticator{cred})
	require.NoError(t, err)
	opts = nil
	require.NoError(t, json.Unmarshal(c.Options, &opts))
	allow, ok := opts["allowCredentials"].([]any)
	require.True(t, ok)
	assert.Len(t, allow, 1)
}

func TestGoWebAuthnVerifier_RejectsGarbage(t *testing.T) {
	v := newTestVerifier(t)
	c, err := v.BuildRegistrationOptions(Owner{ID: "u1", Email: "alice@example.com"}, nil)
	require.NoError(t, err)

	_, err = v.VerifyRegistration(Owner{ID: "u1"}, c.State, []byte(`{"id":"x"}`))
	assert.Error(t, err)
	_, err = v.CredentialID([]byte("not json"))
	assert.Error(t, err)
	_, err = v.VerifyAuthentication(Owner{ID: "u1"}, c.State, []byte("{}"), &domain.Authenticator{CredentialID: "AA"})
	assert.Error(t, err)
}

func TestToCredential_MapsFlags(t *testing.T) {
	a := &domain.Authenticator{
		ID:                  "a1",
		CredentialID:        encodeCredentialID([]byte{1, 2, 3}),
		CredentialPublicKey: []byte{9},
		Counter:             42,
		DeviceType:          domain.DeviceTypeMulti,
		BackedUp:            true,
		Transports:          []string{"internal"},
	}
	c, err := toCredential(a)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, c.ID)
	assert.True(t, c.Flags.BackupEligible)
	assert.True(t, c.Flags.BackupState)
	assert.Equal(t, uint32(42), c.Authenticator.SignCount)
	require.Len(t, c.Transport, 1)
	assert.Equal(t, "internal", string(c.Transport[0]))

	_, err = toCredential(&domain.Authenticator{ID: "bad", CredentialID: "!!"})
	assert.Error(t, err)
}

func TestCounterAdvanced(t *testing.T) {
	cases := []struct {
		stored, reported uint32
		want             bool
	}{
		{0, 0, true},
		{0, 1, true},
		{5, 6, true},
		{5, 5, false},
		{5, 4, false},
		{5, 0, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, counterAdvanced(tc.stored, tc.reported), "stored=%d reported=%d", tc.stored, tc.reported)
	}
}

func TestWebAuthnUser(t *testing.T) {
	u, err := newWebAuthnUser(Owner{ID: "u1", Email: "alice@example.com"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("u1"), u.WebAuthnID())
	assert.Equal(t, "alice@example.com", u.WebAuthnName())
	assert.Equal(t, "alice@example.com", u.WebAuthnDisplayName())
	assert.Empty(t, u.WebAuthnCredentials())
}

func TestDiscoverableUser(t *testing.T) {
	user, err := newWebAuthnUser(Owner{ID: "u1", Email: "alice@example.com"}, nil)
	require.NoError(t, err)
	handler := discoverableUser(user)

	got, err := handler([]byte("raw"), []byte("u1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("u1"), got.WebAuthnID())

	for name, handle := range map[string][]byte{
		"missing handle": nil,
		"other user":     []byte("u2"),
	} {
		_, err := handler([]byte("raw"), handle)
		assert.Error(t, err, name)
	}
}

func TestGoWebAuthnVerifier_DiscoverableRejectsGarbage(t *testing.T) {
	v := newTestVerifier(t)
	c, err := v.BuildAuthenticationOptions(nil, nil)
	require.NoError(t, err)

	stored := &domain.Authenticator{ID: "a1", CredentialID: encodeCredentialID([]byte("cred"))}
	_, err = v.VerifyAuthentication(Owner{ID: "u1"}, c.State, []byte(`{"id":"x"}`), stored)
	assert.Error(t, err)
}
