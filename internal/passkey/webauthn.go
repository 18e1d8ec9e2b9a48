package passkey

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/passkey/domain"
)

// WebAuthnConfig identifies the relying party.
type WebAuthnConfig struct {
	RPDisplayName string
	RPID          string
	RPOrigins     []string
}

// GoWebAuthnVerifier implements Verifier with go-webauthn.
type GoWebAuthnVerifier struct {
	w *webauthn.WebAuthn
}

// NewGoWebAuthnVerifier validates cfg and returns a verifier.
func NewGoWebAuthnVerifier(cfg WebAuthnConfig) (*GoWebAuthnVerifier, error) {
	w, err := webauthn.New(&webauthn.Config{
		RPDisplayName: cfg.RPDisplayName,
		RPID:          cfg.RPID,
		RPOrigins:     cfg.RPOrigins,
	})
	if err != nil {
		return nil, fmt.Errorf("webauthn config: %w", err)
	}
	return &GoWebAuthnVerifier{w: w}, nil
}

// BuildRegistrationOptions asks for no attestation, a preferred resident key and preferred user verification.
func (v *GoWebAuthnVerifier) BuildRegistrationOptions(owner Owner, exclude []*domain.Authenticator) (*Ceremony, error) {
	user, err := newWebAuthnUser(owner, exclude)
	if err != nil {
		return nil, err
	}
	opts := []webauthn.RegistrationOption{
		webauthn.WithConveyancePreference(protocol.PreferNoAttestation),
		webauthn.WithAuthenticatorSelection(protocol.AuthenticatorSelection{
			ResidentKey:      protocol.ResidentKeyRequirementPreferred,
			UserVerification: protocol.VerificationPreferred,
		}),
	}
	if len(user.credentials) > 0 {
		opts = append(opts, webauthn.WithExclusions(webauthn.Credentials(user.credentials).CredentialDescriptors()))
	}
	creation, session, err := v.w.BeginRegistration(user, opts...)
	if err != nil {
		return nil, fmt.Errorf("begin registration: %w", err)
	}
	return newCeremony(session, creation.Response)
}

// VerifyRegistration parses and verifies an attestation response.
func (v *GoWebAuthnVerifier) VerifyRegistration(owner Owner, state, response []byte) (*NewCredential, error) {
	session, err := decodeSession(state)
	if err != nil {
		return nil, err
	}
	parsed, err := protocol.ParseCredentialCreationResponseBytes(response)
	if err != nil {
		return nil, fmt.Errorf("parse attestation: %w", err)
	}
	user, err := newWebAuthnUser(owner, nil)
	if err != nil {
		return nil, err
	}
	cred, err := v.w.CreateCredential(user, *session, parsed)
	if err != nil {
		return nil, fmt.Errorf("verify attestation: %w", err)
	}
	transports := make([]string, 0, len(cred.Transport))
	for _, t := range cred.Transport {
		transports = append(transports, string(t))
	}
	return &NewCredential{
		CredentialID:   encodeCredentialID(cred.ID),
		PublicKey:      cred.PublicKey,
		Counter:        cred.Authenticator.SignCount,
		BackupEligible: cred.Flags.BackupEligible,
		BackedUp:       cred.Flags.BackupState,
		Transports:     transports,
	}, nil
}

// BuildAuthenticationOptions starts a login bound to owner's credentials, or a discoverable one.
func (v *GoWebAuthnVerifier) BuildAuthenticationOptions(owner *Owner, allow []*domain.Authenticator) (*Ceremony, error) {
	uv := webauthn.WithUserVerification(protocol.VerificationPreferred)
	var (
		assertion *protocol.CredentialAssertion
		session   *webauthn.SessionData
		err       error
	)
	if owner == nil || len(allow) == 0 {
		assertion, session, err = v.w.BeginDiscoverableLogin(uv)
	} else {
		user, uerr := newWebAuthnUser(*owner, allow)
		if uerr != nil {
			return nil, uerr
		}
		assertion, session, err = v.w.BeginLogin(user, uv)
	}
	if err != nil {
		return nil, fmt.Errorf("begin login: %w", err)
	}
	return newCeremony(session, assertion.Response)
}

// CredentialID parses the assertion just far enough to read its raw credential ID.
func (v *GoWebAuthnVerifier) CredentialID(response []byte) (string, error) {
	parsed, err := protocol.ParseCredentialRequestResponseBytes(response)
	if err != nil {
		return "", fmt.Errorf("parse assertion: %w", err)
	}
	if len(parsed.RawID) == 0 {
		return "", errors.New("assertion has no credential id")
	}
	return encodeCredentialID(parsed.RawID), nil
}

// VerifyAuthentication verifies the assertion against stored. Discoverable ceremonies carry
// no user in their begin state; those go through the library's passkey login, which also
// requires the assertion's user handle to name owner.
func (v *GoWebAuthnVerifier) VerifyAuthentication(owner Owner, state, response []byte, stored *domain.Authenticator) (*VerifiedAssertion, error) {
	session, err := decodeSession(state)
	if err != nil {
		return nil, err
	}
	user, err := newWebAuthnUser(owner, []*domain.Authenticator{stored})
	if err != nil {
		return nil, err
	}
	parsed, err := protocol.ParseCredentialRequestResponseBytes(response)
	if err != nil {
		return nil, fmt.Errorf("parse assertion: %w", err)
	}
	var cred *webauthn.Credential
	if len(session.UserID) == 0 {
		_, cred, err = v.w.ValidatePasskeyLogin(discoverableUser(user), *session, parsed)
	} else {
		cred, err = v.w.ValidateLogin(user, *session, parsed)
	}
	if err != nil {
		return nil, fmt.Errorf("verify assertion: %w", err)
	}
	return &VerifiedAssertion{
		Counter:  parsed.Response.AuthenticatorData.Counter,
		BackedUp: cred.Flags.BackupState,
	}, nil
}

// discoverableUser resolves the user handle of a discoverable assertion. The credential
// was already looked up, so the only acceptable handle is its owner's.
func discoverableUser(user *webAuthnUser) webauthn.DiscoverableUserHandler {
	return func(_, userHandle []byte) (webauthn.User, error) {
		if len(userHandle) == 0 {
			return nil, errors.New("user handle is required")
		}
		if string(userHandle) != string(user.WebAuthnID()) {
			return nil, errors.New("user handle does not match credential owner")
		}
		return user, nil
	}
}

// webAuthnUser adapts an Owner and its stored authenticators to webauthn.User.
type webAuthnUser struct {
	owner       Owner
	credentials []webauthn.Credential
}

func newWebAuthnUser(owner Owner, authenticators []*domain.Authenticator) (*webAuthnUser, error) {
	creds := make([]webauthn.Credential, 0, len(authenticators))
	for _, a := range authenticators {
		c, err := toCredential(a)
		if err != nil {
			return nil, err
		}
		creds = append(creds, c)
	}
	return &webAuthnUser{owner: owner, credentials: creds}, nil
}

func (u *webAuthnUser) WebAuthnID() []byte {
	return []byte(u.owner.ID)
}

func (u *webAuthnUser) WebAuthnName() string {
	return u.owner.Email
}

func (u *webAuthnUser) WebAuthnDisplayName() string {
	if u.owner.Name != "" {
		return u.owner.Name
	}
	return u.owner.Email
}

func (u *webAuthnUser) WebAuthnCredentials() []webauthn.Credential {
	return u.credentials
}

func toCredential(a *domain.Authenticator) (webauthn.Credential, error) {
	id, err := decodeCredentialID(a.CredentialID)
	if err != nil {
		return webauthn.Credential{}, fmt.Errorf("decode credential id %s: %w", a.ID, err)
	}
	transports := make([]protocol.AuthenticatorTransport, 0, len(a.Transports))
	for _, t := range a.Transports {
		transports = append(transports, protocol.AuthenticatorTransport(t))
	}
	return webauthn.Credential{
		ID:        id,
		PublicKey: a.CredentialPublicKey,
		Transport: transports,
		Flags: webauthn.CredentialFlags{
			BackupEligible: a.DeviceType == domain.DeviceTypeMulti,
			BackupState:    a.BackedUp,
		},
		Authenticator: webauthn.Authenticator{SignCount: a.Counter},
	}, nil
}

func newCeremony(session *webauthn.SessionData, publicKey any) (*Ceremony, error) {
	state, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	options, err := json.Marshal(publicKey)
	if err != nil {
		return nil, fmt.Errorf("encode options: %w", err)
	}
	return &Ceremony{Challenge: session.Challenge, State: state, Options: options}, nil
}

func decodeSession(state []byte) (*webauthn.SessionData, error) {
	var session webauthn.SessionData
	if err := json.Unmarshal(state, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &session, nil
}

func encodeCredentialID(id []byte) string {
	return base64.RawURLEncoding.EncodeToString(id)
}

func decodeCredentialID(id string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(id)
}
