// Package passkeytest provides a scripted passkey.Verifier for tests. Responses are JSON documents
// built with Attestation and Assertion instead of real authenticator output.
package passkeytest

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/passkey"
	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/passkey/domain"
)

// Attestation is a fake registration response.
type Attestation struct {
	CredentialID   string   `json:"credentialId"`
	Challenge      string   `json:"challenge"`
	PublicKey      []byte   `json:"publicKey"`
	Counter        uint32   `json:"counter"`
	BackupEligible bool     `json:"backupEligible"`
	BackedUp       bool     `json:"backedUp"`
	Transports     []string `json:"transports"`
	// Invalid makes verification fail as a bad signature would.
	Invalid bool `json:"invalid"`
}

// Assertion is a fake authentication response.
type Assertion struct {
	CredentialID string `json:"credentialId"`
	Challenge    string `json:"challenge"`
	Counter      uint32 `json:"counter"`
	BackedUp     bool   `json:"backedUp"`
	Invalid      bool   `json:"invalid"`
}

// JSON encodes v, panicking on failure.
func JSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

// state is what the fake stores between begin and complete.
type state struct {
	Challenge string   `json:"challenge"`
	UserID    string   `json:"userId"`
	Allow     []string `json:"allow"`
}

// Options is the fake publicKey options document.
type Options struct {
	Challenge string   `json:"challenge"`
	Exclude   []string `json:"excludeCredentials,omitempty"`
	Allow     []string `json:"allowCredentials,omitempty"`
}

// Verifier is a passkey.Verifier whose responses are Attestation and Assertion JSON.
// The response challenge must equal the begin challenge, as a real client data check would require.
type Verifier struct {
	mu sync.Mutex
	// Calls counts VerifyAuthentication invocations.
	Calls int
}

var _ passkey.Verifier = (*Verifier)(nil)

// BuildRegistrationOptions returns a random challenge and lists excluded credential IDs.
func (v *Verifier) BuildRegistrationOptions(owner passkey.Owner, exclude []*domain.Authenticator) (*passkey.Ceremony, error) {
	return newCeremony(owner.ID, nil, ids(exclude), nil)
}

// VerifyRegistration accepts an Attestation whose challenge matches the begin state.
func (v *Verifier) VerifyRegistration(owner passkey.Owner, st, response []byte) (*passkey.NewCredential, error) {
	var s state
	if err := json.Unmarshal(st, &s); err != nil {
		return nil, err
	}
	var att Attestation
	if err := json.Unmarshal(response, &att); err != nil {
		return nil, err
	}
	if att.Invalid {
		return nil, errors.New("bad attestation signature")
	}
	if att.Challenge != s.Challenge {
		return nil, errors.New("challenge mismatch")
	}
	if s.UserID != owner.ID {
		return nil, errors.New("user mismatch")
	}
	return &passkey.NewCredential{
		CredentialID:   att.CredentialID,
		PublicKey:      att.PublicKey,
		Counter:        att.Counter,
		BackupEligible: att.BackupEligible,
		BackedUp:       att.BackedUp,
		Transports:     att.Transports,
	}, nil
}

// BuildAuthenticationOptions returns a random challenge; nil owner yields an empty allow-list.
func (v *Verifier) BuildAuthenticationOptions(owner *passkey.Owner, allow []*domain.Authenticator) (*passkey.Ceremony, error) {
	if owner == nil {
		return newCeremony("", nil, nil, nil)
	}
	allowIDs := ids(allow)
	return newCeremony(owner.ID, allowIDs, nil, allowIDs)
}

// CredentialID reads the credential ID of an Assertion.
func (v *Verifier) CredentialID(response []byte) (string, error) {
	var as Assertion
	if err := json.Unmarshal(response, &as); err != nil {
		return "", err
	}
	if as.CredentialID == "" {
		return "", errors.New("missing credential id")
	}
	return as.CredentialID, nil
}

// VerifyAuthentication accepts an Assertion whose challenge matches the begin state and whose
// credential is allowed.
func (v *Verifier) VerifyAuthentication(owner passkey.Owner, st, response []byte, stored *domain.Authenticator) (*passkey.VerifiedAssertion, error) {
	v.mu.Lock()
	v.Calls++
	v.mu.Unlock()
	var s state
	if err := json.Unmarshal(st, &s); err != nil {
		return nil, err
	}
	var as Assertion
	if err := json.Unmarshal(response, &as); err != nil {
		return nil, err
	}
	if as.Invalid {
		return nil, errors.New("bad assertion signature")
	}
	if as.Challenge != s.Challenge {
		return nil, errors.New("challenge mismatch")
	}
	if s.UserID != "" && s.UserID != owner.ID {
		return nil, errors.New("user mismatch")
	}
	if stored == nil || stored.CredentialID != as.CredentialID {
		return nil, errors.New("credential mismatch")
	}
	if len(s.Allow) > 0 && !contains(s.Allow, as.CredentialID) {
		return nil, errors.New("credential not allowed")
	}
	return &passkey.VerifiedAssertion{Counter: as.Counter, BackedUp: as.BackedUp}, nil
}

func newCeremony(userID string, allow, exclude, optAllow []string) (*passkey.Ceremony, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	challenge := base64.RawURLEncoding.EncodeToString(b)
	st, err := json.Marshal(state{Challenge: challenge, UserID: userID, Allow: allow})
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	opts, err := json.Marshal(Options{Challenge: challenge, Exclude: exclude, Allow: optAllow})
	if err != nil {
		return nil, fmt.Errorf("encode options: %w", err)
	}
	return &passkey.Ceremony{Challenge: challenge, State: st, Options: opts}, nil
}

func ids(list []*domain.Authenticator) []string {
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, a.CredentialID)
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
