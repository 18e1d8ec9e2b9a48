package passkey

import (
	"encoding/json"
	"time"

	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/passkey/domain"
)

// DefaultChallengeTTL is how long a WebAuthn challenge stays valid.
const DefaultChallengeTTL = 5 * time.Minute

// Owner is the account a ceremony runs for.
type Owner struct {
	ID    string
	Email string
	Name  string
}

// Ceremony is what the verifier produces when a ceremony begins.
type Ceremony struct {
	// Challenge is the base64url challenge the client must sign.
	Challenge string
	// State is opaque verifier state, stored alongside the challenge until completion.
	State []byte
	// Options are the publicKey options handed to navigator.credentials.
	Options json.RawMessage
}

// NewCredential is a verified attestation.
type NewCredential struct {
	CredentialID   string
	PublicKey      []byte
	Counter        uint32
	BackupEligible bool
	BackedUp       bool
	Transports     []string
}

// VerifiedAssertion is a verified authentication response.
type VerifiedAssertion struct {
	// Counter is the signature counter reported by the authenticator.
	Counter  uint32
	BackedUp bool
}

// Verifier performs the WebAuthn cryptography. Relying party name, ID and origins are bound at construction.
type Verifier interface {
	// BuildRegistrationOptions starts a registration for owner, excluding credentials already registered.
	BuildRegistrationOptions(owner Owner, exclude []*domain.Authenticator) (*Ceremony, error)
	// VerifyRegistration checks an attestation response against the state returned by BuildRegistrationOptions.
	VerifyRegistration(owner Owner, state, response []byte) (*NewCredential, error)
	// BuildAuthenticationOptions starts an authentication. A nil owner starts a discoverable one with no allow-list.
	BuildAuthenticationOptions(owner *Owner, allow []*domain.Authenticator) (*Ceremony, error)
	// CredentialID extracts the base64url credential ID from an assertion response without verifying it.
	CredentialID(response []byte) (string, error)
	// VerifyAuthentication checks an assertion by owner's stored credential against the begin state.
	VerifyAuthentication(owner Owner, state, response []byte, stored *domain.Authenticator) (*VerifiedAssertion, error)
}

// Options is returned to the client when a ceremony begins.
type Options struct {
	Challenge string          `json:"challenge"`
	PublicKey json.RawMessage `json:"publicKey"`
	ExpiresAt time.Time       `json:"expiresAt"`
}
