// Package slot keeps the short-lived per-user secrets of the sign-in flow: the emailed
// one-time code and the pending WebAuthn challenge. Each (kind, owner) pair holds at most
// one record; Put overwrites.
package slot

import (
	"context"
	"crypto/subtle"
	"time"
)

// Kind names the purpose of a slot.
type Kind string

const (
	KindOTP      Kind = "otp"
	KindWebAuthn Kind = "webauthn"
	// KindWebAuthnDiscoverable slots are owned by the challenge itself, not by a user.
	KindWebAuthnDiscoverable Kind = "webauthn-discoverable"
)

// Key addresses one slot.
type Key struct {
	Kind  Kind
	Owner string
}

// OTPKey returns the email code slot of userID.
func OTPKey(userID string) Key { return Key{Kind: KindOTP, Owner: userID} }

// ChallengeKey returns the WebAuthn challenge slot of userID.
func ChallengeKey(userID string) Key { return Key{Kind: KindWebAuthn, Owner: userID} }

// DiscoverableKey returns the slot of a challenge issued without a known user.
func DiscoverableKey(challenge string) Key {
	return Key{Kind: KindWebAuthnDiscoverable, Owner: challenge}
}

func (k Key) String() string {
	return string(k.Kind) + ":" + k.Owner
}

// Record is the content of a slot.
type Record struct {
	Secret    string    `json:"secret"`
	ExpiresAt time.Time `json:"expires_at"`
	// Payload is opaque to the store (e.g. serialized WebAuthn session data).
	Payload []byte `json:"payload,omitempty"`
}

// Expired reports whether now is strictly after the record's expiry.
func (r *Record) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Outcome is the result of Consume.
type Outcome int

const (
	// NotFound means the slot is empty.
	NotFound Outcome = iota
	// Mismatch means the secret did not match; the record is left in place.
	Mismatch
	// Expired means the secret matched but the record is past its expiry; the record is left in place.
	Expired
	// Match means the secret matched in time and the record was deleted.
	Match
)

func (o Outcome) String() string {
	switch o {
	case NotFound:
		return "not_found"
	case Mismatch:
		return "mismatch"
	case Expired:
		return "expired"
	case Match:
		return "match"
	default:
		return "unknown"
	}
}

// Store persists slots. Implementations must make Consume atomic: of two concurrent
// Consume calls with the matching secret, at most one returns Match.
type Store interface {
	// Put writes rec to key, replacing any previous record.
	Put(ctx context.Context, key Key, rec Record) error
	// Get returns the record at key, or nil when the slot is empty. Expired records are still returned.
	Get(ctx context.Context, key Key) (*Record, error)
	// Consume compares secret with the stored record and deletes it on Match.
	// The returned record is non-nil for every outcome except NotFound.
	Consume(ctx context.Context, key Key, secret string, now time.Time) (Outcome, *Record, error)
	// Delete empties the slot. Deleting an empty slot is not an error.
	Delete(ctx context.Context, key Key) error
}

// retention is how long a record outlives its expiry so that late attempts report Expired rather than NotFound.
const retention = time.Minute

func evaluate(rec *Record, secret string, now time.Time) Outcome {
	if rec == nil {
		return NotFound
	}
	if subtle.ConstantTimeCompare([]byte(rec.Secret), []byte(secret)) != 1 {
		return Mismatch
	}
	if rec.Expired(now) {
		return Expired
	}
	return Match
}
