// Package domain holds the passkey (WebAuthn authenticator) entity.
package domain

import "time"

// Authenticator is a registered passkey owned by one user.
type Authenticator struct {
	ID     string
	UserID string
	// CredentialID is the WebAuthn credential ID, base64url without padding; globally unique.
	CredentialID        string
	CredentialPublicKey []byte
	// Counter is the last signature counter reported by the authenticator.
	Counter    uint32
	DeviceType DeviceType
	BackedUp   bool
	Transports []string
	CreatedAt  time.Time
	LastUsedAt *time.Time
}

// DeviceType tells single-device credentials apart from synced (backup-eligible) passkeys.
type DeviceType string

const (
	DeviceTypeSingle DeviceType = "singleDevice"
	DeviceTypeMulti  DeviceType = "multiDevice"
)

// DeviceTypeFor maps the backup-eligible flag to a DeviceType.
func DeviceTypeFor(backupEligible bool) DeviceType {
	if backupEligible {
		return DeviceTypeMulti
	}
	return DeviceTypeSingle
}
