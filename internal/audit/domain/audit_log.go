package domain

import "time"

// AuditLog represents an audit event. UserID is empty for events without a known user.
type AuditLog struct {
	ID        string
	UserID    string
	Action    string
	Resource  string
	IP        string
	Metadata  string
	CreatedAt time.Time
}

// Sign-in audit actions.
const (
	ActionSignInPassword      = "signin_password"
	ActionSignInFailure       = "signin_failure"
	ActionTwoFactorIssued     = "two_factor_issued"
	ActionTwoFactorVerified   = "two_factor_verified"
	ActionTwoFactorFailure    = "two_factor_failure"
	ActionPasskeyRegistered   = "passkey_registered"
	ActionPasskeyDeleted      = "passkey_deleted"
	ActionPasskeyVerified     = "passkey_verified"
	ActionPasskeyFailure      = "passkey_failure"
	ActionSessionRefreshed    = "session_refreshed"
	ActionSessionRefreshReuse = "session_refresh_reuse"
	ActionSignOut             = "signout"
)

// Audit resources.
const (
	ResourceAuthentication = "authentication"
	ResourcePasskey        = "passkey"
	ResourceSession        = "session"
)
