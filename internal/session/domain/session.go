package domain

import (
	"strings"
	"time"
)

// Method is an authentication method recorded on a session (RFC 8176 amr values).
type Method string

const (
	MethodPassword Method = "pwd"
	MethodOTP      Method = "otp"
	MethodPasskey  Method = "hwk"
)

// Session represents a signed-in user session backed by a rotating refresh token.
type Session struct {
	ID               string
	UserID           string
	AuthMethods      []Method
	ExpiresAt        time.Time
	RevokedAt        *time.Time // nil when not revoked
	LastSeenAt       *time.Time
	IPAddress        string
	UserAgent        string
	RefreshJti       string // current refresh token jti for rotation; empty if not set
	RefreshTokenHash string // SHA-256 hash of current refresh token
	CreatedAt        time.Time
}

// Active reports whether the session is neither revoked nor expired at now.
func (s *Session) Active(now time.Time) bool {
	return s != nil && s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

// JoinMethods encodes methods as a comma list for storage.
func JoinMethods(methods []Method) string {
	parts := make([]string, len(methods))
	for i, m := range methods {
		parts[i] = string(m)
	}
	return strings.Join(parts, ",")
}

// SplitMethods decodes a comma list produced by JoinMethods.
func SplitMethods(raw string) []Method {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]Method, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, Method(p))
		}
	}
	return out
}
