package security

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ContinuationClaims carries sign-in progress between requests. State names where the
// journey stands; Methods lists the factors already satisfied.
type ContinuationClaims struct {
	jwt.RegisteredClaims
	Type    string   `json:"typ"`
	State   string   `json:"state"`
	Methods []string `json:"amr,omitempty"`
}

// IssueContinuation signs a continuation token for userID in the given state.
func (p *TokenProvider) IssueContinuation(userID, state string, methods []string) (token string, expiresAt time.Time, err error) {
	jti, err := generateJTI()
	if err != nil {
		return "", time.Time{}, err
	}
	now := p.nowF()
	expiresAt = now.Add(p.continuationTTL)
	claims := ContinuationClaims{
		RegisteredClaims: p.registered(jti, userID, now, expiresAt),
		Type:             tokenTypeContinuation,
		State:            state,
		Methods:          methods,
	}
	token, err = p.sign(claims)
	return token, expiresAt, err
}

// ValidateContinuation verifies a continuation token and returns its claims.
// Access and refresh tokens are rejected even though they share the signing key.
func (p *TokenProvider) ValidateContinuation(tokenString string) (*ContinuationClaims, error) {
	claims := &ContinuationClaims{}
	if err := p.parse(tokenString, claims); err != nil || claims.Type != tokenTypeContinuation {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" || claims.State == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
