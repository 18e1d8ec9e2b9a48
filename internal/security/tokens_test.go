package security

import (
	"testing"
	"time"
)

func TestTokenProvider_IssueAccessAndRefresh(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	sessionID, userID := "s1", "u1"

	access, accessJti, exp, err := p.IssueAccess(sessionID, userID, []string{"pwd", "otp"})
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if access == "" || accessJti == "" {
		t.Fatal("access token or jti empty")
	}
	if exp.Before(time.Now()) {
		t.Fatal("expires at in the past")
	}

	refresh, jti, refreshExp, err := p.IssueRefresh(sessionID, userID)
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	if refresh == "" || jti == "" {
		t.Fatal("refresh token or jti empty")
	}
	if refreshExp.Before(exp) {
		t.Fatal("refresh should outlive access")
	}

	sid, jti2, uid, err := p.ValidateRefresh(refresh)
	if err != nil {
		t.Fatalf("ValidateRefresh: %v", err)
	}
	if sid != sessionID || jti2 != jti || uid != userID {
		t.Errorf("ValidateRefresh: got sessionID=%q jti=%q userID=%q", sid, jti2, uid)
	}
}

func TestTokenProvider_ValidateAccess(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	access, _, _, err := p.IssueAccess("s1", "u1", []string{"hwk"})
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	sid, uid, methods, err := p.ValidateAccess(access)
	if err != nil {
		t.Fatalf("ValidateAccess: %v", err)
	}
	if sid != "s1" || uid != "u1" {
		t.Errorf("ValidateAccess: got sessionID=%q userID=%q", sid, uid)
	}
	if len(methods) != 1 || methods[0] != "hwk" {
		t.Errorf("ValidateAccess methods = %v, want [hwk]", methods)
	}
}

func TestTokenProvider_InvalidTokens(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	if _, _, _, err := p.ValidateRefresh("invalid-token"); err != ErrInvalidToken {
		t.Errorf("ValidateRefresh invalid token: want ErrInvalidToken, got %v", err)
	}
	if _, _, _, err := p.ValidateAccess("invalid-token"); err != ErrInvalidToken {
		t.Errorf("ValidateAccess invalid token: want ErrInvalidToken, got %v", err)
	}
	if _, err := p.ValidateContinuation("invalid-token"); err != ErrInvalidToken {
		t.Errorf("ValidateContinuation invalid token: want ErrInvalidToken, got %v", err)
	}
}

func TestTokenProvider_TokenTypesAreNotInterchangeable(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	access, _, _, _ := p.IssueAccess("s1", "u1", nil)
	refresh, _, _, _ := p.IssueRefresh("s1", "u1")
	cont, _, err := p.IssueContinuation("u1", "two_factor_pending", []string{"pwd"})
	if err != nil {
		t.Fatalf("IssueContinuation: %v", err)
	}

	if _, _, _, err := p.ValidateAccess(refresh); err != ErrInvalidToken {
		t.Error("refresh token accepted as access token")
	}
	if _, _, _, err := p.ValidateAccess(cont); err != ErrInvalidToken {
		t.Error("continuation token accepted as access token")
	}
	if _, _, _, err := p.ValidateRefresh(access); err != ErrInvalidToken {
		t.Error("access token accepted as refresh token")
	}
	if _, err := p.ValidateContinuation(access); err != ErrInvalidToken {
		t.Error("access token accepted as continuation token")
	}
}

func TestTokenProvider_Continuation(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	tok, exp, err := p.IssueContinuation("u1", "passkey_setup_pending", []string{"pwd", "otp"})
	if err != nil {
		t.Fatalf("IssueContinuation: %v", err)
	}
	if exp.Sub(time.Now()) > 10*time.Minute+time.Second {
		t.Errorf("continuation expires too late: %v", exp)
	}
	claims, err := p.ValidateContinuation(tok)
	if err != nil {
		t.Fatalf("ValidateContinuation: %v", err)
	}
	if claims.Subject != "u1" || claims.State != "passkey_setup_pending" {
		t.Errorf("claims = %+v", claims)
	}
	if len(claims.Methods) != 2 {
		t.Errorf("methods = %v", claims.Methods)
	}
}

func TestTokenProvider_ContinuationExpired(t *testing.T) {
	now := time.Now().UTC()
	issuer, err := NewTestTokenProviderAt(func() time.Time { return now })
	if err != nil {
		t.Fatalf("NewTestTokenProviderAt: %v", err)
	}
	tok, _, err := issuer.IssueContinuation("u1", "two_factor_pending", nil)
	if err != nil {
		t.Fatalf("IssueContinuation: %v", err)
	}
	later, err := NewTestTokenProviderAt(func() time.Time { return now.Add(11 * time.Minute) })
	if err != nil {
		t.Fatalf("NewTestTokenProviderAt: %v", err)
	}
	if _, err := later.ValidateContinuation(tok); err != ErrInvalidToken {
		t.Errorf("expired continuation: want ErrInvalidToken, got %v", err)
	}
}

func TestTokenProvider_WrongAudience(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	other := NewTokenProvider(p.privateKey, p.publicKey, "test-issuer", "other-audience", time.Minute, time.Hour, time.Minute)
	tok, _, _, err := other.IssueAccess("s1", "u1", nil)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, _, _, err := p.ValidateAccess(tok); err != ErrInvalidToken {
		t.Errorf("wrong audience: want ErrInvalidToken, got %v", err)
	}
}
