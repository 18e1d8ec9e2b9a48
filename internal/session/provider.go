// Package session issues and rotates authenticated sessions. A session is a
// persisted row plus a short-lived JWT access token and a rotating refresh token.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/security"
	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/session/domain"
	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/session/repository"
	userdomain "github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/user/domain"
)

// Sentinel errors for the session provider; handlers map them to HTTP status codes.
var (
	ErrUnknownPrincipal    = errors.New("unknown principal")
	ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")
	ErrRefreshTokenReuse   = errors.New("refresh token reuse detected; all sessions revoked")
	ErrInvalidAccessToken  = errors.New("invalid or expired access token")
)

// UserRepo is the minimal user repository needed by the provider.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
}

// ClientMeta describes the client a session is issued to.
type ClientMeta struct {
	IPAddress string
	UserAgent string
}

// VerifiedPrincipal is a user whose factors were already checked by the sign-in flow.
// Methods lists every factor satisfied in this sign-in.
type VerifiedPrincipal struct {
	UserID  string
	Methods []domain.Method
}

// Tokens is the outcome of CreateSession and Refresh.
type Tokens struct {
	SessionID    string          `json:"sessionId"`
	UserID       string          `json:"userId"`
	AccessToken  string          `json:"accessToken"`
	RefreshToken string          `json:"refreshToken"`
	ExpiresAt    time.Time       `json:"expiresAt"`
	Methods      []domain.Method `json:"methods"`
}

// Identity is an authenticated caller resolved from an access token.
type Identity struct {
	SessionID string
	UserID    string
	Methods   []domain.Method
}

// Provider creates, rotates and revokes sessions. It never checks passwords: every
// session starts from a principal whose factors the sign-in flow already verified.
type Provider struct {
	users      UserRepo
	sessions   repository.Repository
	tokens     *security.TokenProvider
	refreshTTL time.Duration
	logger     *zap.Logger
	nowF       func() time.Time
}

// NewProvider returns a Provider. refreshTTL bounds the lifetime of the session row.
func NewProvider(users UserRepo, sessions repository.Repository, tokens *security.TokenProvider, refreshTTL time.Duration, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		users:      users,
		sessions:   sessions,
		tokens:     tokens,
		refreshTTL: refreshTTL,
		logger:     logger,
		nowF:       func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the provider clock. Tests only.
func (p *Provider) SetClock(now func() time.Time) {
	p.nowF = now
}

// IssueVerified issues a session for a principal whose factors were verified upstream.
func (p *Provider) IssueVerified(ctx context.Context, principal VerifiedPrincipal, meta ClientMeta) (*Tokens, error) {
	if principal.UserID == "" || len(principal.Methods) == 0 {
		return nil, ErrUnknownPrincipal
	}
	u, err := p.users.GetByID(ctx, principal.UserID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if u == nil {
		return nil, ErrUnknownPrincipal
	}
	return p.CreateSession(ctx, u.ID, principal.Methods, meta)
}

// CreateSession persists a session row and returns its access and refresh tokens.
func (p *Provider) CreateSession(ctx context.Context, userID string, methods []domain.Method, meta ClientMeta) (*Tokens, error) {
	now := p.nowF()
	sessionID := uuid.New().String()
	refreshToken, jti, _, err := p.tokens.IssueRefresh(sessionID, userID)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	accessToken, _, accessExp, err := p.tokens.IssueAccess(sessionID, userID, methodStrings(methods))
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	sess := &domain.Session{
		ID:               sessionID,
		UserID:           userID,
		AuthMethods:      methods,
		ExpiresAt:        now.Add(p.refreshTTL),
		IPAddress:        meta.IPAddress,
		UserAgent:        meta.UserAgent,
		RefreshJti:       jti,
		RefreshTokenHash: security.HashToken(refreshToken),
		CreatedAt:        now,
	}
	if err := p.sessions.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	p.logger.Info("session created",
		zap.String("session_id", sessionID),
		zap.String("user_id", userID),
		zap.String("methods", domain.JoinMethods(methods)),
	)
	return &Tokens{
		SessionID:    sessionID,
		UserID:       userID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    accessExp,
		Methods:      methods,
	}, nil
}

// Refresh validates the refresh token, rotates it and returns new tokens.
// Presenting an already rotated token revokes every session of the user.
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	if refreshToken == "" {
		return nil, ErrInvalidRefreshToken
	}
	sessionID, jti, userID, err := p.tokens.ValidateRefresh(refreshToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}
	sess, err := p.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	now := p.nowF()
	if !sess.Active(now) || sess.UserID != userID {
		return nil, ErrInvalidRefreshToken
	}
	if sess.RefreshJti != jti {
		if err := p.sessions.RevokeAllSessionsByUser(ctx, userID); err != nil {
			p.logger.Error("revoke sessions after refresh reuse", zap.String("user_id", userID), zap.Error(err))
		}
		p.logger.Warn("refresh token reuse", zap.String("session_id", sessionID), zap.String("user_id", userID))
		return nil, ErrRefreshTokenReuse
	}
	if sess.RefreshTokenHash != "" && !security.TokenHashEqual(refreshToken, sess.RefreshTokenHash) {
		return nil, ErrInvalidRefreshToken
	}
	_ = p.sessions.UpdateLastSeen(ctx, sessionID, now)
	newRefresh, newJti, _, err := p.tokens.IssueRefresh(sessionID, userID)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	if err := p.sessions.UpdateRefreshToken(ctx, sessionID, newJti, security.HashToken(newRefresh)); err != nil {
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}
	accessToken, _, accessExp, err := p.tokens.IssueAccess(sessionID, userID, methodStrings(sess.AuthMethods))
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	return &Tokens{
		SessionID:    sessionID,
		UserID:       userID,
		AccessToken:  accessToken,
		RefreshToken: newRefresh,
		ExpiresAt:    accessExp,
		Methods:      sess.AuthMethods,
	}, nil
}

// Revoke revokes the session. Unknown ids are a no-op.
func (p *Provider) Revoke(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := p.sessions.Revoke(ctx, sessionID); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// Authenticate resolves an access token to the caller, rejecting tokens whose session
// was revoked or has expired.
func (p *Provider) Authenticate(ctx context.Context, accessToken string) (*Identity, error) {
	sessionID, userID, methods, err := p.tokens.ValidateAccess(accessToken)
	if err != nil {
		return nil, ErrInvalidAccessToken
	}
	sess, err := p.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if !sess.Active(p.nowF()) || sess.UserID != userID {
		return nil, ErrInvalidAccessToken
	}
	out := make([]domain.Method, len(methods))
	for i, m := range methods {
		out[i] = domain.Method(m)
	}
	return &Identity{SessionID: sessionID, UserID: userID, Methods: out}, nil
}

func methodStrings(methods []domain.Method) []string {
	out := make([]string, len(methods))
	for i, m := range methods {
		out[i] = string(m)
	}
	return out
}
