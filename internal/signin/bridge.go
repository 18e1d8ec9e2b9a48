package signin

import (
	"context"

	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/session"
	sessiondomain "github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/session/domain"
)

// SessionIssuer is the part of the session provider used by the flow.
type SessionIssuer interface {
	IssueVerified(ctx context.Context, principal session.VerifiedPrincipal, meta session.ClientMeta) (*session.Tokens, error)
	Refresh(ctx context.Context, refreshToken string) (*session.Tokens, error)
	Revoke(ctx context.Context, sessionID string) error
}

// bridge turns a completed second factor into a session. It is the only caller of
// IssueVerified; form input never reaches it.
type bridge struct {
	sessions SessionIssuer
}

func (b bridge) complete(ctx context.Context, userID string, methods []sessiondomain.Method) (*session.Tokens, error) {
	return b.sessions.IssueVerified(ctx, session.VerifiedPrincipal{
		UserID:  userID,
		Methods: methods,
	}, session.ClientMetaFrom(ctx))
}

// withMethod appends m to methods unless already present.
func withMethod(methods []sessiondomain.Method, m sessiondomain.Method) []sessiondomain.Method {
	for _, have := range methods {
		if have == m {
			return methods
		}
	}
	out := make([]sessiondomain.Method, 0, len(methods)+1)
	out = append(out, methods...)
	return append(out, m)
}

func methodsFromClaims(raw []string) []sessiondomain.Method {
	out := make([]sessiondomain.Method, 0, len(raw))
	for _, m := range raw {
		switch sessiondomain.Method(m) {
		case sessiondomain.MethodPassword, sessiondomain.MethodOTP, sessiondomain.MethodPasskey:
			out = append(out, sessiondomain.Method(m))
		}
	}
	return out
}

func methodsToClaims(methods []sessiondomain.Method) []string {
	out := make([]string, len(methods))
	for i, m := range methods {
		out[i] = string(m)
	}
	return out
}
