package signin

import (
	"context"
	"fmt"

	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/security"
	userdomain "github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/user/domain"
)

// UserLookup is the minimal user repository needed by the flow.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
}

// Principal is a user whose password was checked.
type Principal struct {
	UserID string
	Email  string
}

// Authenticator checks an email and password against the stored bcrypt hash.
type Authenticator struct {
	users  UserLookup
	hasher *security.Hasher
}

// NewAuthenticator returns an Authenticator.
func NewAuthenticator(users UserLookup, hasher *security.Hasher) *Authenticator {
	return &Authenticator{users: users, hasher: hasher}
}

// Authenticate returns the principal for a matching email and password, or nil when the user
// does not exist, has no password (OAuth-only) or the password is wrong. Only repository
// failures return an error.
func (a *Authenticator) Authenticate(ctx context.Context, email, password string) (*Principal, error) {
	email = userdomain.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, nil
	}
	u, err := a.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if !u.HasPassword() {
		a.hasher.DummyCompare([]byte(password))
		return nil, nil
	}
	if err := a.hasher.Compare(u.PasswordHash, []byte(password)); err != nil {
		return nil, nil
	}
	return &Principal{UserID: u.ID, Email: u.Email}, nil
}
