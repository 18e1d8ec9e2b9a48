package repository

import (
	"context"
	"time"

	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/passkey/domain"
)

// Repository defines persistence for passkey authenticators.
type Repository interface {
	// Create inserts a; returns ErrDuplicateCredential when the credential ID is already registered.
	Create(ctx context.Context, a *domain.Authenticator) error
	GetByCredentialID(ctx context.Context, credentialID string) (*domain.Authenticator, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Authenticator, error)
	CountByUser(ctx context.Context, userID string) (int, error)
	UpdateCounter(ctx context.Context, id string, counter uint32, usedAt time.Time) error
	// DeleteByUser removes the authenticator only when it belongs to userID. Returns false when nothing matched.
	DeleteByUser(ctx context.Context, userID, id string) (bool, error)
}
