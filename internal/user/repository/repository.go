package repository

import (
	"context"
	"time"

	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/user/domain"
)

// Repository defines persistence for users.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	// MarkTwoFactorVerified stamps two_factor_verified_at for the user. No-op for unknown ids.
	MarkTwoFactorVerified(ctx context.Context, userID string, at time.Time) error
}
