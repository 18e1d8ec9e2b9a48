package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/db"
	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/db/dbtest"
	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/user/domain"
)

func newTestRepo(t *testing.T) *SQLRepository {
	conn, sb := dbtest.OpenSQLite(t)
	return NewSQLRepository(conn, sb)
}

func TestSQLRepository_CreateAndGet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	u := &domain.User{
		ID:           "user-1",
		Email:        "Alice@Example.com",
		Name:         "Alice",
		PasswordHash: "hash",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, repo.Create(ctx, u))

	got, err := repo.GetByEmail(ctx, " alice@example.COM")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "user-1", got.ID)
	assert.Equal(t, "alice@example.com", got.Email)
	assert.Equal(t, "hash", got.PasswordHash)
	assert.Equal(t, domain.RoleUser, got.Role)
	assert.Nil(t, got.TwoFactorVerifiedAt)
	assert.True(t, got.CreatedAt.Equal(now))

	byID, err := repo.GetByID(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, got.Email, byID.Email)
}

func TestSQLRepository_OAuthOnlyUserHasNoHash(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.Create(ctx, &domain.User{ID: "u2", Email: "oauth@example.com", CreatedAt: now, UpdatedAt: now}))

	got, err := repo.GetByID(ctx, "u2")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.HasPassword())
}

func TestSQLRepository_NotFound(t *testing.T) {
	repo := newTestRepo(t)

	got, err := repo.GetByEmail(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = repo.GetByID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLRepository_DuplicateEmail(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.Create(ctx, &domain.User{ID: "a", Email: "dup@example.com", CreatedAt: now, UpdatedAt: now}))
	err := repo.Create(ctx, &domain.User{ID: "b", Email: "DUP@example.com", CreatedAt: now, UpdatedAt: now})
	require.Error(t, err)
	assert.True(t, db.IsUniqueViolation(err))
}

func TestSQLRepository_MarkTwoFactorVerified(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, repo.Create(ctx, &domain.User{ID: "u3", Email: "mfa@example.com", CreatedAt: now, UpdatedAt: now}))

	at := now.Add(time.Minute)
	require.NoError(t, repo.MarkTwoFactorVerified(ctx, "u3", at))

	got, err := repo.GetByID(ctx, "u3")
	require.NoError(t, err)
	require.NotNil(t, got.TwoFactorVerifiedAt)
	assert.True(t, got.TwoFactorVerifiedAt.Equal(at))
	assert.True(t, got.UpdatedAt.Equal(at))
}
