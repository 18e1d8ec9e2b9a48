package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/db/dbtest"
	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/passkey/domain"
	userdomain "github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/user/domain"
	userrepo "github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/user/repository"
)

func setup(t *testing.T, userIDs ...string) *SQLRepository {
	conn, sb := dbtest.OpenSQLite(t)
	users := userrepo.NewSQLRepository(conn, sb)
	now := time.Now().UTC()
	for _, id := range userIDs {
		require.NoError(t, users.Create(context.Background(), &userdomain.User{
			ID: id, Email: id + "@example.com", CreatedAt: now, UpdatedAt: now,
		}))
	}
	return NewSQLRepository(conn, sb)
}

func newAuthenticator(id, userID, credID string, created time.Time) *domain.Authenticator {
	return &domain.Authenticator{
		ID:                  id,
		UserID:              userID,
		CredentialID:        credID,
		CredentialPublicKey: []byte{0xA5, 0x01, 0x02},
		Counter:             0,
		DeviceType:          domain.DeviceTypeMulti,
		BackedUp:            true,
		Transports:          []string{"internal", "hybrid"},
		CreatedAt:           created,
	}
}

func TestSQLRepository_CreateAndGetByCredentialID(t *testing.T) {
	repo := setup(t, "u1")
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, repo.Create(ctx, newAuthenticator("a1", "u1", "cred-1", now)))

	got, err := repo.GetByCredentialID(ctx, "cred-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "a1", got.ID)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, []byte{0xA5, 0x01, 0x02}, got.CredentialPublicKey)
	assert.Equal(t, domain.DeviceTypeMulti, got.DeviceType)
	assert.True(t, got.BackedUp)
	assert.Equal(t, []string{"internal", "hybrid"}, got.Transports)
	assert.Nil(t, got.LastUsedAt)

	missing, err := repo.GetByCredentialID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSQLRepository_DuplicateCredential(t *testing.T) {
	repo := setup(t, "u1", "u2")
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.Create(ctx, newAuthenticator("a1", "u1", "cred-1", now)))
	err := repo.Create(ctx, newAuthenticator("a2", "u2", "cred-1", now))
	assert.ErrorIs(t, err, ErrDuplicateCredential)
}

func TestSQLRepository_ListAndCount(t *testing.T) {
	repo := setup(t, "u1", "u2")
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, repo.Create(ctx, newAuthenticator("a2", "u1", "cred-2", base.Add(time.Minute))))
	require.NoError(t, repo.Create(ctx, newAuthenticator("a1", "u1", "cred-1", base)))
	require.NoError(t, repo.Create(ctx, newAuthenticator("a3", "u2", "cred-3", base)))

	list, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a1", list[0].ID)
	assert.Equal(t, "a2", list[1].ID)

	n, err := repo.CountByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = repo.CountByUser(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSQLRepository_UpdateCounter(t *testing.T) {
	repo := setup(t, "u1")
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, repo.Create(ctx, newAuthenticator("a1", "u1", "cred-1", now)))
	used := now.Add(2 * time.Minute)
	require.NoError(t, repo.UpdateCounter(ctx, "a1", 42, used))

	got, err := repo.GetByCredentialID(ctx, "cred-1")
	require.NoError(t, err)
	assert.Equal(t, uint32(42), got.Counter)
	require.NotNil(t, got.LastUsedAt)
	assert.True(t, got.LastUsedAt.Equal(used))
}

func TestSQLRepository_DeleteByUser(t *testing.T) {
	repo := setup(t, "u1", "u2")
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.Create(ctx, newAuthenticator("a1", "u1", "cred-1", now)))

	deleted, err := repo.DeleteByUser(ctx, "u2", "a1")
	require.NoError(t, err)
	assert.False(t, deleted, "another user must not delete the passkey")

	deleted, err = repo.DeleteByUser(ctx, "u1", "a1")
	require.NoError(t, err)
	assert.True(t, deleted)

	n, err := repo.CountByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
