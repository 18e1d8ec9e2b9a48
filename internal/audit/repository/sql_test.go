package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/audit/domain"
	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/db/dbtest"
)

func TestSQLRepository_CreateAndGet(t *testing.T) {
	conn, sb := dbtest.OpenSQLite(t)
	repo := NewSQLRepository(conn, sb)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, repo.Create(ctx, &domain.AuditLog{
		ID: "a1", UserID: "u1", Action: domain.ActionSignInPassword, Resource: domain.ResourceAuthentication,
		IP: "203.0.113.1", Metadata: "email=a***@example.com", CreatedAt: now,
	}))
	require.NoError(t, repo.Create(ctx, &domain.AuditLog{
		ID: "a2", Action: domain.ActionSignInFailure, Resource: domain.ResourceAuthentication,
		IP: "unknown", CreatedAt: now,
	}))

	got, err := repo.GetByID(ctx, "a1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, domain.ActionSignInPassword, got.Action)
	assert.Equal(t, "email=a***@example.com", got.Metadata)
	assert.True(t, got.CreatedAt.Equal(now))

	anon, err := repo.GetByID(ctx, "a2")
	require.NoError(t, err)
	assert.Empty(t, anon.UserID)
	assert.Empty(t, anon.Metadata)

	missing, err := repo.GetByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSQLRepository_ListByUser(t *testing.T) {
	conn, sb := dbtest.OpenSQLite(t)
	repo := NewSQLRepository(conn, sb)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	for i, id := range []string{"a1", "a2", "a3"} {
		require.NoError(t, repo.Create(ctx, &domain.AuditLog{
			ID: id, UserID: "u1", Action: domain.ActionTwoFactorVerified, Resource: domain.ResourceAuthentication,
			IP: "unknown", CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, repo.Create(ctx, &domain.AuditLog{
		ID: "b1", UserID: "u2", Action: domain.ActionSignOut, Resource: domain.ResourceSession, IP: "unknown", CreatedAt: base,
	}))

	list, err := repo.ListByUser(ctx, "u1", 2, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a3", list[0].ID)
	assert.Equal(t, "a2", list[1].ID)

	rest, err := repo.ListByUser(ctx, "u1", 10, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "a1", rest[0].ID)
}
