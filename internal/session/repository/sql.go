package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/session/domain"
)

var sessionColumns = []string{
	"id", "user_id", "auth_methods", "expires_at", "revoked_at", "last_seen_at",
	"ip_address", "user_agent", "refresh_jti", "refresh_token_hash", "created_at",
}

// SQLRepository persists sessions with squirrel-built SQL.
type SQLRepository struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

// NewSQLRepository returns a session repository that uses the given db for persistence.
func NewSQLRepository(db *sql.DB, sb sq.StatementBuilderType) *SQLRepository {
	return &SQLRepository{db: db, sb: sb}
}

// GetByID returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *SQLRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	sqlStr, args, err := r.sb.Select(sessionColumns...).From("sessions").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	var (
		s         domain.Session
		methods   string
		revokedAt sql.NullTime
		lastSeen  sql.NullTime
	)
	err = r.db.QueryRowContext(ctx, sqlStr, args...).Scan(
		&s.ID, &s.UserID, &methods, &s.ExpiresAt, &revokedAt, &lastSeen,
		&s.IPAddress, &s.UserAgent, &s.RefreshJti, &s.RefreshTokenHash, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	s.AuthMethods = domain.SplitMethods(methods)
	s.RevokedAt = nullTimeToPtr(revokedAt)
	s.LastSeenAt = nullTimeToPtr(lastSeen)
	return &s, nil
}

// Create persists the session to the database. The session must have ID set.
func (r *SQLRepository) Create(ctx context.Context, s *domain.Session) error {
	sqlStr, args, err := r.sb.Insert("sessions").
		Columns(sessionColumns...).
		Values(s.ID, s.UserID, domain.JoinMethods(s.AuthMethods), s.ExpiresAt.UTC(),
			timeToNullTime(s.RevokedAt), timeToNullTime(s.LastSeenAt),
			s.IPAddress, s.UserAgent, s.RefreshJti, s.RefreshTokenHash, s.CreatedAt.UTC()).
		ToSql()
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

// Revoke marks the session with the given id as revoked. Returns an error if the update fails.
func (r *SQLRepository) Revoke(ctx context.Context, id string) error {
	return r.exec(ctx, r.sb.Update("sessions").
		Set("revoked_at", time.Now().UTC()).
		Where(sq.Eq{"id": id, "revoked_at": nil}))
}

// RevokeAllSessionsByUser revokes all sessions for the given user. Returns an error if the update fails.
func (r *SQLRepository) RevokeAllSessionsByUser(ctx context.Context, userID string) error {
	return r.exec(ctx, r.sb.Update("sessions").
		Set("revoked_at", time.Now().UTC()).
		Where(sq.Eq{"user_id": userID, "revoked_at": nil}))
}

// UpdateLastSeen sets the session's last-seen timestamp for the given id. Returns an error if the update fails.
func (r *SQLRepository) UpdateLastSeen(ctx context.Context, id string, at time.Time) error {
	return r.exec(ctx, r.sb.Update("sessions").Set("last_seen_at", at.UTC()).Where(sq.Eq{"id": id}))
}

// UpdateRefreshToken sets the session's current refresh token jti and hash for rotation. Returns an error if the update fails.
func (r *SQLRepository) UpdateRefreshToken(ctx context.Context, sessionID, jti, refreshTokenHash string) error {
	return r.exec(ctx, r.sb.Update("sessions").
		Set("refresh_jti", jti).
		Set("refresh_token_hash", refreshTokenHash).
		Where(sq.Eq{"id": sessionID}))
}

func (r *SQLRepository) exec(ctx context.Context, query sq.UpdateBuilder) error {
	sqlStr, args, err := query.ToSql()
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func timeToNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullTimeToPtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	return &n.Time
}
