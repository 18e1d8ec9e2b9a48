package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/db"
	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/passkey/domain"
)

// ErrDuplicateCredential is returned by Create when the credential ID already exists.
var ErrDuplicateCredential = errors.New("credential already registered")

var authenticatorColumns = []string{
	"id", "user_id", "credential_id", "credential_public_key", "counter",
	"credential_device_type", "credential_backed_up", "transports", "created_at", "last_used_at",
}

// SQLRepository persists authenticators with squirrel-built SQL; it works against Postgres and SQLite.
type SQLRepository struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

// NewSQLRepository returns an authenticator repository that uses db for persistence.
func NewSQLRepository(db *sql.DB, sb sq.StatementBuilderType) *SQLRepository {
	return &SQLRepository{db: db, sb: sb}
}

// Create persists a. The authenticator must have ID set.
func (r *SQLRepository) Create(ctx context.Context, a *domain.Authenticator) error {
	transports, err := json.Marshal(nonNil(a.Transports))
	if err != nil {
		return fmt.Errorf("encode transports: %w", err)
	}
	var lastUsed sql.NullTime
	if a.LastUsedAt != nil {
		lastUsed = sql.NullTime{Time: a.LastUsedAt.UTC(), Valid: true}
	}
	query := r.sb.Insert("authenticators").
		Columns(authenticatorColumns...).
		Values(a.ID, a.UserID, a.CredentialID, a.CredentialPublicKey, int64(a.Counter),
			string(a.DeviceType), a.BackedUp, string(transports), a.CreatedAt.UTC(), lastUsed)

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, sqlStr, args...); err != nil {
		if db.IsUniqueViolation(err) {
			return ErrDuplicateCredential
		}
		return err
	}
	return nil
}

// GetByCredentialID returns the authenticator with the given credential ID, or nil if not found.
func (r *SQLRepository) GetByCredentialID(ctx context.Context, credentialID string) (*domain.Authenticator, error) {
	sqlStr, args, err := r.sb.Select(authenticatorColumns...).
		From("authenticators").
		Where(sq.Eq{"credential_id": credentialID}).
		ToSql()
	if err != nil {
		return nil, err
	}
	a, err := scanAuthenticator(r.db.QueryRowContext(ctx, sqlStr, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

// ListByUser returns the user's authenticators, oldest first.
func (r *SQLRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Authenticator, error) {
	sqlStr, args, err := r.sb.Select(authenticatorColumns...).
		From("authenticators").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Authenticator
	for rows.Next() {
		a, err := scanAuthenticator(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CountByUser returns how many authenticators the user owns.
func (r *SQLRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	sqlStr, args, err := r.sb.Select("COUNT(*)").From("authenticators").Where(sq.Eq{"user_id": userID}).ToSql()
	if err != nil {
		return 0, err
	}
	var n int
	if err := r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// UpdateCounter stores the latest signature counter and last-used time.
func (r *SQLRepository) UpdateCounter(ctx context.Context, id string, counter uint32, usedAt time.Time) error {
	sqlStr, args, err := r.sb.Update("authenticators").
		Set("counter", int64(counter)).
		Set("last_used_at", usedAt.UTC()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

// DeleteByUser deletes the authenticator when it is owned by userID.
func (r *SQLRepository) DeleteByUser(ctx context.Context, userID, id string) (bool, error) {
	sqlStr, args, err := r.sb.Delete("authenticators").
		Where(sq.Eq{"id": id, "user_id": userID}).
		ToSql()
	if err != nil {
		return false, err
	}
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAuthenticator(row rowScanner) (*domain.Authenticator, error) {
	var (
		a          domain.Authenticator
		counter    int64
		deviceType string
		transports string
		lastUsed   sql.NullTime
	)
	if err := row.Scan(
		&a.ID, &a.UserID, &a.CredentialID, &a.CredentialPublicKey, &counter,
		&deviceType, &a.BackedUp, &transports, &a.CreatedAt, &lastUsed,
	); err != nil {
		return nil, err
	}
	a.Counter = uint32(counter)
	a.DeviceType = domain.DeviceType(deviceType)
	if transports != "" {
		if err := json.Unmarshal([]byte(transports), &a.Transports); err != nil {
			return nil, fmt.Errorf("decode transports: %w", err)
		}
	}
	if lastUsed.Valid {
		t := lastUsed.Time
		a.LastUsedAt = &t
	}
	return &a, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
