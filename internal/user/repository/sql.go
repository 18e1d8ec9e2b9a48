package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/user/domain"
)

var userColumns = []string{
	"id", "email", "name", "password_hash", "role", "two_factor_verified_at", "created_at", "updated_at",
}

// SQLRepository persists users with squirrel-built SQL; it works against Postgres and SQLite.
type SQLRepository struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

// NewSQLRepository returns a user repository that uses db for persistence and sb for placeholders.
func NewSQLRepository(db *sql.DB, sb sq.StatementBuilderType) *SQLRepository {
	return &SQLRepository{db: db, sb: sb}
}

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *SQLRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.queryOne(ctx, r.sb.Select(userColumns...).From("users").Where(sq.Eq{"id": id}))
}

// GetByEmail returns the user with the given email, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *SQLRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.queryOne(ctx, r.sb.Select(userColumns...).From("users").Where(sq.Eq{"email": domain.NormalizeEmail(email)}))
}

// Create persists the user to the database. The user must have ID set; it is not assigned by this method.
func (r *SQLRepository) Create(ctx context.Context, u *domain.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	hash := sql.NullString{String: u.PasswordHash, Valid: u.PasswordHash != ""}
	query := r.sb.Insert("users").
		Columns(userColumns...).
		Values(u.ID, domain.NormalizeEmail(u.Email), u.Name, hash, string(u.Role),
			timeToNullTime(u.TwoFactorVerifiedAt), u.CreatedAt.UTC(), u.UpdatedAt.UTC())

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

// MarkTwoFactorVerified stamps two_factor_verified_at and updated_at for userID.
func (r *SQLRepository) MarkTwoFactorVerified(ctx context.Context, userID string, at time.Time) error {
	query := r.sb.Update("users").
		Set("two_factor_verified_at", at.UTC()).
		Set("updated_at", at.UTC()).
		Where(sq.Eq{"id": userID})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *SQLRepository) queryOne(ctx context.Context, query sq.SelectBuilder) (*domain.User, error) {
	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	var (
		u          domain.User
		role       string
		hash       sql.NullString
		verifiedAt sql.NullTime
	)
	err = r.db.QueryRowContext(ctx, sqlStr, args...).Scan(
		&u.ID, &u.Email, &u.Name, &hash, &role, &verifiedAt, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	u.Role = domain.Role(role)
	if hash.Valid {
		u.PasswordHash = hash.String
	}
	if verifiedAt.Valid {
		t := verifiedAt.Time
		u.TwoFactorVerifiedAt = &t
	}
	return &u, nil
}

func timeToNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
