package repository

import (
	"context"
	"database/sql"
	"errors"

	sq "github.com/Masterminds/squirrel"

	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/audit/domain"
)

var auditColumns = []string{"id", "user_id", "action", "resource", "ip", "metadata", "created_at"}

// SQLRepository persists audit logs with squirrel-built SQL.
type SQLRepository struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

// NewSQLRepository returns an audit log repository that uses the given db for persistence.
func NewSQLRepository(db *sql.DB, sb sq.StatementBuilderType) *SQLRepository {
	return &SQLRepository{db: db, sb: sb}
}

// GetByID returns the audit log for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *SQLRepository) GetByID(ctx context.Context, id string) (*domain.AuditLog, error) {
	sqlStr, args, err := r.sb.Select(auditColumns...).From("audit_logs").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	a, err := scanAuditLog(r.db.QueryRowContext(ctx, sqlStr, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

// ListByUser returns the user's audit logs, newest first, paginated by limit and offset.
func (r *SQLRepository) ListByUser(ctx context.Context, userID string, limit, offset uint64) ([]*domain.AuditLog, error) {
	sqlStr, args, err := r.sb.Select(auditColumns...).
		From("audit_logs").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC").
		Limit(limit).
		Offset(offset).
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.AuditLog
	for rows.Next() {
		a, err := scanAuditLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Create persists the audit log. The audit log must have ID set.
func (r *SQLRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	uid := sql.NullString{String: a.UserID, Valid: a.UserID != ""}
	meta := sql.NullString{String: a.Metadata, Valid: a.Metadata != ""}
	sqlStr, args, err := r.sb.Insert("audit_logs").
		Columns(auditColumns...).
		Values(a.ID, uid, a.Action, a.Resource, a.IP, meta, a.CreatedAt.UTC()).
		ToSql()
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAuditLog(row rowScanner) (*domain.AuditLog, error) {
	var (
		a    domain.AuditLog
		uid  sql.NullString
		meta sql.NullString
	)
	if err := row.Scan(&a.ID, &uid, &a.Action, &a.Resource, &a.IP, &meta, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.UserID = uid.String
	a.Metadata = meta.String
	return &a, nil
}
