package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/credguard/internal/errs"
	"github.com/and161185/credguard/internal/model"
	"github.com/and161185/credguard/internal/repository"
)

var _ repository.CredentialRepository = (*CredentialRepo)(nil)

// CredentialRepo implements CredentialRepository using PostgreSQL.
type CredentialRepo struct{ db *DB }

// NewCredentialRepo constructs a credential repository.
func NewCredentialRepo(db *DB) *CredentialRepo { return &CredentialRepo{db: db} }

// FindOne selects the record matching f.
func (r *CredentialRepo) FindOne(ctx context.Context, f model.Filter) (*model.Record, error) {
	if f.IsEmpty() {
		return nil, fmt.Errorf("%w: empty filter", errs.ErrValidation)
	}
	where, args := whereClause(f, 1)
	q := `
SELECT id, username, password, auth_attempts, lock_until, created_at
FROM credentials WHERE ` + where

	var (
		rec       model.Record
		lockUntil *int64
	)
	err := r.db.Pool.QueryRow(ctx, q, args...).
		Scan(&rec.ID, &rec.Username, &rec.Password, &rec.AuthAttempts, &lockUntil, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, storeErr(err)
	}
	if lockUntil != nil {
		rec.LockUntil = *lockUntil
	}
	return &rec, nil
}

// Create inserts a new credential row and fills CreatedAt.
func (r *CredentialRepo) Create(ctx context.Context, rec *model.Record) error {
	if rec.Username == "" || rec.Password == "" {
		return fmt.Errorf("%w: username and password are required", errs.ErrValidation)
	}
	const q = `
INSERT INTO credentials (id, username, password, auth_attempts, lock_until)
VALUES ($1, $2, $3, $4, $5)
RETURNING created_at`
	err := r.db.Pool.QueryRow(ctx, q, rec.ID, rec.Username, rec.Password, rec.AuthAttempts, nullableMillis(rec.LockUntil)).
		Scan(&rec.CreatedAt)
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err):
		return fmt.Errorf("%w: username %q", errs.ErrConflict, rec.Username)
	case isConstraintViolation(err):
		return fmt.Errorf("%w: %v", errs.ErrValidation, err)
	default:
		return storeErr(err)
	}
}

// Update applies upd in a single UPDATE statement.
func (r *CredentialRepo) Update(ctx context.Context, f model.Filter, upd model.Update) error {
	if f.IsEmpty() {
		return fmt.Errorf("%w: empty filter", errs.ErrValidation)
	}
	if upd.IsZero() {
		return nil
	}
	sets, args := setClause(upd)
	where, whereArgs := whereClause(f, len(args)+1)
	q := `UPDATE credentials SET ` + strings.Join(sets, ", ") + ` WHERE ` + where

	tag, err := r.db.Pool.Exec(ctx, q, append(args, whereArgs...)...)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("%w: %v", errs.ErrValidation, err)
		}
		return storeErr(err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// whereClause renders f as positional predicates starting at $start.
func whereClause(f model.Filter, start int) (string, []any) {
	var (
		preds []string
		args  []any
	)
	if f.ID != uuid.Nil {
		args = append(args, f.ID)
		preds = append(preds, fmt.Sprintf("id=$%d", start+len(args)-1))
	}
	if f.Username != "" {
		args = append(args, f.Username)
		preds = append(preds, fmt.Sprintf("username=$%d", start+len(args)-1))
	}
	return strings.Join(preds, " AND "), args
}

// setClause renders upd as SET assignments starting at $1.
func setClause(upd model.Update) ([]string, []any) {
	var (
		sets []string
		args []any
	)
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if upd.Password != nil {
		sets = append(sets, "password = "+next(*upd.Password))
	}
	switch {
	case upd.AuthAttempts != nil:
		sets = append(sets, "auth_attempts = "+next(*upd.AuthAttempts+upd.IncAuthAttempts))
	case upd.IncAuthAttempts != 0:
		sets = append(sets, "auth_attempts = auth_attempts + "+next(upd.IncAuthAttempts))
	}
	switch {
	case upd.LockUntil != nil:
		sets = append(sets, "lock_until = "+next(*upd.LockUntil))
	case upd.UnsetLockUntil:
		sets = append(sets, "lock_until = NULL")
	}
	return sets, args
}

func nullableMillis(v int64) *int64 {
	if v == 0 {
		return nil
	}
	return &v
}
