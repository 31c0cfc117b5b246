package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/credguard/internal/errs"
	"github.com/and161185/credguard/internal/model"
	"github.com/and161185/credguard/internal/repository"
)

var _ repository.CredentialRepository = (*CredentialRepo)(nil)

// CredentialRepo implements CredentialRepository on SQLite.
type CredentialRepo struct{ db *DB }

// NewCredentialRepo constructs a credential repository.
func NewCredentialRepo(db *DB) *CredentialRepo { return &CredentialRepo{db: db} }

// FindOne selects the record matching f.
func (r *CredentialRepo) FindOne(ctx context.Context, f model.Filter) (*model.Record, error) {
	if f.IsEmpty() {
		return nil, fmt.Errorf("%w: empty filter", errs.ErrValidation)
	}
	where, args := whereClause(f)
	q := `SELECT id, username, password, auth_attempts, lock_until, created_at FROM credentials WHERE ` + where

	var (
		rec       model.Record
		lockUntil sql.NullInt64
		createdMs int64
	)
	err := r.db.Reader.QueryRowContext(ctx, q, args...).
		Scan(&rec.ID, &rec.Username, &rec.Password, &rec.AuthAttempts, &lockUntil, &createdMs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, storeErr(err)
	}
	rec.LockUntil = lockUntil.Int64
	rec.CreatedAt = time.UnixMilli(createdMs).UTC()
	return &rec, nil
}

// Create inserts a new credential row.
func (r *CredentialRepo) Create(ctx context.Context, rec *model.Record) error {
	if rec.Username == "" || rec.Password == "" {
		return fmt.Errorf("%w: username and password are required", errs.ErrValidation)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}
	const q = `INSERT INTO credentials (id, username, password, auth_attempts, lock_until, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	lockUntil := sql.NullInt64{Int64: rec.LockUntil, Valid: rec.LockUntil != 0}
	_, err := r.db.Writer.ExecContext(ctx, q,
		rec.ID.String(), rec.Username, rec.Password, rec.AuthAttempts, lockUntil, rec.CreatedAt.UnixMilli())
	switch {
	case err == nil:
		return nil
	case strings.Contains(err.Error(), "UNIQUE constraint"):
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
	where, whereArgs := whereClause(f)
	q := `UPDATE credentials SET ` + strings.Join(sets, ", ") + ` WHERE ` + where

	res, err := r.db.Writer.ExecContext(ctx, q, append(args, whereArgs...)...)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("%w: %v", errs.ErrValidation, err)
		}
		return storeErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr(err)
	}
	if n == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func whereClause(f model.Filter) (string, []any) {
	var (
		preds []string
		args  []any
	)
	if f.ID != uuid.Nil {
		preds = append(preds, "id = ?")
		args = append(args, f.ID.String())
	}
	if f.Username != "" {
		preds = append(preds, "username = ?")
		args = append(args, f.Username)
	}
	return strings.Join(preds, " AND "), args
}

func setClause(upd model.Update) ([]string, []any) {
	var (
		sets []string
		args []any
	)
	if upd.Password != nil {
		sets = append(sets, "password = ?")
		args = append(args, *upd.Password)
	}
	switch {
	case upd.AuthAttempts != nil:
		sets = append(sets, "auth_attempts = ?")
		args = append(args, *upd.AuthAttempts+upd.IncAuthAttempts)
	case upd.IncAuthAttempts != 0:
		sets = append(sets, "auth_attempts = auth_attempts + ?")
		args = append(args, upd.IncAuthAttempts)
	}
	switch {
	case upd.LockUntil != nil:
		sets = append(sets, "lock_until = ?")
		args = append(args, *upd.LockUntil)
	case upd.UnsetLockUntil:
		sets = append(sets, "lock_until = NULL")
	}
	return sets, args
}

func isConstraintViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "NOT NULL constraint") || strings.Contains(msg, "CHECK constraint")
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %w", errs.ErrStore, err)
}
