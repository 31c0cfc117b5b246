// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/and161185/credguard/internal/model"
)

// CredentialRepository is the narrow record-store contract consumed by the
// credential services. Implementations classify failures as errs.ErrNotFound,
// errs.ErrConflict, errs.ErrValidation or errs.ErrStore.
type CredentialRepository interface {
	// FindOne loads the single record matching f, or errs.ErrNotFound.
	FindOne(ctx context.Context, f model.Filter) (*model.Record, error)
	// Create inserts a new record whose password is already hashed.
	Create(ctx context.Context, r *model.Record) error
	// Update applies upd atomically to the record matching f.
	Update(ctx context.Context, f model.Filter, upd model.Update) error
}
