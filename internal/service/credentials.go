package service

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/credguard/internal/crypto"
	"github.com/and161185/credguard/internal/errs"
	"github.com/and161185/credguard/internal/lockout"
	"github.com/and161185/credguard/internal/model"
	"github.com/and161185/credguard/internal/repository"
)

// CredentialStore wraps a repository and guarantees that passwords are hashed
// before any write reaches it.
type CredentialStore struct {
	repo   repository.CredentialRepository
	hasher crypto.Hasher
	log    *zap.Logger
}

// NewCredentialStore constructs a CredentialStore.
func NewCredentialStore(repo repository.CredentialRepository, hasher crypto.Hasher, log *zap.Logger) *CredentialStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &CredentialStore{repo: repo, hasher: hasher, log: log}
}

// Create registers a principal. The password is hashed before the insert.
func (s *CredentialStore) Create(ctx context.Context, username, password string) (*model.Record, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: empty username/password", errs.ErrValidation)
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	rec := &model.Record{ID: id, Username: username}
	upd := model.Update{Password: &password}
	if err := s.beforeSave(ctx, &upd); err != nil {
		return nil, err
	}
	upd.Apply(rec)

	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, err
	}
	s.log.Info("credential created", zap.String("user_id", rec.ID.String()), zap.String("username", username))
	return rec, nil
}

// ChangePassword replaces the password of the record matching f.
// Attempt counters and locks are left as they are.
func (s *CredentialStore) ChangePassword(ctx context.Context, f model.Filter, password string) error {
	if password == "" {
		return fmt.Errorf("%w: empty password", errs.ErrValidation)
	}
	return s.Update(ctx, f, model.Update{Password: &password})
}

// Unlock clears the attempt counter and any lock on the record matching f.
func (s *CredentialStore) Unlock(ctx context.Context, f model.Filter) error {
	if err := s.Update(ctx, f, lockout.Reset()); err != nil {
		return err
	}
	s.log.Info("credential unlocked", zap.String("user_id", f.ID.String()), zap.String("username", f.Username))
	return nil
}

// FindOne loads the record matching f.
func (s *CredentialStore) FindOne(ctx context.Context, f model.Filter) (*model.Record, error) {
	return s.repo.FindOne(ctx, f)
}

// Update applies upd to the record matching f. A password carried by upd is
// treated as plaintext and hashed first.
func (s *CredentialStore) Update(ctx context.Context, f model.Filter, upd model.Update) error {
	if err := s.beforeSave(ctx, &upd); err != nil {
		return err
	}
	return s.repo.Update(ctx, f, upd)
}

// beforeSave runs on every write and hashes the password only when the write
// modifies it. On failure nothing must be persisted.
func (s *CredentialStore) beforeSave(ctx context.Context, upd *model.Update) error {
	if !upd.TouchesPassword() {
		return nil
	}
	plain := *upd.Password
	limit := min(model.MaxPasswordLen, s.hasher.MaxPasswordBytes())
	if len(plain) > limit {
		return fmt.Errorf("%w: password exceeds %d bytes", errs.ErrValidation, limit)
	}
	hash, err := s.hasher.Hash(ctx, plain)
	if err != nil {
		return err
	}
	upd.Password = &hash
	return nil
}
