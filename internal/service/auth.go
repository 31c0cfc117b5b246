// Package service composes the credential store, password hashing and the
// lockout policy into the operations exposed to callers.
package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/credguard/internal/crypto"
	"github.com/and161185/credguard/internal/errs"
	"github.com/and161185/credguard/internal/events"
	"github.com/and161185/credguard/internal/lockout"
	"github.com/and161185/credguard/internal/model"
	"github.com/and161185/credguard/internal/repository"
)

// Outcome classifies an authentication attempt.
type Outcome int

const (
	// OutcomeNotFound means no record matched the filter. Nothing was written.
	OutcomeNotFound Outcome = iota
	// OutcomeLocked means the account is locked; the password was not accepted.
	OutcomeLocked
	// OutcomeWrongPassword means the candidate did not match and the account is still open.
	OutcomeWrongPassword
	// OutcomeSuccess means the candidate matched.
	OutcomeSuccess
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNotFound:
		return "not_found"
	case OutcomeLocked:
		return "locked"
	case OutcomeWrongPassword:
		return "wrong_password"
	case OutcomeSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// Result is returned by Authenticate. Record is nil for OutcomeNotFound and
// otherwise reflects the state after the attempt was recorded.
type Result struct {
	Outcome Outcome
	Record  *model.Record
}

// Authenticated reports whether the candidate was accepted.
func (r Result) Authenticated() bool { return r.Outcome == OutcomeSuccess }

// Err maps the outcome onto the error sentinels; nil on success.
func (r Result) Err() error {
	switch r.Outcome {
	case OutcomeSuccess:
		return nil
	case OutcomeNotFound:
		return errs.ErrNotFound
	case OutcomeLocked:
		return errs.ErrLocked
	default:
		return errs.ErrUnauthorized
	}
}

// RecordStore is the part of the credential store the authenticator needs.
type RecordStore interface {
	FindOne(ctx context.Context, f model.Filter) (*model.Record, error)
	Update(ctx context.Context, f model.Filter, upd model.Update) error
}

var _ RecordStore = (*CredentialStore)(nil)

// Authenticator verifies candidate passwords and maintains the lockout state.
type Authenticator struct {
	store  RecordStore
	hasher crypto.Hasher
	policy lockout.Policy
	now    func() time.Time
	pub    events.Publisher
	log    *zap.Logger
}

// NewAuthenticator constructs an Authenticator. Options are validated once here.
// A nil publisher disables lock events; a nil logger discards logs.
func NewAuthenticator(store RecordStore, hasher crypto.Hasher, opts Options, pub events.Publisher, log *zap.Logger) (*Authenticator, error) {
	opts, err := opts.Normalize()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Authenticator{
		store:  store,
		hasher: hasher,
		policy: opts.Policy(),
		now:    opts.Now,
		pub:    pub,
		log:    log,
	}, nil
}

// New wires a CredentialStore and an Authenticator sharing one hasher built from opts.
func New(repo repository.CredentialRepository, opts Options, pub events.Publisher, log *zap.Logger) (*CredentialStore, *Authenticator, error) {
	opts, err := opts.Normalize()
	if err != nil {
		return nil, nil, err
	}
	hasher, err := opts.NewHasher()
	if err != nil {
		return nil, nil, err
	}
	store := NewCredentialStore(repo, hasher, log)
	auth, err := NewAuthenticator(store, hasher, opts, pub, log)
	if err != nil {
		return nil, nil, err
	}
	return store, auth, nil
}

// Authenticate checks candidate against the record matching f and records the attempt.
//
// A locked account is refused without comparing the password, and the probe is
// counted. A wrong password is counted and may engage the lock. A correct
// password clears any counter and lock. An unknown principal yields
// OutcomeNotFound with a nil error. Errors are returned only for store and
// hashing failures; in that case nothing beyond the failed step was written.
func (a *Authenticator) Authenticate(ctx context.Context, f model.Filter, candidate string) (Result, error) {
	rec, err := a.store.FindOne(ctx, f)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return Result{Outcome: OutcomeNotFound}, nil
		}
		return Result{}, err
	}
	rec.PasswordCorrect = false
	now := a.now()

	if rec.IsLocked(now) {
		if err := a.recordFailure(ctx, rec, now); err != nil {
			return Result{}, err
		}
		return Result{Outcome: OutcomeLocked, Record: rec}, nil
	}

	ok, err := a.hasher.Compare(ctx, candidate, rec.Password)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		if err := a.recordFailure(ctx, rec, now); err != nil {
			return Result{}, err
		}
		if rec.IsLocked(now) {
			return Result{Outcome: OutcomeLocked, Record: rec}, nil
		}
		return Result{Outcome: OutcomeWrongPassword, Record: rec}, nil
	}

	rec.PasswordCorrect = true
	if upd, write := a.policy.OnSuccess(*rec); write {
		if err := a.store.Update(ctx, model.ByID(rec.ID), upd); err != nil {
			return Result{}, err
		}
		a.log.Debug("auth attempts reset",
			zap.String("user_id", rec.ID.String()),
			zap.Int("previous_attempts", rec.AuthAttempts),
		)
		upd.Apply(rec)
	}
	return Result{Outcome: OutcomeSuccess, Record: rec}, nil
}

// recordFailure persists a failed attempt and mirrors it onto rec.
func (a *Authenticator) recordFailure(ctx context.Context, rec *model.Record, now time.Time) error {
	upd := a.policy.OnFailure(*rec, now)
	if err := a.store.Update(ctx, model.ByID(rec.ID), upd); err != nil {
		return err
	}
	if upd.UnsetLockUntil {
		a.log.Debug("stale lock cleared",
			zap.String("user_id", rec.ID.String()),
			zap.Time("expired_at", rec.LockDeadline()),
		)
	}
	upd.Apply(rec)

	if !lockout.Engages(upd) {
		return nil
	}
	a.log.Warn("account locked",
		zap.String("user_id", rec.ID.String()),
		zap.String("username", rec.Username),
		zap.Int("attempts", rec.AuthAttempts),
		zap.Time("lock_until", rec.LockDeadline()),
	)
	if a.pub == nil {
		return nil
	}
	ev := events.LockEvent{
		UserID:     rec.ID.String(),
		Username:   rec.Username,
		Attempts:   rec.AuthAttempts,
		LockUntil:  rec.LockDeadline(),
		OccurredAt: now,
	}
	// the lock is already persisted; delivery is best-effort
	if err := a.pub.PublishLocked(ctx, ev); err != nil {
		a.log.Error("publish lock event", zap.String("user_id", ev.UserID), zap.Error(err))
	}
	return nil
}
