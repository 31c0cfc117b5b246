package service

import (
	"fmt"
	"time"

	"github.com/and161185/credguard/internal/crypto"
	"github.com/and161185/credguard/internal/errs"
	"github.com/and161185/credguard/internal/lockout"
)

// Defaults applied to zero-valued Options fields.
const (
	DefaultHashAlgorithm   = "bcrypt"
	DefaultSaltWorkFactor  = 10
	DefaultMaxAuthAttempts = lockout.DefaultMaxAttempts
	DefaultAccountLockTime = lockout.DefaultLockTime
)

// Options configures password hashing and the lockout policy.
// Zero values select the defaults.
type Options struct {
	HashAlgorithm   string        // bcrypt | argon2id
	SaltWorkFactor  int           // hashing cost
	MaxAuthAttempts int           // failures before the lock engages
	AccountLockTime time.Duration // lock duration

	// Now is the clock; time.Now when nil.
	Now func() time.Time
}

// Normalize validates o and fills in defaults.
func (o Options) Normalize() (Options, error) {
	if o.SaltWorkFactor < 0 || o.MaxAuthAttempts < 0 || o.AccountLockTime < 0 {
		return Options{}, fmt.Errorf("%w: options must not be negative", errs.ErrValidation)
	}
	if o.HashAlgorithm == "" {
		o.HashAlgorithm = DefaultHashAlgorithm
	}
	if o.SaltWorkFactor == 0 {
		o.SaltWorkFactor = DefaultSaltWorkFactor
	}
	if o.MaxAuthAttempts == 0 {
		o.MaxAuthAttempts = DefaultMaxAuthAttempts
	}
	if o.AccountLockTime == 0 {
		o.AccountLockTime = DefaultAccountLockTime
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o, nil
}

// Policy returns the lockout policy described by o.
func (o Options) Policy() lockout.Policy {
	return lockout.Policy{MaxAttempts: o.MaxAuthAttempts, LockTime: o.AccountLockTime}
}

// NewHasher builds the configured password hasher.
func (o Options) NewHasher() (crypto.Hasher, error) {
	return crypto.New(o.HashAlgorithm, o.SaltWorkFactor)
}
