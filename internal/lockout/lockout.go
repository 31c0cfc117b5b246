// Package lockout implements the failed-attempt counter and temporary lock rules
// for a single credential record. It performs no I/O: every transition returns the
// partial update the caller must persist.
package lockout

import (
	"time"

	"github.com/and161185/credguard/internal/model"
)

// Defaults applied when a Policy field is zero.
const (
	DefaultMaxAttempts = 15
	DefaultLockTime    = time.Hour
)

// Policy controls when repeated failures lock an account and for how long.
type Policy struct {
	MaxAttempts int           // failed attempts that engage the lock
	LockTime    time.Duration // lock duration, fixed when the lock is set
}

func (p Policy) maxAttempts() int {
	if p.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return p.MaxAttempts
}

func (p Policy) lockTime() time.Duration {
	if p.LockTime <= 0 {
		return DefaultLockTime
	}
	return p.LockTime
}

// OnFailure records a failed attempt (wrong password, or any probe while locked).
//
// An expired lock is cleared and the counter restarts at 1. Otherwise the counter
// is incremented and, if it reaches MaxAttempts while the record is not already
// locked, a lock is set until now+LockTime. Probes during an active lock never
// move the deadline.
func (p Policy) OnFailure(rec model.Record, now time.Time) model.Update {
	if rec.HasStaleLock(now) {
		return model.Update{
			AuthAttempts:   model.IntPtr(1),
			UnsetLockUntil: true,
		}
	}

	upd := model.Update{IncAuthAttempts: 1}
	if rec.AuthAttempts+1 >= p.maxAttempts() && !rec.IsLocked(now) {
		upd.LockUntil = model.Int64Ptr(now.Add(p.lockTime()).UnixMilli())
	}
	return upd
}

// OnSuccess resets the counter and any lock after a verified password.
// It returns false when the record is already clean and nothing must be written.
func (p Policy) OnSuccess(rec model.Record) (model.Update, bool) {
	if rec.AuthAttempts == 0 && rec.LockUntil == 0 {
		return model.Update{}, false
	}
	return Reset(), true
}

// Reset is the update that clears the counter and the lock.
func Reset() model.Update {
	return model.Update{
		AuthAttempts:   model.IntPtr(0),
		UnsetLockUntil: true,
	}
}

// Engages reports whether upd sets a new lock deadline.
func Engages(upd model.Update) bool { return upd.LockUntil != nil }
