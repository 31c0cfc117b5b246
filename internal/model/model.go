// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// MaxPasswordLen bounds both the plaintext accepted at write time and the stored hash.
const MaxPasswordLen = 255

// Record is the credential state of one principal. The password is stored hashed only.
type Record struct {
	ID           uuid.UUID // PK
	Username     string    // unique
	Password     string    // hash output, never plaintext once saved
	AuthAttempts int       // failed attempts since last reset (>= 0)
	LockUntil    int64     // epoch ms; 0 = not locked
	CreatedAt    time.Time

	// PasswordCorrect reports whether the candidate matched on the last Authenticate call.
	// It is never persisted.
	PasswordCorrect bool
}

// IsLocked reports whether the record is locked at the given instant.
func (r *Record) IsLocked(now time.Time) bool {
	return r.LockUntil != 0 && r.LockUntil > now.UnixMilli()
}

// HasStaleLock reports whether a lock timestamp is present but already expired.
func (r *Record) HasStaleLock(now time.Time) bool {
	return r.LockUntil != 0 && r.LockUntil <= now.UnixMilli()
}

// LockDeadline returns LockUntil as a time, or the zero time when unset.
func (r *Record) LockDeadline() time.Time {
	if r.LockUntil == 0 {
		return time.Time{}
	}
	return time.UnixMilli(r.LockUntil)
}

// Filter selects a single record. At least one key must be set; both mean AND.
type Filter struct {
	ID       uuid.UUID
	Username string
}

// ByID builds a filter on the primary key.
func ByID(id uuid.UUID) Filter { return Filter{ID: id} }

// ByUsername builds a filter on the unique username.
func ByUsername(username string) Filter { return Filter{Username: username} }

// IsEmpty reports whether the filter selects nothing.
func (f Filter) IsEmpty() bool { return f.ID == uuid.Nil && f.Username == "" }

// Matches reports whether r satisfies every key set on f.
func (f Filter) Matches(r *Record) bool {
	if f.IsEmpty() || r == nil {
		return false
	}
	if f.ID != uuid.Nil && r.ID != f.ID {
		return false
	}
	if f.Username != "" && r.Username != f.Username {
		return false
	}
	return true
}

// Update is a partial, per-record atomic change.
// IncAuthAttempts is applied after AuthAttempts when both are set.
type Update struct {
	IncAuthAttempts int
	AuthAttempts    *int
	LockUntil       *int64
	UnsetLockUntil  bool
	Password        *string // hash
}

// IsZero reports whether the update changes nothing.
func (u Update) IsZero() bool {
	return u.IncAuthAttempts == 0 && u.AuthAttempts == nil && u.LockUntil == nil &&
		!u.UnsetLockUntil && u.Password == nil
}

// TouchesPassword reports whether the update writes the password field.
func (u Update) TouchesPassword() bool { return u.Password != nil }

// Apply mutates r as the store would after a successful Update.
func (u Update) Apply(r *Record) {
	if u.AuthAttempts != nil {
		r.AuthAttempts = *u.AuthAttempts
	}
	r.AuthAttempts += u.IncAuthAttempts
	if u.UnsetLockUntil {
		r.LockUntil = 0
	}
	if u.LockUntil != nil {
		r.LockUntil = *u.LockUntil
	}
	if u.Password != nil {
		r.Password = *u.Password
	}
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// Int64Ptr returns a pointer to v.
func Int64Ptr(v int64) *int64 { return &v }
