package model

import (
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
)

func TestRecord_LockPredicates(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ms := now.UnixMilli()

	for _, tc := range []struct {
		lockUntil     int64
		locked, stale bool
	}{
		{0, false, false},
		{ms + 1, true, false},
		{ms, false, true},
		{ms - 1000, false, true},
	} {
		r := Record{LockUntil: tc.lockUntil}
		if r.IsLocked(now) != tc.locked || r.HasStaleLock(now) != tc.stale {
			t.Fatalf("lockUntil=%d: locked=%v stale=%v", tc.lockUntil, r.IsLocked(now), r.HasStaleLock(now))
		}
	}

	if !(&Record{}).LockDeadline().IsZero() {
		t.Fatalf("unset lock must have zero deadline")
	}
	if got := (&Record{LockUntil: ms}).LockDeadline(); !got.Equal(now) {
		t.Fatalf("LockDeadline=%v, want %v", got, now)
	}
}

func TestFilter_Matches(t *testing.T) {
	t.Parallel()
	id := uuid.Must(uuid.NewV4())
	r := &Record{ID: id, Username: "user1"}

	if !ByID(id).Matches(r) || !ByUsername("user1").Matches(r) || !(Filter{ID: id, Username: "user1"}).Matches(r) {
		t.Fatalf("expected matches")
	}
	if (Filter{ID: id, Username: "other"}).Matches(r) || (Filter{}).Matches(r) || ByID(id).Matches(nil) {
		t.Fatalf("unexpected match")
	}
	if !(Filter{}).IsEmpty() || ByUsername("x").IsEmpty() {
		t.Fatalf("IsEmpty wrong")
	}
}

func TestUpdate_Apply(t *testing.T) {
	t.Parallel()
	if !(Update{}).IsZero() || (Update{UnsetLockUntil: true}).IsZero() {
		t.Fatalf("IsZero wrong")
	}

	r := Record{AuthAttempts: 7, LockUntil: 99, Password: "old"}
	Update{AuthAttempts: IntPtr(0), IncAuthAttempts: 1, UnsetLockUntil: true}.Apply(&r)
	if r.AuthAttempts != 1 || r.LockUntil != 0 {
		t.Fatalf("set-then-inc/unset: %+v", r)
	}

	pw := "new"
	upd := Update{IncAuthAttempts: 2, LockUntil: Int64Ptr(42), Password: &pw}
	if !upd.TouchesPassword() {
		t.Fatalf("TouchesPassword must be true")
	}
	upd.Apply(&r)
	if r.AuthAttempts != 3 || r.LockUntil != 42 || r.Password != "new" {
		t.Fatalf("inc/lock/password: %+v", r)
	}
}
