package lockout

import (
	"testing"
	"time"

	"github.com/and161185/credguard/internal/model"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func apply(rec model.Record, upd model.Update) model.Record {
	upd.Apply(&rec)
	return rec
}

func TestOnFailure_IncrementsBelowThreshold(t *testing.T) {
	t.Parallel()
	p := Policy{MaxAttempts: 5, LockTime: time.Minute}

	rec := model.Record{}
	for i := 1; i < 5; i++ {
		upd := p.OnFailure(rec, t0)
		if upd.IncAuthAttempts != 1 || upd.AuthAttempts != nil || Engages(upd) || upd.UnsetLockUntil {
			t.Fatalf("attempt %d: unexpected update %+v", i, upd)
		}
		rec = apply(rec, upd)
		if rec.AuthAttempts != i || rec.IsLocked(t0) {
			t.Fatalf("attempt %d: attempts=%d locked=%v", i, rec.AuthAttempts, rec.IsLocked(t0))
		}
	}
}

func TestOnFailure_LocksAtThreshold(t *testing.T) {
	t.Parallel()
	p := Policy{MaxAttempts: 3, LockTime: 2 * time.Second}

	rec := model.Record{AuthAttempts: 2}
	upd := p.OnFailure(rec, t0)
	if !Engages(upd) {
		t.Fatalf("third failure must engage lock: %+v", upd)
	}
	if got, want := *upd.LockUntil, t0.Add(2*time.Second).UnixMilli(); got != want {
		t.Fatalf("lockUntil=%d, want %d", got, want)
	}
	rec = apply(rec, upd)
	if rec.AuthAttempts != 3 || !rec.IsLocked(t0) {
		t.Fatalf("after lock: %+v", rec)
	}
}

func TestOnFailure_ProbeWhileLockedDoesNotExtend(t *testing.T) {
	t.Parallel()
	p := Policy{MaxAttempts: 3, LockTime: time.Hour}

	deadline := t0.Add(30 * time.Minute).UnixMilli()
	rec := model.Record{AuthAttempts: 3, LockUntil: deadline}

	upd := p.OnFailure(rec, t0.Add(time.Minute))
	if Engages(upd) || upd.UnsetLockUntil {
		t.Fatalf("probe must not touch lock: %+v", upd)
	}
	if upd.IncAuthAttempts != 1 {
		t.Fatalf("probe still counts as attempt: %+v", upd)
	}
	rec = apply(rec, upd)
	if rec.LockUntil != deadline || rec.AuthAttempts != 4 {
		t.Fatalf("after probe: %+v", rec)
	}
}

func TestOnFailure_StaleLockRestartsCount(t *testing.T) {
	t.Parallel()
	p := Policy{MaxAttempts: 3, LockTime: time.Hour}

	for _, lockUntil := range []int64{t0.UnixMilli(), t0.Add(-time.Second).UnixMilli()} {
		rec := model.Record{AuthAttempts: 7, LockUntil: lockUntil}
		upd := p.OnFailure(rec, t0)
		if upd.AuthAttempts == nil || *upd.AuthAttempts != 1 || !upd.UnsetLockUntil || upd.IncAuthAttempts != 0 || Engages(upd) {
			t.Fatalf("lockUntil=%d: want reset to 1, got %+v", lockUntil, upd)
		}
		rec = apply(rec, upd)
		if rec.AuthAttempts != 1 || rec.LockUntil != 0 {
			t.Fatalf("after stale reset: %+v", rec)
		}
	}
}

func TestOnFailure_ThresholdOfOneLocksImmediately(t *testing.T) {
	t.Parallel()
	p := Policy{MaxAttempts: 1, LockTime: time.Minute}

	if upd := p.OnFailure(model.Record{}, t0); !Engages(upd) {
		t.Fatalf("max=1 must lock on first failure: %+v", upd)
	}
}

func TestOnFailure_ZeroPolicyUsesDefaults(t *testing.T) {
	t.Parallel()
	var p Policy

	rec := model.Record{AuthAttempts: DefaultMaxAttempts - 2}
	if upd := p.OnFailure(rec, t0); Engages(upd) {
		t.Fatalf("below default threshold must not lock")
	}
	rec.AuthAttempts = DefaultMaxAttempts - 1
	upd := p.OnFailure(rec, t0)
	if !Engages(upd) || *upd.LockUntil != t0.Add(DefaultLockTime).UnixMilli() {
		t.Fatalf("default threshold/lock time not applied: %+v", upd)
	}
}

func TestOnSuccess(t *testing.T) {
	t.Parallel()
	var p Policy

	if upd, write := p.OnSuccess(model.Record{}); write || !upd.IsZero() {
		t.Fatalf("clean record must be a no-op, got write=%v upd=%+v", write, upd)
	}

	for _, rec := range []model.Record{
		{AuthAttempts: 2},
		{LockUntil: t0.UnixMilli()},
		{AuthAttempts: 4, LockUntil: t0.UnixMilli()},
	} {
		upd, write := p.OnSuccess(rec)
		if !write {
			t.Fatalf("dirty record %+v must be reset", rec)
		}
		rec = apply(rec, upd)
		if rec.AuthAttempts != 0 || rec.LockUntil != 0 {
			t.Fatalf("after reset: %+v", rec)
		}
	}
}
