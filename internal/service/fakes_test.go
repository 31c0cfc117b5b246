package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/and161185/credguard/internal/crypto"
	"github.com/and161185/credguard/internal/errs"
	"github.com/and161185/credguard/internal/events"
	"github.com/and161185/credguard/internal/model"
	"github.com/and161185/credguard/internal/repository"
)

type fakeRepo struct {
	mu   sync.Mutex
	recs []*model.Record

	findErr   error
	createErr error
	updateErr error

	updates []model.Update
}

var _ repository.CredentialRepository = (*fakeRepo)(nil)

func (f *fakeRepo) find(flt model.Filter) *model.Record {
	for _, r := range f.recs {
		if flt.Matches(r) {
			return r
		}
	}
	return nil
}

func (f *fakeRepo) FindOne(_ context.Context, flt model.Filter) (*model.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	r := f.find(flt)
	if r == nil {
		return nil, errs.ErrNotFound
	}
	c := *r
	return &c, nil
}

func (f *fakeRepo) Create(_ context.Context, rec *model.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if f.find(model.ByUsername(rec.Username)) != nil {
		return errs.ErrConflict
	}
	c := *rec
	f.recs = append(f.recs, &c)
	return nil
}

func (f *fakeRepo) Update(_ context.Context, flt model.Filter, upd model.Update) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	if upd.IsZero() {
		return nil
	}
	r := f.find(flt)
	if r == nil {
		return errs.ErrNotFound
	}
	f.updates = append(f.updates, upd)
	upd.Apply(r)
	return nil
}

func (f *fakeRepo) stored(username string) model.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.find(model.ByUsername(username))
}

func (f *fakeRepo) writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates)
}

// fakeHasher produces readable, comparable hashes.
type fakeHasher struct {
	hashErr    error
	compareErr error
	maxBytes   int

	hashCalls    int
	compareCalls int
}

var _ crypto.Hasher = (*fakeHasher)(nil)

func (h *fakeHasher) MaxPasswordBytes() int {
	if h.maxBytes == 0 {
		return 255
	}
	return h.maxBytes
}

func (h *fakeHasher) Hash(_ context.Context, pw string) (string, error) {
	h.hashCalls++
	if h.hashErr != nil {
		return "", h.hashErr
	}
	return "hashed:" + pw, nil
}

func (h *fakeHasher) Compare(_ context.Context, pw, hash string) (bool, error) {
	h.compareCalls++
	if h.compareErr != nil {
		return false, h.compareErr
	}
	if !strings.HasPrefix(hash, "hashed:") {
		return false, errors.New("not a fake hash")
	}
	return hash == "hashed:"+pw, nil
}

type fakePublisher struct {
	err    error
	events []events.LockEvent
}

var _ events.Publisher = (*fakePublisher)(nil)

func (p *fakePublisher) PublishLocked(_ context.Context, ev events.LockEvent) error {
	p.events = append(p.events, ev)
	return p.err
}
