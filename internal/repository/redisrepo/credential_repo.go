// Package redisrepo contains a Redis implementation of the credential repository.
// Each record is a hash at <prefix>:cred:<id>; <prefix>:cred:username:<name>
// indexes the unique username.
package redisrepo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/redis/go-redis/v9"

	"github.com/and161185/credguard/internal/errs"
	"github.com/and161185/credguard/internal/model"
	"github.com/and161185/credguard/internal/repository"
)

// DefaultPrefix namespaces keys when none is configured.
const DefaultPrefix = "credguard"

const (
	fieldID           = "id"
	fieldUsername     = "username"
	fieldPassword     = "password"
	fieldAuthAttempts = "auth_attempts"
	fieldLockUntil    = "lock_until"
	fieldCreatedAt    = "created_at"
)

// createScript inserts the record and claims the username in one step.
// KEYS: record, username index. ARGV: id, username, password, attempts, lock_until, created_at.
var createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[2]) == 1 or redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('SET', KEYS[2], ARGV[1])
redis.call('HSET', KEYS[1], 'id', ARGV[1], 'username', ARGV[2], 'password', ARGV[3],
  'auth_attempts', ARGV[4], 'created_at', ARGV[6])
if ARGV[5] ~= '0' then
  redis.call('HSET', KEYS[1], 'lock_until', ARGV[5])
end
return 1
`)

var _ repository.CredentialRepository = (*CredentialRepo)(nil)

// CredentialRepo implements CredentialRepository on Redis hashes.
type CredentialRepo struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewCredentialRepo constructs a credential repository under the given key prefix.
func NewCredentialRepo(rdb redis.UniversalClient, prefix string) *CredentialRepo {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &CredentialRepo{rdb: rdb, prefix: prefix}
}

func (r *CredentialRepo) recordKey(id string) string { return r.prefix + ":cred:" + id }

func (r *CredentialRepo) usernameKey(name string) string {
	return r.prefix + ":cred:username:" + name
}

// FindOne loads the record matching f.
func (r *CredentialRepo) FindOne(ctx context.Context, f model.Filter) (*model.Record, error) {
	_, rec, err := r.load(ctx, f)
	return rec, err
}

// load resolves f to a record key and reads the record behind it.
func (r *CredentialRepo) load(ctx context.Context, f model.Filter) (string, *model.Record, error) {
	key, err := r.resolve(ctx, f)
	if err != nil {
		return "", nil, err
	}
	vals, err := r.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return "", nil, storeErr(err)
	}
	if len(vals) == 0 {
		return "", nil, errs.ErrNotFound
	}
	rec, err := decode(vals)
	if err != nil {
		return "", nil, storeErr(err)
	}
	if !f.Matches(rec) {
		return "", nil, errs.ErrNotFound
	}
	return key, rec, nil
}

// Create stores a new record; the username must not be taken.
func (r *CredentialRepo) Create(ctx context.Context, rec *model.Record) error {
	switch {
	case rec.ID == uuid.Nil:
		return fmt.Errorf("%w: id is required", errs.ErrValidation)
	case rec.Username == "" || rec.Password == "":
		return fmt.Errorf("%w: username and password are required", errs.ErrValidation)
	case len(rec.Password) > model.MaxPasswordLen:
		return fmt.Errorf("%w: password exceeds %d bytes", errs.ErrValidation, model.MaxPasswordLen)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}
	id := rec.ID.String()
	ok, err := createScript.Run(ctx, r.rdb,
		[]string{r.recordKey(id), r.usernameKey(rec.Username)},
		id, rec.Username, rec.Password, rec.AuthAttempts, rec.LockUntil, rec.CreatedAt.UnixMilli(),
	).Int()
	if err != nil {
		return storeErr(err)
	}
	if ok == 0 {
		return fmt.Errorf("%w: username %q", errs.ErrConflict, rec.Username)
	}
	return nil
}

// Update applies upd inside MULTI/EXEC.
func (r *CredentialRepo) Update(ctx context.Context, f model.Filter, upd model.Update) error {
	if f.IsEmpty() {
		return fmt.Errorf("%w: empty filter", errs.ErrValidation)
	}
	if upd.IsZero() {
		return nil
	}
	if upd.Password != nil && len(*upd.Password) > model.MaxPasswordLen {
		return fmt.Errorf("%w: password exceeds %d bytes", errs.ErrValidation, model.MaxPasswordLen)
	}
	// records are never deleted, so existence checked here still holds at EXEC
	key, _, err := r.load(ctx, f)
	if err != nil {
		return err
	}

	_, err = r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		if upd.Password != nil {
			p.HSet(ctx, key, fieldPassword, *upd.Password)
		}
		switch {
		case upd.AuthAttempts != nil:
			p.HSet(ctx, key, fieldAuthAttempts, *upd.AuthAttempts+upd.IncAuthAttempts)
		case upd.IncAuthAttempts != 0:
			p.HIncrBy(ctx, key, fieldAuthAttempts, int64(upd.IncAuthAttempts))
		}
		switch {
		case upd.LockUntil != nil:
			p.HSet(ctx, key, fieldLockUntil, *upd.LockUntil)
		case upd.UnsetLockUntil:
			p.HDel(ctx, key, fieldLockUntil)
		}
		return nil
	})
	if err != nil {
		return storeErr(err)
	}
	return nil
}

// resolve maps a filter to the record key.
func (r *CredentialRepo) resolve(ctx context.Context, f model.Filter) (string, error) {
	switch {
	case f.IsEmpty():
		return "", fmt.Errorf("%w: empty filter", errs.ErrValidation)
	case f.ID != uuid.Nil:
		return r.recordKey(f.ID.String()), nil
	}
	id, err := r.rdb.Get(ctx, r.usernameKey(f.Username)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", errs.ErrNotFound
		}
		return "", storeErr(err)
	}
	return r.recordKey(id), nil
}

func decode(vals map[string]string) (*model.Record, error) {
	id, err := uuid.FromString(vals[fieldID])
	if err != nil {
		return nil, fmt.Errorf("decode id: %w", err)
	}
	rec := &model.Record{ID: id, Username: vals[fieldUsername], Password: vals[fieldPassword]}
	if rec.AuthAttempts, err = atoiField(vals, fieldAuthAttempts); err != nil {
		return nil, err
	}
	lock, err := atoi64Field(vals, fieldLockUntil)
	if err != nil {
		return nil, err
	}
	rec.LockUntil = lock
	created, err := atoi64Field(vals, fieldCreatedAt)
	if err != nil {
		return nil, err
	}
	rec.CreatedAt = time.UnixMilli(created).UTC()
	return rec, nil
}

func atoiField(vals map[string]string, field string) (int, error) {
	v, err := atoi64Field(vals, field)
	return int(v), err
}

func atoi64Field(vals map[string]string, field string) (int64, error) {
	s, ok := vals[field]
	if !ok || s == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("decode %s: %w", field, err)
	}
	return v, nil
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %w", errs.ErrStore, err)
}
