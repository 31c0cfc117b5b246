// Package crypto implements server-side password hashing and verification.
package crypto

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"

	"github.com/and161185/credguard/internal/errs"
)

// Hasher is the one-way salted hash capability used for passwords at rest.
type Hasher interface {
	// Hash derives a salted hash of password.
	Hash(ctx context.Context, password string) (string, error)
	// Compare reports whether password matches hash. A mismatch is (false, nil);
	// only a malformed hash yields an error.
	Compare(ctx context.Context, password, hash string) (bool, error)
	// MaxPasswordBytes is the longest input Hash accepts, in bytes.
	MaxPasswordBytes() int
}

// BcryptMaxPasswordBytes is the input limit of the bcrypt algorithm.
const BcryptMaxPasswordBytes = 72

// Argon2idMaxPasswordBytes bounds argon2id input to the stored-field width.
const Argon2idMaxPasswordBytes = 255

// RandBytes returns n cryptographically secure random bytes.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// Bcrypt hashes passwords with bcrypt at a fixed cost.
type Bcrypt struct{ cost int }

// NewBcrypt constructs a bcrypt hasher; cost is the work factor.
func NewBcrypt(cost int) (*Bcrypt, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("%w: bcrypt cost %d out of range [%d, %d]",
			errs.ErrValidation, cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &Bcrypt{cost: cost}, nil
}

// Cost returns the configured work factor.
func (b *Bcrypt) Cost() int { return b.cost }

// MaxPasswordBytes returns the bcrypt input limit.
func (b *Bcrypt) MaxPasswordBytes() int { return BcryptMaxPasswordBytes }

// Hash returns the bcrypt hash of password. Input over 72 bytes is ErrValidation.
func (b *Bcrypt) Hash(ctx context.Context, password string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(password) > BcryptMaxPasswordBytes {
		return "", fmt.Errorf("%w: password exceeds %d bytes", errs.ErrValidation, BcryptMaxPasswordBytes)
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrHashing, err)
	}
	return string(h), nil
}

// Compare checks password against a bcrypt hash in constant time.
func (b *Bcrypt) Compare(ctx context.Context, password, hash string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", errs.ErrHashing, err)
	}
}

// Argon2id parameters (tuned for server-side hashing).
const (
	argonMemory  uint32 = 64 * 1024 // 64 MB
	argonThreads uint8  = 1
	argonKeyLen  uint32 = 32
	argonSaltLen        = 16
)

// Argon2id hashes passwords with argon2id and encodes them in PHC string format:
//
//	$argon2id$v=19$m=65536,t=3,p=1$<salt>$<key>
//
// Parameters are read back from the encoded hash on Compare, so changing them
// does not invalidate existing hashes.
type Argon2id struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
}

// NewArgon2id constructs an argon2id hasher; iterations is the work factor.
func NewArgon2id(iterations int) (*Argon2id, error) {
	if iterations < 1 {
		return nil, fmt.Errorf("%w: argon2id iterations must be >= 1", errs.ErrValidation)
	}
	return &Argon2id{Time: uint32(iterations), Memory: argonMemory, Threads: argonThreads}, nil
}

// MaxPasswordBytes returns the argon2id input limit.
func (a *Argon2id) MaxPasswordBytes() int { return Argon2idMaxPasswordBytes }

// Hash returns the PHC-encoded argon2id hash of password with a fresh random salt.
func (a *Argon2id) Hash(ctx context.Context, password string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(password) > Argon2idMaxPasswordBytes {
		return "", fmt.Errorf("%w: password exceeds %d bytes", errs.ErrValidation, Argon2idMaxPasswordBytes)
	}
	salt, err := RandBytes(argonSaltLen)
	if err != nil {
		return "", fmt.Errorf("%w: salt: %v", errs.ErrHashing, err)
	}
	key := argon2.IDKey([]byte(password), salt, a.Time, a.Memory, a.Threads, argonKeyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, a.Memory, a.Time, a.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Compare checks password against a PHC-encoded argon2id hash in constant time.
func (a *Argon2id) Compare(ctx context.Context, password, hash string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	p, salt, want, err := decodeArgon2id(hash)
	if err != nil {
		return false, fmt.Errorf("%w: %v", errs.ErrHashing, err)
	}
	got := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

func decodeArgon2id(hash string) (Argon2id, []byte, []byte, error) {
	parts := strings.Split(hash, "$")
	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, key
	if len(parts) != 6 || parts[1] != "argon2id" {
		return Argon2id{}, nil, nil, errors.New("not an argon2id hash")
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return Argon2id{}, nil, nil, fmt.Errorf("bad version: %v", err)
	}
	if version != argon2.Version {
		return Argon2id{}, nil, nil, fmt.Errorf("unsupported argon2 version %d", version)
	}
	var p Argon2id
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &p.Threads); err != nil {
		return Argon2id{}, nil, nil, fmt.Errorf("bad params: %v", err)
	}
	if p.Time == 0 || p.Threads == 0 {
		return Argon2id{}, nil, nil, errors.New("bad params: zero time or threads")
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return Argon2id{}, nil, nil, fmt.Errorf("bad salt: %v", err)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return Argon2id{}, nil, nil, errors.New("bad key")
	}
	return p, salt, key, nil
}

// New returns the hasher named by algorithm ("bcrypt" or "argon2id") at workFactor.
func New(algorithm string, workFactor int) (Hasher, error) {
	switch strings.ToLower(algorithm) {
	case "", "bcrypt":
		h, err := NewBcrypt(workFactor)
		if err != nil {
			return nil, err
		}
		return h, nil
	case "argon2id":
		h, err := NewArgon2id(workFactor)
		if err != nil {
			return nil, err
		}
		return h, nil
	default:
		return nil, fmt.Errorf("%w: unknown hash algorithm %q", errs.ErrValidation, algorithm)
	}
}
