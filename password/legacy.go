package password

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// legacyDigestLen is the length of an md5 hex digest. Clients of the
// original backend send md5(password) and the server hashes that with
// bcrypt; anything not exactly this long is assumed to be raw and digested
// server side first.
const legacyDigestLen = 32

// Prehash normalizes secret to the md5 hex form legacy hashes were built
// from. A 32 character input is assumed to already be a digest.
func Prehash(secret string) string {
	if len(secret) == legacyDigestLen {
		return secret
	}
	sum := md5.Sum([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// Bcrypt verifies hashes imported from the original user table:
// bcrypt over the md5 hex prehash.
type Bcrypt struct {
	cost int
}

// NewBcrypt returns a legacy verifier. A cost of 0 selects bcrypt.DefaultCost.
func NewBcrypt(cost int) (*Bcrypt, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, errors.New("bcrypt cost out of range")
	}
	return &Bcrypt{cost: cost}, nil
}

// Hash produces a legacy-format hash. It exists for seeding fixtures and
// directories that must stay readable by the original backend.
func (b *Bcrypt) Hash(secret string) (string, error) {
	if secret == "" {
		return "", ErrEmptyPassword
	}
	out, err := bcrypt.GenerateFromPassword([]byte(Prehash(secret)), b.cost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Verify checks secret against a bcrypt hash after applying [Prehash].
func (b *Bcrypt) Verify(secret, encoded string) (bool, error) {
	if !IsBcrypt(encoded) {
		return false, errors.New("not a bcrypt hash")
	}
	err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(Prehash(secret)))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, err
	}
}

// NeedsUpgrade reports whether encoded uses a lower cost than configured.
func (b *Bcrypt) NeedsUpgrade(encoded string) (bool, error) {
	cost, err := bcrypt.Cost([]byte(encoded))
	if err != nil {
		return false, err
	}
	return cost < b.cost, nil
}

// IsBcrypt reports whether encoded carries a bcrypt version prefix.
func IsBcrypt(encoded string) bool {
	return strings.HasPrefix(encoded, "$2a$") ||
		strings.HasPrefix(encoded, "$2b$") ||
		strings.HasPrefix(encoded, "$2y$")
}
