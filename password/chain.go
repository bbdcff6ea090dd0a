package password

import "errors"

// ErrUnknownFormat is returned for stored hashes no verifier recognizes.
var ErrUnknownFormat = errors.New("unknown password hash format")

// Chain hashes new secrets with argon2id and verifies both argon2id and
// legacy bcrypt hashes. Legacy hashes always report NeedsUpgrade so callers
// can migrate them on the next successful login.
//
// With Prehash enabled every secret is normalized through [Prehash] before
// reaching argon2id as well, so a hash upgraded from a legacy record keeps
// verifying for clients that send either the raw secret or its md5 digest.
type Chain struct {
	primary *Argon2
	legacy  *Bcrypt
	prehash bool
}

// NewChain builds a chain. legacy may be nil, in which case bcrypt hashes
// are reported as [ErrUnknownFormat].
func NewChain(primary *Argon2, legacy *Bcrypt, prehash bool) (*Chain, error) {
	if primary == nil {
		return nil, errors.New("primary hasher is required")
	}
	return &Chain{primary: primary, legacy: legacy, prehash: prehash}, nil
}

func (c *Chain) normalize(secret string) string {
	if c.prehash && secret != "" {
		return Prehash(secret)
	}
	return secret
}

// Hash returns an argon2id hash of secret.
func (c *Chain) Hash(secret string) (string, error) {
	return c.primary.Hash(c.normalize(secret))
}

// Verify dispatches on the stored hash prefix.
func (c *Chain) Verify(secret, encoded string) (bool, error) {
	switch {
	case IsArgon2(encoded):
		return c.primary.Verify(c.normalize(secret), encoded)
	case IsBcrypt(encoded) && c.legacy != nil:
		return c.legacy.Verify(secret, encoded)
	default:
		return false, ErrUnknownFormat
	}
}

// NeedsUpgrade is true for every legacy hash and for argon2id hashes with
// outdated parameters.
func (c *Chain) NeedsUpgrade(encoded string) (bool, error) {
	switch {
	case IsArgon2(encoded):
		return c.primary.NeedsUpgrade(encoded)
	case IsBcrypt(encoded) && c.legacy != nil:
		return true, nil
	default:
		return false, ErrUnknownFormat
	}
}
