package password

import (
	"errors"
	"strings"
	"testing"
)

func testConfig() Config {
	return Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func newTestArgon2(t *testing.T, cfg Config) *Argon2 {
	t.Helper()
	a, err := NewArgon2(cfg)
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}
	return a
}

func TestArgon2HashAndVerify(t *testing.T) {
	a := newTestArgon2(t, testConfig())
	hash, err := a.Hash("pallet-jack-42")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected PHC prefix: %s", hash)
	}

	ok, err := a.Verify("pallet-jack-42", hash)
	if err != nil || !ok {
		t.Fatalf("expected verification to succeed: ok=%v err=%v", ok, err)
	}
	ok, err = a.Verify("pallet-jack-43", hash)
	if err != nil || ok {
		t.Fatalf("expected mismatch: ok=%v err=%v", ok, err)
	}
}

func TestArgon2SaltsDiffer(t *testing.T) {
	a := newTestArgon2(t, testConfig())
	h1, _ := a.Hash("same-secret")
	h2, _ := a.Hash("same-secret")
	if h1 == h2 {
		t.Fatal("expected distinct salts to give distinct hashes")
	}
}

func TestArgon2AcceptsPaddedEncoding(t *testing.T) {
	a := newTestArgon2(t, testConfig())
	// 16 byte salt and 32 byte key both need padding in StdEncoding.
	hash, err := a.Hash("padded-secret")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	parts := strings.Split(hash, "$")
	parts[4] += "=="
	parts[5] += "="
	padded := strings.Join(parts, "$")

	ok, err := a.Verify("padded-secret", padded)
	if err != nil || !ok {
		t.Fatalf("expected padded PHC to verify: ok=%v err=%v", ok, err)
	}
}

func TestArgon2NeedsUpgrade(t *testing.T) {
	weak := newTestArgon2(t, testConfig())
	hash, err := weak.Hash("upgrade-me")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	strongCfg := testConfig()
	strongCfg.Time = 2
	strong := newTestArgon2(t, strongCfg)

	if up, err := strong.NeedsUpgrade(hash); err != nil || !up {
		t.Fatalf("expected upgrade for weaker params: %v %v", up, err)
	}
	if up, err := weak.NeedsUpgrade(hash); err != nil || up {
		t.Fatalf("expected no upgrade for same params: %v %v", up, err)
	}
}

func TestArgon2MalformedHashes(t *testing.T) {
	a := newTestArgon2(t, testConfig())
	good, _ := a.Hash("malformed-base")

	cases := map[string]string{
		"garbage":       "not-a-phc-hash",
		"wrong algo":    strings.Replace(good, "$argon2id$", "$argon2i$", 1),
		"wrong version": strings.Replace(good, "$v=19$", "$v=18$", 1),
		"low memory":    strings.Replace(good, "m=8192", "m=1024", 1),
		"extra param":   strings.Replace(good, "p=1", "p=1,x=2", 1),
	}
	for name, hash := range cases {
		if _, err := a.Verify("malformed-base", hash); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestArgon2LengthLimits(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPasswordBytes = 64
	a := newTestArgon2(t, cfg)

	if _, err := a.Hash(""); !errors.Is(err, ErrEmptyPassword) {
		t.Fatalf("expected ErrEmptyPassword, got %v", err)
	}
	if _, err := a.Hash(strings.Repeat("a", 65)); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
	hash, err := a.Hash(strings.Repeat("b", 64))
	if err != nil {
		t.Fatalf("expected max-length secret accepted: %v", err)
	}
	if _, err := a.Verify(strings.Repeat("c", 65), hash); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected Verify to reject long secret, got %v", err)
	}
}

func TestArgon2DefaultMaxApplied(t *testing.T) {
	a := newTestArgon2(t, testConfig())
	if _, err := a.Hash(strings.Repeat("d", DefaultMaxPasswordBytes+1)); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected default cap, got %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	bad := []func(*Config){
		func(c *Config) { c.Memory = 1024 },
		func(c *Config) { c.Time = 0 },
		func(c *Config) { c.Parallelism = 0 },
		func(c *Config) { c.SaltLength = 8 },
		func(c *Config) { c.KeyLength = 8 },
		func(c *Config) { c.MaxPasswordBytes = -1 },
	}
	for i, mutate := range bad {
		cfg := testConfig()
		mutate(&cfg)
		if _, err := NewArgon2(cfg); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}
