package password

import (
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func newTestBcrypt(t *testing.T) *Bcrypt {
	t.Helper()
	b, err := NewBcrypt(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewBcrypt error: %v", err)
	}
	return b
}

func TestPrehash(t *testing.T) {
	// md5("admin")
	const digest = "21232f297a57a5a743894a0e4a801fc3"
	if got := Prehash("admin"); got != digest {
		t.Fatalf("expected md5 hex, got %s", got)
	}
	if got := Prehash(digest); got != digest {
		t.Fatalf("expected digest passthrough, got %s", got)
	}
}

func TestBcryptAcceptsRawAndDigest(t *testing.T) {
	b := newTestBcrypt(t)
	stored, err := bcrypt.GenerateFromPassword([]byte(Prehash("admin")), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}

	for _, secret := range []string{"admin", Prehash("admin")} {
		ok, err := b.Verify(secret, string(stored))
		if err != nil || !ok {
			t.Fatalf("expected %q to verify: ok=%v err=%v", secret, ok, err)
		}
	}
	ok, err := b.Verify("nimda", string(stored))
	if err != nil || ok {
		t.Fatalf("expected mismatch: ok=%v err=%v", ok, err)
	}
}

func TestBcryptHashRoundTrip(t *testing.T) {
	b := newTestBcrypt(t)
	hash, err := b.Hash("forklift")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !IsBcrypt(hash) {
		t.Fatalf("expected bcrypt prefix, got %s", hash)
	}
	if ok, _ := b.Verify("forklift", hash); !ok {
		t.Fatal("expected round trip verify")
	}
	if _, err := b.Hash(""); !errors.Is(err, ErrEmptyPassword) {
		t.Fatalf("expected ErrEmptyPassword, got %v", err)
	}
}

func TestBcryptRejectsOtherFormats(t *testing.T) {
	b := newTestBcrypt(t)
	if _, err := b.Verify("x", "$argon2id$v=19$m=8192,t=1,p=1$a$b"); err == nil {
		t.Fatal("expected non-bcrypt hash to error")
	}
}

func TestBcryptNeedsUpgrade(t *testing.T) {
	low := newTestBcrypt(t)
	hash, _ := low.Hash("cost-check")

	high, err := NewBcrypt(bcrypt.MinCost + 1)
	if err != nil {
		t.Fatalf("NewBcrypt error: %v", err)
	}
	if up, err := high.NeedsUpgrade(hash); err != nil || !up {
		t.Fatalf("expected upgrade for lower cost: %v %v", up, err)
	}
	if up, err := low.NeedsUpgrade(hash); err != nil || up {
		t.Fatalf("expected no upgrade at same cost: %v %v", up, err)
	}
}

func TestNewBcryptCostRange(t *testing.T) {
	if _, err := NewBcrypt(bcrypt.MaxCost + 1); err == nil {
		t.Fatal("expected out of range cost to fail")
	}
	b, err := NewBcrypt(0)
	if err != nil || b.cost != bcrypt.DefaultCost {
		t.Fatalf("expected default cost, got %v %v", b, err)
	}
}
