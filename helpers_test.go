package wmsauth

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/modernwms/wmsauth/directory"
	"github.com/modernwms/wmsauth/session"
)

const testSecret = "test-signing-secret-for-wmsauth-engine"

// plainHasher keeps engine tests fast. Hashes are "plain:<secret>".
type plainHasher struct{}

func (plainHasher) Hash(secret string) (string, error) {
	if secret == "" {
		return "", errors.New("empty secret")
	}
	return "plain:" + secret, nil
}

func (plainHasher) Verify(secret, encoded string) (bool, error) {
	stored, ok := strings.CutPrefix(encoded, "plain:")
	if !ok {
		return false, errors.New("unknown hash format")
	}
	return stored == secret, nil
}

func (plainHasher) NeedsUpgrade(string) (bool, error) { return false, nil }

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.Secret = []byte(testSecret)
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.BcryptCost = 4
	return cfg
}

type testEnv struct {
	engine *Engine
	dir    *directory.Memory
	store  *session.Store
	clock  *testClock
}

// newTestEnv builds an engine over an in-memory directory seeded with:
//
//	1  admin   / A001  role admin    password "admin-pw"
//	2  manager / M002  role manager  password "manager-pw"
//	3  picker  / P003  role user     password "picker-pw"
//	4  retired / R004  role user     password "retired-pw" (inactive)
func newTestEnv(tb testing.TB, mutate func(*Config), extra ...func(*Builder)) *testEnv {
	tb.Helper()

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	dir := directory.NewMemory()
	seed := []directory.Principal{
		{ID: "1", Name: "admin", Number: "A001", Role: "admin", PasswordHash: "plain:admin-pw", Active: true},
		{ID: "2", Name: "manager", Number: "M002", Role: "manager", PasswordHash: "plain:manager-pw", Active: true},
		{ID: "3", Name: "picker", Number: "P003", Role: "user", PasswordHash: "plain:picker-pw", Active: true},
		{ID: "4", Name: "retired", Number: "R004", Role: "user", PasswordHash: "plain:retired-pw", Active: false},
	}
	for _, p := range seed {
		if _, err := dir.Add(p); err != nil {
			tb.Fatalf("seed %s: %v", p.Name, err)
		}
	}

	clock := newTestClock()
	store := session.NewStore(session.WithClock(clock.Now))

	b := New().
		WithConfig(cfg).
		WithDirectory(dir).
		WithSessionStore(store).
		WithPasswordHasher(plainHasher{}).
		WithClock(clock.Now)
	for _, fn := range extra {
		fn(b)
	}

	engine, err := b.Build()
	if err != nil {
		tb.Fatalf("Build failed: %v", err)
	}
	tb.Cleanup(engine.Close)

	return &testEnv{engine: engine, dir: dir, store: store, clock: clock}
}

func directoryPrincipal(id, name, number, hash string) directory.Principal {
	return directory.Principal{
		ID:           id,
		Name:         name,
		Number:       number,
		Role:         "user",
		PasswordHash: hash,
		Active:       true,
	}
}
