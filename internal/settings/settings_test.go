package settings

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
server:
  port: 8080
  allowed_origins: ["https://wms.example"]
  trust_proxy: true
auth:
  secret: "yaml-secret-0123456789abcdefghijklmnop"
  access_ttl: 10m
  rotate_refresh_tokens: true
database:
  driver: memory
  seed:
    - id: "1"
      name: admin
      number: A001
      role: admin
      password: admin-pw
redis:
  addr: "127.0.0.1:6379"
logging:
  level: debug
  format: console
`

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wmsauth.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaults(t *testing.T) {
	s, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 5555, s.Server.Port)
	assert.Equal(t, ":5555", s.Server.Addr())
	assert.Equal(t, []string{"*"}, s.Server.AllowedOrigins)
	assert.Equal(t, "ModernWMS.Py", s.Auth.Issuer)
	assert.Equal(t, "ModernWMS.Client", s.Auth.Audience)
	assert.Equal(t, 30*time.Minute, s.Auth.AccessTTL)
	assert.Equal(t, 30*24*time.Hour, s.Auth.RefreshTTL)
	assert.Equal(t, DriverMemory, s.Database.Driver)
	assert.False(t, s.Redis.Enabled())
	assert.Equal(t, "info", s.Logging.Level)
	assert.Equal(t, "json", s.Logging.Format)
}

func TestLoadFile(t *testing.T) {
	s, err := Load(writeFile(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, 8080, s.Server.Port)
	assert.True(t, s.Server.TrustProxy)
	assert.Equal(t, []string{"https://wms.example"}, s.Server.AllowedOrigins)
	assert.Equal(t, 10*time.Minute, s.Auth.AccessTTL)
	assert.True(t, s.Auth.RotateRefreshTokens)
	assert.True(t, s.Redis.Enabled())
	assert.Equal(t, "console", s.Logging.Format)

	require.Len(t, s.Database.Seed, 1)
	assert.Equal(t, SeedPrincipal{ID: "1", Name: "admin", Number: "A001", Role: "admin", Password: "admin-pw"}, s.Database.Seed[0])
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("WMSAUTH_SERVER_PORT", "9090")
	t.Setenv("WMSAUTH_AUTH_SECRET", "env-secret-0123456789abcdefghijklmnopq")
	t.Setenv("WMSAUTH_AUTH_REFRESH_TTL", "48h")

	s, err := Load(writeFile(t, sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, 9090, s.Server.Port)
	assert.Equal(t, "env-secret-0123456789abcdefghijklmnopq", s.Auth.Secret)
	assert.Equal(t, 48*time.Hour, s.Auth.RefreshTTL)
}

func TestMissingFileUsesDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 5555, s.Server.Port)
}

func TestMalformedFile(t *testing.T) {
	_, err := Load(writeFile(t, "server: [unterminated"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Settings)
		wantErr string
	}{
		{"bad port", func(s *Settings) { s.Server.Port = 0 }, "server.port"},
		{"postgres without dsn", func(s *Settings) { s.Database.Driver = DriverPostgres }, "database.dsn"},
		{"unknown driver", func(s *Settings) { s.Database.Driver = "mongo" }, "unknown database.driver"},
		{"audit without file", func(s *Settings) { s.AuditLog.Enabled = true }, "audit_log.file"},
		{"seed without password", func(s *Settings) {
			s.Database.Seed = []SeedPrincipal{{ID: "1", Name: "admin"}}
		}, "database.seed[0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Load("")
			require.NoError(t, err)
			tt.modify(s)
			err = s.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEngineConfig(t *testing.T) {
	s, err := Load(writeFile(t, sampleYAML))
	require.NoError(t, err)

	cfg := s.EngineConfig()
	assert.Equal(t, []byte("yaml-secret-0123456789abcdefghijklmnop"), cfg.JWT.Secret)
	assert.Equal(t, 10*time.Minute, cfg.JWT.AccessTTL)
	assert.True(t, cfg.Session.RotateRefreshTokens)
	assert.True(t, cfg.Metrics.Enabled)
	require.NoError(t, cfg.Validate())
}

func TestWatchReloads(t *testing.T) {
	path := writeFile(t, sampleYAML)
	loader := NewLoader(path)
	_, err := loader.Load()
	require.NoError(t, err)

	var (
		mu   sync.Mutex
		last *Settings
	)
	loader.Watch(func(s *Settings, err error) {
		if err != nil {
			return
		}
		mu.Lock()
		last = s
		mu.Unlock()
	})

	updated := []byte("logging:\n  level: warn\n")
	require.NoError(t, os.WriteFile(path, updated, 0o600))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return last != nil && last.Logging.Level == "warn"
	}, 5*time.Second, 20*time.Millisecond)
}
