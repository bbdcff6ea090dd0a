package wmsauth

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config is the engine configuration. Build copies it; later mutation of
// the caller's value has no effect.
type Config struct {
	JWT        JWTConfig
	Session    SessionConfig
	Password   PasswordConfig
	LoginLimit LoginLimitConfig
	Audit      AuditConfig
	Metrics    MetricsConfig

	// DevMode relaxes the signing-secret floor for local development.
	DevMode bool
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures the HS256 token codec.
type JWTConfig struct {
	Secret       []byte
	Issuer       string
	Audience     string
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	Leeway       time.Duration
	RequireIAT   bool
	MaxFutureIAT time.Duration

	// KeyID and VerifySecrets enable signing-secret rotation by kid.
	KeyID         string
	VerifySecrets map[string][]byte
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig configures refresh-session handling.
type SessionConfig struct {
	// RotateRefreshTokens makes Refresh mint a new refresh token and
	// supersede the presented one.
	RotateRefreshTokens bool
	// SweepInterval is the period hosts should use for session.Sweeper.
	SweepInterval time.Duration
	// RedisPrefix namespaces keys when the Redis session backend is used.
	RedisPrefix string
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig configures hashing and the change-password policy.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32

	// BcryptCost is the cost legacy bcrypt hashes are expected to meet.
	BcryptCost int
	// ClientPrehash treats secrets that are not already 32 hex characters
	// as plain text and digests them first, matching clients that send an
	// md5 of the password.
	ClientPrehash  bool
	UpgradeOnLogin bool

	MinLength int
	MaxLength int
}

/*
====================================
LOGIN LIMIT CONFIG
====================================
*/

// LoginLimitConfig configures the built-in login limiter. It is ignored when
// the builder is given an explicit limiter.
type LoginLimitConfig struct {
	Enabled          bool
	MaxAttempts      int
	Cooldown         time.Duration
	EnableIPThrottle bool
	RedisPrefix      string
	// MaxKeys bounds the in-memory limiter.
	MaxKeys int
}

// AuditConfig configures the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool

	// DeliverTimeout bounds a single sink call.
	DeliverTimeout time.Duration
}

// MetricsConfig toggles the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the defaults used by the warehouse backend. The
// secret is left empty and must be supplied.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			Issuer:       "ModernWMS.Py",
			Audience:     "ModernWMS.Client",
			AccessTTL:    30 * time.Minute,
			RefreshTTL:   30 * 24 * time.Hour,
			Leeway:       30 * time.Second,
			RequireIAT:   true,
			MaxFutureIAT: 10 * time.Minute,
		},
		Session: SessionConfig{
			RotateRefreshTokens: false,
			SweepInterval:       5 * time.Minute,
			RedisPrefix:         "wms:sess",
		},
		Password: PasswordConfig{
			Memory:         64 * 1024,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			BcryptCost:     10,
			ClientPrehash:  true,
			UpgradeOnLogin: true,
			MinLength:      6,
			MaxLength:      1024,
		},
		LoginLimit: LoginLimitConfig{
			Enabled:          true,
			MaxAttempts:      5,
			Cooldown:         15 * time.Minute,
			EnableIPThrottle: false,
			RedisPrefix:      "wms:rl",
			MaxKeys:          100_000,
		},
		Audit: AuditConfig{
			Enabled:        false,
			BufferSize:     1024,
			DropIfFull:     true,
			DeliverTimeout: 2 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.Secret = cloneBytes(cfg.JWT.Secret)
	if cfg.JWT.VerifySecrets != nil {
		out.JWT.VerifySecrets = make(map[string][]byte, len(cfg.JWT.VerifySecrets))
		for kid, secret := range cfg.JWT.VerifySecrets {
			out.JWT.VerifySecrets[kid] = cloneBytes(secret)
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// MinSecretBytes is the shortest HS256 secret accepted outside DevMode.
const MinSecretBytes = 32

var knownWeakSecrets = []string{
	"ChangeThisSecretKey",
	"your-secret-key-here",
	"secret",
	"changeme",
}

// Validate rejects unsafe or contradictory settings.
func (c *Config) Validate() error {
	// JWT
	if len(c.JWT.Secret) == 0 {
		return errors.New("JWT Secret is required")
	}
	if !c.DevMode {
		if len(c.JWT.Secret) < MinSecretBytes {
			return fmt.Errorf("JWT Secret must be at least %d bytes", MinSecretBytes)
		}
		for _, weak := range knownWeakSecrets {
			if strings.EqualFold(string(c.JWT.Secret), weak) {
				return errors.New("JWT Secret is a well-known default")
			}
		}
	}
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.AccessTTL >= c.JWT.RefreshTTL {
		return errors.New("JWT AccessTTL must be shorter than RefreshTTL")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}
	if c.JWT.MaxFutureIAT < 0 || c.JWT.MaxFutureIAT > 24*time.Hour {
		return errors.New("JWT MaxFutureIAT must be between 0 and 24h")
	}
	if c.JWT.Issuer != "" && strings.TrimSpace(c.JWT.Issuer) == "" {
		return errors.New("JWT Issuer must not be blank")
	}
	if c.JWT.Audience != "" && strings.TrimSpace(c.JWT.Audience) == "" {
		return errors.New("JWT Audience must not be blank")
	}

	// Session
	if c.Session.SweepInterval < 0 {
		return errors.New("Session SweepInterval must be >= 0")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.BcryptCost != 0 && (c.Password.BcryptCost < 4 || c.Password.BcryptCost > 31) {
		return errors.New("Password BcryptCost must be between 4 and 31")
	}
	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}
	if c.Password.MaxLength < c.Password.MinLength {
		return errors.New("Password MaxLength must be >= MinLength")
	}

	// Login limit
	if c.LoginLimit.Enabled {
		if c.LoginLimit.MaxAttempts <= 0 {
			return errors.New("LoginLimit MaxAttempts must be > 0")
		}
		if c.LoginLimit.Cooldown <= 0 {
			return errors.New("LoginLimit Cooldown must be > 0")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}
	if c.Audit.DeliverTimeout < 0 {
		return errors.New("Audit DeliverTimeout must be >= 0")
	}

	if !c.Metrics.Enabled && c.Metrics.EnableLatencyHistograms {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}
