package wmsauth

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	internalaudit "github.com/modernwms/wmsauth/internal/audit"
	"github.com/modernwms/wmsauth/internal/rate"
	"github.com/modernwms/wmsauth/jwt"
	"github.com/modernwms/wmsauth/password"
	"github.com/modernwms/wmsauth/permission"
	"github.com/modernwms/wmsauth/session"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles an [Engine].
//
// Builder instances are configured during initialization and used for a
// single Build call. Every With method returns the builder for chaining.
type Builder struct {
	config Config

	directory Directory
	sessions  session.Backend
	hasher    PasswordHasher
	limiter   LoginLimiter
	roles     *permission.RoleManager
	auditSink AuditSink
	logger    *zap.Logger
	now       func() time.Time

	redisLimiter redis.UniversalClient

	built bool
}

// New returns a builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the configuration. The value is copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithDirectory sets the principal directory. It is required.
func (b *Builder) WithDirectory(d Directory) *Builder {
	b.directory = d
	return b
}

// WithSessionStore sets the refresh-session backend. The in-process
// [session.Store] is used when none is given.
func (b *Builder) WithSessionStore(s SessionBackend) *Builder {
	b.sessions = s
	return b
}

// WithPasswordHasher overrides the argon2id/bcrypt chain built from
// Config.Password.
func (b *Builder) WithPasswordHasher(h PasswordHasher) *Builder {
	b.hasher = h
	return b
}

// WithLoginLimiter sets an explicit login limiter. Config.LoginLimit is
// then ignored.
func (b *Builder) WithLoginLimiter(l LoginLimiter) *Builder {
	b.limiter = l
	return b
}

// WithRedisLoginLimiter shares the login budget across processes through
// client, using Config.LoginLimit for the window.
func (b *Builder) WithRedisLoginLimiter(client redis.UniversalClient) *Builder {
	b.redisLimiter = client
	return b
}

// WithRoleManager replaces the standard admin/manager/user table. The
// manager is frozen by Build.
func (b *Builder) WithRoleManager(rm *permission.RoleManager) *Builder {
	b.roles = rm
	return b
}

// WithAuditSink sets the sink for audit events. Audit must also be enabled
// in the configuration.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the operational logger. Defaults to a no-op logger.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides the time source of the codec, the built-in session
// store and the built-in limiter. Intended for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the authorize latency histogram. Metrics
// must be enabled as well.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, wires every dependency and returns
// a ready engine. A builder can only be built once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.directory == nil {
		return nil, errors.New("directory is required")
	}
	if err := b.config.Validate(); err != nil {
		return nil, err
	}

	cfg := cloneConfig(b.config)
	now := b.now
	if now == nil {
		now = time.Now
	}

	codec, err := jwt.NewCodec(jwt.Config{
		Secret:        cfg.JWT.Secret,
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		Leeway:        cfg.JWT.Leeway,
		RequireIAT:    cfg.JWT.RequireIAT,
		MaxFutureIAT:  cfg.JWT.MaxFutureIAT,
		KeyID:         cfg.JWT.KeyID,
		VerifySecrets: cfg.JWT.VerifySecrets,
		Now:           now,
	})
	if err != nil {
		return nil, fmt.Errorf("jwt codec: %w", err)
	}

	roles := b.roles
	if roles == nil {
		roles, err = permission.NewStandard()
		if err != nil {
			return nil, fmt.Errorf("standard roles: %w", err)
		}
	}
	roles.Freeze()

	hasher := b.hasher
	if hasher == nil {
		hasher, err = NewPasswordHasher(cfg.Password)
		if err != nil {
			return nil, err
		}
	}

	// Unknown identifiers are verified against this hash.
	dummyHash, err := hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("dummy password hash: %w", err)
	}

	sessions := b.sessions
	if sessions == nil {
		sessions = session.NewStore(session.WithClock(now))
	}

	limiter := b.limiter
	if limiter == nil && cfg.LoginLimit.Enabled {
		rcfg := rate.Config{
			MaxAttempts:      cfg.LoginLimit.MaxAttempts,
			Cooldown:         cfg.LoginLimit.Cooldown,
			EnableIPThrottle: cfg.LoginLimit.EnableIPThrottle,
			Prefix:           cfg.LoginLimit.RedisPrefix,
		}
		if b.redisLimiter != nil {
			limiter = rate.New(b.redisLimiter, rcfg)
		} else {
			limiter = rate.NewMemory(rcfg, cfg.LoginLimit.MaxKeys).WithClock(now)
		}
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Engine{
		config:    cfg,
		codec:     codec,
		roles:     roles,
		sessions:  sessions,
		directory: b.directory,
		hasher:    hasher,
		dummyHash: dummyHash,
		limiter:   limiter,
		audit: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:        cfg.Audit.Enabled,
			BufferSize:     cfg.Audit.BufferSize,
			DropIfFull:     cfg.Audit.DropIfFull,
			DeliverTimeout: cfg.Audit.DeliverTimeout,
		}, b.auditSink),
		metrics: NewMetrics(cfg.Metrics),
		logger:  logger,
		now:     now,
	}
	e.initFlows()

	b.built = true
	return e, nil
}

// NewPasswordHasher returns the argon2id chain with a bcrypt fallback that
// Build uses when no hasher is supplied. Hosts use it to hash seed
// passwords.
func NewPasswordHasher(cfg PasswordConfig) (*password.Chain, error) {
	primary, err := password.NewArgon2(password.Config{
		Memory:           cfg.Memory,
		Time:             cfg.Time,
		Parallelism:      cfg.Parallelism,
		SaltLength:       cfg.SaltLength,
		KeyLength:        cfg.KeyLength,
		MaxPasswordBytes: cfg.MaxLength,
	})
	if err != nil {
		return nil, fmt.Errorf("argon2: %w", err)
	}
	legacy, err := password.NewBcrypt(cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("bcrypt: %w", err)
	}
	return password.NewChain(primary, legacy, cfg.ClientPrehash)
}
