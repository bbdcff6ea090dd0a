// Package settings loads the wmsauth-server configuration from a YAML file
// with WMSAUTH_ environment overrides and maps it onto wmsauth.Config.
package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/modernwms/wmsauth"
	"github.com/modernwms/wmsauth/internal/logging"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. WMSAUTH_AUTH_SECRET.
const EnvPrefix = "WMSAUTH"

// Directory drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Settings is the full server configuration.
type Settings struct {
	Server     ServerSettings
	Auth       AuthSettings
	LoginLimit LoginLimitSettings
	Database   DatabaseSettings
	Redis      RedisSettings
	Logging    logging.Config
	AuditLog   AuditLogSettings
	Metrics    MetricsSettings
}

type ServerSettings struct {
	Host              string
	Port              int
	AllowedOrigins    []string
	TrustProxy        bool
	RequestsPerMinute int
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	ShutdownTimeout   time.Duration
}

// Addr returns host:port.
func (s ServerSettings) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type AuthSettings struct {
	Secret              string
	Issuer              string
	Audience            string
	AccessTTL           time.Duration
	RefreshTTL          time.Duration
	Leeway              time.Duration
	RotateRefreshTokens bool
	SweepInterval       time.Duration
	DevMode             bool
}

type LoginLimitSettings struct {
	Enabled     bool
	MaxAttempts int
	Cooldown    time.Duration
	IPThrottle  bool
}

type DatabaseSettings struct {
	Driver string
	DSN    string
	// Seed is a YAML list of principals loaded into the memory driver.
	Seed []SeedPrincipal
}

// SeedPrincipal is a bootstrap account for the memory directory.
type SeedPrincipal struct {
	ID       string `mapstructure:"id"`
	Name     string `mapstructure:"name"`
	Number   string `mapstructure:"number"`
	Role     string `mapstructure:"role"`
	Password string `mapstructure:"password"`
}

// RedisSettings enables the Redis session store and login limiter when
// Addr is set.
type RedisSettings struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a Redis address was configured.
func (r RedisSettings) Enabled() bool {
	return r.Addr != ""
}

type AuditLogSettings struct {
	Enabled bool
	File    string
}

type MetricsSettings struct {
	Enabled    bool
	Histograms bool
}

func setDefaults(v *viper.Viper) {
	engine := wmsauth.DefaultConfig()
	log := logging.DefaultConfig()

	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 5555)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.trust_proxy", false)
	v.SetDefault("server.requests_per_minute", 120)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.issuer", engine.JWT.Issuer)
	v.SetDefault("auth.audience", engine.JWT.Audience)
	v.SetDefault("auth.access_ttl", engine.JWT.AccessTTL)
	v.SetDefault("auth.refresh_ttl", engine.JWT.RefreshTTL)
	v.SetDefault("auth.leeway", engine.JWT.Leeway)
	v.SetDefault("auth.rotate_refresh_tokens", engine.Session.RotateRefreshTokens)
	v.SetDefault("auth.sweep_interval", engine.Session.SweepInterval)
	v.SetDefault("auth.dev_mode", false)

	v.SetDefault("login_limit.enabled", engine.LoginLimit.Enabled)
	v.SetDefault("login_limit.max_attempts", engine.LoginLimit.MaxAttempts)
	v.SetDefault("login_limit.cooldown", engine.LoginLimit.Cooldown)
	v.SetDefault("login_limit.ip_throttle", engine.LoginLimit.EnableIPThrottle)

	v.SetDefault("database.driver", DriverMemory)
	v.SetDefault("database.dsn", "")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("logging.level", log.Level)
	v.SetDefault("logging.format", log.Format)
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", log.MaxSizeMB)
	v.SetDefault("logging.max_backups", log.MaxBackups)
	v.SetDefault("logging.max_age_days", log.MaxAgeDays)
	v.SetDefault("logging.compress", false)

	v.SetDefault("audit_log.enabled", false)
	v.SetDefault("audit_log.file", "")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.histograms", true)
}

// Loader reads settings and can watch the file for changes.
type Loader struct {
	mu   sync.Mutex
	v    *viper.Viper
	path string
}

// NewLoader prepares a loader for path. An empty path uses defaults and
// environment only.
func NewLoader(path string) *Loader {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return &Loader{v: v, path: path}
}

// Load reads the file, when set, and returns validated settings. A
// missing file is not an error.
func (l *Loader) Load() (*Settings, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.path != "" {
		if err := l.v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}
	s, err := l.decode()
	if err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Watch calls fn with freshly decoded settings whenever the file changes.
// Decode or validation failures are passed as err and the previous
// settings stay in effect.
func (l *Loader) Watch(fn func(*Settings, error)) {
	if l.path == "" {
		return
	}
	l.v.OnConfigChange(func(fsnotify.Event) {
		l.mu.Lock()
		s, err := l.decode()
		l.mu.Unlock()
		if err == nil {
			err = s.Validate()
		}
		if err != nil {
			fn(nil, err)
			return
		}
		fn(s, nil)
	})
	l.v.WatchConfig()
}

func (l *Loader) decode() (*Settings, error) {
	v := l.v
	s := &Settings{}

	s.Server = ServerSettings{
		Host:              v.GetString("server.host"),
		Port:              v.GetInt("server.port"),
		AllowedOrigins:    v.GetStringSlice("server.allowed_origins"),
		TrustProxy:        v.GetBool("server.trust_proxy"),
		RequestsPerMinute: v.GetInt("server.requests_per_minute"),
		ReadTimeout:       v.GetDuration("server.read_timeout"),
		WriteTimeout:      v.GetDuration("server.write_timeout"),
		ShutdownTimeout:   v.GetDuration("server.shutdown_timeout"),
	}
	s.Auth = AuthSettings{
		Secret:              v.GetString("auth.secret"),
		Issuer:              v.GetString("auth.issuer"),
		Audience:            v.GetString("auth.audience"),
		AccessTTL:           v.GetDuration("auth.access_ttl"),
		RefreshTTL:          v.GetDuration("auth.refresh_ttl"),
		Leeway:              v.GetDuration("auth.leeway"),
		RotateRefreshTokens: v.GetBool("auth.rotate_refresh_tokens"),
		SweepInterval:       v.GetDuration("auth.sweep_interval"),
		DevMode:             v.GetBool("auth.dev_mode"),
	}
	s.LoginLimit = LoginLimitSettings{
		Enabled:     v.GetBool("login_limit.enabled"),
		MaxAttempts: v.GetInt("login_limit.max_attempts"),
		Cooldown:    v.GetDuration("login_limit.cooldown"),
		IPThrottle:  v.GetBool("login_limit.ip_throttle"),
	}
	s.Database = DatabaseSettings{
		Driver: strings.ToLower(v.GetString("database.driver")),
		DSN:    v.GetString("database.dsn"),
	}
	if err := v.UnmarshalKey("database.seed", &s.Database.Seed); err != nil {
		return nil, fmt.Errorf("decode database.seed: %w", err)
	}
	s.Redis = RedisSettings{
		Addr:     v.GetString("redis.addr"),
		Password: v.GetString("redis.password"),
		DB:       v.GetInt("redis.db"),
	}
	s.Logging = logging.Config{
		Level:      v.GetString("logging.level"),
		Format:     v.GetString("logging.format"),
		File:       v.GetString("logging.file"),
		MaxSizeMB:  v.GetInt("logging.max_size_mb"),
		MaxBackups: v.GetInt("logging.max_backups"),
		MaxAgeDays: v.GetInt("logging.max_age_days"),
		Compress:   v.GetBool("logging.compress"),
	}
	s.AuditLog = AuditLogSettings{
		Enabled: v.GetBool("audit_log.enabled"),
		File:    v.GetString("audit_log.file"),
	}
	s.Metrics = MetricsSettings{
		Enabled:    v.GetBool("metrics.enabled"),
		Histograms: v.GetBool("metrics.histograms"),
	}
	return s, nil
}

// Load is NewLoader(path).Load().
func Load(path string) (*Settings, error) {
	return NewLoader(path).Load()
}

// Validate checks host-level settings. Engine settings are validated by
// wmsauth.Config.Validate when the engine is built.
func (s *Settings) Validate() error {
	var errs []error
	if s.Server.Port <= 0 || s.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", s.Server.Port))
	}
	switch s.Database.Driver {
	case DriverMemory:
	case DriverPostgres, DriverSQLite:
		if s.Database.DSN == "" {
			errs = append(errs, fmt.Errorf("database.dsn is required for driver %q", s.Database.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown database.driver %q", s.Database.Driver))
	}
	if s.AuditLog.Enabled && s.AuditLog.File == "" {
		errs = append(errs, errors.New("audit_log.file is required when audit_log.enabled"))
	}
	for i, p := range s.Database.Seed {
		if p.ID == "" || p.Name == "" || p.Password == "" {
			errs = append(errs, fmt.Errorf("database.seed[%d] needs id, name and password", i))
		}
	}
	return errors.Join(errs...)
}

// EngineConfig maps the settings onto the engine defaults.
func (s *Settings) EngineConfig() wmsauth.Config {
	cfg := wmsauth.DefaultConfig()
	cfg.DevMode = s.Auth.DevMode
	cfg.JWT.Secret = []byte(s.Auth.Secret)
	cfg.JWT.Issuer = s.Auth.Issuer
	cfg.JWT.Audience = s.Auth.Audience
	cfg.JWT.AccessTTL = s.Auth.AccessTTL
	cfg.JWT.RefreshTTL = s.Auth.RefreshTTL
	cfg.JWT.Leeway = s.Auth.Leeway
	cfg.Session.RotateRefreshTokens = s.Auth.RotateRefreshTokens
	cfg.Session.SweepInterval = s.Auth.SweepInterval
	cfg.LoginLimit.Enabled = s.LoginLimit.Enabled
	cfg.LoginLimit.MaxAttempts = s.LoginLimit.MaxAttempts
	cfg.LoginLimit.Cooldown = s.LoginLimit.Cooldown
	cfg.LoginLimit.EnableIPThrottle = s.LoginLimit.IPThrottle
	cfg.Audit.Enabled = s.AuditLog.Enabled
	cfg.Metrics.Enabled = s.Metrics.Enabled
	cfg.Metrics.EnableLatencyHistograms = s.Metrics.Histograms
	return cfg
}
