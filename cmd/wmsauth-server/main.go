// Command wmsauth-server serves the warehouse authentication API.
//
//	wmsauth-server -config /etc/wmsauth.yaml
//
// Every setting can be overridden with a WMSAUTH_ environment variable,
// e.g. WMSAUTH_AUTH_SECRET or WMSAUTH_REDIS_ADDR.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/modernwms/wmsauth"
	"github.com/modernwms/wmsauth/directory"
	"github.com/modernwms/wmsauth/directory/sqlstore"
	"github.com/modernwms/wmsauth/internal/httpapi"
	"github.com/modernwms/wmsauth/internal/logging"
	"github.com/modernwms/wmsauth/internal/settings"
	wmsprom "github.com/modernwms/wmsauth/metrics/export/prometheus"
	"github.com/modernwms/wmsauth/session"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML settings file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "wmsauth-server: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	loader := settings.NewLoader(configPath)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logger.Close()

	loader.Watch(func(next *settings.Settings, err error) {
		if err != nil {
			logger.Warn("settings reload rejected", zap.Error(err))
			return
		}
		if err := logger.SetLevel(next.Logging.Level); err != nil {
			logger.Warn("log level reload rejected", zap.Error(err))
			return
		}
		logger.Info("log level reloaded", zap.String("level", next.Logging.Level))
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engineCfg := cfg.EngineConfig()
	hasher, err := wmsauth.NewPasswordHasher(engineCfg.Password)
	if err != nil {
		return err
	}

	dir, closeDir, err := openDirectory(ctx, cfg.Database, hasher)
	if err != nil {
		return err
	}
	defer closeDir()

	builder := wmsauth.New().
		WithConfig(engineCfg).
		WithDirectory(dir).
		WithPasswordHasher(hasher).
		WithLogger(logger.Named("engine"))

	if cfg.Redis.Enabled() {
		rdb := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.Redis.Addr},
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		builder.
			WithSessionStore(session.NewRedisStore(rdb, session.RedisOptions{Prefix: engineCfg.Session.RedisPrefix})).
			WithRedisLoginLimiter(rdb)
		logger.Info("using redis sessions", zap.String("addr", cfg.Redis.Addr))
	}

	if cfg.AuditLog.Enabled {
		auditLog, err := logging.NewAuditLogger(logging.Config{
			File:       cfg.AuditLog.File,
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
			Compress:   cfg.Logging.Compress,
		})
		if err != nil {
			return fmt.Errorf("init audit log: %w", err)
		}
		defer auditLog.Close()
		builder.WithAuditSink(wmsauth.NewZapAuditSink(auditLog.Logger))
	}

	for _, lint := range engineCfg.Lint() {
		logger.Warn("config lint", zap.String("code", lint.Code), zap.String("message", lint.Message))
	}

	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	sweeper, err := engine.NewSweeper()
	if err != nil {
		return err
	}
	go sweeper.Run(ctx)

	var metrics http.Handler
	if cfg.Metrics.Enabled {
		exporter, err := wmsprom.NewExporter(engine,
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		metrics = exporter.Handler()
	}

	api, err := httpapi.New(httpapi.Options{
		Engine:            engine,
		Logger:            logger.Named("http"),
		Metrics:           metrics,
		AllowedOrigins:    cfg.Server.AllowedOrigins,
		TrustProxy:        cfg.Server.TrustProxy,
		RequestsPerMinute: cfg.Server.RequestsPerMinute,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("forced shutdown", zap.Error(err))
	}
	return nil
}

func openDirectory(ctx context.Context, db settings.DatabaseSettings, hasher wmsauth.PasswordHasher) (wmsauth.Directory, func(), error) {
	if db.Driver != settings.DriverMemory {
		dialect, err := sqlstore.ParseDialect(db.Driver)
		if err != nil {
			return nil, nil, err
		}
		store, err := sqlstore.Open(ctx, dialect, db.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open directory: %w", err)
		}
		return store, func() { _ = store.Close() }, nil
	}

	mem := directory.NewMemory()
	for _, seed := range db.Seed {
		hash, err := hasher.Hash(seed.Password)
		if err != nil {
			return nil, nil, fmt.Errorf("hash seed %s: %w", seed.Name, err)
		}
		role := seed.Role
		if role == "" {
			role = "user"
		}
		if _, err := mem.Add(directory.Principal{
			ID:           seed.ID,
			Name:         seed.Name,
			Number:       seed.Number,
			Role:         role,
			PasswordHash: hash,
			Active:       true,
		}); err != nil {
			return nil, nil, fmt.Errorf("seed %s: %w", seed.Name, err)
		}
	}
	return mem, func() {}, nil
}
