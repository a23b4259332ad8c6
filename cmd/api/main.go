package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nazarhussain/folio-courier/env"
	"github.com/nazarhussain/folio-courier/internal/config"
	"github.com/nazarhussain/folio-courier/internal/form"
	"github.com/nazarhussain/folio-courier/internal/handler"
	"github.com/nazarhussain/folio-courier/internal/logging"
	"github.com/nazarhussain/folio-courier/internal/metrics"
	"github.com/nazarhussain/folio-courier/internal/notify"
	"github.com/nazarhussain/folio-courier/internal/ratelimit"
	"github.com/nazarhussain/folio-courier/internal/spam"
	"github.com/nazarhussain/folio-courier/internal/store"
)

func main() {
	env.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("invalid configuration", "err", err)
	}
	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	limiter, closeLimiter := newLimiter(ctx, logger, cfg.RateLimit)
	defer closeLimiter()

	st, closeStore := newStore(ctx, logger, cfg.Store)
	defer closeStore()

	m := metrics.New()
	contact := handler.NewContactHandler(handler.ContactConfig{
		Limiter:      limiter,
		Validator:    form.NewValidator(cfg.Rules),
		Filter:       spam.NewFilter(cfg.Spam),
		Store:        st,
		Notifier:     newDispatcher(logger, cfg.Notify),
		Metrics:      m,
		MaxBodyBytes: int64(cfg.MaxBodyKB) << 10,
		AllowJSON:    cfg.AllowJSON,
		AllowForm:    cfg.AllowForm,
		TrustProxy:   cfg.TrustProxy,
	})
	router := handler.NewRouter(handler.RouterConfig{
		Logger:         logger,
		Metrics:        m,
		AllowedOrigins: cfg.AllowedOrigins,
		AdminPerMinute: cfg.AdminPerMinute,
	}, contact, handler.NewAdminHandler(st, cfg.AdminToken))

	s := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.Notify.Timeout + 10*time.Second,
	}
	servers := []*http.Server{s}

	if cfg.MetricsAddr != "" {
		ms := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           m.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		servers = append(servers, ms)
		go serve(logger, "metrics", ms)
	}

	logger.Info("folio-courier listening",
		"addr", cfg.ListenAddr,
		"rate_limit_backend", cfg.RateLimit.Backend,
		"store", cfg.Store.Driver,
		"notify", cfg.Notify.Enabled(),
	)
	go serve(logger, "api", s)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "addr", srv.Addr, "err", err)
		}
	}
}

func serve(logger *slog.Logger, name string, s *http.Server) {
	if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logging.Fatal("server failed", "server", name, "addr", s.Addr, "err", err)
	}
	logger.Debug("server stopped", "server", name)
}

func newLimiter(ctx context.Context, logger *slog.Logger, cfg config.RateLimitCfg) (ratelimit.Limiter, func()) {
	if cfg.Backend == config.BackendRedis {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			logging.Fatal("connect to redis", "addr", cfg.RedisAddr, "err", err)
		}
		logger.Info("rate limiter backed by redis", "addr", cfg.RedisAddr)
		return ratelimit.NewRedis(client, cfg.Max, cfg.Window), func() { _ = client.Close() }
	}

	mem := ratelimit.NewMemory(cfg.Max, cfg.Window)
	go mem.Run(ctx, time.Minute)
	return mem, func() {}
}

func newStore(ctx context.Context, logger *slog.Logger, cfg config.StoreCfg) (store.Store, func()) {
	if cfg.Driver == config.DriverPostgres {
		pool, err := store.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logging.Fatal("connect to postgres", "err", err)
		}
		pg := store.NewPostgres(pool)
		if err := pg.Migrate(ctx); err != nil {
			logging.Fatal("migrate postgres", "err", err)
		}
		logger.Info("messages stored in postgres")
		return pg, pool.Close
	}

	mem := store.NewMemory()
	logger.Warn("messages stored in memory; they are lost on restart")
	return mem, mem.Close
}

func newDispatcher(logger *slog.Logger, cfg config.NotifyCfg) notify.Dispatcher {
	if !cfg.Enabled() {
		logger.Warn("SMTP_HOST not set; email notifications disabled")
		return notify.Disabled{}
	}
	smtp := notify.NewSMTP(notify.SMTPConfig{
		Host: cfg.SMTP.Host,
		Port: cfg.SMTP.Port,
		User: cfg.SMTP.User,
		Pass: cfg.SMTP.Pass,
		SSL:  cfg.SMTP.SSL,
	}, cfg.To, cfg.From, cfg.SubjectPrefix)
	return notify.WithTimeout(smtp, cfg.Timeout)
}
