package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/md-rashed-zaman/apptbook/libs/auth"
	"github.com/md-rashed-zaman/apptbook/libs/db"
	"github.com/md-rashed-zaman/apptbook/libs/grpcx"
	"github.com/md-rashed-zaman/apptbook/libs/httpx"
	"github.com/md-rashed-zaman/apptbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/apptbook/libs/otel"
	"github.com/md-rashed-zaman/apptbook/libs/runtime"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/appointments"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/handlers"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/locking"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/metrics"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/reminders"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/schedule"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/storage"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/migrations"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type appointmentStore interface {
	appointments.Store
	schedule.Store
	reminders.Source
}

type directory interface {
	appointments.Directory
	ApplySeed(ctx context.Context, seed storage.Seed) error
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		panic(err)
	}
	cfg, err := loadConfig()
	if err != nil {
		panic(err)
	}
	if len(os.Args) > 1 && os.Args[1] == "healthcheck" {
		if err := probe(context.Background(), "127.0.0.1:"+cfg.GRPCPort, cfg.Service, 3*time.Second); err != nil {
			fmt.Fprintln(os.Stderr, "unhealthy:", err)
			os.Exit(1)
		}
		return
	}
	logger := runtime.NewLogger(cfg.Service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(cfg.Service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	var (
		store  appointmentStore
		dir    directory
		pool   *db.Pool
		checks []runtime.ReadyCheck
	)
	switch cfg.StorageDriver {
	case "postgres":
		if cfg.MigrateOnStart {
			if err := db.Migrate(cfg.DatabaseURL, migrations.FS, "."); err != nil {
				logger.Error("migrations failed", "err", err)
				panic(err)
			}
		}
		pool, err = db.Open(ctx, cfg.DatabaseURL, db.PoolConfig{
			MaxConns:       int32(cfg.DBMaxConns),
			ConnectTimeout: cfg.DBConnectTimeout,
		})
		if err != nil {
			logger.Error("db connection failed", "err", err)
			panic(err)
		}
		store = storage.NewAppointmentRepository(pool)
		dir = storage.NewDirectoryRepository(pool)
		checks = append(checks, runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)})
	default:
		logger.Warn("using in-memory storage; data is lost on restart")
		store = storage.NewMemoryStore()
		dir = storage.NewMemoryDirectory(storage.Seed{})
	}

	if cfg.SeedFile != "" {
		seed, err := storage.LoadSeed(cfg.SeedFile)
		if err != nil {
			logger.Error("directory seed failed", "err", err, "file", cfg.SeedFile)
			panic(err)
		}
		if err := dir.ApplySeed(ctx, seed); err != nil {
			logger.Error("directory seed failed", "err", err)
			panic(err)
		}
		logger.Info("directory seeded", "customers", len(seed.Customers), "staff", len(seed.Staff), "services", len(seed.Services))
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer func() { _ = rdb.Close() }()
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}
	if cfg.KafkaBrokers != "" {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(kafkax.SplitBrokers(cfg.KafkaBrokers))})
	}

	lockDeps := locking.Deps{TTL: cfg.LockTTL, Logger: logger}
	if rdb != nil {
		lockDeps.Redis = rdb
	}
	if pool != nil {
		lockDeps.DB = pool
	}
	locker, err := locking.New(cfg.LockStrategy, lockDeps)
	if err != nil {
		logger.Error("lock strategy init failed", "err", err, "strategy", cfg.LockStrategy)
		panic(err)
	}
	logger.Info("booking lock strategy", "strategy", cfg.LockStrategy)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	notifier, closeNotify, err := buildNotifier(cfg, dir, m, logger)
	if err != nil {
		logger.Error("notifier init failed", "err", err)
		panic(err)
	}

	manager := appointments.NewManager(appointments.Options{
		Store:        store,
		Directory:    dir,
		Locker:       locker,
		LockStrategy: cfg.LockStrategy,
		Notifier:     notifier,
		Metrics:      m,
		Logger:       logger,
	})
	apptHandler := handlers.NewAppointmentHandler(manager, schedule.New(store, dir), logger)

	authn := handlers.Authenticator{Secret: cfg.JWTSecret, TrustGatewayHeaders: cfg.TrustGatewayHeaders}
	if cfg.JWKSURL != "" {
		authn.Keys = auth.NewJWKSClient(cfg.JWKSURL, 5*time.Minute)
	}

	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.Handle("/metrics", metrics.Handler(reg))
	mux.Handle("/api/", apptHandler.Router(handlers.RouterConfig{Auth: authn, Metrics: m}))

	middleware := []httpx.Middleware{
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithCORS(httpx.DefaultCORSPolicy(cfg.CORSOrigins)),
	}
	if cfg.RateLimitPerMinute > 0 {
		var limiter httpx.Limiter = httpx.NewMemoryLimiter(cfg.RateLimitPerMinute, time.Minute)
		if rdb != nil {
			limiter = httpx.NewRedisLimiter(rdb, cfg.RateLimitPerMinute, time.Minute, "ratelimit:"+cfg.Service+":")
		}
		middleware = append(middleware, httpx.RateLimit(limiter, httpx.RateLimitOptions{FailOpen: true, Logger: logger}))
	}
	middleware = append(middleware, httpx.WithBodyLimit(1<<20), httpx.WithTimeout(15*time.Second))

	httpHandler := otelhttp.NewHandler(httpx.Chain(mux, middleware...), "appointment")
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpcx.NewServer(logger)
	go grpcServer.WatchReadiness(ctx, cfg.Service, 10*time.Second, checks...)
	go func() {
		logger.Info("grpc server starting", "addr", ":"+cfg.GRPCPort)
		if err := grpcServer.ListenAndServe(ctx, ":"+cfg.GRPCPort); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()

	if cfg.RemindersEnabled {
		worker := reminders.NewWorker(store, manager, logger, reminders.WorkerConfig{
			Interval:  cfg.ReminderInterval,
			BatchSize: cfg.ReminderBatchSize,
			Lead:      cfg.ReminderLead,
		})
		logger.Info("reminder worker starting", "lead", cfg.ReminderLead, "interval", cfg.ReminderInterval)
		go worker.Run(ctx)
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	steps := []runtime.ShutdownStep{
		{Name: "http", Fn: srv.Shutdown},
		{Name: "notifications", Fn: closeNotify},
	}
	if pool != nil {
		steps = append(steps, runtime.ShutdownStep{Name: "postgres", Fn: func(context.Context) error { pool.Close(); return nil }})
	}
	_ = runtime.Shutdown(10*time.Second, logger, steps...)
	logger.Info("http server stopped")
}
