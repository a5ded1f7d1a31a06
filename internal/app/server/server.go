package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"hrdesk/internal/domain/attendance"
	"hrdesk/internal/domain/audit"
	"hrdesk/internal/domain/employee"
	"hrdesk/internal/domain/leave"
	"hrdesk/internal/domain/notifications"
	"hrdesk/internal/domain/policy"
	"hrdesk/internal/domain/reports"
	"hrdesk/internal/platform/cache"
	"hrdesk/internal/platform/clock"
	"hrdesk/internal/platform/config"
	"hrdesk/internal/platform/db"
	"hrdesk/internal/platform/email"
	"hrdesk/internal/platform/jobs"
	"hrdesk/internal/platform/logger"
	"hrdesk/internal/platform/metrics"
	attendancehandler "hrdesk/internal/transport/http/handlers/attendance"
	audithandler "hrdesk/internal/transport/http/handlers/audit"
	employeeshandler "hrdesk/internal/transport/http/handlers/employees"
	leavehandler "hrdesk/internal/transport/http/handlers/leave"
	policieshandler "hrdesk/internal/transport/http/handlers/policies"
	reportshandler "hrdesk/internal/transport/http/handlers/reports"
	"hrdesk/internal/transport/http/middleware"
)

// App is the wired service. Router is exported so tests can mount it on
// httptest servers.
type App struct {
	Config    config.Config
	Logger    *zap.Logger
	DB        *pgxpool.Pool
	Redis     *redis.Client
	Metrics   *metrics.Collector
	Employees employee.StoreAPI
	Policies  *policy.Service
	Router    http.Handler
}

type options struct {
	clock  *clock.Clock
	logger *zap.Logger
}

type Option func(*options)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = &c }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

type stores struct {
	employees  employee.StoreAPI
	policies   policy.StoreAPI
	leave      leave.Store
	attendance attendance.Store
	audit      audit.Store
	jobRuns    jobs.RunStore
}

func memoryStores() stores {
	return stores{
		employees:  employee.NewMemoryStore(),
		policies:   policy.NewMemoryStore(),
		leave:      leave.NewMemoryStore(),
		attendance: attendance.NewMemoryStore(),
		audit:      audit.NewMemoryStore(),
		jobRuns:    jobs.NewMemoryStore(),
	}
}

func postgresStores(pool *pgxpool.Pool) stores {
	return stores{
		employees:  employee.NewStore(pool),
		policies:   policy.NewStore(pool),
		leave:      leave.NewStore(pool),
		attendance: attendance.NewStore(pool),
		audit:      audit.NewStore(pool),
		jobRuns:    jobs.NewPGStore(pool),
	}
}

func New(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := o.logger
	if log == nil {
		var err error
		if log, err = logger.New(cfg); err != nil {
			return nil, fmt.Errorf("build logger: %w", err)
		}
	}
	clk := clock.New(cfg.Location())
	if o.clock != nil {
		clk = *o.clock
	}

	app := &App{Config: cfg, Logger: log}

	var st stores
	switch cfg.StorageDriver {
	case config.StoragePostgres:
		pool, err := db.Connect(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("db connect: %w", err)
		}
		app.DB = pool
		if cfg.RunMigrations {
			if err := db.Migrate(ctx, pool, log); err != nil {
				app.Close()
				return nil, fmt.Errorf("migrations: %w", err)
			}
		}
		st = postgresStores(pool)
	default:
		log.Warn("using in-memory storage; data is lost on restart")
		st = memoryStores()
	}

	rdb, err := cache.NewRedis(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("redis connect: %w", err)
	}
	app.Redis = rdb
	jsonCache := cache.NewJSON(rdb, "hrdesk", log)

	if cfg.MetricsEnabled {
		app.Metrics = metrics.New()
	}

	policies := policy.NewService(st.policies, jsonCache, cfg.CacheTTL, log)
	if cfg.RunSeed {
		if err := db.Seed(ctx, st.employees, st.policies, cfg.PolicyCategory, log); err != nil {
			app.Close()
			return nil, fmt.Errorf("seed: %w", err)
		}
	}
	app.Employees = st.employees
	app.Policies = policies

	recorder := audit.NewRecorder(st.audit, log)
	ledger := leave.NewLedger(st.leave, recorder, log)
	lifecycle := leave.NewLifecycle(st.leave, clk, recorder, app.Metrics, log)
	lifecycle.Notifier = notifications.New(st.employees, email.New(cfg), cfg.EmailFrom, log)
	provisioner := leave.NewProvisioner(ledger, st.employees, policies, cfg.PolicyCategory, cfg.BatchConcurrency, recorder, app.Metrics, log)
	tracker := attendance.NewTracker(st.attendance, policies, cfg.PolicyCategory, clk, recorder, app.Metrics, log)
	reportSvc := reports.NewService(st.employees, st.attendance, st.leave, clk, jsonCache, cfg.CacheTTL, log)
	jobSvc := jobs.New(st.jobRuns, log)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(chimw.RealIP)
	router.Use(middleware.Logger(log, app.Metrics))
	router.Use(chimw.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.Environment == config.EnvProduction))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID", middleware.IdempotencyHeader},
		ExposedHeaders:   []string{"X-Request-ID", "X-Total-Count"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.Auth(cfg.JWTSecret))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := app.ping(ctx); err != nil {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	if app.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", app.Metrics.Handler())
	}

	router.Route("/api", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute))
		r.Use(middleware.SensitiveMutationRateLimit(cfg.RateLimitPerMinute, time.Minute))

		leavehandler.NewHandler(lifecycle, ledger, clk, middleware.Idempotency(jsonCache, 24*time.Hour)).RegisterRoutes(r)
		attendancehandler.NewHandler(tracker, clk).RegisterRoutes(r)
		employeeshandler.NewHandler(ledger, provisioner).RegisterRoutes(r)
		policieshandler.NewHandler(policies, provisioner, jobSvc, recorder, cfg.PolicyCategory).RegisterRoutes(r)
		reportshandler.NewHandler(reportSvc, clk).RegisterRoutes(r)
		audithandler.NewHandler(recorder).RegisterRoutes(r)
	})

	app.Router = router
	return app, nil
}

func (a *App) ping(ctx context.Context) error {
	if a.DB != nil {
		if err := a.DB.Ping(ctx); err != nil {
			return err
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Warn("redis close failed", zap.Error(err))
		}
	}
	_ = a.Logger.Sync()
}

// Run loads configuration, serves until SIGINT/SIGTERM and drains in-flight
// requests for up to SHUTDOWN_TIMEOUT.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()
	zap.ReplaceGlobals(app.Logger)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		app.Logger.Info("server listening", zap.String("addr", cfg.Addr), zap.String("storage", cfg.StorageDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	app.Logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
