package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"hrflow/internal/domain/approval"
	"hrflow/internal/domain/audit"
	"hrflow/internal/domain/auth"
	"hrflow/internal/domain/events"
	"hrflow/internal/domain/notifications"
	"hrflow/internal/domain/review"
	"hrflow/internal/domain/task"
	"hrflow/internal/platform/config"
	"hrflow/internal/platform/db"
	"hrflow/internal/platform/email"
	"hrflow/internal/platform/jobs"
	"hrflow/internal/platform/metrics"
	"hrflow/internal/transport/http/api"
	approvalshandler "hrflow/internal/transport/http/handlers/approvals"
	audithandler "hrflow/internal/transport/http/handlers/audit"
	authhandler "hrflow/internal/transport/http/handlers/auth"
	jobshandler "hrflow/internal/transport/http/handlers/jobs"
	notificationshandler "hrflow/internal/transport/http/handlers/notifications"
	reviewshandler "hrflow/internal/transport/http/handlers/reviews"
	taskshandler "hrflow/internal/transport/http/handlers/tasks"
	"hrflow/internal/transport/http/middleware"
)

func Run() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer pool.Close()

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, "migrations"); err != nil {
			log.Fatalf("migrations failed: %v", err)
		}
	}
	if cfg.RunSeed {
		if err := db.Seed(ctx, pool, cfg); err != nil {
			log.Fatalf("seed failed: %v", err)
		}
	}

	bus := events.NewBus()

	taskSvc := task.NewService(task.NewStore(pool), nil, bus)
	reviewSvc := review.NewService(review.NewStore(pool), nil, bus)
	approvalSvc := approval.NewService(approval.NewStore(pool), taskSvc, reviewSvc, bus)
	taskSvc.SetGate(approvalSvc)
	reviewSvc.SetGate(approvalSvc)

	notifSvc := notifications.New(notifications.NewStore(pool), email.New(cfg))
	notifSvc.DefaultFrom = cfg.EmailFrom
	auditSvc := audit.New(pool)
	bus.Subscribe(notifSvc.HandleEvent)
	bus.Subscribe(auditSvc.HandleEvent)

	authSvc := auth.NewService(auth.NewStore(pool))

	jobRunner := jobs.New(pool, cfg, taskSvc)
	jobRunner.Start(ctx)

	collector := metrics.New()
	isProd := cfg.Environment == "production"

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.SecureHeaders(isProd))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	if cfg.MetricsEnabled {
		router.Use(middleware.Metrics(collector))
	}
	router.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute))
	router.Use(middleware.SensitiveMutationRateLimit(cfg.RateLimitPerMinute, time.Minute))
	router.Use(middleware.Auth(cfg.JWTSecret))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	router.Route("/api/v1", func(r chi.Router) {
		authHandler := authhandler.NewHandler(authSvc, cfg.JWTSecret)
		r.Post("/auth/login", authHandler.HandleLogin)

		taskshandler.NewHandler(taskSvc, authSvc, auditSvc).RegisterRoutes(r)
		approvalshandler.NewHandler(approvalSvc, authSvc, auditSvc).RegisterRoutes(r)
		reviewshandler.NewHandler(reviewSvc, authSvc, auditSvc).RegisterRoutes(r)
		notificationshandler.NewHandler(notifSvc, authSvc).RegisterRoutes(r)
		audithandler.NewHandler(auditSvc, authSvc).RegisterRoutes(r)
		jobshandler.NewHandler(jobRunner, authSvc).RegisterRoutes(r)

		if cfg.MetricsEnabled {
			r.With(middleware.RequirePermission(auth.PermSystemAdmin, authSvc)).Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
				api.Success(w, collector.Snapshot(), middleware.GetRequestID(r.Context()))
			})
		}
	})

	log.Printf("server listening on %s", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, router); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
