package main

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
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"dashboard-backend/internal/config"
	"dashboard-backend/internal/cron"
	"dashboard-backend/internal/ctxkeys"
	"dashboard-backend/internal/dashboard"
	"dashboard-backend/internal/database"
	"dashboard-backend/internal/handlers"
	"dashboard-backend/internal/logger"
	"dashboard-backend/internal/metrics"
	"dashboard-backend/internal/middleware"
	"dashboard-backend/internal/storage"
)

func main() {
	// 1. Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format, "dashboard-backend")
	defer log.Sync()

	// Background work (archiver, limiter sweeps, cache refreshes) stops with ctx.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Pick the data source
	var (
		source dashboard.Provider
		db     database.Service
	)
	if cfg.UsesPostgres() {
		db, err = database.New(ctx, &cfg.DB)
		if err != nil {
			log.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		if cfg.DB.Migrate {
			if err := database.Migrate(ctx, db.GetPool()); err != nil {
				log.Fatal("Failed to migrate database", zap.Error(err))
			}
		}
		if cfg.Admin.Username != "" {
			seedAdmin(ctx, log, db, cfg.Admin)
		}
		source = dashboard.NewPostgres(db)
	} else {
		source = dashboard.NewSample()
	}

	// 3. Cache in front of the source: Redis when configured, else in-process
	var cacheStore dashboard.CacheStore
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatal("Invalid REDIS_URL", zap.Error(err))
		}
		client := redis.NewClient(opts)
		defer client.Close()

		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		if err := client.Ping(pingCtx).Err(); err != nil {
			// Cached falls back to the source on store errors, so keep going.
			log.Warn("Redis not reachable at startup", zap.Error(err))
		}
		pingCancel()
		cacheStore = dashboard.NewRedisStore(client, "dashboard:")
	}

	data := dashboard.NewCached(source, cacheStore, dashboard.CacheOptions{
		TTL:            cfg.Cache.TTL,
		MaxStale:       cfg.Cache.MaxStale,
		RefreshTimeout: cfg.Cache.RefreshTimeout,
		MaxRetries:     cfg.Cache.MaxRetries,
		Logger:         log.Named("cache"),
	})

	// 4. Initialize file storage for snapshots
	var fileStore storage.Store
	switch cfg.StorageBackend {
	case config.StorageR2:
		fileStore, err = storage.NewR2Store(ctx, cfg.R2.AccountID, cfg.R2.AccessKeyID,
			cfg.R2.SecretAccessKey, cfg.R2.Bucket, cfg.R2.PublicURL)
	default:
		fileStore, err = storage.NewLocalStore(cfg.Upload.Dir, cfg.Upload.BaseURL)
	}
	if err != nil {
		log.Fatal("Failed to initialize file storage", zap.Error(err))
	}

	// Start background jobs
	archiverDone := cron.NewArchiver(data, fileStore, cfg.Snapshot.Retain, log.Named("archiver")).Start(ctx, cfg.Snapshot.Interval)

	// 5. Set up router with global middleware
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.RequestLogger(log.Named("http")))
	r.Use(middleware.Metrics)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// 6. Initialize handlers with their dependencies
	dashboardHandler := handlers.NewDashboardHandler(data, log.Named("dashboard"))
	snapshotHandler := handlers.NewSnapshotHandler(fileStore, log.Named("snapshots"))

	// 7. Public routes (no authentication required)
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Mission Dashboard API"))
	})
	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		health := map[string]string{"status": "up", "source": cfg.DataSource}
		if db != nil {
			health = db.Health()
		}
		health["cache"] = "memory"
		if cacheStore != nil {
			health["cache"] = "redis"
		}
		status := http.StatusOK
		if health["status"] != "up" {
			status = http.StatusServiceUnavailable
		}
		handlers.JSON(w, status, health)
	})
	r.Handle("/metrics", metrics.Handler())

	authEnabled := cfg.JWTSecret != ""
	var authHandler *handlers.AuthHandler
	if authEnabled && db != nil {
		authHandler = handlers.NewAuthHandler(database.NewAdmins(db.GetPool()), cfg.JWTSecret, log.Named("auth"))
		// ~5 attempts/minute per IP
		r.With(middleware.RateLimit(ctx, rate.Every(12*time.Second), 5, cfg.TrustedProxies, log.Named("ratelimit"))).
			Post("/api/auth/login", authHandler.Login)
	}
	if !authEnabled {
		log.Warn("JWT_SECRET not set: dashboard routes are public")
	}

	// 8. Dashboard routes (JWT required when a secret is configured)
	r.Group(func(r chi.Router) {
		if authEnabled {
			r.Use(middleware.Auth(cfg.JWTSecret))
		}
		if authHandler != nil {
			r.Get("/api/auth/me", authHandler.GetMe)
		}

		r.Get("/api/dashboard", dashboardHandler.GetOverview)
		r.Get("/api/dashboard/", dashboardHandler.GetOverview)
		r.Get("/api/dashboard/stats", dashboardHandler.GetStats)
		r.Get("/api/dashboard/tier-performance", dashboardHandler.GetTierPerformance)
		r.Get("/api/dashboard/urgent-alerts", dashboardHandler.GetUrgentAlerts)
		r.Get("/api/dashboard/reward-summary", dashboardHandler.GetRewardSummary)
		r.Get("/api/dashboard/recent-activities", dashboardHandler.GetRecentActivities)
		r.Get("/api/dashboard/snapshots/latest", snapshotHandler.Latest)
		r.Get("/api/files/*", snapshotHandler.ServeFile)

		// The approval queue carries contact details; admins only.
		r.Group(func(r chi.Router) {
			if authEnabled {
				r.Use(middleware.RequireMinRole(ctxkeys.RoleAdmin))
			}
			r.Get("/api/dashboard/pending-rewards", dashboardHandler.GetPendingRewards)
		})
	})

	// 9. Start server with graceful shutdown
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info("Server started", zap.String("port", cfg.Port), zap.String("source", cfg.DataSource))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	<-done
	log.Info("Server stopping")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	select {
	case <-archiverDone:
	case <-shutdownCtx.Done():
		log.Warn("Snapshot archiver did not stop in time")
	}

	log.Info("Server exited properly")
}

// seedAdmin creates the configured admin account if it does not exist.
func seedAdmin(ctx context.Context, log *zap.Logger, db database.Service, admin config.AdminConfig) {
	hash, err := bcrypt.GenerateFromPassword([]byte(admin.Password), 12)
	if err != nil {
		log.Fatal("Failed to hash admin password", zap.Error(err))
	}
	created, err := database.NewAdmins(db.GetPool()).Ensure(ctx, admin.Username, string(hash), admin.Username, admin.Role)
	if err != nil {
		log.Fatal("Failed to seed admin", zap.Error(err))
	}
	if created {
		log.Info("Admin account created", zap.String("username", admin.Username))
	}
}
