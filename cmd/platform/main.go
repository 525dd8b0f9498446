package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/citizenvoice/platform/internal/attachment"
	"github.com/citizenvoice/platform/internal/auth"
	complaintapi "github.com/citizenvoice/platform/internal/complaint/api"
	complaintinfra "github.com/citizenvoice/platform/internal/complaint/infrastructure"
	"github.com/citizenvoice/platform/internal/leader"
	"github.com/citizenvoice/platform/internal/location"
	sharedauth "github.com/citizenvoice/platform/internal/shared/auth"
	"github.com/citizenvoice/platform/internal/shared/config"
	"github.com/citizenvoice/platform/internal/shared/database"
	"github.com/citizenvoice/platform/internal/shared/events"
	"github.com/citizenvoice/platform/internal/shared/logging"
	"github.com/citizenvoice/platform/internal/shared/metrics"
	secmiddleware "github.com/citizenvoice/platform/internal/shared/middleware"
	"github.com/citizenvoice/platform/internal/shared/response"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// App holds all application dependencies
type App struct {
	Config   *config.Config
	DB       *database.DB
	Redis    *redis.Client
	Bus      events.EventBus
	Sessions auth.SessionStore
	Logger   *zap.Logger
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Server.Env)
	if err != nil {
		os.Stderr.WriteString("failed to create logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Sync()

	app := &App{Config: cfg, Logger: logger}

	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("database not available", zap.Error(err))
	}
	app.DB = db
	defer db.Close()

	if err := database.Migrate(ctx, db.Pool, logger); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}

	app.Sessions = newSessionStore(ctx, app)
	if app.Redis != nil {
		defer app.Redis.Close()
	}

	bus, err := events.NewEventBus(ctx, cfg.KurrentDB, logger)
	if err != nil {
		logger.Warn("KurrentDB not available, logging events instead", zap.Error(err))
		bus = events.NewLogBus(logger)
	}
	app.Bus = bus
	defer bus.Close()

	store, err := attachment.New(cfg.Storage)
	if err != nil {
		logger.Fatal("attachment storage misconfigured", zap.Error(err))
	}
	if !cfg.Storage.Enabled {
		logger.Warn("S3 disabled, attachment uploads will be rejected")
	}

	locations := location.Default()
	users := auth.NewPostgresUserRepository(db.Pool)
	tokens := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.SessionTTL)
	authService := auth.NewService(users, app.Sessions, tokens, locations, cfg.Auth.BcryptCost, logger)
	authHandler := auth.NewHandler(authService, auth.CookieConfig{
		Name:   cfg.Auth.CookieName,
		Domain: cfg.Auth.CookieDomain,
		Secure: cfg.Auth.SecureCookie,
	}, logger)

	complaintHandler := complaintapi.NewHandler(
		complaintinfra.NewPostgresRepository(db.Pool),
		bus,
		store,
		locations,
		cfg.Storage.MaxUploadBytes,
		logger,
	)
	leaderHandler := leader.NewHandler(authService, users, bus, logger)

	limiter := secmiddleware.NewIPRateLimiter(cfg.RateLimit.AuthRequestsPerSecond, cfg.RateLimit.AuthBurst)
	pruneCtx, stopPrune := context.WithCancel(ctx)
	defer stopPrune()
	go pruneVisitors(pruneCtx, limiter)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.Middleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(secmiddleware.SecurityHeaders(cfg.Server.IsProduction()))
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", healthHandler)
	r.Get("/ready", readyHandler(app))
	r.Handle("/metrics", metrics.Handler())

	authenticated := sharedauth.Middleware(authService, cfg.Auth.CookieName, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(limiter.Middleware)
			r.Mount("/auth", authHandler.Routes())
		})
		r.With(authenticated).Get("/auth/me", authHandler.Me)

		r.Mount("/locations", location.NewHandler(locations).Routes())

		r.Group(func(r chi.Router) {
			r.Use(authenticated)
			r.Mount("/complaints", complaintHandler.Routes())
			r.Mount("/admin", leaderHandler.AdminRoutes())
			r.Mount("/leader", leaderHandler.LeaderRoutes())
		})
	})

	srv := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan struct{})
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		logger.Info("shutting down server")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("server shutdown error", zap.Error(err))
		}
		close(done)
	}()

	logger.Info("server starting",
		zap.String("env", cfg.Server.Env),
		zap.Int("port", cfg.Server.Port),
		zap.Bool("redis", app.Redis != nil),
		zap.Bool("kurrentdb", cfg.KurrentDB.Enabled),
		zap.Bool("s3", cfg.Storage.Enabled),
	)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}

	<-done
	logger.Info("server stopped")
}

// newSessionStore connects to Redis, falling back to process memory. The
// memory store loses sessions on restart and is not shared between replicas.
func newSessionStore(ctx context.Context, app *App) auth.SessionStore {
	cfg := app.Config.Redis
	if !cfg.Enabled {
		app.Logger.Warn("Redis disabled, running with in-memory sessions")
		return auth.NewMemorySessionStore()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		app.Logger.Warn("Redis not available, running with in-memory sessions", zap.Error(err))
		client.Close()
		return auth.NewMemorySessionStore()
	}

	app.Redis = client
	return auth.NewRedisSessionStore(client)
}

func pruneVisitors(ctx context.Context, limiter *secmiddleware.IPRateLimiter) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			limiter.Prune()
		}
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func readyHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{"server": "ready"}

		if err := app.DB.Health(r.Context()); err != nil {
			checks["database"] = "not ready: " + err.Error()
		} else {
			checks["database"] = "ready"
		}

		if app.Redis != nil {
			if err := app.Redis.Ping(r.Context()).Err(); err != nil {
				checks["redis"] = "not ready: " + err.Error()
			} else {
				checks["redis"] = "ready"
			}
		} else {
			checks["redis"] = "not configured"
		}

		if err := app.Bus.Health(r.Context()); err != nil {
			checks["events"] = "not ready: " + err.Error()
		} else {
			checks["events"] = "ready"
		}

		allReady := true
		for _, status := range checks {
			if status != "ready" && status != "not configured" {
				allReady = false
				break
			}
		}

		status := http.StatusOK
		if !allReady {
			status = http.StatusServiceUnavailable
		}

		response.JSON(w, status, map[string]any{
			"status": map[bool]string{true: "ready", false: "not ready"}[allReady],
			"checks": checks,
		})
	}
}
