package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/mwork/admin-console/internal/config"
	"github.com/mwork/admin-console/internal/domain/action"
	"github.com/mwork/admin-console/internal/domain/admin"
	"github.com/mwork/admin-console/internal/domain/audit"
	"github.com/mwork/admin-console/internal/domain/identity"
	"github.com/mwork/admin-console/internal/domain/notify"
	"github.com/mwork/admin-console/internal/domain/operations"
	"github.com/mwork/admin-console/internal/domain/rbac"
	"github.com/mwork/admin-console/internal/middleware"
	"github.com/mwork/admin-console/internal/pkg/database"
	"github.com/mwork/admin-console/internal/pkg/jwt"
	"github.com/mwork/admin-console/internal/pkg/logger"
	"github.com/mwork/admin-console/internal/pkg/metrics"
	pkgresponse "github.com/mwork/admin-console/internal/pkg/response"
	"github.com/mwork/admin-console/internal/pkg/storage"
)

const localExportMaxAge = 7 * 24 * time.Hour

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Env,
		Service:     "admin-console",
	})

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting admin console API")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("Admin console stopped with error")
	}
	log.Info().Msg("Server exited properly")
}

func run(ctx context.Context, cfg *config.Config) error {
	metrics.Init()

	policy, err := rbac.LoadPolicy(cfg.PolicyFile)
	if err != nil {
		return err
	}

	db, err := database.NewPostgres(ctx, cfg.DatabaseURL, database.DefaultPoolConfig())
	if err != nil {
		return err
	}
	defer database.ClosePostgres(db)

	if err := database.Migrate(ctx, db); err != nil {
		return err
	}

	redis, err := database.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	defer database.CloseRedis(redis)

	// ---------- Audit trail ----------
	trail := audit.NewTrail(audit.NewRepository(db),
		audit.WithBufferSize(cfg.AuditBufferSize),
		audit.WithWriteTimeout(cfg.AuditWriteTimeout),
	)

	// ---------- Identity ----------
	counter := identity.NewMemoryCounter()
	if redis != nil {
		counter = identity.NewRedisCounter(redis)
	}
	identitySvc := identity.NewService(identity.NewRepository(db), counter,
		identity.WithLockout(cfg.ReauthMaxFailures, cfg.ReauthLockoutWindow),
	)
	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL)

	// ---------- Actions ----------
	hub := notify.NewHub(redis)
	actionSvc := action.NewService(policy, identitySvc, trail, hub, cfg.ActionTicketTTL)
	catalog := operations.NewCatalog(operations.NewRepository(db), policy)

	// ---------- Export storage ----------
	exports, local, err := newExportStorage(ctx, cfg)
	if err != nil {
		return err
	}

	adminHandler := admin.NewHandler(admin.Deps{
		Policy:   policy,
		Identity: identitySvc,
		JWT:      jwtService,
		Actions:  actionSvc,
		Catalog:  catalog,
		Trail:    trail,
		Exports:  exports,
		WS:       notify.NewHandler(hub, cfg.AllowedOrigins),
	})

	r := newRouter(cfg, db, redis, adminHandler)
	if local != nil {
		r.With(middleware.Auth(jwtService), middleware.RequirePermission(policy, rbac.PermExportAuditLog)).
			Handle("/exports/*", http.StripPrefix("/exports/", http.FileServer(http.Dir(cfg.ExportLocalDir))))
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error { return trail.RunResync(gctx, cfg.AuditResyncInterval) })
	g.Go(func() error { return actionSvc.RunSweeper(gctx, time.Minute) })
	if local != nil {
		g.Go(func() error { return runExportCleanup(gctx, local) })
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()

	// Let in-flight audit writes and notifications land before the pool closes
	actionSvc.Drain()
	flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if n := trail.Resync(flushCtx); n > 0 {
		log.Info().Int("entries", n).Msg("Flushed buffered audit entries")
	}

	return err
}

func newExportStorage(ctx context.Context, cfg *config.Config) (storage.Storage, *storage.LocalStorage, error) {
	if cfg.UseS3Export() {
		s3, err := storage.NewS3Storage(ctx, storage.Config{
			Endpoint:   cfg.ExportS3Endpoint,
			Region:     cfg.ExportS3Region,
			Bucket:     cfg.ExportS3Bucket,
			AccessKey:  cfg.ExportS3AccessKey,
			SecretKey:  cfg.ExportS3SecretKey,
			PresignTTL: cfg.ExportPresignTTL,
		})
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("bucket", cfg.ExportS3Bucket).Msg("Audit exports go to S3")
		return s3, nil, nil
	}

	if cfg.ExportLocalDir == "" {
		log.Info().Msg("Audit exports are streamed directly")
		return nil, nil, nil
	}

	local, err := storage.NewLocalStorage(cfg.ExportLocalDir, cfg.ExportLocalBaseURL)
	if err != nil {
		return nil, nil, err
	}
	log.Info().Str("dir", cfg.ExportLocalDir).Msg("Audit exports go to local disk")
	return local, local, nil
}

func runExportCleanup(ctx context.Context, local *storage.LocalStorage) error {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := local.CleanupExpired(localExportMaxAge)
			if err != nil {
				log.Warn().Err(err).Msg("Failed to clean up audit exports")
				continue
			}
			if n > 0 {
				log.Info().Int("removed", n).Msg("Removed expired audit exports")
			}
		}
	}
}

// pinger checks one backing service
type pinger func(ctx context.Context) error

func newRouter(cfg *config.Config, db *sqlx.DB, redis *goredis.Client, adminHandler *admin.Handler) chi.Router {
	checks := map[string]pinger{}
	if db != nil {
		checks["postgres"] = db.PingContext
	}
	if redis != nil {
		checks["redis"] = func(ctx context.Context) error { return redis.Ping(ctx).Err() }
	}

	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(metrics.Instrument)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))

	r.Get("/health", healthHandler(checks))
	r.Handle("/metrics", metrics.Handler())

	r.Mount("/admin", adminHandler.Routes())

	return r
}

func healthHandler(checks map[string]pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := map[string]string{"status": "ok"}
		healthy := true
		for name, ping := range checks {
			if err := ping(ctx); err != nil {
				status[name] = "down"
				healthy = false
				continue
			}
			status[name] = "up"
		}

		if !healthy {
			status["status"] = "degraded"
			pkgresponse.JSON(w, http.StatusServiceUnavailable, status)
			return
		}
		pkgresponse.OK(w, status)
	}
}
