package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/syllabus-portal/internal/service"
	"github.com/noah-isme/syllabus-portal/pkg/config"
	"github.com/noah-isme/syllabus-portal/pkg/export"
	"github.com/noah-isme/syllabus-portal/pkg/jobs"
	"github.com/noah-isme/syllabus-portal/pkg/logger"
	"github.com/noah-isme/syllabus-portal/pkg/storage"
)

// @title Syllabus Portal Sync API
// @version 1.0.0
// @description Local front door for the lesson plan portal. Keeps the local store and the remote sync endpoint convergent.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("portal sync stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	store, err := openStore(ctx, cfg, logr)
	if err != nil {
		return fmt.Errorf("open local store: %w", err)
	}
	defer func() {
		if err := store.close(); err != nil {
			logr.Warn("failed to close local store", zap.Error(err))
		}
	}()

	metrics := service.NewMetricsService()
	validate := validator.New()

	localCache := service.NewLocalCache(store, metrics, logr.Named("store"))
	state := service.NewStateStore(localCache, metrics, logr.Named("state"))
	if err := state.Load(ctx); err != nil {
		return fmt.Errorf("load local state: %w", err)
	}

	settings := service.NewSyncSettings(localCache, cfg.Sync.DefaultURL, logr.Named("sync"))
	if _, err := settings.Resolve(ctx, cfg.Sync.URL); err != nil {
		return fmt.Errorf("resolve sync url: %w", err)
	}

	client := service.NewSyncClient(cfg.Sync.HTTPTimeout, metrics, logr.Named("sync"))
	outbox := service.NewOutboxService(localCache, client, settings, metrics, logr.Named("outbox"), cfg.Outbox.MaxAttempts)
	queue := jobs.NewQueue("outbox", outbox.HandleJob, jobs.QueueConfig{
		Workers:    cfg.Outbox.Workers,
		RetryDelay: cfg.Outbox.RetryDelay,
		Coalesce:   true,
		Logger:     logr.Named("jobs"),
	})
	outbox.AttachQueue(queue)
	queue.Start(ctx)
	defer queue.Stop()

	reconciler := service.NewReconciler(state, client, settings, outbox, logr.Named("reconciler"), service.ReconcilerConfig{
		ConfirmDelay: cfg.Sync.ConfirmDelay,
		PullTimeout:  cfg.Sync.HTTPTimeout,
	})
	defer reconciler.Close()
	outbox.AttachConfirmer(reconciler)

	poller := service.NewPoller(reconciler, cfg.Sync.PollInterval, logr.Named("poller"))
	sessions := service.NewSessionService(state, settings, reconciler, poller, outbox, validate, logr.Named("session"), service.SessionConfig{
		Secret:            cfg.JWT.Secret,
		Expiry:            cfg.JWT.Expiration,
		Issuer:            "syllabus-portal",
		AdminEmail:        cfg.Admin.Email,
		AdminPasswordHash: cfg.Admin.PasswordHash,
	})
	defer sessions.Close()

	portal := service.NewPortalService(state, localCache, reconciler, validate, logr.Named("portal"))

	exportFiles, err := storage.NewLocalStorage(cfg.Exports.Dir)
	if err != nil {
		return fmt.Errorf("open exports dir: %w", err)
	}
	exports := service.NewExportService(state, portal, reconciler, exportFiles,
		storage.NewSignedURLSigner(cfg.JWT.Secret, cfg.Exports.TTL),
		service.ExportConfig{APIPrefix: cfg.APIPrefix, SchoolName: cfg.SchoolName, ResultTTL: cfg.Exports.TTL},
		logr.Named("exports"), export.NewCSVExporter(true), export.NewPDFExporter())
	go sweepExports(ctx, exports, cfg.Exports.TTL, logr)

	// replay whatever a previous run left behind
	outbox.RequestReplay()

	router := newRouter(cfg, logr, routerDeps{
		metrics:    metrics,
		store:      store,
		state:      state,
		reconciler: reconciler,
		settings:   settings,
		outbox:     outbox,
		sessions:   sessions,
		portal:     portal,
		exports:    exports,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env), zap.Bool("sync_configured", settings.URL() != ""))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
		close(errs)
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
		return srv.Close()
	}
	return nil
}

func sweepExports(ctx context.Context, exports *service.ExportService, ttl time.Duration, logr *zap.Logger) {
	interval := ttl / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := exports.Cleanup(0)
			if err != nil {
				logr.Warn("export cleanup failed", zap.Error(err))
				continue
			}
			if len(removed) > 0 {
				logr.Info("expired exports removed", zap.Int("count", len(removed)))
			}
		}
	}
}
