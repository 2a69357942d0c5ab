package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/syllabus-portal/api/swagger"
	"github.com/noah-isme/syllabus-portal/internal/handler"
	"github.com/noah-isme/syllabus-portal/internal/middleware"
	"github.com/noah-isme/syllabus-portal/internal/models"
	"github.com/noah-isme/syllabus-portal/internal/service"
	"github.com/noah-isme/syllabus-portal/pkg/config"
	"github.com/noah-isme/syllabus-portal/pkg/logger"
	corsmiddleware "github.com/noah-isme/syllabus-portal/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/syllabus-portal/pkg/middleware/requestid"
)

type routerDeps struct {
	metrics    *service.MetricsService
	store      *localStore
	state      *service.StateStore
	reconciler *service.Reconciler
	settings   *service.SyncSettings
	outbox     *service.OutboxService
	sessions   *service.SessionService
	portal     *service.PortalService
	exports    *service.ExportService
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/ready", "/metrics", cfg.APIPrefix+"/state/version"))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.metrics))

	metricsHandler := handler.NewMetricsHandler(deps.metrics, map[string]handler.ReadinessProbe{
		"store": deps.store.probe,
	})
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	sessionHandler := handler.NewSessionHandler(deps.sessions)
	syncHandler := handler.NewSyncHandler(deps.state, deps.reconciler, deps.settings, deps.outbox, deps.sessions)
	portalHandler := handler.NewPortalHandler(deps.portal)
	exportHandler := handler.NewExportHandler(deps.exports)

	api := r.Group(cfg.APIPrefix)
	api.POST("/session/login", sessionHandler.Login)
	api.GET("/exports/:token", exportHandler.Download)

	authed := api.Group("")
	authed.Use(middleware.JWT(deps.sessions))
	authed.GET("/session", sessionHandler.Current)
	authed.POST("/session/logout", sessionHandler.Logout)
	authed.POST("/session/visibility", sessionHandler.Visibility)

	authed.GET("/state", syncHandler.State)
	authed.GET("/state/version", syncHandler.Version)
	authed.POST("/sync/pull", syncHandler.Pull)
	authed.GET("/sync/url", syncHandler.Status)
	authed.PUT("/sync/url", syncHandler.SetURL)
	authed.DELETE("/sync/url", syncHandler.ClearURL)
	authed.GET("/sync/outbox", syncHandler.Outbox)
	authed.POST("/sync/outbox/replay", syncHandler.Replay)

	authed.GET("/plans/gate", portalHandler.Gate)
	authed.POST("/plans", portalHandler.SubmitPlan)
	authed.POST("/resubmits", portalHandler.RequestResubmit)

	admin := authed.Group("")
	admin.Use(middleware.RequireRoles(models.RoleAdmin))
	admin.POST("/resubmits/:id/approve", portalHandler.ApproveResubmit)
	admin.POST("/resubmits/:id/reject", portalHandler.RejectResubmit)
	admin.DELETE("/submissions/:teacherId/:week", portalHandler.ForceReset)
	admin.PUT("/registry", portalHandler.UpdateRegistry)
	admin.POST("/registry/factory-reset", portalHandler.FactoryReset)
	admin.POST("/warnings", portalHandler.SendWarnings)
	admin.GET("/compliance", portalHandler.Compliance)
	admin.GET("/compliance.csv", exportHandler.ComplianceCSV)
	admin.POST("/compiled-pdf", exportHandler.CompiledPDF)

	return r
}
