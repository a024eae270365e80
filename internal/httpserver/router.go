package httpserver

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"projectflow/internal/handler"
	"projectflow/pkg/rbac"
)

type Router struct {
	Engine *gin.Engine
}

func NewRouter(
	authHandler *handler.AuthHandler,
	projectHandler *handler.ProjectHandler,
	milestoneHandler *handler.MilestoneHandler,
	updateHandler *handler.UpdateHandler,
	uploadHandler *handler.UploadHandler,
	notificationHandler *handler.NotificationHandler,
	adminHandler *handler.AdminHandler,
	jwtSecret string,
	db *pgxpool.Pool,
) *Router {
	r := gin.Default()
	r.Use(MetricsMiddleware())

	// Health endpoints (放在最前面)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(200)
	})
	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c, 1*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			c.JSON(500, gin.H{"status": "db_not_ready", "error": err.Error()})
			return
		}

		c.JSON(200, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public
	r.POST("/register", authHandler.Register)
	r.POST("/login", authHandler.Login)

	// Protected
	auth := r.Group("/")
	auth.Use(AuthMiddleware(jwtSecret))
	{
		auth.POST("/projects", RequirePermission(rbac.PermissionManageProject), projectHandler.Create)
		auth.GET("/projects/:id", projectHandler.Get)
		auth.GET("/projects/:id/progress", projectHandler.Progress)
		auth.POST("/projects/:id/milestones", RequirePermission(rbac.PermissionManageProject), projectHandler.AddMilestone)

		auth.GET("/milestones/:id", milestoneHandler.Get)
		auth.POST("/milestones/:id/progress", RequirePermission(rbac.PermissionAdvanceProgress), milestoneHandler.AdvanceProgress)
		auth.POST("/milestones/:id/release", RequirePermission(rbac.PermissionRequestRelease), milestoneHandler.RequestRelease)
		auth.POST("/milestones/:id/approve", RequirePermission(rbac.PermissionApproveMilestone), milestoneHandler.Approve)
		auth.POST("/milestones/:id/close", RequirePermission(rbac.PermissionApproveMilestone), milestoneHandler.Close)
		auth.DELETE("/milestones/:id", RequirePermission(rbac.PermissionManageProject), milestoneHandler.Delete)

		auth.POST("/milestones/:id/updates", RequirePermission(rbac.PermissionSubmitUpdate), updateHandler.Submit)
		auth.POST("/updates/:id/approve", RequirePermission(rbac.PermissionReviewUpdate), updateHandler.Approve)
		auth.POST("/updates/:id/reject", RequirePermission(rbac.PermissionReviewUpdate), updateHandler.Reject)

		auth.POST("/photos", RequirePermission(rbac.PermissionSubmitUpdate), uploadHandler.Upload)

		auth.GET("/notifications", notificationHandler.List)
		auth.POST("/notifications/:id/read", notificationHandler.MarkRead)

		auth.POST("/admin/outbox/replay", RequirePermission(rbac.PermissionManageProject), adminHandler.ReplayOutboxEvent)
		auth.POST("/admin/outbox/replay-failed", RequirePermission(rbac.PermissionManageProject), adminHandler.ReplayFailedEvents)
	}

	return &Router{Engine: r}
}

func (r *Router) Run(port string) error {
	return r.Engine.Run(port)
}
