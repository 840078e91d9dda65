package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/damp-platform/damp-api/internal/middleware"
	"github.com/damp-platform/damp-api/internal/models"
)

// Handlers groups the route handlers mounted by RegisterRoutes.
type Handlers struct {
	Analytics *AnalyticsHandler
	Reports   *ReportHandler
	Health    *HealthHandler
}

// RegisterRoutes mounts the public probes at the root and the API under prefix.
// Reports may be nil when exports are disabled. Privileged writes are audited to auditLog.
func RegisterRoutes(r *gin.Engine, prefix string, tokens middleware.TokenValidator, auditLog *zap.Logger, h Handlers) {
	if h.Health != nil {
		r.GET("/health", h.Health.Health)
		r.GET("/ready", h.Health.Ready)
		r.GET("/metrics", h.Health.Prometheus)
	}

	api := r.Group(prefix)
	if h.Reports != nil {
		api.GET("/export/:token", h.Reports.Download)
	}

	secured := api.Group("")
	secured.Use(middleware.JWT(tokens))

	readers := secured.Group("/analytics")
	readers.Use(middleware.RequireRoles(models.RoleAdmin, models.RoleMentor))
	readers.GET("/completion", h.Analytics.Completion)
	readers.GET("/grades", h.Analytics.Grades)

	admin := secured.Group("/analytics")
	admin.Use(middleware.RequireRoles(models.RoleAdmin))
	admin.GET("/completion/breakdown", h.Analytics.CompletionBreakdown)
	admin.GET("/completion/time", h.Analytics.CompletionTime)
	admin.GET("/enrollments/trend", h.Analytics.EnrollmentTrend)
	admin.GET("/mentors", h.Analytics.Mentors)
	admin.GET("/courses/popular", h.Analytics.PopularCourses)
	admin.GET("/engagement", h.Analytics.Engagement)
	admin.GET("/overview", h.Analytics.Overview)
	admin.GET("/users/growth", h.Analytics.UserGrowth)
	admin.GET("/students/performance", h.Analytics.StudentPerformance)
	admin.GET("/dashboard", h.Analytics.Dashboard)
	admin.GET("/system", h.Analytics.System)
	admin.POST("/cache/invalidate", middleware.Audit(auditLog, "invalidate", "analytics_cache"), h.Analytics.InvalidateCache)

	if h.Reports != nil {
		reports := secured.Group("/reports")
		reports.Use(middleware.RequireRoles(models.RoleAdmin, models.RoleMentor))
		reports.POST("", middleware.Audit(auditLog, "create", "report_job"), h.Reports.Create)
		reports.GET("/:id", h.Reports.Status)
	}
}
