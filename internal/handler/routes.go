package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/univhub/timetable-engine/internal/middleware"
	"github.com/univhub/timetable-engine/internal/models"
	"github.com/univhub/timetable-engine/internal/service"
)

// Deps bundles everything route registration needs.
type Deps struct {
	Sessions  *SessionHandler
	Templates *TemplateHandler
	Views     *ViewHandler
	Metrics   *service.MetricsService
	JWTSecret string
}

// Register mounts the engine's API under the given prefix. Mutation routes
// carry a coarse role pre-filter; the authorization gate does the scoped
// checks inside the services.
func Register(r *gin.Engine, prefix string, deps Deps) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))

	api := r.Group(prefix)
	api.Use(middleware.JWT(deps.JWTSecret))

	schedulers := middleware.RequireRoles(models.RoleAdmin, models.RoleDepartmentHead)
	cancellers := middleware.RequireRoles(models.RoleAdmin, models.RoleDepartmentHead, models.RoleTeacher)

	sessions := api.Group("/sessions")
	{
		sessions.GET("", deps.Sessions.List)
		sessions.GET("/:id", deps.Sessions.Get)
		sessions.POST("", schedulers, deps.Sessions.Create)
		sessions.PATCH("/:id", schedulers, deps.Sessions.Reschedule)
		sessions.POST("/:id/cancel", cancellers, deps.Sessions.Cancel)
		sessions.POST("/:id/makeup", schedulers, deps.Sessions.Makeup)
	}

	api.POST("/templates/expand", schedulers, deps.Templates.Expand)

	views := api.Group("/views")
	{
		views.GET("/:actorKind/:actorID", deps.Views.Weekly)
		views.GET("/:actorKind/:actorID/export", deps.Views.Export)
	}
}
