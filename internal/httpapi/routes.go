package httpapi

import (
	"net/http"

	"cdr-service/internal/rbac"

	"github.com/gin-gonic/gin"
)

// Register wires the ops API. metrics may be nil when no registry is exposed.
// Keep this file free of business logic.
func Register(r gin.IRouter, h Handlers, authMW gin.HandlerFunc, metrics http.Handler) {
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}

	v1 := r.Group("/v1")
	v1.POST("/auth/refresh", h.Refresh)

	protected := v1.Group("")
	protected.Use(authMW)
	{
		protected.GET("/generation/stats",
			rbac.RequireAnyRole(rbac.RoleViewer, rbac.RoleOperator), h.GenerationStats)

		admin := protected.Group("/admin")
		admin.Use(rbac.RequireAnyRole(rbac.RoleOperator))
		admin.POST("/export/run", h.RunExport)
		admin.GET("/audit", h.AuditEvents)
	}
}
