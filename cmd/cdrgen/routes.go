package main

import (
	"log/slog"

	"cdr-service/internal/audit"
	"cdr-service/internal/auth"
	"cdr-service/internal/httpapi"
	"cdr-service/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type routeDeps struct {
	stats    httpapi.StatsSource
	ready    httpapi.Readiness
	tasks    httpapi.TaskTrigger
	audit    *audit.Service
	registry *prometheus.Registry
}

// newRouter builds the ops API engine. Keep this file free of business logic.
func newRouter(log *slog.Logger, authManager *auth.Manager, deps routeDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	h := httpapi.Handlers{
		Auth:       authManager,
		Audit:      deps.audit,
		Stats:      deps.stats,
		Ready:      deps.ready,
		Tasks:      deps.tasks,
		ExportTask: taskExport,
	}
	metrics := promhttp.HandlerFor(deps.registry, promhttp.HandlerOpts{Registry: deps.registry})
	httpapi.Register(r, h, auth.RequireAccessToken(authManager), metrics)
	return r
}
