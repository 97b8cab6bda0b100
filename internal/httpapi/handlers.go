package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"cdr-service/internal/audit"
	"cdr-service/internal/auth"
	"cdr-service/internal/generation"
	"cdr-service/internal/scheduler"
	"cdr-service/pkg/logger"

	"github.com/gin-gonic/gin"
)

type StatsSource interface {
	Stats() generation.Stats
}

type Readiness interface {
	IsReady() bool
}

type TaskTrigger interface {
	Trigger(name string) error
}

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth       *auth.Manager
	Audit      *audit.Service
	Stats      StatsSource
	Ready      Readiness
	Tasks      TaskTrigger
	ExportTask string
}

func (h Handlers) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readyz reports 200 once the initial generation has been joined.
func (h Handlers) Readyz(c *gin.Context) {
	if h.Ready == nil || !h.Ready.IsReady() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "generating"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

type statsResponse struct {
	generation.Stats
	Ready bool `json:"ready"`
}

func (h Handlers) GenerationStats(c *gin.Context) {
	if h.Stats == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "generation not configured"})
		return
	}
	c.JSON(http.StatusOK, statsResponse{
		Stats: h.Stats.Stats(),
		Ready: h.Ready != nil && h.Ready.IsReady(),
	})
}

// RunExport queues an immediate export cycle. The cycle runs on the scheduler, so the
// response only confirms it was queued.
func (h Handlers) RunExport(c *gin.Context) {
	if h.Tasks == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "scheduler not configured"})
		return
	}
	subject, _ := auth.Subject(c.Request.Context())
	role, _ := auth.Role(c.Request.Context())

	err := h.Tasks.Trigger(h.ExportTask)
	switch {
	case errors.Is(err, scheduler.ErrNotRunning):
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "scheduler not running"})
		return
	case err != nil:
		logger.FromGin(c).Error("export trigger failed", "task", h.ExportTask, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "trigger failed"})
		return
	}
	logger.FromGin(c).Info("export triggered", "task", h.ExportTask, "subject", subject)
	if h.Audit != nil {
		if err := h.Audit.LogTaskTrigger(c.Request.Context(), subject, role, c.ClientIP(), h.ExportTask); err != nil {
			logger.FromGin(c).Warn("audit append failed", "err", err)
		}
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "queued", "task": h.ExportTask})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Refresh exchanges a refresh token for a new token pair.
func (h Handlers) Refresh(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "refresh_token required"})
		return
	}
	pair, claims, err := h.Auth.Refresh(req.RefreshToken, time.Now())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	if h.Audit != nil {
		if err := h.Audit.LogTokenRefresh(c.Request.Context(), claims.Subject, claims.Role, c.ClientIP()); err != nil {
			logger.FromGin(c).Warn("audit append failed", "err", err)
		}
	}
	c.JSON(http.StatusOK, pair)
}

// AuditEvents lists recent operator actions, newest first. ?limit= caps the count.
func (h Handlers) AuditEvents(c *gin.Context) {
	if h.Audit == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "audit not configured"})
		return
	}
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	events, err := h.Audit.Recent(c.Request.Context(), limit)
	if err != nil {
		logger.FromGin(c).Error("audit lookup failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "audit lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}
