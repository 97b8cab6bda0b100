package main

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cdr-service/internal/auth"
	"cdr-service/internal/config"
	"cdr-service/internal/generation"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

type readyFlag bool

func (r readyFlag) IsReady() bool { return bool(r) }

func TestNewRouter_ServesProbesAndMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m, err := auth.NewManager(config.AuthConfig{JWTSecret: "s", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	reg := prometheus.NewRegistry()
	p := generation.NewPipeline(generation.NewStagingQueue(), generation.NewMetrics(reg))

	r := newRouter(slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil)), m, routeDeps{
		stats:    p,
		ready:    readyFlag(true),
		registry: reg,
	})

	for path, want := range map[string]int{
		"/healthz":             http.StatusOK,
		"/readyz":              http.StatusOK,
		"/metrics":             http.StatusOK,
		"/v1/generation/stats": http.StatusUnauthorized,
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != want {
			t.Fatalf("%s: expected %d, got %d", path, want, w.Code)
		}
		if path == "/metrics" && !strings.Contains(w.Body.String(), "cdr_generation_attempted_total") {
			t.Fatalf("expected generation metrics to be exposed")
		}
	}
}
