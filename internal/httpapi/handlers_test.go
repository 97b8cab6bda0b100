package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cdr-service/internal/audit"
	"cdr-service/internal/auth"
	"cdr-service/internal/config"
	"cdr-service/internal/generation"
	"cdr-service/internal/rbac"
	"cdr-service/internal/scheduler"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStats struct{ s generation.Stats }

func (f fakeStats) Stats() generation.Stats { return f.s }

type fakeReady bool

func (f fakeReady) IsReady() bool { return bool(f) }

type fakeTrigger struct {
	names []string
	err   error
}

func (f *fakeTrigger) Trigger(name string) error {
	f.names = append(f.names, name)
	return f.err
}

type fixture struct {
	router  *gin.Engine
	auth    *auth.Manager
	trigger *fakeTrigger
	audit   *audit.MemoryRepo
}

func newFixture(t *testing.T, ready bool) fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	m, err := auth.NewManager(config.AuthConfig{JWTSecret: "secret", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour})
	require.NoError(t, err)
	trig := &fakeTrigger{}
	events := audit.NewMemoryRepo()

	h := Handlers{
		Auth:       m,
		Audit:      audit.NewService(events),
		Stats:      fakeStats{s: generation.Stats{Attempted: 10, Accepted: 7, Rejected: 3, Staged: 20}},
		Ready:      fakeReady(ready),
		Tasks:      trig,
		ExportTask: "export",
	}
	r := gin.New()
	Register(r, h, auth.RequireAccessToken(m), promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{}))
	return fixture{router: r, auth: m, trigger: trig, audit: events}
}

func (f fixture) do(t *testing.T, method, path, role string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if role != "" {
		pair, err := f.auth.IssuePair(time.Now(), "tester", role)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestProbes(t *testing.T) {
	f := newFixture(t, false)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/healthz", "", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, f.do(t, http.MethodGet, "/readyz", "", nil).Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/metrics", "", nil).Code)

	f = newFixture(t, true)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/readyz", "", nil).Code)
}

func TestGenerationStats(t *testing.T) {
	f := newFixture(t, true)

	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/v1/generation/stats", "", nil).Code)

	w := f.do(t, http.MethodGet, "/v1/generation/stats", rbac.RoleViewer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"attempted":10,"accepted":7,"rejected":3,"staged":20,"ready":true}`, w.Body.String())
}

func TestRunExport_OperatorOnly(t *testing.T) {
	f := newFixture(t, true)

	w := f.do(t, http.MethodPost, "/v1/admin/export/run", rbac.RoleViewer, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, f.trigger.names)

	w = f.do(t, http.MethodPost, "/v1/admin/export/run", rbac.RoleOperator, nil)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, []string{"export"}, f.trigger.names)

	evs := f.audit.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, audit.EventTypeTaskTrigger, evs[0].Type)
	assert.Equal(t, "tester", evs[0].Subject)
	assert.Equal(t, "export", evs[0].Task)
}

func TestAuditEvents(t *testing.T) {
	f := newFixture(t, true)
	require.Equal(t, http.StatusAccepted, f.do(t, http.MethodPost, "/v1/admin/export/run", rbac.RoleOperator, nil).Code)
	require.Equal(t, http.StatusAccepted, f.do(t, http.MethodPost, "/v1/admin/export/run", rbac.RoleOperator, nil).Code)

	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, "/v1/admin/audit", rbac.RoleViewer, nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/v1/admin/audit?limit=x", rbac.RoleOperator, nil).Code)

	w := f.do(t, http.MethodGet, "/v1/admin/audit?limit=1", rbac.RoleOperator, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Events []audit.Event `json:"events"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Events, 1)
	assert.Equal(t, "export", body.Events[0].Task)
}

func TestRunExport_SchedulerStopped(t *testing.T) {
	f := newFixture(t, true)
	f.trigger.err = scheduler.ErrNotRunning

	w := f.do(t, http.MethodPost, "/v1/admin/export/run", rbac.RoleOperator, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRefresh(t *testing.T) {
	f := newFixture(t, true)
	pair, err := f.auth.IssuePair(time.Now(), "tester", rbac.RoleViewer)
	require.NoError(t, err)

	body, _ := json.Marshal(map[string]string{"refresh_token": pair.RefreshToken})
	w := f.do(t, http.MethodPost, "/v1/auth/refresh", "", body)
	require.Equal(t, http.StatusOK, w.Code)

	var got auth.TokenPair
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.NotEmpty(t, got.AccessToken)
	assert.NotEmpty(t, got.RefreshToken)
	require.Len(t, f.audit.Events(), 1)
	assert.Equal(t, audit.EventTypeTokenRefresh, f.audit.Events()[0].Type)

	body, _ = json.Marshal(map[string]string{"refresh_token": pair.AccessToken})
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodPost, "/v1/auth/refresh", "", body).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/v1/auth/refresh", "", []byte(`{}`)).Code)
}
