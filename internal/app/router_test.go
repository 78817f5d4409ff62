package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	costhttp "github.com/odyssey-erp/sitecost/internal/costs/http"
	"github.com/odyssey-erp/sitecost/internal/observability"
	"github.com/odyssey-erp/sitecost/internal/rbac"
	"github.com/odyssey-erp/sitecost/internal/shared"
)

type routerFixture struct {
	redis    *miniredis.Miniredis
	sessions *shared.SessionManager
	handler  http.Handler
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := memoryConfig()
	cfg.SessionCookie = "sitecost_session"
	metrics := observability.NewMetrics()
	comps, err := BuildComponents(context.Background(), cfg, Infra{Registerer: metrics.Registerer(), Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = comps.Close() })

	sessions := shared.NewSessionManager(client, cfg.SessionCookie, time.Hour)
	handler := NewRouter(RouterParams{
		Logger:         logger,
		Config:         cfg,
		Sessions:       sessions,
		RBACMiddleware: rbac.Middleware{Logger: logger},
		CostHandler:    costhttp.NewHandler(logger, comps.Service),
		Metrics:        metrics,
	})
	return &routerFixture{redis: mr, sessions: sessions, handler: handler}
}

func (f *routerFixture) do(t *testing.T, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = "203.0.113.7:4321"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

const aggregatePath = "/api/admin/aggregate?tenant=Tower+A&org=Acme&startDate=2024-03-01&endDate=2024-03-31"

func TestRouterHealthAndSecureHeaders(t *testing.T) {
	f := newRouterFixture(t)
	rec := f.do(t, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestRouterServesMetrics(t *testing.T) {
	f := newRouterFixture(t)
	f.do(t, "/healthz", "")
	rec := f.do(t, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sitecost_http_requests_total")
}

func TestRouterAuthenticatesFromSession(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, aggregatePath, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, aggregatePath, "not-a-session")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := f.sessions.Issue(context.Background(), shared.Caller{
		ID:       uuid.New(),
		Username: "root",
		Role:     shared.RoleAdmin,
		Tenant:   shared.NewTenant("Tower A", "Acme"),
	})
	require.NoError(t, err)
	rec = f.do(t, aggregatePath, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"dataSource":"calculated_from_daily_reports"`)
}

func TestRouterSessionStoreOutage(t *testing.T) {
	f := newRouterFixture(t)
	f.redis.Close()

	rec := f.do(t, aggregatePath, "some-token")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}
