package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/toolroom-erp/toolroom/internal/inventory"
	"github.com/toolroom-erp/toolroom/internal/observability"
	"github.com/toolroom-erp/toolroom/internal/procurement"
	"github.com/toolroom-erp/toolroom/internal/rbac"
	"github.com/toolroom-erp/toolroom/internal/store"
	_ "github.com/toolroom-erp/toolroom/internal/testing/guard"
)

func TestGuardEnablesTestMode(t *testing.T) {
	RefreshTestMode()
	require.True(t, InTestMode())
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("INVENTORY_MIN_STOCK_POLICY", "zero")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "memory", cfg.StoreDriver)
	require.Equal(t, "local", cfg.LockDriver)
	require.Equal(t, inventory.MinStockZero, cfg.MinStockPolicy())
}

func TestConfigValidate(t *testing.T) {
	base := Config{StoreDriver: "memory", LockDriver: "local", InventoryMinStockPolicy: "delivered"}
	require.NoError(t, base.Validate())

	bad := base
	bad.StoreDriver = "sqlite"
	require.Error(t, bad.Validate())

	bad = base
	bad.LockDriver = "etcd"
	require.Error(t, bad.Validate())

	bad = base
	bad.InventoryMinStockPolicy = "half"
	require.Error(t, bad.Validate())

	bad = base
	bad.AppEnv = "production"
	bad.StoreDriver = "postgres"
	bad.PGDSN = "postgres://x"
	require.Error(t, bad.Validate())
	bad.LockDriver = "redis"
	require.NoError(t, bad.Validate())
}

func TestNewLockerRequiresRedisClient(t *testing.T) {
	_, err := NewLocker(&Config{LockDriver: "redis"}, nil)
	require.Error(t, err)
	l, err := NewLocker(&Config{LockDriver: "local"}, nil)
	require.NoError(t, err)
	require.NotNil(t, l)
}

func newTestRouter(t *testing.T, ready func(context.Context) error) (http.Handler, Services) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &Config{RateLimitPerMin: 1000, InventoryMinStockPolicy: "delivered"}
	locker, err := NewLocker(cfg, nil)
	require.NoError(t, err)
	metrics := observability.NewMetrics()
	svc := NewServices(cfg, store.NewMemory(), locker, metrics)
	mw := rbac.Middleware{Policy: svc.Policy, Logger: logger}
	return NewRouter(RouterParams{
		Logger:             logger,
		Config:             cfg,
		RBACMiddleware:     mw,
		ProcurementHandler: procurement.NewHandler(logger, svc.Procurement, mw),
		InventoryHandler:   inventory.NewHandler(logger, svc.Inventory, mw),
		PermissionsHandler: rbac.NewPermissionsHandler(svc.Policy, mw),
		Metrics:            metrics,
		Ready:              ready,
	}), svc
}

func TestRouterServesAPIAndMetrics(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	req := httptest.NewRequest(http.MethodPost, "/api/projects", strings.NewReader(`{"customer_po":"PO-1","part_number":"PN","tool_number":"TN","price":"10"}`))
	req.Header.Set(rbac.HeaderActorRole, "Approver")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/api/spares-requests", strings.NewReader(`{"item_name":"Pin","quantity":1}`))
	req.Header.Set(rbac.HeaderActorRole, "Approver")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/me/permissions", nil)
	req.Header.Set(rbac.HeaderActorRole, "Indentor")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "spares.request")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, `toolroom_workflow_transitions_total{entity="project",status="Active"} 1`)
	require.Contains(t, body, `toolroom_http_requests_total{code="201",route="/api/projects`)
}

func TestHealthzReportsReadiness(t *testing.T) {
	h, _ := newTestRouter(t, func(context.Context) error { return errors.New("db down") })
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
