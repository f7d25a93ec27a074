package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/toolroom-erp/toolroom/internal/inventory"
	jobmetrics "github.com/toolroom-erp/toolroom/internal/jobs"
	"github.com/toolroom-erp/toolroom/internal/rbac"
)

type stubSuggester struct {
	out []inventory.ReorderSuggestion
	err error
}

func (s stubSuggester) ReorderSuggestions(context.Context) ([]inventory.ReorderSuggestion, error) {
	return s.out, s.err
}

type stubCounter map[rbac.Role]map[rbac.Counter]int

func (s stubCounter) PendingCounts(_ context.Context, role rbac.Role) (map[rbac.Counter]int, error) {
	return s[role], nil
}

func newLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, nil))
}

func TestLowStockScanLogsSuggestions(t *testing.T) {
	var buf bytes.Buffer
	job := NewLowStockScanJob(stubSuggester{out: []inventory.ReorderSuggestion{
		{Item: inventory.Item{ID: "inv-1", Name: "Guide pillar", PartNumber: "PN-1", MinStockLevel: 4, StockLevel: 0}, Shortfall: 4},
		{Item: inventory.Item{ID: "inv-2", Name: "Ejector pin", PartNumber: "PN-2", MinStockLevel: 3, StockLevel: 2}, Shortfall: 1},
	}}, newLogger(&buf), jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewLowStockScanTask(2)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	out := buf.String()
	require.Contains(t, out, `"item_id":"inv-1"`)
	require.Contains(t, out, `"status":"Out of Stock"`)
	require.NotContains(t, out, `"item_id":"inv-2"`)
	require.Contains(t, out, `"lines":2`)
}

func TestLowStockScanFailures(t *testing.T) {
	metrics := jobmetrics.NewMetrics(prometheus.NewRegistry())
	boom := errors.New("store down")
	job := NewLowStockScanJob(stubSuggester{err: boom}, newLogger(&bytes.Buffer{}), metrics)
	task, err := NewLowStockScanTask(0)
	require.NoError(t, err)
	require.ErrorIs(t, job.Handle(context.Background(), task), boom)

	bad := asynq.NewTask(TaskInventoryLowStockScan, []byte("{"))
	require.ErrorIs(t, job.Handle(context.Background(), bad), asynq.SkipRetry)

	var unset *LowStockScanJob
	require.Error(t, unset.Handle(context.Background(), task))
}

func TestPendingDigestScopesRoles(t *testing.T) {
	var buf bytes.Buffer
	counter := stubCounter{
		rbac.RoleMaintenance: {rbac.CounterHandoversPending: 2, rbac.CounterInventoryAlerts: 1},
		rbac.RoleIndentor:    {rbac.CounterSparesRequestsPending: 5},
	}
	job := NewPendingDigestJob(counter, newLogger(&buf), jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewPendingDigestTask("maintenance")
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Contains(t, buf.String(), `"handovers_pending_inspection":2`)
	require.NotContains(t, buf.String(), "spares_requests_pending")

	task, err = NewPendingDigestTask("Purchaser")
	require.NoError(t, err)
	require.ErrorIs(t, job.Handle(context.Background(), task), asynq.SkipRetry)
}

func TestServeMuxDispatches(t *testing.T) {
	called := ""
	mux := NewServeMux([]TaskHandler{
		{Type: TaskInventoryLowStockScan, Handler: func(_ context.Context, t *asynq.Task) error {
			called = t.Type()
			return nil
		}},
		{Type: "", Handler: nil},
	})
	task, err := NewLowStockScanTask(0)
	require.NoError(t, err)
	require.NoError(t, mux.ProcessTask(context.Background(), task))
	require.Equal(t, TaskInventoryLowStockScan, called)
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) { return s.info, s.err }

func TestJobsHealth(t *testing.T) {
	logger := newLogger(&bytes.Buffer{})
	cases := []struct {
		name    string
		insp    QueueInspector
		status  int
		pending int
	}{
		{name: "no inspector", status: http.StatusOK},
		{name: "queue", insp: stubInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 3}}, status: http.StatusOK, pending: 3},
		{name: "redis down", insp: stubInspector{err: errors.New("dial")}, status: http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := chi.NewRouter()
			NewHandler(tc.insp, nil, logger).MountRoutes(r)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
			require.Equal(t, tc.status, rec.Code)
			if tc.status == http.StatusOK {
				var body queueHealth
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				require.Equal(t, tc.pending, body.Pending)
			}
		})
	}

	r := chi.NewRouter()
	NewHandler(nil, nil, logger).MountRoutes(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/low-stock-scan", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
