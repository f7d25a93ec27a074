package procurement

import (
	"context"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/toolroom-erp/toolroom/internal/inventory"
	"github.com/toolroom-erp/toolroom/internal/platform/httpx"
	"github.com/toolroom-erp/toolroom/internal/rbac"
	"github.com/toolroom-erp/toolroom/internal/shared"
)

// Dashboard is the role-scoped landing payload.
type Dashboard struct {
	Role       rbac.Role            `json:"role"`
	Counts     map[rbac.Counter]int `json:"counts"`
	LowStock   []inventory.Item     `json:"low_stock"`
	Spend      []SupplierSpend      `json:"spend"`
	Throughput []ThroughputBucket   `json:"throughput"`
	AsOf       time.Time            `json:"as_of"`
}

const dashboardWindowMonths = 6

func (h *Handler) pendingCounts(w http.ResponseWriter, r *http.Request) {
	a := actor(r)
	counts, err := h.service.PendingCounts(r.Context(), a.Role)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"role": a.Role, "counts": counts})
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	data, err := h.loadDashboard(r.Context(), actor(r).Role)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, data)
}

func (h *Handler) loadDashboard(ctx context.Context, role rbac.Role) (Dashboard, error) {
	now := h.service.clock.Now().UTC()
	window := Period{From: time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1-dashboardWindowMonths, 0)}
	data := Dashboard{Role: role, AsOf: now}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		counts, err := h.service.PendingCounts(ctx, role)
		if err != nil {
			return err
		}
		data.Counts = counts
		return nil
	})

	g.Go(func() error {
		items, err := h.service.LowStock(ctx)
		if err != nil {
			return err
		}
		data.LowStock = items
		return nil
	})

	g.Go(func() error {
		spend, err := h.service.SpendBySupplier(ctx, window)
		if err != nil {
			return err
		}
		data.Spend = spend
		return nil
	})

	g.Go(func() error {
		buckets, err := h.service.PRThroughput(ctx, window)
		if err != nil {
			return err
		}
		data.Throughput = buckets
		return nil
	})

	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	return data, nil
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.LowStock(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSONPage(w, r, items)
}

func (h *Handler) spend(w http.ResponseWriter, r *http.Request) {
	period, key, err := parsePeriod(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rows, err := h.coalesce(r.Context(), "spend:"+key, func(ctx context.Context) (any, error) {
		return h.service.SpendBySupplier(ctx, period)
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSONPage(w, r, rows.([]SupplierSpend))
}

func (h *Handler) throughput(w http.ResponseWriter, r *http.Request) {
	period, key, err := parsePeriod(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rows, err := h.coalesce(r.Context(), "throughput:"+key, func(ctx context.Context) (any, error) {
		return h.service.PRThroughput(ctx, period)
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSONPage(w, r, rows.([]ThroughputBucket))
}

// coalesce shares one report build between concurrent identical requests.
func (h *Handler) coalesce(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	ch := h.reports.DoChan(key, func() (any, error) {
		return fn(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}

// parsePeriod reads from/to as YYYY-MM-DD or YYYY-MM; to is exclusive.
func parsePeriod(r *http.Request) (Period, string, error) {
	q := r.URL.Query()
	var p Period
	for _, f := range []struct {
		name   string
		target *time.Time
	}{{"from", &p.From}, {"to", &p.To}} {
		raw := strings.TrimSpace(q.Get(f.name))
		if raw == "" {
			continue
		}
		t, err := parseDay(raw)
		if err != nil {
			return Period{}, "", shared.Validation("%s must be YYYY-MM-DD or YYYY-MM, got %q", f.name, raw)
		}
		*f.target = t
	}
	if !p.From.IsZero() && !p.To.IsZero() && !p.From.Before(p.To) {
		return Period{}, "", shared.Validation("from must be before to")
	}
	return p, p.From.Format(time.DateOnly) + "|" + p.To.Format(time.DateOnly), nil
}

func parseDay(raw string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01", raw)
}
