package procurement

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/toolroom-erp/toolroom/internal/inventory"
	"github.com/toolroom-erp/toolroom/internal/rbac"
)

// Snapshot is the set of collections the aggregations read.
type Snapshot struct {
	Projects  []Project
	PRs       []PR
	Handovers []Handover
	Items     []inventory.Item
	Requests  []inventory.SparesRequest
}

// CountPending computes every dashboard counter from the snapshot.
func CountPending(snap Snapshot) map[rbac.Counter]int {
	counts := map[rbac.Counter]int{
		rbac.CounterProjects:                   0,
		rbac.CounterPRsPendingApproval:         0,
		rbac.CounterPRsAwaitingQuotation:       0,
		rbac.CounterQuotationsAwaitingDecision: 0,
		rbac.CounterHandoversPending:           0,
		rbac.CounterInventoryAlerts:            0,
		rbac.CounterSparesRequestsPending:      0,
	}
	for _, p := range snap.Projects {
		if p.Status == ProjectActive {
			counts[rbac.CounterProjects]++
		}
	}
	for _, pr := range snap.PRs {
		switch pr.Status {
		case PRSubmitted:
			counts[rbac.CounterPRsPendingApproval]++
		case PRApproved:
			counts[rbac.CounterPRsAwaitingQuotation]++
		case PRSentToSupplier:
			for _, q := range pr.Quotations {
				if q.Status == QuotationPending || q.Status == QuotationEvaluated || q.Status == QuotationSelected {
					counts[rbac.CounterQuotationsAwaitingDecision]++
				}
			}
		}
	}
	for _, h := range snap.Handovers {
		if h.Status == HandoverPending {
			counts[rbac.CounterHandoversPending]++
		}
	}
	for _, it := range snap.Items {
		if it.NeedsAttention() {
			counts[rbac.CounterInventoryAlerts]++
		}
	}
	for _, r := range snap.Requests {
		if r.Status == inventory.RequestPending {
			counts[rbac.CounterSparesRequestsPending]++
		}
	}
	return counts
}

// ScopeCounts keeps only the counters role may see.
func ScopeCounts(policy *rbac.Policy, role rbac.Role, counts map[rbac.Counter]int) map[rbac.Counter]int {
	out := make(map[rbac.Counter]int)
	for c, n := range counts {
		if policy.CanSee(role, c) {
			out[c] = n
		}
	}
	return out
}

// Snapshot loads every collection the aggregations need.
func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	var (
		snap Snapshot
		err  error
	)
	if snap.Projects, err = s.repo.ListProjects(ctx, ProjectFilter{}); err != nil {
		return Snapshot{}, err
	}
	if snap.PRs, err = s.repo.ListPRs(ctx, PRFilter{}); err != nil {
		return Snapshot{}, err
	}
	if snap.Handovers, err = s.repo.ListHandovers(ctx, HandoverFilter{}); err != nil {
		return Snapshot{}, err
	}
	if snap.Items, err = s.repo.ListItems(ctx); err != nil {
		return Snapshot{}, err
	}
	if snap.Requests, err = s.repo.ListRequests(ctx, inventory.RequestFilter{}); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// PendingCounts returns the counters visible to role, recomputed on every call.
func (s *Service) PendingCounts(ctx context.Context, role rbac.Role) (map[rbac.Counter]int, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return ScopeCounts(s.policy, role, CountPending(snap)), nil
}

// SupplierSpend aggregates awarded value per supplier.
type SupplierSpend struct {
	SupplierID   string          `json:"supplier_id"`
	SupplierCode string          `json:"supplier_code"`
	SupplierName string          `json:"supplier_name"`
	Awards       int             `json:"awards"`
	Total        decimal.Decimal `json:"total"`
}

// Period bounds a report window; zero bounds are open.
type Period struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls in [From, To).
func (p Period) Contains(t time.Time) bool {
	if !p.From.IsZero() && t.Before(p.From) {
		return false
	}
	if !p.To.IsZero() && !t.Before(p.To) {
		return false
	}
	return true
}

// SpendBySupplier sums the selected quotation price of awarded PRs per supplier.
func SpendBySupplier(prs []PR, suppliers []Supplier, period Period) []SupplierSpend {
	byID := make(map[string]Supplier, len(suppliers))
	for _, s := range suppliers {
		byID[s.ID] = s
	}
	acc := make(map[string]*SupplierSpend)
	for _, pr := range prs {
		if pr.Status != PRAwarded || pr.ClosedAt == nil || !period.Contains(*pr.ClosedAt) {
			continue
		}
		sel := pr.Selected()
		if len(sel) != 1 {
			continue
		}
		row, ok := acc[pr.AwardedSupplier]
		if !ok {
			sup := byID[pr.AwardedSupplier]
			row = &SupplierSpend{SupplierID: pr.AwardedSupplier, SupplierCode: sup.Code, SupplierName: sup.Name, Total: decimal.Zero}
			acc[pr.AwardedSupplier] = row
		}
		row.Awards++
		row.Total = row.Total.Add(sel[0].Price)
	}
	out := make([]SupplierSpend, 0, len(acc))
	for _, row := range acc {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Total.Cmp(out[j].Total); c != 0 {
			return c > 0
		}
		return out[i].SupplierID < out[j].SupplierID
	})
	return out
}

// ThroughputBucket counts PR activity in one calendar month.
type ThroughputBucket struct {
	Period   string `json:"period"`
	Created  int    `json:"created"`
	Awarded  int    `json:"awarded"`
	Rejected int    `json:"rejected"`
}

// PRThroughput buckets PR creation and closure by UTC month.
func PRThroughput(prs []PR, period Period) []ThroughputBucket {
	buckets := make(map[string]*ThroughputBucket)
	bucket := func(t time.Time) *ThroughputBucket {
		key := t.UTC().Format("2006-01")
		b, ok := buckets[key]
		if !ok {
			b = &ThroughputBucket{Period: key}
			buckets[key] = b
		}
		return b
	}
	for _, pr := range prs {
		if period.Contains(pr.CreatedAt) {
			bucket(pr.CreatedAt).Created++
		}
		if pr.ClosedAt == nil || !period.Contains(*pr.ClosedAt) {
			continue
		}
		switch pr.Status {
		case PRAwarded:
			bucket(*pr.ClosedAt).Awarded++
		case PRRejected:
			bucket(*pr.ClosedAt).Rejected++
		}
	}
	out := make([]ThroughputBucket, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period < out[j].Period })
	return out
}

// SpendBySupplier reports awarded spend per supplier within period.
func (s *Service) SpendBySupplier(ctx context.Context, period Period) ([]SupplierSpend, error) {
	prs, err := s.repo.ListPRs(ctx, PRFilter{Status: PRAwarded})
	if err != nil {
		return nil, err
	}
	suppliers, err := s.repo.ListSuppliers(ctx, SupplierFilter{})
	if err != nil {
		return nil, err
	}
	return SpendBySupplier(prs, suppliers, period), nil
}

// PRThroughput reports monthly PR activity within period.
func (s *Service) PRThroughput(ctx context.Context, period Period) ([]ThroughputBucket, error) {
	prs, err := s.repo.ListPRs(ctx, PRFilter{})
	if err != nil {
		return nil, err
	}
	return PRThroughput(prs, period), nil
}

// LowStock lists inventory lines in Low Stock or Out of Stock.
func (s *Service) LowStock(ctx context.Context) ([]inventory.Item, error) {
	items, err := s.repo.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	return inventory.LowStock(items), nil
}
