package procurement

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/toolroom-erp/toolroom/internal/inventory"
	"github.com/toolroom-erp/toolroom/internal/shared"
)

var now = time.Date(2026, 4, 10, 9, 30, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func samplePR() PR {
	return PR{
		ID:                 "pr-1",
		ProjectID:          "prj-1",
		Type:               PRTypeNewSet,
		Status:             PRSentToSupplier,
		CandidateSuppliers: []string{"sup-a", "sup-b"},
		Items: []PRItem{
			{ID: "it-1", Name: "Die set", Quantity: 2, UnitPrice: dec("30")},
			{ID: "it-2", Name: "Guide pillar", Quantity: 1, UnitPrice: dec("40"), CriticalSpare: true, PartNumber: "GP-9"},
		},
		Allocations: []CriticalSpareAllocation{{ItemID: "it-2", Quantity: 1}},
		Quotations: []Quotation{
			{ID: "q-a", SupplierID: "sup-a", Price: dec("100"), Status: QuotationPending},
			{ID: "q-b", SupplierID: "sup-b", Price: dec("120"), Status: QuotationEvaluated},
			{ID: "q-c", SupplierID: "sup-c", Price: dec("90"), Status: QuotationRejected},
		},
	}
}

func TestParsePRStatusAliases(t *testing.T) {
	for _, raw := range []string{"Submitted for Approval", "submitted", "PENDING   approval"} {
		s, ok := ParsePRStatus(raw)
		require.True(t, ok, raw)
		require.Equal(t, PRSubmitted, s)
	}
	s, ok := ParsePRStatus("sent to supplier")
	require.True(t, ok)
	require.Equal(t, PRSentToSupplier, s)
	_, ok = ParsePRStatus("draft")
	require.False(t, ok)

	pt, ok := ParsePRType("refurbished")
	require.True(t, ok)
	require.Equal(t, PRTypeRefurbished, pt)
}

func TestSelectQuotationDemotesSiblingsButNotRejected(t *testing.T) {
	pr := samplePR()
	out, err := SelectQuotation(pr, "q-b", now)
	require.NoError(t, err)

	q, _, _ := out.Quotation("q-b")
	require.Equal(t, QuotationSelected, q.Status)
	q, _, _ = out.Quotation("q-a")
	require.Equal(t, QuotationEvaluated, q.Status)
	q, _, _ = out.Quotation("q-c")
	require.Equal(t, QuotationRejected, q.Status)

	out, err = SelectQuotation(out, "q-a", now)
	require.NoError(t, err)
	require.Len(t, out.Selected(), 1)
	require.Equal(t, "q-a", out.Selected()[0].ID)

	_, err = SelectQuotation(out, "q-c", now)
	require.ErrorIs(t, err, shared.ErrInvalidState)

	require.Equal(t, QuotationPending, pr.Quotations[0].Status, "input must not be mutated")
}

func TestAwardBuildsHandoverSnapshot(t *testing.T) {
	pr, err := SelectQuotation(samplePR(), "q-a", now)
	require.NoError(t, err)
	project := Project{ID: "prj-1", PartNumber: "PN-1", ToolNumber: "TN-1"}
	supplier := Supplier{ID: "sup-a", TotalOrders: 4}

	effect, err := Award(pr, project, supplier, "ho-1", now)
	require.NoError(t, err)
	require.Equal(t, PRAwarded, effect.PR.Status)
	require.Equal(t, "sup-a", effect.PR.AwardedSupplier)
	require.Equal(t, 5, effect.Supplier.TotalOrders)
	require.Equal(t, HandoverPending, effect.Handover.Status)
	require.Equal(t, pr.Items, effect.Handover.Items)
	require.Equal(t, "TN-1 New Set", effect.Handover.ToolSet)
	require.Equal(t, []CriticalSpare{{ID: "it-2", PartNumber: "GP-9", ToolNumber: "TN-1", Name: "Guide pillar", Quantity: 1}}, effect.Handover.CriticalSpares)

	_, err = Award(effect.PR, project, effect.Supplier, "ho-2", now)
	require.ErrorIs(t, err, shared.ErrInvalidState)

	_, err = Award(pr, project, Supplier{ID: "sup-b"}, "ho-3", now)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestAwardNeedsExactlyOneSelected(t *testing.T) {
	pr := samplePR()
	_, err := Award(pr, Project{ID: "prj-1"}, Supplier{ID: "sup-a"}, "ho", now)
	require.ErrorIs(t, err, shared.ErrInvalidState)

	pr.Quotations[0].Status = QuotationSelected
	pr.Quotations[1].Status = QuotationSelected
	_, err = Award(pr, Project{ID: "prj-1"}, Supplier{ID: "sup-a"}, "ho", now)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestAddQuotationChecksTotals(t *testing.T) {
	pr := samplePR()
	pr.Status = PRApproved
	pr.Quotations = nil

	q := Quotation{ID: "q-1", SupplierID: "sup-a", Price: dec("100.50"), Items: []QuotationItem{
		{ItemID: "it-1", UnitPrice: dec("30.25"), Quantity: 2},
		{ItemID: "it-2", UnitPrice: dec("40"), Quantity: 1},
	}}
	out, err := AddQuotation(pr, q, now)
	require.NoError(t, err)
	stored, _, ok := out.Quotation("q-1")
	require.True(t, ok)
	require.Equal(t, QuotationPending, stored.Status)
	require.True(t, stored.Items[0].Total.Equal(dec("60.5")))

	q.ID = "q-2"
	q.SupplierID = "sup-b"
	q.Price = dec("100.49")
	_, err = AddQuotation(pr, q, now)
	require.ErrorIs(t, err, shared.ErrValidation)

	q.Price = dec("100.50")
	q.SupplierID = "sup-x"
	_, err = AddQuotation(pr, q, now)
	require.ErrorIs(t, err, shared.ErrValidation)

	q.SupplierID = "sup-a"
	_, err = AddQuotation(out, q, now)
	require.ErrorIs(t, err, shared.ErrValidation, "one open quotation per supplier")

	pr.Status = PRSubmitted
	_, err = AddQuotation(pr, q, now)
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestApproveHandoverMergesAndResolves(t *testing.T) {
	h := Handover{
		ID:     "ho-1",
		PRID:   "pr-1",
		Status: HandoverPending,
		CriticalSpares: []CriticalSpare{
			{ID: "it-2", PartNumber: "GP-9", ToolNumber: "TN-1", Name: "Guide pillar", Quantity: 3},
			{ID: "it-3", PartNumber: "EP-1", ToolNumber: "TN-1", Name: "Ejector pin", Quantity: 4},
		},
	}
	pr := samplePR()
	pr.Allocations = append(pr.Allocations, CriticalSpareAllocation{ItemID: "it-9", Quantity: 1})
	pr.Items = append(pr.Items, PRItem{ID: "it-9", Name: "Spare spring", Quantity: 1})

	key := inventory.Key{PartNumber: "GP-9", ToolNumber: "TN-1", Name: "Guide pillar"}
	existing := map[inventory.Key]inventory.Item{
		key: {ID: "inv-1", PartNumber: "GP-9", ToolNumber: "TN-1", Name: "Guide pillar", Quantity: 1, StockLevel: 1, MinStockLevel: 2},
	}
	ids := 0
	newID := func() string { ids++; return "new-" + string(rune('0'+ids)) }

	effect, err := ApproveHandover(h, pr, "mx-1", "ok", existing, inventory.MinStockDelivered, newID, now)
	require.NoError(t, err)
	require.Equal(t, HandoverApproved, effect.Handover.Status)
	require.Len(t, effect.Inventory, 2)

	merged := effect.Inventory[0]
	require.Equal(t, "inv-1", merged.ID)
	require.Equal(t, 4, merged.StockLevel)
	require.Equal(t, inventory.StatusInStock, merged.Status())

	fresh := effect.Inventory[1]
	require.Equal(t, 4, fresh.StockLevel)
	require.Equal(t, 4, fresh.MinStockLevel)

	require.NotNil(t, effect.PR)
	require.True(t, effect.PR.Allocations[0].Resolved())
	require.False(t, effect.PR.Allocations[1].Resolved(), "allocation not carried by this handover")
	require.Equal(t, 1, existing[key].StockLevel, "input map must not be mutated")

	_, err = ApproveHandover(effect.Handover, pr, "mx-1", "", nil, inventory.MinStockDelivered, newID, now)
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestRejectHandoverRequiresRemark(t *testing.T) {
	h := Handover{ID: "ho-1", Status: HandoverPending}
	_, err := RejectHandover(h, "mx", "", now)
	require.ErrorIs(t, err, shared.ErrValidation)

	effect, err := RejectHandover(h, "mx", "cracked insert", now)
	require.NoError(t, err)
	require.Equal(t, HandoverRejected, effect.Handover.Status)
	require.Empty(t, effect.Inventory)
	require.Nil(t, effect.PR)
}

func TestCompleteProject(t *testing.T) {
	p := Project{ID: "prj-1", Status: ProjectActive}
	_, err := CompleteProject(p, nil, now)
	require.ErrorIs(t, err, shared.ErrInvalidState)

	_, err = CompleteProject(p, []PR{{ID: "a", Status: PRAwarded}, {ID: "b", Status: PRApproved}}, now)
	require.ErrorIs(t, err, shared.ErrInvalidState)

	done, err := CompleteProject(p, []PR{{ID: "a", Status: PRAwarded}, {ID: "b", Status: PRRejected}}, now)
	require.NoError(t, err)
	require.Equal(t, ProjectCompleted, done.Status)
}

func TestReportsDeriveFromPRs(t *testing.T) {
	march := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	april := time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)
	prs := []PR{
		{ID: "1", Status: PRAwarded, AwardedSupplier: "sup-a", CreatedAt: march, ClosedAt: &april,
			Quotations: []Quotation{{SupplierID: "sup-a", Price: dec("100"), Status: QuotationSelected}}},
		{ID: "2", Status: PRAwarded, AwardedSupplier: "sup-a", CreatedAt: march, ClosedAt: &march,
			Quotations: []Quotation{{SupplierID: "sup-a", Price: dec("20.5"), Status: QuotationSelected}}},
		{ID: "3", Status: PRRejected, CreatedAt: april, ClosedAt: &april},
		{ID: "4", Status: PRSubmitted, CreatedAt: april},
	}
	spend := SpendBySupplier(prs, []Supplier{{ID: "sup-a", Code: "ACME", Name: "Acme"}}, Period{})
	require.Len(t, spend, 1)
	require.Equal(t, 2, spend[0].Awards)
	require.True(t, spend[0].Total.Equal(dec("120.5")))
	require.Equal(t, "ACME", spend[0].SupplierCode)

	spend = SpendBySupplier(prs, nil, Period{From: april})
	require.True(t, spend[0].Total.Equal(dec("100")))

	buckets := PRThroughput(prs, Period{})
	require.Equal(t, []ThroughputBucket{
		{Period: "2026-03", Created: 2, Awarded: 1},
		{Period: "2026-04", Created: 2, Awarded: 1, Rejected: 1},
	}, buckets)
}
