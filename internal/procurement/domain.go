package procurement

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
)

// foldLabel normalises whitespace and case; a Caser is stateful so one is built per call.
func foldLabel(raw string) string {
	return cases.Fold().String(strings.Join(strings.Fields(raw), " "))
}

// ProjectStatus tracks a customer order.
type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "Active"
	ProjectCompleted ProjectStatus = "Completed"
)

// Project is a customer order that spawns purchase requisitions.
type Project struct {
	ID         string          `json:"id"`
	CustomerPO string          `json:"customer_po"`
	PartNumber string          `json:"part_number"`
	ToolNumber string          `json:"tool_number"`
	Price      decimal.Decimal `json:"price"`
	TargetDate time.Time       `json:"target_date"`
	Status     ProjectStatus   `json:"status"`
	CreatedBy  string          `json:"created_by"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// LockKey is the per-entity lock name for the project.
func (p Project) LockKey() string { return "project:" + p.ID }

// PRType classifies the tooling requested.
type PRType string

const (
	PRTypeNewSet       PRType = "New Set"
	PRTypeModification PRType = "Modification"
	PRTypeRefurbished  PRType = "Refurbished"
)

// ParsePRType resolves a PR type label case-insensitively.
func ParsePRType(raw string) (PRType, bool) {
	for _, t := range []PRType{PRTypeNewSet, PRTypeModification, PRTypeRefurbished} {
		if foldLabel(raw) == foldLabel(string(t)) {
			return t, true
		}
	}
	return "", false
}

// PRStatus is the purchase requisition lifecycle.
type PRStatus string

const (
	PRSubmitted      PRStatus = "Submitted for Approval"
	PRApproved       PRStatus = "Approved"
	PRSentToSupplier PRStatus = "Sent To Supplier"
	PRAwarded        PRStatus = "Awarded"
	PRRejected       PRStatus = "Rejected"
)

var prStatusLabels = map[string]PRStatus{
	foldLabel(string(PRSubmitted)):      PRSubmitted,
	foldLabel("Submitted"):              PRSubmitted,
	foldLabel("Pending Approval"):       PRSubmitted,
	foldLabel(string(PRApproved)):       PRApproved,
	foldLabel(string(PRSentToSupplier)): PRSentToSupplier,
	foldLabel(string(PRAwarded)):        PRAwarded,
	foldLabel(string(PRRejected)):       PRRejected,
}

// ParsePRStatus resolves canonical labels and their legacy aliases.
func ParsePRStatus(raw string) (PRStatus, bool) {
	s, ok := prStatusLabels[foldLabel(raw)]
	return s, ok
}

// Terminal reports Awarded or Rejected.
func (s PRStatus) Terminal() bool {
	return s == PRAwarded || s == PRRejected
}

// PRItem is one requested tooling line.
type PRItem struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Specification string          `json:"specification"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Requirements  string          `json:"requirements"`
	CriticalSpare bool            `json:"critical_spare"`
	PartNumber    string          `json:"part_number,omitempty"`
	ToolNumber    string          `json:"tool_number,omitempty"`
}

// CriticalSpareAllocation earmarks a quantity of a PR item as a tracked spare.
type CriticalSpareAllocation struct {
	ItemID     string     `json:"item_id"`
	Quantity   int        `json:"quantity"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// Resolved reports whether the spare has entered inventory.
func (a CriticalSpareAllocation) Resolved() bool { return a.ResolvedAt != nil }

// PR is a purchase requisition with its embedded quotations.
type PR struct {
	ID                 string                    `json:"id"`
	ProjectID          string                    `json:"project_id"`
	Type               PRType                    `json:"type"`
	Items              []PRItem                  `json:"items"`
	CandidateSuppliers []string                  `json:"candidate_suppliers"`
	Status             PRStatus                  `json:"status"`
	CreatedBy          string                    `json:"created_by"`
	CreatedAt          time.Time                 `json:"created_at"`
	UpdatedAt          time.Time                 `json:"updated_at"`
	ApproverComments   string                    `json:"approver_comments,omitempty"`
	RejectionReason    string                    `json:"rejection_reason,omitempty"`
	AwardedSupplier    string                    `json:"awarded_supplier,omitempty"`
	ClosedAt           *time.Time                `json:"closed_at,omitempty"`
	Allocations        []CriticalSpareAllocation `json:"allocations,omitempty"`
	Quotations         []Quotation               `json:"quotations"`
}

// LockKey is the per-entity lock name for the PR.
func (p PR) LockKey() string { return "pr:" + p.ID }

// Item finds a PR item by id.
func (p PR) Item(id string) (PRItem, bool) {
	for _, it := range p.Items {
		if it.ID == id {
			return it, true
		}
	}
	return PRItem{}, false
}

// HasCandidate reports whether supplierID was invited to quote.
func (p PR) HasCandidate(supplierID string) bool {
	for _, id := range p.CandidateSuppliers {
		if id == supplierID {
			return true
		}
	}
	return false
}

// Quotation finds an embedded quotation by id.
func (p PR) Quotation(id string) (Quotation, int, bool) {
	for i, q := range p.Quotations {
		if q.ID == id {
			return q, i, true
		}
	}
	return Quotation{}, -1, false
}

// Selected returns the selected quotations; a valid PR holds at most one.
func (p PR) Selected() []Quotation {
	var out []Quotation
	for _, q := range p.Quotations {
		if q.Status == QuotationSelected {
			out = append(out, q)
		}
	}
	return out
}

// Total is the requested value of the PR at item unit prices.
func (p PR) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range p.Items {
		total = total.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

// Clone deep-copies the PR so effects never alias stored slices.
func (p PR) Clone() PR {
	out := p
	out.Items = append([]PRItem(nil), p.Items...)
	out.CandidateSuppliers = append([]string(nil), p.CandidateSuppliers...)
	out.Allocations = append([]CriticalSpareAllocation(nil), p.Allocations...)
	out.Quotations = make([]Quotation, len(p.Quotations))
	for i, q := range p.Quotations {
		q.Items = append([]QuotationItem(nil), q.Items...)
		out.Quotations[i] = q
	}
	return out
}

// QuotationStatus tracks a supplier's offer.
type QuotationStatus string

const (
	QuotationPending   QuotationStatus = "Pending"
	QuotationEvaluated QuotationStatus = "Evaluated"
	QuotationSelected  QuotationStatus = "Selected"
	QuotationRejected  QuotationStatus = "Rejected"
)

// QuotationItem prices one PR item.
type QuotationItem struct {
	ItemID    string          `json:"item_id"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Total     decimal.Decimal `json:"total"`
}

// Quotation is a supplier's priced response to a PR.
type Quotation struct {
	ID            string          `json:"id"`
	PRID          string          `json:"pr_id"`
	SupplierID    string          `json:"supplier_id"`
	Price         decimal.Decimal `json:"price"`
	Items         []QuotationItem `json:"items"`
	DeliveryTerms string          `json:"delivery_terms"`
	DeliveryDate  time.Time       `json:"delivery_date"`
	Status        QuotationStatus `json:"status"`
	Notes         string          `json:"notes,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// ItemsTotal sums the quotation line totals.
func (q Quotation) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range q.Items {
		total = total.Add(it.Total)
	}
	return total
}

// HandoverStatus tracks inspection of awarded tooling.
type HandoverStatus string

const (
	HandoverPending  HandoverStatus = "Pending Inspection"
	HandoverApproved HandoverStatus = "Approved"
	HandoverRejected HandoverStatus = "Rejected"
)

// Terminal reports Approved or Rejected.
func (s HandoverStatus) Terminal() bool {
	return s == HandoverApproved || s == HandoverRejected
}

// CriticalSpare describes a spare carried through inspection into inventory.
type CriticalSpare struct {
	ID         string `json:"id"`
	PartNumber string `json:"part_number"`
	ToolNumber string `json:"tool_number"`
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
}

// Handover is the physical transfer of awarded tooling to maintenance.
type Handover struct {
	ID             string          `json:"id"`
	ProjectID      string          `json:"project_id"`
	PRID           string          `json:"pr_id"`
	ToolSet        string          `json:"tool_set"`
	Items          []PRItem        `json:"items"`
	CriticalSpares []CriticalSpare `json:"critical_spares"`
	Status         HandoverStatus  `json:"status"`
	Remarks        string          `json:"remarks,omitempty"`
	InspectedBy    string          `json:"inspected_by,omitempty"`
	InspectedAt    *time.Time      `json:"inspected_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// LockKey is the per-entity lock name for the handover.
func (h Handover) LockKey() string { return "handover:" + h.ID }

// SupplierStatus marks whether a supplier may be invited.
type SupplierStatus string

const (
	SupplierActive   SupplierStatus = "Active"
	SupplierInactive SupplierStatus = "Inactive"
)

// Supplier is a tooling vendor.
type Supplier struct {
	ID            string         `json:"id"`
	Code          string         `json:"code"`
	Name          string         `json:"name"`
	ContactPerson string         `json:"contact_person,omitempty"`
	Email         string         `json:"email,omitempty"`
	Phone         string         `json:"phone,omitempty"`
	Address       string         `json:"address,omitempty"`
	Status        SupplierStatus `json:"status"`
	Categories    []string       `json:"categories"`
	Rating        float64        `json:"rating"`
	TotalOrders   int            `json:"total_orders"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// LockKey is the per-entity lock name for the supplier.
func (s Supplier) LockKey() string { return "supplier:" + s.ID }

// ProjectFilter narrows project listings.
type ProjectFilter struct {
	Status ProjectStatus
}

// Match reports whether p satisfies the filter.
func (f ProjectFilter) Match(p Project) bool {
	return f.Status == "" || p.Status == f.Status
}

// SupplierFilter narrows supplier listings.
type SupplierFilter struct {
	Status   SupplierStatus
	Category string
}

// Match reports whether s satisfies the filter.
func (f SupplierFilter) Match(s Supplier) bool {
	if f.Status != "" && s.Status != f.Status {
		return false
	}
	if f.Category == "" {
		return true
	}
	for _, c := range s.Categories {
		if foldLabel(c) == foldLabel(f.Category) {
			return true
		}
	}
	return false
}

// PRFilter narrows PR listings.
type PRFilter struct {
	ProjectID string
	Status    PRStatus
}

// Match reports whether pr satisfies the filter.
func (f PRFilter) Match(pr PR) bool {
	if f.ProjectID != "" && pr.ProjectID != f.ProjectID {
		return false
	}
	return f.Status == "" || pr.Status == f.Status
}

// HandoverFilter narrows handover listings.
type HandoverFilter struct {
	Status HandoverStatus
	PRID   string
}

// Match reports whether h satisfies the filter.
func (f HandoverFilter) Match(h Handover) bool {
	if f.PRID != "" && h.PRID != f.PRID {
		return false
	}
	return f.Status == "" || h.Status == f.Status
}
