package procurement

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/toolroom-erp/toolroom/internal/shared"
)

// ApprovePR moves a submitted PR to Approved.
func ApprovePR(pr PR, comments string, now time.Time) (PR, error) {
	if pr.Status != PRSubmitted {
		return PR{}, shared.InvalidState("pr %s is %s, expected %s", pr.ID, pr.Status, PRSubmitted)
	}
	out := pr.Clone()
	out.Status = PRApproved
	out.ApproverComments = comments
	out.UpdatedAt = now
	return out, nil
}

// SendPR moves an approved PR to Sent To Supplier once a candidate has quoted.
func SendPR(pr PR, now time.Time) (PR, error) {
	if pr.Status != PRApproved {
		return PR{}, shared.InvalidState("pr %s is %s, expected %s", pr.ID, pr.Status, PRApproved)
	}
	quoted := false
	for _, q := range pr.Quotations {
		if pr.HasCandidate(q.SupplierID) {
			quoted = true
			break
		}
	}
	if !quoted {
		return PR{}, shared.Validation("pr %s has no quotation from a candidate supplier", pr.ID)
	}
	out := pr.Clone()
	out.Status = PRSentToSupplier
	out.UpdatedAt = now
	return out, nil
}

// RejectPR closes a non-terminal PR.
func RejectPR(pr PR, reason string, now time.Time) (PR, error) {
	if pr.Status.Terminal() {
		return PR{}, shared.InvalidState("pr %s is already %s", pr.ID, pr.Status)
	}
	out := pr.Clone()
	out.Status = PRRejected
	out.RejectionReason = reason
	out.UpdatedAt = now
	out.ClosedAt = &now
	return out, nil
}

// AddQuotation records a supplier quotation on the PR.
func AddQuotation(pr PR, q Quotation, now time.Time) (PR, error) {
	if pr.Status != PRApproved && pr.Status != PRSentToSupplier {
		return PR{}, shared.InvalidState("pr %s is %s, quotations need %s or %s", pr.ID, pr.Status, PRApproved, PRSentToSupplier)
	}
	if !pr.HasCandidate(q.SupplierID) {
		return PR{}, shared.Validation("supplier %s is not a candidate on pr %s", q.SupplierID, pr.ID)
	}
	for _, existing := range pr.Quotations {
		if existing.SupplierID == q.SupplierID && existing.Status != QuotationRejected {
			return PR{}, shared.Validation("supplier %s already has an open quotation %s", q.SupplierID, existing.ID)
		}
	}
	if len(q.Items) == 0 {
		return PR{}, shared.Validation("quotation requires at least one item")
	}
	q.Items = append([]QuotationItem(nil), q.Items...)
	seen := make(map[string]struct{}, len(q.Items))
	for i, it := range q.Items {
		if _, ok := pr.Item(it.ItemID); !ok {
			return PR{}, shared.Validation("quotation item %q is not on pr %s", it.ItemID, pr.ID)
		}
		if _, dup := seen[it.ItemID]; dup {
			return PR{}, shared.Validation("quotation prices item %q twice", it.ItemID)
		}
		seen[it.ItemID] = struct{}{}
		if it.Quantity <= 0 || it.UnitPrice.IsNegative() {
			return PR{}, shared.Validation("quotation item %q needs positive quantity and non-negative price", it.ItemID)
		}
		line := it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
		if !it.Total.IsZero() && !it.Total.Equal(line) {
			return PR{}, shared.Validation("quotation item %q total %s != %s", it.ItemID, it.Total, line)
		}
		q.Items[i].Total = line
	}
	if !q.Price.Equal(q.ItemsTotal()) {
		return PR{}, shared.Validation("quotation price %s != item total %s", q.Price, q.ItemsTotal())
	}
	q.PRID = pr.ID
	q.Status = QuotationPending
	q.CreatedAt = now
	q.UpdatedAt = now
	out := pr.Clone()
	out.Quotations = append(out.Quotations, q)
	out.UpdatedAt = now
	return out, nil
}

func openForQuotes(pr PR) error {
	if pr.Status.Terminal() {
		return shared.InvalidState("pr %s is already %s", pr.ID, pr.Status)
	}
	return nil
}

// EvaluateQuotation marks a pending quotation as reviewed.
func EvaluateQuotation(pr PR, quotationID string, now time.Time) (PR, error) {
	if err := openForQuotes(pr); err != nil {
		return PR{}, err
	}
	q, i, ok := pr.Quotation(quotationID)
	if !ok {
		return PR{}, shared.NotFound("quotation", quotationID)
	}
	if q.Status != QuotationPending {
		return PR{}, shared.InvalidState("quotation %s is %s, expected %s", q.ID, q.Status, QuotationPending)
	}
	out := pr.Clone()
	out.Quotations[i].Status = QuotationEvaluated
	out.Quotations[i].UpdatedAt = now
	out.UpdatedAt = now
	return out, nil
}

// SelectQuotation makes one quotation the Selected offer; siblings that are not
// Rejected fall back to Evaluated.
func SelectQuotation(pr PR, quotationID string, now time.Time) (PR, error) {
	if pr.Status != PRSentToSupplier {
		return PR{}, shared.InvalidState("pr %s is %s, expected %s", pr.ID, pr.Status, PRSentToSupplier)
	}
	q, _, ok := pr.Quotation(quotationID)
	if !ok {
		return PR{}, shared.NotFound("quotation", quotationID)
	}
	if q.Status == QuotationRejected {
		return PR{}, shared.InvalidState("quotation %s is %s", q.ID, q.Status)
	}
	out := pr.Clone()
	for i := range out.Quotations {
		sib := &out.Quotations[i]
		switch {
		case sib.ID == quotationID:
			sib.Status = QuotationSelected
		case sib.Status == QuotationRejected:
			continue
		default:
			sib.Status = QuotationEvaluated
		}
		sib.UpdatedAt = now
	}
	out.UpdatedAt = now
	return out, nil
}

// RejectQuotation records a human rejection of a quotation.
func RejectQuotation(pr PR, quotationID, notes string, now time.Time) (PR, error) {
	if err := openForQuotes(pr); err != nil {
		return PR{}, err
	}
	q, i, ok := pr.Quotation(quotationID)
	if !ok {
		return PR{}, shared.NotFound("quotation", quotationID)
	}
	if q.Status == QuotationRejected {
		return PR{}, shared.InvalidState("quotation %s is already %s", q.ID, q.Status)
	}
	out := pr.Clone()
	out.Quotations[i].Status = QuotationRejected
	if notes != "" {
		out.Quotations[i].Notes = notes
	}
	out.Quotations[i].UpdatedAt = now
	out.UpdatedAt = now
	return out, nil
}
