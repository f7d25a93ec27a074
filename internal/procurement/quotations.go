package procurement

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/toolroom-erp/toolroom/internal/rbac"
	"github.com/toolroom-erp/toolroom/internal/shared"
)

// SubmitQuotationInput carries a supplier's priced response.
type SubmitQuotationInput struct {
	SupplierID    string                     `json:"supplier_id" validate:"required"`
	Price         decimal.Decimal            `json:"price"`
	Items         []SubmitQuotationItemInput `json:"items" validate:"required,min=1,dive"`
	DeliveryTerms string                     `json:"delivery_terms"`
	DeliveryDate  time.Time                  `json:"delivery_date"`
	Notes         string                     `json:"notes"`
}

// SubmitQuotationItemInput prices one PR item.
type SubmitQuotationItemInput struct {
	ItemID    string          `json:"item_id" validate:"required"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity" validate:"gt=0"`
}

// SubmitQuotation records a quotation from a candidate supplier.
func (s *Service) SubmitQuotation(ctx context.Context, actor rbac.Actor, prID string, input SubmitQuotationInput) (Quotation, error) {
	if err := s.policy.Authorize(actor, rbac.ActionQuotationSubmit); err != nil {
		return Quotation{}, err
	}
	if err := shared.ValidateStruct(input); err != nil {
		return Quotation{}, err
	}
	q := Quotation{
		ID:            s.newID(),
		SupplierID:    strings.TrimSpace(input.SupplierID),
		Price:         input.Price,
		DeliveryTerms: input.DeliveryTerms,
		DeliveryDate:  input.DeliveryDate,
		Notes:         input.Notes,
	}
	for _, it := range input.Items {
		q.Items = append(q.Items, QuotationItem{ItemID: it.ItemID, UnitPrice: it.UnitPrice, Quantity: it.Quantity})
	}
	pr, err := s.transitionPR(ctx, prID, func(pr PR) (PR, error) {
		return AddQuotation(pr, q, s.clock.Now())
	})
	if err != nil {
		return Quotation{}, err
	}
	stored, _, _ := pr.Quotation(q.ID)
	s.observer.ObserveTransition("quotation", string(stored.Status))
	return stored, nil
}

// EvaluateQuotation marks a quotation as reviewed.
func (s *Service) EvaluateQuotation(ctx context.Context, actor rbac.Actor, prID, quotationID string) (PR, error) {
	if err := s.policy.Authorize(actor, rbac.ActionQuotationEvaluate); err != nil {
		return PR{}, err
	}
	return s.quotationTransition(ctx, prID, quotationID, func(pr PR) (PR, error) {
		return EvaluateQuotation(pr, quotationID, s.clock.Now())
	})
}

// SelectQuotation picks the winning quotation of a PR sent to suppliers.
func (s *Service) SelectQuotation(ctx context.Context, actor rbac.Actor, prID, quotationID string) (PR, error) {
	if err := s.policy.Authorize(actor, rbac.ActionQuotationSelect); err != nil {
		return PR{}, err
	}
	return s.quotationTransition(ctx, prID, quotationID, func(pr PR) (PR, error) {
		return SelectQuotation(pr, quotationID, s.clock.Now())
	})
}

// RejectQuotation rejects one quotation; siblings are unaffected.
func (s *Service) RejectQuotation(ctx context.Context, actor rbac.Actor, prID, quotationID, notes string) (PR, error) {
	if err := s.policy.Authorize(actor, rbac.ActionQuotationReject); err != nil {
		return PR{}, err
	}
	return s.quotationTransition(ctx, prID, quotationID, func(pr PR) (PR, error) {
		return RejectQuotation(pr, quotationID, strings.TrimSpace(notes), s.clock.Now())
	})
}

func (s *Service) quotationTransition(ctx context.Context, prID, quotationID string, fn func(PR) (PR, error)) (PR, error) {
	pr, err := s.transitionPR(ctx, prID, fn)
	if err != nil {
		return PR{}, err
	}
	if q, _, ok := pr.Quotation(quotationID); ok {
		s.observer.ObserveTransition("quotation", string(q.Status))
	}
	return pr, nil
}
