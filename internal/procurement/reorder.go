package procurement

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/toolroom-erp/toolroom/internal/inventory"
	"github.com/toolroom-erp/toolroom/internal/rbac"
	"github.com/toolroom-erp/toolroom/internal/shared"
)

// ReorderInput raises a replenishment PR for a low-stock inventory line.
type ReorderInput struct {
	ProjectID          string          `json:"project_id" validate:"required"`
	InventoryItemID    string          `json:"inventory_item_id" validate:"required"`
	Quantity           int             `json:"quantity" validate:"gte=0"`
	UnitPrice          decimal.Decimal `json:"unit_price"`
	Type               string          `json:"type"`
	CandidateSuppliers []string        `json:"candidate_suppliers" validate:"required,min=1,dive,required"`
}

// CreateReorderPR submits a one-item critical-spare PR for an inventory line that
// needs attention. The item carries the line's part and tool numbers and is fully
// allocated, so award and handover approval replenish the same line.
func (s *Service) CreateReorderPR(ctx context.Context, actor rbac.Actor, input ReorderInput) (PR, error) {
	if err := s.policy.Authorize(actor, rbac.ActionPRReorder); err != nil {
		return PR{}, err
	}
	if err := shared.ValidateStruct(input); err != nil {
		return PR{}, err
	}
	item, err := s.repo.GetItem(ctx, input.InventoryItemID)
	if err != nil {
		return PR{}, err
	}
	if !item.NeedsAttention() {
		return PR{}, shared.InvalidState("inventory item %s is %s", item.ID, item.Status())
	}
	qty := input.Quantity
	if qty == 0 {
		qty = inventory.Shortfall(item)
	}
	prType := input.Type
	if prType == "" {
		prType = string(PRTypeNewSet)
	}
	itemID := s.newID()
	return s.submitPR(ctx, actor, SubmitPRInput{
		ProjectID: input.ProjectID,
		Type:      prType,
		Items: []PRItemInput{{
			ID:            itemID,
			Name:          item.Name,
			Specification: "Replenishment of inventory item " + item.ID,
			Quantity:      qty,
			UnitPrice:     input.UnitPrice,
			CriticalSpare: true,
			PartNumber:    item.PartNumber,
			ToolNumber:    item.ToolNumber,
		}},
		CandidateSuppliers: input.CandidateSuppliers,
		Allocations:        []AllocationInput{{ItemID: itemID, Quantity: qty}},
	})
}

// ReorderSuggestions lists inventory lines needing replenishment.
func (s *Service) ReorderSuggestions(ctx context.Context) ([]inventory.ReorderSuggestion, error) {
	items, err := s.repo.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	return inventory.Suggest(items), nil
}
