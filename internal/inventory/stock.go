package inventory

import (
	"fmt"
	"strings"
	"time"

	"github.com/toolroom-erp/toolroom/internal/shared"
)

// MinStockPolicy decides the reorder threshold of an item first introduced by a receipt.
type MinStockPolicy string

const (
	// MinStockDelivered sets the threshold to the first delivered quantity.
	MinStockDelivered MinStockPolicy = "delivered"
	// MinStockZero disables low-stock alerts until a threshold is set explicitly.
	MinStockZero MinStockPolicy = "zero"
)

// ParseMinStockPolicy resolves a configured policy name.
func ParseMinStockPolicy(raw string) (MinStockPolicy, error) {
	switch MinStockPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", MinStockDelivered:
		return MinStockDelivered, nil
	case MinStockZero:
		return MinStockZero, nil
	default:
		return "", fmt.Errorf("inventory: unknown min stock policy %q", raw)
	}
}

func (p MinStockPolicy) initial(delivered int) int {
	if p == MinStockZero {
		return 0
	}
	return delivered
}

// Receipt is a quantity of a keyed item entering stock.
type Receipt struct {
	Key      Key
	Quantity int
}

// Receive merges a receipt into the existing line or introduces a new one.
// existing must be nil when no line with the receipt key exists.
func Receive(existing *Item, receipt Receipt, policy MinStockPolicy, newID string, now time.Time) (Item, error) {
	if receipt.Quantity <= 0 {
		return Item{}, shared.Validation("receipt quantity must be positive, got %d", receipt.Quantity)
	}
	if existing != nil {
		if existing.Key() != receipt.Key {
			return Item{}, shared.Validation("receipt key does not match item %s", existing.ID)
		}
		item := *existing
		item.StockLevel += receipt.Quantity
		item.Quantity += receipt.Quantity
		item.UpdatedAt = now
		return item, nil
	}
	return Item{
		ID:            newID,
		PartNumber:    receipt.Key.PartNumber,
		ToolNumber:    receipt.Key.ToolNumber,
		Name:          receipt.Key.Name,
		Quantity:      receipt.Quantity,
		StockLevel:    receipt.Quantity,
		MinStockLevel: policy.initial(receipt.Quantity),
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// FulfillEffect is the complete set of entities changed by one fulfillment.
type FulfillEffect struct {
	Request SparesRequest `json:"request"`
	Item    Item          `json:"item"`
}

// Fulfill draws qty from item against req. Neither input is modified.
func Fulfill(req SparesRequest, item Item, qty int, now time.Time) (FulfillEffect, error) {
	if req.Status.Terminal() {
		return FulfillEffect{}, shared.InvalidState("spares request %s is already %s", req.ID, req.Status)
	}
	if qty <= 0 {
		return FulfillEffect{}, shared.Validation("fulfill quantity must be positive, got %d", qty)
	}
	if qty > req.Remaining() {
		return FulfillEffect{}, shared.Validation("fulfill quantity %d exceeds remaining %d", qty, req.Remaining())
	}
	if item.Key() != req.Key() {
		return FulfillEffect{}, shared.Validation("item %s does not match request %s", item.ID, req.ID)
	}
	if item.StockLevel < qty {
		return FulfillEffect{}, shared.InsufficientStock("%s has %d on hand, requested %d", item.Name, item.StockLevel, qty)
	}
	item.StockLevel -= qty
	item.Quantity -= qty
	if item.Quantity < 0 {
		item.Quantity = 0
	}
	item.UpdatedAt = now

	req.QuantityFulfilled += qty
	if req.QuantityFulfilled == req.QuantityRequested {
		req.Status = RequestFulfilled
	}
	req.UpdatedAt = now
	return FulfillEffect{Request: req, Item: item}, nil
}

// Shortfall is the replenishment quantity suggested for an item needing attention.
func Shortfall(item Item) int {
	if !item.NeedsAttention() {
		return 0
	}
	gap := item.MinStockLevel - item.StockLevel
	if gap < 1 {
		return 1
	}
	return gap
}
