package inventory

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status is derived from stock level and reorder threshold; it is never stored independently.
type Status string

const (
	StatusInStock    Status = "In Stock"
	StatusLowStock   Status = "Low Stock"
	StatusOutOfStock Status = "Out of Stock"
)

// DeriveStatus maps stock level against its threshold.
func DeriveStatus(stockLevel, minStockLevel int) Status {
	switch {
	case stockLevel == 0:
		return StatusOutOfStock
	case stockLevel < minStockLevel:
		return StatusLowStock
	default:
		return StatusInStock
	}
}

// Key identifies an inventory line by part, tool and name.
type Key struct {
	PartNumber string
	ToolNumber string
	Name       string
}

// LockKey is the per-entity lock name for the inventory line.
func (k Key) LockKey() string {
	return fmt.Sprintf("inventory:%s|%s|%s", k.PartNumber, k.ToolNumber, k.Name)
}

// Item is an on-hand stock line.
type Item struct {
	ID            string    `json:"id"`
	PartNumber    string    `json:"part_number"`
	ToolNumber    string    `json:"tool_number"`
	Name          string    `json:"name"`
	Quantity      int       `json:"quantity"`
	StockLevel    int       `json:"stock_level"`
	MinStockLevel int       `json:"min_stock_level"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Key returns the merge key of the item.
func (i Item) Key() Key {
	return Key{PartNumber: i.PartNumber, ToolNumber: i.ToolNumber, Name: i.Name}
}

// Status reports the derived stock status.
func (i Item) Status() Status {
	return DeriveStatus(i.StockLevel, i.MinStockLevel)
}

// NeedsAttention reports Low Stock or Out of Stock.
func (i Item) NeedsAttention() bool {
	return i.Status() != StatusInStock
}

type itemJSON Item

// MarshalJSON includes the derived status for consumers.
func (i Item) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		itemJSON
		Status Status `json:"status"`
	}{itemJSON: itemJSON(i), Status: i.Status()})
}

// RequestStatus tracks a spares request.
type RequestStatus string

const (
	RequestPending   RequestStatus = "Pending"
	RequestFulfilled RequestStatus = "Fulfilled"
	RequestRejected  RequestStatus = "Rejected"
)

// Terminal reports whether no further transitions are allowed.
func (s RequestStatus) Terminal() bool {
	return s == RequestFulfilled || s == RequestRejected
}

// SparesRequest is an indentor's draw against inventory.
type SparesRequest struct {
	ID                string        `json:"id"`
	Requester         string        `json:"requester"`
	ItemName          string        `json:"item_name"`
	PartNumber        string        `json:"part_number"`
	ToolNumber        string        `json:"tool_number"`
	QuantityRequested int           `json:"quantity_requested"`
	QuantityFulfilled int           `json:"quantity_fulfilled"`
	Status            RequestStatus `json:"status"`
	RejectionReason   string        `json:"rejection_reason,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// Key returns the inventory key the request draws against.
func (r SparesRequest) Key() Key {
	return Key{PartNumber: r.PartNumber, ToolNumber: r.ToolNumber, Name: r.ItemName}
}

// Remaining is the quantity still to be fulfilled.
func (r SparesRequest) Remaining() int {
	return r.QuantityRequested - r.QuantityFulfilled
}

// LockKey is the per-entity lock name for the request.
func (r SparesRequest) LockKey() string {
	return "spares_request:" + r.ID
}

// RequestFilter narrows request listings.
type RequestFilter struct {
	Requester string
	Status    RequestStatus
}

// ReorderSuggestion proposes replenishment for a low-stock item.
type ReorderSuggestion struct {
	Item      Item `json:"item"`
	Shortfall int  `json:"shortfall"`
}
