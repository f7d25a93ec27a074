package inventory

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/toolroom-erp/toolroom/internal/rbac"
	"github.com/toolroom-erp/toolroom/internal/shared"
)

type memoryRepo struct {
	items    map[string]Item
	requests map[string]SparesRequest
}

type memoryTx struct {
	repo     *memoryRepo
	items    map[string]Item
	requests map[string]SparesRequest
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: make(map[string]Item), requests: make(map[string]SparesRequest)}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx := &memoryTx{repo: r, items: make(map[string]Item), requests: make(map[string]SparesRequest)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for id, it := range tx.items {
		r.items[id] = it
	}
	for id, req := range tx.requests {
		r.requests[id] = req
	}
	return nil
}

func (r *memoryRepo) GetItem(_ context.Context, id string) (Item, error) {
	it, ok := r.items[id]
	if !ok {
		return Item{}, shared.NotFound("inventory item", id)
	}
	return it, nil
}

func (r *memoryRepo) FindItem(_ context.Context, key Key) (Item, bool, error) {
	for _, it := range r.items {
		if it.Key() == key {
			return it, true, nil
		}
	}
	return Item{}, false, nil
}

func (r *memoryRepo) ListItems(context.Context) ([]Item, error) {
	out := make([]Item, 0, len(r.items))
	for _, it := range r.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryRepo) GetRequest(_ context.Context, id string) (SparesRequest, error) {
	req, ok := r.requests[id]
	if !ok {
		return SparesRequest{}, shared.NotFound("spares request", id)
	}
	return req, nil
}

func (r *memoryRepo) ListRequests(_ context.Context, filter RequestFilter) ([]SparesRequest, error) {
	var out []SparesRequest
	for _, req := range r.requests {
		if filter.Requester != "" && req.Requester != filter.Requester {
			continue
		}
		if filter.Status != "" && req.Status != filter.Status {
			continue
		}
		out = append(out, req)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (tx *memoryTx) GetItem(ctx context.Context, id string) (Item, error) {
	if it, ok := tx.items[id]; ok {
		return it, nil
	}
	return tx.repo.GetItem(ctx, id)
}

func (tx *memoryTx) FindItem(ctx context.Context, key Key) (Item, bool, error) {
	for _, it := range tx.items {
		if it.Key() == key {
			return it, true, nil
		}
	}
	return tx.repo.FindItem(ctx, key)
}

func (tx *memoryTx) ListItems(ctx context.Context) ([]Item, error) {
	return tx.repo.ListItems(ctx)
}

func (tx *memoryTx) GetRequest(ctx context.Context, id string) (SparesRequest, error) {
	if req, ok := tx.requests[id]; ok {
		return req, nil
	}
	return tx.repo.GetRequest(ctx, id)
}

func (tx *memoryTx) ListRequests(ctx context.Context, filter RequestFilter) ([]SparesRequest, error) {
	return tx.repo.ListRequests(ctx, filter)
}

func (tx *memoryTx) PutItem(_ context.Context, item Item) error {
	tx.items[item.ID] = item
	return nil
}

func (tx *memoryTx) PutRequest(_ context.Context, req SparesRequest) error {
	tx.requests[req.ID] = req
	return nil
}

var (
	spares   = rbac.Actor{ID: "sp-1", Role: rbac.RoleSpares}
	indentor = rbac.Actor{ID: "ind-1", Role: rbac.RoleIndentor}
	t0       = time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)
)

func newTestService(repo *memoryRepo) *Service {
	svc := NewService(repo, nil, nil, shared.NewManualClock(t0), nil, ServiceConfig{})
	n := 0
	svc.newID = func() string {
		n++
		return "req-" + string(rune('0'+n))
	}
	return svc
}

func seedItem(repo *memoryRepo, stock, min int) Item {
	it := Item{ID: "itm-1", PartNumber: "P-100", ToolNumber: "T-7", Name: "Ejector pin", Quantity: stock, StockLevel: stock, MinStockLevel: min, CreatedAt: t0, UpdatedAt: t0}
	repo.items[it.ID] = it
	return it
}

func TestDeriveStatus(t *testing.T) {
	require.Equal(t, StatusOutOfStock, DeriveStatus(0, 0))
	require.Equal(t, StatusOutOfStock, DeriveStatus(0, 5))
	require.Equal(t, StatusLowStock, DeriveStatus(3, 5))
	require.Equal(t, StatusInStock, DeriveStatus(5, 5))
	require.Equal(t, StatusInStock, DeriveStatus(9, 0))
}

func TestFulfillDrainsLowStockToOutOfStock(t *testing.T) {
	repo := newMemoryRepo()
	item := seedItem(repo, 3, 5)
	require.Equal(t, StatusLowStock, item.Status())
	svc := newTestService(repo)
	ctx := context.Background()

	req, err := svc.CreateRequest(ctx, indentor, CreateRequestInput{ItemName: "Ejector pin", PartNumber: "P-100", ToolNumber: "T-7", Quantity: 3})
	require.NoError(t, err)
	require.Equal(t, RequestPending, req.Status)
	require.Equal(t, "ind-1", req.Requester)

	effect, err := svc.FulfillRequest(ctx, spares, req.ID, 3)
	require.NoError(t, err)
	require.Equal(t, 0, effect.Item.StockLevel)
	require.Equal(t, StatusOutOfStock, effect.Item.Status())
	require.Equal(t, RequestFulfilled, effect.Request.Status)
	require.Equal(t, 3, effect.Request.QuantityFulfilled)

	stored, err := repo.GetItem(ctx, item.ID)
	require.NoError(t, err)
	require.Equal(t, 0, stored.StockLevel)
	require.Equal(t, 0, stored.Quantity)

	_, err = svc.FulfillRequest(ctx, spares, req.ID, 3)
	require.ErrorIs(t, err, shared.ErrInvalidState)
	again, _ := repo.GetItem(ctx, item.ID)
	require.Equal(t, stored, again)
}

func TestPartialFulfillStaysPending(t *testing.T) {
	repo := newMemoryRepo()
	seedItem(repo, 10, 2)
	svc := newTestService(repo)
	ctx := context.Background()

	req, err := svc.CreateRequest(ctx, indentor, CreateRequestInput{ItemName: "Ejector pin", PartNumber: "P-100", ToolNumber: "T-7", Quantity: 4})
	require.NoError(t, err)

	effect, err := svc.FulfillRequest(ctx, spares, req.ID, 1)
	require.NoError(t, err)
	require.Equal(t, RequestPending, effect.Request.Status)
	require.Equal(t, 3, effect.Request.Remaining())

	_, err = svc.FulfillRequest(ctx, spares, req.ID, 4)
	require.ErrorIs(t, err, shared.ErrValidation)

	effect, err = svc.FulfillRequest(ctx, spares, req.ID, 3)
	require.NoError(t, err)
	require.Equal(t, RequestFulfilled, effect.Request.Status)
	require.Equal(t, 6, effect.Item.StockLevel)
}

func TestFulfillInsufficientStockLeavesStateUnchanged(t *testing.T) {
	repo := newMemoryRepo()
	item := seedItem(repo, 2, 5)
	svc := newTestService(repo)
	ctx := context.Background()

	req, err := svc.CreateRequest(ctx, indentor, CreateRequestInput{ItemName: "Ejector pin", PartNumber: "P-100", ToolNumber: "T-7", Quantity: 5})
	require.NoError(t, err)

	_, err = svc.FulfillRequest(ctx, spares, req.ID, 5)
	require.ErrorIs(t, err, shared.ErrInsufficientStock)

	storedReq, _ := repo.GetRequest(ctx, req.ID)
	require.Equal(t, req, storedReq)
	storedItem, _ := repo.GetItem(ctx, item.ID)
	require.Equal(t, item, storedItem)
}

func TestFulfillWithoutInventoryLine(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	req, err := svc.CreateRequest(ctx, indentor, CreateRequestInput{ItemName: "Guide bush", Quantity: 1})
	require.NoError(t, err)
	_, err = svc.FulfillRequest(ctx, spares, req.ID, 1)
	require.ErrorIs(t, err, shared.ErrInsufficientStock)

	_, err = svc.FulfillRequest(ctx, spares, "missing", 1)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestRoleGating(t *testing.T) {
	repo := newMemoryRepo()
	seedItem(repo, 3, 1)
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.CreateRequest(ctx, spares, CreateRequestInput{ItemName: "Ejector pin", Quantity: 1})
	require.ErrorIs(t, err, shared.ErrForbidden)

	req, err := svc.CreateRequest(ctx, indentor, CreateRequestInput{ItemName: "Ejector pin", PartNumber: "P-100", ToolNumber: "T-7", Quantity: 1})
	require.NoError(t, err)
	_, err = svc.FulfillRequest(ctx, indentor, req.ID, 1)
	require.ErrorIs(t, err, shared.ErrForbidden)
	_, err = svc.AdjustMinStock(ctx, indentor, "itm-1", 4)
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestRejectRequestIsTerminal(t *testing.T) {
	repo := newMemoryRepo()
	item := seedItem(repo, 3, 1)
	svc := newTestService(repo)
	ctx := context.Background()

	req, err := svc.CreateRequest(ctx, indentor, CreateRequestInput{ItemName: "Ejector pin", PartNumber: "P-100", ToolNumber: "T-7", Quantity: 2})
	require.NoError(t, err)

	_, err = svc.RejectRequest(ctx, spares, req.ID, " ")
	require.ErrorIs(t, err, shared.ErrValidation)

	rejected, err := svc.RejectRequest(ctx, spares, req.ID, "duplicate request")
	require.NoError(t, err)
	require.Equal(t, RequestRejected, rejected.Status)
	require.Equal(t, "duplicate request", rejected.RejectionReason)

	_, err = svc.FulfillRequest(ctx, spares, req.ID, 1)
	require.ErrorIs(t, err, shared.ErrInvalidState)
	_, err = svc.RejectRequest(ctx, spares, req.ID, "again")
	require.ErrorIs(t, err, shared.ErrInvalidState)

	stored, _ := repo.GetItem(ctx, item.ID)
	require.Equal(t, item, stored)
}

func TestAdjustMinStockRecomputesStatus(t *testing.T) {
	repo := newMemoryRepo()
	seedItem(repo, 4, 2)
	svc := newTestService(repo)
	ctx := context.Background()

	item, err := svc.AdjustMinStock(ctx, spares, "itm-1", 6)
	require.NoError(t, err)
	require.Equal(t, StatusLowStock, item.Status())

	_, err = svc.AdjustMinStock(ctx, spares, "itm-1", -1)
	require.ErrorIs(t, err, shared.ErrValidation)

	suggestions, err := svc.ReorderSuggestions(ctx)
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	require.Equal(t, 2, suggestions[0].Shortfall)
}

func TestReceiveMergesByKey(t *testing.T) {
	key := Key{PartNumber: "P-1", ToolNumber: "T-1", Name: "Core insert"}

	fresh, err := Receive(nil, Receipt{Key: key, Quantity: 4}, MinStockDelivered, "itm-9", t0)
	require.NoError(t, err)
	require.Equal(t, 4, fresh.StockLevel)
	require.Equal(t, 4, fresh.MinStockLevel)
	require.Equal(t, StatusInStock, fresh.Status())

	merged, err := Receive(&fresh, Receipt{Key: key, Quantity: 2}, MinStockDelivered, "ignored", t0.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, "itm-9", merged.ID)
	require.Equal(t, 6, merged.StockLevel)
	require.Equal(t, 6, merged.Quantity)
	require.Equal(t, 4, merged.MinStockLevel)

	zero, err := Receive(nil, Receipt{Key: key, Quantity: 4}, MinStockZero, "itm-10", t0)
	require.NoError(t, err)
	require.Equal(t, 0, zero.MinStockLevel)

	_, err = Receive(nil, Receipt{Key: key}, MinStockDelivered, "x", t0)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestShortfallHasFloorOfOne(t *testing.T) {
	require.Equal(t, 0, Shortfall(Item{StockLevel: 5, MinStockLevel: 5}))
	require.Equal(t, 3, Shortfall(Item{StockLevel: 2, MinStockLevel: 5}))
	require.Equal(t, 1, Shortfall(Item{StockLevel: 0, MinStockLevel: 0}))
}

func TestParseMinStockPolicy(t *testing.T) {
	p, err := ParseMinStockPolicy("")
	require.NoError(t, err)
	require.Equal(t, MinStockDelivered, p)
	p, err = ParseMinStockPolicy("ZERO")
	require.NoError(t, err)
	require.Equal(t, MinStockZero, p)
	_, err = ParseMinStockPolicy("half")
	require.Error(t, err)
}

func TestItemJSONCarriesDerivedStatus(t *testing.T) {
	data, err := Item{ID: "i", StockLevel: 0}.MarshalJSON()
	require.NoError(t, err)
	require.Contains(t, string(data), `"status":"Out of Stock"`)
}
