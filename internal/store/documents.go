// Package store persists workflow entities as JSON documents, in memory or in PostgreSQL.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/toolroom-erp/toolroom/internal/inventory"
	"github.com/toolroom-erp/toolroom/internal/procurement"
	"github.com/toolroom-erp/toolroom/internal/shared"
)

// Collection names.
const (
	CollectionProjects  = "projects"
	CollectionSuppliers = "suppliers"
	CollectionPRs       = "prs"
	CollectionHandovers = "handovers"
	CollectionItems     = "inventory_items"
	CollectionRequests  = "spares_requests"
)

// source is the raw document access a backend provides.
type source interface {
	load(ctx context.Context, collection, id string) ([]byte, bool, error)
	scan(ctx context.Context, collection string, fn func([]byte) error) error
	save(ctx context.Context, collection, id string, body []byte) error
}

func getDoc[T any](ctx context.Context, src source, collection, entity, id string) (T, error) {
	var v T
	body, ok, err := src.load(ctx, collection, id)
	if err != nil {
		return v, err
	}
	if !ok {
		return v, shared.NotFound(entity, id)
	}
	if err := json.Unmarshal(body, &v); err != nil {
		return v, fmt.Errorf("store: decode %s %s: %w", collection, id, err)
	}
	return v, nil
}

func listDocs[T any](ctx context.Context, src source, collection string, keep func(T) bool, order func(T) (time.Time, string)) ([]T, error) {
	var out []T
	err := src.scan(ctx, collection, func(body []byte) error {
		var v T
		if err := json.Unmarshal(body, &v); err != nil {
			return fmt.Errorf("store: decode %s: %w", collection, err)
		}
		if keep == nil || keep(v) {
			out = append(out, v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		ti, idi := order(out[i])
		tj, idj := order(out[j])
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return idi < idj
	})
	return out, nil
}

func putDoc(ctx context.Context, src source, collection, id string, v any) error {
	if id == "" {
		return shared.Validation("%s document without id", collection)
	}
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: encode %s %s: %w", collection, id, err)
	}
	return src.save(ctx, collection, id, body)
}

// documents implements every repository method over a source.
type documents struct {
	src source
}

func (d documents) GetProject(ctx context.Context, id string) (procurement.Project, error) {
	return getDoc[procurement.Project](ctx, d.src, CollectionProjects, "project", id)
}

func (d documents) ListProjects(ctx context.Context, filter procurement.ProjectFilter) ([]procurement.Project, error) {
	return listDocs(ctx, d.src, CollectionProjects, filter.Match, func(p procurement.Project) (time.Time, string) { return p.CreatedAt, p.ID })
}

func (d documents) GetSupplier(ctx context.Context, id string) (procurement.Supplier, error) {
	return getDoc[procurement.Supplier](ctx, d.src, CollectionSuppliers, "supplier", id)
}

func (d documents) FindSupplierByCode(ctx context.Context, code string) (procurement.Supplier, bool, error) {
	matches, err := listDocs(ctx, d.src, CollectionSuppliers, func(s procurement.Supplier) bool { return s.Code == code }, supplierOrder)
	if err != nil || len(matches) == 0 {
		return procurement.Supplier{}, false, err
	}
	return matches[0], true, nil
}

func supplierOrder(s procurement.Supplier) (time.Time, string) { return s.CreatedAt, s.ID }

func (d documents) ListSuppliers(ctx context.Context, filter procurement.SupplierFilter) ([]procurement.Supplier, error) {
	return listDocs(ctx, d.src, CollectionSuppliers, filter.Match, supplierOrder)
}

func (d documents) GetPR(ctx context.Context, id string) (procurement.PR, error) {
	return getDoc[procurement.PR](ctx, d.src, CollectionPRs, "pr", id)
}

func (d documents) ListPRs(ctx context.Context, filter procurement.PRFilter) ([]procurement.PR, error) {
	return listDocs(ctx, d.src, CollectionPRs, filter.Match, func(pr procurement.PR) (time.Time, string) { return pr.CreatedAt, pr.ID })
}

func (d documents) GetHandover(ctx context.Context, id string) (procurement.Handover, error) {
	return getDoc[procurement.Handover](ctx, d.src, CollectionHandovers, "handover", id)
}

func (d documents) ListHandovers(ctx context.Context, filter procurement.HandoverFilter) ([]procurement.Handover, error) {
	return listDocs(ctx, d.src, CollectionHandovers, filter.Match, func(h procurement.Handover) (time.Time, string) { return h.CreatedAt, h.ID })
}

func itemOrder(it inventory.Item) (time.Time, string) { return it.CreatedAt, it.ID }

func (d documents) GetItem(ctx context.Context, id string) (inventory.Item, error) {
	return getDoc[inventory.Item](ctx, d.src, CollectionItems, "inventory item", id)
}

func (d documents) FindItem(ctx context.Context, key inventory.Key) (inventory.Item, bool, error) {
	matches, err := listDocs(ctx, d.src, CollectionItems, func(it inventory.Item) bool { return it.Key() == key }, itemOrder)
	if err != nil || len(matches) == 0 {
		return inventory.Item{}, false, err
	}
	return matches[0], true, nil
}

func (d documents) ListItems(ctx context.Context) ([]inventory.Item, error) {
	return listDocs(ctx, d.src, CollectionItems, nil, itemOrder)
}

func (d documents) GetRequest(ctx context.Context, id string) (inventory.SparesRequest, error) {
	return getDoc[inventory.SparesRequest](ctx, d.src, CollectionRequests, "spares request", id)
}

func (d documents) ListRequests(ctx context.Context, filter inventory.RequestFilter) ([]inventory.SparesRequest, error) {
	keep := func(r inventory.SparesRequest) bool {
		if filter.Requester != "" && r.Requester != filter.Requester {
			return false
		}
		return filter.Status == "" || r.Status == filter.Status
	}
	return listDocs(ctx, d.src, CollectionRequests, keep, func(r inventory.SparesRequest) (time.Time, string) { return r.CreatedAt, r.ID })
}

func (d documents) PutProject(ctx context.Context, p procurement.Project) error {
	return putDoc(ctx, d.src, CollectionProjects, p.ID, p)
}

func (d documents) PutSupplier(ctx context.Context, s procurement.Supplier) error {
	return putDoc(ctx, d.src, CollectionSuppliers, s.ID, s)
}

func (d documents) PutPR(ctx context.Context, pr procurement.PR) error {
	for _, a := range pr.Allocations {
		if _, ok := pr.Item(a.ItemID); !ok {
			return shared.Validation("pr %s allocation references unknown item %q", pr.ID, a.ItemID)
		}
	}
	if (pr.AwardedSupplier != "") != (pr.Status == procurement.PRAwarded) {
		return shared.InvalidState("pr %s awarded supplier inconsistent with status %s", pr.ID, pr.Status)
	}
	return putDoc(ctx, d.src, CollectionPRs, pr.ID, pr)
}

func (d documents) PutHandover(ctx context.Context, h procurement.Handover) error {
	return putDoc(ctx, d.src, CollectionHandovers, h.ID, h)
}

func (d documents) PutItem(ctx context.Context, it inventory.Item) error {
	if it.StockLevel < 0 || it.Quantity < 0 || it.MinStockLevel < 0 {
		return shared.Validation("inventory item %s has negative quantities", it.ID)
	}
	return putDoc(ctx, d.src, CollectionItems, it.ID, it)
}

func (d documents) PutRequest(ctx context.Context, r inventory.SparesRequest) error {
	if r.QuantityFulfilled > r.QuantityRequested {
		return shared.Validation("spares request %s over-fulfilled", r.ID)
	}
	return putDoc(ctx, d.src, CollectionRequests, r.ID, r)
}

// inventoryPort narrows a procurement repository to the inventory service's port.
type inventoryPort struct {
	procurement.RepositoryPort
}

// InventoryPort adapts repo for the inventory service; both share one transaction model.
func InventoryPort(repo procurement.RepositoryPort) inventory.RepositoryPort {
	return inventoryPort{RepositoryPort: repo}
}

func (p inventoryPort) WithTx(ctx context.Context, fn func(context.Context, inventory.TxRepository) error) error {
	return p.RepositoryPort.WithTx(ctx, func(ctx context.Context, tx procurement.TxRepository) error {
		return fn(ctx, tx)
	})
}
