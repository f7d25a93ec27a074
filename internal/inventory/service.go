package inventory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/toolroom-erp/toolroom/internal/platform/lock"
	"github.com/toolroom-erp/toolroom/internal/rbac"
	"github.com/toolroom-erp/toolroom/internal/shared"
)

// Reader exposes inventory lookups.
type Reader interface {
	GetItem(ctx context.Context, id string) (Item, error)
	FindItem(ctx context.Context, key Key) (Item, bool, error)
	ListItems(ctx context.Context) ([]Item, error)
	GetRequest(ctx context.Context, id string) (SparesRequest, error)
	ListRequests(ctx context.Context, filter RequestFilter) ([]SparesRequest, error)
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	Reader
	PutItem(ctx context.Context, item Item) error
	PutRequest(ctx context.Context, req SparesRequest) error
}

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	Reader
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	MinStockPolicy MinStockPolicy
}

// Service coordinates spares requests and stock thresholds.
type Service struct {
	repo     RepositoryPort
	locker   lock.Locker
	policy   *rbac.Policy
	clock    shared.Clock
	observer shared.TransitionObserver
	cfg      ServiceConfig
	newID    func() string
}

// NewService builds Service. Nil collaborators fall back to in-process defaults.
func NewService(repo RepositoryPort, locker lock.Locker, policy *rbac.Policy, clock shared.Clock, observer shared.TransitionObserver, cfg ServiceConfig) *Service {
	if locker == nil {
		locker = lock.NewLocal()
	}
	if policy == nil {
		policy = rbac.DefaultPolicy()
	}
	if clock == nil {
		clock = shared.NewMonotonicClock(nil)
	}
	if observer == nil {
		observer = shared.NopObserver{}
	}
	if cfg.MinStockPolicy == "" {
		cfg.MinStockPolicy = MinStockDelivered
	}
	return &Service{repo: repo, locker: locker, policy: policy, clock: clock, observer: observer, cfg: cfg, newID: uuid.NewString}
}

// MinStockPolicy reports the configured threshold policy for newly received items.
func (s *Service) MinStockPolicy() MinStockPolicy {
	return s.cfg.MinStockPolicy
}

// CreateRequestInput captures an indentor's draw.
type CreateRequestInput struct {
	ItemName   string `json:"item_name" validate:"required"`
	PartNumber string `json:"part_number"`
	ToolNumber string `json:"tool_number"`
	Quantity   int    `json:"quantity" validate:"gt=0"`
}

// CreateRequest raises a Pending spares request for the acting indentor.
func (s *Service) CreateRequest(ctx context.Context, actor rbac.Actor, input CreateRequestInput) (SparesRequest, error) {
	if err := s.policy.Authorize(actor, rbac.ActionSparesRequest); err != nil {
		return SparesRequest{}, err
	}
	input.ItemName = strings.TrimSpace(input.ItemName)
	if err := shared.ValidateStruct(input); err != nil {
		return SparesRequest{}, err
	}
	if actor.ID == "" {
		return SparesRequest{}, shared.Validation("requester identity required")
	}
	now := s.clock.Now()
	req := SparesRequest{
		ID:                s.newID(),
		Requester:         actor.ID,
		ItemName:          input.ItemName,
		PartNumber:        strings.TrimSpace(input.PartNumber),
		ToolNumber:        strings.TrimSpace(input.ToolNumber),
		QuantityRequested: input.Quantity,
		Status:            RequestPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.PutRequest(ctx, req)
	})
	if err != nil {
		return SparesRequest{}, err
	}
	s.observer.ObserveTransition("spares_request", string(req.Status))
	return req, nil
}

// FulfillRequest issues qty from stock against a pending request.
func (s *Service) FulfillRequest(ctx context.Context, actor rbac.Actor, id string, qty int) (FulfillEffect, error) {
	if err := s.policy.Authorize(actor, rbac.ActionSparesFulfill); err != nil {
		return FulfillEffect{}, err
	}
	if qty <= 0 {
		return FulfillEffect{}, shared.Validation("fulfill quantity must be positive, got %d", qty)
	}
	current, err := s.repo.GetRequest(ctx, id)
	if err != nil {
		return FulfillEffect{}, err
	}
	release, err := s.locker.Acquire(ctx, current.LockKey(), current.Key().LockKey())
	if err != nil {
		return FulfillEffect{}, fmt.Errorf("inventory: lock request %s: %w", id, err)
	}
	defer release()

	var effect FulfillEffect
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		req, err := tx.GetRequest(ctx, id)
		if err != nil {
			return err
		}
		if req.Status.Terminal() {
			return shared.InvalidState("spares request %s is already %s", req.ID, req.Status)
		}
		item, ok, err := tx.FindItem(ctx, req.Key())
		if err != nil {
			return err
		}
		if !ok {
			return shared.InsufficientStock("no inventory for %s (part %q, tool %q)", req.ItemName, req.PartNumber, req.ToolNumber)
		}
		effect, err = Fulfill(req, item, qty, s.clock.Now())
		if err != nil {
			return err
		}
		if err := tx.PutItem(ctx, effect.Item); err != nil {
			return err
		}
		return tx.PutRequest(ctx, effect.Request)
	})
	if err != nil {
		return FulfillEffect{}, err
	}
	s.observer.ObserveTransition("spares_request", string(effect.Request.Status))
	return effect, nil
}

// RejectRequest closes a pending request without touching stock.
func (s *Service) RejectRequest(ctx context.Context, actor rbac.Actor, id, reason string) (SparesRequest, error) {
	if err := s.policy.Authorize(actor, rbac.ActionSparesReject); err != nil {
		return SparesRequest{}, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return SparesRequest{}, shared.Validation("rejection reason required")
	}
	release, err := s.locker.Acquire(ctx, SparesRequest{ID: id}.LockKey())
	if err != nil {
		return SparesRequest{}, fmt.Errorf("inventory: lock request %s: %w", id, err)
	}
	defer release()

	var req SparesRequest
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		req, err = tx.GetRequest(ctx, id)
		if err != nil {
			return err
		}
		if req.Status.Terminal() {
			return shared.InvalidState("spares request %s is already %s", req.ID, req.Status)
		}
		req.Status = RequestRejected
		req.RejectionReason = reason
		req.UpdatedAt = s.clock.Now()
		return tx.PutRequest(ctx, req)
	})
	if err != nil {
		return SparesRequest{}, err
	}
	s.observer.ObserveTransition("spares_request", string(req.Status))
	return req, nil
}

// AdjustMinStock changes the reorder threshold of an item; status follows.
func (s *Service) AdjustMinStock(ctx context.Context, actor rbac.Actor, id string, minStock int) (Item, error) {
	if err := s.policy.Authorize(actor, rbac.ActionInventoryAdjust); err != nil {
		return Item{}, err
	}
	if minStock < 0 {
		return Item{}, shared.Validation("min stock level must not be negative, got %d", minStock)
	}
	current, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return Item{}, err
	}
	release, err := s.locker.Acquire(ctx, current.Key().LockKey())
	if err != nil {
		return Item{}, fmt.Errorf("inventory: lock item %s: %w", id, err)
	}
	defer release()

	var item Item
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		item, err = tx.GetItem(ctx, id)
		if err != nil {
			return err
		}
		item.MinStockLevel = minStock
		item.UpdatedAt = s.clock.Now()
		return tx.PutItem(ctx, item)
	})
	if err != nil {
		return Item{}, err
	}
	s.observer.ObserveTransition("inventory_item", string(item.Status()))
	return item, nil
}

// GetItem returns one inventory line.
func (s *Service) GetItem(ctx context.Context, id string) (Item, error) {
	return s.repo.GetItem(ctx, id)
}

// ListItems returns inventory lines, optionally only those with the given status.
func (s *Service) ListItems(ctx context.Context, status Status) ([]Item, error) {
	items, err := s.repo.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	if status == "" {
		return items, nil
	}
	var out []Item
	for _, it := range items {
		if it.Status() == status {
			out = append(out, it)
		}
	}
	return out, nil
}

// GetRequest returns one spares request.
func (s *Service) GetRequest(ctx context.Context, id string) (SparesRequest, error) {
	return s.repo.GetRequest(ctx, id)
}

// ListRequests returns spares requests matching filter.
func (s *Service) ListRequests(ctx context.Context, filter RequestFilter) ([]SparesRequest, error) {
	return s.repo.ListRequests(ctx, filter)
}

// LowStock lists items in Low Stock or Out of Stock.
func (s *Service) LowStock(ctx context.Context) ([]Item, error) {
	items, err := s.repo.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	return LowStock(items), nil
}

// ReorderSuggestions proposes replenishment quantities for items needing attention.
func (s *Service) ReorderSuggestions(ctx context.Context) ([]ReorderSuggestion, error) {
	items, err := s.repo.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	return Suggest(items), nil
}

// LowStock filters items needing attention, ordered by name.
func LowStock(items []Item) []Item {
	var out []Item
	for _, it := range items {
		if it.NeedsAttention() {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Suggest computes reorder suggestions, largest shortfall first.
func Suggest(items []Item) []ReorderSuggestion {
	low := LowStock(items)
	out := make([]ReorderSuggestion, 0, len(low))
	for _, it := range low {
		out = append(out, ReorderSuggestion{Item: it, Shortfall: Shortfall(it)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Shortfall > out[j].Shortfall })
	return out
}
