package procurement

import (
	"context"
	"strings"

	"github.com/toolroom-erp/toolroom/internal/inventory"
	"github.com/toolroom-erp/toolroom/internal/rbac"
)

// ApproveHandover accepts inspected tooling; critical spares enter inventory and
// the PR's allocations are resolved in the same transaction.
func (s *Service) ApproveHandover(ctx context.Context, actor rbac.Actor, id, remarks string) (HandoverEffect, error) {
	if err := s.policy.Authorize(actor, rbac.ActionHandoverApprove); err != nil {
		return HandoverEffect{}, err
	}
	current, err := s.repo.GetHandover(ctx, id)
	if err != nil {
		return HandoverEffect{}, err
	}
	keys := []string{current.LockKey(), PR{ID: current.PRID}.LockKey()}
	for _, spare := range current.CriticalSpares {
		keys = append(keys, inventory.Key{PartNumber: spare.PartNumber, ToolNumber: spare.ToolNumber, Name: spare.Name}.LockKey())
	}

	var effect HandoverEffect
	err = s.mutate(ctx, keys, func(ctx context.Context, tx TxRepository) error {
		h, err := tx.GetHandover(ctx, id)
		if err != nil {
			return err
		}
		pr, err := tx.GetPR(ctx, h.PRID)
		if err != nil {
			return err
		}
		existing := make(map[inventory.Key]inventory.Item, len(h.CriticalSpares))
		for _, spare := range h.CriticalSpares {
			key := inventory.Key{PartNumber: spare.PartNumber, ToolNumber: spare.ToolNumber, Name: spare.Name}
			item, ok, err := tx.FindItem(ctx, key)
			if err != nil {
				return err
			}
			if ok {
				existing[key] = item
			}
		}
		effect, err = ApproveHandover(h, pr, actor.ID, strings.TrimSpace(remarks), existing, s.cfg.MinStockPolicy, s.newID, s.clock.Now())
		if err != nil {
			return err
		}
		for _, item := range effect.Inventory {
			if err := tx.PutItem(ctx, item); err != nil {
				return err
			}
		}
		if effect.PR != nil {
			if err := tx.PutPR(ctx, *effect.PR); err != nil {
				return err
			}
		}
		return tx.PutHandover(ctx, effect.Handover)
	})
	if err != nil {
		return HandoverEffect{}, err
	}
	s.observer.ObserveTransition("handover", string(effect.Handover.Status))
	for _, item := range effect.Inventory {
		s.observer.ObserveTransition("inventory_item", string(item.Status()))
	}
	return effect, nil
}

// RejectHandover refuses inspected tooling with a remark.
func (s *Service) RejectHandover(ctx context.Context, actor rbac.Actor, id, remarks string) (HandoverEffect, error) {
	if err := s.policy.Authorize(actor, rbac.ActionHandoverReject); err != nil {
		return HandoverEffect{}, err
	}
	var effect HandoverEffect
	err := s.mutate(ctx, []string{Handover{ID: id}.LockKey()}, func(ctx context.Context, tx TxRepository) error {
		h, err := tx.GetHandover(ctx, id)
		if err != nil {
			return err
		}
		effect, err = RejectHandover(h, actor.ID, strings.TrimSpace(remarks), s.clock.Now())
		if err != nil {
			return err
		}
		return tx.PutHandover(ctx, effect.Handover)
	})
	if err != nil {
		return HandoverEffect{}, err
	}
	s.observer.ObserveTransition("handover", string(effect.Handover.Status))
	return effect, nil
}

// GetHandover returns one handover record.
func (s *Service) GetHandover(ctx context.Context, id string) (Handover, error) {
	return s.repo.GetHandover(ctx, id)
}

// ListHandovers returns handovers matching filter.
func (s *Service) ListHandovers(ctx context.Context, filter HandoverFilter) ([]Handover, error) {
	return s.repo.ListHandovers(ctx, filter)
}
