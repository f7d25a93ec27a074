package procurement

import (
	"context"
	"strings"

	"github.com/toolroom-erp/toolroom/internal/rbac"
	"github.com/toolroom-erp/toolroom/internal/shared"
)

// CreateSupplierInput registers a vendor.
type CreateSupplierInput struct {
	Code          string   `json:"code" validate:"required,max=32"`
	Name          string   `json:"name" validate:"required"`
	ContactPerson string   `json:"contact_person"`
	Email         string   `json:"email" validate:"omitempty,email"`
	Phone         string   `json:"phone"`
	Address       string   `json:"address"`
	Categories    []string `json:"categories"`
	Rating        float64  `json:"rating" validate:"gte=0,lte=5"`
}

// CreateSupplier registers an Active supplier with a unique code.
func (s *Service) CreateSupplier(ctx context.Context, actor rbac.Actor, input CreateSupplierInput) (Supplier, error) {
	if err := s.policy.Authorize(actor, rbac.ActionSupplierCreate); err != nil {
		return Supplier{}, err
	}
	input.Code = strings.ToUpper(strings.TrimSpace(input.Code))
	input.Name = strings.TrimSpace(input.Name)
	if err := shared.ValidateStruct(input); err != nil {
		return Supplier{}, err
	}
	now := s.clock.Now()
	sup := Supplier{
		ID:            s.newID(),
		Code:          input.Code,
		Name:          input.Name,
		ContactPerson: input.ContactPerson,
		Email:         input.Email,
		Phone:         input.Phone,
		Address:       input.Address,
		Status:        SupplierActive,
		Categories:    append([]string{}, input.Categories...),
		Rating:        input.Rating,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err := s.mutate(ctx, []string{"supplier_code:" + sup.Code}, func(ctx context.Context, tx TxRepository) error {
		_, exists, err := tx.FindSupplierByCode(ctx, sup.Code)
		if err != nil {
			return err
		}
		if exists {
			return shared.Validation("supplier code %s already registered", sup.Code)
		}
		return tx.PutSupplier(ctx, sup)
	})
	if err != nil {
		return Supplier{}, err
	}
	s.observer.ObserveTransition("supplier", string(sup.Status))
	return sup, nil
}

// SetSupplierStatus activates or deactivates a supplier. Existing PRs keep their candidates.
func (s *Service) SetSupplierStatus(ctx context.Context, actor rbac.Actor, id string, status SupplierStatus) (Supplier, error) {
	if err := s.policy.Authorize(actor, rbac.ActionSupplierStatus); err != nil {
		return Supplier{}, err
	}
	if status != SupplierActive && status != SupplierInactive {
		return Supplier{}, shared.Validation("unknown supplier status %q", status)
	}
	var out Supplier
	err := s.mutate(ctx, []string{Supplier{ID: id}.LockKey()}, func(ctx context.Context, tx TxRepository) error {
		sup, err := tx.GetSupplier(ctx, id)
		if err != nil {
			return err
		}
		if sup.Status == status {
			return shared.InvalidState("supplier %s is already %s", sup.Code, status)
		}
		sup.Status = status
		sup.UpdatedAt = s.clock.Now()
		out = sup
		return tx.PutSupplier(ctx, sup)
	})
	if err != nil {
		return Supplier{}, err
	}
	s.observer.ObserveTransition("supplier", string(out.Status))
	return out, nil
}

// GetSupplier returns one supplier.
func (s *Service) GetSupplier(ctx context.Context, id string) (Supplier, error) {
	return s.repo.GetSupplier(ctx, id)
}

// ListSuppliers returns suppliers matching filter.
func (s *Service) ListSuppliers(ctx context.Context, filter SupplierFilter) ([]Supplier, error) {
	return s.repo.ListSuppliers(ctx, filter)
}
