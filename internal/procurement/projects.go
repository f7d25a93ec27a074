package procurement

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/toolroom-erp/toolroom/internal/rbac"
	"github.com/toolroom-erp/toolroom/internal/shared"
)

// CreateProjectInput opens a project for a customer order.
type CreateProjectInput struct {
	CustomerPO string          `json:"customer_po" validate:"required"`
	PartNumber string          `json:"part_number" validate:"required"`
	ToolNumber string          `json:"tool_number" validate:"required"`
	Price      decimal.Decimal `json:"price"`
	TargetDate time.Time       `json:"target_date"`
}

// CreateProject opens an Active project.
func (s *Service) CreateProject(ctx context.Context, actor rbac.Actor, input CreateProjectInput) (Project, error) {
	if err := s.policy.Authorize(actor, rbac.ActionProjectCreate); err != nil {
		return Project{}, err
	}
	input.CustomerPO = strings.TrimSpace(input.CustomerPO)
	input.PartNumber = strings.TrimSpace(input.PartNumber)
	input.ToolNumber = strings.TrimSpace(input.ToolNumber)
	if err := shared.ValidateStruct(input); err != nil {
		return Project{}, err
	}
	if input.Price.IsNegative() {
		return Project{}, shared.Validation("project price must not be negative")
	}
	now := s.clock.Now()
	p := Project{
		ID:         s.newID(),
		CustomerPO: input.CustomerPO,
		PartNumber: input.PartNumber,
		ToolNumber: input.ToolNumber,
		Price:      input.Price,
		TargetDate: input.TargetDate,
		Status:     ProjectActive,
		CreatedBy:  actor.ID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.PutProject(ctx, p)
	})
	if err != nil {
		return Project{}, err
	}
	s.observer.ObserveTransition("project", string(p.Status))
	return p, nil
}

// UpdateProjectInput patches project fields; nil leaves a field unchanged.
type UpdateProjectInput struct {
	CustomerPO *string          `json:"customer_po"`
	PartNumber *string          `json:"part_number"`
	ToolNumber *string          `json:"tool_number"`
	Price      *decimal.Decimal `json:"price"`
	TargetDate *time.Time       `json:"target_date"`
}

// UpdateProject edits an Active project. Part and tool numbers are frozen once a PR references the project.
func (s *Service) UpdateProject(ctx context.Context, actor rbac.Actor, id string, input UpdateProjectInput) (Project, error) {
	if err := s.policy.Authorize(actor, rbac.ActionProjectUpdate); err != nil {
		return Project{}, err
	}
	var out Project
	err := s.mutate(ctx, []string{Project{ID: id}.LockKey()}, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.GetProject(ctx, id)
		if err != nil {
			return err
		}
		if p.Status != ProjectActive {
			return shared.InvalidState("project %s is %s", p.ID, p.Status)
		}
		renumber := (input.PartNumber != nil && strings.TrimSpace(*input.PartNumber) != p.PartNumber) ||
			(input.ToolNumber != nil && strings.TrimSpace(*input.ToolNumber) != p.ToolNumber)
		if renumber {
			prs, err := tx.ListPRs(ctx, PRFilter{ProjectID: p.ID})
			if err != nil {
				return err
			}
			if len(prs) > 0 {
				return shared.InvalidState("project %s part and tool numbers are fixed once prs exist", p.ID)
			}
		}
		if input.CustomerPO != nil {
			p.CustomerPO = strings.TrimSpace(*input.CustomerPO)
		}
		if input.PartNumber != nil {
			p.PartNumber = strings.TrimSpace(*input.PartNumber)
		}
		if input.ToolNumber != nil {
			p.ToolNumber = strings.TrimSpace(*input.ToolNumber)
		}
		if input.Price != nil {
			if input.Price.IsNegative() {
				return shared.Validation("project price must not be negative")
			}
			p.Price = *input.Price
		}
		if input.TargetDate != nil {
			p.TargetDate = *input.TargetDate
		}
		if p.CustomerPO == "" || p.PartNumber == "" || p.ToolNumber == "" {
			return shared.Validation("customer po, part number and tool number are required")
		}
		p.UpdatedAt = s.clock.Now()
		out = p
		return tx.PutProject(ctx, p)
	})
	if err != nil {
		return Project{}, err
	}
	return out, nil
}

// CompleteProject marks a project Completed once every PR is Awarded or Rejected.
func (s *Service) CompleteProject(ctx context.Context, actor rbac.Actor, id string) (Project, error) {
	if err := s.policy.Authorize(actor, rbac.ActionProjectComplete); err != nil {
		return Project{}, err
	}
	var out Project
	err := s.mutate(ctx, []string{Project{ID: id}.LockKey()}, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.GetProject(ctx, id)
		if err != nil {
			return err
		}
		prs, err := tx.ListPRs(ctx, PRFilter{ProjectID: id})
		if err != nil {
			return err
		}
		out, err = CompleteProject(p, prs, s.clock.Now())
		if err != nil {
			return err
		}
		return tx.PutProject(ctx, out)
	})
	if err != nil {
		return Project{}, err
	}
	s.observer.ObserveTransition("project", string(out.Status))
	return out, nil
}

// GetProject returns one project.
func (s *Service) GetProject(ctx context.Context, id string) (Project, error) {
	return s.repo.GetProject(ctx, id)
}

// ListProjects returns projects matching filter.
func (s *Service) ListProjects(ctx context.Context, filter ProjectFilter) ([]Project, error) {
	return s.repo.ListProjects(ctx, filter)
}
