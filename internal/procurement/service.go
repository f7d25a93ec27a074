package procurement

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/toolroom-erp/toolroom/internal/inventory"
	"github.com/toolroom-erp/toolroom/internal/platform/lock"
	"github.com/toolroom-erp/toolroom/internal/rbac"
	"github.com/toolroom-erp/toolroom/internal/shared"
)

// Reader exposes procurement lookups.
type Reader interface {
	GetProject(ctx context.Context, id string) (Project, error)
	ListProjects(ctx context.Context, filter ProjectFilter) ([]Project, error)
	GetSupplier(ctx context.Context, id string) (Supplier, error)
	FindSupplierByCode(ctx context.Context, code string) (Supplier, bool, error)
	ListSuppliers(ctx context.Context, filter SupplierFilter) ([]Supplier, error)
	GetPR(ctx context.Context, id string) (PR, error)
	ListPRs(ctx context.Context, filter PRFilter) ([]PR, error)
	GetHandover(ctx context.Context, id string) (Handover, error)
	ListHandovers(ctx context.Context, filter HandoverFilter) ([]Handover, error)
}

// TxRepository exposes transactional operations used by service. Handover approval
// writes inventory in the same transaction, so inventory operations are included.
type TxRepository interface {
	Reader
	inventory.TxRepository
	PutProject(ctx context.Context, p Project) error
	PutSupplier(ctx context.Context, s Supplier) error
	PutPR(ctx context.Context, pr PR) error
	PutHandover(ctx context.Context, h Handover) error
}

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	Reader
	inventory.Reader
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	MinStockPolicy inventory.MinStockPolicy
}

// Service orchestrates the procurement workflow.
type Service struct {
	repo     RepositoryPort
	locker   lock.Locker
	policy   *rbac.Policy
	clock    shared.Clock
	observer shared.TransitionObserver
	cfg      ServiceConfig
	newID    func() string
}

// NewService constructs procurement service. Nil collaborators fall back to in-process defaults.
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
		cfg.MinStockPolicy = inventory.MinStockDelivered
	}
	return &Service{repo: repo, locker: locker, policy: policy, clock: clock, observer: observer, cfg: cfg, newID: uuid.NewString}
}

// Policy exposes the role policy used for gating.
func (s *Service) Policy() *rbac.Policy {
	return s.policy
}

// mutate serialises on keys and runs fn in one store transaction.
func (s *Service) mutate(ctx context.Context, keys []string, fn func(context.Context, TxRepository) error) error {
	release, err := s.locker.Acquire(ctx, keys...)
	if err != nil {
		return fmt.Errorf("procurement: lock %s: %w", strings.Join(keys, ","), err)
	}
	defer release()
	return s.repo.WithTx(ctx, fn)
}

// SubmitPRInput describes a new purchase requisition.
type SubmitPRInput struct {
	ProjectID          string            `json:"project_id" validate:"required"`
	Type               string            `json:"type" validate:"required"`
	Items              []PRItemInput     `json:"items" validate:"required,min=1,dive"`
	CandidateSuppliers []string          `json:"candidate_suppliers" validate:"required,min=1,dive,required"`
	Allocations        []AllocationInput `json:"allocations" validate:"dive"`
}

// PRItemInput describes one requested line. ID is optional and lets callers
// reference the item from allocations.
type PRItemInput struct {
	ID            string          `json:"id"`
	Name          string          `json:"name" validate:"required"`
	Specification string          `json:"specification"`
	Quantity      int             `json:"quantity" validate:"gt=0"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Requirements  string          `json:"requirements"`
	CriticalSpare bool            `json:"critical_spare"`
	PartNumber    string          `json:"part_number"`
	ToolNumber    string          `json:"tool_number"`
}

// AllocationInput earmarks part of an item as a critical spare.
type AllocationInput struct {
	ItemID   string `json:"item_id" validate:"required"`
	Quantity int    `json:"quantity" validate:"gt=0"`
}

// SubmitPR creates a PR in Submitted for Approval.
func (s *Service) SubmitPR(ctx context.Context, actor rbac.Actor, input SubmitPRInput) (PR, error) {
	if err := s.policy.Authorize(actor, rbac.ActionPRSubmit); err != nil {
		return PR{}, err
	}
	return s.submitPR(ctx, actor, input)
}

func (s *Service) submitPR(ctx context.Context, actor rbac.Actor, input SubmitPRInput) (PR, error) {
	if err := shared.ValidateStruct(input); err != nil {
		return PR{}, err
	}
	prType, ok := ParsePRType(input.Type)
	if !ok {
		return PR{}, shared.Validation("unknown pr type %q", input.Type)
	}
	pr, err := s.buildPR(input, prType, actor)
	if err != nil {
		return PR{}, err
	}
	err = s.mutate(ctx, []string{Project{ID: input.ProjectID}.LockKey()}, func(ctx context.Context, tx TxRepository) error {
		project, err := tx.GetProject(ctx, input.ProjectID)
		if err != nil {
			return err
		}
		if project.Status != ProjectActive {
			return shared.InvalidState("project %s is %s", project.ID, project.Status)
		}
		for _, id := range pr.CandidateSuppliers {
			sup, err := tx.GetSupplier(ctx, id)
			if err != nil {
				return shared.Validation("candidate supplier %q does not exist", id)
			}
			if sup.Status != SupplierActive {
				return shared.Validation("candidate supplier %s is %s", sup.Code, sup.Status)
			}
		}
		return tx.PutPR(ctx, pr)
	})
	if err != nil {
		return PR{}, err
	}
	s.observer.ObserveTransition("pr", string(pr.Status))
	return pr, nil
}

func (s *Service) buildPR(input SubmitPRInput, prType PRType, actor rbac.Actor) (PR, error) {
	now := s.clock.Now()
	pr := PR{
		ID:        s.newID(),
		ProjectID: input.ProjectID,
		Type:      prType,
		Status:    PRSubmitted,
		CreatedBy: actor.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	ids := make(map[string]int, len(input.Items))
	for _, in := range input.Items {
		if in.UnitPrice.IsNegative() {
			return PR{}, shared.Validation("item %q has a negative unit price", in.Name)
		}
		id := strings.TrimSpace(in.ID)
		if id == "" {
			id = s.newID()
		}
		if _, dup := ids[id]; dup {
			return PR{}, shared.Validation("duplicate item id %q", id)
		}
		ids[id] = len(pr.Items)
		pr.Items = append(pr.Items, PRItem{
			ID:            id,
			Name:          strings.TrimSpace(in.Name),
			Specification: in.Specification,
			Quantity:      in.Quantity,
			UnitPrice:     in.UnitPrice,
			Requirements:  in.Requirements,
			CriticalSpare: in.CriticalSpare,
			PartNumber:    strings.TrimSpace(in.PartNumber),
			ToolNumber:    strings.TrimSpace(in.ToolNumber),
		})
	}
	seen := make(map[string]struct{}, len(input.CandidateSuppliers))
	for _, id := range input.CandidateSuppliers {
		id = strings.TrimSpace(id)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		pr.CandidateSuppliers = append(pr.CandidateSuppliers, id)
	}
	allocated := make(map[string]bool)
	for _, a := range input.Allocations {
		idx, ok := ids[a.ItemID]
		if !ok {
			return PR{}, shared.Validation("allocation references unknown item %q", a.ItemID)
		}
		if allocated[a.ItemID] {
			return PR{}, shared.Validation("item %q allocated twice", a.ItemID)
		}
		if a.Quantity > pr.Items[idx].Quantity {
			return PR{}, shared.Validation("allocation %d exceeds item %q quantity %d", a.Quantity, a.ItemID, pr.Items[idx].Quantity)
		}
		allocated[a.ItemID] = true
		pr.Items[idx].CriticalSpare = true
		pr.Allocations = append(pr.Allocations, CriticalSpareAllocation{ItemID: a.ItemID, Quantity: a.Quantity})
	}
	for _, it := range pr.Items {
		if it.CriticalSpare && !allocated[it.ID] {
			pr.Allocations = append(pr.Allocations, CriticalSpareAllocation{ItemID: it.ID, Quantity: it.Quantity})
		}
	}
	return pr, nil
}

// transitionPR applies a pure PR transition under the PR lock.
func (s *Service) transitionPR(ctx context.Context, id string, fn func(PR) (PR, error)) (PR, error) {
	var (
		out  PR
		from PRStatus
	)
	err := s.mutate(ctx, []string{PR{ID: id}.LockKey()}, func(ctx context.Context, tx TxRepository) error {
		pr, err := tx.GetPR(ctx, id)
		if err != nil {
			return err
		}
		from = pr.Status
		out, err = fn(pr)
		if err != nil {
			return err
		}
		return tx.PutPR(ctx, out)
	})
	if err != nil {
		return PR{}, err
	}
	if out.Status != from {
		s.observer.ObserveTransition("pr", string(out.Status))
	}
	return out, nil
}

// ApprovePR approves a submitted PR.
func (s *Service) ApprovePR(ctx context.Context, actor rbac.Actor, id, comments string) (PR, error) {
	if err := s.policy.Authorize(actor, rbac.ActionPRApprove); err != nil {
		return PR{}, err
	}
	return s.transitionPR(ctx, id, func(pr PR) (PR, error) {
		return ApprovePR(pr, strings.TrimSpace(comments), s.clock.Now())
	})
}

// SendPR releases an approved PR to suppliers.
func (s *Service) SendPR(ctx context.Context, actor rbac.Actor, id string) (PR, error) {
	if err := s.policy.Authorize(actor, rbac.ActionPRSend); err != nil {
		return PR{}, err
	}
	return s.transitionPR(ctx, id, func(pr PR) (PR, error) {
		return SendPR(pr, s.clock.Now())
	})
}

// RejectPR closes a PR without award.
func (s *Service) RejectPR(ctx context.Context, actor rbac.Actor, id, reason string) (PR, error) {
	if err := s.policy.Authorize(actor, rbac.ActionPRReject); err != nil {
		return PR{}, err
	}
	return s.transitionPR(ctx, id, func(pr PR) (PR, error) {
		return RejectPR(pr, strings.TrimSpace(reason), s.clock.Now())
	})
}

// AwardPR awards the PR to its selected quotation, creating the handover and
// crediting the winning supplier in one transaction.
func (s *Service) AwardPR(ctx context.Context, actor rbac.Actor, id string) (AwardEffect, error) {
	if err := s.policy.Authorize(actor, rbac.ActionPRAward); err != nil {
		return AwardEffect{}, err
	}
	current, err := s.repo.GetPR(ctx, id)
	if err != nil {
		return AwardEffect{}, err
	}
	keys := []string{current.LockKey()}
	var winner string
	if sel := current.Selected(); len(sel) == 1 {
		winner = sel[0].SupplierID
		keys = append(keys, Supplier{ID: winner}.LockKey())
	}

	var effect AwardEffect
	err = s.mutate(ctx, keys, func(ctx context.Context, tx TxRepository) error {
		pr, err := tx.GetPR(ctx, id)
		if err != nil {
			return err
		}
		sel := pr.Selected()
		if pr.Status == PRSentToSupplier && len(sel) == 1 && sel[0].SupplierID != winner {
			return shared.InvalidState("pr %s selection changed during award", pr.ID)
		}
		project, err := tx.GetProject(ctx, pr.ProjectID)
		if err != nil {
			return err
		}
		var supplier Supplier
		if winner != "" {
			if supplier, err = tx.GetSupplier(ctx, winner); err != nil {
				return err
			}
		}
		effect, err = Award(pr, project, supplier, s.newID(), s.clock.Now())
		if err != nil {
			return err
		}
		if err := tx.PutPR(ctx, effect.PR); err != nil {
			return err
		}
		if err := tx.PutHandover(ctx, effect.Handover); err != nil {
			return err
		}
		return tx.PutSupplier(ctx, effect.Supplier)
	})
	if err != nil {
		return AwardEffect{}, err
	}
	s.observer.ObserveTransition("pr", string(effect.PR.Status))
	s.observer.ObserveTransition("handover", string(effect.Handover.Status))
	return effect, nil
}

// GetPR returns one PR.
func (s *Service) GetPR(ctx context.Context, id string) (PR, error) {
	return s.repo.GetPR(ctx, id)
}

// ListPRs returns PRs matching filter.
func (s *Service) ListPRs(ctx context.Context, filter PRFilter) ([]PR, error) {
	return s.repo.ListPRs(ctx, filter)
}
