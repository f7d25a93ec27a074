package procurement

import (
	"fmt"
	"time"

	"github.com/toolroom-erp/toolroom/internal/inventory"
	"github.com/toolroom-erp/toolroom/internal/shared"
)

// AwardEffect is everything one award changes, applied in a single transaction.
type AwardEffect struct {
	PR       PR       `json:"pr"`
	Handover Handover `json:"handover"`
	Supplier Supplier `json:"supplier"`
}

// Award binds the PR to its single Selected quotation and seeds the handover.
// supplier must be the Selected quotation's supplier.
func Award(pr PR, project Project, supplier Supplier, handoverID string, now time.Time) (AwardEffect, error) {
	if pr.Status == PRAwarded {
		return AwardEffect{}, shared.InvalidState("pr %s is already awarded to %s", pr.ID, pr.AwardedSupplier)
	}
	if pr.Status != PRSentToSupplier {
		return AwardEffect{}, shared.InvalidState("pr %s is %s, expected %s", pr.ID, pr.Status, PRSentToSupplier)
	}
	selected := pr.Selected()
	switch len(selected) {
	case 0:
		return AwardEffect{}, shared.InvalidState("pr %s has no selected quotation", pr.ID)
	case 1:
	default:
		return AwardEffect{}, shared.Validation("pr %s has %d selected quotations", pr.ID, len(selected))
	}
	winner := selected[0]
	if winner.SupplierID != supplier.ID {
		return AwardEffect{}, shared.Validation("supplier %s did not submit the selected quotation", supplier.ID)
	}
	if project.ID != pr.ProjectID {
		return AwardEffect{}, shared.Validation("project %s does not own pr %s", project.ID, pr.ID)
	}

	out := pr.Clone()
	out.Status = PRAwarded
	out.AwardedSupplier = supplier.ID
	out.UpdatedAt = now
	out.ClosedAt = &now

	supplier.TotalOrders++
	supplier.UpdatedAt = now
	supplier.Categories = append([]string(nil), supplier.Categories...)

	return AwardEffect{
		PR:       out,
		Supplier: supplier,
		Handover: Handover{
			ID:             handoverID,
			ProjectID:      pr.ProjectID,
			PRID:           pr.ID,
			ToolSet:        toolSetLabel(project, pr),
			Items:          append([]PRItem(nil), pr.Items...),
			CriticalSpares: CriticalSpares(pr, project),
			Status:         HandoverPending,
			CreatedAt:      now,
			UpdatedAt:      now,
		},
	}, nil
}

func toolSetLabel(project Project, pr PR) string {
	if project.ToolNumber == "" {
		return string(pr.Type)
	}
	return fmt.Sprintf("%s %s", project.ToolNumber, pr.Type)
}

// CriticalSpares derives handover descriptors from the PR's unresolved allocations.
// Part and tool numbers come from the item override, else from the project.
func CriticalSpares(pr PR, project Project) []CriticalSpare {
	var out []CriticalSpare
	for _, a := range pr.Allocations {
		if a.Resolved() {
			continue
		}
		item, ok := pr.Item(a.ItemID)
		if !ok {
			continue
		}
		part, tool := item.PartNumber, item.ToolNumber
		if part == "" {
			part = project.PartNumber
		}
		if tool == "" {
			tool = project.ToolNumber
		}
		out = append(out, CriticalSpare{
			ID:         item.ID,
			PartNumber: part,
			ToolNumber: tool,
			Name:       item.Name,
			Quantity:   a.Quantity,
		})
	}
	return out
}

// HandoverEffect is everything one inspection decision changes.
type HandoverEffect struct {
	Handover  Handover         `json:"handover"`
	PR        *PR              `json:"pr,omitempty"`
	Inventory []inventory.Item `json:"inventory"`
}

// ApproveHandover accepts the tooling and upserts inventory for every critical spare.
// existing holds current inventory lines by key; newID mints ids for new lines.
func ApproveHandover(h Handover, pr PR, inspector, remarks string, existing map[inventory.Key]inventory.Item, policy inventory.MinStockPolicy, newID func() string, now time.Time) (HandoverEffect, error) {
	if h.Status.Terminal() {
		return HandoverEffect{}, shared.InvalidState("handover %s is already %s", h.ID, h.Status)
	}
	if pr.ID != h.PRID {
		return HandoverEffect{}, shared.Validation("pr %s does not belong to handover %s", pr.ID, h.ID)
	}
	lines := make(map[inventory.Key]inventory.Item, len(existing))
	for k, v := range existing {
		lines[k] = v
	}
	var order []inventory.Key
	touched := make(map[inventory.Key]bool)
	for _, spare := range h.CriticalSpares {
		key := inventory.Key{PartNumber: spare.PartNumber, ToolNumber: spare.ToolNumber, Name: spare.Name}
		var current *inventory.Item
		if it, ok := lines[key]; ok {
			current = &it
		}
		next, err := inventory.Receive(current, inventory.Receipt{Key: key, Quantity: spare.Quantity}, policy, newID(), now)
		if err != nil {
			return HandoverEffect{}, err
		}
		lines[key] = next
		if !touched[key] {
			touched[key] = true
			order = append(order, key)
		}
	}
	items := make([]inventory.Item, 0, len(order))
	for _, k := range order {
		items = append(items, lines[k])
	}

	out := h
	out.Status = HandoverApproved
	out.Remarks = remarks
	out.InspectedBy = inspector
	out.InspectedAt = &now
	out.UpdatedAt = now

	effect := HandoverEffect{Handover: out, Inventory: items}
	if resolved, changed := resolveAllocations(pr, h, now); changed {
		effect.PR = &resolved
	}
	return effect, nil
}

func resolveAllocations(pr PR, h Handover, now time.Time) (PR, bool) {
	carried := make(map[string]bool, len(h.CriticalSpares))
	for _, s := range h.CriticalSpares {
		carried[s.ID] = true
	}
	out := pr.Clone()
	changed := false
	for i := range out.Allocations {
		a := &out.Allocations[i]
		if a.Resolved() || !carried[a.ItemID] {
			continue
		}
		a.ResolvedAt = &now
		changed = true
	}
	if changed {
		out.UpdatedAt = now
	}
	return out, changed
}

// RejectHandover refuses the tooling; inventory is untouched.
func RejectHandover(h Handover, inspector, remarks string, now time.Time) (HandoverEffect, error) {
	if h.Status.Terminal() {
		return HandoverEffect{}, shared.InvalidState("handover %s is already %s", h.ID, h.Status)
	}
	if remarks == "" {
		return HandoverEffect{}, shared.Validation("rejecting a handover requires a remark")
	}
	out := h
	out.Status = HandoverRejected
	out.Remarks = remarks
	out.InspectedBy = inspector
	out.InspectedAt = &now
	out.UpdatedAt = now
	return HandoverEffect{Handover: out, Inventory: []inventory.Item{}}, nil
}

// CompleteProject closes a project whose PRs are all terminal.
func CompleteProject(project Project, prs []PR, now time.Time) (Project, error) {
	if project.Status == ProjectCompleted {
		return Project{}, shared.InvalidState("project %s is already %s", project.ID, project.Status)
	}
	if len(prs) == 0 {
		return Project{}, shared.InvalidState("project %s has no purchase requisitions", project.ID)
	}
	for _, pr := range prs {
		if !pr.Status.Terminal() {
			return Project{}, shared.InvalidState("project %s has open pr %s (%s)", project.ID, pr.ID, pr.Status)
		}
	}
	project.Status = ProjectCompleted
	project.UpdatedAt = now
	return project, nil
}
