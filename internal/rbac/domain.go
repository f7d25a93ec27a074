package rbac

import (
	"strings"

	"golang.org/x/text/cases"
)

// Role is one of the five workflow roles.
type Role string

const (
	RoleApprover    Role = "Approver"
	RoleNPD         Role = "NPD"
	RoleMaintenance Role = "Maintenance"
	RoleSpares      Role = "Spares"
	RoleIndentor    Role = "Indentor"
)

// Roles lists every known role.
func Roles() []Role {
	return []Role{RoleApprover, RoleNPD, RoleMaintenance, RoleSpares, RoleIndentor}
}

// ParseRole resolves a role label case-insensitively.
func ParseRole(raw string) (Role, bool) {
	fold := cases.Fold()
	key := fold.String(strings.TrimSpace(raw))
	for _, r := range Roles() {
		if fold.String(string(r)) == key {
			return r, true
		}
	}
	return "", false
}

// Actor describes who triggers an operation; supplied by the identity provider.
type Actor struct {
	ID   string
	Role Role
}

// Action names a role-gated trigger.
type Action string

const (
	ActionProjectCreate   Action = "project.create"
	ActionProjectUpdate   Action = "project.update"
	ActionProjectComplete Action = "project.complete"

	ActionSupplierCreate Action = "supplier.create"
	ActionSupplierStatus Action = "supplier.status"

	ActionPRSubmit  Action = "pr.submit"
	ActionPRApprove Action = "pr.approve"
	ActionPRSend    Action = "pr.send"
	ActionPRAward   Action = "pr.award"
	ActionPRReject  Action = "pr.reject"
	ActionPRReorder Action = "pr.reorder"

	ActionQuotationSubmit   Action = "quotation.submit"
	ActionQuotationEvaluate Action = "quotation.evaluate"
	ActionQuotationSelect   Action = "quotation.select"
	ActionQuotationReject   Action = "quotation.reject"

	ActionHandoverApprove Action = "handover.approve"
	ActionHandoverReject  Action = "handover.reject"

	ActionInventoryAdjust Action = "inventory.adjust"

	ActionSparesRequest Action = "spares.request"
	ActionSparesFulfill Action = "spares.fulfill"
	ActionSparesReject  Action = "spares.reject"
)

// Counter names a dashboard counter a role may see.
type Counter string

const (
	CounterProjects                   Counter = "projects"
	CounterPRsPendingApproval         Counter = "prs_pending_approval"
	CounterPRsAwaitingQuotation       Counter = "prs_awaiting_quotation"
	CounterQuotationsAwaitingDecision Counter = "quotations_awaiting_decision"
	CounterHandoversPending           Counter = "handovers_pending_inspection"
	CounterInventoryAlerts            Counter = "inventory_alerts"
	CounterSparesRequestsPending      Counter = "spares_requests_pending"
)
