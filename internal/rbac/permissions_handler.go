package rbac

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/toolroom-erp/toolroom/internal/platform/httpx"
)

// PermissionsHandler reports what the acting role may do.
type PermissionsHandler struct {
	policy *Policy
	rbac   Middleware
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(policy *Policy, rbac Middleware) *PermissionsHandler {
	return &PermissionsHandler{policy: policy, rbac: rbac}
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequireActor).Get("/", h.listPermissions)
}

// Permissions is the role summary returned to clients.
type Permissions struct {
	ActorID  string    `json:"actor_id"`
	Role     Role      `json:"role"`
	Actions  []Action  `json:"actions"`
	Counters []Counter `json:"counters"`
}

func (h *PermissionsHandler) listPermissions(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	httpx.JSON(w, http.StatusOK, Permissions{
		ActorID:  actor.ID,
		Role:     actor.Role,
		Actions:  h.policy.ActionsFor(actor.Role),
		Counters: h.policy.CountersFor(actor.Role),
	})
}
