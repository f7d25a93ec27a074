package inventory

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/toolroom-erp/toolroom/internal/platform/httpx"
	"github.com/toolroom-erp/toolroom/internal/rbac"
	"github.com/toolroom-erp/toolroom/internal/shared"
)

// Handler wires HTTP endpoints for inventory and spares requests.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/inventory", func(r chi.Router) {
		r.Get("/", h.listItems)
		r.Get("/low-stock", h.lowStock)
		r.Get("/reorder-suggestions", h.reorderSuggestions)
		r.Get("/{id}", h.getItem)
		r.With(h.rbac.RequireAny(rbac.ActionInventoryAdjust)).Post("/{id}/min-stock", h.adjustMinStock)
	})
	r.Route("/spares-requests", func(r chi.Router) {
		r.Get("/", h.listRequests)
		r.Get("/{id}", h.getRequest)
		r.With(h.rbac.RequireAny(rbac.ActionSparesRequest)).Post("/", h.createRequest)
		r.With(h.rbac.RequireAny(rbac.ActionSparesFulfill)).Post("/{id}/fulfill", h.fulfill)
		r.With(h.rbac.RequireAny(rbac.ActionSparesReject)).Post("/{id}/reject", h.reject)
	})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if shared.KindOf(err) == "" {
		h.logger.Error("inventory request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func actor(r *http.Request) rbac.Actor {
	a, _ := rbac.ActorFromContext(r.Context())
	return a
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListItems(r.Context(), Status(strings.TrimSpace(r.URL.Query().Get("status"))))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSONPage(w, r, items)
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.LowStock(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSONPage(w, r, items)
}

func (h *Handler) reorderSuggestions(w http.ResponseWriter, r *http.Request) {
	suggestions, err := h.service.ReorderSuggestions(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSONPage(w, r, suggestions)
}

func (h *Handler) getItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.GetItem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

type minStockRequest struct {
	MinStockLevel int `json:"min_stock_level"`
}

func (h *Handler) adjustMinStock(w http.ResponseWriter, r *http.Request) {
	var body minStockRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	item, err := h.service.AdjustMinStock(r.Context(), actor(r), chi.URLParam(r, "id"), body.MinStockLevel)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) listRequests(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := RequestFilter{
		Requester: strings.TrimSpace(q.Get("requester")),
		Status:    RequestStatus(strings.TrimSpace(q.Get("status"))),
	}
	reqs, err := h.service.ListRequests(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSONPage(w, r, reqs)
}

func (h *Handler) getRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.service.GetRequest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

func (h *Handler) createRequest(w http.ResponseWriter, r *http.Request) {
	var input CreateRequestInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		h.fail(w, r, err)
		return
	}
	req, err := h.service.CreateRequest(r.Context(), actor(r), input)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, req)
}

type fulfillRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) fulfill(w http.ResponseWriter, r *http.Request) {
	var body fulfillRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	effect, err := h.service.FulfillRequest(r.Context(), actor(r), chi.URLParam(r, "id"), body.Quantity)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, effect)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	var body rejectRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	req, err := h.service.RejectRequest(r.Context(), actor(r), chi.URLParam(r, "id"), body.Reason)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}
