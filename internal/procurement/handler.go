package procurement

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/singleflight"

	"github.com/toolroom-erp/toolroom/internal/platform/httpx"
	"github.com/toolroom-erp/toolroom/internal/rbac"
	"github.com/toolroom-erp/toolroom/internal/shared"
)

// Handler wires HTTP endpoints for projects, suppliers, PRs, quotations, handovers and reports.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
	reports singleflight.Group
}

// NewHandler constructs procurement handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers procurement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/projects", func(r chi.Router) {
		r.Get("/", h.listProjects)
		r.Get("/{id}", h.getProject)
		r.With(h.rbac.RequireAny(rbac.ActionProjectCreate)).Post("/", h.createProject)
		r.With(h.rbac.RequireAny(rbac.ActionProjectUpdate)).Patch("/{id}", h.updateProject)
		r.With(h.rbac.RequireAny(rbac.ActionProjectComplete)).Post("/{id}/complete", h.completeProject)
	})
	r.Route("/suppliers", func(r chi.Router) {
		r.Get("/", h.listSuppliers)
		r.Get("/{id}", h.getSupplier)
		r.With(h.rbac.RequireAny(rbac.ActionSupplierCreate)).Post("/", h.createSupplier)
		r.With(h.rbac.RequireAny(rbac.ActionSupplierStatus)).Post("/{id}/status", h.setSupplierStatus)
	})
	r.Route("/prs", func(r chi.Router) {
		r.Get("/", h.listPRs)
		r.Get("/{id}", h.getPR)
		r.With(h.rbac.RequireAny(rbac.ActionPRSubmit)).Post("/", h.submitPR)
		r.With(h.rbac.RequireAny(rbac.ActionPRReorder)).Post("/reorder", h.reorderPR)
		r.With(h.rbac.RequireAny(rbac.ActionPRApprove)).Post("/{id}/approve", h.approvePR)
		r.With(h.rbac.RequireAny(rbac.ActionPRSend)).Post("/{id}/send", h.sendPR)
		r.With(h.rbac.RequireAny(rbac.ActionPRAward)).Post("/{id}/award", h.awardPR)
		r.With(h.rbac.RequireAny(rbac.ActionPRReject)).Post("/{id}/reject", h.rejectPR)
		r.Get("/{id}/quotations", h.listQuotations)
		r.With(h.rbac.RequireAny(rbac.ActionQuotationSubmit)).Post("/{id}/quotations", h.submitQuotation)
		r.With(h.rbac.RequireAny(rbac.ActionQuotationEvaluate)).Post("/{id}/quotations/{qid}/evaluate", h.evaluateQuotation)
		r.With(h.rbac.RequireAny(rbac.ActionQuotationSelect)).Post("/{id}/quotations/{qid}/select", h.selectQuotation)
		r.With(h.rbac.RequireAny(rbac.ActionQuotationReject)).Post("/{id}/quotations/{qid}/reject", h.rejectQuotation)
	})
	r.Route("/handovers", func(r chi.Router) {
		r.Get("/", h.listHandovers)
		r.Get("/{id}", h.getHandover)
		r.With(h.rbac.RequireAny(rbac.ActionHandoverApprove)).Post("/{id}/approve", h.approveHandover)
		r.With(h.rbac.RequireAny(rbac.ActionHandoverReject)).Post("/{id}/reject", h.rejectHandover)
	})
	r.Route("/reports", func(r chi.Router) {
		r.With(h.rbac.RequireActor).Get("/pending", h.pendingCounts)
		r.With(h.rbac.RequireActor).Get("/dashboard", h.dashboard)
		r.Get("/low-stock", h.lowStock)
		r.Get("/spend", h.spend)
		r.Get("/throughput", h.throughput)
	})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if shared.KindOf(err) == "" {
		h.logger.Error("procurement request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func actor(r *http.Request) rbac.Actor {
	a, _ := rbac.ActorFromContext(r.Context())
	return a
}

type noteRequest struct {
	Comments string `json:"comments"`
	Reason   string `json:"reason"`
	Remarks  string `json:"remarks"`
	Notes    string `json:"notes"`
}

// decodeNote accepts an empty body for actions whose note is optional.
func decodeNote(r *http.Request) (noteRequest, error) {
	var body noteRequest
	if r.ContentLength == 0 {
		return body, nil
	}
	err := httpx.DecodeJSON(r, &body)
	return body, err
}

func (h *Handler) listProjects(w http.ResponseWriter, r *http.Request) {
	filter := ProjectFilter{Status: ProjectStatus(strings.TrimSpace(r.URL.Query().Get("status")))}
	projects, err := h.service.ListProjects(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSONPage(w, r, projects)
}

func (h *Handler) getProject(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetProject(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) createProject(w http.ResponseWriter, r *http.Request) {
	var input CreateProjectInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.service.CreateProject(r.Context(), actor(r), input)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) updateProject(w http.ResponseWriter, r *http.Request) {
	var input UpdateProjectInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.service.UpdateProject(r.Context(), actor(r), chi.URLParam(r, "id"), input)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) completeProject(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.CompleteProject(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) listSuppliers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := SupplierFilter{
		Status:   SupplierStatus(strings.TrimSpace(q.Get("status"))),
		Category: strings.TrimSpace(q.Get("category")),
	}
	suppliers, err := h.service.ListSuppliers(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSONPage(w, r, suppliers)
}

func (h *Handler) getSupplier(w http.ResponseWriter, r *http.Request) {
	sup, err := h.service.GetSupplier(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sup)
}

func (h *Handler) createSupplier(w http.ResponseWriter, r *http.Request) {
	var input CreateSupplierInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		h.fail(w, r, err)
		return
	}
	sup, err := h.service.CreateSupplier(r.Context(), actor(r), input)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sup)
}

type supplierStatusRequest struct {
	Status SupplierStatus `json:"status"`
}

func (h *Handler) setSupplierStatus(w http.ResponseWriter, r *http.Request) {
	var body supplierStatusRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	sup, err := h.service.SetSupplierStatus(r.Context(), actor(r), chi.URLParam(r, "id"), body.Status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sup)
}

func (h *Handler) listPRs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := PRFilter{ProjectID: strings.TrimSpace(q.Get("project_id"))}
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status, ok := ParsePRStatus(raw)
		if !ok {
			h.fail(w, r, shared.Validation("unknown pr status %q", raw))
			return
		}
		filter.Status = status
	}
	prs, err := h.service.ListPRs(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSONPage(w, r, prs)
}

func (h *Handler) getPR(w http.ResponseWriter, r *http.Request) {
	pr, err := h.service.GetPR(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, pr)
}

func (h *Handler) submitPR(w http.ResponseWriter, r *http.Request) {
	var input SubmitPRInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		h.fail(w, r, err)
		return
	}
	pr, err := h.service.SubmitPR(r.Context(), actor(r), input)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, pr)
}

func (h *Handler) reorderPR(w http.ResponseWriter, r *http.Request) {
	var input ReorderInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		h.fail(w, r, err)
		return
	}
	pr, err := h.service.CreateReorderPR(r.Context(), actor(r), input)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, pr)
}

func (h *Handler) approvePR(w http.ResponseWriter, r *http.Request) {
	body, err := decodeNote(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	pr, err := h.service.ApprovePR(r.Context(), actor(r), chi.URLParam(r, "id"), body.Comments)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, pr)
}

func (h *Handler) sendPR(w http.ResponseWriter, r *http.Request) {
	pr, err := h.service.SendPR(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, pr)
}

func (h *Handler) awardPR(w http.ResponseWriter, r *http.Request) {
	effect, err := h.service.AwardPR(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, effect)
}

func (h *Handler) rejectPR(w http.ResponseWriter, r *http.Request) {
	body, err := decodeNote(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	pr, err := h.service.RejectPR(r.Context(), actor(r), chi.URLParam(r, "id"), body.Reason)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, pr)
}

func (h *Handler) listQuotations(w http.ResponseWriter, r *http.Request) {
	pr, err := h.service.GetPR(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSONPage(w, r, pr.Quotations)
}

func (h *Handler) submitQuotation(w http.ResponseWriter, r *http.Request) {
	var input SubmitQuotationInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		h.fail(w, r, err)
		return
	}
	q, err := h.service.SubmitQuotation(r.Context(), actor(r), chi.URLParam(r, "id"), input)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, q)
}

func (h *Handler) evaluateQuotation(w http.ResponseWriter, r *http.Request) {
	pr, err := h.service.EvaluateQuotation(r.Context(), actor(r), chi.URLParam(r, "id"), chi.URLParam(r, "qid"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, pr)
}

func (h *Handler) selectQuotation(w http.ResponseWriter, r *http.Request) {
	pr, err := h.service.SelectQuotation(r.Context(), actor(r), chi.URLParam(r, "id"), chi.URLParam(r, "qid"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, pr)
}

func (h *Handler) rejectQuotation(w http.ResponseWriter, r *http.Request) {
	body, err := decodeNote(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	pr, err := h.service.RejectQuotation(r.Context(), actor(r), chi.URLParam(r, "id"), chi.URLParam(r, "qid"), body.Notes)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, pr)
}

func (h *Handler) listHandovers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := HandoverFilter{
		Status: HandoverStatus(strings.TrimSpace(q.Get("status"))),
		PRID:   strings.TrimSpace(q.Get("pr_id")),
	}
	handovers, err := h.service.ListHandovers(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSONPage(w, r, handovers)
}

func (h *Handler) getHandover(w http.ResponseWriter, r *http.Request) {
	ho, err := h.service.GetHandover(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ho)
}

func (h *Handler) approveHandover(w http.ResponseWriter, r *http.Request) {
	body, err := decodeNote(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	effect, err := h.service.ApproveHandover(r.Context(), actor(r), chi.URLParam(r, "id"), body.Remarks)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, effect)
}

func (h *Handler) rejectHandover(w http.ResponseWriter, r *http.Request) {
	body, err := decodeNote(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	effect, err := h.service.RejectHandover(r.Context(), actor(r), chi.URLParam(r, "id"), body.Remarks)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, effect)
}
