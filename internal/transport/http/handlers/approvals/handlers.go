package approvalshandler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"hrflow/internal/domain/approval"
	"hrflow/internal/domain/audit"
	"hrflow/internal/domain/auth"
	"hrflow/internal/domain/task"
	"hrflow/internal/transport/http/api"
	"hrflow/internal/transport/http/middleware"
	"hrflow/internal/transport/http/shared"
)

type Handler struct {
	Service *approval.Service
	Perms   middleware.PermissionStore
	Audit   *audit.Service
}

func NewHandler(service *approval.Service, perms middleware.PermissionStore, auditSvc *audit.Service) *Handler {
	return &Handler{Service: service, Perms: perms, Audit: auditSvc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/approvals", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermWorkflowApprove, h.Perms)).Get("/", h.handleListPending)
		r.With(middleware.RequirePermission(auth.PermWorkflowApprove, h.Perms)).Get("/{requestID}", h.handleGet)
		r.With(middleware.RequirePermission(auth.PermWorkflowApprove, h.Perms)).Post("/{requestID}/decide", h.handleDecide)
	})
}

func (h *Handler) handleListPending(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	page := shared.ParsePagination(r, 50, 200)
	requests, total, err := h.Service.ListPending(r.Context(), user.TenantID, page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "approval_list_failed", "failed to list approvals", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, map[string]any{"requests": requests, "total": total}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	req, err := h.Service.Get(r.Context(), user.TenantID, chi.URLParam(r, "requestID"))
	if err != nil {
		if errors.Is(err, approval.ErrNotFound) {
			api.Fail(w, http.StatusNotFound, "approval_not_found", "approval request not found", middleware.GetRequestID(r.Context()))
			return
		}
		api.Fail(w, http.StatusInternalServerError, "approval_get_failed", "failed to load approval request", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, req, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDecide(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload struct {
		Decision string `json:"decision"`
		Comment  string `json:"comment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	requestID := chi.URLParam(r, "requestID")
	decided, err := h.Service.Decide(r.Context(), user.TenantID, requestID, approval.Decision(payload.Decision), user.UserID, payload.Comment)
	if err != nil {
		switch {
		case errors.Is(err, approval.ErrNotFound):
			api.Fail(w, http.StatusNotFound, "approval_not_found", "approval request not found", middleware.GetRequestID(r.Context()))
		case errors.Is(err, approval.ErrAlreadyDecided):
			api.FailWithDetails(w, http.StatusConflict, "already_decided", "approval request already decided",
				map[string]any{"request": decided}, middleware.GetRequestID(r.Context()))
		case errors.Is(err, approval.ErrValidation):
			api.Fail(w, http.StatusBadRequest, "invalid_payload", "unknown decision or missing decider", middleware.GetRequestID(r.Context()))
		case errors.Is(err, task.ErrInvalidTransition):
			api.Fail(w, http.StatusConflict, "invalid_transition", "subject changed state since the request was filed", middleware.GetRequestID(r.Context()))
		default:
			api.Fail(w, http.StatusInternalServerError, "approval_decide_failed", "failed to record decision", middleware.GetRequestID(r.Context()))
		}
		return
	}

	api.Success(w, decided, middleware.GetRequestID(r.Context()))
}
