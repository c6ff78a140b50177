package reviewshandler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jung-kurt/gofpdf"

	"hrflow/internal/domain/approval"
	"hrflow/internal/domain/audit"
	"hrflow/internal/domain/auth"
	"hrflow/internal/domain/review"
	"hrflow/internal/transport/http/api"
	"hrflow/internal/transport/http/middleware"
	"hrflow/internal/transport/http/shared"
)

type Handler struct {
	Service *review.Service
	Perms   middleware.PermissionStore
	Audit   *audit.Service
}

func NewHandler(service *review.Service, perms middleware.PermissionStore, auditSvc *audit.Service) *Handler {
	return &Handler{Service: service, Perms: perms, Audit: auditSvc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/reviews", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermReviewsRead, h.Perms)).Get("/criteria", h.handleListCriteria)
		r.With(middleware.RequirePermission(auth.PermReviewsAdmin, h.Perms)).Post("/criteria", h.handleCreateCriterion)
		r.With(middleware.RequirePermission(auth.PermReviewsRead, h.Perms)).Get("/", h.handleList)
		r.With(middleware.RequirePermission(auth.PermReviewsWrite, h.Perms)).Post("/", h.handleCreate)
		r.With(middleware.RequirePermission(auth.PermReviewsRead, h.Perms)).Get("/{reviewID}", h.handleGet)
		r.With(middleware.RequirePermission(auth.PermReviewsRead, h.Perms)).Get("/{reviewID}/scores", h.handleScores)
		r.With(middleware.RequirePermission(auth.PermReviewsWrite, h.Perms)).Post("/{reviewID}/scores", h.handleComputeScores)
		r.With(middleware.RequirePermission(auth.PermReviewsWrite, h.Perms)).Post("/{reviewID}/submit", h.handleSubmit)
		r.With(middleware.RequirePermission(auth.PermReviewsRead, h.Perms)).Post("/{reviewID}/acknowledge", h.handleAcknowledge)
		r.With(middleware.RequirePermission(auth.PermReviewsRead, h.Perms)).Get("/{reviewID}/report", h.handleReport)
	})
}

func (h *Handler) handleListCriteria(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	activeOnly := r.URL.Query().Get("all") == ""
	criteria, err := h.Service.ListCriteria(r.Context(), user.TenantID, activeOnly)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "criteria_list_failed", "failed to list criteria", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, criteria, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateCriterion(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload review.Criterion
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	created, err := h.Service.CreateCriterion(r.Context(), user.TenantID, payload)
	if err != nil {
		if errors.Is(err, review.ErrValidation) {
			api.Fail(w, http.StatusBadRequest, "invalid_payload", err.Error(), middleware.GetRequestID(r.Context()))
			return
		}
		api.Fail(w, http.StatusInternalServerError, "criterion_create_failed", "failed to create criterion", middleware.GetRequestID(r.Context()))
		return
	}

	h.record(r, user, "review.criterion.create", created.ID, created)
	api.Created(w, created, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	employeeID := r.URL.Query().Get("employeeId")
	if user.RoleName == auth.RoleEmployee {
		employeeID = user.UserID
	}

	page := shared.ParsePagination(r, 50, 200)
	reviews, total, err := h.Service.List(r.Context(), user.TenantID, employeeID, page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "review_list_failed", "failed to list reviews", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, map[string]any{"reviews": reviews, "total": total}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload struct {
		EmployeeID string `json:"employeeId"`
		Period     string `json:"period"`
		StartDate  string `json:"startDate"`
		EndDate    string `json:"endDate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	v.Required("employeeId", payload.EmployeeID, "employee is required")
	v.Required("period", payload.Period, "period is required")
	startDate, startOK := v.Date("startDate", payload.StartDate)
	endDate, endOK := v.Date("endDate", payload.EndDate)
	if startOK && endOK {
		v.DateOrder("startDate", startDate, "endDate", endDate)
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	created, err := h.Service.Create(r.Context(), user.TenantID, payload.EmployeeID, payload.Period, startDate, endDate)
	if err != nil {
		if errors.Is(err, review.ErrValidation) {
			api.Fail(w, http.StatusBadRequest, "invalid_payload", err.Error(), middleware.GetRequestID(r.Context()))
			return
		}
		api.Fail(w, http.StatusInternalServerError, "review_create_failed", "failed to create review", middleware.GetRequestID(r.Context()))
		return
	}

	h.record(r, user, "review.create", created.ID, created)
	api.Created(w, created, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	rev, err := h.Service.Get(r.Context(), user.TenantID, chi.URLParam(r, "reviewID"))
	if err != nil {
		if errors.Is(err, review.ErrNotFound) {
			api.Fail(w, http.StatusNotFound, "review_not_found", "review not found", middleware.GetRequestID(r.Context()))
			return
		}
		api.Fail(w, http.StatusInternalServerError, "review_get_failed", "failed to load review", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, rev, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleScores(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	scores, err := h.Service.Scores(r.Context(), user.TenantID, chi.URLParam(r, "reviewID"))
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "score_list_failed", "failed to load scores", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, scores, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleComputeScores(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload struct {
		Scores []review.ScoreInput `json:"scores"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	updated, err := h.Service.ComputeReview(r.Context(), user.TenantID, chi.URLParam(r, "reviewID"), payload.Scores, user.UserID)
	if err != nil {
		h.failScoring(w, r, err)
		return
	}
	api.Success(w, updated, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload struct {
		Scores     []review.ScoreInput `json:"scores"`
		Strengths  string              `json:"strengths"`
		Weaknesses string              `json:"weaknesses"`
		Goals      string              `json:"goals"`
		Comments   string              `json:"comments"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	submitted, err := h.Service.Submit(r.Context(), user.TenantID, chi.URLParam(r, "reviewID"), user.UserID, payload.Scores, review.Narrative{
		Strengths:  payload.Strengths,
		Weaknesses: payload.Weaknesses,
		Goals:      payload.Goals,
		Comments:   payload.Comments,
	})
	if err != nil {
		h.failScoring(w, r, err)
		return
	}
	api.Success(w, submitted, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	reviewID := chi.URLParam(r, "reviewID")
	if err := h.Service.Acknowledge(r.Context(), user.TenantID, reviewID, user.UserID); err != nil {
		h.failScoring(w, r, err)
		return
	}

	rev, err := h.Service.Get(r.Context(), user.TenantID, reviewID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "review_get_failed", "failed to load review", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, rev, middleware.GetRequestID(r.Context()))
}

// handleReport renders the finalized review as a PDF.
func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	reviewID := chi.URLParam(r, "reviewID")
	rev, err := h.Service.Get(r.Context(), user.TenantID, reviewID)
	if err != nil {
		if errors.Is(err, review.ErrNotFound) {
			api.Fail(w, http.StatusNotFound, "review_not_found", "review not found", middleware.GetRequestID(r.Context()))
			return
		}
		api.Fail(w, http.StatusInternalServerError, "review_get_failed", "failed to load review", middleware.GetRequestID(r.Context()))
		return
	}
	if rev.Status != review.StatusReviewed && rev.Status != review.StatusAcknowledged {
		api.Fail(w, http.StatusConflict, "review_not_finalized", "report is only available for finalized reviews", middleware.GetRequestID(r.Context()))
		return
	}

	scores, err := h.Service.Scores(r.Context(), user.TenantID, reviewID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "score_list_failed", "failed to load scores", middleware.GetRequestID(r.Context()))
		return
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Performance Review")
	pdf.Ln(12)
	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Employee: %s", rev.EmployeeID))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Period: %s (%s to %s)", rev.Period, rev.StartDate.Format("2006-01-02"), rev.EndDate.Format("2006-01-02")))
	pdf.Ln(10)
	for _, score := range scores {
		pdf.Cell(0, 8, fmt.Sprintf("Criterion %s: %.1f (weighted %.2f)", score.CriterionID, score.Score, score.WeightedScore))
		pdf.Ln(7)
	}
	pdf.Ln(3)
	if rev.TotalScore != nil && rev.Grade != nil {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.Cell(0, 8, fmt.Sprintf("Total: %.2f  Grade: %s", *rev.TotalScore, *rev.Grade))
		pdf.Ln(10)
	}
	pdf.SetFont("Helvetica", "", 12)
	if rev.Strengths != "" {
		pdf.MultiCell(0, 6, "Strengths: "+rev.Strengths, "", "L", false)
	}
	if rev.Weaknesses != "" {
		pdf.MultiCell(0, 6, "Areas to improve: "+rev.Weaknesses, "", "L", false)
	}
	if rev.Goals != "" {
		pdf.MultiCell(0, 6, "Goals: "+rev.Goals, "", "L", false)
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=review-%s.pdf", reviewID))
	if err := pdf.Output(w); err != nil {
		slog.Warn("review report render failed", "reviewId", reviewID, "err", err)
	}
}

func (h *Handler) failScoring(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, review.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "review_not_found", "review not found", middleware.GetRequestID(r.Context()))
	case errors.Is(err, review.ErrScoreOutOfRange):
		api.Fail(w, http.StatusBadRequest, "score_out_of_range", err.Error(), middleware.GetRequestID(r.Context()))
	case errors.Is(err, review.ErrIncompleteScoring):
		api.Fail(w, http.StatusBadRequest, "incomplete_scoring", err.Error(), middleware.GetRequestID(r.Context()))
	case errors.Is(err, review.ErrInvalidState):
		api.Fail(w, http.StatusConflict, "invalid_state", err.Error(), middleware.GetRequestID(r.Context()))
	case errors.Is(err, review.ErrValidation):
		api.Fail(w, http.StatusBadRequest, "invalid_payload", err.Error(), middleware.GetRequestID(r.Context()))
	case errors.Is(err, approval.ErrDuplicatePending):
		api.Fail(w, http.StatusConflict, "duplicate_pending", "an approval request is already pending for this review", middleware.GetRequestID(r.Context()))
	default:
		api.Fail(w, http.StatusInternalServerError, "review_update_failed", "failed to update review", middleware.GetRequestID(r.Context()))
	}
}

func (h *Handler) record(r *http.Request, user auth.UserContext, action, entityID string, after any) {
	if h.Audit == nil {
		return
	}
	if err := h.Audit.Record(r.Context(), user.TenantID, user.UserID, action, "review", entityID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, after); err != nil {
		slog.Warn("audit record failed", "action", action, "err", err)
	}
}
