package review

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"hrflow/internal/domain/events"
)

// ApprovalGate parks a submitted review behind a pending approval
// request. Implemented by the approval workflow service.
type ApprovalGate interface {
	SubmitReviewApproval(ctx context.Context, tenantID, reviewID, from, to, requester string) (string, error)
}

type Service struct {
	store StoreAPI
	gate  ApprovalGate
	bus   *events.Bus
}

func NewService(store StoreAPI, gate ApprovalGate, bus *events.Bus) *Service {
	return &Service{store: store, gate: gate, bus: bus}
}

// SetGate breaks the construction cycle with the approval service.
func (s *Service) SetGate(gate ApprovalGate) {
	s.gate = gate
}

func (s *Service) CreateCriterion(ctx context.Context, tenantID string, c Criterion) (Criterion, error) {
	if c.Code == "" || c.Name == "" {
		return Criterion{}, fmt.Errorf("%w: code and name are required", ErrValidation)
	}
	if c.Weight <= 0 || c.MaxScore <= 0 {
		return Criterion{}, fmt.Errorf("%w: weight and max score must be positive", ErrValidation)
	}
	c.Active = true

	created, err := s.store.CreateCriterion(ctx, tenantID, c)
	if err != nil {
		return Criterion{}, err
	}

	// Active weights are expected to sum to 100 but the engine only
	// advises on drift; scoring never enforces it.
	if all, err := s.store.ListCriteria(ctx, tenantID, true); err == nil {
		if sum := ActiveWeightSum(all); math.Abs(sum-100) > 1e-9 {
			slog.Warn("active criterion weights do not sum to 100", "tenantId", tenantID, "sum", sum)
		}
	}
	return created, nil
}

func (s *Service) ListCriteria(ctx context.Context, tenantID string, activeOnly bool) ([]Criterion, error) {
	return s.store.ListCriteria(ctx, tenantID, activeOnly)
}

func (s *Service) Create(ctx context.Context, tenantID, employeeID, period string, startDate, endDate time.Time) (Review, error) {
	if employeeID == "" || period == "" {
		return Review{}, fmt.Errorf("%w: employee and period are required", ErrValidation)
	}
	if endDate.Before(startDate) {
		return Review{}, fmt.Errorf("%w: period end precedes start", ErrValidation)
	}
	return s.store.CreateReview(ctx, tenantID, Review{
		EmployeeID: employeeID,
		Period:     period,
		StartDate:  startDate,
		EndDate:    endDate,
		Status:     StatusDraft,
	})
}

func (s *Service) Get(ctx context.Context, tenantID, reviewID string) (Review, error) {
	return s.store.GetReview(ctx, tenantID, reviewID)
}

func (s *Service) List(ctx context.Context, tenantID, employeeID string, limit, offset int) ([]Review, int, error) {
	return s.store.ListReviews(ctx, tenantID, employeeID, limit, offset)
}

func (s *Service) Scores(ctx context.Context, tenantID, reviewID string) ([]ReviewScore, error) {
	return s.store.ListScores(ctx, tenantID, reviewID)
}

// ComputeReview replaces the stored scores for a review with the given
// input and persists the recomputed total and grade in the same
// transaction. Safe to repeat with the same input.
func (s *Service) ComputeReview(ctx context.Context, tenantID, reviewID string, inputs []ScoreInput, reviewerID string) (Review, error) {
	r, err := s.store.GetReview(ctx, tenantID, reviewID)
	if err != nil {
		return Review{}, err
	}
	if r.Status != StatusDraft && r.Status != StatusSubmitted {
		return Review{}, fmt.Errorf("%w: review is %s", ErrInvalidState, r.Status)
	}

	criteria, err := s.store.ListCriteria(ctx, tenantID, true)
	if err != nil {
		return Review{}, err
	}
	rows, total, err := ComputeScores(criteria, inputs)
	if err != nil {
		return Review{}, err
	}

	if err := s.store.ReplaceScores(ctx, tenantID, reviewID, reviewerID, rows, total, GradeFor(total)); err != nil {
		return Review{}, err
	}
	return s.store.GetReview(ctx, tenantID, reviewID)
}

// Submit scores a draft review, records the narrative, moves it to
// submitted, and files the approval request that gates finalization.
func (s *Service) Submit(ctx context.Context, tenantID, reviewID, reviewerID string, inputs []ScoreInput, n Narrative) (Review, error) {
	if reviewerID == "" {
		return Review{}, fmt.Errorf("%w: reviewer is required", ErrValidation)
	}
	r, err := s.store.GetReview(ctx, tenantID, reviewID)
	if err != nil {
		return Review{}, err
	}
	if r.Status != StatusDraft {
		return Review{}, fmt.Errorf("%w: review is %s", ErrInvalidState, r.Status)
	}

	if _, err := s.ComputeReview(ctx, tenantID, reviewID, inputs, reviewerID); err != nil {
		return Review{}, err
	}
	if err := s.store.UpdateAssessment(ctx, tenantID, reviewID, n); err != nil {
		return Review{}, err
	}

	ok, err := s.store.UpdateStatus(ctx, tenantID, reviewID, StatusDraft, StatusSubmitted)
	if err != nil {
		return Review{}, err
	}
	if !ok {
		return Review{}, fmt.Errorf("%w: review left draft concurrently", ErrInvalidState)
	}

	if s.gate != nil {
		if _, err := s.gate.SubmitReviewApproval(ctx, tenantID, reviewID, string(StatusSubmitted), string(StatusReviewed), reviewerID); err != nil {
			return Review{}, err
		}
	}
	return s.store.GetReview(ctx, tenantID, reviewID)
}

// Finalize moves an approved review to reviewed, recomputing the total
// from the stored raw scores so the persisted grade always matches the
// current weights. Implements the approval review workflow.
func (s *Service) Finalize(ctx context.Context, tenantID, reviewID, deciderID string) error {
	r, err := s.store.GetReview(ctx, tenantID, reviewID)
	if err != nil {
		return err
	}
	if r.Status == StatusReviewed || r.Status == StatusAcknowledged {
		return nil
	}
	if r.Status != StatusSubmitted {
		return fmt.Errorf("%w: review is %s", ErrInvalidState, r.Status)
	}

	stored, err := s.store.ListScores(ctx, tenantID, reviewID)
	if err != nil {
		return err
	}
	criteria, err := s.store.ListCriteria(ctx, tenantID, true)
	if err != nil {
		return err
	}
	inputs := make([]ScoreInput, 0, len(stored))
	for _, row := range stored {
		inputs = append(inputs, ScoreInput{CriterionID: row.CriterionID, Score: row.Score})
	}
	if rows, total, err := ComputeScores(criteria, inputs); err != nil {
		// Criteria changed underneath the submission; keep the totals
		// recorded at submit time rather than block the decision.
		slog.Warn("finalize recompute failed, keeping submitted totals", "reviewId", reviewID, "err", err)
	} else if err := s.store.ReplaceScores(ctx, tenantID, reviewID, "", rows, total, GradeFor(total)); err != nil {
		return err
	}

	ok, err := s.store.UpdateStatus(ctx, tenantID, reviewID, StatusSubmitted, StatusReviewed)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: review left submitted concurrently", ErrInvalidState)
	}
	return nil
}

// Reopen returns a submitted review to draft after a rejection or a
// revision request. Implements the approval review workflow.
func (s *Service) Reopen(ctx context.Context, tenantID, reviewID, comment string) error {
	ok, err := s.store.UpdateStatus(ctx, tenantID, reviewID, StatusSubmitted, StatusDraft)
	if err != nil {
		return err
	}
	if !ok {
		r, getErr := s.store.GetReview(ctx, tenantID, reviewID)
		if getErr != nil {
			return getErr
		}
		if r.Status == StatusDraft {
			return nil
		}
		return fmt.Errorf("%w: review is %s", ErrInvalidState, r.Status)
	}
	slog.Info("review reopened for revision", "reviewId", reviewID, "comment", comment)
	return nil
}

// Acknowledge records that the reviewed employee has seen the outcome.
func (s *Service) Acknowledge(ctx context.Context, tenantID, reviewID, employeeID string) error {
	r, err := s.store.GetReview(ctx, tenantID, reviewID)
	if err != nil {
		return err
	}
	if r.EmployeeID != employeeID {
		return fmt.Errorf("%w: only the reviewed employee may acknowledge", ErrValidation)
	}
	if r.Status == StatusAcknowledged {
		return nil
	}
	if r.Status != StatusReviewed {
		return fmt.Errorf("%w: review is %s", ErrInvalidState, r.Status)
	}
	ok, err := s.store.UpdateStatus(ctx, tenantID, reviewID, StatusReviewed, StatusAcknowledged)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: review left reviewed concurrently", ErrInvalidState)
	}
	return nil
}
