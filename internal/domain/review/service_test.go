package review

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"hrflow/internal/domain/events"
)

type fakeStore struct {
	criteria map[string]Criterion
	reviews  map[string]Review
	scores   map[string][]ReviewScore
	nextID   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		criteria: map[string]Criterion{},
		reviews:  map[string]Review{},
		scores:   map[string][]ReviewScore{},
	}
}

func (f *fakeStore) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeStore) CreateCriterion(ctx context.Context, tenantID string, c Criterion) (Criterion, error) {
	c.ID = f.id("crit")
	c.CreatedAt = time.Now()
	f.criteria[c.ID] = c
	return c, nil
}

func (f *fakeStore) ListCriteria(ctx context.Context, tenantID string, activeOnly bool) ([]Criterion, error) {
	var out []Criterion
	for _, c := range f.criteria {
		if activeOnly && !c.Active {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeStore) CreateReview(ctx context.Context, tenantID string, r Review) (Review, error) {
	r.ID = f.id("rev")
	r.CreatedAt = time.Now()
	f.reviews[r.ID] = r
	return r, nil
}

func (f *fakeStore) GetReview(ctx context.Context, tenantID, reviewID string) (Review, error) {
	r, ok := f.reviews[reviewID]
	if !ok {
		return Review{}, ErrNotFound
	}
	return r, nil
}

func (f *fakeStore) ListReviews(ctx context.Context, tenantID, employeeID string, limit, offset int) ([]Review, int, error) {
	var out []Review
	for _, r := range f.reviews {
		if employeeID == "" || r.EmployeeID == employeeID {
			out = append(out, r)
		}
	}
	return out, len(out), nil
}

func (f *fakeStore) ListScores(ctx context.Context, tenantID, reviewID string) ([]ReviewScore, error) {
	return f.scores[reviewID], nil
}

func (f *fakeStore) ReplaceScores(ctx context.Context, tenantID, reviewID, reviewerID string, scores []ReviewScore, total float64, grade Grade) error {
	r, ok := f.reviews[reviewID]
	if !ok {
		return ErrNotFound
	}
	f.scores[reviewID] = append([]ReviewScore(nil), scores...)
	r.TotalScore = &total
	r.Grade = &grade
	if reviewerID != "" {
		r.ReviewerID = &reviewerID
	}
	f.reviews[reviewID] = r
	return nil
}

func (f *fakeStore) UpdateStatus(ctx context.Context, tenantID, reviewID string, from, to ReviewStatus) (bool, error) {
	r, ok := f.reviews[reviewID]
	if !ok || r.Status != from {
		return false, nil
	}
	r.Status = to
	f.reviews[reviewID] = r
	return true, nil
}

func (f *fakeStore) UpdateAssessment(ctx context.Context, tenantID, reviewID string, n Narrative) error {
	r, ok := f.reviews[reviewID]
	if !ok {
		return ErrNotFound
	}
	r.Strengths, r.Weaknesses, r.Goals, r.Comments = n.Strengths, n.Weaknesses, n.Goals, n.Comments
	f.reviews[reviewID] = r
	return nil
}

type fakeGate struct {
	submissions []string
}

func (f *fakeGate) SubmitReviewApproval(ctx context.Context, tenantID, reviewID, from, to, requester string) (string, error) {
	f.submissions = append(f.submissions, reviewID)
	return "ap-1", nil
}

func setupService(t *testing.T) (*Service, *fakeStore, *fakeGate) {
	t.Helper()
	store := newFakeStore()
	gate := &fakeGate{}
	svc := NewService(store, gate, events.NewBus())
	ctx := context.Background()
	if _, err := svc.CreateCriterion(ctx, "t1", Criterion{Code: "QUALITY", Name: "Quality", Weight: 40, MaxScore: 10, IsRequired: true}); err != nil {
		t.Fatalf("create criterion failed: %v", err)
	}
	if _, err := svc.CreateCriterion(ctx, "t1", Criterion{Code: "DELIVERY", Name: "Delivery", Weight: 60, MaxScore: 10, IsRequired: true}); err != nil {
		t.Fatalf("create criterion failed: %v", err)
	}
	return svc, store, gate
}

func inputsFor(t *testing.T, store *fakeStore, quality, delivery float64) []ScoreInput {
	t.Helper()
	var inputs []ScoreInput
	for id, c := range store.criteria {
		switch c.Code {
		case "QUALITY":
			inputs = append(inputs, ScoreInput{CriterionID: id, Score: quality})
		case "DELIVERY":
			inputs = append(inputs, ScoreInput{CriterionID: id, Score: delivery})
		}
	}
	return inputs
}

func TestSubmitScoresAndParksApproval(t *testing.T) {
	svc, store, gate := setupService(t)
	ctx := context.Background()

	r, err := svc.Create(ctx, "t1", "emp-1", "2026-H1", time.Now().AddDate(0, -6, 0), time.Now())
	if err != nil {
		t.Fatalf("create review failed: %v", err)
	}

	submitted, err := svc.Submit(ctx, "t1", r.ID, "mgr-1", inputsFor(t, store, 8, 9), Narrative{Strengths: "delivers"})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if submitted.Status != StatusSubmitted {
		t.Fatalf("expected submitted, got %s", submitted.Status)
	}
	if submitted.TotalScore == nil || math.Abs(*submitted.TotalScore-86) > 1e-9 {
		t.Fatalf("expected total 86, got %v", submitted.TotalScore)
	}
	if submitted.Grade == nil || *submitted.Grade != GradeB {
		t.Fatalf("expected grade B, got %v", submitted.Grade)
	}
	if submitted.ReviewerID == nil || *submitted.ReviewerID != "mgr-1" {
		t.Fatalf("expected reviewer recorded, got %v", submitted.ReviewerID)
	}
	if submitted.Strengths != "delivers" {
		t.Fatalf("expected narrative stored, got %q", submitted.Strengths)
	}
	if len(gate.submissions) != 1 || gate.submissions[0] != r.ID {
		t.Fatalf("expected one approval submission for the review, got %+v", gate.submissions)
	}
}

func TestComputeReviewReplacesScores(t *testing.T) {
	svc, store, _ := setupService(t)
	ctx := context.Background()

	r, _ := svc.Create(ctx, "t1", "emp-1", "2026-H1", time.Now().AddDate(0, -6, 0), time.Now())

	if _, err := svc.ComputeReview(ctx, "t1", r.ID, inputsFor(t, store, 5, 5), "mgr-1"); err != nil {
		t.Fatalf("first compute failed: %v", err)
	}
	updated, err := svc.ComputeReview(ctx, "t1", r.ID, inputsFor(t, store, 8, 9), "mgr-1")
	if err != nil {
		t.Fatalf("second compute failed: %v", err)
	}

	if len(store.scores[r.ID]) != 2 {
		t.Fatalf("recompute must replace rows, not append: %d rows", len(store.scores[r.ID]))
	}
	if updated.TotalScore == nil || math.Abs(*updated.TotalScore-86) > 1e-9 {
		t.Fatalf("expected total 86 after recompute, got %v", updated.TotalScore)
	}

	// Repeating the same input changes nothing.
	again, err := svc.ComputeReview(ctx, "t1", r.ID, inputsFor(t, store, 8, 9), "mgr-1")
	if err != nil {
		t.Fatalf("idempotent recompute failed: %v", err)
	}
	if *again.TotalScore != *updated.TotalScore || *again.Grade != *updated.Grade {
		t.Fatalf("recompute with identical input must be stable")
	}
}

func TestComputeReviewRejectedAfterFinalization(t *testing.T) {
	svc, store, _ := setupService(t)
	ctx := context.Background()

	r, _ := svc.Create(ctx, "t1", "emp-1", "2026-H1", time.Now().AddDate(0, -6, 0), time.Now())
	if _, err := svc.Submit(ctx, "t1", r.ID, "mgr-1", inputsFor(t, store, 8, 9), Narrative{}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if err := svc.Finalize(ctx, "t1", r.ID, "hr-1"); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	if _, err := svc.ComputeReview(ctx, "t1", r.ID, inputsFor(t, store, 1, 1), "mgr-1"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState after finalization, got %v", err)
	}
}

func TestFinalizeIsIdempotent(t *testing.T) {
	svc, store, _ := setupService(t)
	ctx := context.Background()

	r, _ := svc.Create(ctx, "t1", "emp-1", "2026-H1", time.Now().AddDate(0, -6, 0), time.Now())
	if _, err := svc.Submit(ctx, "t1", r.ID, "mgr-1", inputsFor(t, store, 9, 10), Narrative{}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	if err := svc.Finalize(ctx, "t1", r.ID, "hr-1"); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	got, _ := svc.Get(ctx, "t1", r.ID)
	if got.Status != StatusReviewed {
		t.Fatalf("expected reviewed, got %s", got.Status)
	}
	if got.Grade == nil || *got.Grade != GradeA {
		t.Fatalf("expected grade A for total 96, got %v", got.Grade)
	}

	if err := svc.Finalize(ctx, "t1", r.ID, "hr-1"); err != nil {
		t.Fatalf("repeated finalize must be a no-op: %v", err)
	}
}

func TestReopenReturnsReviewToDraft(t *testing.T) {
	svc, store, _ := setupService(t)
	ctx := context.Background()

	r, _ := svc.Create(ctx, "t1", "emp-1", "2026-H1", time.Now().AddDate(0, -6, 0), time.Now())
	if _, err := svc.Submit(ctx, "t1", r.ID, "mgr-1", inputsFor(t, store, 8, 9), Narrative{}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	if err := svc.Reopen(ctx, "t1", r.ID, "missing goals"); err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	got, _ := svc.Get(ctx, "t1", r.ID)
	if got.Status != StatusDraft {
		t.Fatalf("expected draft after reopen, got %s", got.Status)
	}

	// Rescoring is allowed again after reopening.
	if _, err := svc.ComputeReview(ctx, "t1", r.ID, inputsFor(t, store, 10, 10), "mgr-1"); err != nil {
		t.Fatalf("rescore after reopen failed: %v", err)
	}
}

func TestAcknowledgeOnlyByReviewedEmployee(t *testing.T) {
	svc, store, _ := setupService(t)
	ctx := context.Background()

	r, _ := svc.Create(ctx, "t1", "emp-1", "2026-H1", time.Now().AddDate(0, -6, 0), time.Now())
	if _, err := svc.Submit(ctx, "t1", r.ID, "mgr-1", inputsFor(t, store, 8, 9), Narrative{}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if err := svc.Finalize(ctx, "t1", r.ID, "hr-1"); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	if err := svc.Acknowledge(ctx, "t1", r.ID, "emp-2"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for another employee, got %v", err)
	}
	if err := svc.Acknowledge(ctx, "t1", r.ID, "emp-1"); err != nil {
		t.Fatalf("acknowledge failed: %v", err)
	}
	got, _ := svc.Get(ctx, "t1", r.ID)
	if got.Status != StatusAcknowledged {
		t.Fatalf("expected acknowledged, got %s", got.Status)
	}
}

func TestSubmitRequiresDraft(t *testing.T) {
	svc, store, _ := setupService(t)
	ctx := context.Background()

	r, _ := svc.Create(ctx, "t1", "emp-1", "2026-H1", time.Now().AddDate(0, -6, 0), time.Now())
	if _, err := svc.Submit(ctx, "t1", r.ID, "mgr-1", inputsFor(t, store, 8, 9), Narrative{}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if _, err := svc.Submit(ctx, "t1", r.ID, "mgr-1", inputsFor(t, store, 8, 9), Narrative{}); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on double submit, got %v", err)
	}
}
