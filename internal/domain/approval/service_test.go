package approval

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"hrflow/internal/domain/events"
	"hrflow/internal/domain/task"
)

type fakeStore struct {
	requests map[string]Request
	nextID   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{requests: map[string]Request{}}
}

func (f *fakeStore) CreateRequest(ctx context.Context, tenantID string, req Request) (Request, error) {
	for _, existing := range f.requests {
		if existing.SubjectType == req.SubjectType && existing.SubjectID == req.SubjectID && existing.Status == StatusPending {
			return Request{}, ErrDuplicatePending
		}
	}
	f.nextID++
	req.ID = fmt.Sprintf("req-%d", f.nextID)
	req.CreatedAt = time.Now()
	f.requests[req.ID] = req
	return req, nil
}

func (f *fakeStore) GetRequest(ctx context.Context, tenantID, requestID string) (Request, error) {
	req, ok := f.requests[requestID]
	if !ok {
		return Request{}, ErrNotFound
	}
	return req, nil
}

func (f *fakeStore) MarkDecided(ctx context.Context, tenantID, requestID string, status RequestStatus, deciderID, comment string) (bool, error) {
	req, ok := f.requests[requestID]
	if !ok || req.Status != StatusPending {
		return false, nil
	}
	now := time.Now()
	req.Status = status
	req.DeciderID = &deciderID
	req.Comment = comment
	req.DecidedAt = &now
	f.requests[requestID] = req
	return true, nil
}

func (f *fakeStore) ListPending(ctx context.Context, tenantID string, limit, offset int) ([]Request, int, error) {
	var out []Request
	for _, req := range f.requests {
		if req.Status == StatusPending {
			out = append(out, req)
		}
	}
	return out, len(out), nil
}

type fakeTasks struct {
	applied []appliedTransition
	err     error
}

type appliedTransition struct {
	taskID     string
	to         task.Status
	changeType task.ChangeType
	reason     string
}

func (f *fakeTasks) RequestTransition(ctx context.Context, tenantID, taskID string, to task.Status, actor, reason string, changeType task.ChangeType, progress *int) (task.TransitionResult, error) {
	if f.err != nil {
		return task.TransitionResult{}, f.err
	}
	f.applied = append(f.applied, appliedTransition{taskID: taskID, to: to, changeType: changeType, reason: reason})
	return task.TransitionResult{Applied: true}, nil
}

type fakeReviews struct {
	finalized []string
	reopened  []string
}

func (f *fakeReviews) Finalize(ctx context.Context, tenantID, reviewID, deciderID string) error {
	f.finalized = append(f.finalized, reviewID)
	return nil
}

func (f *fakeReviews) Reopen(ctx context.Context, tenantID, reviewID, comment string) error {
	f.reopened = append(f.reopened, reviewID)
	return nil
}

func TestSubmitRejectsSecondPendingRequest(t *testing.T) {
	svc := NewService(newFakeStore(), &fakeTasks{}, &fakeReviews{}, events.NewBus())
	ctx := context.Background()

	first, err := svc.Submit(ctx, "t1", SubjectTask, "task-1", "pending_review", "completed", "emp-1")
	if err != nil {
		t.Fatalf("first submit failed: %v", err)
	}

	if _, err := svc.Submit(ctx, "t1", SubjectTask, "task-1", "pending_review", "completed", "emp-2"); !errors.Is(err, ErrDuplicatePending) {
		t.Fatalf("expected ErrDuplicatePending, got %v", err)
	}

	// After the first request is decided, a new one is allowed.
	if _, err := svc.Decide(ctx, "t1", first.ID, DecisionReject, "mgr-1", "redo"); err != nil {
		t.Fatalf("decide failed: %v", err)
	}
	if _, err := svc.Submit(ctx, "t1", SubjectTask, "task-1", "pending_review", "completed", "emp-1"); err != nil {
		t.Fatalf("submit after decision failed: %v", err)
	}
}

func TestDecideTwiceReturnsAlreadyDecided(t *testing.T) {
	svc := NewService(newFakeStore(), &fakeTasks{}, &fakeReviews{}, events.NewBus())
	ctx := context.Background()

	req, _ := svc.Submit(ctx, "t1", SubjectTask, "task-1", "pending_review", "completed", "emp-1")

	first, err := svc.Decide(ctx, "t1", req.ID, DecisionApprove, "mgr-1", "looks good")
	if err != nil {
		t.Fatalf("first decision failed: %v", err)
	}
	if first.Status != StatusApproved {
		t.Fatalf("expected approved, got %s", first.Status)
	}

	second, err := svc.Decide(ctx, "t1", req.ID, DecisionReject, "mgr-2", "no")
	if !errors.Is(err, ErrAlreadyDecided) {
		t.Fatalf("expected ErrAlreadyDecided, got %v", err)
	}
	if second.Status != StatusApproved || second.DeciderID == nil || *second.DeciderID != "mgr-1" {
		t.Fatalf("second decision must observe the first unchanged: %+v", second)
	}
}

func TestApproveAppliesParkedTransition(t *testing.T) {
	tasks := &fakeTasks{}
	svc := NewService(newFakeStore(), tasks, &fakeReviews{}, events.NewBus())
	ctx := context.Background()

	req, _ := svc.Submit(ctx, "t1", SubjectTask, "task-1", "pending_review", "completed", "emp-1")
	if _, err := svc.Decide(ctx, "t1", req.ID, DecisionApprove, "mgr-1", "ship it"); err != nil {
		t.Fatalf("decide failed: %v", err)
	}

	if len(tasks.applied) != 1 {
		t.Fatalf("expected one applied transition, got %d", len(tasks.applied))
	}
	got := tasks.applied[0]
	if got.to != task.StatusCompleted || got.changeType != task.ChangeApproval || got.reason != "ship it" {
		t.Fatalf("unexpected applied transition: %+v", got)
	}
}

func TestRejectReturnsTaskToInProgress(t *testing.T) {
	tasks := &fakeTasks{}
	bus := events.NewBus()
	var decidedEvents []events.Event
	bus.Subscribe(func(ctx context.Context, e events.Event) {
		if e.Kind == events.KindApprovalDecided {
			decidedEvents = append(decidedEvents, e)
		}
	})
	svc := NewService(newFakeStore(), tasks, &fakeReviews{}, bus)
	ctx := context.Background()

	req, _ := svc.Submit(ctx, "t1", SubjectTask, "task-1", "pending_review", "completed", "emp-1")
	if _, err := svc.Decide(ctx, "t1", req.ID, DecisionReject, "mgr-1", "needs rework"); err != nil {
		t.Fatalf("decide failed: %v", err)
	}

	if len(tasks.applied) != 1 {
		t.Fatalf("expected one applied transition, got %d", len(tasks.applied))
	}
	got := tasks.applied[0]
	if got.to != task.StatusInProgress || got.changeType != task.ChangeRejection {
		t.Fatalf("rejection must return task to in_progress: %+v", got)
	}
	if len(decidedEvents) != 1 || decidedEvents[0].RequesterID != "emp-1" || decidedEvents[0].Decision != "reject" {
		t.Fatalf("expected one decided event for the requester, got %+v", decidedEvents)
	}
}

func TestApproveReviewSubjectFinalizesScoring(t *testing.T) {
	reviews := &fakeReviews{}
	svc := NewService(newFakeStore(), &fakeTasks{}, reviews, events.NewBus())
	ctx := context.Background()

	req, _ := svc.Submit(ctx, "t1", SubjectReview, "rev-1", "submitted", "reviewed", "mgr-1")
	if _, err := svc.Decide(ctx, "t1", req.ID, DecisionApprove, "hr-1", ""); err != nil {
		t.Fatalf("decide failed: %v", err)
	}
	if len(reviews.finalized) != 1 || reviews.finalized[0] != "rev-1" {
		t.Fatalf("expected review finalized, got %+v", reviews.finalized)
	}

	req2, _ := svc.Submit(ctx, "t1", SubjectReview, "rev-2", "submitted", "reviewed", "mgr-1")
	if _, err := svc.Decide(ctx, "t1", req2.ID, DecisionRequestRevision, "hr-1", "missing goals"); err != nil {
		t.Fatalf("decide failed: %v", err)
	}
	if len(reviews.reopened) != 1 || reviews.reopened[0] != "rev-2" {
		t.Fatalf("expected review reopened, got %+v", reviews.reopened)
	}
}

func TestDecidedEventPublishedWhenOutcomeApplyFails(t *testing.T) {
	tasks := &fakeTasks{err: errors.New("task moved concurrently")}
	bus := events.NewBus()
	var decidedEvents []events.Event
	bus.Subscribe(func(ctx context.Context, e events.Event) {
		if e.Kind == events.KindApprovalDecided {
			decidedEvents = append(decidedEvents, e)
		}
	})
	store := newFakeStore()
	svc := NewService(store, tasks, &fakeReviews{}, bus)
	ctx := context.Background()

	req, _ := svc.Submit(ctx, "t1", SubjectTask, "task-1", "pending_review", "completed", "emp-1")
	if _, err := svc.Decide(ctx, "t1", req.ID, DecisionApprove, "mgr-1", "ok"); err == nil {
		t.Fatal("expected the subject update failure to surface")
	}

	// The decision row is committed before the outcome is applied, so the
	// requester still hears about it.
	if len(decidedEvents) != 1 || decidedEvents[0].RequesterID != "emp-1" {
		t.Fatalf("expected one decided event despite the apply failure, got %+v", decidedEvents)
	}
	decided, err := store.GetRequest(ctx, "t1", req.ID)
	if err != nil || decided.Status != StatusApproved {
		t.Fatalf("decision must stay recorded: %+v (%v)", decided, err)
	}
}

func TestDecideUnknownRequest(t *testing.T) {
	svc := NewService(newFakeStore(), &fakeTasks{}, &fakeReviews{}, events.NewBus())
	if _, err := svc.Decide(context.Background(), "t1", "missing", DecisionApprove, "mgr-1", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
