package task

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"hrflow/internal/domain/events"
)

type fakeStore struct {
	tasks   map[string]Task
	history []HistoryEntry
	nextID  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{tasks: map[string]Task{}}
}

func (f *fakeStore) CreateTask(ctx context.Context, tenantID string, t Task, entry HistoryEntry) (Task, error) {
	f.nextID++
	t.ID = fmt.Sprintf("task-%d", f.nextID)
	t.CreatedAt = time.Now()
	f.tasks[t.ID] = t
	entry.TaskID = t.ID
	entry.CreatedAt = t.CreatedAt
	f.history = append(f.history, entry)
	return t, nil
}

func (f *fakeStore) GetTask(ctx context.Context, tenantID, taskID string) (Task, error) {
	t, ok := f.tasks[taskID]
	if !ok {
		return Task{}, ErrNotFound
	}
	return t, nil
}

func (f *fakeStore) ListTasks(ctx context.Context, tenantID, assigneeID string, limit, offset int) ([]Task, int, error) {
	var out []Task
	for _, t := range f.tasks {
		out = append(out, t)
	}
	return out, len(out), nil
}

func (f *fakeStore) ApplyTransition(ctx context.Context, tenantID string, entry HistoryEntry, clearOverdue bool) (Task, error) {
	t, ok := f.tasks[entry.TaskID]
	if !ok {
		return Task{}, ErrNotFound
	}
	if entry.OldStatus == nil || t.Status != *entry.OldStatus {
		return Task{}, ErrInvalidTransition
	}
	t.Status = entry.NewStatus
	if entry.NewProgress != nil {
		t.Progress = *entry.NewProgress
	}
	if clearOverdue {
		t.Overdue = false
	}
	f.tasks[t.ID] = t
	entry.CreatedAt = time.Now()
	f.history = append(f.history, entry)
	return t, nil
}

func (f *fakeStore) MarkOverdue(ctx context.Context, tenantID string, entry HistoryEntry) (Task, error) {
	t := f.tasks[entry.TaskID]
	if t.Overdue {
		return t, nil
	}
	t.Overdue = true
	f.tasks[t.ID] = t
	entry.CreatedAt = time.Now()
	f.history = append(f.history, entry)
	return t, nil
}

func (f *fakeStore) History(ctx context.Context, tenantID, taskID string) ([]HistoryEntry, error) {
	var out []HistoryEntry
	for _, e := range f.history {
		if e.TaskID == taskID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) ListAutoStartDue(ctx context.Context, tenantID string, now time.Time) ([]Task, error) {
	var out []Task
	for _, t := range f.tasks {
		if t.Status == StatusNew && t.StartDate != nil && !t.StartDate.After(now) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeStore) ListDueSoon(ctx context.Context, tenantID string, now time.Time, window time.Duration) ([]Task, error) {
	return nil, nil
}

func (f *fakeStore) ListPastDue(ctx context.Context, tenantID string, now time.Time) ([]Task, error) {
	var out []Task
	for _, t := range f.tasks {
		if t.Overdue || t.DueDate == nil {
			continue
		}
		if (t.Status == StatusInProgress || t.Status == StatusPendingReview) && !t.DueDate.After(now) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkDueReminded(ctx context.Context, tenantID, taskID string) error {
	return nil
}

type fakeGate struct {
	calls int
	id    string
}

func (g *fakeGate) SubmitTaskApproval(ctx context.Context, tenantID, taskID string, from, to Status, requester string) (string, error) {
	g.calls++
	return g.id, nil
}

func TestRequestTransitionAppliesAndRecordsHistory(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, nil, events.NewBus())
	ctx := context.Background()

	created, err := svc.Create(ctx, "t1", "quarterly report", "emp-1", "mgr-1", nil, nil)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	result, err := svc.RequestTransition(ctx, "t1", created.ID, StatusInProgress, "emp-1", "starting", ChangeManual, nil)
	if err != nil {
		t.Fatalf("transition failed: %v", err)
	}
	if !result.Applied || result.Task.Status != StatusInProgress {
		t.Fatalf("expected applied in_progress, got %+v", result)
	}

	history, _ := svc.History(ctx, "t1", created.ID)
	if len(history) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(history))
	}
	if history[0].OldStatus != nil {
		t.Fatalf("creation entry must have nil old status")
	}
	if history[1].OldStatus == nil || *history[1].OldStatus != history[0].NewStatus {
		t.Fatalf("history chain broken: %+v", history)
	}
}

func TestHistoryChainStaysContiguous(t *testing.T) {
	store := newFakeStore()
	gate := &fakeGate{id: "ap-1"}
	svc := NewService(store, gate, events.NewBus())
	ctx := context.Background()

	created, _ := svc.Create(ctx, "t1", "launch checklist", "emp-1", "mgr-1", nil, nil)
	steps := []struct {
		to Status
		ct ChangeType
	}{
		{StatusInProgress, ChangeManual},
		{StatusOnHold, ChangeManual},
		{StatusInProgress, ChangeManual},
		{StatusPendingReview, ChangeManual},
		{StatusCompleted, ChangeApproval},
	}
	for _, step := range steps {
		if _, err := svc.RequestTransition(ctx, "t1", created.ID, step.to, "emp-1", "", step.ct, nil); err != nil {
			t.Fatalf("transition to %s failed: %v", step.to, err)
		}
	}

	history, _ := svc.History(ctx, "t1", created.ID)
	for i := 1; i < len(history); i++ {
		if history[i].OldStatus == nil || *history[i].OldStatus != history[i-1].NewStatus {
			t.Fatalf("entry %d breaks the chain: %+v", i, history)
		}
	}
}

func TestCompletionIsParkedBehindApproval(t *testing.T) {
	store := newFakeStore()
	gate := &fakeGate{id: "ap-42"}
	svc := NewService(store, gate, events.NewBus())
	ctx := context.Background()

	created, _ := svc.Create(ctx, "t1", "design doc", "emp-1", "mgr-1", nil, nil)
	_, _ = svc.RequestTransition(ctx, "t1", created.ID, StatusInProgress, "emp-1", "", ChangeManual, nil)
	_, _ = svc.RequestTransition(ctx, "t1", created.ID, StatusPendingReview, "emp-1", "", ChangeManual, nil)

	result, err := svc.RequestTransition(ctx, "t1", created.ID, StatusCompleted, "emp-1", "", ChangeManual, nil)
	if err != nil {
		t.Fatalf("gated transition returned error: %v", err)
	}
	if !result.ApprovalRequired || result.Applied {
		t.Fatalf("expected parked approval, got %+v", result)
	}
	if result.ApprovalID != "ap-42" || gate.calls != 1 {
		t.Fatalf("expected one gate submission, got %+v calls=%d", result, gate.calls)
	}

	current, _ := svc.Get(ctx, "t1", created.ID)
	if current.Status != StatusPendingReview {
		t.Fatalf("task must remain pending_review while parked, got %s", current.Status)
	}
	history, _ := svc.History(ctx, "t1", created.ID)
	if len(history) != 3 {
		t.Fatalf("parked transition must append no history, got %d entries", len(history))
	}
}

func TestIllegalTransitionHasNoSideEffects(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, nil, events.NewBus())
	ctx := context.Background()

	created, _ := svc.Create(ctx, "t1", "cleanup", "emp-1", "mgr-1", nil, nil)
	if _, err := svc.RequestTransition(ctx, "t1", created.ID, StatusCompleted, "emp-1", "", ChangeManual, nil); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	current, _ := svc.Get(ctx, "t1", created.ID)
	if current.Status != StatusNew {
		t.Fatalf("failed transition must leave task unchanged, got %s", current.Status)
	}
	history, _ := svc.History(ctx, "t1", created.ID)
	if len(history) != 1 {
		t.Fatalf("failed transition must append no history, got %d entries", len(history))
	}
}

func TestMarkOverdueIsIdempotentAndEmitsOnce(t *testing.T) {
	store := newFakeStore()
	bus := events.NewBus()
	var overdueEvents int
	bus.Subscribe(func(ctx context.Context, e events.Event) {
		if e.Kind == events.KindTaskOverdue {
			overdueEvents++
		}
	})
	svc := NewService(store, nil, bus)
	ctx := context.Background()

	created, _ := svc.Create(ctx, "t1", "late task", "emp-1", "mgr-1", nil, nil)
	_, _ = svc.RequestTransition(ctx, "t1", created.ID, StatusInProgress, "emp-1", "", ChangeManual, nil)

	if err := svc.MarkOverdue(ctx, "t1", created.ID); err != nil {
		t.Fatalf("mark overdue failed: %v", err)
	}
	if err := svc.MarkOverdue(ctx, "t1", created.ID); err != nil {
		t.Fatalf("second mark overdue failed: %v", err)
	}

	if overdueEvents != 1 {
		t.Fatalf("expected exactly one overdue event, got %d", overdueEvents)
	}
	history, _ := svc.History(ctx, "t1", created.ID)
	last := history[len(history)-1]
	if last.ChangeType != ChangeAutoOverdue || last.OldStatus == nil || *last.OldStatus != last.NewStatus {
		t.Fatalf("overdue entry must keep status unchanged: %+v", last)
	}
}

func TestSweepAutoStartsWithAutoDue(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, nil, events.NewBus())
	ctx := context.Background()

	start := time.Now().Add(-time.Hour)
	created, _ := svc.Create(ctx, "t1", "scheduled task", "emp-1", "mgr-1", &start, nil)

	summary, err := svc.Sweep(ctx, "t1", time.Now(), 24*time.Hour)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if summary.Started != 1 {
		t.Fatalf("expected 1 auto-start, got %+v", summary)
	}

	history, _ := svc.History(ctx, "t1", created.ID)
	last := history[len(history)-1]
	if last.ChangeType != ChangeAutoDue || last.ChangedBy != nil {
		t.Fatalf("auto-start entry must be system auto_due without actor: %+v", last)
	}
}
