package task

import (
	"context"
	"time"

	"hrflow/internal/domain/events"
)

// ApprovalGate parks approval-gated transitions as pending requests. It is
// implemented by the approval workflow service.
type ApprovalGate interface {
	SubmitTaskApproval(ctx context.Context, tenantID, taskID string, from, to Status, requester string) (string, error)
}

type Service struct {
	store StoreAPI
	gate  ApprovalGate
	bus   *events.Bus
}

func NewService(store StoreAPI, gate ApprovalGate, bus *events.Bus) *Service {
	return &Service{store: store, gate: gate, bus: bus}
}

// SetGate breaks the construction cycle with the approval service, which
// itself needs the task service to apply decided transitions.
func (s *Service) SetGate(gate ApprovalGate) {
	s.gate = gate
}

func (s *Service) Create(ctx context.Context, tenantID, title, assigneeID, actor string, startDate, dueDate *time.Time) (Task, error) {
	if title == "" || assigneeID == "" || actor == "" {
		return Task{}, ErrValidation
	}
	t := Task{
		Title:      title,
		AssigneeID: assigneeID,
		Status:     StatusNew,
		StartDate:  startDate,
		DueDate:    dueDate,
	}
	entry := HistoryEntry{
		NewStatus:  StatusNew,
		ChangeType: ChangeManual,
		ChangedBy:  &actor,
	}
	return s.store.CreateTask(ctx, tenantID, t, entry)
}

func (s *Service) Get(ctx context.Context, tenantID, taskID string) (Task, error) {
	return s.store.GetTask(ctx, tenantID, taskID)
}

func (s *Service) List(ctx context.Context, tenantID, assigneeID string, limit, offset int) ([]Task, int, error) {
	return s.store.ListTasks(ctx, tenantID, assigneeID, limit, offset)
}

func (s *Service) History(ctx context.Context, tenantID, taskID string) ([]HistoryEntry, error) {
	return s.store.History(ctx, tenantID, taskID)
}

// RequestTransition validates and applies a status change, or parks it
// behind an approval request when the target is approval-gated. Illegal
// requests fail without side effects.
func (s *Service) RequestTransition(ctx context.Context, tenantID, taskID string, to Status, actor, reason string, changeType ChangeType, progress *int) (TransitionResult, error) {
	t, err := s.store.GetTask(ctx, tenantID, taskID)
	if err != nil {
		return TransitionResult{}, err
	}

	if err := ValidateChange(t.Status, to, actor, changeType); err != nil {
		return TransitionResult{}, err
	}
	if progress != nil && (*progress < 0 || *progress > 100) {
		return TransitionResult{}, ErrValidation
	}

	if RequiresApproval(t.Status, to) && !decisionChange(changeType) {
		if s.gate == nil {
			return TransitionResult{}, ErrValidation
		}
		approvalID, err := s.gate.SubmitTaskApproval(ctx, tenantID, taskID, t.Status, to, actor)
		if err != nil {
			return TransitionResult{}, err
		}
		return TransitionResult{Task: t, ApprovalRequired: true, ApprovalID: approvalID}, nil
	}

	from := t.Status
	oldProgress := t.Progress
	newProgress := oldProgress
	if to == StatusCompleted {
		newProgress = 100
	}
	if progress != nil {
		newProgress = *progress
	}

	entry := HistoryEntry{
		TaskID:       taskID,
		OldStatus:    &from,
		NewStatus:    to,
		ChangeType:   changeType,
		ChangeReason: reason,
	}
	if actor != "" {
		entry.ChangedBy = &actor
	}
	if newProgress != oldProgress {
		entry.OldProgress = &oldProgress
		entry.NewProgress = &newProgress
	}

	updated, err := s.store.ApplyTransition(ctx, tenantID, entry, true)
	if err != nil {
		return TransitionResult{}, err
	}

	s.publish(ctx, events.Event{
		Kind:       events.KindTransitionApplied,
		TenantID:   tenantID,
		TaskID:     taskID,
		TaskTitle:  updated.Title,
		AssigneeID: updated.AssigneeID,
		FromStatus: string(from),
		ToStatus:   string(to),
		ChangeType: string(changeType),
		Comment:    reason,
	})
	return TransitionResult{Task: updated, Applied: true}, nil
}

// MarkOverdue flips the derived overdue marker. The history entry keeps
// old and new status equal so the chain stays contiguous. Idempotent.
func (s *Service) MarkOverdue(ctx context.Context, tenantID, taskID string) error {
	t, err := s.store.GetTask(ctx, tenantID, taskID)
	if err != nil {
		return err
	}
	if t.Overdue || (t.Status != StatusInProgress && t.Status != StatusPendingReview) {
		return nil
	}

	status := t.Status
	entry := HistoryEntry{
		TaskID:       taskID,
		OldStatus:    &status,
		NewStatus:    status,
		ChangeType:   ChangeAutoOverdue,
		ChangeReason: "due date passed",
	}
	updated, err := s.store.MarkOverdue(ctx, tenantID, entry)
	if err != nil {
		return err
	}

	s.publish(ctx, events.Event{
		Kind:       events.KindTaskOverdue,
		TenantID:   tenantID,
		TaskID:     taskID,
		TaskTitle:  updated.Title,
		AssigneeID: updated.AssigneeID,
		ToStatus:   string(updated.Status),
		DueDate:    updated.DueDate,
	})
	return nil
}

type SweepSummary struct {
	Started  int `json:"started"`
	Reminded int `json:"reminded"`
	Overdue  int `json:"overdue"`
}

// Sweep runs one time-driven pass for a tenant: auto-start tasks whose
// start date passed, remind on approaching due dates, and mark overdue
// tasks past their due date. Called by the jobs scheduler.
func (s *Service) Sweep(ctx context.Context, tenantID string, now time.Time, dueSoonWindow time.Duration) (SweepSummary, error) {
	var summary SweepSummary

	startable, err := s.store.ListAutoStartDue(ctx, tenantID, now)
	if err != nil {
		return summary, err
	}
	for _, t := range startable {
		if _, err := s.RequestTransition(ctx, tenantID, t.ID, StatusInProgress, "", "start date reached", ChangeAutoDue, nil); err != nil {
			continue
		}
		summary.Started++
	}

	dueSoon, err := s.store.ListDueSoon(ctx, tenantID, now, dueSoonWindow)
	if err != nil {
		return summary, err
	}
	for _, t := range dueSoon {
		if err := s.store.MarkDueReminded(ctx, tenantID, t.ID); err != nil {
			continue
		}
		s.publish(ctx, events.Event{
			Kind:       events.KindTaskDueSoon,
			TenantID:   tenantID,
			TaskID:     t.ID,
			TaskTitle:  t.Title,
			AssigneeID: t.AssigneeID,
			DueDate:    t.DueDate,
		})
		summary.Reminded++
	}

	pastDue, err := s.store.ListPastDue(ctx, tenantID, now)
	if err != nil {
		return summary, err
	}
	for _, t := range pastDue {
		if err := s.MarkOverdue(ctx, tenantID, t.ID); err != nil {
			continue
		}
		summary.Overdue++
	}

	return summary, nil
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(ctx, event)
}
