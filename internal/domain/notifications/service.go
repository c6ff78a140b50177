package notifications

import (
	"context"
	"fmt"
	"log/slog"

	"hrflow/internal/domain/events"
)

type Mailer interface {
	Send(ctx context.Context, from, to, subject, body string) error
}

type Service struct {
	store       StoreAPI
	Mailer      Mailer
	DefaultFrom string
}

func New(store StoreAPI, mailer Mailer) *Service {
	return &Service{store: store, Mailer: mailer, DefaultFrom: "no-reply@example.com"}
}

// Notify records an in-app notification and optionally mirrors it to
// email. Delivery is best-effort: failures are logged, never returned,
// so a failing dispatch can not roll back the change that caused it.
func (s *Service) Notify(ctx context.Context, tenantID, userID string, ntype Type, title, body string) {
	if userID == "" || !ntype.Valid() {
		return
	}
	if err := s.store.CreateNotification(ctx, tenantID, userID, ntype, title, body); err != nil {
		slog.Warn("notification store failed", "type", ntype, "userId", userID, "err", err)
		return
	}

	if s.Mailer == nil {
		return
	}
	enabled, from, err := s.store.EmailSettings(ctx, tenantID)
	if err != nil || !enabled {
		return
	}
	if from == "" {
		from = s.DefaultFrom
	}

	email, err := s.store.UserEmail(ctx, tenantID, userID)
	if err != nil {
		slog.Warn("notification email lookup failed", "err", err)
		return
	}
	if email == "" {
		return
	}
	if err := s.Mailer.Send(ctx, from, email, title, body); err != nil {
		slog.Warn("notification email send failed", "err", err)
	}
}

// HandleEvent maps workflow events to their fixed notification types.
// Registered as a bus subscriber.
func (s *Service) HandleEvent(ctx context.Context, e events.Event) {
	switch e.Kind {
	case events.KindTaskDueSoon:
		body := fmt.Sprintf("Task %q is approaching its due date.", e.TaskTitle)
		if e.DueDate != nil {
			body = fmt.Sprintf("Task %q is due on %s.", e.TaskTitle, e.DueDate.Format("2006-01-02"))
		}
		s.Notify(ctx, e.TenantID, e.AssigneeID, TypeDueReminder, "Task due soon", body)

	case events.KindTaskOverdue:
		s.Notify(ctx, e.TenantID, e.AssigneeID, TypeOverdueAlert, "Task overdue",
			fmt.Sprintf("Task %q has passed its due date.", e.TaskTitle))

	case events.KindApprovalRequested:
		approvers, err := s.store.ApproverUserIDs(ctx, e.TenantID)
		if err != nil {
			slog.Warn("approver lookup failed", "err", err)
			return
		}
		body := fmt.Sprintf("A %s change from %s to %s awaits your decision.", e.SubjectType, e.FromStatus, e.ToStatus)
		for _, userID := range approvers {
			if userID == e.RequesterID {
				continue
			}
			s.Notify(ctx, e.TenantID, userID, TypePendingApproval, "Approval requested", body)
		}

	case events.KindApprovalDecided:
		body := fmt.Sprintf("Your %s request was decided: %s.", e.SubjectType, e.Decision)
		if e.Comment != "" {
			body += " Comment: " + e.Comment
		}
		s.Notify(ctx, e.TenantID, e.RequesterID, TypeApprovalResult, "Approval decided", body)
	}
}

func (s *Service) ListUnread(ctx context.Context, tenantID, userID string, limit, offset int) ([]Notification, error) {
	return s.store.ListUnread(ctx, tenantID, userID, limit, offset)
}

func (s *Service) CountUnread(ctx context.Context, tenantID, userID string) (int, error) {
	return s.store.CountUnread(ctx, tenantID, userID)
}

// MarkRead is idempotent: re-reading an already read notification keeps
// its original read timestamp.
func (s *Service) MarkRead(ctx context.Context, tenantID, userID, notificationID string) error {
	return s.store.MarkRead(ctx, tenantID, userID, notificationID)
}

// MarkAllRead marks the rows unread at call time; notifications created
// afterwards are untouched.
func (s *Service) MarkAllRead(ctx context.Context, tenantID, userID string) (int64, error) {
	return s.store.MarkAllRead(ctx, tenantID, userID)
}

func (s *Service) GetSettings(ctx context.Context, tenantID string) (bool, string, error) {
	return s.store.EmailSettings(ctx, tenantID)
}

func (s *Service) UpdateSettings(ctx context.Context, tenantID string, enabled bool, from string) error {
	return s.store.UpdateSettings(ctx, tenantID, enabled, from)
}
