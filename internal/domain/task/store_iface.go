package task

import (
	"context"
	"time"
)

type StoreAPI interface {
	CreateTask(ctx context.Context, tenantID string, t Task, entry HistoryEntry) (Task, error)
	GetTask(ctx context.Context, tenantID, taskID string) (Task, error)
	ListTasks(ctx context.Context, tenantID, assigneeID string, limit, offset int) ([]Task, int, error)
	ApplyTransition(ctx context.Context, tenantID string, entry HistoryEntry, clearOverdue bool) (Task, error)
	MarkOverdue(ctx context.Context, tenantID string, entry HistoryEntry) (Task, error)
	History(ctx context.Context, tenantID, taskID string) ([]HistoryEntry, error)
	ListAutoStartDue(ctx context.Context, tenantID string, now time.Time) ([]Task, error)
	ListDueSoon(ctx context.Context, tenantID string, now time.Time, window time.Duration) ([]Task, error)
	ListPastDue(ctx context.Context, tenantID string, now time.Time) ([]Task, error)
	MarkDueReminded(ctx context.Context, tenantID, taskID string) error
}
