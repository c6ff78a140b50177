package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindTransitionApplied Kind = "transition_applied"
	KindTaskDueSoon       Kind = "task_due_soon"
	KindTaskOverdue       Kind = "task_overdue"
	KindApprovalRequested Kind = "approval_requested"
	KindApprovalDecided   Kind = "approval_decided"
)

// Event describes an engine outcome published after the triggering
// transaction committed. Fields are populated per kind; consumers must
// treat absent fields as empty.
type Event struct {
	ID          string
	Kind        Kind
	TenantID    string
	TaskID      string
	TaskTitle   string
	AssigneeID  string
	SubjectType string
	SubjectID   string
	RequestID   string
	RequesterID string
	DeciderID   string
	Decision    string
	FromStatus  string
	ToStatus    string
	ChangeType  string
	Comment     string
	DueDate     *time.Time
	OccurredAt  time.Time
}

type Handler func(ctx context.Context, event Event)

// Bus fans events out to subscribers synchronously. A subscriber that
// fails must log and swallow its own error; nothing a subscriber does can
// affect the publishing operation.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
}

func NewBus() *Bus {
	return &Bus{}
}

func (b *Bus) Subscribe(handler Handler) {
	if handler == nil {
		return
	}
	b.mu.Lock()
	b.handlers = append(b.handlers, handler)
	b.mu.Unlock()
}

func (b *Bus) Publish(ctx context.Context, event Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, handler := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Warn("event handler panicked", "kind", event.Kind, "recover", r)
				}
			}()
			handler(ctx, event)
		}()
	}
}
