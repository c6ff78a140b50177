package task

import "time"

type Task struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	AssigneeID string     `json:"assigneeId"`
	Status     Status     `json:"status"`
	Progress   int        `json:"progress"`
	Overdue    bool       `json:"overdue"`
	StartDate  *time.Time `json:"startDate,omitempty"`
	DueDate    *time.Time `json:"dueDate,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// HistoryEntry is one accepted change in a task's history chain. Entries
// are append-only; OldStatus is nil only for the creation entry.
type HistoryEntry struct {
	ID           string     `json:"id"`
	TaskID       string     `json:"taskId"`
	OldStatus    *Status    `json:"oldStatus"`
	NewStatus    Status     `json:"newStatus"`
	OldProgress  *int       `json:"oldProgress,omitempty"`
	NewProgress  *int       `json:"newProgress,omitempty"`
	ChangeType   ChangeType `json:"changeType"`
	ChangeReason string     `json:"changeReason,omitempty"`
	ChangedBy    *string    `json:"changedBy,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// TransitionResult reports what RequestTransition did: either the change
// was applied, or it was parked behind a pending approval request.
type TransitionResult struct {
	Task             Task   `json:"task"`
	Applied          bool   `json:"applied"`
	ApprovalRequired bool   `json:"approvalRequired"`
	ApprovalID       string `json:"approvalId,omitempty"`
}
