package task

type Status string

const (
	StatusNew           Status = "new"
	StatusInProgress    Status = "in_progress"
	StatusPendingReview Status = "pending_review"
	StatusOnHold        Status = "on_hold"
	StatusCompleted     Status = "completed"
	StatusCancelled     Status = "cancelled"
)

// Overdue is a derived marker on the task row, not a status value. It is
// only meaningful while the task is in_progress or pending_review.

type ChangeType string

const (
	ChangeManual          ChangeType = "manual"
	ChangeAutoDue         ChangeType = "auto_due"
	ChangeAutoOverdue     ChangeType = "auto_overdue"
	ChangeApproval        ChangeType = "approval"
	ChangeRejection       ChangeType = "rejection"
	ChangeRevisionRequest ChangeType = "revision_request"
)

func ParseStatus(value string) (Status, bool) {
	switch Status(value) {
	case StatusNew, StatusInProgress, StatusPendingReview, StatusOnHold, StatusCompleted, StatusCancelled:
		return Status(value), true
	}
	return "", false
}

func (s Status) Valid() bool {
	_, ok := ParseStatus(string(s))
	return ok
}

func (c ChangeType) Valid() bool {
	switch c {
	case ChangeManual, ChangeAutoDue, ChangeAutoOverdue, ChangeApproval, ChangeRejection, ChangeRevisionRequest:
		return true
	}
	return false
}

// System returns true for change types produced by the scheduler rather
// than a human actor.
func (c ChangeType) System() bool {
	return c == ChangeAutoDue || c == ChangeAutoOverdue
}
