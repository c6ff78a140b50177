package notifications

// Type is the closed set of notification kinds the engine produces.
type Type string

const (
	TypeDueReminder     Type = "due_reminder"
	TypeOverdueAlert    Type = "overdue_alert"
	TypePendingApproval Type = "pending_approval"
	TypeApprovalResult  Type = "approval_result"
)

func (t Type) Valid() bool {
	switch t {
	case TypeDueReminder, TypeOverdueAlert, TypePendingApproval, TypeApprovalResult:
		return true
	}
	return false
}
