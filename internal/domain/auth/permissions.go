package auth

const (
	RoleEmployee    = "employee"
	RoleManager     = "manager"
	RoleHR          = "hr_admin"
	RoleSystemAdmin = "system_admin"
)

const (
	PermTasksRead        = "tasks.read"
	PermTasksWrite       = "tasks.write"
	PermTasksTransition  = "tasks.transition"
	PermWorkflowApprove  = "workflow.approve"
	PermReviewsRead      = "reviews.read"
	PermReviewsWrite     = "reviews.write"
	PermReviewsFinalize  = "reviews.finalize"
	PermReviewsAdmin     = "reviews.admin"
	PermReportsRead      = "reports.read"
	PermAuditRead        = "audit.read"
	PermSystemAdmin      = "admin.system"
	PermNotificationsSet = "notifications.settings"
)

var DefaultPermissions = []string{
	PermTasksRead,
	PermTasksWrite,
	PermTasksTransition,
	PermWorkflowApprove,
	PermReviewsRead,
	PermReviewsWrite,
	PermReviewsFinalize,
	PermReviewsAdmin,
	PermReportsRead,
	PermAuditRead,
	PermSystemAdmin,
	PermNotificationsSet,
}

var RolePermissions = map[string][]string{
	RoleEmployee: {
		PermTasksRead,
		PermTasksWrite,
		PermTasksTransition,
		PermReviewsRead,
		PermReportsRead,
	},
	RoleManager: {
		PermTasksRead,
		PermTasksWrite,
		PermTasksTransition,
		PermWorkflowApprove,
		PermReviewsRead,
		PermReviewsWrite,
		PermReportsRead,
	},
	RoleHR: {
		PermTasksRead,
		PermTasksWrite,
		PermTasksTransition,
		PermWorkflowApprove,
		PermReviewsRead,
		PermReviewsWrite,
		PermReviewsFinalize,
		PermReviewsAdmin,
		PermReportsRead,
		PermAuditRead,
		PermNotificationsSet,
	},
	RoleSystemAdmin: {
		PermSystemAdmin,
	},
}
