package auth

// UserContext is the authenticated identity carried on request contexts.
type UserContext struct {
	UserID   string
	TenantID string
	RoleID   string
	RoleName string
}
