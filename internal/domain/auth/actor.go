package auth

// Actor is the authenticated principal an operation runs on behalf of.
type Actor struct {
	EmployeeID string
	Role       string
}

func (a Actor) Can(permission string) bool {
	return HasPermission(a.Role, permission)
}

// IsPrivileged reports HR or admin.
func (a Actor) IsPrivileged() bool {
	return a.Role == RoleHR || a.Role == RoleAdmin
}

// CanActFor reports whether a may act on records owned by employeeID.
func (a Actor) CanActFor(employeeID string) bool {
	return a.EmployeeID == employeeID || a.IsPrivileged()
}
