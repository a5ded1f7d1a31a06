package auth

const (
	RoleEmployee = "employee"
	RoleManager  = "manager"
	RoleHR       = "hr"
	RoleAdmin    = "admin"
)

const (
	PermLeaveRead        = "leave.read"
	PermLeaveWrite       = "leave.write"
	PermLeaveApprove     = "leave.approve"
	PermLeaveReadAll     = "leave.read_all"
	PermBalanceManage    = "leave.balance.manage"
	PermAttendanceWrite  = "attendance.write"
	PermAttendanceRead   = "attendance.read"
	PermAttendanceManage = "attendance.manage"
	PermPolicyRead       = "policy.read"
	PermPolicyManage     = "policy.manage"
	PermReportsRead      = "reports.read"
	PermAuditRead        = "audit.read"
)

var RolePermissions = map[string][]string{
	RoleEmployee: {
		PermLeaveRead,
		PermLeaveWrite,
		PermAttendanceWrite,
		PermAttendanceRead,
		PermPolicyRead,
	},
	RoleManager: {
		PermLeaveRead,
		PermLeaveWrite,
		PermAttendanceWrite,
		PermAttendanceRead,
		PermPolicyRead,
		PermReportsRead,
	},
	RoleHR: {
		PermLeaveRead,
		PermLeaveWrite,
		PermLeaveApprove,
		PermLeaveReadAll,
		PermBalanceManage,
		PermAttendanceWrite,
		PermAttendanceRead,
		PermAttendanceManage,
		PermPolicyRead,
		PermPolicyManage,
		PermReportsRead,
		PermAuditRead,
	},
	RoleAdmin: {
		PermLeaveRead,
		PermLeaveWrite,
		PermLeaveApprove,
		PermLeaveReadAll,
		PermBalanceManage,
		PermAttendanceWrite,
		PermAttendanceRead,
		PermAttendanceManage,
		PermPolicyRead,
		PermPolicyManage,
		PermReportsRead,
		PermAuditRead,
	},
}

func ValidRole(role string) bool {
	_, ok := RolePermissions[role]
	return ok
}

func HasPermission(role, permission string) bool {
	for _, p := range RolePermissions[role] {
		if p == permission {
			return true
		}
	}
	return false
}
