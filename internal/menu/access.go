package menu

import "github.com/studiowebux/tablesync/internal/types"

// UserSource returns the logged-in user
type UserSource interface {
	CurrentUser() (types.User, bool)
}

// IsSystemAdmin reports whether user administers the system department
func IsSystemAdmin(user types.User, systemDepartment string) bool {
	if systemDepartment == "" {
		systemDepartment = DefaultSystemDepartment
	}
	return IsDepartmentAdmin(user, systemDepartment)
}

// IsDepartmentAdmin reports whether user administers department
func IsDepartmentAdmin(user types.User, department string) bool {
	for _, d := range user.Departments {
		if d.Admin && d.Name == department {
			return true
		}
	}
	return false
}

// AdminAccess allows system administrators everywhere and department
// administrators on tables scoped to their department
func AdminAccess(user types.User, systemDepartment string) Authorizer {
	return func(_ types.ID, scope string) bool {
		return IsSystemAdmin(user, systemDepartment) || IsDepartmentAdmin(user, scope)
	}
}

// AdminAccessFrom is AdminAccess with the user looked up on every check.
// Without a logged-in user every open is denied.
func AdminAccessFrom(src UserSource, systemDepartment string) Authorizer {
	return func(id types.ID, scope string) bool {
		user, ok := src.CurrentUser()
		if !ok {
			return false
		}
		return AdminAccess(user, systemDepartment)(id, scope)
	}
}
