package rbac

const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

// RolePermissions is the default policy.
var RolePermissions = map[string][]string{
	RoleStudent: {
		"course:view",
		"chapter:view",
		"chapter:complete",
		"exam:view",
		"attempt:submit",
		"attempt:view-own",
	},
	RoleTeacher: {
		"course:create",
		"course:view",
		"chapter:view",
		"exam:create",
		"exam:view",
		"attempt:view-all",
		"attempt:grade",
	},
	RoleAdmin: {
		"*", // everything
	},
}

// KnownRole reports whether role has an entry in the default policy.
func KnownRole(role string) bool {
	_, ok := RolePermissions[role]
	return ok
}
