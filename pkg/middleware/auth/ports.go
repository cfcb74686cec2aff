package auth

// PermissionChecker answers capability questions for a role.
type PermissionChecker interface {
	Can(role, object, action string) (bool, error)
}
