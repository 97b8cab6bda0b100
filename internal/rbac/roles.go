package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	// RoleOperator may read stats and trigger export runs.
	RoleOperator = "operator"
	// RoleViewer may only read.
	RoleViewer = "viewer"
)

func IsKnownRole(role string) bool {
	switch role {
	case RoleOperator, RoleViewer:
		return true
	default:
		return false
	}
}
