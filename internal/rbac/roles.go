package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	// RoleAdmin may manage scenarios, questions and numbers, and read results.
	RoleAdmin = "admin"
	// RoleViewer may read call results and exports only.
	RoleViewer = "viewer"
)

func IsAdmin(role string) bool { return role == RoleAdmin }
