package model

// Permission represents a string code for a specific system action.
type Permission string

const (
	// PermissionAttemptsReview allows reading and exporting any student's attempt review.
	PermissionAttemptsReview Permission = "attempts:review"

	// PermissionTemplatesRefresh allows rebuilding a template's cached bundle.
	PermissionTemplatesRefresh Permission = "templates:refresh"
)

// AllPermissions lists every permission code, for token issuing tools.
var AllPermissions = []Permission{
	PermissionAttemptsReview,
	PermissionTemplatesRefresh,
}
