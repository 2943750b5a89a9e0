package auth

// Roles accepted by the notification API. Services create and manage
// notifications on behalf of their users; admins additionally read stats and
// resend failures.
const (
	RoleAdmin   = "admin"
	RoleService = "service"
)

// validRole reports whether the role grants any API access at all.
func validRole(role string) bool {
	return role == RoleAdmin || role == RoleService
}
