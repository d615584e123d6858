package routegroups

import (
	"net/http"

	"truthlink/core/rbac"
)

// Guards bundles the session and permission middleware the route
// groups wrap every investigator handler with.
type Guards struct {
	Session    func(http.HandlerFunc) http.HandlerFunc
	Permission func(rbac.Permission) func(http.HandlerFunc) http.HandlerFunc
}

// SessionPerm requires a valid session and the given permission.
func (g Guards) SessionPerm(perm rbac.Permission, h http.HandlerFunc) http.HandlerFunc {
	return g.Session(g.Permission(perm)(h))
}
