package rbac

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

type Permission = string

// Permissions understood by the route guards.
const (
	PermReportsView   Permission = "reports.view"
	PermReportsUpdate Permission = "reports.update"
	PermEvidenceView  Permission = "evidence.view"
	PermAuditView     Permission = "audit.view"
	PermAccountsView  Permission = "accounts.view"
)

const modelText = `
[request_definition]
r = sub, obj

[policy_definition]
p = sub, obj

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.obj == p.obj
`

// Policy maps role names to permissions. Roles come from the session
// record; the permission check happens server-side on every guarded
// route regardless of what the front end routes to.
type Policy struct {
	enforcer *casbin.Enforcer
}

func NewPolicy() (*Policy, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, fmt.Errorf("rbac model: %w", err)
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("rbac enforcer: %w", err)
	}
	rules := [][]string{
		{"investigator", PermReportsView},
		{"investigator", PermReportsUpdate},
		{"investigator", PermEvidenceView},
		{"admin", PermAuditView},
		{"admin", PermAccountsView},
	}
	if _, err := e.AddPolicies(rules); err != nil {
		return nil, fmt.Errorf("rbac policies: %w", err)
	}
	// Admins carry every investigator permission.
	if _, err := e.AddGroupingPolicy("admin", "investigator"); err != nil {
		return nil, fmt.Errorf("rbac grouping: %w", err)
	}
	return &Policy{enforcer: e}, nil
}

// Allowed reports whether any of the roles grants the permission.
func (p *Policy) Allowed(roles []string, perm Permission) bool {
	if p == nil || p.enforcer == nil {
		return false
	}
	for _, role := range roles {
		ok, err := p.enforcer.Enforce(role, string(perm))
		if err == nil && ok {
			return true
		}
	}
	return false
}
