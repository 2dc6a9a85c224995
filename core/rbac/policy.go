package rbac

import (
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

type Permission string

const (
	PermRAATView          Permission = "raat.view"
	PermRAATManage        Permission = "raat.manage"
	PermAttachmentsManage Permission = "raat.attachments.manage"
	PermWorkersView       Permission = "workers.view"
	PermAuditView         Permission = "audit.view"
)

const (
	RoleViewer    = "viewer"
	RoleInspector = "inspector"
	RoleAdmin     = "admin"
)

const rbacModel = `
[request_definition]
r = sub, perm

[policy_definition]
p = sub, perm

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.perm == p.perm
`

// Policy wraps a casbin enforcer over the built-in role hierarchy:
// viewer < inspector < admin. Attachment removal is admin only; a role that
// can merely view incidents never reaches it.
type Policy struct {
	enforcer *casbin.Enforcer
}

func NewPolicy() (*Policy, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, err
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, err
	}
	rules := [][2]string{
		{RoleViewer, string(PermRAATView)},
		{RoleViewer, string(PermWorkersView)},
		{RoleInspector, string(PermRAATManage)},
		{RoleAdmin, string(PermAttachmentsManage)},
		{RoleAdmin, string(PermAuditView)},
	}
	for _, rule := range rules {
		if _, err := e.AddPolicy(rule[0], rule[1]); err != nil {
			return nil, err
		}
	}
	links := [][2]string{
		{RoleInspector, RoleViewer},
		{RoleAdmin, RoleInspector},
	}
	for _, link := range links {
		if _, err := e.AddGroupingPolicy(link[0], link[1]); err != nil {
			return nil, err
		}
	}
	return &Policy{enforcer: e}, nil
}

func (p *Policy) Allowed(roles []string, perm Permission) bool {
	if p == nil {
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
