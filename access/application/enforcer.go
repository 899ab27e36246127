package application

import (
	"fmt"

	"github.com/AzielCF/az-admin/access/domain"
	pkgError "github.com/AzielCF/az-admin/pkg/error"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/sirupsen/logrus"
)

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.obj == p.obj && r.act == p.act
`

// capabilityObject is the single object every capability policy targets.
const capabilityObject = "admin"

// Enforcer evaluates role capabilities with casbin RBAC. Role inheritance is
// master > admin > moderator; plain users hold no admin capabilities.
type Enforcer struct {
	enforcer *casbin.SyncedEnforcer
}

func NewEnforcer() (*Enforcer, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("failed to load casbin model: %w", err)
	}

	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}

	for role, caps := range domain.Grants {
		for _, c := range caps {
			if _, err := enforcer.AddPolicy(string(role), capabilityObject, string(c)); err != nil {
				return nil, fmt.Errorf("failed to add policy %s/%s: %w", role, c, err)
			}
		}
	}
	for child, parent := range domain.Inherits {
		if _, err := enforcer.AddGroupingPolicy(string(child), string(parent)); err != nil {
			return nil, fmt.Errorf("failed to add role inheritance %s -> %s: %w", child, parent, err)
		}
	}

	return &Enforcer{enforcer: enforcer}, nil
}

// MustNewEnforcer panics when the built-in policy cannot be loaded.
func MustNewEnforcer() *Enforcer {
	e, err := NewEnforcer()
	if err != nil {
		panic(err)
	}
	return e
}

func (e *Enforcer) HasCapability(role domain.Role, capability domain.Capability) bool {
	if !role.Valid() {
		return false
	}
	ok, err := e.enforcer.Enforce(string(role), capabilityObject, string(capability))
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"role":       role,
			"capability": capability,
		}).Error("[ACCESS] enforcement failed")
		return false
	}
	return ok
}

// Require returns an AuthorizationError when role lacks capability.
func (e *Enforcer) Require(role domain.Role, capability domain.Capability) error {
	if e.HasCapability(role, capability) {
		return nil
	}
	return pkgError.AuthorizationError(fmt.Sprintf("role %q lacks capability %q", role, capability))
}

// Capabilities lists everything role may do, inherited grants included.
func (e *Enforcer) Capabilities(role domain.Role) []domain.Capability {
	var out []domain.Capability
	for _, r := range domain.Roles {
		for _, c := range domain.Grants[r] {
			if e.HasCapability(role, c) {
				out = append(out, c)
			}
		}
	}
	return out
}
