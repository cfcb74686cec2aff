package rbac

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/transconnect-go/pkg/database"
	"github.com/transconnect-go/pkg/logger"
)

// Capabilities are granted to roles, never to individual users.
const modelText = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && r.obj == p.obj && r.act == p.act
`

const (
	ObjectUsers     = "users"
	ObjectResources = "resources"
	ObjectTypes     = "types"
)

const (
	ActionAssignRole = "assign_role"
	ActionApprove    = "approve"
	ActionCreate     = "create"
)

// DefaultPolicies are seeded into an empty policy store.
var DefaultPolicies = [][]string{
	{"ADMIN", ObjectUsers, ActionAssignRole},
	{"ADMIN", ObjectResources, ActionApprove},
	{"ADMIN", ObjectTypes, ActionCreate},
}

// Enforcer answers role capability questions.
type Enforcer struct {
	enforcer *casbin.Enforcer
	logger   logger.Logger
}

// NewEnforcer persists policies through gorm. A nil db keeps them in
// memory only.
func NewEnforcer(db *database.DB, log logger.Logger) (*Enforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rbac model: %w", err)
	}

	var e *casbin.Enforcer
	if db != nil {
		adapter, err := gormadapter.NewAdapterByDB(db.DB)
		if err != nil {
			return nil, fmt.Errorf("failed to create adapter: %w", err)
		}
		e, err = casbin.NewEnforcer(m, adapter)
		if err != nil {
			return nil, fmt.Errorf("failed to create enforcer: %w", err)
		}
		e.EnableAutoSave(true)
	} else {
		e, err = casbin.NewEnforcer(m)
		if err != nil {
			return nil, fmt.Errorf("failed to create enforcer: %w", err)
		}
	}
	e.EnableLog(false)

	enforcer := &Enforcer{enforcer: e, logger: log}
	if err := enforcer.seed(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func (e *Enforcer) seed() error {
	policies, err := e.enforcer.GetPolicy()
	if err != nil {
		return fmt.Errorf("failed to read policy: %w", err)
	}
	if len(policies) > 0 {
		return nil
	}

	e.logger.Info("Seeding default capability policy", "rules", len(DefaultPolicies))
	if _, err := e.enforcer.AddPolicies(DefaultPolicies); err != nil {
		return fmt.Errorf("failed to seed policy: %w", err)
	}
	return nil
}

// Can reports whether role may perform action on object.
func (e *Enforcer) Can(role, object, action string) (bool, error) {
	allowed, err := e.enforcer.Enforce(role, object, action)
	if err != nil {
		e.logger.Error("Failed to check capability", "error", err, "role", role, "object", object, "action", action)
		return false, err
	}

	e.logger.Debug("Capability check", "role", role, "object", object, "action", action, "allowed", allowed)
	return allowed, nil
}

// Grant adds a capability to a role.
func (e *Enforcer) Grant(role, object, action string) error {
	added, err := e.enforcer.AddPolicy(role, object, action)
	if err != nil {
		return fmt.Errorf("failed to add capability: %w", err)
	}
	if !added {
		e.logger.Warn("Capability already granted", "role", role, "object", object, "action", action)
	}
	return nil
}

// Revoke removes a capability from a role.
func (e *Enforcer) Revoke(role, object, action string) error {
	if _, err := e.enforcer.RemovePolicy(role, object, action); err != nil {
		return fmt.Errorf("failed to remove capability: %w", err)
	}
	return nil
}
