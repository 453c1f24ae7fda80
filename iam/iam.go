// Package iam implements spec.md's access-control hierarchy: ROOT/
// NAMESPACE/DATABASE principals (DEFINE USER) carry casbin-managed roles
// that gate which namespace/database/table a statement may even reach,
// and within a reachable table, per-record visibility is governed by the
// table/field's own DEFINE TABLE/FIELD PERMISSIONS clause — a Full grant,
// an outright None, or a Specific(expr) evaluated per record with $auth
// bound to the caller. Both checks are combined behind one exec.Hooks-
// compatible closure per authenticated principal, the shape the teacher's
// own authz/rbac package wraps around its casbin.Enforcer.
package iam

import (
	"context"
	"sync"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/cockroachdb/errors"

	"github.com/forbearing/stratadb/catalog"
	"github.com/forbearing/stratadb/eval"
	"github.com/forbearing/stratadb/exec"
	"github.com/forbearing/stratadb/kerr"
	"github.com/forbearing/stratadb/value"
)

// rbacModel is the casbin RBAC model text: a principal (sub) requests an
// action (act) against a "ns:db:table" resource (obj); g grants role
// membership; the matcher gives the built-in "admin" role an unconditional
// bypass, the same admin-bypass idiom the teacher's own model uses.
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
m = g(r.sub, "admin") || (g(r.sub, p.sub) && keyMatch2(r.obj, p.obj) && r.act == p.act)
`

// Principal is the authenticated identity a checked statement runs as.
type Principal struct {
	Name      string
	Level     catalog.AccessLevel
	Namespace string
	Database  string
}

// Checker owns one casbin.Enforcer governing ROOT/NAMESPACE/DATABASE
// scope access, long-lived across statements the way its role/policy
// grants are. Per-table PERMISSIONS clauses, by contrast, must be read
// through whichever catalog.Store wraps the calling statement's own
// kv.Transaction (catalog.Store is transaction-scoped, not a standalone
// handle), so Allow/Hooks take one in per call rather than Checker
// owning one itself.
type Checker struct {
	mu       sync.RWMutex
	enforcer *casbin.Enforcer
}

func New() (*Checker, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, err
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, err
	}
	return &Checker{enforcer: e}, nil
}

// AssignRole grants subject (a DEFINE USER name) membership in role.
// "admin" is the reserved role name the matcher bypasses every scope
// check for, mirroring a ROOT-level user's unconditional authority.
func (c *Checker) AssignRole(subject, role string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.enforcer.AddRoleForUser(subject, role)
	return err
}

func (c *Checker) UnassignRole(subject, role string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.enforcer.DeleteRoleForUser(subject, role)
	return err
}

// GrantScope allows role to act (select/create/update/delete) against
// resource, a "ns:db:table" string built by ScopeResource ("*" in any
// position matches every namespace/database/table, via casbin's
// keyMatch2 wildcard matcher).
func (c *Checker) GrantScope(role, resource, action string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.enforcer.AddPolicy(role, resource, action)
	return err
}

func (c *Checker) RevokeScope(role, resource, action string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.enforcer.RemovePolicy(role, resource, action)
	return err
}

// ScopeResource builds the "ns:db:table" resource string GrantScope's
// policies and Allow's requests are matched against.
func ScopeResource(ns, db, table string) string {
	return ns + ":" + db + ":" + table
}

func verbAction(verb exec.Verb) string {
	switch verb {
	case exec.VerbCreate:
		return "create"
	case exec.VerbUpdate:
		return "update"
	case exec.VerbDelete:
		return "delete"
	default:
		return "select"
	}
}

// Allow is the full access decision for one record under one Principal:
// ROOT always passes; a NAMESPACE/DATABASE user must first clear the
// casbin scope check (is this role even permitted verb on ns:db:table),
// then the table's own PERMISSIONS clause for verb, evaluated against
// rec with $auth bound to p. cat must wrap the same transaction the
// calling statement is running in.
func (c *Checker) Allow(ctx context.Context, cat *catalog.Store, p Principal, verb exec.Verb, ns, db, table string, rec value.Value) (bool, error) {
	if p.Level == catalog.LevelRoot {
		return true, nil
	}
	c.mu.RLock()
	scopeOK, err := c.enforcer.Enforce(p.Name, ScopeResource(ns, db, table), verbAction(verb))
	c.mu.RUnlock()
	if err != nil {
		return false, err
	}
	if !scopeOK {
		return false, nil
	}
	t, err := cat.GetTable(ctx, ns, db, table)
	if err != nil {
		if errors.Is(err, kerr.ErrTbNotFound) {
			return true, nil
		}
		return false, err
	}
	return c.evalPerm(ctx, perm(t.Permissions, verb), p, rec)
}

func perm(perms catalog.Permissions, verb exec.Verb) catalog.Perm {
	switch verb {
	case exec.VerbCreate:
		return perms.Create
	case exec.VerbUpdate:
		return perms.Update
	case exec.VerbDelete:
		return perms.Delete
	default:
		return perms.Select
	}
}

func (c *Checker) evalPerm(ctx context.Context, pm catalog.Perm, p Principal, rec value.Value) (bool, error) {
	if pm.IsNone() {
		return false, nil
	}
	if pm.Full {
		return true, nil
	}
	env := &eval.Env{
		Arena: pm.Expr.Arena(),
		Doc:   rec,
		Vars:  map[string]value.Value{"auth": principalValue(p)},
	}
	v, err := eval.Eval(env, pm.Expr.Root())
	if err != nil {
		return false, err
	}
	return v.Truthy(), nil
}

func principalValue(p Principal) value.Value {
	obj := value.NewObject()
	obj.Set("name", value.String(p.Name))
	obj.Set("namespace", value.String(p.Namespace))
	obj.Set("database", value.String(p.Database))
	return value.ObjectVal(obj)
}

// Hooks builds the exec.Hooks.CheckPermission closure for one principal's
// statement run against cat (wrapping that statement's own transaction),
// the shape exec imports without ever depending on iam itself.
func (c *Checker) Hooks(cat *catalog.Store, p Principal) func(ctx context.Context, verb exec.Verb, ns, db, table string, rec value.Value) (bool, error) {
	return func(ctx context.Context, verb exec.Verb, ns, db, table string, rec value.Value) (bool, error) {
		return c.Allow(ctx, cat, p, verb, ns, db, table, rec)
	}
}
