package authz

import "fmt"

// Role identifies the closed set of principal roles the engine recognises.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleTrainer   Role = "trainer"
	RoleMember    Role = "member"
	RoleAnonymous Role = "anonymous"
)

// Operation distinguishes reads from writes for capability lookups.
type Operation string

const (
	OpRead  Operation = "read"
	OpWrite Operation = "write"
)

// Resource names the kinds of records the guard protects. Capability sets are
// per resource kind, not per instance, except where a rule is scoped to the
// principal's own record.
type Resource string

const (
	ResourceSession   Resource = "session"
	ResourceBooking   Resource = "booking"
	ResourceProfile   Resource = "profile"
	ResourceAnalytics Resource = "analytics"
)

// Principal is the acting identity for authorization decisions. SubjectID is
// empty for anonymous principals.
type Principal struct {
	SubjectID string
	Role      Role
}

// IsAdmin reports whether the principal carries the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	Reason  string
}

// capability describes what a role may do with one resource kind.
type capability struct {
	read  scope
	write scope
}

type scope int

const (
	scopeNone scope = iota
	scopeOwn
	scopeAny
)

// Guard evaluates the closed role/resource capability table. It is a pure
// decision function: it never performs I/O and always returns a decision for
// recognised roles.
type Guard struct {
	rules map[Role]map[Resource]capability
}

// NewGuard builds the capability table. The table is fixed; an attempt to
// evaluate a role outside the closed set is a configuration error surfaced at
// startup via ValidateRoles, not a per-request condition.
func NewGuard() *Guard {
	return &Guard{
		rules: map[Role]map[Resource]capability{
			RoleAdmin: {
				ResourceSession:   {read: scopeAny, write: scopeAny},
				ResourceBooking:   {read: scopeAny, write: scopeAny},
				ResourceProfile:   {read: scopeAny, write: scopeAny},
				ResourceAnalytics: {read: scopeAny, write: scopeNone},
			},
			RoleTrainer: {
				ResourceSession:   {read: scopeAny, write: scopeAny},
				ResourceBooking:   {read: scopeAny, write: scopeAny},
				ResourceProfile:   {read: scopeAny, write: scopeOwn},
				ResourceAnalytics: {read: scopeAny, write: scopeNone},
			},
			RoleMember: {
				ResourceBooking: {read: scopeOwn, write: scopeNone},
				ResourceProfile: {read: scopeOwn, write: scopeNone},
			},
			RoleAnonymous: {},
		},
	}
}

// ValidateRoles verifies that every supplied role is present in the capability
// table. Configuration wiring calls this at startup so an unrecognised role is
// a fatal startup failure rather than a request-time surprise.
func (g *Guard) ValidateRoles(roles ...Role) error {
	for _, role := range roles {
		if _, ok := g.rules[role]; !ok {
			return fmt.Errorf("authz: unrecognised role %q", role)
		}
	}
	return nil
}

// Authorize decides whether the principal may perform the operation on the
// given resource kind. resourceOwnerID identifies the record owner for rules
// scoped to the principal's own records; pass "" when ownership is not
// meaningful for the resource.
func (g *Guard) Authorize(p Principal, op Operation, res Resource, resourceOwnerID string) Decision {
	if g == nil {
		return Decision{Reason: "authorization guard not configured"}
	}

	caps, ok := g.rules[p.Role]
	if !ok {
		// Unknown roles are rejected outright; ValidateRoles should have
		// caught this during startup.
		return Decision{Reason: fmt.Sprintf("unrecognised role %q", p.Role)}
	}

	capability, ok := caps[res]
	if !ok {
		return Decision{Reason: fmt.Sprintf("role %q has no access to %s records", p.Role, res)}
	}

	var allowed scope
	switch op {
	case OpRead:
		allowed = capability.read
	case OpWrite:
		allowed = capability.write
	default:
		return Decision{Reason: fmt.Sprintf("unrecognised operation %q", op)}
	}

	switch allowed {
	case scopeAny:
		return Decision{Allowed: true}
	case scopeOwn:
		if p.SubjectID != "" && p.SubjectID == resourceOwnerID {
			return Decision{Allowed: true}
		}
		return Decision{Reason: fmt.Sprintf("role %q may only %s its own %s records", p.Role, op, res)}
	default:
		return Decision{Reason: fmt.Sprintf("role %q may not %s %s records", p.Role, op, res)}
	}
}
