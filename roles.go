package authflow

// RoleValidator defines the interface for role-based access checks the
// screens can perform against the current session user.
type RoleValidator interface {
	// CanRead checks if the role can read workshop records
	CanRead() bool

	// CanEdit checks if the role can edit workshop records
	CanEdit() bool

	// CanCreate checks if the role can create workshop records
	CanCreate() bool

	// CanDelete checks if the role can delete workshop records
	CanDelete() bool

	// IsAtLeast checks if the role is at least the minimum required role
	IsAtLeast(minRole UserRole) bool
}

// RoleChecker wraps a UserRole with capability predicates.
type RoleChecker struct {
	Role UserRole
}

var _ RoleValidator = RoleChecker{}

// ParseRole validates a raw role string
func ParseRole(raw string) (UserRole, bool) {
	switch raw {
	case RoleTechnician, RoleSupervisor, RoleAdmin:
		return raw, true
	default:
		return "", false
	}
}

// IsValidRole checks if the role is one of the predefined valid roles
func IsValidRole(r UserRole) bool {
	_, ok := ParseRole(r)
	return ok
}

// CanRead checks if this role can read records
func (r RoleChecker) CanRead() bool {
	switch r.Role {
	case RoleTechnician, RoleSupervisor, RoleAdmin:
		return true
	default:
		return false
	}
}

// CanEdit checks if this role can edit records
func (r RoleChecker) CanEdit() bool {
	switch r.Role {
	case RoleTechnician, RoleSupervisor, RoleAdmin:
		return true
	default:
		return false
	}
}

// CanCreate checks if this role can create records
func (r RoleChecker) CanCreate() bool {
	switch r.Role {
	case RoleSupervisor, RoleAdmin:
		return true
	default:
		return false
	}
}

// CanDelete checks if this role can delete records
func (r RoleChecker) CanDelete() bool {
	return r.Role == RoleAdmin
}

// IsAtLeast checks if the role is at least the minimum required role
func (r RoleChecker) IsAtLeast(minRole UserRole) bool {
	return roleRank(r.Role) >= roleRank(minRole)
}

func roleRank(r UserRole) int {
	switch r {
	case RoleTechnician:
		return 1
	case RoleSupervisor:
		return 2
	case RoleAdmin:
		return 3
	default:
		return 0
	}
}
