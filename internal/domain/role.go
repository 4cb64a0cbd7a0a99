package domain

import (
	"encoding/json"
	"fmt"
)

// Role is the closed set of account roles. The zero value is not a valid role.
type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
	RoleStoreOwner Role = "storeowner"
	RoleGuest      Role = "guest"
)

var roles = map[Role]struct{}{
	RoleUser:       {},
	RoleAdmin:      {},
	RoleSuperAdmin: {},
	RoleStoreOwner: {},
	RoleGuest:      {},
}

// ParseRole converts s into a Role, rejecting anything outside the closed set.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if _, ok := roles[r]; !ok {
		return "", fmt.Errorf("unknown role %q: %w", s, ErrBadRequest)
	}
	return r, nil
}

func (r Role) Valid() bool {
	_, ok := roles[r]
	return ok
}

func (r Role) String() string { return string(r) }

func (r *Role) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// CanManageUsers reports whether r may list and create accounts.
func (r Role) CanManageUsers() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// CanDeleteUsers reports whether r may delete arbitrary accounts through /users.
func (r Role) CanDeleteUsers() bool {
	return r == RoleSuperAdmin
}

// CanManageStores reports whether r may create and delete stores.
func (r Role) CanManageStores() bool {
	return r == RoleSuperAdmin
}

// CanOwnStores reports whether a store may be assigned to an account with role r.
func (r Role) CanOwnStores() bool {
	return r == RoleStoreOwner
}

// CanAssignRole reports whether r may create an account with role target.
// Nobody creates super admins or guests through the API.
func (r Role) CanAssignRole(target Role) bool {
	if !r.CanManageUsers() {
		return false
	}
	switch target {
	case RoleUser, RoleAdmin, RoleStoreOwner:
		return true
	}
	return false
}

// Deletable reports whether an account with role r may be removed by an administrator.
func (r Role) Deletable() bool {
	return r != RoleSuperAdmin
}
