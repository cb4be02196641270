package roles

import (
	"slices"
	"sort"
	"strings"
	"time"
)

// Role names seeded at first boot.
const (
	RoleAdmin      = "admin"
	RoleSupervisor = "supervisor"
	RoleCashier    = "cashier"
)

// Actions used across the fund administration modules.
const (
	ActionRead       = "read"
	ActionCreate     = "create"
	ActionUpdate     = "update"
	ActionDelete     = "delete"
	ActionLockUnlock = "lock_unlock"
	ActionApprove    = "approve"
	ActionManage     = "manage"
)

// PermissionSet maps a module name to the actions a role may perform in it. Order of actions is
// irrelevant. A module with no entry grants nothing.
type PermissionSet map[string][]string

// Allows reports whether action is explicitly granted for module.
func (p PermissionSet) Allows(module, action string) bool {
	actions, ok := p[module]
	if !ok {
		return false
	}
	return slices.Contains(actions, action)
}

// HasModule reports whether module has any entry at all.
func (p PermissionSet) HasModule(module string) bool {
	_, ok := p[module]
	return ok
}

// Clone returns a deep copy with actions de-duplicated and sorted.
func (p PermissionSet) Clone() PermissionSet {
	if p == nil {
		return nil
	}
	out := make(PermissionSet, len(p))
	for module, actions := range p {
		cp := make([]string, 0, len(actions))
		for _, a := range actions {
			if !slices.Contains(cp, a) {
				cp = append(cp, a)
			}
		}
		sort.Strings(cp)
		out[module] = cp
	}
	return out
}

// Equal compares two sets ignoring action order.
func (p PermissionSet) Equal(other PermissionSet) bool {
	a, b := p.Clone(), other.Clone()
	if len(a) != len(b) {
		return false
	}
	for module, actions := range a {
		if !slices.Equal(actions, b[module]) {
			return false
		}
	}
	return true
}

// Role is a named permission bundle. A principal's effective permissions are exactly its role's.
type Role struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	DisplayName string        `json:"displayName"`
	IsActive    bool          `json:"isActive"`
	Permissions PermissionSet `json:"permissions"`
	CreatedAt   time.Time     `json:"createdAt,omitempty"`
	UpdatedAt   time.Time     `json:"updatedAt,omitempty"`
}

// NormalizeName lower-cases and trims a role name for comparison.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// IsAdmin reports whether the role is the dedicated administrator role.
func (r *Role) IsAdmin() bool {
	return r != nil && NormalizeName(r.Name) == RoleAdmin
}

// DefaultRoles returns the roles seeded on first boot.
func DefaultRoles() []*Role {
	all := []string{ActionRead, ActionCreate, ActionUpdate, ActionDelete}
	return []*Role{
		{
			Name:        RoleAdmin,
			DisplayName: "Administrator",
			IsActive:    true,
			Permissions: PermissionSet{
				"users":         append(slices.Clone(all), ActionLockUnlock),
				"roles":         slices.Clone(all),
				"organizations": append(slices.Clone(all), ActionManage),
				"branches":      slices.Clone(all),
				"transactions":  append(slices.Clone(all), ActionApprove),
				"receipts":      slices.Clone(all),
				"reports":       {ActionRead},
				"audit":         {ActionRead},
			},
		},
		{
			Name:        RoleSupervisor,
			DisplayName: "Supervisor",
			IsActive:    true,
			Permissions: PermissionSet{
				"users":        {ActionRead},
				"branches":     {ActionRead},
				"transactions": {ActionRead, ActionCreate, ActionUpdate, ActionApprove},
				"receipts":     {ActionRead, ActionCreate},
				"reports":      {ActionRead},
			},
		},
		{
			Name:        RoleCashier,
			DisplayName: "Cashier",
			IsActive:    true,
			Permissions: PermissionSet{
				"transactions": {ActionRead, ActionCreate},
				"receipts":     {ActionRead, ActionCreate},
			},
		},
	}
}
