package user

import "sort"

// Roles
const (
	RoleAdmin           = "admin"
	RoleProgramDesigner = "program_designer"
	RoleMoneyManager    = "money_manager"
	RoleConsultant      = "consultant"
	RoleContractor      = "contractor"
	RoleParent          = "parent"
	RoleChild           = "child"
	RoleUser            = "user"

	// EffectiveRoleAuto means "derive menus from the user's actual roles".
	EffectiveRoleAuto = "Auto"
)

var (
	AllRoles = []string{
		RoleAdmin,
		RoleProgramDesigner,
		RoleMoneyManager,
		RoleConsultant,
		RoleContractor,
		RoleParent,
		RoleChild,
		RoleUser,
	}

	rolePriorities = map[string]int{
		// Admin: 30
		RoleAdmin: 30,

		// Staff: 29 - 11
		RoleProgramDesigner: 25,
		RoleMoneyManager:    24,
		RoleConsultant:      21,
		RoleContractor:      20,

		// Families: 10 - 1
		RoleParent: 10,
		RoleChild:  5,
		RoleUser:   1,
	}

	Roles = []Role{
		{Name: "User", Value: RoleUser},
		{Name: "Child", Value: RoleChild},
		{Name: "Parent", Value: RoleParent},
		{Name: "Contractor", Value: RoleContractor},
		{Name: "Consultant", Value: RoleConsultant},
		{Name: "Money Manager", Value: RoleMoneyManager},
		{Name: "Program Designer", Value: RoleProgramDesigner},
		{Name: "Admin", Value: RoleAdmin},
	}
)

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func RolePriority(role string) int {
	return rolePriorities[role]
}

func MaxRolePriority(roles []string) int {
	var max int
	for _, role := range roles {
		if RolePriority(role) > max {
			max = RolePriority(role)
		}
	}
	return max
}

// IsValidRole reports whether role is one of AllRoles.
func IsValidRole(role string) bool {
	for _, r := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

// HasRole reports whether usr holds the given role.
// Permission checks are pure functions of the user value; they never consult
// request state.
func HasRole(usr User, role string) bool {
	for _, r := range usr.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether usr holds at least one of the given roles.
// An empty roles list matches any user.
func HasAnyRole(usr User, roles ...string) bool {
	if len(roles) == 0 {
		return true
	}
	for _, role := range roles {
		if HasRole(usr, role) {
			return true
		}
	}
	return false
}

func (u *User) IsAdmin() bool      { return HasRole(*u, RoleAdmin) }
func (u *User) IsContractor() bool { return HasRole(*u, RoleContractor) }
func (u *User) IsParent() bool     { return HasRole(*u, RoleParent) }

// ShowRoleMenu decides whether a role's menu should be displayed for usr.
// effectiveRole narrows an account holding several roles down to one menu set;
// it can never grant a menu the user does not actually have.
func ShowRoleMenu(usr User, effectiveRole, role string) bool {
	if !HasRole(usr, role) {
		return false
	}
	if effectiveRole == "" || effectiveRole == EffectiveRoleAuto {
		return true
	}
	return effectiveRole == role
}

// ShowContractorMenu is the special case for the contractor menu, which is
// displayed to both contractors and admins.
func ShowContractorMenu(usr User, effectiveRole string) bool {
	if !HasAnyRole(usr, RoleContractor, RoleAdmin) {
		return false
	}
	if effectiveRole == "" || effectiveRole == EffectiveRoleAuto {
		return true
	}
	return effectiveRole == RoleContractor || effectiveRole == RoleAdmin
}

// UnionRoles merges role sets preserving first-seen order and dropping duplicates.
func UnionRoles(roleSets ...[]string) []string {
	union := make([]string, 0)
	seen := make(map[string]bool)
	for _, roles := range roleSets {
		for _, role := range roles {
			if !seen[role] {
				seen[role] = true
				union = append(union, role)
			}
		}
	}
	return union
}

// SubtractRoles returns the roles in `roles` missing from `from`, sorted.
func SubtractRoles(roles, from []string) []string {
	has := make(map[string]bool, len(from))
	for _, role := range from {
		has[role] = true
	}
	missing := make([]string, 0)
	for _, role := range roles {
		if !has[role] {
			missing = append(missing, role)
		}
	}
	sort.Strings(missing)
	return missing
}
