package model

// Role enum constants. This is the closed role set shared by every component.
// Do not re-declare role strings anywhere else.
const (
	RoleEmployee = "Employee"
	RoleManager  = "Manager"
	RoleCFO      = "CFO"
	RoleDirector = "Director"
	RoleAdmin    = "Admin"
)

// ElevatedRoles is the company approver pool queried when building an
// approval sequence for a newly submitted expense.
var ElevatedRoles = []string{RoleManager, RoleCFO, RoleDirector, RoleAdmin}

// AllRoles lists every assignable role.
var AllRoles = []string{RoleEmployee, RoleManager, RoleCFO, RoleDirector, RoleAdmin}

// ValidRole reports whether role belongs to the closed role set.
func ValidRole(role string) bool {
	switch role {
	case RoleEmployee, RoleManager, RoleCFO, RoleDirector, RoleAdmin:
		return true
	}
	return false
}
