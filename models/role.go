package models

type UserRole string

const (
	RoleMember     UserRole = "member"
	RoleAdmin      UserRole = "admin"
	RoleSuperadmin UserRole = "superadmin"
)

func (r UserRole) Valid() bool {
	return r == RoleMember || r == RoleAdmin || r == RoleSuperadmin
}
