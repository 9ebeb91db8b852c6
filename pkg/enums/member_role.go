package enums

import "fmt"

// OrgRole is a role held inside an organization.
type OrgRole string

const (
	OrgRoleOwner      OrgRole = "owner"
	OrgRoleAdmin      OrgRole = "admin"
	OrgRoleStaff      OrgRole = "staff"
	OrgRoleAccountant OrgRole = "accountant"
)

var validOrgRoles = []OrgRole{
	OrgRoleOwner,
	OrgRoleAdmin,
	OrgRoleStaff,
	OrgRoleAccountant,
}

// String implements fmt.Stringer.
func (o OrgRole) String() string {
	return string(o)
}

// IsValid reports whether the value is known.
func (o OrgRole) IsValid() bool {
	for _, candidate := range validOrgRoles {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOrgRole converts raw input into a OrgRole.
func ParseOrgRole(value string) (OrgRole, error) {
	for _, candidate := range validOrgRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid org role %q", value)
}
