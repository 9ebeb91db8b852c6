package enums

import "fmt"

// GlobalRole is a platform-wide role carried on the user record.
type GlobalRole string

const (
	GlobalRoleMember   GlobalRole = "member"
	GlobalRoleMerchant GlobalRole = "merchant"
	GlobalRoleAdmin    GlobalRole = "admin"
)

var validGlobalRoles = []GlobalRole{
	GlobalRoleMember,
	GlobalRoleMerchant,
	GlobalRoleAdmin,
}

// String implements fmt.Stringer.
func (g GlobalRole) String() string {
	return string(g)
}

// IsValid reports whether the value is known.
func (g GlobalRole) IsValid() bool {
	for _, candidate := range validGlobalRoles {
		if candidate == g {
			return true
		}
	}
	return false
}

// ParseGlobalRole converts raw input into a GlobalRole.
func ParseGlobalRole(value string) (GlobalRole, error) {
	for _, candidate := range validGlobalRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid global role %q", value)
}
