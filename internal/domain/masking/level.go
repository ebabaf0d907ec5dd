// Package masking redacts personally identifiable fields of records at read time,
// according to the access level of whoever is looking at them.
package masking

import "github.com/mwork/admin-console/internal/domain/rbac"

// Level is the access level a viewer has to PII
type Level string

const (
	LevelFull    Level = "full"
	LevelPartial Level = "partial"
	LevelMasked  Level = "masked"
)

// Placeholder replaces any value that cannot be shown at all
const Placeholder = "***hidden***"

// fullAccess is the allow-list of roles that see PII unredacted
var fullAccess = map[rbac.Role]bool{
	rbac.RoleSuperAdmin:      true,
	rbac.RoleComplianceAdmin: true,
}

// LevelFor returns the masking level for a viewer role
func LevelFor(role rbac.Role) Level {
	role = rbac.NormalizeRole(string(role))
	if fullAccess[role] {
		return LevelFull
	}
	if rbac.IsAdminRole(role) {
		return LevelPartial
	}
	return LevelMasked
}

// stricter returns the more restrictive of two levels
func stricter(a, b Level) Level {
	rank := func(l Level) int {
		switch l {
		case LevelFull:
			return 0
		case LevelPartial:
			return 1
		}
		return 2
	}
	if rank(a) >= rank(b) {
		return a
	}
	return b
}
