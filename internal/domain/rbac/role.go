package rbac

import "strings"

// Role represents the role of an authenticated principal
type Role string

const (
	// Administrative roles
	RoleSuperAdmin        Role = "super_admin"
	RoleFinanceAdmin      Role = "finance_admin"
	RoleComplianceAdmin   Role = "compliance_admin"
	RoleSupportAdmin      Role = "support_admin"
	RoleModerator         Role = "moderator"
	RoleVerificationAdmin Role = "verification_admin"
	RoleOperationsAdmin   Role = "operations_admin"

	// Marketplace participants
	RoleUser  Role = "user"
	RoleHost  Role = "host"
	RoleAgent Role = "agent"
)

// RoleNone is the canonical role for missing, unknown or unrecognised values.
const RoleNone = RoleUser

var adminRoles = map[Role]bool{
	RoleSuperAdmin:        true,
	RoleFinanceAdmin:      true,
	RoleComplianceAdmin:   true,
	RoleSupportAdmin:      true,
	RoleModerator:         true,
	RoleVerificationAdmin: true,
	RoleOperationsAdmin:   true,
}

var participantRoles = map[Role]bool{
	RoleUser:  true,
	RoleHost:  true,
	RoleAgent: true,
}

// legacyRoles maps aliases issued by older console builds to canonical roles.
// Plain "admin" is deliberately absent: it never meant a single capability set.
var legacyRoles = map[string]Role{
	"superadmin":   RoleSuperAdmin,
	"super-admin":  RoleSuperAdmin,
	"finance":      RoleFinanceAdmin,
	"compliance":   RoleComplianceAdmin,
	"support":      RoleSupportAdmin,
	"mod":          RoleModerator,
	"verifier":     RoleVerificationAdmin,
	"verification": RoleVerificationAdmin,
	"ops":          RoleOperationsAdmin,
	"operations":   RoleOperationsAdmin,
	"guest":        RoleUser,
	"customer":     RoleUser,
	"landlord":     RoleHost,
}

// NormalizeRole maps a raw role value to a canonical Role.
// Anything it does not recognise becomes RoleNone.
func NormalizeRole(raw string) Role {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" {
		return RoleNone
	}
	key = strings.ReplaceAll(key, " ", "_")

	role := Role(key)
	if adminRoles[role] || participantRoles[role] {
		return role
	}
	if canonical, ok := legacyRoles[key]; ok {
		return canonical
	}
	return RoleNone
}

// IsAdminRole reports whether role belongs to the administrative family
func IsAdminRole(role Role) bool {
	return adminRoles[role]
}

// Valid reports whether r is a canonical role
func (r Role) Valid() bool {
	return adminRoles[r] || participantRoles[r]
}

// AdminRoles returns every administrative role
func AdminRoles() []Role {
	return []Role{
		RoleSuperAdmin,
		RoleFinanceAdmin,
		RoleComplianceAdmin,
		RoleSupportAdmin,
		RoleModerator,
		RoleVerificationAdmin,
		RoleOperationsAdmin,
	}
}
