package rbac

import "strings"

// Permission is an authorization key of the shape resource:action
type Permission string

const (
	PermAll Permission = "*"

	// Users
	PermViewUsers        Permission = "users:view"
	PermSuspendUsers     Permission = "users:suspend"
	PermReinstateUsers   Permission = "users:reinstate"
	PermBanUsers         Permission = "users:ban"
	PermDeleteUsers      Permission = "users:delete"
	PermVerifyUsers      Permission = "users:verify"
	PermImpersonateUsers Permission = "users:impersonate"

	// Listings
	PermViewListings    Permission = "listings:view"
	PermApproveListings Permission = "listings:approve"
	PermRejectListings  Permission = "listings:reject"
	PermRemoveListings  Permission = "listings:remove"

	// Bookings
	PermViewBookings   Permission = "bookings:view"
	PermCancelBookings Permission = "bookings:cancel"

	// Payments
	PermViewPayments     Permission = "payments:view"
	PermRefundPayments   Permission = "payments:refund"
	PermReleaseEscrow    Permission = "payments:release_escrow"
	PermFreezeAccount    Permission = "payments:freeze_account"
	PermAdjustBalance    Permission = "payments:adjust_balance"
	PermViewPayoutReport Permission = "payments:view_payouts"

	// Compliance
	PermViewCompliance   Permission = "compliance:view"
	PermFileReport       Permission = "compliance:file_report"
	PermExportUserData   Permission = "compliance:export_data"
	PermFlagTransactions Permission = "compliance:flag_transaction"

	// Verification
	PermViewVerifications    Permission = "verification:view"
	PermApproveVerifications Permission = "verification:approve"
	PermRejectVerifications  Permission = "verification:reject"

	// Support tickets
	PermViewTickets     Permission = "tickets:view"
	PermRespondTickets  Permission = "tickets:respond"
	PermEscalateTickets Permission = "tickets:escalate"

	// System
	PermViewAnalytics  Permission = "analytics:view"
	PermViewAuditLogs  Permission = "audit:view"
	PermExportAuditLog Permission = "audit:export"
	PermManageAdmins   Permission = "admins:manage"
	PermManageSettings Permission = "settings:manage"
)

// Resource returns the part before the colon, or "" when malformed
func (p Permission) Resource() string {
	resource, _, ok := strings.Cut(string(p), ":")
	if !ok {
		return ""
	}
	return resource
}

// Valid reports whether p names one concrete resource:action pair.
// Wildcard entries are grants only and never valid as a request.
func (p Permission) Valid() bool {
	resource, action, ok := strings.Cut(string(p), ":")
	return ok && resource != "" && action != "" && resource != "*" && action != "*" &&
		!strings.Contains(action, ":")
}

// covers reports whether a granted entry (possibly a wildcard) covers the requested permission.
func covers(granted, requested Permission) bool {
	if granted == PermAll {
		return requested.Valid()
	}
	if granted == requested {
		return requested.Valid()
	}
	if strings.HasSuffix(string(granted), ":*") {
		prefix := strings.TrimSuffix(string(granted), "*")
		return requested.Valid() && strings.HasPrefix(string(requested), prefix)
	}
	return false
}

// rolePermissions maps roles to their granted permission entries.
// Participant roles have no entry and therefore no administrative permissions.
var rolePermissions = map[Role][]Permission{
	RoleSuperAdmin: {PermAll},
	RoleOperationsAdmin: {
		PermViewUsers, PermSuspendUsers, PermReinstateUsers,
		"listings:*",
		"bookings:*",
		PermViewPayments, PermReleaseEscrow,
		"tickets:*",
		PermViewAnalytics, PermViewAuditLogs,
	},
	RoleFinanceAdmin: {
		"payments:*",
		PermViewBookings,
		PermViewUsers,
		PermViewAnalytics, PermViewAuditLogs, PermExportAuditLog,
	},
	RoleComplianceAdmin: {
		"compliance:*",
		PermViewUsers, PermSuspendUsers, PermReinstateUsers, PermBanUsers,
		PermViewPayments, PermFreezeAccount,
		PermViewVerifications,
		PermViewAuditLogs, PermExportAuditLog,
	},
	RoleSupportAdmin: {
		PermViewUsers, PermSuspendUsers,
		PermViewBookings,
		PermViewListings,
		"tickets:*",
	},
	RoleModerator: {
		"listings:*",
		PermViewUsers,
		PermViewTickets,
	},
	RoleVerificationAdmin: {
		"verification:*",
		PermViewUsers, PermVerifyUsers,
	},
}

// permissionRisk classifies permissions. Anything absent is RiskLow.
var permissionRisk = map[Permission]RiskTier{
	PermSuspendUsers:     RiskHigh,
	PermReinstateUsers:   RiskMedium,
	PermBanUsers:         RiskHigh,
	PermDeleteUsers:      RiskCritical,
	PermVerifyUsers:      RiskMedium,
	PermImpersonateUsers: RiskCritical,

	PermApproveListings: RiskMedium,
	PermRejectListings:  RiskMedium,
	PermRemoveListings:  RiskMedium,

	PermCancelBookings: RiskMedium,

	PermRefundPayments: RiskHigh,
	PermReleaseEscrow:  RiskCritical,
	PermFreezeAccount:  RiskCritical,
	PermAdjustBalance:  RiskCritical,

	PermFileReport:       RiskCritical,
	PermExportUserData:   RiskHigh,
	PermFlagTransactions: RiskMedium,

	PermApproveVerifications: RiskMedium,
	PermRejectVerifications:  RiskMedium,

	PermEscalateTickets: RiskLow,

	PermExportAuditLog: RiskMedium,
	PermManageAdmins:   RiskCritical,
	PermManageSettings: RiskHigh,
}
