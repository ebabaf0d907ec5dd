package rbac

import "math"

// ThresholdKind names a role-scoped numeric limit
type ThresholdKind string

const (
	ThresholdRefundAmount        ThresholdKind = "refund_amount"
	ThresholdEscrowReleaseAmount ThresholdKind = "escrow_release_amount"
	ThresholdBalanceAdjustment   ThresholdKind = "balance_adjustment"
)

// Unlimited is returned for roles granted unbounded authority
var Unlimited = math.Inf(1)

// DefaultDualApprovalAmount is the platform-wide amount above which two approvers are required
const DefaultDualApprovalAmount = 20_000_000

// Valid reports whether k is a known threshold kind
func (k ThresholdKind) Valid() bool {
	switch k {
	case ThresholdRefundAmount, ThresholdEscrowReleaseAmount, ThresholdBalanceAdjustment:
		return true
	}
	return false
}

// roleThresholds holds the ceilings, in NGN. Missing entries resolve to zero.
var roleThresholds = map[Role]map[ThresholdKind]float64{
	RoleSuperAdmin: {
		ThresholdRefundAmount:        Unlimited,
		ThresholdEscrowReleaseAmount: Unlimited,
		ThresholdBalanceAdjustment:   Unlimited,
	},
	RoleFinanceAdmin: {
		ThresholdRefundAmount:        5_000_000,
		ThresholdEscrowReleaseAmount: 10_000_000,
		ThresholdBalanceAdjustment:   1_000_000,
	},
	RoleOperationsAdmin: {
		ThresholdRefundAmount:        500_000,
		ThresholdEscrowReleaseAmount: 2_000_000,
	},
	RoleSupportAdmin: {
		ThresholdRefundAmount: 50_000,
	},
}
