package rbac

// RiskTier is the static risk classification of a permission
type RiskTier string

const (
	RiskLow      RiskTier = "low"
	RiskMedium   RiskTier = "medium"
	RiskHigh     RiskTier = "high"
	RiskCritical RiskTier = "critical"
)

var riskRank = map[RiskTier]int{
	RiskLow:      0,
	RiskMedium:   1,
	RiskHigh:     2,
	RiskCritical: 3,
}

// AtLeast reports whether t is as severe as other
func (t RiskTier) AtLeast(other RiskTier) bool {
	return riskRank[t] >= riskRank[other]
}

// RequiresReason reports whether the tier mandates a typed reason
func (t RiskTier) RequiresReason() bool {
	return t.AtLeast(RiskHigh)
}

// RequiresReauth reports whether the tier mandates step-up re-authentication
func (t RiskTier) RequiresReauth() bool {
	return t == RiskCritical
}
