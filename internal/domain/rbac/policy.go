package rbac

import (
	"math"
	"sort"
)

// Policy is an immutable snapshot of the authorization tables.
// It is safe for concurrent use without synchronisation.
type Policy struct {
	grants       map[Role][]Permission
	risks        map[Permission]RiskTier
	thresholds   map[Role]map[ThresholdKind]float64
	dualApproval float64
}

// DefaultPolicy returns the compiled-in policy tables
func DefaultPolicy() *Policy {
	return newPolicy(roleThresholds, DefaultDualApprovalAmount)
}

func newPolicy(thresholds map[Role]map[ThresholdKind]float64, dualApproval float64) *Policy {
	p := &Policy{
		grants:       make(map[Role][]Permission, len(rolePermissions)),
		risks:        make(map[Permission]RiskTier, len(permissionRisk)),
		thresholds:   make(map[Role]map[ThresholdKind]float64, len(thresholds)),
		dualApproval: dualApproval,
	}
	for role, perms := range rolePermissions {
		p.grants[role] = append([]Permission(nil), perms...)
	}
	for perm, tier := range permissionRisk {
		p.risks[perm] = tier
	}
	for role, limits := range thresholds {
		copied := make(map[ThresholdKind]float64, len(limits))
		for kind, v := range limits {
			copied[kind] = v
		}
		p.thresholds[role] = copied
	}
	return p
}

// HasPermission checks if role is granted perm directly or through a wildcard
func (p *Policy) HasPermission(role Role, perm Permission) bool {
	if p == nil || !perm.Valid() {
		return false
	}
	for _, granted := range p.grants[role] {
		if covers(granted, perm) {
			return true
		}
	}
	return false
}

// HasAnyPermission checks if role holds at least one of perms
func (p *Policy) HasAnyPermission(role Role, perms ...Permission) bool {
	for _, perm := range perms {
		if p.HasPermission(role, perm) {
			return true
		}
	}
	return false
}

// HasAllPermissions checks if role holds every one of perms. An empty list is not a grant.
func (p *Policy) HasAllPermissions(role Role, perms ...Permission) bool {
	if len(perms) == 0 {
		return false
	}
	for _, perm := range perms {
		if !p.HasPermission(role, perm) {
			return false
		}
	}
	return true
}

// RiskLevelOf returns the risk tier of perm, RiskLow when unclassified
func (p *Policy) RiskLevelOf(perm Permission) RiskTier {
	if p == nil {
		return RiskLow
	}
	if tier, ok := p.risks[perm]; ok {
		return tier
	}
	return RiskLow
}

// IsCriticalAction reports whether perm requires step-up re-authentication
func (p *Policy) IsCriticalAction(perm Permission) bool {
	return p.RiskLevelOf(perm) == RiskCritical
}

// MaxThresholdFor returns the ceiling for role and kind. Missing entries are zero.
func (p *Policy) MaxThresholdFor(role Role, kind ThresholdKind) float64 {
	if p == nil {
		return 0
	}
	limits, ok := p.thresholds[role]
	if !ok {
		return 0
	}
	v, ok := limits[kind]
	if !ok || math.IsNaN(v) || v < 0 {
		return 0
	}
	return v
}

// WithinThreshold reports whether amount is covered by the role's ceiling
func (p *Policy) WithinThreshold(role Role, kind ThresholdKind, amount float64) bool {
	if math.IsNaN(amount) || amount < 0 {
		return false
	}
	return amount <= p.MaxThresholdFor(role, kind)
}

// DualApprovalAmount returns the platform-wide dual approval limit
func (p *Policy) DualApprovalAmount() float64 {
	if p == nil {
		return 0
	}
	return p.dualApproval
}

// RequiresDualApproval reports whether amount exceeds the platform-wide limit.
// Unparseable amounts always require a second approver.
func (p *Policy) RequiresDualApproval(amount float64) bool {
	if math.IsNaN(amount) {
		return true
	}
	return amount > p.DualApprovalAmount()
}

// PermissionsFor lists the grant entries of role, sorted
func (p *Policy) PermissionsFor(role Role) []Permission {
	if p == nil {
		return nil
	}
	perms := append([]Permission(nil), p.grants[role]...)
	sort.Slice(perms, func(i, j int) bool { return perms[i] < perms[j] })
	return perms
}
