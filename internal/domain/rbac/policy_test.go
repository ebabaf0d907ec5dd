package rbac

import (
	"math"
	"testing"
)

func TestHasPermission_SecureByDefault(t *testing.T) {
	p := DefaultPolicy()

	cases := []struct {
		name string
		role Role
		perm Permission
	}{
		{"participant role", RoleUser, PermViewUsers},
		{"host role", RoleHost, PermReleaseEscrow},
		{"unknown role", Role("ghost"), PermViewUsers},
		{"empty role", Role(""), PermViewUsers},
		{"unknown permission", RoleSupportAdmin, Permission("users:teleport")},
		{"malformed permission", RoleSuperAdmin, Permission("users")},
		{"empty permission", RoleSuperAdmin, Permission("")},
		{"wildcard as request", RoleSupportAdmin, PermAll},
		{"resource wildcard as request", RoleSuperAdmin, Permission("payments:*")},
		{"support cannot release escrow", RoleSupportAdmin, PermReleaseEscrow},
		{"moderator cannot suspend", RoleModerator, PermSuspendUsers},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if p.HasPermission(tc.role, tc.perm) {
				t.Fatalf("expected %s to be denied %q", tc.role, tc.perm)
			}
		})
	}
}

func TestHasPermission_Grants(t *testing.T) {
	p := DefaultPolicy()

	cases := []struct {
		role Role
		perm Permission
	}{
		{RoleSuperAdmin, PermReleaseEscrow},
		{RoleSuperAdmin, Permission("anything:at_all")},
		{RoleSupportAdmin, PermSuspendUsers},
		{RoleSupportAdmin, PermEscalateTickets},
		{RoleOperationsAdmin, PermReleaseEscrow},
		{RoleFinanceAdmin, PermAdjustBalance},
		{RoleComplianceAdmin, PermFileReport},
		{RoleModerator, PermRemoveListings},
		{RoleVerificationAdmin, PermApproveVerifications},
	}

	for _, tc := range cases {
		if !p.HasPermission(tc.role, tc.perm) {
			t.Fatalf("expected %s to hold %q", tc.role, tc.perm)
		}
	}
}

func TestNilPolicyDeniesEverything(t *testing.T) {
	var p *Policy
	if p.HasPermission(RoleSuperAdmin, PermViewUsers) {
		t.Fatal("nil policy must deny")
	}
	if got := p.MaxThresholdFor(RoleSuperAdmin, ThresholdRefundAmount); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
}

func TestHasAnyAndAllPermissions(t *testing.T) {
	p := DefaultPolicy()

	if !p.HasAnyPermission(RoleSupportAdmin, PermReleaseEscrow, PermViewUsers) {
		t.Fatal("expected any-match")
	}
	if p.HasAnyPermission(RoleSupportAdmin) {
		t.Fatal("empty any-list must be false")
	}
	if p.HasAllPermissions(RoleSupportAdmin, PermViewUsers, PermReleaseEscrow) {
		t.Fatal("expected all-match to fail")
	}
	if !p.HasAllPermissions(RoleFinanceAdmin, PermRefundPayments, PermReleaseEscrow) {
		t.Fatal("expected finance to hold payment permissions")
	}
	if p.HasAllPermissions(RoleSuperAdmin) {
		t.Fatal("empty all-list must be false")
	}
}

func TestRiskLevelOf(t *testing.T) {
	p := DefaultPolicy()

	if got := p.RiskLevelOf(PermSuspendUsers); got != RiskHigh {
		t.Fatalf("users:suspend: expected high, got %s", got)
	}
	if got := p.RiskLevelOf(PermReleaseEscrow); got != RiskCritical {
		t.Fatalf("payments:release_escrow: expected critical, got %s", got)
	}
	if got := p.RiskLevelOf(Permission("unclassified:thing")); got != RiskLow {
		t.Fatalf("unclassified: expected low, got %s", got)
	}
	if !p.IsCriticalAction(PermFileReport) {
		t.Fatal("compliance:file_report must be critical")
	}
	if p.IsCriticalAction(PermSuspendUsers) {
		t.Fatal("users:suspend must not be critical")
	}
}

func TestMaxThresholdFor(t *testing.T) {
	p := DefaultPolicy()

	if got := p.MaxThresholdFor(RoleSuperAdmin, ThresholdRefundAmount); !math.IsInf(got, 1) {
		t.Fatalf("super_admin: expected unlimited, got %v", got)
	}
	if got := p.MaxThresholdFor(RoleSupportAdmin, ThresholdRefundAmount); got != 50_000 {
		t.Fatalf("support_admin refund: expected 50000, got %v", got)
	}
	if got := p.MaxThresholdFor(RoleSupportAdmin, ThresholdEscrowReleaseAmount); got != 0 {
		t.Fatalf("missing kind must be 0, got %v", got)
	}
	if got := p.MaxThresholdFor(Role("ghost"), ThresholdRefundAmount); got != 0 {
		t.Fatalf("missing role must be 0, got %v", got)
	}
	if p.WithinThreshold(RoleSupportAdmin, ThresholdRefundAmount, math.NaN()) {
		t.Fatal("NaN must never be within threshold")
	}
	if !p.RequiresDualApproval(DefaultDualApprovalAmount + 1) {
		t.Fatal("expected dual approval above limit")
	}
	if p.RequiresDualApproval(DefaultDualApprovalAmount) {
		t.Fatal("limit itself does not require dual approval")
	}
}

func TestNormalizeRole(t *testing.T) {
	cases := map[string]Role{
		"":               RoleNone,
		"   ":            RoleNone,
		"SUPER_ADMIN":    RoleSuperAdmin,
		" support ":      RoleSupportAdmin,
		"superadmin":     RoleSuperAdmin,
		"ops":            RoleOperationsAdmin,
		"Finance Admin":  RoleFinanceAdmin,
		"admin":          RoleNone,
		"root":           RoleNone,
		"host":           RoleHost,
		"definitely-not": RoleNone,
	}
	for raw, want := range cases {
		if got := NormalizeRole(raw); got != want {
			t.Fatalf("NormalizeRole(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestIsAdminRole(t *testing.T) {
	for _, r := range AdminRoles() {
		if !IsAdminRole(r) {
			t.Fatalf("%s should be admin", r)
		}
	}
	for _, r := range []Role{RoleUser, RoleHost, RoleAgent, "", "ghost"} {
		if IsAdminRole(r) {
			t.Fatalf("%q should not be admin", r)
		}
	}
}

func TestParsePolicyOverrides(t *testing.T) {
	p, err := ParsePolicy([]byte(`
dual_approval_amount: 1000000
thresholds:
  support_admin:
    refund_amount: 75000
  compliance_admin:
    balance_adjustment: 10
`))
	if err != nil {
		t.Fatalf("ParsePolicy: %v", err)
	}
	if got := p.MaxThresholdFor(RoleSupportAdmin, ThresholdRefundAmount); got != 75_000 {
		t.Fatalf("expected override 75000, got %v", got)
	}
	if got := p.MaxThresholdFor(RoleComplianceAdmin, ThresholdBalanceAdjustment); got != 10 {
		t.Fatalf("expected new entry 10, got %v", got)
	}
	if got := p.DualApprovalAmount(); got != 1_000_000 {
		t.Fatalf("expected dual approval 1000000, got %v", got)
	}
	// Defaults stay untouched.
	if got := DefaultPolicy().MaxThresholdFor(RoleSupportAdmin, ThresholdRefundAmount); got != 50_000 {
		t.Fatalf("defaults mutated: %v", got)
	}
}

func TestParsePolicyRejectsUnknownEntries(t *testing.T) {
	bad := []string{
		"thresholds:\n  user:\n    refund_amount: 5\n",
		"thresholds:\n  support_admin:\n    teleport_amount: 5\n",
		"thresholds:\n  support_admin:\n    refund_amount: -5\n",
		"dual_approval_amount: 0\n",
	}
	for _, doc := range bad {
		if _, err := ParsePolicy([]byte(doc)); err == nil {
			t.Fatalf("expected error for %q", doc)
		}
	}
}
