package operations

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/mwork/admin-console/internal/domain/action"
	"github.com/mwork/admin-console/internal/domain/rbac"
)

var definitions = []Definition{
	{
		Permission:    rbac.PermSuspendUsers,
		AuditAction:   "user.suspend",
		TargetType:    TargetUser,
		Title:         "Suspend user",
		RequireReason: true,
		NextState:     "suspended",
	},
	{
		Permission:  rbac.PermReinstateUsers,
		AuditAction: "user.reinstate",
		TargetType:  TargetUser,
		Title:       "Reinstate user",
		NextState:   "active",
	},
	{
		Permission:    rbac.PermRemoveListings,
		AuditAction:   "listing.remove",
		TargetType:    TargetListing,
		Title:         "Remove listing",
		RequireReason: true,
		NextState:     "removed",
	},
	{
		Permission:  rbac.PermReleaseEscrow,
		AuditAction: "escrow.release",
		TargetType:  TargetEscrow,
		Title:       "Release escrow",
		NextState:   EscrowReleased,
		Threshold:   rbac.ThresholdEscrowReleaseAmount,
	},
	{
		Permission:  rbac.PermFreezeAccount,
		AuditAction: "account.freeze",
		TargetType:  TargetAccount,
		Title:       "Freeze account",
		NextState:   "frozen",
	},
	{
		Permission:  rbac.PermFileReport,
		AuditAction: "compliance.report_filed",
		TargetType:  TargetUser,
		Title:       "File compliance report",
	},
	{
		Permission:  rbac.PermRefundPayments,
		AuditAction: "payment.refund",
		TargetType:  TargetPayment,
		Title:       "Refund payment",
		Threshold:   rbac.ThresholdRefundAmount,
	},
}

// Catalog turns console requests into pipeline requests bound to platform mutations
type Catalog struct {
	repo   Repository
	policy *rbac.Policy
	defs   map[rbac.Permission]Definition
}

// NewCatalog creates the operations catalog
func NewCatalog(repo Repository, policy *rbac.Policy) *Catalog {
	defs := make(map[rbac.Permission]Definition, len(definitions))
	for _, d := range definitions {
		defs[d.Permission] = d
	}
	return &Catalog{repo: repo, policy: policy, defs: defs}
}

// Definitions lists the catalog ordered by permission
func (c *Catalog) Definitions() []Definition {
	out := make([]Definition, 0, len(c.defs))
	for _, d := range c.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Permission < out[j].Permission })
	return out
}

// Build prepares the pipeline request for perm. Amount limits are only checked for
// actors holding the permission; the pipeline reports denial for everyone else.
func (c *Catalog) Build(actor Actor, perm rbac.Permission, p Params) (action.Request, error) {
	def, ok := c.defs[perm]
	if !ok {
		return action.Request{}, ErrUnknownOperation
	}
	if p.TargetID == uuid.Nil {
		return action.Request{}, ErrTargetRequired
	}

	details := map[string]any{}
	if perm == rbac.PermRefundPayments {
		if p.Amount <= 0 {
			return action.Request{}, ErrInvalidAmount
		}
		details["amount"] = p.Amount
		if c.policy.HasPermission(rbac.NormalizeRole(string(actor.Role)), perm) {
			if err := c.checkAmount(actor.Role, def.Threshold, p.Amount); err != nil {
				return action.Request{}, err
			}
		}
	}
	if p.Category != "" {
		details["category"] = p.Category
	}

	return action.Request{
		Permission:    def.Permission,
		Role:          actor.Role,
		AdminID:       actor.AdminID.String(),
		Operation:     c.operation(def, actor, p),
		TargetID:      p.TargetID.String(),
		TargetType:    def.TargetType,
		AuditAction:   def.AuditAction,
		RequireReason: def.RequireReason,
		NextState:     def.NextState,
		Title:         def.Title,
		Details:       details,
	}, nil
}

func (c *Catalog) checkAmount(role rbac.Role, kind rbac.ThresholdKind, amount int64) error {
	role = rbac.NormalizeRole(string(role))
	if !c.policy.WithinThreshold(role, kind, float64(amount)) {
		return fmt.Errorf("%w (%d)", ErrThresholdExceeded, amount)
	}
	if c.policy.RequiresDualApproval(float64(amount)) {
		return ErrDualApprovalRequired
	}
	return nil
}

func (c *Catalog) operation(def Definition, actor Actor, p Params) action.Operation {
	target := p.TargetID
	return func(ctx context.Context, in action.Input) (any, error) {
		switch def.Permission {
		case rbac.PermSuspendUsers:
			if err := c.repo.SuspendUser(ctx, target, actor.AdminID, in.Reason); err != nil {
				return nil, err
			}
		case rbac.PermReinstateUsers:
			if err := c.repo.ReinstateUser(ctx, target, actor.AdminID); err != nil {
				return nil, err
			}
		case rbac.PermRemoveListings:
			if err := c.repo.RemoveListing(ctx, target, actor.AdminID, in.Reason); err != nil {
				return nil, err
			}
		case rbac.PermFreezeAccount:
			if err := c.repo.FreezeAccount(ctx, target, actor.AdminID, in.Reason); err != nil {
				return nil, err
			}
		case rbac.PermFileReport:
			id, err := c.repo.FileComplianceReport(ctx, target, actor.AdminID, p.Category, in.Reason)
			if err != nil {
				return nil, err
			}
			return &Result{TargetID: target, Status: "filed", RecordID: id}, nil
		case rbac.PermReleaseEscrow:
			escrow, err := c.repo.ReleaseEscrow(ctx, target, actor.AdminID, func(e *Escrow) error {
				return c.checkAmount(actor.Role, def.Threshold, e.Amount)
			})
			if err != nil {
				return nil, err
			}
			return &Result{TargetID: target, Status: escrow.Status, Amount: escrow.Amount}, nil
		case rbac.PermRefundPayments:
			payment, err := c.repo.RefundPayment(ctx, target, actor.AdminID, p.Amount)
			if err != nil {
				return nil, err
			}
			return &Result{TargetID: target, Status: payment.Status, Amount: p.Amount}, nil
		default:
			return nil, ErrUnknownOperation
		}
		return &Result{TargetID: target, Status: def.NextState}, nil
	}
}

// UserRecord loads a user record for display; callers mask it for the viewer
func (c *Catalog) UserRecord(ctx context.Context, id uuid.UUID) (map[string]any, error) {
	return c.repo.GetUserRecord(ctx, id)
}
