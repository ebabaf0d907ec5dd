package operations

import (
	"github.com/google/uuid"

	"github.com/mwork/admin-console/internal/domain/rbac"
)

// Target types recorded on pipeline requests and audit entries
const (
	TargetUser    = "user"
	TargetListing = "listing"
	TargetEscrow  = "escrow"
	TargetAccount = "account"
	TargetPayment = "payment"
)

// Definition describes one mutating console action
type Definition struct {
	Permission    rbac.Permission `json:"permission"`
	AuditAction   string          `json:"audit_action"`
	TargetType    string          `json:"target_type"`
	Title         string          `json:"title"`
	RequireReason bool            `json:"require_reason"`
	NextState     string          `json:"next_state,omitempty"`
	// Threshold is checked against Params.Amount when set
	Threshold rbac.ThresholdKind `json:"threshold,omitempty"`
}

// Actor is the admin performing an operation
type Actor struct {
	AdminID uuid.UUID
	Role    rbac.Role
}

// Params are the caller-supplied arguments of an operation
type Params struct {
	TargetID uuid.UUID `json:"target_id"`
	Amount   int64     `json:"amount,omitempty"`
	Category string    `json:"category,omitempty"`
}

// Escrow is a held payment awaiting release to its payee
type Escrow struct {
	ID      uuid.UUID `db:"id"`
	PayeeID uuid.UUID `db:"payee_id"`
	Amount  int64     `db:"amount"`
	Status  string    `db:"status"`
}

// Payment is a settled payment that may be refunded
type Payment struct {
	ID             uuid.UUID `db:"id"`
	UserID         uuid.UUID `db:"user_id"`
	Amount         int64     `db:"amount"`
	RefundedAmount int64     `db:"refunded_amount"`
	Status         string    `db:"status"`
}

// Result is returned to the console after a successful operation
type Result struct {
	TargetID uuid.UUID `json:"target_id"`
	Status   string    `json:"status"`
	Amount   int64     `json:"amount,omitempty"`
	RecordID uuid.UUID `json:"record_id,omitempty"`
}

const (
	EscrowHeld     = "held"
	EscrowReleased = "released"

	PaymentPaid              = "paid"
	PaymentPartiallyRefunded = "partially_refunded"
	PaymentRefunded          = "refunded"
)
