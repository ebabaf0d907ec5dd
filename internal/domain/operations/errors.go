package operations

import "errors"

var (
	ErrUnknownOperation     = errors.New("unknown operation")
	ErrTargetRequired       = errors.New("target id is required")
	ErrInvalidAmount        = errors.New("amount must be positive")
	ErrThresholdExceeded    = errors.New("amount exceeds your approval limit")
	ErrDualApprovalRequired = errors.New("amount requires dual approval")
	ErrNotFound             = errors.New("record not found")
	ErrAlreadyInState       = errors.New("record is already in the requested state")
	ErrInvalidState         = errors.New("record is not in a state that allows this action")
	ErrRefundExceedsPayment = errors.New("refund exceeds the refundable amount")
	ErrDuplicateReference   = errors.New("duplicate ledger reference")
)
