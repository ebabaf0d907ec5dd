package admin

import (
	"errors"
	"net/http"

	"github.com/mwork/admin-console/internal/domain/action"
	"github.com/mwork/admin-console/internal/domain/identity"
	"github.com/mwork/admin-console/internal/domain/operations"
	"github.com/mwork/admin-console/internal/pkg/response"
)

var (
	ErrInvalidFilter  = errors.New("invalid audit filter")
	ErrExportTooLarge = errors.New("export exceeds row limit")
)

// writeActionError maps pipeline, catalog and identity errors to HTTP responses
func writeActionError(w http.ResponseWriter, err error) {
	var execErr *action.ExecutionError

	switch {
	case errors.Is(err, action.ErrPermissionDenied):
		response.Forbidden(w, "You do not have permission to perform this action")
	case errors.Is(err, action.ErrTicketNotFound):
		response.NotFound(w, "Action not found")
	case errors.Is(err, action.ErrTicketExpired):
		response.Gone(w, "Action expired, start it again")
	case errors.Is(err, action.ErrReasonRequired):
		response.Unprocessable(w, "REASON_REQUIRED", "A reason is required for this action")
	case errors.Is(err, action.ErrCredentialRequired):
		response.Unprocessable(w, "CREDENTIAL_REQUIRED", "Enter your password to confirm this action")
	case errors.Is(err, action.ErrReauthFailed):
		writeReauthError(w, err)
	case errors.Is(err, action.ErrConfirmationCancelled):
		response.Conflict(w, "Action was cancelled")
	case errors.Is(err, action.ErrBusy):
		response.Conflict(w, "Action is already in progress")
	case errors.Is(err, action.ErrNoPendingAction):
		response.Conflict(w, "Action is not awaiting confirmation")
	case errors.Is(err, action.ErrInvalidRequest):
		response.BadRequest(w, "Invalid action request")

	case errors.Is(err, operations.ErrUnknownOperation):
		response.BadRequest(w, "Unknown operation")
	case errors.Is(err, operations.ErrTargetRequired):
		response.BadRequest(w, "Target is required")
	case errors.Is(err, operations.ErrInvalidAmount):
		response.BadRequest(w, "Amount must be positive")
	case errors.Is(err, operations.ErrDualApprovalRequired):
		response.Error(w, http.StatusForbidden, "DUAL_APPROVAL_REQUIRED", "Amount requires a second approver")
	case errors.Is(err, operations.ErrThresholdExceeded):
		response.Error(w, http.StatusForbidden, "THRESHOLD_EXCEEDED", "Amount exceeds your approval limit")

	case errors.As(err, &execErr):
		writeExecutionError(w, execErr)
	default:
		response.InternalError(w)
	}
}

func writeReauthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, identity.ErrLockedOut):
		response.Error(w, http.StatusLocked, "LOCKED_OUT", err.Error())
	case errors.Is(err, identity.ErrThrottled):
		response.Error(w, http.StatusTooManyRequests, "REAUTH_THROTTLED", err.Error())
	case errors.Is(err, identity.ErrVerificationUnavailable):
		response.ServiceUnavailable(w, err.Error())
	default:
		// 403 rather than 401: the session itself is still valid
		response.Error(w, http.StatusForbidden, "REAUTH_FAILED", err.Error())
	}
}

func writeExecutionError(w http.ResponseWriter, err *action.ExecutionError) {
	switch {
	case errors.Is(err, operations.ErrNotFound):
		response.NotFound(w, err.Message)
	case errors.Is(err, operations.ErrAlreadyInState),
		errors.Is(err, operations.ErrInvalidState),
		errors.Is(err, operations.ErrRefundExceedsPayment),
		errors.Is(err, operations.ErrDuplicateReference):
		response.Conflict(w, err.Message)
	case errors.Is(err, operations.ErrThresholdExceeded),
		errors.Is(err, operations.ErrDualApprovalRequired):
		response.Error(w, http.StatusForbidden, "THRESHOLD_EXCEEDED", err.Message)
	default:
		response.Unprocessable(w, "ACTION_FAILED", err.Message)
	}
}
