package action

import "errors"

var (
	ErrPermissionDenied      = errors.New("you do not have permission to perform this action")
	ErrConfirmationCancelled = errors.New("action cancelled")
	ErrReauthFailed          = errors.New("re-authentication failed")
	ErrReasonRequired        = errors.New("a reason is required for this action")
	ErrCredentialRequired    = errors.New("password confirmation is required for this action")
	ErrBusy                  = errors.New("another action is in progress")
	ErrNoPendingAction       = errors.New("no action is awaiting confirmation")
	ErrInvalidRequest        = errors.New("invalid action request")
	ErrTicketNotFound        = errors.New("action not found")
	ErrTicketExpired         = errors.New("action confirmation expired")
)

// DefaultFailureMessage is reported when an operation fails without a message of its own
const DefaultFailureMessage = "Action failed"

// ReauthError carries the identity collaborator's message verbatim.
// It matches ErrReauthFailed with errors.Is.
type ReauthError struct {
	Err error
}

func (e *ReauthError) Error() string {
	if e.Err == nil || e.Err.Error() == "" {
		return ErrReauthFailed.Error()
	}
	return e.Err.Error()
}

func (e *ReauthError) Unwrap() error { return e.Err }

func (e *ReauthError) Is(target error) bool { return target == ErrReauthFailed }

// ExecutionError is returned when the confirmed operation itself fails
type ExecutionError struct {
	Message string
	Err     error
}

func newExecutionError(err error) *ExecutionError {
	msg := DefaultFailureMessage
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return &ExecutionError{Message: msg, Err: err}
}

func (e *ExecutionError) Error() string { return e.Message }

func (e *ExecutionError) Unwrap() error { return e.Err }
