package action

// State is a step of the action pipeline
type State string

const (
	StateIdle                 State = "IDLE"
	StateCheckingPermission   State = "CHECKING_PERMISSION"
	StateDenied               State = "DENIED"
	StateAwaitingConfirmation State = "AWAITING_CONFIRMATION"
	StateCancelled            State = "CANCELLED"
	StateConfirmed            State = "CONFIRMED"
	StateAwaitingReauth       State = "AWAITING_REAUTH"
	StateReauthFailed         State = "REAUTH_FAILED"
	StateReauthOK             State = "REAUTH_OK"
	StateExecuting            State = "EXECUTING"
	StateExecutionFailed      State = "EXECUTION_FAILED"
	StateExecutionOK          State = "EXECUTION_OK"
	StateLogging              State = "LOGGING"
	StateSuccess              State = "SUCCESS"
	StateError                State = "ERROR"
)

// outcome labels used for metrics and console events
const (
	outcomeDenied       = "denied"
	outcomeCancelled    = "cancelled"
	outcomeReauthFailed = "reauth_failed"
	outcomeFailed       = "failed"
	outcomeSuccess      = "success"
)
