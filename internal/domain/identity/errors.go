package identity

import "errors"

var (
	ErrInvalidCredentials      = errors.New("invalid email or password")
	ErrAdminInactive           = errors.New("admin account is inactive")
	ErrAdminNotFound           = errors.New("admin not found")
	ErrInvalidCredential       = errors.New("invalid credential")
	ErrLockedOut               = errors.New("too many failed attempts, try again later")
	ErrThrottled               = errors.New("too many verification attempts, slow down")
	ErrVerificationUnavailable = errors.New("verification is temporarily unavailable")
)
