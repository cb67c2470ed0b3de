package gate

import "github.com/pkg/errors"

var (
	// ErrEmptyCode is returned, without contacting the OTP service, for a blank code.
	ErrEmptyCode = errors.New("please enter the verification code")
	// ErrCodeMismatch is the cause of an OtpMismatchError when the service simply said no.
	ErrCodeMismatch = errors.New("invalid or expired verification code")
	// ErrInvalidTransition is returned when an operation does not apply to the current state.
	ErrInvalidTransition = errors.New("operation not allowed in the current gate state")
)

// CredentialError: the credential store rejected the sign-in. Terminal for the attempt.
type CredentialError struct{ Err error }

func (e *CredentialError) Error() string { return "sign in failed: " + e.Err.Error() }
func (e *CredentialError) Unwrap() error { return e.Err }

// ProfileProvisionError: the profile could not be read or created.
type ProfileProvisionError struct{ Err error }

func (e *ProfileProvisionError) Error() string { return "loading profile failed: " + e.Err.Error() }
func (e *ProfileProvisionError) Unwrap() error { return e.Err }

// OtpIssueError: the code could not be sent. The gate keeps awaiting a code; resending is allowed.
type OtpIssueError struct{ Err error }

func (e *OtpIssueError) Error() string { return "sending verification code failed: " + e.Err.Error() }
func (e *OtpIssueError) Unwrap() error { return e.Err }

// OtpMismatchError: the submitted code was wrong, expired or could not be checked. Retryable.
type OtpMismatchError struct{ Err error }

func (e *OtpMismatchError) Error() string { return ErrCodeMismatch.Error() }
func (e *OtpMismatchError) Unwrap() error { return e.Err }
