// Package enrollment turns the second-factor requirement of a profile on and off.
// Enabling only takes effect once a code sent to the owner's email has been verified;
// disabling is saved right away.
package enrollment

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/otp"
	"github.com/trezcool/ratiba/core/settings"
)

var (
	// errors
	ErrEmptyCode     = errors.New("please enter the verification code")
	ErrCodeMismatch  = errors.New("invalid or expired verification code")
	ErrNoPendingCode = errors.New("two-factor enablement is not awaiting a code")
	// ErrCancelled is returned by a call whose result was discarded because Cancel (or a new
	// SetEnabled) happened while it was in flight.
	ErrCancelled = errors.New("two-factor enablement was cancelled")
)

type OtpIssueError struct{ Err error }

func (e *OtpIssueError) Error() string { return "sending verification code failed: " + e.Err.Error() }
func (e *OtpIssueError) Unwrap() error { return e.Err }

type OtpMismatchError struct{ Err error }

func (e *OtpMismatchError) Error() string { return ErrCodeMismatch.Error() }
func (e *OtpMismatchError) Unwrap() error { return e.Err }

type State int

const (
	StateIdle State = iota
	StateAwaitingCode
	StateVerifying
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingCode:
		return "awaiting_code"
	case StateVerifying:
		return "verifying"
	default:
		return "invalid"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Owner is the profile whose setting changes and the address its codes go to.
type Owner struct {
	ProfileID string
	Email     string
}

type (
	TwoFactorSetter interface {
		SetTwoFactor(ctx context.Context, profileID string, enabled bool) (settings.Settings, error)
	}

	// Controller holds at most one pending enable intent. It is safe for concurrent use; every
	// intent has a generation, and a result coming back for an older generation is dropped.
	Controller struct {
		settings TwoFactorSetter
		otp      otp.Service
		logger   core.Logger

		mu      sync.Mutex
		state   State
		pending Owner
		gen     uint64
	}
)

func NewController(setter TwoFactorSetter, otpSvc otp.Service, logger core.Logger) *Controller {
	return &Controller{settings: setter, otp: otpSvc, logger: logger}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Pending reports whether an enable intent is open.
func (c *Controller) Pending() bool {
	return c.State() != StateIdle
}

// discard drops the pending intent. Callers hold c.mu.
func (c *Controller) discard() {
	c.gen++
	c.state = StateIdle
	c.pending = Owner{}
}

// SetEnabled(true) opens an enable intent and sends a code to owner; nothing is saved yet.
// SetEnabled(false) drops any intent and saves the disabled setting at once.
func (c *Controller) SetEnabled(ctx context.Context, owner Owner, enabled bool) (State, error) {
	if !enabled {
		c.mu.Lock()
		c.discard()
		c.mu.Unlock()

		if _, err := c.settings.SetTwoFactor(ctx, owner.ProfileID, false); err != nil {
			return StateIdle, errors.Wrap(err, "disabling two-factor")
		}
		return StateIdle, nil
	}

	c.mu.Lock()
	c.discard()
	c.state = StateAwaitingCode
	c.pending = owner
	gen := c.gen
	c.mu.Unlock()

	return c.send(ctx, owner.Email, gen)
}

// ResendCode sends a new code for the pending intent.
func (c *Controller) ResendCode(ctx context.Context) (State, error) {
	c.mu.Lock()
	if c.state != StateAwaitingCode {
		c.mu.Unlock()
		return c.State(), ErrNoPendingCode
	}
	email, gen := c.pending.Email, c.gen
	c.mu.Unlock()

	return c.send(ctx, email, gen)
}

func (c *Controller) send(ctx context.Context, email string, gen uint64) (State, error) {
	err := c.otp.Send(ctx, email)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return c.state, ErrCancelled
	}
	if err != nil {
		// intent kept, the code can be resent
		return c.state, &OtpIssueError{Err: err}
	}
	return c.state, nil
}

// VerifyCode checks code for the pending intent and, on a match, saves the enabled setting.
// A blank code is rejected without contacting the OTP service.
func (c *Controller) VerifyCode(ctx context.Context, code string) (State, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return c.State(), ErrEmptyCode
	}

	c.mu.Lock()
	if c.state != StateAwaitingCode {
		c.mu.Unlock()
		return c.State(), ErrNoPendingCode
	}
	c.state = StateVerifying
	owner, gen := c.pending, c.gen
	c.mu.Unlock()

	ok, err := c.otp.Verify(ctx, owner.Email, code)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		c.logger.Info(fmt.Sprintf("discarding two-factor verification of profile %s", owner.ProfileID))
		return c.state, ErrCancelled
	}
	if err != nil || !ok {
		c.state = StateAwaitingCode
		if err == nil {
			err = ErrCodeMismatch
		}
		return c.state, &OtpMismatchError{Err: err}
	}

	if _, err := c.settings.SetTwoFactor(ctx, owner.ProfileID, true); err != nil {
		// the code is consumed: a new one has to be requested
		c.state = StateAwaitingCode
		return c.state, errors.Wrap(err, "enabling two-factor")
	}
	c.discard()
	return c.state, nil
}

// Cancel drops the pending intent. Nothing is saved, and a call still in flight has its
// result discarded.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.discard()
}
