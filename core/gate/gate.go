// Package gate decides whether an authenticated principal must pass a one-time code
// before reaching protected screens.
//
// A principal is cleared iff its credentials were accepted and either two-factor is off
// for its profile or the device's VerificationFlag is set. A Gate serves one device
// session and is not safe for concurrent use.
package gate

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/landing"
	"github.com/trezcool/ratiba/core/metrics"
	"github.com/trezcool/ratiba/core/otp"
	"github.com/trezcool/ratiba/core/profile"
	"github.com/trezcool/ratiba/core/user"
)

type (
	ProfileResolver interface {
		// Resolve returns the profile of userID, creating it when missing.
		Resolve(ctx context.Context, userID string) (profile.Profile, error)
	}

	TwoFactorChecker interface {
		// TwoFactorEnabled is false when profileID has no stored settings.
		TwoFactorEnabled(ctx context.Context, profileID string) (bool, error)
	}

	Deps struct {
		Credentials user.CredentialStore
		Profiles    ProfileResolver
		Settings    TwoFactorChecker
		OTP         otp.Service
		Logger      core.Logger
	}

	Gate struct {
		deps Deps
		flag VerificationFlag

		state          State
		session        *user.Session
		principal      *user.Principal
		prof           *profile.Profile
		challengeEmail string
	}
)

func New(deps Deps, flag VerificationFlag) *Gate {
	return &Gate{deps: deps, flag: flag, state: StateUnauthenticated}
}

func (g *Gate) State() State  { return g.state }
func (g *Gate) Cleared() bool { return g.state == StateCleared }

// Principal is nil until a sign-in succeeded or a session was picked up on mount.
func (g *Gate) Principal() *user.Principal { return g.principal }

// Session is only set by SignIn.
func (g *Gate) Session() *user.Session { return g.session }

// Profile is nil until resolved.
func (g *Gate) Profile() *profile.Profile { return g.prof }

// ChallengeEmail is the address the pending code was sent to.
func (g *Gate) ChallengeEmail() string { return g.challengeEmail }

func (g *Gate) setState(s State) {
	if g.state != s {
		metrics.ObserveGateState(s.String())
	}
	g.state = s
}

func (g *Gate) reset() {
	g.setState(StateUnauthenticated)
	g.session = nil
	g.principal = nil
	g.prof = nil
	g.challengeEmail = ""
}

// SignIn forgets any previous verification of this device, then authenticates.
// On success the gate goes on with the profile and two-factor checks; the returned error may
// then be a *ProfileProvisionError or a (non-fatal) *OtpIssueError.
func (g *Gate) SignIn(ctx context.Context, email, password string) (user.Session, error) {
	if err := g.flag.Clear(ctx); err != nil {
		return user.Session{}, errors.Wrap(err, "clearing verification flag")
	}
	g.reset()

	sess, err := g.deps.Credentials.SignIn(ctx, email, password)
	if err != nil {
		return user.Session{}, &CredentialError{Err: err}
	}
	g.session = &sess
	g.principal = &user.Principal{UserID: sess.Principal.UserID, Email: sess.Principal.Email}
	g.setState(StateAuthenticatedUnchecked)

	_, err = g.Step(ctx, EventSignInSucceeded)
	return sess, err
}

// SignOut clears the verification flag and forgets the principal.
func (g *Gate) SignOut(ctx context.Context) error {
	g.reset()
	return errors.Wrap(g.flag.Clear(ctx), "clearing verification flag")
}

// Step applies ev to the gate.
func (g *Gate) Step(ctx context.Context, ev Event) (State, error) {
	switch ev {
	case EventMount:
		return g.mount(ctx)

	case EventSignInSucceeded:
		if g.state != StateAuthenticatedUnchecked || g.principal == nil {
			return g.state, ErrInvalidTransition
		}
		return g.check(ctx)

	case EventCodeVerified:
		if g.state != StateVerifying || g.principal == nil {
			return g.state, ErrInvalidTransition
		}
		if err := g.flag.Set(ctx, g.principal.UserID); err != nil {
			g.setState(StateAwaitingCode)
			return g.state, errors.Wrap(err, "setting verification flag")
		}
		g.challengeEmail = ""
		g.setState(StateCleared)
		return g.state, nil

	default:
		return g.state, ErrInvalidTransition
	}
}

// mount picks up the credential session carried by ctx.
// A device on which this same principal already passed the second factor is cleared
// without any check. A different principal drops the device's verification.
func (g *Gate) mount(ctx context.Context) (State, error) {
	p, err := g.deps.Credentials.CurrentUser(ctx)
	if err != nil {
		return g.state, errors.Wrap(err, "reading current user")
	}
	if p == nil {
		g.reset()
		return g.state, nil
	}
	if g.principal == nil || g.principal.UserID != p.UserID {
		if g.principal != nil {
			if err := g.flag.Clear(ctx); err != nil {
				return g.state, errors.Wrap(err, "clearing verification flag")
			}
		}
		g.reset()
		g.principal = p
		g.setState(StateAuthenticatedUnchecked)
	}

	verified, err := g.flag.Get(ctx, p.UserID)
	if err != nil {
		g.deps.Logger.Warn(fmt.Sprintf("reading verification flag: %v", err), err, *p)
	}
	if verified {
		g.setState(StateCleared)
		if g.prof == nil {
			// only needed to pick a landing; RootHome is used without it
			if prof, err := g.deps.Profiles.Resolve(ctx, p.UserID); err == nil {
				g.prof = &prof
			} else {
				g.deps.Logger.Warn(fmt.Sprintf("resolving profile on mount: %v", err), err, *p)
			}
		}
		return g.state, nil
	}

	switch g.state {
	case StateAwaitingCode, StateVerifying:
		// a code is already pending for this principal; the client may resend it
		g.setState(StateAwaitingCode)
		return g.state, nil
	case StateCleared:
		g.setState(StateAuthenticatedUnchecked)
	}
	return g.check(ctx)
}

// check runs the profile and two-factor checks of an authenticated principal.
func (g *Gate) check(ctx context.Context) (State, error) {
	prof, err := g.ResolveProfile(ctx, g.principal.UserID)
	if err != nil {
		return g.state, err
	}
	return g.CheckTwoFactor(ctx, prof.ID)
}

// ResolveProfile gets or creates the profile of userID.
// On failure the gate stays authenticated but unchecked, and never clears: without a
// profile the two-factor setting cannot be read, so protected screens stay closed even
// though the principal lands on the root path instead of being sent back to sign-in.
func (g *Gate) ResolveProfile(ctx context.Context, userID string) (profile.Profile, error) {
	prof, err := g.deps.Profiles.Resolve(ctx, userID)
	if err != nil {
		return profile.Profile{}, &ProfileProvisionError{Err: err}
	}
	g.prof = &prof
	return prof, nil
}

// CheckTwoFactor clears the gate when profileID has no second factor; otherwise it sends a
// code to the principal and waits for it.
func (g *Gate) CheckTwoFactor(ctx context.Context, profileID string) (State, error) {
	if g.state != StateAuthenticatedUnchecked || g.principal == nil {
		return g.state, ErrInvalidTransition
	}

	enabled, err := g.deps.Settings.TwoFactorEnabled(ctx, profileID)
	if err != nil {
		return g.state, errors.Wrap(err, "checking two-factor setting")
	}
	if !enabled {
		g.setState(StateCleared)
		return g.state, nil
	}

	g.challengeEmail = g.principal.Email
	g.setState(StateAwaitingCode)
	return g.state, g.RequestCode(ctx, g.challengeEmail)
}

// RequestCode sends a code to email. A failure leaves the state unchanged.
func (g *Gate) RequestCode(ctx context.Context, email string) error {
	if err := g.deps.OTP.Send(ctx, email); err != nil {
		return &OtpIssueError{Err: err}
	}
	return nil
}

// ResendCode sends a new code to the challenged address.
func (g *Gate) ResendCode(ctx context.Context) error {
	if g.state != StateAwaitingCode {
		return ErrInvalidTransition
	}
	return g.RequestCode(ctx, g.challengeEmail)
}

// VerifyCode checks code against the pending challenge. A blank code is rejected locally.
func (g *Gate) VerifyCode(ctx context.Context, code string) (State, error) {
	if g.state != StateAwaitingCode {
		return g.state, ErrInvalidTransition
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return g.state, ErrEmptyCode
	}

	g.setState(StateVerifying)
	ok, err := g.deps.OTP.Verify(ctx, g.challengeEmail, code)
	if err != nil {
		g.setState(StateAwaitingCode)
		return g.state, &OtpMismatchError{Err: err}
	}
	if !ok {
		g.setState(StateAwaitingCode)
		return g.state, &OtpMismatchError{Err: ErrCodeMismatch}
	}
	return g.Step(ctx, EventCodeVerified)
}

// Landing returns where the principal goes next: the deep link or the role's home once
// cleared, the root path when the profile could not be loaded, the sign-in page otherwise.
func (g *Gate) Landing(deepLink string) string {
	switch g.state {
	case StateCleared:
		role := profile.RoleUnknown
		if g.prof != nil {
			role = g.prof.Role
		}
		return landing.Resolve(role, deepLink)
	case StateAuthenticatedUnchecked:
		// profile could not be loaded; the root path is shown but nothing protected opens
		return landing.RootHome
	default:
		return landing.SignInPage
	}
}
