package gate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ratiba/core/landing"
	"github.com/trezcool/ratiba/core/profile"
	"github.com/trezcool/ratiba/core/user"
)

var errBoom = errors.New("boom")

type memCache struct{ data map[string][]byte }

func newMemCache() *memCache { return &memCache{data: make(map[string][]byte)} }

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *memCache) Set(_ context.Context, key string, val []byte, _ time.Duration) error {
	c.data[key] = val
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	delete(c.data, key)
	return nil
}

type fakeCredentials struct {
	password   string
	principal  user.Principal
	current    *user.Principal
	signInErr  error
	flag       VerificationFlag
	flagAtCall bool
	calls      int
}

func (f *fakeCredentials) SignIn(ctx context.Context, email, password string) (user.Session, error) {
	f.calls++
	f.flagAtCall, _ = f.flag.Get(ctx, f.principal.UserID)
	if f.signInErr != nil {
		return user.Session{}, f.signInErr
	}
	if email != f.principal.Email || password != f.password {
		return user.Session{}, user.ErrInvalidCredentials
	}
	return user.Session{Token: "token", Principal: f.principal}, nil
}

func (f *fakeCredentials) CurrentUser(context.Context) (*user.Principal, error) {
	return f.current, nil
}

type fakeProfiles struct {
	prof  profile.Profile
	err   error
	calls int
}

func (f *fakeProfiles) Resolve(_ context.Context, userID string) (profile.Profile, error) {
	f.calls++
	if f.err != nil {
		return profile.Profile{}, f.err
	}
	p := f.prof
	p.UserID = userID
	return p, nil
}

type fakeSettings struct {
	enabled map[string]bool // missing key: no stored settings
	err     error
	calls   int
}

func (f *fakeSettings) TwoFactorEnabled(_ context.Context, profileID string) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return f.enabled[profileID], nil
}

type fakeOTP struct {
	code      string
	sendErr   error
	verifyErr error
	sentTo    []string
	verified  []string
}

func (f *fakeOTP) Send(_ context.Context, email string) error {
	f.sentTo = append(f.sentTo, email)
	return f.sendErr
}

func (f *fakeOTP) Verify(_ context.Context, _, code string) (bool, error) {
	f.verified = append(f.verified, code)
	if f.verifyErr != nil {
		return false, f.verifyErr
	}
	return code == f.code, nil
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

type fixture struct {
	gate     *Gate
	flag     VerificationFlag
	creds    *fakeCredentials
	profiles *fakeProfiles
	settings *fakeSettings
	otp      *fakeOTP
}

func newFixture(role profile.Role, twoFactor bool) *fixture {
	flag := NewVerificationFlag(newMemCache(), "device-1", time.Hour)
	principal := user.Principal{UserID: "u-1", Email: "ada@test.cd"}
	f := &fixture{
		flag:     flag,
		creds:    &fakeCredentials{password: "Secret#123", principal: principal, flag: flag},
		profiles: &fakeProfiles{prof: profile.Profile{ID: "p-1", Role: role}},
		settings: &fakeSettings{enabled: map[string]bool{}},
		otp:      &fakeOTP{code: "123456"},
	}
	if twoFactor {
		f.settings.enabled["p-1"] = true
	}
	f.gate = New(Deps{
		Credentials: f.creds,
		Profiles:    f.profiles,
		Settings:    f.settings,
		OTP:         f.otp,
		Logger:      nopLogger{},
	}, flag)
	return f
}

func (f *fixture) flagValue(t *testing.T) bool {
	v, err := f.flag.Get(context.Background(), f.creds.principal.UserID)
	require.NoError(t, err)
	return v
}

func TestGate_SignIn(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		role        profile.Role
		twoFactor   bool
		password    string
		wantState   State
		wantErrType interface{}
		wantSent    int
		wantLanding string
	}{
		{
			name: "wrong password", role: profile.RoleStudent, password: "nope",
			wantState: StateUnauthenticated, wantErrType: new(*CredentialError), wantLanding: landing.SignInPage,
		},
		{
			name: "student without 2fa", role: profile.RoleStudent, password: "Secret#123",
			wantState: StateCleared, wantLanding: landing.TimetableHome,
		},
		{
			name: "admin without 2fa", role: profile.RoleAdmin, password: "Secret#123",
			wantState: StateCleared, wantLanding: landing.UsersHome,
		},
		{
			name: "instructor without 2fa", role: profile.RoleInstructor, password: "Secret#123",
			wantState: StateCleared, wantLanding: landing.CoursesHome,
		},
		{
			name: "student with 2fa", role: profile.RoleStudent, twoFactor: true, password: "Secret#123",
			wantState: StateAwaitingCode, wantSent: 1, wantLanding: landing.SignInPage,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(tt.role, tt.twoFactor)

			_, err := f.gate.SignIn(ctx, "ada@test.cd", tt.password)
			if tt.wantErrType != nil {
				require.Error(t, err)
				assert.True(t, errors.As(err, tt.wantErrType), "got %T", err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantState, f.gate.State())
			assert.Len(t, f.otp.sentTo, tt.wantSent)
			assert.Equal(t, tt.wantLanding, f.gate.Landing(""))
			assert.False(t, f.flagValue(t))
		})
	}
}

func TestGate_SignIn_clearsFlagBeforeAuthenticating(t *testing.T) {
	ctx := context.Background()
	f := newFixture(profile.RoleStudent, true)
	require.NoError(t, f.flag.Set(ctx, "u-1"))

	_, err := f.gate.SignIn(ctx, "ada@test.cd", "Secret#123")
	require.NoError(t, err)

	assert.False(t, f.creds.flagAtCall, "flag must be cleared before the credential store is called")
	assert.Equal(t, StateAwaitingCode, f.gate.State())
}

func TestGate_SignIn_credentialFailureStopsEarly(t *testing.T) {
	f := newFixture(profile.RoleStudent, true)
	f.creds.signInErr = errBoom

	_, err := f.gate.SignIn(context.Background(), "ada@test.cd", "Secret#123")

	var credErr *CredentialError
	require.True(t, errors.As(err, &credErr))
	assert.Equal(t, errBoom, credErr.Err)
	assert.Equal(t, 0, f.profiles.calls)
	assert.Equal(t, 0, f.settings.calls)
	assert.Empty(t, f.otp.sentTo)
}

func TestGate_missingSettingsMeansNoSecondFactor(t *testing.T) {
	f := newFixture(profile.RoleStudent, false)
	f.settings.enabled = nil

	_, err := f.gate.SignIn(context.Background(), "ada@test.cd", "Secret#123")
	require.NoError(t, err)

	assert.True(t, f.gate.Cleared())
	assert.Empty(t, f.otp.sentTo)
}

func TestGate_settingsReadFailureDoesNotClear(t *testing.T) {
	f := newFixture(profile.RoleStudent, false)
	f.settings.err = errBoom

	_, err := f.gate.SignIn(context.Background(), "ada@test.cd", "Secret#123")
	require.Error(t, err)

	assert.False(t, f.gate.Cleared())
	assert.Equal(t, StateAuthenticatedUnchecked, f.gate.State())
}

func TestGate_profileProvisionFailure(t *testing.T) {
	f := newFixture(profile.RoleStudent, false)
	f.profiles.err = errBoom

	_, err := f.gate.SignIn(context.Background(), "ada@test.cd", "Secret#123")

	var provErr *ProfileProvisionError
	require.True(t, errors.As(err, &provErr))
	assert.Equal(t, StateAuthenticatedUnchecked, f.gate.State())
	assert.False(t, f.gate.Cleared())
	assert.Equal(t, landing.RootHome, f.gate.Landing(""))
	assert.Equal(t, 0, f.settings.calls)
}

func TestGate_otpIssueFailureIsRecoverable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(profile.RoleStudent, true)
	f.otp.sendErr = errBoom

	_, err := f.gate.SignIn(ctx, "ada@test.cd", "Secret#123")

	var issueErr *OtpIssueError
	require.True(t, errors.As(err, &issueErr))
	assert.Equal(t, StateAwaitingCode, f.gate.State())

	// resend
	f.otp.sendErr = nil
	require.NoError(t, f.gate.ResendCode(ctx))
	assert.Equal(t, []string{"ada@test.cd", "ada@test.cd"}, f.otp.sentTo)
	assert.Equal(t, StateAwaitingCode, f.gate.State())

	state, err := f.gate.VerifyCode(ctx, "123456")
	require.NoError(t, err)
	assert.Equal(t, StateCleared, state)
}

func TestGate_VerifyCode(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name         string
		code         string
		verifyErr    error
		wantState    State
		wantErr      error
		wantErrType  interface{}
		wantVerified int
		wantFlag     bool
	}{
		{name: "empty code", code: "", wantState: StateAwaitingCode, wantErr: ErrEmptyCode},
		{name: "blank code", code: "   ", wantState: StateAwaitingCode, wantErr: ErrEmptyCode},
		{
			name: "mismatch", code: "000000", wantState: StateAwaitingCode,
			wantErrType: new(*OtpMismatchError), wantVerified: 1,
		},
		{
			name: "service failure", code: "123456", verifyErr: errBoom, wantState: StateAwaitingCode,
			wantErrType: new(*OtpMismatchError), wantVerified: 1,
		},
		{name: "match", code: "123456", wantState: StateCleared, wantVerified: 1, wantFlag: true},
		{name: "match with spaces", code: " 123456 ", wantState: StateCleared, wantVerified: 1, wantFlag: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(profile.RoleStudent, true)
			f.otp.verifyErr = tt.verifyErr
			_, err := f.gate.SignIn(ctx, "ada@test.cd", "Secret#123")
			require.NoError(t, err)

			state, err := f.gate.VerifyCode(ctx, tt.code)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			case tt.wantErrType != nil:
				assert.True(t, errors.As(err, tt.wantErrType), "got %T", err)
			default:
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantState, state)
			assert.Equal(t, tt.wantState, f.gate.State())
			assert.Len(t, f.otp.verified, tt.wantVerified)
			assert.Equal(t, tt.wantFlag, f.flagValue(t))
		})
	}
}

func TestGate_retryAfterMismatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(profile.RoleInstructor, true)
	_, err := f.gate.SignIn(ctx, "ada@test.cd", "Secret#123")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = f.gate.VerifyCode(ctx, "999999")
		require.Error(t, err)
	}
	state, err := f.gate.VerifyCode(ctx, "123456")
	require.NoError(t, err)
	assert.Equal(t, StateCleared, state)
	assert.Equal(t, landing.CoursesHome, f.gate.Landing(""))
	assert.Equal(t, "/manage-timetable", f.gate.Landing("/manage-timetable"))
}

func TestGate_Step_mount(t *testing.T) {
	ctx := context.Background()
	principal := &user.Principal{UserID: "u-1", Email: "ada@test.cd"}

	tests := []struct {
		name         string
		current      *user.Principal
		flagOwner    string
		twoFactor    bool
		wantState    State
		wantSettings int
		wantSent     int
	}{
		{name: "no session", wantState: StateUnauthenticated},
		{name: "no session but stale flag", flagOwner: "u-1", wantState: StateUnauthenticated},
		{
			name: "verified device skips checks", current: principal, flagOwner: "u-1", twoFactor: true,
			wantState: StateCleared,
		},
		{
			name: "device verified by another user", current: principal, flagOwner: "u-2", twoFactor: true,
			wantState: StateAwaitingCode, wantSettings: 1, wantSent: 1,
		},
		{name: "unverified device without 2fa", current: principal, wantState: StateCleared, wantSettings: 1},
		{
			name: "unverified device with 2fa", current: principal, twoFactor: true,
			wantState: StateAwaitingCode, wantSettings: 1, wantSent: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(profile.RoleStudent, tt.twoFactor)
			f.creds.current = tt.current
			if tt.flagOwner != "" {
				require.NoError(t, f.flag.Set(ctx, tt.flagOwner))
			}

			state, err := f.gate.Step(ctx, EventMount)
			require.NoError(t, err)
			assert.Equal(t, tt.wantState, state)
			assert.Equal(t, tt.wantSettings, f.settings.calls)
			assert.Len(t, f.otp.sentTo, tt.wantSent)
		})
	}
}

func TestGate_Step_mountWhileAwaitingDoesNotResend(t *testing.T) {
	ctx := context.Background()
	f := newFixture(profile.RoleStudent, true)
	_, err := f.gate.SignIn(ctx, "ada@test.cd", "Secret#123")
	require.NoError(t, err)
	f.creds.current = f.gate.Principal()

	state, err := f.gate.Step(ctx, EventMount)
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingCode, state)
	assert.Len(t, f.otp.sentTo, 1)
}

func TestGate_Step_mountOtherPrincipalOnVerifiedDevice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(profile.RoleAdmin, true)
	f.creds.current = &user.Principal{UserID: "u-1", Email: "ada@test.cd"}

	state, err := f.gate.Step(ctx, EventMount)
	require.NoError(t, err)
	require.Equal(t, StateAwaitingCode, state)
	state, err = f.gate.VerifyCode(ctx, "123456")
	require.NoError(t, err)
	require.Equal(t, StateCleared, state)

	f.creds.current = &user.Principal{UserID: "u-2", Email: "grace@test.cd"}
	state, err = f.gate.Step(ctx, EventMount)
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingCode, state)
	assert.Equal(t, "u-2", f.gate.Principal().UserID)
	assert.Equal(t, []string{"ada@test.cd", "grace@test.cd"}, f.otp.sentTo)

	verified, err := f.flag.Get(ctx, "u-1")
	require.NoError(t, err)
	assert.False(t, verified, "a principal change drops the previous verification")

	// the first user coming back has to verify again too
	f.creds.current = &user.Principal{UserID: "u-1", Email: "ada@test.cd"}
	state, err = f.gate.Step(ctx, EventMount)
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingCode, state)
	assert.Len(t, f.otp.sentTo, 3)
}

func TestVerificationFlag(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		owner  string
		userID string
		want   bool
	}{
		{name: "unset", userID: "u-1"},
		{name: "owner", owner: "u-1", userID: "u-1", want: true},
		{name: "other user", owner: "u-1", userID: "u-2"},
		{name: "blank user", owner: "u-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag := NewVerificationFlag(newMemCache(), "device-1", time.Hour)
			if tt.owner != "" {
				require.NoError(t, flag.Set(ctx, tt.owner))
			}
			got, err := flag.Get(ctx, tt.userID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			require.NoError(t, flag.Clear(ctx))
			got, err = flag.Get(ctx, tt.userID)
			require.NoError(t, err)
			assert.False(t, got)
		})
	}
}

func TestGate_newSignInRequiresCodeAgain(t *testing.T) {
	ctx := context.Background()
	f := newFixture(profile.RoleStudent, true)

	_, err := f.gate.SignIn(ctx, "ada@test.cd", "Secret#123")
	require.NoError(t, err)
	_, err = f.gate.VerifyCode(ctx, "123456")
	require.NoError(t, err)
	require.True(t, f.flagValue(t))

	_, err = f.gate.SignIn(ctx, "ada@test.cd", "Secret#123")
	require.NoError(t, err)
	assert.False(t, f.flagValue(t))
	assert.Equal(t, StateAwaitingCode, f.gate.State())
	assert.Len(t, f.otp.sentTo, 2)
}

func TestGate_SignOut(t *testing.T) {
	ctx := context.Background()
	f := newFixture(profile.RoleStudent, true)
	_, err := f.gate.SignIn(ctx, "ada@test.cd", "Secret#123")
	require.NoError(t, err)
	_, err = f.gate.VerifyCode(ctx, "123456")
	require.NoError(t, err)

	require.NoError(t, f.gate.SignOut(ctx))
	assert.Equal(t, StateUnauthenticated, f.gate.State())
	assert.Nil(t, f.gate.Principal())
	assert.False(t, f.flagValue(t))
}

func TestGate_invalidTransitions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(profile.RoleStudent, false)

	_, err := f.gate.VerifyCode(ctx, "123456")
	assert.Equal(t, ErrInvalidTransition, err)
	assert.Equal(t, ErrInvalidTransition, f.gate.ResendCode(ctx))
	_, err = f.gate.Step(ctx, EventCodeVerified)
	assert.Equal(t, ErrInvalidTransition, err)
	_, err = f.gate.Step(ctx, EventSignInSucceeded)
	assert.Equal(t, ErrInvalidTransition, err)
	_, err = f.gate.Step(ctx, Event(42))
	assert.Equal(t, ErrInvalidTransition, err)
	assert.Empty(t, f.otp.verified)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "awaiting_code", StateAwaitingCode.String())
	assert.Equal(t, "cleared", StateCleared.String())
	assert.Equal(t, "invalid", State(99).String())
	assert.Equal(t, "mount", EventMount.String())
}
