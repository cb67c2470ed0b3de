package enrollment

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ratiba/core/settings"
)

var (
	errBoom = errors.New("boom")
	owner   = Owner{ProfileID: "p-1", Email: "ada@test.cd"}
)

type fakeSetter struct {
	mu    sync.Mutex
	saved []bool
	err   error
}

func (f *fakeSetter) SetTwoFactor(_ context.Context, profileID string, enabled bool) (settings.Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return settings.Settings{}, f.err
	}
	f.saved = append(f.saved, enabled)
	return settings.Settings{ProfileID: profileID, TwoFactorEnabled: enabled}, nil
}

func (f *fakeSetter) calls() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.saved...)
}

type fakeOTP struct {
	code     string
	sendErr  error
	sent     int
	verified int

	// when set, Verify signals entered and waits for release
	entered chan struct{}
	release chan struct{}
}

func (f *fakeOTP) Send(context.Context, string) error {
	f.sent++
	return f.sendErr
}

func (f *fakeOTP) Verify(_ context.Context, _, code string) (bool, error) {
	f.verified++
	if f.entered != nil {
		close(f.entered)
		<-f.release
	}
	return code == f.code, nil
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func newController() (*Controller, *fakeSetter, *fakeOTP) {
	setter := &fakeSetter{}
	otpSvc := &fakeOTP{code: "123456"}
	return NewController(setter, otpSvc, nopLogger{}), setter, otpSvc
}

func TestController_enable(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		codes       []string
		wantState   State
		wantSaved   []bool
		wantErrType interface{}
	}{
		{name: "no code yet", wantState: StateAwaitingCode},
		{name: "wrong code", codes: []string{"000000"}, wantState: StateAwaitingCode, wantErrType: new(*OtpMismatchError)},
		{name: "right code", codes: []string{"123456"}, wantState: StateIdle, wantSaved: []bool{true}},
		{name: "wrong then right", codes: []string{"000000", "123456"}, wantState: StateIdle, wantSaved: []bool{true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, setter, otpSvc := newController()

			state, err := c.SetEnabled(ctx, owner, true)
			require.NoError(t, err)
			require.Equal(t, StateAwaitingCode, state)
			assert.Equal(t, 1, otpSvc.sent)
			assert.Empty(t, setter.calls(), "enabling must wait for the code")

			for _, code := range tt.codes {
				state, err = c.VerifyCode(ctx, code)
			}
			if tt.wantErrType != nil {
				assert.True(t, errors.As(err, tt.wantErrType), "got %T", err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantState, state)
			assert.Equal(t, tt.wantSaved, setter.calls())
		})
	}
}

func TestController_emptyCode(t *testing.T) {
	ctx := context.Background()
	c, setter, otpSvc := newController()
	_, err := c.SetEnabled(ctx, owner, true)
	require.NoError(t, err)

	state, err := c.VerifyCode(ctx, "  ")
	assert.Equal(t, ErrEmptyCode, err)
	assert.Equal(t, StateAwaitingCode, state)
	assert.Equal(t, 0, otpSvc.verified)
	assert.Empty(t, setter.calls())
}

func TestController_cancel(t *testing.T) {
	ctx := context.Background()
	c, setter, otpSvc := newController()
	_, err := c.SetEnabled(ctx, owner, true)
	require.NoError(t, err)

	c.Cancel()
	assert.False(t, c.Pending())

	_, err = c.VerifyCode(ctx, "123456")
	assert.Equal(t, ErrNoPendingCode, err)
	_, err = c.ResendCode(ctx)
	assert.Equal(t, ErrNoPendingCode, err)
	assert.Equal(t, 0, otpSvc.verified)
	assert.Empty(t, setter.calls())
}

func TestController_cancelDuringVerification(t *testing.T) {
	ctx := context.Background()
	c, setter, otpSvc := newController()
	otpSvc.entered = make(chan struct{})
	otpSvc.release = make(chan struct{})
	_, err := c.SetEnabled(ctx, owner, true)
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		verifyErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, verifyErr = c.VerifyCode(ctx, "123456")
	}()

	<-otpSvc.entered
	assert.Equal(t, StateVerifying, c.State())
	c.Cancel()
	close(otpSvc.release)
	wg.Wait()

	assert.Equal(t, ErrCancelled, verifyErr)
	assert.Equal(t, StateIdle, c.State())
	assert.Empty(t, setter.calls())
}

func TestController_sendFailureKeepsIntent(t *testing.T) {
	ctx := context.Background()
	c, setter, otpSvc := newController()
	otpSvc.sendErr = errBoom

	state, err := c.SetEnabled(ctx, owner, true)
	var issueErr *OtpIssueError
	require.True(t, errors.As(err, &issueErr))
	assert.Equal(t, errBoom, issueErr.Err)
	assert.Equal(t, StateAwaitingCode, state)
	assert.True(t, c.Pending())

	otpSvc.sendErr = nil
	_, err = c.ResendCode(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, otpSvc.sent)

	_, err = c.VerifyCode(ctx, "123456")
	require.NoError(t, err)
	assert.Equal(t, []bool{true}, setter.calls())
}

func TestController_disable(t *testing.T) {
	ctx := context.Background()
	c, setter, otpSvc := newController()
	_, err := c.SetEnabled(ctx, owner, true)
	require.NoError(t, err)

	state, err := c.SetEnabled(ctx, owner, false)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, state)
	assert.Equal(t, []bool{false}, setter.calls())
	assert.Equal(t, 1, otpSvc.sent, "disabling needs no code")

	// the earlier intent is gone
	_, err = c.VerifyCode(ctx, "123456")
	assert.Equal(t, ErrNoPendingCode, err)
}

func TestController_saveFailure(t *testing.T) {
	ctx := context.Background()
	c, setter, _ := newController()
	setter.err = errBoom
	_, err := c.SetEnabled(ctx, owner, true)
	require.NoError(t, err)

	state, err := c.VerifyCode(ctx, "123456")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errBoom))
	assert.Equal(t, StateAwaitingCode, state)
}
