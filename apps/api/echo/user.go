package echoapi

import (
	"fmt"
	"net/http"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/gate"
	"github.com/trezcool/ratiba/core/user"
)

type authApi struct {
	svc        *user.Service
	sessions   *sessionRegistry
	validate   *validator.Validate
	translator ut.Translator
	logger     core.Logger
}

func registerAuthAPI(g *echo.Group, authed []echo.MiddlewareFunc, deps ServerDeps, sessions *sessionRegistry) {
	api := authApi{
		svc:        deps.UserSvc,
		sessions:   sessions,
		validate:   deps.Validate,
		translator: deps.Translator,
		logger:     deps.Logger,
	}

	ag := g.Group("/auth")

	// un-authed endpoints
	ag.POST("/signup", api.signUp)
	ag.POST("/signin", api.signIn)

	// authed endpoints: the gate does not need to be cleared
	tg := ag.Group("", authed...)
	tg.POST("/mount", api.mount)
	tg.POST("/otp/resend", api.resendCode)
	tg.POST("/otp/verify", api.verifyCode)
	tg.POST("/signout", api.signOut)
}

// Handlers

func (api *authApi) signUp(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}

	usr, err := api.svc.SignUp(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "signing up")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

// signIn authenticates the device. Once the credentials are accepted the token is always
// returned; a failed profile load or code delivery is reported in the warning and leaves the
// gate short of cleared.
func (api *authApi) signIn(ctx echo.Context) error {
	var data SignInRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SignInRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	sess, err := getDeviceSession(ctx)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	// a new sign-in abandons any pending enrollment of the device
	sess.enroll.Cancel()

	userSess, err := sess.gate.SignIn(ctx.Request().Context(), data.Email, data.Password)
	if userSess.Token == "" {
		if err == nil {
			err = errors.New("sign in returned no token")
		}
		return err
	}

	resp := newGateResponse(sess.gate, data.Next)
	resp.Token = userSess.Token
	resp.ExpiresAt = &userSess.ExpiresAt
	if err != nil {
		resp.Warning = api.warning(err, userSess.Principal)
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (api *authApi) warning(err error, p user.Principal) string {
	code, message := errorResponse(err, api.translator)
	if code >= http.StatusInternalServerError {
		api.logger.Error(fmt.Sprintf("signing in: %v", err), err, p)
	} else {
		api.logger.Warn(fmt.Sprintf("signing in: %v", err), err, p)
	}
	if m, ok := message.(string); ok {
		return m
	}
	return http.StatusText(code)
}

// mount picks up the session of a reloaded client.
func (api *authApi) mount(ctx echo.Context) error {
	var data MountRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to MountRequest")
	}
	sess, err := getDeviceSession(ctx)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if _, err = sess.mount(ctx.Request().Context()); err != nil {
		return errors.Wrap(err, "mounting")
	}
	return ctx.JSON(http.StatusOK, newGateResponse(sess.gate, data.Next))
}

func (api *authApi) resendCode(ctx echo.Context) error {
	sess, err := getDeviceSession(ctx)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err = sess.gate.ResendCode(ctx.Request().Context()); err != nil {
		return errors.Wrap(err, "resending code")
	}
	return ctx.JSON(http.StatusOK, newGateResponse(sess.gate, ""))
}

func (api *authApi) verifyCode(ctx echo.Context) error {
	var data VerifyCodeRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to VerifyCodeRequest")
	}
	sess, err := getDeviceSession(ctx)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if _, err = sess.gate.VerifyCode(ctx.Request().Context(), data.Code); err != nil {
		return errors.Wrap(err, "verifying code")
	}
	return ctx.JSON(http.StatusOK, newGateResponse(sess.gate, data.Next))
}

func (api *authApi) signOut(ctx echo.Context) error {
	sess, err := getDeviceSession(ctx)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.enroll.Cancel()
	if err = sess.gate.SignOut(ctx.Request().Context()); err != nil {
		return errors.Wrap(err, "signing out")
	}
	api.sessions.drop(sess.id)
	return ctx.NoContent(http.StatusNoContent)
}

type (
	SignInRequest struct {
		Email    string `json:"email" validate:"required"`
		Password string `json:"password" validate:"required"`
		Next     string `json:"next"`
	}

	MountRequest struct {
		Next string `json:"next"`
	}

	VerifyCodeRequest struct {
		Code string `json:"code"`
		Next string `json:"next"`
	}

	// GateResponse tells the client where the device stands and where to go next.
	GateResponse struct {
		State     gate.State `json:"state"`
		Landing   string     `json:"landing"`
		Token     string     `json:"token,omitempty"`
		ExpiresAt *time.Time `json:"expires_at,omitempty"`
		Warning   string     `json:"warning,omitempty"`
	}
)

func newGateResponse(g *gate.Gate, next string) GateResponse {
	return GateResponse{State: g.State(), Landing: g.Landing(next)}
}

func (sr *SignInRequest) Validate(validate *validator.Validate) error {
	sr.Email = core.CleanString(sr.Email, true /* lower */)
	return validate.Struct(sr)
}
