package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core/enrollment"
	"github.com/trezcool/ratiba/core/landing"
	"github.com/trezcool/ratiba/core/settings"
	"github.com/trezcool/ratiba/core/user"
)

type settingsApi struct {
	svc      *settings.Service
	validate *validator.Validate
}

func registerSettingsAPI(g *echo.Group, cleared []echo.MiddlewareFunc, deps ServerDeps) {
	api := settingsApi{svc: deps.SettingsSvc, validate: deps.Validate}

	sg := g.Group("/settings", append(cleared, pageMiddleware(landing.SettingsPage))...)
	sg.GET("", api.retrieve)
	sg.PUT("/theme", api.setTheme)

	// enrollment calls do not take the device lock: a cancel must get through
	// while a verification is in flight
	sg.POST("/two-factor", api.setTwoFactor)
	sg.POST("/two-factor/verify", api.verifyTwoFactor)
	sg.POST("/two-factor/resend", api.resendTwoFactor)
	sg.POST("/two-factor/cancel", api.cancelTwoFactor)
}

// Handlers

func (api *settingsApi) retrieve(ctx echo.Context) error {
	prof, err := getContextProfile(ctx)
	if err != nil {
		return err
	}
	s, err := api.svc.Get(ctx.Request().Context(), prof.ID)
	if err != nil {
		return errors.Wrap(err, "getting settings")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *settingsApi) setTheme(ctx echo.Context) error {
	var data ThemeRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ThemeRequest")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}
	prof, err := getContextProfile(ctx)
	if err != nil {
		return err
	}

	s, err := api.svc.SetTheme(ctx.Request().Context(), prof.ID, data.Theme)
	if err != nil {
		return errors.Wrap(err, "setting theme")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *settingsApi) setTwoFactor(ctx echo.Context) error {
	var data TwoFactorRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to TwoFactorRequest")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}
	sess, owner, err := enrollmentOwner(ctx)
	if err != nil {
		return err
	}

	state, err := sess.enroll.SetEnabled(ctx.Request().Context(), owner, *data.Enabled)
	if err != nil {
		return errors.Wrap(err, "setting two-factor")
	}
	return api.enrollmentResponse(ctx, owner.ProfileID, state)
}

func (api *settingsApi) verifyTwoFactor(ctx echo.Context) error {
	var data VerifyCodeRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to VerifyCodeRequest")
	}
	sess, owner, err := enrollmentOwner(ctx)
	if err != nil {
		return err
	}

	state, err := sess.enroll.VerifyCode(ctx.Request().Context(), data.Code)
	if err != nil {
		return errors.Wrap(err, "verifying two-factor code")
	}
	return api.enrollmentResponse(ctx, owner.ProfileID, state)
}

func (api *settingsApi) resendTwoFactor(ctx echo.Context) error {
	sess, owner, err := enrollmentOwner(ctx)
	if err != nil {
		return err
	}

	state, err := sess.enroll.ResendCode(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "resending two-factor code")
	}
	return api.enrollmentResponse(ctx, owner.ProfileID, state)
}

func (api *settingsApi) cancelTwoFactor(ctx echo.Context) error {
	sess, owner, err := enrollmentOwner(ctx)
	if err != nil {
		return err
	}

	sess.enroll.Cancel()
	return api.enrollmentResponse(ctx, owner.ProfileID, sess.enroll.State())
}

func (api *settingsApi) enrollmentResponse(ctx echo.Context, profileID string, state enrollment.State) error {
	s, err := api.svc.Get(ctx.Request().Context(), profileID)
	if err != nil {
		return errors.Wrap(err, "getting settings")
	}
	return ctx.JSON(http.StatusOK, EnrollmentResponse{State: state, Settings: s})
}

func enrollmentOwner(ctx echo.Context) (*deviceSession, enrollment.Owner, error) {
	sess, err := getDeviceSession(ctx)
	if err != nil {
		return nil, enrollment.Owner{}, err
	}
	prof, err := getContextProfile(ctx)
	if err != nil {
		return nil, enrollment.Owner{}, err
	}
	p, ok := user.PrincipalFromContext(ctx.Request().Context())
	if !ok {
		return nil, enrollment.Owner{}, errUnauthorized
	}
	return sess, enrollment.Owner{ProfileID: prof.ID, Email: p.Email}, nil
}

type (
	ThemeRequest struct {
		Theme settings.Theme `json:"theme" validate:"required"`
	}

	TwoFactorRequest struct {
		Enabled *bool `json:"enabled" validate:"required"`
	}

	EnrollmentResponse struct {
		State    enrollment.State  `json:"state"`
		Settings settings.Settings `json:"settings"`
	}
)
