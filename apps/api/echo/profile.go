package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core/landing"
	"github.com/trezcool/ratiba/core/profile"
	"github.com/trezcool/ratiba/core/user"
)

type profileApi struct {
	usrSvc *user.Service
}

func registerProfileAPI(g *echo.Group, cleared []echo.MiddlewareFunc, deps ServerDeps) {
	api := profileApi{usrSvc: deps.UserSvc}

	g.GET("/me", api.me, cleared...)
	g.GET("/landing/root", api.rootLanding, cleared...)
}

// Handlers

func (api *profileApi) me(ctx echo.Context) error {
	prof, err := getContextProfile(ctx)
	if err != nil {
		return err
	}
	usr, err := api.usrSvc.GetByID(ctx.Request().Context(), prof.UserID)
	if err != nil {
		return errors.Wrap(err, "finding user by ID")
	}
	return ctx.JSON(http.StatusOK, MeResponse{User: usr, Profile: prof})
}

func (api *profileApi) rootLanding(ctx echo.Context) error {
	prof, err := getContextProfile(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, LandingResponse{Landing: landing.ResolveRoot(prof.Role)})
}

type (
	MeResponse struct {
		User    user.User       `json:"user"`
		Profile profile.Profile `json:"profile"`
	}

	LandingResponse struct {
		Landing string `json:"landing"`
	}
)
