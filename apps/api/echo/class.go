package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core/landing"
	"github.com/trezcool/ratiba/core/schedule"
)

type classApi struct {
	swapper *schedule.Swapper
}

func registerClassAPI(g *echo.Group, cleared []echo.MiddlewareFunc, deps ServerDeps) {
	api := classApi{swapper: deps.Swapper}

	cg := g.Group("/classes", cleared...)
	cg.GET("/:id", api.retrieve, pageMiddleware(landing.TimetableHome))
	cg.POST("/swap", api.swap, pageMiddleware(landing.SwapClassesPage))
}

// Handlers

func (api *classApi) retrieve(ctx echo.Context) error {
	c, err := api.swapper.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *classApi) swap(ctx echo.Context) error {
	var data SwapRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SwapRequest")
	}

	reqCtx := ctx.Request().Context()
	if err := api.swapper.Swap(reqCtx, data.ClassA, data.ClassB); err != nil {
		return err
	}

	a, err := api.swapper.Get(reqCtx, data.ClassA)
	if err != nil {
		return err
	}
	b, err := api.swapper.Get(reqCtx, data.ClassB)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, []schedule.Class{a, b})
}

type SwapRequest struct {
	ClassA string `json:"class_a"`
	ClassB string `json:"class_b"`
}
