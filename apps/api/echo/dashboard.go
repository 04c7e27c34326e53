package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tutorhub/backend/core/user"
)

type dashboardApi struct {
	usrSvc user.Service
}

func registerDashboardAPI(g *echo.Group, jwt echo.MiddlewareFunc, usrSvc user.Service) {
	api := dashboardApi{usrSvc: usrSvc}

	dg := g.Group("/dashboard", jwt, adminMiddleware())
	dg.GET("/stats", api.stats)
}

func (api *dashboardApi) stats(ctx echo.Context) error {
	stats, err := api.usrSvc.Stats(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying user stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}
