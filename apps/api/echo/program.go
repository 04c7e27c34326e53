package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tutorhub/backend/core/program"
	"github.com/tutorhub/backend/core/user"
)

type programApi struct {
	svc program.Service
}

// The program catalog feeds buildout pricing; program designers and money
// managers read it besides admins.
func registerProgramAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc program.Service) {
	api := programApi{svc: svc}

	pg := g.Group("/program", jwt, anyRoleMiddleware(user.RoleProgramDesigner, user.RoleMoneyManager))
	pg.GET("/roles", api.queryRoles)
	pg.GET("/base-costs", api.queryBaseCosts)
}

func (api *programApi) queryRoles(ctx echo.Context) error {
	roles, err := api.svc.QueryRoles(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying program roles")
	}
	if roles == nil {
		roles = []program.Role{}
	}
	return ctx.JSON(http.StatusOK, roles)
}

func (api *programApi) queryBaseCosts(ctx echo.Context) error {
	costs, err := api.svc.QueryBaseCosts(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying base costs")
	}
	if costs == nil {
		costs = []program.BaseCost{}
	}
	return ctx.JSON(http.StatusOK, costs)
}
