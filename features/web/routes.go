package web

import (
	"net/http"

	"eksiblock/features/web/handlers/blocking"
	"eksiblock/features/web/handlers/health"
	"eksiblock/features/web/handlers/problem"

	"github.com/labstack/echo/v4"
)

func (app *Application) ConfigureRoutes() error {
	e := app.Echo

	app.MapHome()
	if err := blocking.MapBlockingRoutes(e, app.services.Executor, app.services.History); err != nil {
		return err
	}

	problem.MapRoutes(e)
	health.MapHealth(e, *app.config, app.services.Status)

	return nil
}

func (app *Application) MapHome() {
	e := app.Echo

	e.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, "Welcome to EKSIBLOCK Service")
	})
}
