package api

import (
	"github.com/datallboy/nzbweaver/internal/api/controllers"
	"github.com/datallboy/nzbweaver/internal/app"
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
)

func RegisterRoutes(e *echo.Echo, app *app.Context, src controllers.StatusSource) {

	// Middleware: Request Logger
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c *echo.Context, v middleware.RequestLoggerValues) error {
			app.Logger.Debug("%s %s | %d | %s", v.Method, v.URI, v.Status, v.Latency)
			return nil
		},
	}))

	statusCtrl := &controllers.StatusController{Source: src}

	// Read-only progress of the current run
	e.GET("/api/status", statusCtrl.HandleStatus)
	e.GET("/api/files", statusCtrl.HandleFiles)
}
