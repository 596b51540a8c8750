package blocking

import (
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

func MapBlockingRoutes(e *echo.Echo, executor CommandExecutor, hist HistoryReader) error {
	handler := NewBlockingHandler(executor, hist)

	g := e.Group("/blocking")
	g.POST("/start", handler.Start)
	g.POST("/merge", handler.Merge)
	g.POST("/stop", handler.Stop)
	g.POST("/force-stop", handler.ForceStop)
	g.POST("/resume", handler.Resume)
	g.POST("/reset-stuck", handler.ResetStuck)
	g.GET("/status", handler.Status)
	g.GET("/history", handler.History)
	g.GET("/history/:operationID", handler.HistoryByID)

	log.Info().
		Str("commands", "/blocking/{start,merge,stop,force-stop,resume,reset-stuck}").
		Str("status", "/blocking/status").
		Str("history", "/blocking/history").
		Msg("Blocking routes mapped successfully.")

	return nil
}
