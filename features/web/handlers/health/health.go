package health

import (
	"net/http"

	"eksiblock/features/blocking"
	"eksiblock/internal/config"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// StatusReporter exposes the workflow state to the health endpoint.
type StatusReporter interface {
	GetStatus() blocking.StatusReport
}

// MapHealth sets up the healthcheck endpoints if enabled in config.
func MapHealth(e *echo.Echo, cfg config.ServerConfig, reporter StatusReporter) {
	if !cfg.HealthCheck {
		log.Info().Msg("Health check disabled")
		return
	}
	g := e.Group("/health")
	g.GET("/status", StatusCheck(reporter))
	log.Info().Msg("Health check enabled at /health/status")
}

// StatusCheck reports "ok" together with the state of the blocking workflow.
// A stuck operation degrades the status without failing the check.
func StatusCheck(reporter StatusReporter) echo.HandlerFunc {
	return func(c echo.Context) error {
		body := map[string]any{"status": "ok"}
		if reporter != nil {
			report := reporter.GetStatus()
			body["blocking"] = map[string]any{
				"status":  report.Status,
				"running": report.Running,
			}
			if report.Status == blocking.StatusStuck {
				body["status"] = "degraded"
			}
		}
		return c.JSON(http.StatusOK, body)
	}
}
