package collector

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ExposeMetricsHTTPHandler serves the collector's registry in the
// prometheus text exposition format.
func (mc *MetricsCollector) ExposeMetricsHTTPHandler() http.Handler {
	return promhttp.HandlerFor(mc.gatherer, promhttp.HandlerOpts{})
}

func (mc *MetricsCollector) ExposeWebMetrics(e *echo.Echo) {
	e.GET("/metrics", echo.WrapHandler(mc.ExposeMetricsHTTPHandler()))
}
