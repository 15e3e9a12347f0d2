package server

import (
	"context"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/srinivasgumdelli/moat/internal/telemetry"
)

// Admin is the small HTTP surface exposed while the pipeline runs on a
// schedule: health and Prometheus metrics.
type Admin struct {
	echo   *echo.Echo
	addr   string
	logger *log.Logger
}

func NewAdmin(addr string, metrics *telemetry.Metrics, logger *log.Logger) *Admin {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	return &Admin{echo: e, addr: addr, logger: logger}
}

// Start serves until Shutdown is called. http.ErrServerClosed is swallowed.
func (a *Admin) Start() error {
	if a.logger != nil {
		a.logger.Printf("admin server listening on %s", a.addr)
	}
	if err := a.echo.Start(a.addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (a *Admin) Shutdown(ctx context.Context) error {
	return a.echo.Shutdown(ctx)
}
