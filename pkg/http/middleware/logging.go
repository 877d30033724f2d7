package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	applogger "RiskPulse/pkg/logger"
)

// RequestLogging logs one line per request. Health and metrics scrapes are
// logged at debug.
func RequestLogging(l *applogger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			fields := []applogger.Field{
				applogger.String("method", req.Method),
				applogger.String("route", routeOf(c)),
				applogger.Int("status", c.Response().Status),
				applogger.Duration("latency_ms", time.Since(start)),
				applogger.String("remote", c.RealIP()),
			}
			switch routeOf(c) {
			case "/healthz", "/metrics":
				l.Debug("http request", fields...)
			default:
				l.Info("http request", fields...)
			}
			return nil
		}
	}
}

func routeOf(c echo.Context) string {
	if p := c.Path(); p != "" {
		return p
	}
	return c.Request().URL.Path
}
