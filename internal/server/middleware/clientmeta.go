package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/session"
)

// ClientMeta records the caller's IP and user agent in the request context so
// sessions and audit entries can be attributed.
func ClientMeta() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx := session.WithClientMeta(req.Context(), session.ClientMeta{
				IPAddress: c.RealIP(),
				UserAgent: req.UserAgent(),
			})
			c.SetRequest(req.WithContext(ctx))
			return next(c)
		}
	}
}
