package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Healthz serves GET /healthz: 200 with the report when healthy, 503 otherwise.
func (s *Server) Healthz(c echo.Context) error {
	r := s.Check(c.Request().Context())
	if !r.Healthy() {
		return c.JSON(http.StatusServiceUnavailable, r)
	}
	return c.JSON(http.StatusOK, r)
}
