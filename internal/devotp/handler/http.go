// Package handler serves the dev-only GET /dev/otp endpoint.
package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/devotp"
)

const devOTPNote = "DEV MODE ONLY"

// Response is the body of GET /dev/otp.
type Response struct {
	OTP  string `json:"otp"`
	Note string `json:"note"`
}

// Handler reads sign-in codes from the dev store. Only registered when dev OTP mode is enabled and not production.
type Handler struct {
	store devotp.Store
}

// New returns a Handler backed by store.
func New(store devotp.Store) *Handler {
	return &Handler{store: store}
}

// Register mounts the route on g.
func (h *Handler) Register(g *echo.Group) {
	g.GET("/otp", h.GetOTP)
}

// GetOTP returns the latest code issued to ?email=. 400 without email, 404 when missing or expired.
func (h *Handler) GetOTP(c echo.Context) error {
	email := strings.TrimSpace(c.QueryParam("email"))
	if email == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email is required")
	}
	code, ok := h.store.Get(c.Request().Context(), email)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "OTP not found or expired")
	}
	return c.JSON(http.StatusOK, Response{OTP: code, Note: devOTPNote})
}
