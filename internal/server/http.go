// Package server assembles the HTTP and gRPC servers.
package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/devotp"
	devotphandler "github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/devotp/handler"
	healthhandler "github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/health/handler"
	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/server/middleware"
	signinhandler "github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/signin/handler"
)

// HTTPDeps holds the collaborators of the HTTP server.
type HTTPDeps struct {
	// Flow serves /api/auth and /api/passkeys.
	Flow signinhandler.Service
	// Auth validates access tokens on authenticated routes.
	Auth middleware.Authenticator
	// Health serves /healthz. If nil, the route reports ok without probes.
	Health *healthhandler.Server
	// DevOTP exposes /dev/otp. Set only when dev OTP is enabled and not production.
	DevOTP devotp.Store
	// AllowOrigins lists the browser origins allowed by CORS.
	AllowOrigins []string
	// RateLimit is the per-client request rate per second. Zero disables limiting.
	RateLimit float64
	Logger    *zap.Logger
}

// NewHTTPServer returns the echo instance with middleware and routes mounted.
func NewHTTPServer(deps HTTPDeps) *echo.Echo {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("remote_ip", v.RemoteIP),
			}
			if v.Error != nil {
				logger.Warn("http request", append(fields, zap.Error(v.Error))...)
				return nil
			}
			logger.Info("http request", fields...)
			return nil
		},
	}))
	e.Use(echomw.Recover())
	e.Use(echomw.SecureWithConfig(echomw.SecureConfig{
		XFrameOptions:         "DENY",
		ContentTypeNosniff:    "nosniff",
		XSSProtection:         "1; mode=block",
		HSTSMaxAge:            31536000,
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
	}))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     deps.AllowOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderAccept, echo.HeaderAuthorization, echo.HeaderContentType, "X-CSRF-Token"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if deps.RateLimit > 0 {
		e.Use(echomw.RateLimiterWithConfig(echomw.RateLimiterConfig{
			Skipper: func(c echo.Context) bool { return c.Path() == "/healthz" },
			Store:   echomw.NewRateLimiterMemoryStore(rate.Limit(deps.RateLimit)),
			DenyHandler: func(c echo.Context, identifier string, err error) error {
				return c.JSON(http.StatusTooManyRequests, echo.Map{"success": false, "message": "Too many requests"})
			},
		}))
	}
	e.Use(echomw.BodyLimit("2MB"))
	e.Use(middleware.Tracing())
	e.Use(middleware.ClientMeta())

	health := deps.Health
	if health == nil {
		health = healthhandler.NewServer(nil, nil, nil)
	}
	e.GET("/healthz", health.Healthz)

	if deps.Flow != nil && deps.Auth != nil {
		signinhandler.New(deps.Flow, logger).Register(e.Group("/api"), middleware.RequireAuth(deps.Auth, logger))
	}
	if deps.DevOTP != nil {
		devotphandler.New(deps.DevOTP).Register(e.Group("/dev"))
		logger.Warn("dev OTP endpoint enabled", zap.String("path", "/dev/otp"))
	}
	return e
}
