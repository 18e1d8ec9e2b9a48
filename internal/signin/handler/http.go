// Package handler exposes the sign-in flow over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/server/middleware"
	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/signin"
)

const messageInvalidRequest = "Invalid request"

// Service is the sign-in flow as seen by the HTTP layer. *signin.Flow implements it.
type Service interface {
	BeginPasswordSignIn(ctx context.Context, email, password string) (*signin.Result, error)
	VerifyTwoFactor(ctx context.Context, continuation, userID, code string) (*signin.Result, error)
	ResendTwoFactor(ctx context.Context, continuation string) (*signin.Result, error)
	BeginPasskeyRegistration(ctx context.Context, userID string) (*signin.Result, error)
	CompletePasskeyRegistration(ctx context.Context, userID string, attestation []byte) (*signin.Result, error)
	BeginPasskeyAuthentication(ctx context.Context, email string) (*signin.Result, error)
	CompletePasskeyAuthentication(ctx context.Context, assertion []byte, challenge, continuation string) (*signin.Result, error)
	ListPasskeys(ctx context.Context, userID string) (*signin.Result, error)
	DeletePasskey(ctx context.Context, userID, authenticatorID string) (*signin.Result, error)
	RefreshSession(ctx context.Context, refreshToken string) (*signin.Result, error)
	SignOut(ctx context.Context, userID, sessionID string) (*signin.Result, error)
}

type signInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type verifyRequest struct {
	Continuation string `json:"continuation" validate:"required"`
	UserID       string `json:"userId"`
	Code         string `json:"code" validate:"required"`
}

type resendRequest struct {
	Continuation string `json:"continuation" validate:"required"`
}

type authenticateBeginRequest struct {
	Email string `json:"email" validate:"omitempty,email"`
}

type authenticateCompleteRequest struct {
	Response     json.RawMessage `json:"response" validate:"required"`
	Challenge    string          `json:"challenge" validate:"required"`
	Continuation string          `json:"continuation"`
}

type registerCompleteRequest struct {
	Response json.RawMessage `json:"response" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// Handler serves the /api/auth and /api/passkeys routes.
type Handler struct {
	flow     Service
	validate *validator.Validate
	logger   *zap.Logger
}

// New returns a Handler for flow.
func New(flow Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{flow: flow, validate: validator.New(), logger: logger}
}

// Register mounts the public sign-in routes and the authenticated passkey routes on api.
// requireAuth guards every route that acts on the signed-in user.
func (h *Handler) Register(api *echo.Group, requireAuth echo.MiddlewareFunc) {
	auth := api.Group("/auth")
	auth.POST("/signin", h.SignIn)
	auth.POST("/2fa/verify", h.VerifyTwoFactor)
	auth.POST("/2fa/resend", h.ResendTwoFactor)
	auth.POST("/passkeys/authenticate/begin", h.BeginAuthentication)
	auth.POST("/passkeys/authenticate/complete", h.CompleteAuthentication)
	auth.POST("/refresh", h.Refresh)
	auth.POST("/signout", h.SignOut, requireAuth)

	passkeys := api.Group("/passkeys", requireAuth)
	passkeys.POST("/register/begin", h.BeginRegistration)
	passkeys.POST("/register/complete", h.CompleteRegistration)
	passkeys.GET("", h.ListPasskeys)
	passkeys.DELETE("/:id", h.DeletePasskey)
}

// SignIn handles POST /api/auth/signin.
func (h *Handler) SignIn(c echo.Context) error {
	var req signInRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	return h.respond(c)(h.flow.BeginPasswordSignIn(c.Request().Context(), req.Email, req.Password))
}

// VerifyTwoFactor handles POST /api/auth/2fa/verify.
func (h *Handler) VerifyTwoFactor(c echo.Context) error {
	var req verifyRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	return h.respond(c)(h.flow.VerifyTwoFactor(c.Request().Context(), req.Continuation, req.UserID, req.Code))
}

// ResendTwoFactor handles POST /api/auth/2fa/resend.
func (h *Handler) ResendTwoFactor(c echo.Context) error {
	var req resendRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	return h.respond(c)(h.flow.ResendTwoFactor(c.Request().Context(), req.Continuation))
}

// BeginAuthentication handles POST /api/auth/passkeys/authenticate/begin. An empty email
// starts a discoverable-credential ceremony.
func (h *Handler) BeginAuthentication(c echo.Context) error {
	var req authenticateBeginRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	return h.respond(c)(h.flow.BeginPasskeyAuthentication(c.Request().Context(), req.Email))
}

// CompleteAuthentication handles POST /api/auth/passkeys/authenticate/complete.
func (h *Handler) CompleteAuthentication(c echo.Context) error {
	var req authenticateCompleteRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	return h.respond(c)(h.flow.CompletePasskeyAuthentication(c.Request().Context(), req.Response, req.Challenge, req.Continuation))
}

// Refresh handles POST /api/auth/refresh.
func (h *Handler) Refresh(c echo.Context) error {
	var req refreshRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	return h.respond(c)(h.flow.RefreshSession(c.Request().Context(), req.RefreshToken))
}

// SignOut handles POST /api/auth/signout.
func (h *Handler) SignOut(c echo.Context) error {
	ctx := c.Request().Context()
	userID, _ := middleware.GetUserID(ctx)
	sessionID, _ := middleware.GetSessionID(ctx)
	return h.respond(c)(h.flow.SignOut(ctx, userID, sessionID))
}

// BeginRegistration handles POST /api/passkeys/register/begin.
func (h *Handler) BeginRegistration(c echo.Context) error {
	ctx := c.Request().Context()
	userID, _ := middleware.GetUserID(ctx)
	return h.respond(c)(h.flow.BeginPasskeyRegistration(ctx, userID))
}

// CompleteRegistration handles POST /api/passkeys/register/complete.
func (h *Handler) CompleteRegistration(c echo.Context) error {
	var req registerCompleteRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	userID, _ := middleware.GetUserID(ctx)
	return h.respond(c)(h.flow.CompletePasskeyRegistration(ctx, userID, req.Response))
}

// ListPasskeys handles GET /api/passkeys.
func (h *Handler) ListPasskeys(c echo.Context) error {
	ctx := c.Request().Context()
	userID, _ := middleware.GetUserID(ctx)
	return h.respond(c)(h.flow.ListPasskeys(ctx, userID))
}

// DeletePasskey handles DELETE /api/passkeys/:id.
func (h *Handler) DeletePasskey(c echo.Context) error {
	ctx := c.Request().Context()
	userID, _ := middleware.GetUserID(ctx)
	return h.respond(c)(h.flow.DeletePasskey(ctx, userID, c.Param("id")))
}

// bind decodes and validates the body. Failures become a 400 carrying the uniform result shape.
func (h *Handler) bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return invalidRequest()
	}
	if err := h.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			h.logger.Debug("signin: invalid request", zap.String("field", verrs[0].Field()), zap.String("tag", verrs[0].Tag()))
		}
		return invalidRequest()
	}
	return nil
}

func invalidRequest() *echo.HTTPError {
	return echo.NewHTTPError(http.StatusBadRequest, signin.Result{Message: messageInvalidRequest})
}

// respond writes res with the status matching its outcome.
func (h *Handler) respond(c echo.Context) func(*signin.Result, error) error {
	return func(res *signin.Result, err error) error {
		if res == nil {
			res = &signin.Result{Message: signin.MessageInternal}
		}
		return c.JSON(StatusFor(res, err), res)
	}
}

// StatusFor maps a flow outcome to an HTTP status code.
func StatusFor(res *signin.Result, err error) int {
	switch {
	case err != nil:
		return http.StatusInternalServerError
	case res == nil:
		return http.StatusInternalServerError
	case res.Success:
		return http.StatusOK
	}
	reason := res.Reason
	switch {
	case errors.Is(reason, signin.ErrInvalidCredentials),
		errors.Is(reason, signin.ErrUnauthorized),
		errors.Is(reason, signin.ErrInvalidContinuation),
		errors.Is(reason, signin.ErrInvalidRefreshToken),
		errors.Is(reason, signin.ErrRefreshTokenReuse),
		errors.Is(reason, signin.ErrAuthenticationFailed),
		errors.Is(reason, signin.ErrSessionExpired):
		return http.StatusUnauthorized
	case errors.Is(reason, signin.ErrNotFound),
		errors.Is(reason, signin.ErrPasskeyNotFound):
		return http.StatusNotFound
	case errors.Is(reason, signin.ErrConflict):
		return http.StatusConflict
	}
	return http.StatusBadRequest
}
