package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/session"
)

const bearerPrefix = "bearer "

// Authenticator resolves an access token to the calling session.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*session.Identity, error)
}

type errorBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// RequireAuth rejects requests without a valid Bearer access token and stores the
// caller's user and session ids in the request context.
func RequireAuth(auth Authenticator, logger *zap.Logger) echo.MiddlewareFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := extractBearer(c.Request().Header.Get(echo.HeaderAuthorization))
			if token == "" {
				return c.JSON(http.StatusUnauthorized, errorBody{Message: "Unauthorized"})
			}
			ctx := c.Request().Context()
			id, err := auth.Authenticate(ctx, token)
			if err != nil {
				if !errors.Is(err, session.ErrInvalidAccessToken) {
					logger.Error("authenticate request", zap.Error(err))
					return c.JSON(http.StatusInternalServerError, errorBody{Message: "Something went wrong"})
				}
				return c.JSON(http.StatusUnauthorized, errorBody{Message: "Unauthorized"})
			}
			c.SetRequest(c.Request().WithContext(WithIdentity(ctx, id.UserID, id.SessionID)))
			return next(c)
		}
	}
}

// extractBearer returns the token from an Authorization header value, or "" if missing or malformed.
func extractBearer(header string) string {
	v := strings.TrimSpace(header)
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
