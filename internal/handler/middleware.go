package handler

import (
	"log/slog"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sumire/billnotify/internal/domain"
)

const (
	contextKeyUserID = "user_id"

	// EventSource cannot set headers, so streams may pass the token here.
	tokenQueryParam = "token"
)

// TokenValidator resolves an access token to a user ID.
type TokenValidator interface {
	ValidateToken(tokenStr string) (int64, error)
}

// RequestLogger logs each HTTP request with structured fields.
func RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			slog.Info("http request",
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"status", c.Response().Status,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
			)

			return err
		}
	}
}

// JWTAuth validates the Bearer token and injects the user ID into echo context.
// When allowQuery is set, a token query parameter is accepted if no
// Authorization header is present.
func JWTAuth(auth TokenValidator, allowQuery bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok && allowQuery {
				token = c.QueryParam(tokenQueryParam)
				ok = token != ""
			}
			if !ok {
				return domain.ErrUnauthorized
			}

			userID, err := auth.ValidateToken(token)
			if err != nil {
				return domain.ErrUnauthorized
			}

			c.Set(contextKeyUserID, userID)
			return next(c)
		}
	}
}

func bearerToken(header string) (string, bool) {
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// GetUserID extracts the authenticated user ID from echo context.
func GetUserID(c echo.Context) (int64, bool) {
	id, ok := c.Get(contextKeyUserID).(int64)
	return id, ok
}
