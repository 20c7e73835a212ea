package middleware

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"
)

type Mode string

const (
	ModeNone   Mode = "none"
	ModeAPIKey Mode = "api_key"
	ModeJWT    Mode = "jwt"
)

func ParseAuthMode() (Mode, error) {
	mode := Mode(os.Getenv("AUTH_MODE"))
	switch mode {
	case "", ModeNone, ModeAPIKey, ModeJWT:
		if mode == "" {
			return ModeNone, nil
		}
		return mode, nil
	default:
		return "", errors.New("invalid auth mode")
	}
}

// identityFromHeader fills user_id from X-User-ID for the modes that do not
// carry identity in a token. Missing header falls back to "anonymous".
func identityFromHeader(c echo.Context) {
	userID := c.Request().Header.Get("X-User-ID")
	if userID == "" {
		userID = "anonymous"
	}
	c.Set("user_id", userID)
}

// AuthMiddleware dispatches on AUTH_MODE. api_key compares X-API-Key to the
// API_KEY environment value; jwt delegates to the JWKS middleware, which
// sets user_id from the token subject.
func AuthMiddleware(jwtMiddleware echo.MiddlewareFunc) (echo.MiddlewareFunc, error) {
	mode, err := ParseAuthMode()
	if err != nil {
		return nil, err
	}
	if mode == ModeJWT && jwtMiddleware == nil {
		return nil, errors.New("jwt middleware is required when AUTH_MODE=jwt")
	}
	expectedKey := os.Getenv("API_KEY")
	if mode == ModeAPIKey && expectedKey == "" {
		return nil, errors.New("API_KEY is required when AUTH_MODE=api_key")
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			switch mode {
			case ModeNone:
				identityFromHeader(c)
				return next(c)
			case ModeAPIKey:
				provided := c.Request().Header.Get("X-API-Key")
				if subtle.ConstantTimeCompare([]byte(provided), []byte(expectedKey)) != 1 {
					return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid api key"})
				}
				identityFromHeader(c)
				return next(c)
			case ModeJWT:
				return jwtMiddleware(next)(c)
			default:
				return echo.NewHTTPError(http.StatusInternalServerError, "invalid auth mode")
			}
		}
	}, nil
}
