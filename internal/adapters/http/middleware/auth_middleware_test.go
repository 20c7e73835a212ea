package middleware

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthMiddleware_NoneSetsHeaderIdentity(t *testing.T) {
	t.Setenv("AUTH_MODE", "none")

	mw, err := AuthMiddleware(nil)
	require.NoError(t, err)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-User-ID", "alice")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	called := false
	h := mw(func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusOK)
	})

	err = h(c)
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, "alice", c.Get("user_id"))
}

func TestAuthMiddleware_NoneDefaultsToAnonymous(t *testing.T) {
	t.Setenv("AUTH_MODE", "none")

	mw, err := AuthMiddleware(nil)
	require.NoError(t, err)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := mw(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	require.NoError(t, h(c))
	assert.Equal(t, "anonymous", c.Get("user_id"))
}

func TestAuthMiddleware_APIKeyAccepted(t *testing.T) {
	t.Setenv("AUTH_MODE", "api_key")
	t.Setenv("API_KEY", "sekret")

	mw, err := AuthMiddleware(nil)
	require.NoError(t, err)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", "sekret")
	req.Header.Set("X-User-ID", "bob")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	called := false
	h := mw(func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusOK)
	})

	require.NoError(t, h(c))
	assert.True(t, called)
	assert.Equal(t, "bob", c.Get("user_id"))
}

func TestAuthMiddleware_APIKeyRejected(t *testing.T) {
	t.Setenv("AUTH_MODE", "api_key")
	t.Setenv("API_KEY", "sekret")

	mw, err := AuthMiddleware(nil)
	require.NoError(t, err)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", "wrong")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	called := false
	h := mw(func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusOK)
	})

	require.NoError(t, h(c))
	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddleware_APIKeyRequiresConfiguredKey(t *testing.T) {
	t.Setenv("AUTH_MODE", "api_key")
	t.Setenv("API_KEY", "")

	mw, err := AuthMiddleware(nil)
	assert.Nil(t, mw)
	assert.Error(t, err)
}

func TestAuthMiddleware_JWTDelegates(t *testing.T) {
	t.Setenv("AUTH_MODE", "jwt")

	jwtCalled := false
	mockJWT := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			jwtCalled = true
			c.Set("user_id", "sub-123")
			return next(c)
		}
	}

	mw, err := AuthMiddleware(mockJWT)
	require.NoError(t, err)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := mw(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	require.NoError(t, h(c))
	assert.True(t, jwtCalled)
	assert.Equal(t, "sub-123", c.Get("user_id"))
}

func TestAuthMiddleware_JWTRequiresMiddleware(t *testing.T) {
	t.Setenv("AUTH_MODE", "jwt")

	mw, err := AuthMiddleware(nil)
	assert.Nil(t, mw)
	assert.Error(t, err)
}

func TestAuthMiddleware_Invalid(t *testing.T) {
	t.Setenv("AUTH_MODE", "invalid")

	mw, err := AuthMiddleware(nil)
	assert.Nil(t, mw)
	assert.Error(t, err)
}

func TestParseAuthMode_DefaultsToNone(t *testing.T) {
	_ = os.Unsetenv("AUTH_MODE")
	mode, err := ParseAuthMode()
	require.NoError(t, err)
	assert.Equal(t, ModeNone, mode)
}
