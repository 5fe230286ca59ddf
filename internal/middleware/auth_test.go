package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"account-service/pkg/config"
	"account-service/pkg/jwtutil"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	jwtutil.Initialize(&config.JWTConfig{SigningKey: "test-signing-key", ExpirationHours: 1})
}

func request(t *testing.T, authorization string) (*httptest.ResponseRecorder, echo.Context) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/users/user", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	return rec, e.NewContext(req, rec)
}

func TestAuthMiddlewareValidToken(t *testing.T) {
	token, err := jwtutil.GenerateToken("a@x.com", "user-1")
	require.NoError(t, err)

	rec, c := request(t, "Bearer "+token)
	handler := AuthMiddleware(func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"user_id": c.Get("user_id")})
	})

	require.NoError(t, handler(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "a@x.com", c.Get("email"))
	assert.Equal(t, "user-1", c.Get("user_id"))
	assert.Nil(t, c.Get("company_id"))
}

func TestAuthMiddlewareCompanyContext(t *testing.T) {
	token, err := jwtutil.GenerateTokenWithCompany("a@x.com", "user-1", "company-1", "ADMIN")
	require.NoError(t, err)

	rec, c := request(t, "Bearer "+token)
	handler := AuthMiddleware(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	require.NoError(t, handler(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "company-1", c.Get("company_id"))
	assert.Equal(t, "ADMIN", c.Get("user_role"))
	assert.Equal(t, "company-1", c.Request().Header.Get("X-Company-ID"))
	assert.Equal(t, "ADMIN", c.Request().Header.Get("X-User-Role"))
}

func TestAuthMiddlewareMissingHeader(t *testing.T) {
	rec, c := request(t, "")
	handler := AuthMiddleware(func(c echo.Context) error {
		t.Fatal("handler should not be reached")
		return nil
	})

	require.NoError(t, handler(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddlewareNotBearer(t *testing.T) {
	rec, c := request(t, "Basic dXNlcjpwYXNz")
	handler := AuthMiddleware(func(c echo.Context) error {
		t.Fatal("handler should not be reached")
		return nil
	})

	require.NoError(t, handler(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddlewareGarbageToken(t *testing.T) {
	rec, c := request(t, "Bearer not.a.token")
	handler := AuthMiddleware(func(c echo.Context) error {
		t.Fatal("handler should not be reached")
		return nil
	})

	require.NoError(t, handler(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
