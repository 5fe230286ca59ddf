package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWithLoggerRoundTrip(t *testing.T) {
	base := zap.NewNop()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req = req.WithContext(WithLogger(req.Context(), base))
	c := e.NewContext(req, httptest.NewRecorder())

	// No "logger" key in the echo context: resolution falls through to
	// the request context
	assert.Same(t, base, FromContext(c))
}

func TestMiddlewareInjectsRequestScopedLogger(t *testing.T) {
	base := zap.NewNop()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-1")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var fromEcho, fromRequest *zap.Logger
	handler := Middleware(base)(func(c echo.Context) error {
		fromEcho = FromContext(c)
		// A fresh echo context over the same request sees only the
		// request-context copy
		fromRequest = FromContext(e.NewContext(c.Request(), rec))
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, handler(c))

	require.NotNil(t, fromEcho)
	assert.Same(t, fromEcho, fromRequest)
}
