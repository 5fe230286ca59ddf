package handler

import (
	"net/http"

	"account-service/internal/apperr"
	"account-service/pkg/cognito"
	"account-service/prometheus"

	"github.com/labstack/echo/v4"
)

// errorResponse maps a classified workflow error onto an HTTP status.
// Provider authentication rejections become 401, other provider
// rejections 400 with the provider's exception type preserved; store
// failures surface as 500 rather than being conflated with bad requests.
func errorResponse(c echo.Context, err error) error {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		prometheus.RecordError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case apperr.KindNotFound:
		prometheus.RecordError("not_found")
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case apperr.KindProvider:
		prometheus.RecordError("provider_error")
		code := apperr.CodeOf(err)
		status := http.StatusBadRequest
		if code == cognito.ErrNotAuthorized || code == cognito.ErrUserNotConfirmed {
			status = http.StatusUnauthorized
		}
		return c.JSON(status, echo.Map{"error": err.Error(), "code": code})
	default:
		prometheus.RecordError("store_error")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
