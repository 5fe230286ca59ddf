package handler

import (
	"errors"
	"net/http"
	"time"

	"account-service/internal/apperr"
	"account-service/internal/service"
	"account-service/pkg/cognito"
	"account-service/pkg/jwtutil"
	"account-service/pkg/logger"
	"account-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// AuthHandler exposes the delegated authentication surface: signup and
// login via the identity provider, plus the provider's confirmation and
// password flows.
type AuthHandler struct {
	svc *service.ProvisionService
	idp *cognito.Client
}

// NewAuthHandler creates an AuthHandler
func NewAuthHandler(svc *service.ProvisionService, idp *cognito.Client) *AuthHandler {
	return &AuthHandler{svc: svc, idp: idp}
}

// Signup registers the user with the identity provider and provisions a
// new company with an ADMIN permission
func (h *AuthHandler) Signup(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.SignupCounter.Inc()

	var req struct {
		Email           string `json:"email"`
		Password        string `json:"password"`
		Name            string `json:"name"`
		Document        string `json:"document"`
		NameCompany     string `json:"nameCompany"`
		DocumentCompany string `json:"documentCompany"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse signup request", zap.Error(err))
		prometheus.RecordError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if req.Email == "" || req.Password == "" || req.Name == "" || req.NameCompany == "" {
		log.Error("Invalid signup data", zap.String("email", req.Email))
		prometheus.RecordError("incomplete_signup")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email, password, name and nameCompany are required"})
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	permission, err := h.svc.Signup(service.SignupInput{
		Email:           req.Email,
		Password:        req.Password,
		Name:            req.Name,
		Document:        req.Document,
		CompanyName:     req.NameCompany,
		CompanyDocument: req.DocumentCompany,
	})
	if err != nil {
		log.Error("Signup failed", zap.String("email", req.Email), zap.Error(err))
		return errorResponse(c, err)
	}

	log.Info("User signed up",
		zap.String("email", req.Email),
		zap.String("company_id", permission.CompanyID),
		zap.String("permission_id", permission.ID))
	return c.JSON(http.StatusCreated, permission)
}

// Login authenticates against the identity provider and returns the
// provider tokens, the local user with permissions, and an API token for
// this service
func (h *AuthHandler) Login(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.LoginCounter.Inc()

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse login request", zap.Error(err))
		prometheus.RecordError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if req.Email == "" || req.Password == "" {
		prometheus.RecordError("incomplete_login")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and password are required"})
	}

	user, auth, err := h.svc.Login(req.Email, req.Password)
	if err != nil {
		log.Error("Login failed", zap.String("email", req.Email), zap.Error(err))
		return errorResponse(c, err)
	}

	// Issue the bearer token guarding this service's API
	token, err := jwtutil.GenerateToken(user.Email, user.ID)
	if err != nil {
		log.Error("Failed to generate token", zap.Error(err))
		prometheus.RecordError("token_generation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token error"})
	}

	log.Info("User logged in", zap.String("email", user.Email))
	return c.JSON(http.StatusOK, echo.Map{
		"user":         user,
		"accessToken":  auth.AccessToken,
		"refreshToken": auth.RefreshToken,
		"token":        token,
	})
}

// Register performs a bare identity provider registration without local
// provisioning
func (h *AuthHandler) Register(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RegisterCounter.Inc()

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse registration request", zap.Error(err))
		prometheus.RecordError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if req.Email == "" || req.Password == "" {
		prometheus.RecordError("incomplete_registration")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and password are required"})
	}

	defer prometheus.TrackProviderCall("SignUp")(time.Now())
	out, err := h.idp.Register(req.Email, req.Password, req.Name)
	if err != nil {
		log.Error("Provider registration failed", zap.String("email", req.Email), zap.Error(err))
		return errorResponse(c, providerError(err))
	}

	log.Info("User registered with provider", zap.String("email", req.Email))
	return c.JSON(http.StatusCreated, echo.Map{
		"userSub":       out.UserSub,
		"userConfirmed": out.UserConfirmed,
	})
}

// ConfirmationEmail asks the provider to resend the signup confirmation code
func (h *AuthHandler) ConfirmationEmail(c echo.Context) error {
	log := logger.FromContext(c)

	var req struct {
		Email string `json:"email"`
	}
	if err := c.Bind(&req); err != nil || req.Email == "" {
		prometheus.RecordError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email is required"})
	}

	defer prometheus.TrackProviderCall("ResendConfirmationCode")(time.Now())
	details, err := h.idp.ResendConfirmationCode(req.Email)
	if err != nil {
		log.Error("Resend confirmation failed", zap.String("email", req.Email), zap.Error(err))
		return errorResponse(c, providerError(err))
	}

	return c.JSON(http.StatusOK, details)
}

// ChangePassword rotates the user's password at the provider, verifying
// the current password first
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	log := logger.FromContext(c)

	var req struct {
		Email           string `json:"email"`
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := c.Bind(&req); err != nil {
		prometheus.RecordError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Email == "" || req.CurrentPassword == "" || req.NewPassword == "" {
		prometheus.RecordError("incomplete_password_change")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email, currentPassword and newPassword are required"})
	}

	defer prometheus.TrackProviderCall("ChangePassword")(time.Now())
	if err := h.idp.ChangePassword(req.Email, req.CurrentPassword, req.NewPassword); err != nil {
		log.Error("Password change failed", zap.String("email", req.Email), zap.Error(err))
		return errorResponse(c, providerError(err))
	}

	log.Info("Password changed", zap.String("email", req.Email))
	return c.JSON(http.StatusOK, echo.Map{"message": "Password changed successfully"})
}

// ForgotPassword starts the provider's password recovery flow
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	log := logger.FromContext(c)

	var req struct {
		Email string `json:"email"`
	}
	if err := c.Bind(&req); err != nil || req.Email == "" {
		prometheus.RecordError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email is required"})
	}

	defer prometheus.TrackProviderCall("ForgotPassword")(time.Now())
	details, err := h.idp.ForgotPassword(req.Email)
	if err != nil {
		log.Error("Forgot password failed", zap.String("email", req.Email), zap.Error(err))
		return errorResponse(c, providerError(err))
	}

	return c.JSON(http.StatusOK, details)
}

// ConfirmPassword completes password recovery with the emailed code
func (h *AuthHandler) ConfirmPassword(c echo.Context) error {
	log := logger.FromContext(c)

	var req struct {
		Email            string `json:"email"`
		ConfirmationCode string `json:"confirmationCode"`
		NewPassword      string `json:"newPassword"`
	}
	if err := c.Bind(&req); err != nil {
		prometheus.RecordError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Email == "" || req.ConfirmationCode == "" || req.NewPassword == "" {
		prometheus.RecordError("incomplete_password_confirm")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email, confirmationCode and newPassword are required"})
	}

	defer prometheus.TrackProviderCall("ConfirmForgotPassword")(time.Now())
	if err := h.idp.ConfirmForgotPassword(req.Email, req.ConfirmationCode, req.NewPassword); err != nil {
		log.Error("Confirm password failed", zap.String("email", req.Email), zap.Error(err))
		return errorResponse(c, providerError(err))
	}

	return c.JSON(http.StatusOK, echo.Map{"status": "success"})
}

// GoogleRedirect resolves the local user for a Google-authenticated
// session. The OAuth dance happens at the fronting proxy, which passes
// the verified email along.
func (h *AuthHandler) GoogleRedirect(c echo.Context) error {
	log := logger.FromContext(c)

	email := c.Request().Header.Get("X-Auth-Email")
	if email == "" {
		prometheus.RecordError("missing_google_identity")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "no user from google"})
	}

	user, err := h.svc.GetUserPermissions(email)
	if err != nil {
		log.Error("Google login lookup failed", zap.String("email", email), zap.Error(err))
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"user": user})
}

// providerError classifies a raw gateway error for status mapping
func providerError(err error) error {
	var apiErr *cognito.APIError
	if errors.As(err, &apiErr) {
		return apperr.Provider(apiErr.Type, apiErr.Message, err)
	}
	return apperr.Provider("", "identity provider request failed", err)
}
