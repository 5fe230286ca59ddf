package handler

import (
	"net/http"
	"time"

	"account-service/internal/service"
	"account-service/pkg/logger"
	"account-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// UserHandler exposes user, company-membership and permission management
type UserHandler struct {
	svc *service.ProvisionService
}

// NewUserHandler creates a UserHandler
func NewUserHandler(svc *service.ProvisionService) *UserHandler {
	return &UserHandler{svc: svc}
}

// GetUser retrieves a user scoped to a company, with all their permissions
func (h *UserHandler) GetUser(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordPermissionOperation("query")

	idUser := c.QueryParam("idUser")
	idCompany := c.QueryParam("idCompany")
	if idUser == "" || idCompany == "" {
		prometheus.RecordError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "idUser and idCompany are required"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	user, err := h.svc.GetUserPermission(idUser, idCompany)
	if err != nil {
		log.Error("User lookup failed",
			zap.String("user_id", idUser),
			zap.String("company_id", idCompany),
			zap.Error(err))
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, user)
}

// GetAll lists every user of a company with their permission
func (h *UserHandler) GetAll(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordPermissionOperation("query")

	idCompany := c.QueryParam("idCompany")
	if idCompany == "" {
		prometheus.RecordError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "idCompany is required"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	users, err := h.svc.GetUsersByCompany(idCompany)
	if err != nil {
		log.Error("Company users lookup failed", zap.String("company_id", idCompany), zap.Error(err))
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, users)
}

// Create provisions a user into an existing company with the given role
func (h *UserHandler) Create(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordPermissionOperation("create")

	var req struct {
		Email     string `json:"email"`
		Password  string `json:"password"`
		Name      string `json:"name"`
		Document  string `json:"document"`
		IDCompany string `json:"idCompany"`
		Role      string `json:"role"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse user creation request", zap.Error(err))
		prometheus.RecordError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if req.Email == "" || req.Password == "" || req.Name == "" || req.IDCompany == "" || req.Role == "" {
		prometheus.RecordError("incomplete_user_creation")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email, password, name, idCompany and role are required"})
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	permission, err := h.svc.CreateUserForCompany(service.CreateUserInput{
		Email:     req.Email,
		Password:  req.Password,
		Name:      req.Name,
		Document:  req.Document,
		CompanyID: req.IDCompany,
		Role:      req.Role,
	})
	if err != nil {
		log.Error("User creation failed",
			zap.String("email", req.Email),
			zap.String("company_id", req.IDCompany),
			zap.Error(err))
		return errorResponse(c, err)
	}

	log.Info("User added to company",
		zap.String("email", req.Email),
		zap.String("company_id", req.IDCompany),
		zap.String("role", req.Role))
	return c.JSON(http.StatusCreated, permission)
}

// Update mutates a user's profile fields
func (h *UserHandler) Update(c echo.Context) error {
	log := logger.FromContext(c)

	var req struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Document string `json:"document"`
	}

	if err := c.Bind(&req); err != nil {
		prometheus.RecordError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.ID == "" {
		prometheus.RecordError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "id is required"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	user, err := h.svc.UpdateUser(req.ID, req.Name, req.Document)
	if err != nil {
		log.Error("User update failed", zap.String("user_id", req.ID), zap.Error(err))
		return errorResponse(c, err)
	}

	log.Info("User updated", zap.String("user_id", user.ID))
	return c.JSON(http.StatusOK, user)
}

// UpdatePermission applies role/status changes to every permission row
// matching (idUser, idCompany)
func (h *UserHandler) UpdatePermission(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordPermissionOperation("update")

	var req struct {
		IDUser    string  `json:"idUser"`
		IDCompany string  `json:"idCompany"`
		Role      *string `json:"role"`
		Status    *bool   `json:"status"`
	}

	if err := c.Bind(&req); err != nil {
		prometheus.RecordError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.IDUser == "" || req.IDCompany == "" {
		prometheus.RecordError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "idUser and idCompany are required"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	updated, err := h.svc.UpdatePermission(req.IDUser, req.IDCompany, req.Role, req.Status)
	if err != nil {
		log.Error("Permission update failed",
			zap.String("user_id", req.IDUser),
			zap.String("company_id", req.IDCompany),
			zap.Error(err))
		return errorResponse(c, err)
	}

	log.Info("Permissions updated",
		zap.String("user_id", req.IDUser),
		zap.String("company_id", req.IDCompany),
		zap.Int64("updated", updated))
	return c.JSON(http.StatusOK, echo.Map{
		"message": "Permission updated successfully",
		"updated": updated,
	})
}

// DeletePermission hard-deletes a permission by id
func (h *UserHandler) DeletePermission(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordPermissionOperation("delete")

	var req struct {
		IDPermission string `json:"idPermission"`
	}

	if err := c.Bind(&req); err != nil || req.IDPermission == "" {
		prometheus.RecordError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "idPermission is required"})
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	if err := h.svc.DeletePermission(req.IDPermission); err != nil {
		log.Error("Permission delete failed", zap.String("permission_id", req.IDPermission), zap.Error(err))
		return errorResponse(c, err)
	}

	log.Info("Permission deleted", zap.String("permission_id", req.IDPermission))
	return c.JSON(http.StatusOK, echo.Map{"message": "Permission deleted successfully"})
}
