package service

import (
	"errors"
	"time"

	"account-service/internal/apperr"
	"account-service/internal/model"
	"account-service/pkg/cognito"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// IdentityProvider is the slice of the user pool client the workflows need.
type IdentityProvider interface {
	Register(email, password, name string) (*cognito.RegisterOutput, error)
	Authenticate(email, password string) (*cognito.AuthResult, error)
}

// ProvisionService orchestrates identity-provider registration and local
// user/company/permission records. The provider call and the store write
// are two independently-committing operations: a store failure after a
// successful registration leaves a registered-but-unlinked provider
// account behind, which the tolerant already-exists path absorbs on the
// next attempt.
type ProvisionService struct {
	db  *gorm.DB
	idp IdentityProvider
	log *zap.Logger
}

// NewProvisionService creates a ProvisionService
func NewProvisionService(db *gorm.DB, idp IdentityProvider, log *zap.Logger) *ProvisionService {
	return &ProvisionService{db: db, idp: idp, log: log}
}

// SignupInput is the company-creation signup request
type SignupInput struct {
	Email           string
	Password        string
	Name            string
	Document        string
	CompanyName     string
	CompanyDocument string
}

// CreateUserInput adds a user to an existing company
type CreateUserInput struct {
	Email     string
	Password  string
	Name      string
	Document  string
	CompanyID string
	Role      string
}

// Signup registers the credential pair with the identity provider, then
// creates a user (if absent), a new company, and an ADMIN permission
// linking them. An already-registered email at the provider is not an
// error; any other provider rejection aborts before any local write.
func (s *ProvisionService) Signup(in SignupInput) (*model.Permission, error) {
	if err := s.register(in.Email, in.Password, in.Name); err != nil {
		return nil, err
	}

	permission := model.Permission{
		Role:   model.RoleAdmin,
		Status: true,
		Company: model.Company{
			Email:    in.Email,
			Name:     in.CompanyName,
			Document: in.CompanyDocument,
			Status:   true,
		},
	}

	var user model.User
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(model.User{Email: in.Email}).
			Attrs(model.User{Name: in.Name, Document: in.Document}).
			FirstOrCreate(&user).Error; err != nil {
			return err
		}
		permission.UserID = user.ID
		return tx.Omit("User").Create(&permission).Error
	})
	if err != nil {
		// The provider account is already committed and is not rolled
		// back here; the next signup for this email takes the tolerant
		// already-exists path.
		s.log.Warn("Signup store write failed after provider registration",
			zap.String("email", in.Email), zap.Error(err))
		return nil, apperr.Store("failed to provision signup records", err)
	}

	permission.User = user
	return &permission, nil
}

// CreateUserForCompany registers the credential pair and links the user
// (created if absent) to an existing company with the given role.
func (s *ProvisionService) CreateUserForCompany(in CreateUserInput) (*model.Permission, error) {
	if !model.ValidRole(in.Role) {
		return nil, apperr.Validation("unknown role: " + in.Role)
	}

	var company model.Company
	if err := s.db.First(&company, "id = ?", in.CompanyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("company not found")
		}
		return nil, apperr.Store("failed to load company", err)
	}

	if err := s.register(in.Email, in.Password, in.Name); err != nil {
		return nil, err
	}

	permission := model.Permission{
		Role:      in.Role,
		Status:    true,
		CompanyID: company.ID,
	}

	var user model.User
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(model.User{Email: in.Email}).
			Attrs(model.User{Name: in.Name, Document: in.Document}).
			FirstOrCreate(&user).Error; err != nil {
			return err
		}
		permission.UserID = user.ID
		return tx.Omit("User", "Company").Create(&permission).Error
	})
	if err != nil {
		s.log.Warn("Provisioning store write failed after provider registration",
			zap.String("email", in.Email), zap.String("company_id", in.CompanyID), zap.Error(err))
		return nil, apperr.Store("failed to provision permission", err)
	}

	permission.User = user
	permission.Company = company
	return &permission, nil
}

// register calls the identity provider, tolerating duplicate registrations.
func (s *ProvisionService) register(email, password, name string) error {
	if _, err := s.idp.Register(email, password, name); err != nil {
		if cognito.IsUsernameExists(err) {
			// The account may already be registered from a prior attempt
			// or another company; provisioning proceeds.
			s.log.Info("Identity already registered with provider, continuing",
				zap.String("email", email))
			return nil
		}
		var apiErr *cognito.APIError
		if errors.As(err, &apiErr) {
			return apperr.Provider(apiErr.Type, apiErr.Message, err)
		}
		return apperr.Provider("", "identity provider registration failed", err)
	}
	return nil
}

// Login authenticates against the identity provider and resolves the
// local user with their permissions.
func (s *ProvisionService) Login(email, password string) (*UserPermissions, *cognito.AuthResult, error) {
	auth, err := s.idp.Authenticate(email, password)
	if err != nil {
		var apiErr *cognito.APIError
		if errors.As(err, &apiErr) {
			return nil, nil, apperr.Provider(apiErr.Type, apiErr.Message, err)
		}
		return nil, nil, apperr.Provider("", "identity provider authentication failed", err)
	}

	user, err := s.GetUserPermissions(email)
	if err != nil {
		return nil, nil, err
	}
	return user, auth, nil
}

// PermissionInfo is a permission row without its foreign keys
type PermissionInfo struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Status    bool      `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PermissionEntry pairs a permission with its company
type PermissionEntry struct {
	Permission PermissionInfo `json:"permission"`
	Company    model.Company  `json:"company"`
}

// UserPermissions is a user together with every company they can access.
// Entries are an unordered set; no ordering is guaranteed.
type UserPermissions struct {
	ID          string            `json:"id"`
	Email       string            `json:"email"`
	Name        string            `json:"name"`
	Document    string            `json:"document"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
	Permissions []PermissionEntry `json:"permissions"`
}

// CompanyUser is a user of a company together with their permission
type CompanyUser struct {
	ID         string         `json:"id"`
	Email      string         `json:"email"`
	Name       string         `json:"name"`
	Document   string         `json:"document"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
	Permission PermissionInfo `json:"permission"`
}

// GetUserPermissions resolves a user by email with all their permissions
// joined to companies.
func (s *ProvisionService) GetUserPermissions(email string) (*UserPermissions, error) {
	var user model.User
	err := s.db.Preload("Permissions.Company").Where("email = ?", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, apperr.Store("failed to load user", err)
	}
	return assembleUserPermissions(&user), nil
}

// GetUserPermission resolves a user by id, scoped to a company the user
// must hold at least one permission in.
func (s *ProvisionService) GetUserPermission(userID, companyID string) (*UserPermissions, error) {
	var user model.User
	err := s.db.Preload("Permissions.Company").
		Where("id = ? AND EXISTS (SELECT 1 FROM permissions WHERE permissions.user_id = users.id AND permissions.company_id = ?)", userID, companyID).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user not found in company")
		}
		return nil, apperr.Store("failed to load user", err)
	}
	return assembleUserPermissions(&user), nil
}

// GetUsersByCompany lists every user holding a permission in the company.
func (s *ProvisionService) GetUsersByCompany(companyID string) ([]CompanyUser, error) {
	var permissions []model.Permission
	err := s.db.Preload("User").Where("company_id = ?", companyID).Find(&permissions).Error
	if err != nil {
		return nil, apperr.Store("failed to load company users", err)
	}

	users := make([]CompanyUser, 0, len(permissions))
	for _, p := range permissions {
		users = append(users, CompanyUser{
			ID:         p.User.ID,
			Email:      p.User.Email,
			Name:       p.User.Name,
			Document:   p.User.Document,
			CreatedAt:  p.User.CreatedAt,
			UpdatedAt:  p.User.UpdatedAt,
			Permission: permissionInfo(&p),
		})
	}
	return users, nil
}

// UpdateUser mutates a user's profile fields
func (s *ProvisionService) UpdateUser(id, name, document string) (*model.User, error) {
	var user model.User
	if err := s.db.First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, apperr.Store("failed to load user", err)
	}

	updates := map[string]interface{}{}
	if name != "" {
		updates["name"] = name
	}
	if document != "" {
		updates["document"] = document
	}
	if len(updates) > 0 {
		if err := s.db.Model(&user).Updates(updates).Error; err != nil {
			return nil, apperr.Store("failed to update user", err)
		}
	}
	return &user, nil
}

// UpdatePermission applies a bulk conditional update over every
// permission row matching (userID, companyID). More than one row can
// match since the pair is not unique; all matching rows receive the same
// values, so the update is idempotent and order-independent. Zero
// matching rows is reported as not found.
func (s *ProvisionService) UpdatePermission(userID, companyID string, role *string, status *bool) (int64, error) {
	updates := map[string]interface{}{}
	if role != nil {
		if !model.ValidRole(*role) {
			return 0, apperr.Validation("unknown role: " + *role)
		}
		updates["role"] = *role
	}
	if status != nil {
		updates["status"] = *status
	}
	if len(updates) == 0 {
		return 0, apperr.Validation("nothing to update")
	}

	result := s.db.Model(&model.Permission{}).
		Where("user_id = ? AND company_id = ?", userID, companyID).
		Updates(updates)
	if result.Error != nil {
		return 0, apperr.Store("failed to update permissions", result.Error)
	}
	if result.RowsAffected == 0 {
		return 0, apperr.NotFound("no permission for user in company")
	}
	return result.RowsAffected, nil
}

// DeletePermission hard-deletes a permission row by id
func (s *ProvisionService) DeletePermission(id string) error {
	result := s.db.Delete(&model.Permission{}, "id = ?", id)
	if result.Error != nil {
		return apperr.Store("failed to delete permission", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("permission not found")
	}
	return nil
}

func assembleUserPermissions(user *model.User) *UserPermissions {
	entries := make([]PermissionEntry, 0, len(user.Permissions))
	for _, p := range user.Permissions {
		entries = append(entries, PermissionEntry{
			Permission: permissionInfo(&p),
			Company:    p.Company,
		})
	}
	return &UserPermissions{
		ID:          user.ID,
		Email:       user.Email,
		Name:        user.Name,
		Document:    user.Document,
		CreatedAt:   user.CreatedAt,
		UpdatedAt:   user.UpdatedAt,
		Permissions: entries,
	}
}

func permissionInfo(p *model.Permission) PermissionInfo {
	return PermissionInfo{
		ID:        p.ID,
		Role:      p.Role,
		Status:    p.Status,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}
