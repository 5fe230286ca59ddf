package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Roles a user can hold within a company. The set is owned by the
// external schema; these mirror it.
const (
	RoleAdmin  = "ADMIN"
	RoleMember = "MEMBER"
)

// ValidRole reports whether role belongs to the known role set.
func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleMember
}

// Permission binds a user to a company with a role. Status disables
// access without deletion. Uniqueness of (UserID, CompanyID) is not
// enforced: role/status updates are bulk updates over all matching rows.
// Deletes are hard deletes.
type Permission struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey"`
	Role      string    `json:"role" gorm:"type:varchar(50);not null"`
	Status    bool      `json:"status" gorm:"default:true"`
	UserID    string    `json:"userId" gorm:"type:uuid;index;not null"`
	CompanyID string    `json:"companyId" gorm:"type:uuid;index;not null"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Relations
	User    User    `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Company Company `json:"company,omitempty" gorm:"foreignKey:CompanyID"`
}

// BeforeCreate assigns a UUID primary key
func (p *Permission) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
