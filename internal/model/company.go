package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Company represents the tenant record. One company may have many
// permissions (many users).
type Company struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey"`
	Email     string    `json:"email" gorm:"type:varchar(100)"`
	Name      string    `json:"name" gorm:"type:varchar(100);not null"`
	Document  string    `json:"document" gorm:"type:varchar(50)"`
	Status    bool      `json:"status" gorm:"default:true"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Relations
	Permissions []Permission `json:"permissions,omitempty" gorm:"foreignKey:CompanyID"`
}

// BeforeCreate assigns a UUID primary key
func (c *Company) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
