package models

import (
	"time"

	"github.com/google/uuid"
)

// Tenant represents a company/organization
type Tenant struct {
	BaseModel
	Name   string `gorm:"not null" json:"name" validate:"required"`
	Domain string `json:"domain"`
	Status string `gorm:"default:'active'" json:"status"`
	About  string `gorm:"type:text" json:"about"`
}

// User represents a system user
type User struct {
	BaseModel
	TenantID    *uuid.UUID `gorm:"type:uuid;index" json:"tenant_id"` // null for system admins
	Name        string     `gorm:"not null" json:"name" validate:"required"`
	Email       string     `gorm:"uniqueIndex;not null" json:"email" validate:"required,email"`
	Password    string     `gorm:"not null" json:"-"`
	Role        string     `gorm:"default:'tenant_user'" json:"role"` // system_admin, tenant_admin, tenant_user
	IsActive    bool       `gorm:"default:true" json:"is_active"`
	LastLoginAt *time.Time `json:"last_login_at"`

	// Relations
	Tenant *Tenant `gorm:"foreignKey:TenantID" json:"tenant,omitempty"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest represents a token refresh request
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}
