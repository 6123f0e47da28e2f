package models

import "time"

// Channel represents a WhatsApp connection (one session on the external API)
type Channel struct {
	BaseTenantModel
	Name        string     `gorm:"not null" json:"name" validate:"required"`
	Type        string     `gorm:"not null;default:'whatsapp'" json:"type"`
	Session     string     `gorm:"not null" json:"session" validate:"required"` // session identifier on the external API
	PhoneNumber string     `json:"phone_number"`                               // own number, used for role matching in group metadata
	WhatsAppID  string     `gorm:"column:whatsapp_id" json:"whatsapp_id"`      // own id as reported by the API (e.g. 5527...@c.us)
	Status      string     `gorm:"default:'disconnected'" json:"status"`       // disconnected, connecting, connected
	QRCode      string     `json:"qr_code,omitempty"`
	QRExpiresAt *time.Time `json:"qr_expires_at,omitempty"`
	IsActive    bool       `gorm:"default:true" json:"is_active"`
}

// IsConnected reports whether the channel can serve gateway calls
func (c *Channel) IsConnected() bool {
	return c.IsActive && c.Status == "connected"
}
