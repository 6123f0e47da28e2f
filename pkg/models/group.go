package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Sync status values for Group.SyncStatus
const (
	SyncStatusSynced  = "synced"
	SyncStatusSyncing = "syncing"
	SyncStatusError   = "error"
)

// Participant roles as stored in GroupParticipant.Role
const (
	RoleMember     = "member"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "superadmin"
)

// GroupParticipant is one sanitized participant snapshot
type GroupParticipant struct {
	ID   string `json:"id"`
	Role string `json:"role"` // member, admin, superadmin
}

// IsAdmin reports whether the participant holds any admin role
func (p GroupParticipant) IsAdmin() bool {
	return p.Role == RoleAdmin || p.Role == RoleSuperAdmin
}

// GroupParticipantList is stored as JSONB
type GroupParticipantList []GroupParticipant

// Value implements driver.Valuer interface for JSONB
func (l GroupParticipantList) Value() (driver.Value, error) {
	if l == nil {
		l = GroupParticipantList{}
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner interface for JSONB
func (l *GroupParticipantList) Scan(value interface{}) error {
	if value == nil {
		*l = GroupParticipantList{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("failed to scan GroupParticipantList: expected []byte, got %T", value)
	}
	return json.Unmarshal(bytes, l)
}

// StringList is a JSONB-backed list of strings
type StringList []string

// Value implements driver.Valuer interface for JSONB
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		l = StringList{}
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner interface for JSONB
func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = StringList{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("failed to scan StringList: expected []byte, got %T", value)
	}
	return json.Unmarshal(bytes, l)
}

// Group represents one managed or discovered WhatsApp group
type Group struct {
	BaseTenantModel
	ChannelID uuid.UUID `gorm:"type:uuid;not null;index;constraint:OnDelete:RESTRICT" json:"channel_id"`
	JID       string    `gorm:"not null;index" json:"jid"` // remote group id (xxx@g.us)
	Name      string    `gorm:"not null" json:"name"`

	Description      string               `gorm:"type:text" json:"description"`
	Participants     GroupParticipantList `gorm:"type:jsonb" json:"participants"`
	AdminIDs         StringList           `gorm:"type:jsonb" json:"admin_ids"` // denormalized for fast role checks
	ParticipantCount int                  `gorm:"default:0" json:"participant_count"`
	IsAdmin          bool                 `gorm:"default:false" json:"is_admin"`       // our channel is admin of this group
	IsSuperAdmin     bool                 `gorm:"default:false" json:"is_super_admin"` // our channel created this group
	InviteCode       string               `json:"invite_code"`

	// Fleet attributes, only meaningful when IsManaged is true
	IsManaged           bool   `gorm:"default:false;index" json:"is_managed"`
	GroupSeries         string `gorm:"index" json:"group_series"`
	GroupNumber         int    `gorm:"default:0" json:"group_number"` // 1-based position within the series
	MaxParticipants     int    `gorm:"default:0" json:"max_participants"`
	ThresholdPercentage int    `gorm:"default:0" json:"threshold_percentage"`
	IsActive            bool   `gorm:"default:false;index" json:"is_active"`
	AutoCreateNext      bool   `gorm:"default:false" json:"auto_create_next"`

	LastSync   *time.Time `json:"last_sync"`
	SyncStatus string     `gorm:"default:'synced'" json:"sync_status"` // synced, syncing, error

	// Relations
	Channel *Channel `gorm:"foreignKey:ChannelID" json:"channel,omitempty"`
}

// InviteLink returns the shareable invite URL for the group, empty when no code is known
func (g *Group) InviteLink() string {
	if g.InviteCode == "" {
		return ""
	}
	return "https://chat.whatsapp.com/" + g.InviteCode
}

// GroupSeries represents a logical audience split across a succession of groups
type GroupSeries struct {
	BaseTenantModel
	Name                 string     `gorm:"not null;index" json:"name" validate:"required"`
	BaseGroupName        string     `gorm:"not null" json:"base_group_name" validate:"required"`
	Description          string     `gorm:"type:text" json:"description"`
	ChannelID            uuid.UUID  `gorm:"type:uuid;not null;index;constraint:OnDelete:RESTRICT" json:"channel_id"`
	MaxParticipants      int        `gorm:"default:1024" json:"max_participants"`
	ThresholdPercentage  int        `gorm:"default:95" json:"threshold_percentage"`
	AutoCreateEnabled    bool       `gorm:"default:true" json:"auto_create_enabled"`
	NextGroupNumber      int        `gorm:"default:1" json:"next_group_number"`
	CurrentActiveGroupID *uuid.UUID `gorm:"type:uuid" json:"current_active_group_id"`
	WelcomeMessage       string     `gorm:"type:text" json:"welcome_message"`

	// Relations
	Channel            *Channel `gorm:"foreignKey:ChannelID" json:"channel,omitempty"`
	CurrentActiveGroup *Group   `gorm:"foreignKey:CurrentActiveGroupID" json:"current_active_group,omitempty"`
}

// GroupName returns the display name for the group at the given position in the series
func (s *GroupSeries) GroupName(number int) string {
	return fmt.Sprintf("%s %d", s.BaseGroupName, number)
}
