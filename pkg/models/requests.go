package models

import "github.com/google/uuid"

// ChangePasswordRequest represents a password change request
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=6"`
}

// CreateChannelRequest represents a channel creation request
type CreateChannelRequest struct {
	Name        string `json:"name" validate:"required"`
	Session     string `json:"session" validate:"required"`
	PhoneNumber string `json:"phone_number"`
}

// UpdateChannelRequest represents a channel update request
type UpdateChannelRequest struct {
	Name        *string `json:"name,omitempty"`
	PhoneNumber *string `json:"phone_number,omitempty"`
	Status      *string `json:"status,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

// CreateGroupSeriesRequest represents a group series creation request
type CreateGroupSeriesRequest struct {
	Name                string    `json:"name" validate:"required"`
	BaseGroupName       string    `json:"base_group_name" validate:"required"`
	ChannelID           uuid.UUID `json:"channel_id" validate:"required"`
	MaxParticipants     int       `json:"max_participants"`
	ThresholdPercentage int       `json:"threshold_percentage"`
	AutoCreateEnabled   bool      `json:"auto_create_enabled"`
	WelcomeMessage      string    `json:"welcome_message"`
}

// UpdateGroupSeriesRequest represents a group series update request
type UpdateGroupSeriesRequest struct {
	BaseGroupName       *string `json:"base_group_name,omitempty"`
	MaxParticipants     *int    `json:"max_participants,omitempty"`
	ThresholdPercentage *int    `json:"threshold_percentage,omitempty"`
	AutoCreateEnabled   *bool   `json:"auto_create_enabled,omitempty"`
	WelcomeMessage      *string `json:"welcome_message,omitempty"`
	PropagateToGroups   bool    `json:"propagate_to_groups"`
}

// UpdateGroupSettingsRequest represents a managed group settings update
type UpdateGroupSettingsRequest struct {
	MaxParticipants     *int  `json:"max_participants,omitempty"`
	ThresholdPercentage *int  `json:"threshold_percentage,omitempty"`
	AutoCreateNext      *bool `json:"auto_create_next,omitempty"`
	IsManaged           *bool `json:"is_managed,omitempty"`
}

// GroupParticipantsRequest carries the phone numbers for participant operations
type GroupParticipantsRequest struct {
	Phones []string `json:"phones" validate:"required,min=1"`
}

// GroupSubjectRequest renames a group
type GroupSubjectRequest struct {
	Subject string `json:"subject" validate:"required"`
}

// GroupDescriptionRequest updates a group description
type GroupDescriptionRequest struct {
	Description string `json:"description" validate:"required"`
}

// GroupPictureRequest updates a group picture from a URL
type GroupPictureRequest struct {
	PictureURL string `json:"picture_url" validate:"required,url"`
}

// GroupJoinRequest joins a group through an invite code or link
type GroupJoinRequest struct {
	ChannelID  uuid.UUID `json:"channel_id" validate:"required"`
	InviteCode string    `json:"invite_code" validate:"required"`
}

// GroupMessageRequest sends a text message to a group
type GroupMessageRequest struct {
	Text string `json:"text" validate:"required"`
}

// CleanupRequest configures the inactive group cleanup
type CleanupRequest struct {
	MaxAgeDays int `json:"max_age_days"`
	MaxMembers int `json:"max_members"`
}
