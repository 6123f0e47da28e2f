package models

// PaginationResult represents paginated results
type PaginationResult[T any] struct {
	Data       []T   `json:"data"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	TotalPages int   `json:"total_pages"`
}

// GetAllModels returns every model registered for AutoMigrate
func GetAllModels() []interface{} {
	return []interface{}{
		&Tenant{},
		&User{},
		&Channel{},
		&Group{},
		&GroupSeries{},
	}
}

// Swagger-specific types (non-generic to avoid swag parsing issues)

// SwaggerGroup represents a group for swagger docs (without GORM dependencies)
type SwaggerGroup struct {
	ID                  string `json:"id"`
	TenantID            string `json:"tenant_id"`
	ChannelID           string `json:"channel_id"`
	JID                 string `json:"jid"`
	Name                string `json:"name"`
	Description         string `json:"description,omitempty"`
	ParticipantCount    int    `json:"participant_count"`
	IsAdmin             bool   `json:"is_admin"`
	InviteCode          string `json:"invite_code,omitempty"`
	IsManaged           bool   `json:"is_managed"`
	GroupSeries         string `json:"group_series,omitempty"`
	GroupNumber         int    `json:"group_number,omitempty"`
	MaxParticipants     int    `json:"max_participants,omitempty"`
	ThresholdPercentage int    `json:"threshold_percentage,omitempty"`
	IsActive            bool   `json:"is_active"`
	SyncStatus          string `json:"sync_status"`
	CreatedAt           string `json:"created_at"`
	UpdatedAt           string `json:"updated_at"`
}

// GroupListResponse represents paginated group results for Swagger docs
type GroupListResponse struct {
	Data       []SwaggerGroup `json:"data"`
	Total      int64          `json:"total"`
	Page       int            `json:"page"`
	PerPage    int            `json:"per_page"`
	TotalPages int            `json:"total_pages"`
}

// SwaggerGroupSeries represents a group series for swagger docs
type SwaggerGroupSeries struct {
	ID                   string `json:"id"`
	TenantID             string `json:"tenant_id"`
	Name                 string `json:"name"`
	BaseGroupName        string `json:"base_group_name"`
	Description          string `json:"description,omitempty"`
	ChannelID            string `json:"channel_id"`
	MaxParticipants      int    `json:"max_participants"`
	ThresholdPercentage  int    `json:"threshold_percentage"`
	AutoCreateEnabled    bool   `json:"auto_create_enabled"`
	NextGroupNumber      int    `json:"next_group_number"`
	CurrentActiveGroupID string `json:"current_active_group_id,omitempty"`
	CreatedAt            string `json:"created_at"`
	UpdatedAt            string `json:"updated_at"`
}

// GroupSeriesListResponse represents paginated series results for Swagger docs
type GroupSeriesListResponse struct {
	Data       []SwaggerGroupSeries `json:"data"`
	Total      int64                `json:"total"`
	Page       int                  `json:"page"`
	PerPage    int                  `json:"per_page"`
	TotalPages int                  `json:"total_pages"`
}
