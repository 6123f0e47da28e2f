package repo

import (
	"zapfleet/pkg/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChannelRepository handles channel data access
type ChannelRepository struct {
	db *gorm.DB
}

// NewChannelRepository creates a new channel repository
func NewChannelRepository(db *gorm.DB) *ChannelRepository {
	return &ChannelRepository{db: db}
}

// GetByID gets a channel by ID and tenant ID for security
func (r *ChannelRepository) GetByID(tenantID, id uuid.UUID) (*models.Channel, error) {
	var channel models.Channel
	err := r.db.Where("id = ? AND tenant_id = ?", id, tenantID).First(&channel).Error
	if err != nil {
		return nil, err
	}
	return &channel, nil
}

// GetBySession gets a channel by session (globally, not tenant-specific)
func (r *ChannelRepository) GetBySession(session string) (*models.Channel, error) {
	var channel models.Channel
	err := r.db.Where("session = ?", session).First(&channel).Error
	if err != nil {
		return nil, err
	}
	return &channel, nil
}

// List lists channels for a tenant
func (r *ChannelRepository) List(tenantID uuid.UUID) ([]models.Channel, error) {
	var channels []models.Channel
	err := r.db.Where("tenant_id = ?", tenantID).Order("created_at ASC").Find(&channels).Error
	return channels, err
}

// ListConnected lists connected active channels for a tenant
func (r *ChannelRepository) ListConnected(tenantID uuid.UUID) ([]models.Channel, error) {
	var channels []models.Channel
	err := r.db.Where("tenant_id = ? AND status = ? AND is_active = ?", tenantID, "connected", true).
		Order("created_at ASC").Find(&channels).Error
	return channels, err
}

// Create creates a new channel
func (r *ChannelRepository) Create(channel *models.Channel) error {
	return r.db.Create(channel).Error
}

// Update updates a channel
func (r *ChannelRepository) Update(channel *models.Channel) error {
	return r.db.Save(channel).Error
}

// Delete deletes a channel (soft delete)
func (r *ChannelRepository) Delete(tenantID, id uuid.UUID) error {
	result := r.db.Where("id = ? AND tenant_id = ?", id, tenantID).Delete(&models.Channel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
