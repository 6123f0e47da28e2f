package repo

import (
	"time"

	"zapfleet/pkg/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GroupRepository handles group data access
type GroupRepository struct {
	db *gorm.DB
}

// NewGroupRepository creates a new group repository
func NewGroupRepository(db *gorm.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

// GetByID gets a group by ID and tenant ID for security
func (r *GroupRepository) GetByID(tenantID, id uuid.UUID) (*models.Group, error) {
	var group models.Group
	err := r.db.Where("id = ? AND tenant_id = ?", id, tenantID).First(&group).Error
	if err != nil {
		return nil, err
	}
	return &group, nil
}

// GetByJID gets a group by its remote id within a tenant
func (r *GroupRepository) GetByJID(tenantID uuid.UUID, jid string) (*models.Group, error) {
	var group models.Group
	err := r.db.Where("jid = ? AND tenant_id = ?", jid, tenantID).First(&group).Error
	if err != nil {
		return nil, err
	}
	return &group, nil
}

// List lists groups for a tenant with pagination
func (r *GroupRepository) List(tenantID uuid.UUID, limit, offset int) ([]models.Group, int64, error) {
	var groups []models.Group
	var total int64

	query := r.db.Model(&models.Group{}).Where("tenant_id = ?", tenantID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Order("group_series ASC, group_number ASC, name ASC").
		Limit(limit).Offset(offset).Find(&groups).Error
	return groups, total, err
}

// ListBySeries lists all groups of a series ordered by their position
func (r *GroupRepository) ListBySeries(tenantID uuid.UUID, seriesName string) ([]models.Group, error) {
	var groups []models.Group
	err := r.db.Where("tenant_id = ? AND group_series = ?", tenantID, seriesName).
		Order("group_number ASC").Find(&groups).Error
	return groups, err
}

// ListActiveManaged lists all active managed groups across tenants
func (r *GroupRepository) ListActiveManaged() ([]models.Group, error) {
	var groups []models.Group
	err := r.db.Where("is_managed = ? AND is_active = ?", true, true).Find(&groups).Error
	return groups, err
}

// ListManagedByTenant lists every managed group of a tenant
func (r *GroupRepository) ListManagedByTenant(tenantID uuid.UUID) ([]models.Group, error) {
	var groups []models.Group
	err := r.db.Where("tenant_id = ? AND is_managed = ?", tenantID, true).
		Order("group_series ASC, group_number ASC").Find(&groups).Error
	return groups, err
}

// ListInactiveManaged lists managed groups deactivated before the cutoff
// and holding at most maxParticipants members
func (r *GroupRepository) ListInactiveManaged(cutoff time.Time, maxParticipants int) ([]models.Group, error) {
	var groups []models.Group
	err := r.db.Where("is_managed = ? AND is_active = ? AND participant_count <= ? AND updated_at < ?",
		true, false, maxParticipants, cutoff).Find(&groups).Error
	return groups, err
}

// Create creates a new group
func (r *GroupRepository) Create(group *models.Group) error {
	return r.db.Create(group).Error
}

// Update updates a group
func (r *GroupRepository) Update(group *models.Group) error {
	return r.db.Save(group).Error
}

// Delete permanently removes a group record
func (r *GroupRepository) Delete(tenantID, id uuid.UUID) error {
	result := r.db.Unscoped().Where("id = ? AND tenant_id = ?", id, tenantID).Delete(&models.Group{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkAllSyncing flags every group of the tenant as pending reconciliation.
// Rows still flagged after a sync run were not observed remotely.
func (r *GroupRepository) MarkAllSyncing(tenantID uuid.UUID) error {
	return r.db.Model(&models.Group{}).Where("tenant_id = ?", tenantID).
		Update("sync_status", models.SyncStatusSyncing).Error
}

// DeleteStillSyncing removes rows not observed during the sync run
func (r *GroupRepository) DeleteStillSyncing(tenantID uuid.UUID) (int64, error) {
	result := r.db.Unscoped().Where("tenant_id = ? AND sync_status = ?", tenantID, models.SyncStatusSyncing).
		Delete(&models.Group{})
	return result.RowsAffected, result.Error
}

// RevertSyncingToError marks interrupted rows so they are not mistaken for reconciled ones
func (r *GroupRepository) RevertSyncingToError(tenantID uuid.UUID) error {
	return r.db.Model(&models.Group{}).
		Where("tenant_id = ? AND sync_status = ?", tenantID, models.SyncStatusSyncing).
		Update("sync_status", models.SyncStatusError).Error
}

// UpdateSeriesSettings propagates series capacity settings to all of its groups
func (r *GroupRepository) UpdateSeriesSettings(tenantID uuid.UUID, seriesName string, maxParticipants, thresholdPercentage int) (int64, error) {
	result := r.db.Model(&models.Group{}).
		Where("tenant_id = ? AND group_series = ? AND is_managed = ?", tenantID, seriesName, true).
		Updates(map[string]interface{}{
			"max_participants":     maxParticipants,
			"threshold_percentage": thresholdPercentage,
		})
	return result.RowsAffected, result.Error
}

// DetachSeries unmanages every group of a removed series
func (r *GroupRepository) DetachSeries(tenantID uuid.UUID, seriesName string) error {
	return r.db.Model(&models.Group{}).
		Where("tenant_id = ? AND group_series = ?", tenantID, seriesName).
		Updates(map[string]interface{}{
			"is_managed":       false,
			"is_active":        false,
			"auto_create_next": false,
		}).Error
}
