package repo

import (
	"errors"

	"zapfleet/pkg/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrSeriesConcurrentUpdate is returned when the series pointer advance lost
// a race: another writer already consumed the expected group number.
var ErrSeriesConcurrentUpdate = errors.New("group series was updated concurrently")

// GroupSeriesRepository handles group series data access
type GroupSeriesRepository struct {
	db *gorm.DB
}

// NewGroupSeriesRepository creates a new group series repository
func NewGroupSeriesRepository(db *gorm.DB) *GroupSeriesRepository {
	return &GroupSeriesRepository{db: db}
}

// GetByID gets a series by ID and tenant ID for security
func (r *GroupSeriesRepository) GetByID(tenantID, id uuid.UUID) (*models.GroupSeries, error) {
	var series models.GroupSeries
	err := r.db.Where("id = ? AND tenant_id = ?", id, tenantID).First(&series).Error
	if err != nil {
		return nil, err
	}
	return &series, nil
}

// GetByName gets a series by its unique name within a tenant
func (r *GroupSeriesRepository) GetByName(tenantID uuid.UUID, name string) (*models.GroupSeries, error) {
	var series models.GroupSeries
	err := r.db.Where("tenant_id = ? AND name = ?", tenantID, name).First(&series).Error
	if err != nil {
		return nil, err
	}
	return &series, nil
}

// List lists series for a tenant with pagination
func (r *GroupSeriesRepository) List(tenantID uuid.UUID, limit, offset int) ([]models.GroupSeries, int64, error) {
	var series []models.GroupSeries
	var total int64

	query := r.db.Model(&models.GroupSeries{}).Where("tenant_id = ?", tenantID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Order("name ASC").Limit(limit).Offset(offset).Find(&series).Error
	return series, total, err
}

// ListByTenant lists every series of a tenant without pagination
func (r *GroupSeriesRepository) ListByTenant(tenantID uuid.UUID) ([]models.GroupSeries, error) {
	var series []models.GroupSeries
	err := r.db.Where("tenant_id = ?", tenantID).Order("name ASC").Find(&series).Error
	return series, err
}

// ListAutoCreateWithConnectedChannel lists every series eligible for
// monitoring: auto-create enabled and backed by a connected channel
func (r *GroupSeriesRepository) ListAutoCreateWithConnectedChannel() ([]models.GroupSeries, error) {
	var series []models.GroupSeries
	err := r.db.
		Joins("JOIN channels ON channels.id = group_series.channel_id").
		Where("group_series.auto_create_enabled = ?", true).
		Where("channels.status = ? AND channels.is_active = ?", "connected", true).
		Preload("Channel").
		Find(&series).Error
	return series, err
}

// Create creates a new series
func (r *GroupSeriesRepository) Create(series *models.GroupSeries) error {
	return r.db.Create(series).Error
}

// Update updates a series
func (r *GroupSeriesRepository) Update(series *models.GroupSeries) error {
	return r.db.Save(series).Error
}

// Delete deletes a series (soft delete)
func (r *GroupSeriesRepository) Delete(tenantID, id uuid.UUID) error {
	result := r.db.Where("id = ? AND tenant_id = ?", id, tenantID).Delete(&models.GroupSeries{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// AdvanceActiveGroup atomically flips the active-group pointer and consumes
// the next group number. The guard on next_group_number makes the update a
// compare-and-swap: a stale writer gets ErrSeriesConcurrentUpdate instead of
// silently reusing a number.
func (r *GroupSeriesRepository) AdvanceActiveGroup(seriesID uuid.UUID, expectedNextNumber int, newActiveGroupID uuid.UUID) error {
	result := r.db.Model(&models.GroupSeries{}).
		Where("id = ? AND next_group_number = ?", seriesID, expectedNextNumber).
		Updates(map[string]interface{}{
			"current_active_group_id": newActiveGroupID,
			"next_group_number":       gorm.Expr("next_group_number + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSeriesConcurrentUpdate
	}
	return nil
}
