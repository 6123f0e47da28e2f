package handlers

import (
	"net/http"
	"strconv"

	"zapfleet/internal/repo"
	"zapfleet/internal/services"
	"zapfleet/pkg/models"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type GroupSeriesHandler struct {
	seriesRepo  *repo.GroupSeriesRepository
	groupRepo   *repo.GroupRepository
	channelRepo *repo.ChannelRepository
	provisioner *services.ProvisioningService
	monitor     *services.GroupMonitorService
}

func NewGroupSeriesHandler(seriesRepo *repo.GroupSeriesRepository, groupRepo *repo.GroupRepository, channelRepo *repo.ChannelRepository, provisioner *services.ProvisioningService, monitor *services.GroupMonitorService) *GroupSeriesHandler {
	return &GroupSeriesHandler{
		seriesRepo:  seriesRepo,
		groupRepo:   groupRepo,
		channelRepo: channelRepo,
		provisioner: provisioner,
		monitor:     monitor,
	}
}

// List godoc
// @Summary List group series
// @Description Get all group series for a tenant with pagination
// @Tags group-series
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Success 200 {object} models.GroupSeriesListResponse
// @Failure 500 {object} map[string]string
// @Router /group-series [get]
// @Security BearerAuth
func (h *GroupSeriesHandler) List(c echo.Context) error {
	tenantID := c.Get("tenant_id").(uuid.UUID)

	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	seriesList, total, err := h.seriesRepo.List(tenantID, limit, (page-1)*limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to fetch group series"})
	}

	return c.JSON(http.StatusOK, models.PaginationResult[models.GroupSeries]{
		Data:       seriesList,
		Total:      total,
		Page:       page,
		PerPage:    limit,
		TotalPages: int((total + int64(limit) - 1) / int64(limit)),
	})
}

// GetByID godoc
// @Summary Get group series by ID
// @Description Get a specific group series by ID
// @Tags group-series
// @Produce json
// @Param id path string true "Series ID"
// @Success 200 {object} models.SwaggerGroupSeries
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /group-series/{id} [get]
// @Security BearerAuth
func (h *GroupSeriesHandler) GetByID(c echo.Context) error {
	tenantID := c.Get("tenant_id").(uuid.UUID)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid series ID"})
	}

	series, err := h.seriesRepo.GetByID(tenantID, id)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "series not found"})
	}

	return c.JSON(http.StatusOK, series)
}

// Create godoc
// @Summary Create group series
// @Description Create a new group series and provision its first group
// @Tags group-series
// @Accept json
// @Produce json
// @Param series body models.CreateGroupSeriesRequest true "Series data"
// @Success 201 {object} models.SwaggerGroupSeries
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /group-series [post]
// @Security BearerAuth
func (h *GroupSeriesHandler) Create(c echo.Context) error {
	tenantID := c.Get("tenant_id").(uuid.UUID)

	var req models.CreateGroupSeriesRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	if _, err := h.seriesRepo.GetByName(tenantID, req.Name); err == nil {
		return c.JSON(http.StatusConflict, map[string]string{"error": "a series with this name already exists"})
	}

	channel, err := h.channelRepo.GetByID(tenantID, req.ChannelID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "channel not found"})
	}

	series := &models.GroupSeries{
		BaseTenantModel:     models.BaseTenantModel{TenantID: tenantID},
		Name:                req.Name,
		BaseGroupName:       req.BaseGroupName,
		ChannelID:           channel.ID,
		MaxParticipants:     req.MaxParticipants,
		ThresholdPercentage: req.ThresholdPercentage,
		AutoCreateEnabled:   req.AutoCreateEnabled,
		NextGroupNumber:     1,
		WelcomeMessage:      req.WelcomeMessage,
	}
	if series.MaxParticipants <= 0 {
		series.MaxParticipants = 1024
	}
	if series.ThresholdPercentage < 1 || series.ThresholdPercentage > 100 {
		series.ThresholdPercentage = 95
	}

	if err := h.seriesRepo.Create(series); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	// Provision group #1 right away when the channel can serve it
	if channel.IsConnected() {
		if outcome, err := h.provisioner.ForceCreateNextGroup(tenantID, series.ID); err == nil && outcome.Created {
			series.CurrentActiveGroupID = outcome.NewGroupID
			series.NextGroupNumber = 2
		}
	}

	return c.JSON(http.StatusCreated, series)
}

// Update godoc
// @Summary Update group series
// @Description Update series settings, optionally propagating capacity to its groups
// @Tags group-series
// @Accept json
// @Produce json
// @Param id path string true "Series ID"
// @Param series body models.UpdateGroupSeriesRequest true "Series data"
// @Success 200 {object} models.SwaggerGroupSeries
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /group-series/{id} [put]
// @Security BearerAuth
func (h *GroupSeriesHandler) Update(c echo.Context) error {
	tenantID := c.Get("tenant_id").(uuid.UUID)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid series ID"})
	}

	series, err := h.seriesRepo.GetByID(tenantID, id)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "series not found"})
	}

	var req models.UpdateGroupSeriesRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	if req.BaseGroupName != nil {
		series.BaseGroupName = *req.BaseGroupName
	}
	if req.MaxParticipants != nil {
		if *req.MaxParticipants < 1 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "max_participants must be positive"})
		}
		series.MaxParticipants = *req.MaxParticipants
	}
	if req.ThresholdPercentage != nil {
		if *req.ThresholdPercentage < 1 || *req.ThresholdPercentage > 100 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "threshold_percentage must be between 1 and 100"})
		}
		series.ThresholdPercentage = *req.ThresholdPercentage
	}
	if req.AutoCreateEnabled != nil {
		series.AutoCreateEnabled = *req.AutoCreateEnabled
	}
	if req.WelcomeMessage != nil {
		series.WelcomeMessage = *req.WelcomeMessage
	}

	if err := h.seriesRepo.Update(series); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	if req.PropagateToGroups {
		if _, err := h.groupRepo.UpdateSeriesSettings(tenantID, series.Name, series.MaxParticipants, series.ThresholdPercentage); err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "series saved but propagation failed: " + err.Error()})
		}
	}

	return c.JSON(http.StatusOK, series)
}

// Delete godoc
// @Summary Delete group series
// @Description Delete a series and unmanage its groups; remote groups are untouched
// @Tags group-series
// @Param id path string true "Series ID"
// @Success 204 "No Content"
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /group-series/{id} [delete]
// @Security BearerAuth
func (h *GroupSeriesHandler) Delete(c echo.Context) error {
	tenantID := c.Get("tenant_id").(uuid.UUID)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid series ID"})
	}

	series, err := h.seriesRepo.GetByID(tenantID, id)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "series not found"})
	}

	if err := h.groupRepo.DetachSeries(tenantID, series.Name); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to detach series groups"})
	}

	if err := h.seriesRepo.Delete(tenantID, id); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	return c.NoContent(http.StatusNoContent)
}

// Stats godoc
// @Summary Get series statistics
// @Description Get occupancy statistics for every group of a series
// @Tags group-series
// @Produce json
// @Param id path string true "Series ID"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /group-series/{id}/stats [get]
// @Security BearerAuth
func (h *GroupSeriesHandler) Stats(c echo.Context) error {
	tenantID := c.Get("tenant_id").(uuid.UUID)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid series ID"})
	}

	series, err := h.seriesRepo.GetByID(tenantID, id)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "series not found"})
	}

	groups, err := h.groupRepo.ListBySeries(tenantID, series.Name)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to fetch series groups"})
	}

	totalParticipants := 0
	groupStats := make([]map[string]interface{}, 0, len(groups))
	for _, group := range groups {
		totalParticipants += group.ParticipantCount
		groupStats = append(groupStats, map[string]interface{}{
			"group_id":          group.ID,
			"name":              group.Name,
			"group_number":      group.GroupNumber,
			"participant_count": group.ParticipantCount,
			"max_participants":  group.MaxParticipants,
			"occupancy":         services.Occupancy(group.ParticipantCount, group.MaxParticipants),
			"is_active":         group.IsActive,
			"invite_link":       group.InviteLink(),
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"series_id":          series.ID,
		"series_name":        series.Name,
		"group_count":        len(groups),
		"total_participants": totalParticipants,
		"next_group_number":  series.NextGroupNumber,
		"groups":             groupStats,
	})
}

// ForceNext godoc
// @Summary Force next group
// @Description Retire the current active group and provision the next one immediately
// @Tags group-series
// @Produce json
// @Param id path string true "Series ID"
// @Success 200 {object} services.ProvisionOutcome
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /group-series/{id}/force-next [post]
// @Security BearerAuth
func (h *GroupSeriesHandler) ForceNext(c echo.Context) error {
	tenantID := c.Get("tenant_id").(uuid.UUID)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid series ID"})
	}

	outcome, err := h.provisioner.ForceCreateNextGroup(tenantID, id)
	if err != nil {
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, outcome)
}

// Check godoc
// @Summary Check series capacity
// @Description Run the capacity check for this series on demand
// @Tags group-series
// @Produce json
// @Param id path string true "Series ID"
// @Success 200 {object} services.ProvisionOutcome
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /group-series/{id}/check [post]
// @Security BearerAuth
func (h *GroupSeriesHandler) Check(c echo.Context) error {
	tenantID := c.Get("tenant_id").(uuid.UUID)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid series ID"})
	}

	outcome, err := h.monitor.CheckSeriesNow(tenantID, id)
	if err != nil {
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, outcome)
}
