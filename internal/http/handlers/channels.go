package handlers

import (
	"net/http"

	"zapfleet/internal/repo"
	"zapfleet/internal/zapplus"
	"zapfleet/pkg/models"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type ChannelHandler struct {
	channelRepo *repo.ChannelRepository
	zapClient   *zapplus.Client
}

func NewChannelHandler(channelRepo *repo.ChannelRepository, zapClient *zapplus.Client) *ChannelHandler {
	return &ChannelHandler{
		channelRepo: channelRepo,
		zapClient:   zapClient,
	}
}

// List godoc
// @Summary List channels
// @Description Get all messaging channels for a tenant
// @Tags channels
// @Produce json
// @Success 200 {array} models.Channel
// @Failure 500 {object} map[string]string
// @Router /channels [get]
// @Security BearerAuth
func (h *ChannelHandler) List(c echo.Context) error {
	tenantID := c.Get("tenant_id").(uuid.UUID)

	channels, err := h.channelRepo.List(tenantID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to fetch channels"})
	}

	return c.JSON(http.StatusOK, channels)
}

// GetByID godoc
// @Summary Get channel by ID
// @Description Get a specific channel by ID
// @Tags channels
// @Produce json
// @Param id path string true "Channel ID"
// @Success 200 {object} models.Channel
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /channels/{id} [get]
// @Security BearerAuth
func (h *ChannelHandler) GetByID(c echo.Context) error {
	tenantID := c.Get("tenant_id").(uuid.UUID)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid channel ID"})
	}

	channel, err := h.channelRepo.GetByID(tenantID, id)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "channel not found"})
	}

	return c.JSON(http.StatusOK, channel)
}

// Create godoc
// @Summary Create channel
// @Description Register a new messaging channel
// @Tags channels
// @Accept json
// @Produce json
// @Param channel body models.CreateChannelRequest true "Channel data"
// @Success 201 {object} models.Channel
// @Failure 400 {object} map[string]string
// @Router /channels [post]
// @Security BearerAuth
func (h *ChannelHandler) Create(c echo.Context) error {
	tenantID := c.Get("tenant_id").(uuid.UUID)

	var req models.CreateChannelRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	channel := &models.Channel{
		BaseTenantModel: models.BaseTenantModel{TenantID: tenantID},
		Name:            req.Name,
		Session:         req.Session,
		PhoneNumber:     req.PhoneNumber,
		Status:          "disconnected",
		IsActive:        true,
	}

	if err := h.channelRepo.Create(channel); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusCreated, channel)
}

// Update godoc
// @Summary Update channel
// @Description Update an existing channel
// @Tags channels
// @Accept json
// @Produce json
// @Param id path string true "Channel ID"
// @Param channel body models.UpdateChannelRequest true "Channel data"
// @Success 200 {object} models.Channel
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /channels/{id} [put]
// @Security BearerAuth
func (h *ChannelHandler) Update(c echo.Context) error {
	tenantID := c.Get("tenant_id").(uuid.UUID)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid channel ID"})
	}

	channel, err := h.channelRepo.GetByID(tenantID, id)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "channel not found"})
	}

	var req models.UpdateChannelRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	if req.Name != nil {
		channel.Name = *req.Name
	}
	if req.PhoneNumber != nil {
		channel.PhoneNumber = *req.PhoneNumber
	}
	if req.Status != nil {
		channel.Status = *req.Status
	}
	if req.IsActive != nil {
		channel.IsActive = *req.IsActive
	}

	if err := h.channelRepo.Update(channel); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, channel)
}

// Delete godoc
// @Summary Delete channel
// @Description Delete a channel
// @Tags channels
// @Param id path string true "Channel ID"
// @Success 204 "No Content"
// @Failure 400 {object} map[string]string
// @Router /channels/{id} [delete]
// @Security BearerAuth
func (h *ChannelHandler) Delete(c echo.Context) error {
	tenantID := c.Get("tenant_id").(uuid.UUID)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid channel ID"})
	}

	if err := h.channelRepo.Delete(tenantID, id); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	return c.NoContent(http.StatusNoContent)
}

// GetStatus godoc
// @Summary Get channel session status
// @Description Query the messaging provider for the live session status and persist it
// @Tags channels
// @Produce json
// @Param id path string true "Channel ID"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 502 {object} map[string]string
// @Router /channels/{id}/status [get]
// @Security BearerAuth
func (h *ChannelHandler) GetStatus(c echo.Context) error {
	tenantID := c.Get("tenant_id").(uuid.UUID)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid channel ID"})
	}

	channel, err := h.channelRepo.GetByID(tenantID, id)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "channel not found"})
	}

	status, err := h.zapClient.GetSessionStatus(channel.Session)
	if err != nil {
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "failed to query session status: " + err.Error()})
	}

	// Provider reports WORKING when the session is connected
	localStatus := "disconnected"
	if status.Status == "WORKING" {
		localStatus = "connected"
	} else if status.Status == "STARTING" || status.Status == "SCAN_QR_CODE" {
		localStatus = "connecting"
	}

	if channel.Status != localStatus {
		channel.Status = localStatus
		h.channelRepo.Update(channel)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"channel_id":      channel.ID,
		"session":         channel.Session,
		"provider_status": status.Status,
		"status":          localStatus,
		"connected":       channel.IsConnected(),
	})
}
