package handlers

import (
	"net/http"
	"strconv"
	"time"

	"zapfleet/internal/repo"
	"zapfleet/internal/services"
	"zapfleet/internal/zapplus"
	"zapfleet/pkg/models"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type GroupHandler struct {
	groupRepo   *repo.GroupRepository
	channelRepo *repo.ChannelRepository
	syncService *services.SyncService
	zapClient   *zapplus.Client
}

func NewGroupHandler(groupRepo *repo.GroupRepository, channelRepo *repo.ChannelRepository, syncService *services.SyncService, zapClient *zapplus.Client) *GroupHandler {
	return &GroupHandler{
		groupRepo:   groupRepo,
		channelRepo: channelRepo,
		syncService: syncService,
		zapClient:   zapClient,
	}
}

// resolveGroup loads a group by path ID and its channel, shared by the action endpoints
func (h *GroupHandler) resolveGroup(c echo.Context) (*models.Group, *models.Channel, error) {
	tenantID := c.Get("tenant_id").(uuid.UUID)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, nil, echo.NewHTTPError(http.StatusBadRequest, "invalid group ID")
	}

	group, err := h.groupRepo.GetByID(tenantID, id)
	if err != nil {
		return nil, nil, echo.NewHTTPError(http.StatusNotFound, "group not found")
	}

	channel, err := h.channelRepo.GetByID(tenantID, group.ChannelID)
	if err != nil {
		return nil, nil, echo.NewHTTPError(http.StatusNotFound, "channel not found for group")
	}

	if !channel.IsConnected() {
		return nil, nil, echo.NewHTTPError(http.StatusConflict, "channel is not connected")
	}

	return group, channel, nil
}

// requireAdmin rejects participant mutations when our channel is not a group admin
func requireAdmin(group *models.Group) error {
	if !group.IsAdmin {
		return echo.NewHTTPError(http.StatusForbidden, "channel is not an admin of this group")
	}
	return nil
}

// List godoc
// @Summary List groups
// @Description Get all groups for a tenant with pagination
// @Tags groups
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Param series query string false "Filter by series name"
// @Success 200 {object} models.GroupListResponse
// @Failure 500 {object} map[string]string
// @Router /groups [get]
// @Security BearerAuth
func (h *GroupHandler) List(c echo.Context) error {
	tenantID := c.Get("tenant_id").(uuid.UUID)

	if series := c.QueryParam("series"); series != "" {
		groups, err := h.groupRepo.ListBySeries(tenantID, series)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to fetch groups"})
		}
		return c.JSON(http.StatusOK, groups)
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	groups, total, err := h.groupRepo.List(tenantID, limit, (page-1)*limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to fetch groups"})
	}

	return c.JSON(http.StatusOK, models.PaginationResult[models.Group]{
		Data:       groups,
		Total:      total,
		Page:       page,
		PerPage:    limit,
		TotalPages: int((total + int64(limit) - 1) / int64(limit)),
	})
}

// GetByID godoc
// @Summary Get group by ID
// @Description Get a specific group by ID
// @Tags groups
// @Produce json
// @Param id path string true "Group ID"
// @Success 200 {object} models.SwaggerGroup
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /groups/{id} [get]
// @Security BearerAuth
func (h *GroupHandler) GetByID(c echo.Context) error {
	tenantID := c.Get("tenant_id").(uuid.UUID)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid group ID"})
	}

	group, err := h.groupRepo.GetByID(tenantID, id)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "group not found"})
	}

	return c.JSON(http.StatusOK, group)
}

// Sync godoc
// @Summary Sync groups
// @Description Reconcile local group records against the messaging provider for all connected channels
// @Tags groups
// @Produce json
// @Success 200 {object} services.SyncResult
// @Failure 409 {object} map[string]string
// @Router /groups/sync [post]
// @Security BearerAuth
func (h *GroupHandler) Sync(c echo.Context) error {
	tenantID := c.Get("tenant_id").(uuid.UUID)

	result, err := h.syncService.Sync(tenantID)
	if err != nil {
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, result)
}

// Refresh godoc
// @Summary Refresh group metadata
// @Description Re-fetch metadata for a single group from the messaging provider
// @Tags groups
// @Produce json
// @Param id path string true "Group ID"
// @Success 200 {object} models.SwaggerGroup
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 502 {object} map[string]string
// @Router /groups/{id}/refresh [post]
// @Security BearerAuth
func (h *GroupHandler) Refresh(c echo.Context) error {
	group, channel, err := h.resolveGroup(c)
	if err != nil {
		return err
	}

	info, err := h.zapClient.FetchGroupInfo(channel.Session, group.JID)
	if err != nil {
		group.SyncStatus = models.SyncStatusError
		h.groupRepo.Update(group)
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "failed to fetch group info: " + err.Error()})
	}

	applyGroupInfo(group, info, channel)
	now := time.Now()
	group.LastSync = &now
	group.SyncStatus = models.SyncStatusSynced

	if err := h.groupRepo.Update(group); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to save group"})
	}

	return c.JSON(http.StatusOK, group)
}

// applyGroupInfo copies sanitized provider metadata onto a local group record
func applyGroupInfo(group *models.Group, info *zapplus.GroupInfo, channel *models.Channel) {
	if info.Subject != "" {
		group.Name = info.Subject
	}
	if info.Description != "" {
		group.Description = info.Description
	}

	group.Participants = info.Participants
	group.AdminIDs = info.AdminIDs
	group.ParticipantCount = len(info.Participants)

	group.IsAdmin = false
	group.IsSuperAdmin = false
	for _, p := range info.Participants {
		if p.ID == channel.WhatsAppID || zapplus.SamePhone(p.ID, channel.PhoneNumber) {
			group.IsAdmin = p.Role == models.RoleAdmin || p.Role == models.RoleSuperAdmin
			group.IsSuperAdmin = p.Role == models.RoleSuperAdmin
			break
		}
	}
}

// UpdateSettings godoc
// @Summary Update group fleet settings
// @Description Update capacity and management settings of a group
// @Tags groups
// @Accept json
// @Produce json
// @Param id path string true "Group ID"
// @Param settings body models.UpdateGroupSettingsRequest true "Settings"
// @Success 200 {object} models.SwaggerGroup
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /groups/{id}/settings [put]
// @Security BearerAuth
func (h *GroupHandler) UpdateSettings(c echo.Context) error {
	tenantID := c.Get("tenant_id").(uuid.UUID)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid group ID"})
	}

	group, err := h.groupRepo.GetByID(tenantID, id)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "group not found"})
	}

	var req models.UpdateGroupSettingsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	if req.MaxParticipants != nil {
		if *req.MaxParticipants < 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "max_participants cannot be negative"})
		}
		group.MaxParticipants = *req.MaxParticipants
	}
	if req.ThresholdPercentage != nil {
		if *req.ThresholdPercentage < 1 || *req.ThresholdPercentage > 100 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "threshold_percentage must be between 1 and 100"})
		}
		group.ThresholdPercentage = *req.ThresholdPercentage
	}
	if req.AutoCreateNext != nil {
		group.AutoCreateNext = *req.AutoCreateNext
	}
	if req.IsManaged != nil {
		group.IsManaged = *req.IsManaged
	}

	if err := h.groupRepo.Update(group); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, group)
}

// SetSubject godoc
// @Summary Rename group
// @Description Change the group subject on the messaging provider and locally
// @Tags groups
// @Accept json
// @Produce json
// @Param id path string true "Group ID"
// @Param subject body models.GroupSubjectRequest true "New subject"
// @Success 200 {object} models.SwaggerGroup
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 502 {object} map[string]string
// @Router /groups/{id}/subject [put]
// @Security BearerAuth
func (h *GroupHandler) SetSubject(c echo.Context) error {
	group, channel, err := h.resolveGroup(c)
	if err != nil {
		return err
	}
	if err := requireAdmin(group); err != nil {
		return err
	}

	var req models.GroupSubjectRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	if err := h.zapClient.SetGroupSubject(channel.Session, group.JID, req.Subject); err != nil {
		return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
	}

	group.Name = req.Subject
	h.groupRepo.Update(group)

	return c.JSON(http.StatusOK, group)
}

// SetDescription godoc
// @Summary Update group description
// @Description Change the group description on the messaging provider and locally
// @Tags groups
// @Accept json
// @Produce json
// @Param id path string true "Group ID"
// @Param description body models.GroupDescriptionRequest true "New description"
// @Success 200 {object} models.SwaggerGroup
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 502 {object} map[string]string
// @Router /groups/{id}/description [put]
// @Security BearerAuth
func (h *GroupHandler) SetDescription(c echo.Context) error {
	group, channel, err := h.resolveGroup(c)
	if err != nil {
		return err
	}
	if err := requireAdmin(group); err != nil {
		return err
	}

	var req models.GroupDescriptionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	if err := h.zapClient.SetGroupDescription(channel.Session, group.JID, req.Description); err != nil {
		return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
	}

	group.Description = req.Description
	h.groupRepo.Update(group)

	return c.JSON(http.StatusOK, group)
}

// SetPicture godoc
// @Summary Update group picture
// @Description Change the group picture on the messaging provider
// @Tags groups
// @Accept json
// @Produce json
// @Param id path string true "Group ID"
// @Param picture body models.GroupPictureRequest true "Picture URL"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 502 {object} map[string]string
// @Router /groups/{id}/picture [put]
// @Security BearerAuth
func (h *GroupHandler) SetPicture(c echo.Context) error {
	group, channel, err := h.resolveGroup(c)
	if err != nil {
		return err
	}
	if err := requireAdmin(group); err != nil {
		return err
	}

	var req models.GroupPictureRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	if err := h.zapClient.SetGroupPicture(channel.Session, group.JID, req.PictureURL); err != nil {
		return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "group picture updated"})
}

// AddParticipants godoc
// @Summary Add participants
// @Description Add participants to a group by phone number
// @Tags groups
// @Accept json
// @Produce json
// @Param id path string true "Group ID"
// @Param phones body models.GroupParticipantsRequest true "Phone numbers"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 502 {object} map[string]string
// @Router /groups/{id}/participants/add [post]
// @Security BearerAuth
func (h *GroupHandler) AddParticipants(c echo.Context) error {
	return h.participantAction(c, h.zapClient.AddParticipants, "participants added")
}

// RemoveParticipants godoc
// @Summary Remove participants
// @Description Remove participants from a group by phone number
// @Tags groups
// @Accept json
// @Produce json
// @Param id path string true "Group ID"
// @Param phones body models.GroupParticipantsRequest true "Phone numbers"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 502 {object} map[string]string
// @Router /groups/{id}/participants/remove [post]
// @Security BearerAuth
func (h *GroupHandler) RemoveParticipants(c echo.Context) error {
	return h.participantAction(c, h.zapClient.RemoveParticipants, "participants removed")
}

// PromoteParticipants godoc
// @Summary Promote participants
// @Description Promote participants to group admin
// @Tags groups
// @Accept json
// @Produce json
// @Param id path string true "Group ID"
// @Param phones body models.GroupParticipantsRequest true "Phone numbers"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 502 {object} map[string]string
// @Router /groups/{id}/participants/promote [post]
// @Security BearerAuth
func (h *GroupHandler) PromoteParticipants(c echo.Context) error {
	return h.participantAction(c, h.zapClient.PromoteParticipants, "participants promoted")
}

// DemoteParticipants godoc
// @Summary Demote participants
// @Description Demote group admins back to members
// @Tags groups
// @Accept json
// @Produce json
// @Param id path string true "Group ID"
// @Param phones body models.GroupParticipantsRequest true "Phone numbers"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 502 {object} map[string]string
// @Router /groups/{id}/participants/demote [post]
// @Security BearerAuth
func (h *GroupHandler) DemoteParticipants(c echo.Context) error {
	return h.participantAction(c, h.zapClient.DemoteParticipants, "participants demoted")
}

func (h *GroupHandler) participantAction(c echo.Context, action func(session, groupID string, phones []string) error, message string) error {
	group, channel, err := h.resolveGroup(c)
	if err != nil {
		return err
	}
	if err := requireAdmin(group); err != nil {
		return err
	}

	var req models.GroupParticipantsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	phones := make([]string, 0, len(req.Phones))
	for _, phone := range req.Phones {
		phones = append(phones, zapplus.FormatPhoneToWhatsApp(phone))
	}

	if err := action(channel.Session, group.JID, phones); err != nil {
		return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, map[string]string{"message": message})
}

// GetInviteLink godoc
// @Summary Get invite link
// @Description Get (and cache) the group invite link
// @Tags groups
// @Produce json
// @Param id path string true "Group ID"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 502 {object} map[string]string
// @Router /groups/{id}/invite [get]
// @Security BearerAuth
func (h *GroupHandler) GetInviteLink(c echo.Context) error {
	group, channel, err := h.resolveGroup(c)
	if err != nil {
		return err
	}

	code, err := h.zapClient.GetInviteCode(channel.Session, group.JID)
	if err != nil {
		return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
	}

	if group.InviteCode != code {
		group.InviteCode = code
		h.groupRepo.Update(group)
	}

	return c.JSON(http.StatusOK, map[string]string{
		"invite_code": code,
		"invite_link": group.InviteLink(),
	})
}

// RevokeInviteLink godoc
// @Summary Revoke invite link
// @Description Revoke the current invite link and return the new one
// @Tags groups
// @Produce json
// @Param id path string true "Group ID"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 502 {object} map[string]string
// @Router /groups/{id}/invite/revoke [post]
// @Security BearerAuth
func (h *GroupHandler) RevokeInviteLink(c echo.Context) error {
	group, channel, err := h.resolveGroup(c)
	if err != nil {
		return err
	}
	if err := requireAdmin(group); err != nil {
		return err
	}

	code, err := h.zapClient.RevokeInviteCode(channel.Session, group.JID)
	if err != nil {
		return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
	}

	group.InviteCode = code
	h.groupRepo.Update(group)

	return c.JSON(http.StatusOK, map[string]string{
		"invite_code": code,
		"invite_link": group.InviteLink(),
	})
}

// Join godoc
// @Summary Join group by invite
// @Description Join a group through an invite code or link and register it locally
// @Tags groups
// @Accept json
// @Produce json
// @Param request body models.GroupJoinRequest true "Channel and invite code"
// @Success 201 {object} models.SwaggerGroup
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Failure 502 {object} map[string]string
// @Router /groups/join [post]
// @Security BearerAuth
func (h *GroupHandler) Join(c echo.Context) error {
	tenantID := c.Get("tenant_id").(uuid.UUID)

	var req models.GroupJoinRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	channel, err := h.channelRepo.GetByID(tenantID, req.ChannelID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "channel not found"})
	}
	if !channel.IsConnected() {
		return c.JSON(http.StatusConflict, map[string]string{"error": "channel is not connected"})
	}

	jid, err := h.zapClient.JoinGroup(channel.Session, req.InviteCode)
	if err != nil {
		return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
	}

	if existing, err := h.groupRepo.GetByJID(tenantID, jid); err == nil {
		return c.JSON(http.StatusOK, existing)
	}

	group := &models.Group{
		BaseTenantModel: models.BaseTenantModel{TenantID: tenantID},
		ChannelID:       channel.ID,
		JID:             jid,
		Name:            jid,
		SyncStatus:      models.SyncStatusSynced,
	}
	if info, err := h.zapClient.FetchGroupInfo(channel.Session, jid); err == nil {
		applyGroupInfo(group, info, channel)
	}
	now := time.Now()
	group.LastSync = &now

	if err := h.groupRepo.Create(group); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "joined group but failed to save record"})
	}

	return c.JSON(http.StatusCreated, group)
}

// SendMessage godoc
// @Summary Send group message
// @Description Send a text message to the group
// @Tags groups
// @Accept json
// @Produce json
// @Param id path string true "Group ID"
// @Param message body models.GroupMessageRequest true "Message"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 502 {object} map[string]string
// @Router /groups/{id}/message [post]
// @Security BearerAuth
func (h *GroupHandler) SendMessage(c echo.Context) error {
	group, channel, err := h.resolveGroup(c)
	if err != nil {
		return err
	}

	var req models.GroupMessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	if err := h.zapClient.SendGroupMessage(channel.Session, group.JID, req.Text); err != nil {
		return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "message sent"})
}

// Leave godoc
// @Summary Leave group
// @Description Leave the group on the messaging provider, keeping the local record
// @Tags groups
// @Produce json
// @Param id path string true "Group ID"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 502 {object} map[string]string
// @Router /groups/{id}/leave [post]
// @Security BearerAuth
func (h *GroupHandler) Leave(c echo.Context) error {
	group, channel, err := h.resolveGroup(c)
	if err != nil {
		return err
	}

	if err := h.zapClient.LeaveGroup(channel.Session, group.JID); err != nil {
		return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
	}

	group.IsActive = false
	group.IsManaged = false
	h.groupRepo.Update(group)

	return c.JSON(http.StatusOK, map[string]string{"message": "left group"})
}

// Delete godoc
// @Summary Delete group record
// @Description Delete the local group record, never the remote group
// @Tags groups
// @Param id path string true "Group ID"
// @Success 204 "No Content"
// @Failure 400 {object} map[string]string
// @Router /groups/{id} [delete]
// @Security BearerAuth
func (h *GroupHandler) Delete(c echo.Context) error {
	tenantID := c.Get("tenant_id").(uuid.UUID)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid group ID"})
	}

	if err := h.groupRepo.Delete(tenantID, id); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	return c.NoContent(http.StatusNoContent)
}
