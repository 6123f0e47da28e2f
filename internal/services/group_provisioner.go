package services

import (
	"fmt"
	"log"
	"time"

	"zapfleet/internal/zapplus"
	"zapfleet/pkg/models"

	"github.com/google/uuid"
)

// ProvisioningService rotates a series to its next group when the active one
// nears capacity. All writes to the series pointer go through the store's
// compare-and-swap so concurrent triggers cannot reuse a group number.
type ProvisioningService struct {
	groups    GroupStore
	series    SeriesStore
	channels  ChannelStore
	gateway   GroupGateway
	publisher EventPublisher
	now       func() time.Time
}

// NewProvisioningService creates a new provisioning service
func NewProvisioningService(groups GroupStore, series SeriesStore, channels ChannelStore, gateway GroupGateway, publisher EventPublisher) *ProvisioningService {
	return &ProvisioningService{
		groups:    groups,
		series:    series,
		channels:  channels,
		gateway:   gateway,
		publisher: publisher,
		now:       time.Now,
	}
}

// ProvisionOutcome reports what a series check did
type ProvisionOutcome struct {
	SeriesID       uuid.UUID  `json:"series_id"`
	SeriesName     string     `json:"series_name"`
	Checked        bool       `json:"checked"`
	Created        bool       `json:"created"`
	Deactivated    bool       `json:"deactivated"`
	OldGroupID     *uuid.UUID `json:"old_group_id,omitempty"`
	OldOccupancy   float64    `json:"old_occupancy"`
	NewGroupID     *uuid.UUID `json:"new_group_id,omitempty"`
	NewGroupJID    string     `json:"new_group_jid,omitempty"`
	NewGroupNumber int        `json:"new_group_number,omitempty"`
	InviteLink     string     `json:"invite_link,omitempty"`
}

// CheckSeries evaluates one series and provisions the next group if the
// active one is full or past its threshold. A series without an active group
// cannot be monitored and is reported as an error without touching the rest
// of the fleet.
func (s *ProvisioningService) CheckSeries(series *models.GroupSeries) (*ProvisionOutcome, error) {
	outcome := &ProvisionOutcome{SeriesID: series.ID, SeriesName: series.Name}

	if series.CurrentActiveGroupID == nil {
		return outcome, fmt.Errorf("series %s has no active group to monitor", series.Name)
	}

	channel, err := s.channels.GetByID(series.TenantID, series.ChannelID)
	if err != nil {
		return outcome, fmt.Errorf("failed to load channel for series %s: %w", series.Name, err)
	}
	if !channel.IsConnected() {
		return outcome, fmt.Errorf("channel %s for series %s is not connected", channel.Name, series.Name)
	}

	group, err := s.groups.GetByID(series.TenantID, *series.CurrentActiveGroupID)
	if err != nil {
		return outcome, fmt.Errorf("failed to load active group for series %s: %w", series.Name, err)
	}

	// Refresh do snapshot remoto antes de avaliar a capacidade. Falha aqui
	// não bloqueia a verificação: o snapshot local ainda serve de base.
	if info, err := s.gateway.FetchGroupInfo(channel.Session, group.JID); err != nil {
		log.Printf("⚠️ Failed to refresh metadata for group %s (series %s): %v", group.JID, series.Name, err)
	} else {
		applyGroupInfo(group, info, channel)
		now := s.now()
		group.LastSync = &now
		if err := s.groups.Update(group); err != nil {
			log.Printf("⚠️ Failed to persist refreshed metadata for group %s: %v", group.JID, err)
		}
	}

	outcome.Checked = true
	outcome.OldGroupID = &group.ID
	outcome.OldOccupancy = Occupancy(group.ParticipantCount, group.MaxParticipants)

	if !ShouldCreateNext(group.ParticipantCount, group.MaxParticipants, group.ThresholdPercentage) {
		return outcome, nil
	}

	// Um grupo cheio nunca pode continuar aceitando membros, mesmo que a
	// criação do substituto falhe logo adiante. A desativação não é desfeita.
	if IsFull(group.ParticipantCount, group.MaxParticipants) {
		if err := s.retireGroup(group); err != nil {
			return outcome, fmt.Errorf("failed to deactivate full group %s: %w", group.JID, err)
		}
		outcome.Deactivated = true
	}

	newGroup, err := s.createNextGroup(series, channel)
	if err != nil {
		return outcome, err
	}

	if !outcome.Deactivated {
		// Caso near-capacity: o grupo antigo só é aposentado depois que o
		// novo existe, para nunca deixar a série sem destino de entrada.
		// Uma falha aqui interrompe a rotação: a série não pode terminar
		// com dois grupos ativos.
		if err := s.retireGroup(group); err != nil {
			return outcome, fmt.Errorf("failed to deactivate group %s after rotation: %w", group.JID, err)
		}
		outcome.Deactivated = true
	}

	if err := s.activateGroup(series, newGroup); err != nil {
		return outcome, err
	}

	outcome.Created = true
	outcome.NewGroupID = &newGroup.ID
	outcome.NewGroupJID = newGroup.JID
	outcome.NewGroupNumber = newGroup.GroupNumber
	outcome.InviteLink = newGroup.InviteLink()

	s.publisher.Publish(series.TenantID, EventGroupProvisioned, outcome)
	log.Printf("✅ Series %s rotated to group #%d (%s)", series.Name, newGroup.GroupNumber, newGroup.JID)
	return outcome, nil
}

// ForceCreateNextGroup provisions the next group of a series regardless of
// capacity, retiring the currently pointed-to group first
func (s *ProvisioningService) ForceCreateNextGroup(tenantID, seriesID uuid.UUID) (*ProvisionOutcome, error) {
	series, err := s.series.GetByID(tenantID, seriesID)
	if err != nil {
		return nil, fmt.Errorf("series not found: %w", err)
	}

	channel, err := s.channels.GetByID(series.TenantID, series.ChannelID)
	if err != nil {
		return nil, fmt.Errorf("failed to load channel for series %s: %w", series.Name, err)
	}
	if !channel.IsConnected() {
		return nil, fmt.Errorf("channel %s for series %s is not connected", channel.Name, series.Name)
	}

	outcome := &ProvisionOutcome{SeriesID: series.ID, SeriesName: series.Name, Checked: true}

	var oldGroup *models.Group
	if series.CurrentActiveGroupID != nil {
		oldGroup, err = s.groups.GetByID(series.TenantID, *series.CurrentActiveGroupID)
		if err == nil {
			outcome.OldGroupID = &oldGroup.ID
			outcome.OldOccupancy = Occupancy(oldGroup.ParticipantCount, oldGroup.MaxParticipants)
			if err := s.retireGroup(oldGroup); err != nil {
				return outcome, fmt.Errorf("failed to deactivate group %s: %w", oldGroup.JID, err)
			}
			outcome.Deactivated = true
		} else {
			log.Printf("⚠️ Series %s points to missing group %s, proceeding with forced creation", series.Name, series.CurrentActiveGroupID)
		}
	}

	newGroup, err := s.createNextGroup(series, channel)
	if err != nil {
		return outcome, err
	}
	if err := s.activateGroup(series, newGroup); err != nil {
		return outcome, err
	}

	outcome.Created = true
	outcome.NewGroupID = &newGroup.ID
	outcome.NewGroupJID = newGroup.JID
	outcome.NewGroupNumber = newGroup.GroupNumber
	outcome.InviteLink = newGroup.InviteLink()

	s.publisher.Publish(series.TenantID, EventGroupProvisioned, outcome)
	return outcome, nil
}

// createNextGroup creates the remote group and persists its local record.
// If persistence fails after the remote group exists, the remote side is left
// orphaned on purpose: the next sync run adopts it.
func (s *ProvisioningService) createNextGroup(series *models.GroupSeries, channel *models.Channel) (*models.Group, error) {
	name := series.GroupName(series.NextGroupNumber)

	jid, err := s.gateway.CreateGroup(channel.Session, name, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create group %q for series %s: %w", name, series.Name, err)
	}
	log.Printf("📦 Created group %s (#%d) for series %s", jid, series.NextGroupNumber, series.Name)

	if series.Description != "" {
		if err := s.gateway.SetGroupDescription(channel.Session, jid, series.Description); err != nil {
			log.Printf("⚠️ Failed to set description on group %s: %v", jid, err)
		}
	}

	inviteCode := ""
	if code, err := s.gateway.GetInviteCode(channel.Session, jid); err != nil {
		log.Printf("⚠️ Failed to fetch invite code for group %s: %v", jid, err)
	} else {
		inviteCode = code
	}

	now := s.now()
	group := &models.Group{
		ChannelID:           channel.ID,
		JID:                 jid,
		Name:                name,
		Description:         series.Description,
		Participants:        models.GroupParticipantList{},
		AdminIDs:            models.StringList{},
		IsAdmin:             true,
		IsSuperAdmin:        true,
		InviteCode:          inviteCode,
		IsManaged:           true,
		GroupSeries:         series.Name,
		GroupNumber:         series.NextGroupNumber,
		MaxParticipants:     series.MaxParticipants,
		ThresholdPercentage: series.ThresholdPercentage,
		IsActive:            false, // activated only at the pointer flip
		AutoCreateNext:      series.AutoCreateEnabled,
		LastSync:            &now,
		SyncStatus:          models.SyncStatusSynced,
	}
	group.TenantID = series.TenantID

	if info, err := s.gateway.FetchGroupInfo(channel.Session, jid); err != nil {
		log.Printf("⚠️ Failed to fetch metadata for new group %s: %v", jid, err)
	} else {
		applyGroupInfo(group, info, channel)
		group.Name = name // keep the series naming even if the engine echoes something else
	}

	if err := s.groups.Create(group); err != nil {
		return nil, fmt.Errorf("remote group %s created but local persistence failed (next sync will adopt it): %w", jid, err)
	}

	if series.WelcomeMessage != "" {
		if err := s.gateway.SendGroupMessage(channel.Session, jid, series.WelcomeMessage); err != nil {
			log.Printf("⚠️ Failed to send welcome message to group %s: %v", jid, err)
		}
	}

	return group, nil
}

// activateGroup makes the new group the series' single active one and
// advances the group counter atomically
func (s *ProvisioningService) activateGroup(series *models.GroupSeries, group *models.Group) error {
	group.IsActive = true
	if err := s.groups.Update(group); err != nil {
		return fmt.Errorf("failed to activate group %s: %w", group.JID, err)
	}

	if err := s.series.AdvanceActiveGroup(series.ID, series.NextGroupNumber, group.ID); err != nil {
		return fmt.Errorf("failed to advance series %s pointer: %w", series.Name, err)
	}

	// Mantém o objeto em memória coerente para quem continuar usando a série
	id := group.ID
	series.CurrentActiveGroupID = &id
	series.NextGroupNumber++
	return nil
}

// retireGroup flips a group to inactive and notifies dashboards
func (s *ProvisioningService) retireGroup(group *models.Group) error {
	if !group.IsActive {
		return nil
	}
	group.IsActive = false
	if err := s.groups.Update(group); err != nil {
		group.IsActive = true
		return err
	}
	s.publisher.Publish(group.TenantID, EventGroupDeactivated, map[string]interface{}{
		"group_id":     group.ID,
		"jid":          group.JID,
		"group_series": group.GroupSeries,
		"group_number": group.GroupNumber,
		"occupancy":    Occupancy(group.ParticipantCount, group.MaxParticipants),
	})
	return nil
}

// applyGroupInfo copies sanitized gateway metadata onto the local record and
// recomputes the local connection's role
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

	role := localRole(info, channel)
	group.IsAdmin = role == models.RoleAdmin || role == models.RoleSuperAdmin
	group.IsSuperAdmin = role == models.RoleSuperAdmin
}

// localRole finds the channel's own role in the participant list, first by
// exact id then by normalized phone number, since the gateway formats ids
// inconsistently between engines
func localRole(info *zapplus.GroupInfo, channel *models.Channel) string {
	for _, participant := range info.Participants {
		if channel.WhatsAppID != "" && participant.ID == channel.WhatsAppID {
			return participant.Role
		}
	}
	for _, participant := range info.Participants {
		if channel.WhatsAppID != "" && zapplus.SamePhone(participant.ID, channel.WhatsAppID) {
			return participant.Role
		}
		if channel.PhoneNumber != "" && zapplus.SamePhone(participant.ID, channel.PhoneNumber) {
			return participant.Role
		}
	}
	return models.RoleMember
}
