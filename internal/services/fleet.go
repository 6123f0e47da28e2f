package services

import (
	"time"

	"zapfleet/internal/zapplus"
	"zapfleet/pkg/models"

	"github.com/google/uuid"
)

// Event names pushed to dashboards over the websocket hub
const (
	EventGroupProvisioned  = "group-provisioned"
	EventGroupDeactivated  = "group-deactivated"
	EventSyncProgress      = "sync-progress"
	EventSyncComplete      = "sync-complete"
	EventMonitoringSummary = "monitoring-summary"
)

// EventPublisher pushes fleet events to connected dashboards.
// Fire-and-forget: implementations must never block or fail the caller.
type EventPublisher interface {
	Publish(tenantID uuid.UUID, event string, data interface{})
}

// GroupGateway is the slice of the ZapPlus client the fleet engines depend on.
// *zapplus.Client satisfies it.
type GroupGateway interface {
	ListGroups(session string) ([]zapplus.GroupSummary, error)
	FetchGroupInfo(session, groupID string) (*zapplus.GroupInfo, error)
	CreateGroup(session, name string, participants []string) (string, error)
	GetInviteCode(session, groupID string) (string, error)
	SetGroupDescription(session, groupID, description string) error
	SendGroupMessage(session, groupID, text string) error
	DeleteGroup(session, groupID string) error
}

// GroupStore is the group side of the fleet store. *repo.GroupRepository satisfies it.
type GroupStore interface {
	GetByID(tenantID, id uuid.UUID) (*models.Group, error)
	GetByJID(tenantID uuid.UUID, jid string) (*models.Group, error)
	Create(group *models.Group) error
	Update(group *models.Group) error
	Delete(tenantID, id uuid.UUID) error
	ListActiveManaged() ([]models.Group, error)
	ListManagedByTenant(tenantID uuid.UUID) ([]models.Group, error)
	ListInactiveManaged(cutoff time.Time, maxParticipants int) ([]models.Group, error)
	MarkAllSyncing(tenantID uuid.UUID) error
	DeleteStillSyncing(tenantID uuid.UUID) (int64, error)
	RevertSyncingToError(tenantID uuid.UUID) error
}

// SeriesStore is the series side of the fleet store. *repo.GroupSeriesRepository satisfies it.
type SeriesStore interface {
	GetByID(tenantID, id uuid.UUID) (*models.GroupSeries, error)
	ListByTenant(tenantID uuid.UUID) ([]models.GroupSeries, error)
	ListAutoCreateWithConnectedChannel() ([]models.GroupSeries, error)
	AdvanceActiveGroup(seriesID uuid.UUID, expectedNextNumber int, newActiveGroupID uuid.UUID) error
}

// ChannelStore resolves the messaging connections groups are reached through.
// *repo.ChannelRepository satisfies it.
type ChannelStore interface {
	GetByID(tenantID, id uuid.UUID) (*models.Channel, error)
	ListConnected(tenantID uuid.UUID) ([]models.Channel, error)
}
