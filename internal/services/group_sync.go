package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"zapfleet/internal/zapplus"
	"zapfleet/pkg/models"

	"github.com/google/uuid"
)

// Sync tunables. Batching and the inter-batch pause are deliberate
// backpressure against the gateway's rate limit, not incidental waits.
const (
	defaultSyncBatchSize        = 5
	defaultSyncBatchPause       = 1 * time.Second
	defaultSyncMaxRetries       = 3
	defaultSyncRetryDelay       = 2 * time.Second
	defaultSyncRateLimitBackoff = 10 * time.Second
)

// SyncError records a single group that could not be reconciled
type SyncError struct {
	JID     string `json:"jid"`
	Message string `json:"message"`
}

// SyncResult summarizes one reconciliation run
type SyncResult struct {
	TotalGroups       int         `json:"total_groups"`
	NewGroups         int         `json:"new_groups"`
	UpdatedGroups     int         `json:"updated_groups"`
	RemovedGroups     int         `json:"removed_groups"`
	AdminGroups       int         `json:"admin_groups"`
	ParticipantGroups int         `json:"participant_groups"`
	ConnectionsUsed   int         `json:"connections_used"`
	Errors            []SyncError `json:"errors"`
	StartedAt         time.Time   `json:"started_at"`
	FinishedAt        time.Time   `json:"finished_at"`
}

// SyncService reconciles the local group records of a tenant against the
// gateway's authoritative view, tolerating its rate limits and transient
// failures. Per-group failures degrade to entries in the result; only
// resource-acquisition failures abort the run.
type SyncService struct {
	groups    GroupStore
	channels  ChannelStore
	gateway   GroupGateway
	publisher EventPublisher

	batchSize        int
	batchPause       time.Duration
	maxRetries       int
	retryDelay       time.Duration
	rateLimitBackoff time.Duration

	now   func() time.Time
	sleep func(time.Duration)
}

// NewSyncService creates a new sync service with the default tunables
func NewSyncService(groups GroupStore, channels ChannelStore, gateway GroupGateway, publisher EventPublisher) *SyncService {
	return &SyncService{
		groups:           groups,
		channels:         channels,
		gateway:          gateway,
		publisher:        publisher,
		batchSize:        defaultSyncBatchSize,
		batchPause:       defaultSyncBatchPause,
		maxRetries:       defaultSyncMaxRetries,
		retryDelay:       defaultSyncRetryDelay,
		rateLimitBackoff: defaultSyncRateLimitBackoff,
		now:              time.Now,
		sleep:            time.Sleep,
	}
}

// Sync reconciles every group of the tenant across all of its connected
// channels. Groups no longer observed remotely are removed locally; groups
// observed but unknown locally are created.
func (s *SyncService) Sync(tenantID uuid.UUID) (*SyncResult, error) {
	channels, err := s.channels.ListConnected(tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}
	if len(channels) == 0 {
		return nil, fmt.Errorf("no connected channel available for sync")
	}

	if err := s.groups.MarkAllSyncing(tenantID); err != nil {
		return nil, fmt.Errorf("failed to mark groups for reconciliation: %w", err)
	}

	result := &SyncResult{Errors: []SyncError{}, StartedAt: s.now()}
	log.Printf("🔄 Starting group sync for tenant %s (%d channels)", tenantID, len(channels))

	for _, channel := range channels {
		summaries, err := s.gateway.ListGroups(channel.Session)
		if err != nil {
			// Sem a listagem completa não dá para distinguir grupos
			// abandonados de grupos não observados: aborta e reverte.
			return s.fail(tenantID, fmt.Errorf("failed to list groups for channel %s: %w", channel.Name, err))
		}
		result.ConnectionsUsed++

		if err := s.syncChannelGroups(tenantID, &channel, summaries, result); err != nil {
			return s.fail(tenantID, err)
		}
	}

	removed, err := s.groups.DeleteStillSyncing(tenantID)
	if err != nil {
		return s.fail(tenantID, fmt.Errorf("failed to remove departed groups: %w", err))
	}
	result.RemovedGroups = int(removed)
	result.FinishedAt = s.now()

	s.publisher.Publish(tenantID, EventSyncComplete, result)
	log.Printf("✅ Group sync finished for tenant %s: %d total, %d new, %d updated, %d removed, %d errors",
		tenantID, result.TotalGroups, result.NewGroups, result.UpdatedGroups, result.RemovedGroups, len(result.Errors))
	return result, nil
}

// fail reverts interrupted rows to error status so they are neither deleted
// nor mistaken for reconciled ones, then propagates the failure
func (s *SyncService) fail(tenantID uuid.UUID, err error) (*SyncResult, error) {
	if revertErr := s.groups.RevertSyncingToError(tenantID); revertErr != nil {
		log.Printf("❌ Failed to revert syncing groups for tenant %s: %v", tenantID, revertErr)
	}
	return nil, err
}

// syncChannelGroups processes one channel's remote groups in fixed-size
// batches with an inter-batch pause
func (s *SyncService) syncChannelGroups(tenantID uuid.UUID, channel *models.Channel, summaries []zapplus.GroupSummary, result *SyncResult) error {
	total := len(summaries)
	for start := 0; start < total; start += s.batchSize {
		if start > 0 {
			s.sleep(s.batchPause)
		}
		end := start + s.batchSize
		if end > total {
			end = total
		}

		for _, summary := range summaries[start:end] {
			s.syncRemoteGroup(tenantID, channel, summary, result)
		}

		s.publisher.Publish(tenantID, EventSyncProgress, map[string]interface{}{
			"channel":   channel.Name,
			"processed": end,
			"total":     total,
		})
	}
	return nil
}

// syncRemoteGroup upserts one remote group into the local store. Failures
// are recorded on the result and never abort the run.
func (s *SyncService) syncRemoteGroup(tenantID uuid.UUID, channel *models.Channel, summary zapplus.GroupSummary, result *SyncResult) {
	result.TotalGroups++

	info, err := s.fetchInfoWithRetry(channel.Session, summary.ID)
	if err != nil {
		result.Errors = append(result.Errors, SyncError{JID: summary.ID, Message: err.Error()})
		// Se o grupo existe localmente, marca como erro para que não seja
		// deletado na etapa de reconciliação deste run.
		if existing, lookupErr := s.groups.GetByJID(tenantID, summary.ID); lookupErr == nil {
			existing.SyncStatus = models.SyncStatusError
			if updateErr := s.groups.Update(existing); updateErr != nil {
				log.Printf("⚠️ Failed to flag group %s as errored: %v", summary.ID, updateErr)
			}
		}
		return
	}

	group, err := s.groups.GetByJID(tenantID, summary.ID)
	isNew := false
	if err != nil {
		group = &models.Group{
			ChannelID:    channel.ID,
			JID:          summary.ID,
			Name:         summary.Name,
			Participants: models.GroupParticipantList{},
			AdminIDs:     models.StringList{},
		}
		group.TenantID = tenantID
		isNew = true
	}

	applyGroupInfo(group, info, channel)
	if group.Name == "" {
		group.Name = summary.Name
	}

	if group.IsAdmin {
		result.AdminGroups++
		// Código de convite só é emitido por admins; pedir sem permissão é
		// falha garantida e gasta uma chamada rate-limited.
		if code, err := s.gateway.GetInviteCode(channel.Session, group.JID); err != nil {
			log.Printf("⚠️ Failed to fetch invite code for group %s: %v", group.JID, err)
		} else {
			group.InviteCode = code
		}
	} else {
		result.ParticipantGroups++
	}

	now := s.now()
	group.LastSync = &now
	group.SyncStatus = models.SyncStatusSynced

	if isNew {
		if err := s.groups.Create(group); err != nil {
			result.Errors = append(result.Errors, SyncError{JID: group.JID, Message: fmt.Sprintf("failed to create local record: %v", err)})
			return
		}
		result.NewGroups++
	} else {
		if err := s.groups.Update(group); err != nil {
			result.Errors = append(result.Errors, SyncError{JID: group.JID, Message: fmt.Sprintf("failed to update local record: %v", err)})
			return
		}
		result.UpdatedGroups++
	}
}

// fetchInfoWithRetry fetches group metadata with bounded retry: delays grow
// linearly with the attempt number, plus a larger backoff when the gateway
// signals rate-exceeded. Permanent failures are not retried.
func (s *SyncService) fetchInfoWithRetry(session, groupID string) (*zapplus.GroupInfo, error) {
	var lastErr error
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		info, err := s.gateway.FetchGroupInfo(session, groupID)
		if err == nil {
			return info, nil
		}
		lastErr = err

		if !zapplus.IsTransient(err) {
			return nil, err
		}
		if errors.Is(err, zapplus.ErrRateLimited) {
			s.sleep(s.rateLimitBackoff)
		}
		if attempt < s.maxRetries {
			s.sleep(time.Duration(attempt) * s.retryDelay)
		}
	}
	return nil, fmt.Errorf("metadata fetch failed after %d attempts: %w", s.maxRetries, lastErr)
}
