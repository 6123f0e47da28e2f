package services

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"zapfleet/internal/zapplus"
	"zapfleet/pkg/models"

	"github.com/google/uuid"
)

var errConcurrentAdvance = errors.New("series was updated concurrently")

// fakeStore is an in-memory store satisfying GroupStore, SeriesStore and ChannelStore
type fakeStore struct {
	mu       sync.Mutex
	groups   map[uuid.UUID]models.Group
	series   map[uuid.UUID]models.GroupSeries
	channels map[uuid.UUID]models.Channel

	groupCreateErr error
	groupUpdateErr error
	advanceErr     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		groups:   make(map[uuid.UUID]models.Group),
		series:   make(map[uuid.UUID]models.GroupSeries),
		channels: make(map[uuid.UUID]models.Channel),
	}
}

func (s *fakeStore) putGroup(group models.Group) models.Group {
	s.mu.Lock()
	defer s.mu.Unlock()
	if group.ID == uuid.Nil {
		group.ID = uuid.New()
	}
	s.groups[group.ID] = group
	return group
}

func (s *fakeStore) putSeries(series models.GroupSeries) models.GroupSeries {
	s.mu.Lock()
	defer s.mu.Unlock()
	if series.ID == uuid.Nil {
		series.ID = uuid.New()
	}
	s.series[series.ID] = series
	return series
}

func (s *fakeStore) putChannel(channel models.Channel) models.Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	if channel.ID == uuid.Nil {
		channel.ID = uuid.New()
	}
	s.channels[channel.ID] = channel
	return channel
}

func (s *fakeStore) GetByID(tenantID, id uuid.UUID) (*models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	group, ok := s.groups[id]
	if !ok || group.TenantID != tenantID {
		return nil, fmt.Errorf("group %s not found", id)
	}
	copy := group
	return &copy, nil
}

func (s *fakeStore) GetByJID(tenantID uuid.UUID, jid string) (*models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, group := range s.groups {
		if group.TenantID == tenantID && group.JID == jid {
			copy := group
			return &copy, nil
		}
	}
	return nil, fmt.Errorf("group %s not found", jid)
}

func (s *fakeStore) Create(group *models.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.groupCreateErr != nil {
		return s.groupCreateErr
	}
	if group.ID == uuid.Nil {
		group.ID = uuid.New()
	}
	s.groups[group.ID] = *group
	return nil
}

func (s *fakeStore) Update(group *models.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.groupUpdateErr != nil {
		return s.groupUpdateErr
	}
	if _, ok := s.groups[group.ID]; !ok {
		return fmt.Errorf("group %s not found", group.ID)
	}
	s.groups[group.ID] = *group
	return nil
}

func (s *fakeStore) Delete(tenantID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	group, ok := s.groups[id]
	if !ok || group.TenantID != tenantID {
		return fmt.Errorf("group %s not found", id)
	}
	delete(s.groups, id)
	return nil
}

func (s *fakeStore) ListActiveManaged() ([]models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Group
	for _, group := range s.groups {
		if group.IsManaged && group.IsActive {
			out = append(out, group)
		}
	}
	return out, nil
}

func (s *fakeStore) ListManagedByTenant(tenantID uuid.UUID) ([]models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Group
	for _, group := range s.groups {
		if group.TenantID == tenantID && group.IsManaged {
			out = append(out, group)
		}
	}
	return out, nil
}

func (s *fakeStore) ListInactiveManaged(cutoff time.Time, maxParticipants int) ([]models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Group
	for _, group := range s.groups {
		if group.IsManaged && !group.IsActive && group.ParticipantCount <= maxParticipants && group.UpdatedAt.Before(cutoff) {
			out = append(out, group)
		}
	}
	return out, nil
}

func (s *fakeStore) MarkAllSyncing(tenantID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, group := range s.groups {
		if group.TenantID == tenantID {
			group.SyncStatus = models.SyncStatusSyncing
			s.groups[id] = group
		}
	}
	return nil
}

func (s *fakeStore) DeleteStillSyncing(tenantID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for id, group := range s.groups {
		if group.TenantID == tenantID && group.SyncStatus == models.SyncStatusSyncing {
			delete(s.groups, id)
			removed++
		}
	}
	return removed, nil
}

func (s *fakeStore) RevertSyncingToError(tenantID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, group := range s.groups {
		if group.TenantID == tenantID && group.SyncStatus == models.SyncStatusSyncing {
			group.SyncStatus = models.SyncStatusError
			s.groups[id] = group
		}
	}
	return nil
}

func (s *fakeStore) getSeries(tenantID, id uuid.UUID) (*models.GroupSeries, error) {
	series, ok := s.series[id]
	if !ok || series.TenantID != tenantID {
		return nil, fmt.Errorf("series %s not found", id)
	}
	copy := series
	return &copy, nil
}

func (s *fakeStore) ListByTenant(tenantID uuid.UUID) ([]models.GroupSeries, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.GroupSeries
	for _, series := range s.series {
		if series.TenantID == tenantID {
			out = append(out, series)
		}
	}
	return out, nil
}

func (s *fakeStore) ListAutoCreateWithConnectedChannel() ([]models.GroupSeries, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.GroupSeries
	for _, series := range s.series {
		if !series.AutoCreateEnabled {
			continue
		}
		channel, ok := s.channels[series.ChannelID]
		if !ok || !channel.IsConnected() {
			continue
		}
		out = append(out, series)
	}
	return out, nil
}

func (s *fakeStore) AdvanceActiveGroup(seriesID uuid.UUID, expectedNextNumber int, newActiveGroupID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.advanceErr != nil {
		return s.advanceErr
	}
	series, ok := s.series[seriesID]
	if !ok {
		return fmt.Errorf("series %s not found", seriesID)
	}
	if series.NextGroupNumber != expectedNextNumber {
		return errConcurrentAdvance
	}
	id := newActiveGroupID
	series.CurrentActiveGroupID = &id
	series.NextGroupNumber++
	s.series[seriesID] = series
	return nil
}

func (s *fakeStore) ListConnected(tenantID uuid.UUID) ([]models.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Channel
	for _, channel := range s.channels {
		if channel.TenantID == tenantID && channel.IsConnected() {
			out = append(out, channel)
		}
	}
	return out, nil
}

// seriesStoreView exposes the fakeStore through the SeriesStore interface,
// needed because GetByID collides between groups and series
type seriesStoreView struct{ *fakeStore }

func (v seriesStoreView) GetByID(tenantID, id uuid.UUID) (*models.GroupSeries, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.getSeries(tenantID, id)
}

// channelStoreView exposes the fakeStore through the ChannelStore interface
type channelStoreView struct{ *fakeStore }

func (v channelStoreView) GetByID(tenantID, id uuid.UUID) (*models.Channel, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	channel, ok := v.channels[id]
	if !ok || channel.TenantID != tenantID {
		return nil, fmt.Errorf("channel %s not found", id)
	}
	copy := channel
	return &copy, nil
}

// fakeGateway is an in-memory GroupGateway with scriptable failures
type fakeGateway struct {
	mu sync.Mutex

	listings map[string][]zapplus.GroupSummary
	listErr  error

	infos      map[string]*zapplus.GroupInfo
	fetchErrs  map[string][]error // consumed one per call before infos win
	fetchCalls map[string]int

	createErr   error
	createdJIDs []string
	nextJID     int

	inviteCodes  map[string]string
	inviteErr    error
	descriptions map[string]string
	messages     map[string][]string
	deleted      []string
	deleteErr    error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		listings:     make(map[string][]zapplus.GroupSummary),
		infos:        make(map[string]*zapplus.GroupInfo),
		fetchErrs:    make(map[string][]error),
		fetchCalls:   make(map[string]int),
		inviteCodes:  make(map[string]string),
		descriptions: make(map[string]string),
		messages:     make(map[string][]string),
	}
}

func (g *fakeGateway) ListGroups(session string) ([]zapplus.GroupSummary, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.listErr != nil {
		return nil, g.listErr
	}
	return g.listings[session], nil
}

func (g *fakeGateway) FetchGroupInfo(session, groupID string) (*zapplus.GroupInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fetchCalls[groupID]++
	if queue := g.fetchErrs[groupID]; len(queue) > 0 {
		err := queue[0]
		g.fetchErrs[groupID] = queue[1:]
		return nil, err
	}
	if info, ok := g.infos[groupID]; ok {
		copy := *info
		return &copy, nil
	}
	return &zapplus.GroupInfo{
		JID:          groupID,
		Subject:      "Group " + groupID,
		Participants: models.GroupParticipantList{},
		AdminIDs:     models.StringList{},
	}, nil
}

func (g *fakeGateway) CreateGroup(session, name string, participants []string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return "", g.createErr
	}
	g.nextJID++
	jid := fmt.Sprintf("created-%d@g.us", g.nextJID)
	g.createdJIDs = append(g.createdJIDs, jid)
	return jid, nil
}

func (g *fakeGateway) GetInviteCode(session, groupID string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inviteErr != nil {
		return "", g.inviteErr
	}
	if code, ok := g.inviteCodes[groupID]; ok {
		return code, nil
	}
	return "INV" + groupID, nil
}

func (g *fakeGateway) SetGroupDescription(session, groupID, description string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.descriptions[groupID] = description
	return nil
}

func (g *fakeGateway) SendGroupMessage(session, groupID, text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.messages[groupID] = append(g.messages[groupID], text)
	return nil
}

func (g *fakeGateway) DeleteGroup(session, groupID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.deleteErr != nil {
		return g.deleteErr
	}
	g.deleted = append(g.deleted, groupID)
	return nil
}

// fakePublisher records published events
type publishedEvent struct {
	TenantID uuid.UUID
	Event    string
	Data     interface{}
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *fakePublisher) Publish(tenantID uuid.UUID, event string, data interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{TenantID: tenantID, Event: event, Data: data})
}

func (p *fakePublisher) byEvent(event string) []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []publishedEvent
	for _, e := range p.events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}
