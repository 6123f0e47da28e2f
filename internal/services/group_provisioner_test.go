package services

import (
	"fmt"
	"testing"

	"zapfleet/internal/zapplus"
	"zapfleet/pkg/models"

	"github.com/google/uuid"
)

type provisionFixture struct {
	store     *fakeStore
	gateway   *fakeGateway
	publisher *fakePublisher
	svc       *ProvisioningService
	tenantID  uuid.UUID
	channel   models.Channel
	series    models.GroupSeries
	active    models.Group
}

// newProvisionFixture builds a series whose active group #1 holds `count` of 10
// participants with a 90% threshold
func newProvisionFixture(t *testing.T, count int) *provisionFixture {
	t.Helper()
	f := &provisionFixture{
		store:     newFakeStore(),
		gateway:   newFakeGateway(),
		publisher: &fakePublisher{},
		tenantID:  uuid.New(),
	}

	f.channel = f.store.putChannel(models.Channel{
		BaseTenantModel: models.BaseTenantModel{TenantID: f.tenantID},
		Name:            "main",
		Session:         "session-1",
		WhatsAppID:      "5527999990000@c.us",
		Status:          "connected",
		IsActive:        true,
	})

	f.active = f.store.putGroup(models.Group{
		BaseTenantModel:     models.BaseTenantModel{TenantID: f.tenantID},
		ChannelID:           f.channel.ID,
		JID:                 "group-1@g.us",
		Name:                "Audience 1",
		ParticipantCount:    count,
		IsAdmin:             true,
		IsManaged:           true,
		GroupSeries:         "audience",
		GroupNumber:         1,
		MaxParticipants:     10,
		ThresholdPercentage: 90,
		IsActive:            true,
		AutoCreateNext:      true,
	})

	activeID := f.active.ID
	f.series = f.store.putSeries(models.GroupSeries{
		BaseTenantModel:      models.BaseTenantModel{TenantID: f.tenantID},
		Name:                 "audience",
		BaseGroupName:        "Audience",
		ChannelID:            f.channel.ID,
		MaxParticipants:      10,
		ThresholdPercentage:  90,
		AutoCreateEnabled:    true,
		NextGroupNumber:      2,
		CurrentActiveGroupID: &activeID,
		WelcomeMessage:       "Welcome to the group!",
	})

	// Remote metadata mirrors the local participant count so the pre-check
	// refresh does not change the picture
	f.gateway.infos["group-1@g.us"] = groupInfoWithParticipants("group-1@g.us", "Audience 1", count, f.channel.WhatsAppID)

	f.svc = NewProvisioningService(f.store, seriesStoreView{f.store}, channelStoreView{f.store}, f.gateway, f.publisher)
	return f
}

func groupInfoWithParticipants(jid, subject string, count int, adminID string) *zapplus.GroupInfo {
	info := &zapplus.GroupInfo{
		JID:          jid,
		Subject:      subject,
		Participants: models.GroupParticipantList{},
		AdminIDs:     models.StringList{},
	}
	for i := 0; i < count; i++ {
		id := fmt.Sprintf("55119999%04d@c.us", i)
		role := models.RoleMember
		if i == 0 && adminID != "" {
			id = adminID
			role = models.RoleAdmin
			info.AdminIDs = append(info.AdminIDs, id)
		}
		info.Participants = append(info.Participants, models.GroupParticipant{ID: id, Role: role})
	}
	return info
}

func (f *provisionFixture) checkSeries(t *testing.T) (*ProvisionOutcome, error) {
	t.Helper()
	series, err := f.store.getSeries(f.tenantID, f.series.ID)
	if err != nil {
		t.Fatalf("series lookup failed: %v", err)
	}
	return f.svc.CheckSeries(series)
}

func TestCheckSeriesBelowThresholdDoesNothing(t *testing.T) {
	f := newProvisionFixture(t, 5)

	outcome, err := f.checkSeries(t)
	if err != nil {
		t.Fatalf("CheckSeries returned error: %v", err)
	}

	if !outcome.Checked {
		t.Error("series should have been checked")
	}
	if outcome.Created || outcome.Deactivated {
		t.Errorf("no action expected at 50%% occupancy, got created=%v deactivated=%v", outcome.Created, outcome.Deactivated)
	}
	group, _ := f.store.GetByID(f.tenantID, f.active.ID)
	if !group.IsActive {
		t.Error("group below threshold must stay active")
	}
}

func TestCheckSeriesNearCapacityRotates(t *testing.T) {
	f := newProvisionFixture(t, 9) // 90% of 10

	outcome, err := f.checkSeries(t)
	if err != nil {
		t.Fatalf("CheckSeries returned error: %v", err)
	}

	if !outcome.Created || !outcome.Deactivated {
		t.Fatalf("expected rotation, got created=%v deactivated=%v", outcome.Created, outcome.Deactivated)
	}
	if outcome.NewGroupNumber != 2 {
		t.Errorf("expected group #2, got #%d", outcome.NewGroupNumber)
	}
	if outcome.OldOccupancy != 90 {
		t.Errorf("expected old occupancy 90, got %v", outcome.OldOccupancy)
	}

	old, _ := f.store.GetByID(f.tenantID, f.active.ID)
	if old.IsActive {
		t.Error("old group should be retired after rotation")
	}

	created, err := f.store.GetByJID(f.tenantID, outcome.NewGroupJID)
	if err != nil {
		t.Fatal("new group record was not persisted")
	}
	if !created.IsActive || !created.IsManaged {
		t.Errorf("new group should be active and managed, got active=%v managed=%v", created.IsActive, created.IsManaged)
	}
	if created.Name != "Audience 2" || created.GroupNumber != 2 {
		t.Errorf("expected %q #2, got %q #%d", "Audience 2", created.Name, created.GroupNumber)
	}
	if created.MaxParticipants != 10 || created.ThresholdPercentage != 90 {
		t.Errorf("new group must inherit series capacity, got %d/%d%%", created.MaxParticipants, created.ThresholdPercentage)
	}

	series, _ := f.store.getSeries(f.tenantID, f.series.ID)
	if series.CurrentActiveGroupID == nil || *series.CurrentActiveGroupID != created.ID {
		t.Error("series pointer should reference the new group")
	}
	if series.NextGroupNumber != 3 {
		t.Errorf("expected next group number 3, got %d", series.NextGroupNumber)
	}

	if msgs := f.gateway.messages[created.JID]; len(msgs) != 1 || msgs[0] != "Welcome to the group!" {
		t.Errorf("expected welcome message on new group, got %v", msgs)
	}
	if len(f.publisher.byEvent(EventGroupProvisioned)) != 1 {
		t.Error("expected a group-provisioned event")
	}
	if len(f.publisher.byEvent(EventGroupDeactivated)) != 1 {
		t.Error("expected a group-deactivated event")
	}
}

func TestCheckSeriesFullRetiresEvenWhenCreateFails(t *testing.T) {
	f := newProvisionFixture(t, 10) // full
	f.gateway.createErr = fmt.Errorf("%w: status 502", zapplus.ErrUnavailable)

	outcome, err := f.checkSeries(t)
	if err == nil {
		t.Fatal("expected error when group creation fails")
	}

	if !outcome.Deactivated {
		t.Error("a full group must be retired even when its successor cannot be created")
	}
	group, _ := f.store.GetByID(f.tenantID, f.active.ID)
	if group.IsActive {
		t.Error("full group left active after failed rotation")
	}
}

func TestCheckSeriesNearCapacityKeepsOldActiveWhenCreateFails(t *testing.T) {
	f := newProvisionFixture(t, 9) // near capacity, not full
	f.gateway.createErr = fmt.Errorf("%w: status 502", zapplus.ErrUnavailable)

	outcome, err := f.checkSeries(t)
	if err == nil {
		t.Fatal("expected error when group creation fails")
	}

	if outcome.Deactivated {
		t.Error("near-capacity group must not be retired before its successor exists")
	}
	group, _ := f.store.GetByID(f.tenantID, f.active.ID)
	if !group.IsActive {
		t.Error("near-capacity group should stay active when creation fails")
	}
}

func TestCheckSeriesNearCapacityAbortsWhenRetireFails(t *testing.T) {
	f := newProvisionFixture(t, 9) // near capacity, not full
	f.store.groupUpdateErr = fmt.Errorf("write refused")

	_, err := f.checkSeries(t)
	if err == nil {
		t.Fatal("expected error when the old group cannot be retired")
	}

	group, lookupErr := f.store.GetByID(f.tenantID, f.active.ID)
	if lookupErr != nil {
		t.Fatalf("group lookup failed: %v", lookupErr)
	}
	if !group.IsActive {
		t.Error("old group must stay active when its retirement fails")
	}

	series, lookupErr := f.store.getSeries(f.tenantID, f.series.ID)
	if lookupErr != nil {
		t.Fatalf("series lookup failed: %v", lookupErr)
	}
	if series.NextGroupNumber != 2 {
		t.Errorf("series pointer must not advance, got next number %d", series.NextGroupNumber)
	}
	if series.CurrentActiveGroupID == nil || *series.CurrentActiveGroupID != f.active.ID {
		t.Error("series must keep pointing at the old group")
	}

	// The replacement was created but never activated: the series may not
	// settle with two active groups.
	groups, lookupErr := f.store.ListManagedByTenant(f.tenantID)
	if lookupErr != nil {
		t.Fatalf("group listing failed: %v", lookupErr)
	}
	activeCount := 0
	for _, g := range groups {
		if g.IsActive {
			activeCount++
		}
	}
	if activeCount != 1 {
		t.Errorf("expected exactly 1 active group, got %d", activeCount)
	}
}

func TestCheckSeriesWithoutActiveGroupFails(t *testing.T) {
	f := newProvisionFixture(t, 5)
	series, _ := f.store.getSeries(f.tenantID, f.series.ID)
	series.CurrentActiveGroupID = nil

	if _, err := f.svc.CheckSeries(series); err == nil {
		t.Fatal("expected error for series without an active group")
	}
}

func TestCheckSeriesDisconnectedChannelFails(t *testing.T) {
	f := newProvisionFixture(t, 9)
	f.channel.Status = "disconnected"
	f.store.putChannel(f.channel)

	if _, err := f.checkSeries(t); err == nil {
		t.Fatal("expected error when the series channel is disconnected")
	}
	group, _ := f.store.GetByID(f.tenantID, f.active.ID)
	if !group.IsActive {
		t.Error("group must stay untouched when the channel is unavailable")
	}
}

func TestCheckSeriesRefreshesMetadataBeforeDeciding(t *testing.T) {
	// Local snapshot says 9/10 but the remote truth is 5/10: no rotation
	f := newProvisionFixture(t, 9)
	f.gateway.infos["group-1@g.us"] = groupInfoWithParticipants("group-1@g.us", "Audience 1", 5, f.channel.WhatsAppID)

	outcome, err := f.checkSeries(t)
	if err != nil {
		t.Fatalf("CheckSeries returned error: %v", err)
	}
	if outcome.Created {
		t.Error("stale local count must not trigger a rotation after refresh")
	}
	group, _ := f.store.GetByID(f.tenantID, f.active.ID)
	if group.ParticipantCount != 5 {
		t.Errorf("expected refreshed participant count 5, got %d", group.ParticipantCount)
	}
}

func TestCheckSeriesConcurrentPointerAdvanceFails(t *testing.T) {
	f := newProvisionFixture(t, 9)
	f.store.advanceErr = errConcurrentAdvance

	if _, err := f.checkSeries(t); err == nil {
		t.Fatal("expected error when the series pointer was advanced concurrently")
	}
}

func TestForceCreateNextGroupRetiresCurrent(t *testing.T) {
	f := newProvisionFixture(t, 2) // far from capacity

	outcome, err := f.svc.ForceCreateNextGroup(f.tenantID, f.series.ID)
	if err != nil {
		t.Fatalf("ForceCreateNextGroup returned error: %v", err)
	}

	if !outcome.Created || !outcome.Deactivated {
		t.Fatalf("expected forced rotation, got created=%v deactivated=%v", outcome.Created, outcome.Deactivated)
	}
	old, _ := f.store.GetByID(f.tenantID, f.active.ID)
	if old.IsActive {
		t.Error("current group should be retired by a forced rotation")
	}
}

func TestForceCreateProvisionsFirstGroup(t *testing.T) {
	f := newProvisionFixture(t, 5)
	fresh := f.store.putSeries(models.GroupSeries{
		BaseTenantModel:     models.BaseTenantModel{TenantID: f.tenantID},
		Name:                "fresh",
		BaseGroupName:       "Fresh",
		ChannelID:           f.channel.ID,
		MaxParticipants:     1024,
		ThresholdPercentage: 95,
		AutoCreateEnabled:   true,
		NextGroupNumber:     1,
	})

	outcome, err := f.svc.ForceCreateNextGroup(f.tenantID, fresh.ID)
	if err != nil {
		t.Fatalf("ForceCreateNextGroup returned error: %v", err)
	}

	if !outcome.Created || outcome.Deactivated {
		t.Fatalf("expected first group without a retirement, got created=%v deactivated=%v", outcome.Created, outcome.Deactivated)
	}
	if outcome.NewGroupNumber != 1 {
		t.Errorf("expected group #1 for a fresh series, got #%d", outcome.NewGroupNumber)
	}
	series, _ := f.store.getSeries(f.tenantID, fresh.ID)
	if series.NextGroupNumber != 2 {
		t.Errorf("expected next group number 2, got %d", series.NextGroupNumber)
	}
}

func TestRotationNumbersAreMonotonic(t *testing.T) {
	f := newProvisionFixture(t, 10)

	first, err := f.checkSeries(t)
	if err != nil {
		t.Fatalf("first rotation failed: %v", err)
	}

	// Fill the new group so the next pass rotates again
	f.gateway.infos[first.NewGroupJID] = groupInfoWithParticipants(first.NewGroupJID, "Audience 2", 10, f.channel.WhatsAppID)
	second, err := f.checkSeries(t)
	if err != nil {
		t.Fatalf("second rotation failed: %v", err)
	}

	if first.NewGroupNumber != 2 || second.NewGroupNumber != 3 {
		t.Errorf("expected group numbers 2 then 3, got %d then %d", first.NewGroupNumber, second.NewGroupNumber)
	}
	if first.NewGroupJID == second.NewGroupJID {
		t.Error("each rotation must create a distinct group")
	}
}
