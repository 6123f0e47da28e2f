package services

import (
	"testing"
	"time"

	"zapfleet/pkg/models"

	"github.com/google/uuid"
)

func newMonitorFixture(t *testing.T, count int) (*provisionFixture, *GroupMonitorService) {
	t.Helper()
	f := newProvisionFixture(t, count)
	monitor := NewGroupMonitorService(f.store, seriesStoreView{f.store}, channelStoreView{f.store}, f.gateway, f.svc, f.publisher)
	return f, monitor
}

func TestRunNowRotatesEligibleSeries(t *testing.T) {
	f, monitor := newMonitorFixture(t, 9)

	stats, err := monitor.RunNow()
	if err != nil {
		t.Fatalf("RunNow returned error: %v", err)
	}

	if stats.SeriesChecked != 1 {
		t.Errorf("expected 1 series checked, got %d", stats.SeriesChecked)
	}
	if stats.GroupsCreated != 1 || stats.GroupsDeactivated != 1 {
		t.Errorf("expected 1 created / 1 deactivated, got %d / %d", stats.GroupsCreated, stats.GroupsDeactivated)
	}
	if len(stats.Errors) != 0 {
		t.Errorf("expected no errors, got %v", stats.Errors)
	}

	summaries := f.publisher.byEvent(EventMonitoringSummary)
	if len(summaries) != 1 {
		t.Fatalf("expected 1 monitoring summary, got %d", len(summaries))
	}
	if summaries[0].TenantID != f.tenantID {
		t.Error("monitoring summary published to the wrong tenant")
	}
}

func TestRunNowSkipsDisabledSeries(t *testing.T) {
	f, monitor := newMonitorFixture(t, 9)
	series, _ := f.store.getSeries(f.tenantID, f.series.ID)
	series.AutoCreateEnabled = false
	f.store.putSeries(*series)

	stats, err := monitor.RunNow()
	if err != nil {
		t.Fatalf("RunNow returned error: %v", err)
	}
	if stats.SeriesChecked != 0 {
		t.Errorf("disabled series must not be checked, got %d", stats.SeriesChecked)
	}
	group, _ := f.store.GetByID(f.tenantID, f.active.ID)
	if !group.IsActive {
		t.Error("group of a disabled series must stay active")
	}
}

func TestRunNowRefusesOverlappingRuns(t *testing.T) {
	_, monitor := newMonitorFixture(t, 5)

	// Simulate a pass still in progress
	if !monitor.runMu.TryLock() {
		t.Fatal("could not take the single-flight lock")
	}
	defer monitor.runMu.Unlock()

	if _, err := monitor.RunNow(); err == nil {
		t.Fatal("expected RunNow to refuse while a run is in progress")
	}
}

func TestScheduledTickIsSkippedWhileRunning(t *testing.T) {
	f, monitor := newMonitorFixture(t, 9)

	monitor.runMu.Lock()
	monitor.runScheduled() // must return without blocking or acting
	monitor.runMu.Unlock()

	group, _ := f.store.GetByID(f.tenantID, f.active.ID)
	if !group.IsActive {
		t.Error("skipped tick must not touch any group")
	}
}

func TestSweepDeactivatesFullGroupsOutsideSeries(t *testing.T) {
	f, monitor := newMonitorFixture(t, 5)

	// A managed full group not reachable through any series pass
	orphan := f.store.putGroup(models.Group{
		BaseTenantModel:     models.BaseTenantModel{TenantID: f.tenantID},
		ChannelID:           f.channel.ID,
		JID:                 "orphan@g.us",
		Name:                "Orphan",
		ParticipantCount:    10,
		IsManaged:           true,
		GroupSeries:         "legacy",
		GroupNumber:         7,
		MaxParticipants:     10,
		ThresholdPercentage: 90,
		IsActive:            true,
	})

	stats, err := monitor.RunNow()
	if err != nil {
		t.Fatalf("RunNow returned error: %v", err)
	}

	if stats.GroupsDeactivated != 1 {
		t.Errorf("expected sweep to deactivate 1 group, got %d", stats.GroupsDeactivated)
	}
	group, _ := f.store.GetByID(f.tenantID, orphan.ID)
	if group.IsActive {
		t.Error("full group should have been deactivated by the sweep")
	}
	if len(f.publisher.byEvent(EventGroupDeactivated)) != 1 {
		t.Error("expected a group-deactivated event from the sweep")
	}
}

func TestCheckSeriesNowUnknownSeries(t *testing.T) {
	f, monitor := newMonitorFixture(t, 5)

	if _, err := monitor.CheckSeriesNow(f.tenantID, uuid.New()); err == nil {
		t.Fatal("expected error for an unknown series")
	}
}

func TestDiagnosticReport(t *testing.T) {
	f, monitor := newMonitorFixture(t, 5)

	// A full group left active and a series whose pointer is gone
	f.store.putGroup(models.Group{
		BaseTenantModel:  models.BaseTenantModel{TenantID: f.tenantID},
		ChannelID:        f.channel.ID,
		JID:              "full@g.us",
		Name:             "Full",
		ParticipantCount: 10,
		IsManaged:        true,
		GroupSeries:      "audience",
		GroupNumber:      2,
		MaxParticipants:  10,
		IsActive:         true,
	})
	f.store.putSeries(models.GroupSeries{
		BaseTenantModel:   models.BaseTenantModel{TenantID: f.tenantID},
		Name:              "headless",
		BaseGroupName:     "Headless",
		ChannelID:         f.channel.ID,
		MaxParticipants:   10,
		AutoCreateEnabled: true,
		NextGroupNumber:   1,
	})

	report, err := monitor.DiagnosticReport(f.tenantID)
	if err != nil {
		t.Fatalf("DiagnosticReport returned error: %v", err)
	}

	if report.TotalManagedGroups != 2 {
		t.Errorf("expected 2 managed groups, got %d", report.TotalManagedGroups)
	}
	if report.FullButActive != 1 {
		t.Errorf("expected 1 full-but-active group, got %d", report.FullButActive)
	}
	if report.SeriesWithoutActive != 1 {
		t.Errorf("expected 1 series without an active group, got %d", report.SeriesWithoutActive)
	}
	if len(report.Series) != 2 {
		t.Errorf("expected 2 series entries, got %d", len(report.Series))
	}
}

func TestCleanupInactiveGroups(t *testing.T) {
	f, monitor := newMonitorFixture(t, 5)
	now := time.Now()
	monitor.now = func() time.Time { return now }

	old := now.Add(-60 * 24 * time.Hour)
	stale := f.store.putGroup(models.Group{
		BaseTenantModel: models.BaseTenantModel{TenantID: f.tenantID, UpdatedAt: old},
		ChannelID:        f.channel.ID,
		JID:              "stale@g.us",
		Name:             "Stale",
		ParticipantCount: 2,
		IsManaged:        true,
		GroupSeries:      "audience",
		IsActive:         false,
	})
	// Inactive but still populated: must survive
	crowded := f.store.putGroup(models.Group{
		BaseTenantModel: models.BaseTenantModel{TenantID: f.tenantID, UpdatedAt: old},
		ChannelID:        f.channel.ID,
		JID:              "crowded@g.us",
		Name:             "Crowded",
		ParticipantCount: 200,
		IsManaged:        true,
		GroupSeries:      "audience",
		IsActive:         false,
	})

	result, err := monitor.CleanupInactiveGroups(0, 0) // defaults
	if err != nil {
		t.Fatalf("CleanupInactiveGroups returned error: %v", err)
	}

	if result.Examined != 1 || result.Removed != 1 {
		t.Errorf("expected 1 examined / 1 removed, got %d / %d", result.Examined, result.Removed)
	}
	if _, err := f.store.GetByID(f.tenantID, stale.ID); err == nil {
		t.Error("stale group should have been removed")
	}
	if _, err := f.store.GetByID(f.tenantID, crowded.ID); err != nil {
		t.Error("populated group must survive the cleanup")
	}
	if len(f.gateway.deleted) != 1 || f.gateway.deleted[0] != "stale@g.us" {
		t.Errorf("expected remote deletion of stale@g.us, got %v", f.gateway.deleted)
	}
}

func TestCleanupRemovesLocalRecordWhenRemoteDeleteFails(t *testing.T) {
	f, monitor := newMonitorFixture(t, 5)
	now := time.Now()
	monitor.now = func() time.Time { return now }
	f.gateway.deleteErr = errConcurrentAdvance // any error: remote deletion is best effort

	stale := f.store.putGroup(models.Group{
		BaseTenantModel: models.BaseTenantModel{TenantID: f.tenantID, UpdatedAt: now.Add(-60 * 24 * time.Hour)},
		ChannelID:        f.channel.ID,
		JID:              "stale@g.us",
		ParticipantCount: 1,
		IsManaged:        true,
		IsActive:         false,
	})

	result, err := monitor.CleanupInactiveGroups(0, 0)
	if err != nil {
		t.Fatalf("CleanupInactiveGroups returned error: %v", err)
	}

	if result.Removed != 1 {
		t.Errorf("local record must be removed even when the remote delete fails, got %d removed", result.Removed)
	}
	if _, err := f.store.GetByID(f.tenantID, stale.ID); err == nil {
		t.Error("stale group should have been removed locally")
	}
}
