package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"zapfleet/pkg/models"

	"github.com/google/uuid"
)

// Cleanup defaults: removal is destructive, so both thresholds are conservative
const (
	defaultMonitorInterval   = 5 * time.Minute
	defaultCleanupAge        = 30 * 24 * time.Hour
	defaultCleanupMaxMembers = 5
)

// MonitorRunStats aggregates one monitoring pass
type MonitorRunStats struct {
	StartedAt         time.Time `json:"started_at"`
	FinishedAt        time.Time `json:"finished_at"`
	SeriesChecked     int       `json:"series_checked"`
	GroupsCreated     int       `json:"groups_created"`
	GroupsDeactivated int       `json:"groups_deactivated"`
	Errors            []string  `json:"errors"`
}

// GroupMonitorService drives the periodic capacity check over every managed
// series. A single-flight guard skips ticks that fire while a run is still in
// progress: overlapping runs would race on the series' active-group pointer.
type GroupMonitorService struct {
	groups      GroupStore
	series      SeriesStore
	channels    ChannelStore
	gateway     GroupGateway
	provisioner *ProvisioningService
	publisher   EventPublisher

	checkInterval time.Duration
	now           func() time.Time

	mutex     sync.RWMutex
	isRunning bool
	stopChan  chan struct{}
	runMu     sync.Mutex // single-flight guard for monitoring passes
}

// NewGroupMonitorService creates a new group monitor service.
// GROUP_MONITOR_INTERVAL accepts a Go duration string to override the default.
func NewGroupMonitorService(groups GroupStore, series SeriesStore, channels ChannelStore, gateway GroupGateway, provisioner *ProvisioningService, publisher EventPublisher) *GroupMonitorService {
	interval := defaultMonitorInterval
	if raw := os.Getenv("GROUP_MONITOR_INTERVAL"); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil && parsed > 0 {
			interval = parsed
		}
	}

	return &GroupMonitorService{
		groups:        groups,
		series:        series,
		channels:      channels,
		gateway:       gateway,
		provisioner:   provisioner,
		publisher:     publisher,
		checkInterval: interval,
		now:           time.Now,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the monitoring process
func (m *GroupMonitorService) Start(ctx context.Context) {
	m.mutex.Lock()
	if m.isRunning {
		m.mutex.Unlock()
		return
	}
	m.isRunning = true
	m.mutex.Unlock()

	log.Printf("📡 Iniciando monitoramento de séries de grupos (intervalo %s)...", m.checkInterval)

	go func() {
		ticker := time.NewTicker(m.checkInterval)
		defer ticker.Stop()

		// Executa primeira verificação imediatamente
		m.runScheduled()

		for {
			select {
			case <-ticker.C:
				m.runScheduled()
			case <-m.stopChan:
				log.Println("📡 Parando monitoramento de séries...")
				return
			case <-ctx.Done():
				log.Println("📡 Contexto cancelado, parando monitoramento...")
				return
			}
		}
	}()
}

// Stop stops the monitoring process
func (m *GroupMonitorService) Stop() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if !m.isRunning {
		return
	}
	m.isRunning = false
	close(m.stopChan)
}

// runScheduled is the ticker entry point: busy runs are skipped, not queued
func (m *GroupMonitorService) runScheduled() {
	if !m.runMu.TryLock() {
		log.Println("⏭️ Monitoramento ainda em andamento, tick ignorado")
		return
	}
	defer m.runMu.Unlock()
	m.runOnce()
}

// RunNow triggers a single monitoring pass on demand
func (m *GroupMonitorService) RunNow() (*MonitorRunStats, error) {
	if !m.runMu.TryLock() {
		return nil, fmt.Errorf("a monitoring run is already in progress")
	}
	defer m.runMu.Unlock()
	return m.runOnce(), nil
}

// runOnce checks every eligible series, then sweeps for over-capacity groups
// the per-series pass may have missed. Callers must hold runMu.
func (m *GroupMonitorService) runOnce() *MonitorRunStats {
	stats := &MonitorRunStats{StartedAt: m.now(), Errors: []string{}}
	perTenant := make(map[uuid.UUID]*MonitorRunStats)
	tenantStats := func(tenantID uuid.UUID) *MonitorRunStats {
		if _, ok := perTenant[tenantID]; !ok {
			perTenant[tenantID] = &MonitorRunStats{StartedAt: stats.StartedAt, Errors: []string{}}
		}
		return perTenant[tenantID]
	}

	seriesList, err := m.series.ListAutoCreateWithConnectedChannel()
	if err != nil {
		log.Printf("❌ Erro ao buscar séries monitoráveis: %v", err)
		stats.Errors = append(stats.Errors, fmt.Sprintf("failed to list series: %v", err))
		stats.FinishedAt = m.now()
		return stats
	}

	for i := range seriesList {
		series := &seriesList[i]
		stats.SeriesChecked++
		ts := tenantStats(series.TenantID)
		ts.SeriesChecked++

		outcome, err := m.provisioner.CheckSeries(series)
		if err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("series %s: %v", series.Name, err))
			ts.Errors = append(ts.Errors, fmt.Sprintf("series %s: %v", series.Name, err))
			continue
		}
		if outcome.Created {
			stats.GroupsCreated++
			ts.GroupsCreated++
		}
		if outcome.Deactivated {
			stats.GroupsDeactivated++
			ts.GroupsDeactivated++
		}
	}

	m.sweepFullGroups(stats, tenantStats)

	stats.FinishedAt = m.now()
	for tenantID, ts := range perTenant {
		ts.FinishedAt = stats.FinishedAt
		m.publisher.Publish(tenantID, EventMonitoringSummary, ts)
	}

	if stats.GroupsCreated > 0 || stats.GroupsDeactivated > 0 || len(stats.Errors) > 0 {
		log.Printf("📊 Monitoramento: %d séries, %d grupos criados, %d desativados, %d erros",
			stats.SeriesChecked, stats.GroupsCreated, stats.GroupsDeactivated, len(stats.Errors))
	}
	return stats
}

// sweepFullGroups deactivates any active managed group that is full but was
// missed by the per-series pass
func (m *GroupMonitorService) sweepFullGroups(stats *MonitorRunStats, tenantStats func(uuid.UUID) *MonitorRunStats) {
	groups, err := m.groups.ListActiveManaged()
	if err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("failed to list active groups: %v", err))
		return
	}

	for i := range groups {
		group := &groups[i]
		if !IsFull(group.ParticipantCount, group.MaxParticipants) {
			continue
		}
		group.IsActive = false
		if err := m.groups.Update(group); err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("failed to deactivate full group %s: %v", group.JID, err))
			continue
		}
		log.Printf("🛑 Grupo cheio desativado pela varredura: %s (%d/%d)", group.JID, group.ParticipantCount, group.MaxParticipants)
		stats.GroupsDeactivated++
		tenantStats(group.TenantID).GroupsDeactivated++
		m.publisher.Publish(group.TenantID, EventGroupDeactivated, map[string]interface{}{
			"group_id":     group.ID,
			"jid":          group.JID,
			"group_series": group.GroupSeries,
			"group_number": group.GroupNumber,
			"occupancy":    Occupancy(group.ParticipantCount, group.MaxParticipants),
		})
	}
}

// CheckSeriesNow runs the capacity check for a single series on demand
func (m *GroupMonitorService) CheckSeriesNow(tenantID, seriesID uuid.UUID) (*ProvisionOutcome, error) {
	series, err := m.series.GetByID(tenantID, seriesID)
	if err != nil {
		return nil, fmt.Errorf("series not found: %w", err)
	}
	return m.provisioner.CheckSeries(series)
}

// SeriesDiagnostic is one series' consistency snapshot in the fleet report
type SeriesDiagnostic struct {
	SeriesID         uuid.UUID `json:"series_id"`
	SeriesName       string    `json:"series_name"`
	GroupCount       int       `json:"group_count"`
	ActiveGroupCount int       `json:"active_group_count"`
	AverageOccupancy float64   `json:"average_occupancy"`
	MissingActive    bool      `json:"missing_active"`
}

// FleetDiagnosticReport aggregates consistency checks over a tenant's fleet.
// It reports, it does not act.
type FleetDiagnosticReport struct {
	GeneratedAt         time.Time          `json:"generated_at"`
	TotalManagedGroups  int                `json:"total_managed_groups"`
	ActiveManagedGroups int                `json:"active_managed_groups"`
	AverageOccupancy    float64            `json:"average_occupancy"`
	FullButActive       int                `json:"full_but_active"`
	RetiredPrematurely  int                `json:"retired_prematurely"`
	SeriesWithoutActive int                `json:"series_without_active"`
	Series              []SeriesDiagnostic `json:"series"`
}

// DiagnosticReport builds the consistency report for a tenant's fleet:
// aggregate occupancy, groups left active while full and groups retired
// before reaching their threshold.
func (m *GroupMonitorService) DiagnosticReport(tenantID uuid.UUID) (*FleetDiagnosticReport, error) {
	seriesList, err := m.series.ListByTenant(tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list series: %w", err)
	}
	groups, err := m.groups.ListManagedByTenant(tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list managed groups: %w", err)
	}

	report := &FleetDiagnosticReport{GeneratedAt: m.now(), Series: []SeriesDiagnostic{}}

	bySeries := make(map[string][]models.Group)
	var occupancySum float64
	for _, group := range groups {
		report.TotalManagedGroups++
		occupancy := Occupancy(group.ParticipantCount, group.MaxParticipants)
		occupancySum += occupancy
		bySeries[group.GroupSeries] = append(bySeries[group.GroupSeries], group)

		if group.IsActive {
			report.ActiveManagedGroups++
			if IsFull(group.ParticipantCount, group.MaxParticipants) {
				report.FullButActive++
			}
		} else if occupancy < float64(group.ThresholdPercentage) {
			report.RetiredPrematurely++
		}
	}
	if report.TotalManagedGroups > 0 {
		report.AverageOccupancy = occupancySum / float64(report.TotalManagedGroups)
	}

	for _, series := range seriesList {
		diagnostic := SeriesDiagnostic{SeriesID: series.ID, SeriesName: series.Name}
		var seriesOccupancy float64
		for _, group := range bySeries[series.Name] {
			diagnostic.GroupCount++
			seriesOccupancy += Occupancy(group.ParticipantCount, group.MaxParticipants)
			if group.IsActive {
				diagnostic.ActiveGroupCount++
			}
		}
		if diagnostic.GroupCount > 0 {
			diagnostic.AverageOccupancy = seriesOccupancy / float64(diagnostic.GroupCount)
		}
		diagnostic.MissingActive = diagnostic.ActiveGroupCount == 0
		if diagnostic.MissingActive {
			report.SeriesWithoutActive++
		}
		report.Series = append(report.Series, diagnostic)
	}

	return report, nil
}

// CleanupResult reports what the inactive-group cleanup removed
type CleanupResult struct {
	Examined int      `json:"examined"`
	Removed  int      `json:"removed"`
	Errors   []string `json:"errors"`
}

// CleanupInactiveGroups removes managed groups that have been inactive longer
// than maxAge and hold at most maxMembers participants. Passing zero values
// applies the conservative defaults (30 days, 5 members). The remote group is
// deleted best-effort before the local record.
func (m *GroupMonitorService) CleanupInactiveGroups(maxAge time.Duration, maxMembers int) (*CleanupResult, error) {
	if maxAge <= 0 {
		maxAge = defaultCleanupAge
	}
	if maxMembers <= 0 {
		maxMembers = defaultCleanupMaxMembers
	}

	cutoff := m.now().Add(-maxAge)
	groups, err := m.groups.ListInactiveManaged(cutoff, maxMembers)
	if err != nil {
		return nil, fmt.Errorf("failed to list inactive groups: %w", err)
	}

	result := &CleanupResult{Errors: []string{}}
	for i := range groups {
		group := &groups[i]
		result.Examined++

		if channel, err := m.channels.GetByID(group.TenantID, group.ChannelID); err == nil && channel.IsConnected() {
			if err := m.gateway.DeleteGroup(channel.Session, group.JID); err != nil {
				log.Printf("⚠️ Failed to delete remote group %s during cleanup: %v", group.JID, err)
			}
		}

		if err := m.groups.Delete(group.TenantID, group.ID); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("group %s: %v", group.JID, err))
			continue
		}
		result.Removed++
		log.Printf("🧹 Grupo inativo removido: %s (série %s, #%d)", group.JID, group.GroupSeries, group.GroupNumber)
	}
	return result, nil
}
