package handlers

import (
	"net/http"
	"time"

	"zapfleet/internal/services"
	"zapfleet/pkg/models"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type MonitoringHandler struct {
	monitor *services.GroupMonitorService
}

func NewMonitoringHandler(monitor *services.GroupMonitorService) *MonitoringHandler {
	return &MonitoringHandler{monitor: monitor}
}

// RunNow godoc
// @Summary Run fleet monitoring now
// @Description Trigger an immediate monitoring pass over every auto-create series
// @Tags monitoring
// @Produce json
// @Success 200 {object} services.MonitorRunStats
// @Failure 409 {object} map[string]string
// @Router /admin/monitoring/run [post]
// @Security BearerAuth
func (h *MonitoringHandler) RunNow(c echo.Context) error {
	stats, err := h.monitor.RunNow()
	if err != nil {
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, stats)
}

// Diagnostics godoc
// @Summary Fleet diagnostic report
// @Description Build a consistency report over the tenant's managed groups
// @Tags monitoring
// @Produce json
// @Success 200 {object} services.FleetDiagnosticReport
// @Failure 500 {object} map[string]string
// @Router /monitoring/diagnostics [get]
// @Security BearerAuth
func (h *MonitoringHandler) Diagnostics(c echo.Context) error {
	tenantID := c.Get("tenant_id").(uuid.UUID)

	report, err := h.monitor.DiagnosticReport(tenantID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, report)
}

// Cleanup godoc
// @Summary Cleanup inactive groups
// @Description Remove managed groups inactive beyond the age limit with few members left
// @Tags monitoring
// @Accept json
// @Produce json
// @Param options body models.CleanupRequest false "Cleanup options"
// @Success 200 {object} services.CleanupResult
// @Failure 400 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /admin/monitoring/cleanup [post]
// @Security BearerAuth
func (h *MonitoringHandler) Cleanup(c echo.Context) error {
	var req models.CleanupRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	result, err := h.monitor.CleanupInactiveGroups(time.Duration(req.MaxAgeDays)*24*time.Hour, req.MaxMembers)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, result)
}
