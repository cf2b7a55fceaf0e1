package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/dreschagin/crm-monitoring/internal/application/dto"
	"github.com/dreschagin/crm-monitoring/internal/application/usecase"
	"github.com/dreschagin/crm-monitoring/internal/domain/entity"
	"github.com/dreschagin/crm-monitoring/internal/domain/valueobject"
	"github.com/dreschagin/crm-monitoring/pkg/logger"
)

func newOrchestrator(probes map[string]valueobject.CheckStatus) *usecase.HealthOrchestrator {
	o := usecase.NewHealthOrchestrator(usecase.HealthOrchestratorConfig{Timeout: time.Second}, nil, nil, logger.Nop())
	for name, status := range probes {
		status := status
		o.Register(name, func(context.Context) (entity.HealthCheckResult, error) {
			return entity.HealthCheckResult{Status: status}, nil
		})
	}
	return o
}

func TestHealthHandler_UnhealthyIs503(t *testing.T) {
	h := NewHealthHandler(newOrchestrator(map[string]valueobject.CheckStatus{
		"database": valueobject.CheckUnhealthy,
		"cache":    valueobject.CheckUnhealthy,
	}), nil, nil, logger.Nop())

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var report dto.HealthReportDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	assert.Equal(t, "unhealthy", report.Status)
	assert.Equal(t, 2, report.Summary.Failed)
}

func TestHealthHandler_SingleCheckStatusCode(t *testing.T) {
	h := NewHealthHandler(newOrchestrator(map[string]valueobject.CheckStatus{
		"database": valueobject.CheckUnhealthy,
		"memory":   valueobject.CheckWarning,
	}), nil, nil, logger.Nop())

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health?check=database", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health?check=memory", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthHandler_ReadyWithoutDatabase(t *testing.T) {
	h := NewHealthHandler(newOrchestrator(nil), nil, nil, logger.Nop())

	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthHandler_LiveReportsUptime(t *testing.T) {
	clk := clocktesting.NewFakePassiveClock(time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC))
	h := NewHealthHandler(newOrchestrator(nil), nil, clk, logger.Nop())
	clk.SetTime(clk.Now().Add(90 * time.Second))

	rec := httptest.NewRecorder()
	h.Live(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var live dto.LivenessDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&live))
	assert.Equal(t, "1m30s", live.Uptime)
	assert.Equal(t, 90.0, live.UptimeSeconds)
}
