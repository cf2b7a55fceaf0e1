package handler

import (
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"k8s.io/utils/clock"

	"github.com/dreschagin/crm-monitoring/internal/application/dto"
	"github.com/dreschagin/crm-monitoring/internal/application/port"
	"github.com/dreschagin/crm-monitoring/internal/application/usecase"
	"github.com/dreschagin/crm-monitoring/internal/domain/valueobject"
	"github.com/dreschagin/crm-monitoring/internal/interfaces/http/middleware"
	"github.com/dreschagin/crm-monitoring/pkg/logger"
)

// HealthHandler обслуживает /health, /health/ready и /health/live
type HealthHandler struct {
	orchestrator *usecase.HealthOrchestrator
	database     port.DatabaseHealthProvider
	clock        clock.PassiveClock
	startedAt    time.Time
	logger       *logger.Logger
}

// NewHealthHandler создает handler. database может быть nil: тогда readiness всегда 503.
func NewHealthHandler(
	orchestrator *usecase.HealthOrchestrator,
	database port.DatabaseHealthProvider,
	clk clock.PassiveClock,
	logger *logger.Logger,
) *HealthHandler {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &HealthHandler{
		orchestrator: orchestrator,
		database:     database,
		clock:        clk,
		startedAt:    clk.Now(),
		logger:       logger,
	}
}

// Health запускает все проверки (или одну, если задан ?check=).
// ?history=true добавляет в ответ историю прогонов.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if name := query.Get("check"); name != "" {
		result, err := h.orchestrator.RunOne(r.Context(), name)
		if errors.Is(err, usecase.ErrCheckNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "health check not found: "+name)
			return
		}
		if err != nil {
			h.logger.Error("Health check failed", err, "check", name)
			middleware.WriteError(w, http.StatusInternalServerError, "health check failed")
			return
		}

		status := http.StatusOK
		if result.Status == valueobject.CheckUnhealthy {
			status = http.StatusServiceUnavailable
		}
		middleware.WriteJSON(w, status, dto.FromHealthCheck(result))
		return
	}

	report := h.orchestrator.RunAll(r.Context())

	withHistory, _ := strconv.ParseBool(query.Get("history"))
	var response *dto.HealthReportDTO
	if withHistory {
		response = dto.FromHealthReport(report, h.orchestrator.History())
	} else {
		response = dto.FromHealthReport(report, nil)
	}

	middleware.WriteJSON(w, report.Status.HTTPStatus(), response)
}

// Ready смотрит только на подключение к БД и не трогает реестр проверок
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.database == nil {
		middleware.WriteJSON(w, http.StatusServiceUnavailable, dto.ReadinessDTO{Status: "not_ready", Database: "not_configured"})
		return
	}

	health, err := h.database.Health(r.Context())
	if err != nil || !health.Connected {
		if err != nil {
			h.logger.Warn("Readiness database check failed", "error", err.Error())
		}
		middleware.WriteJSON(w, http.StatusServiceUnavailable, dto.ReadinessDTO{Status: "not_ready", Database: "disconnected"})
		return
	}

	middleware.WriteJSON(w, http.StatusOK, dto.ReadinessDTO{Status: "ready", Database: "connected"})
}

// Live всегда отвечает 200 с аптаймом процесса
func (h *HealthHandler) Live(w http.ResponseWriter, _ *http.Request) {
	uptime := h.clock.Since(h.startedAt)
	middleware.WriteJSON(w, http.StatusOK, dto.LivenessDTO{
		Status:        "alive",
		Uptime:        uptime.Truncate(time.Second).String(),
		UptimeSeconds: uptime.Seconds(),
		PID:           os.Getpid(),
	})
}
