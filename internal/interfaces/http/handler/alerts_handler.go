package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/dreschagin/crm-monitoring/internal/application/dto"
	"github.com/dreschagin/crm-monitoring/internal/application/usecase"
	"github.com/dreschagin/crm-monitoring/internal/domain/service"
	"github.com/dreschagin/crm-monitoring/internal/domain/valueobject"
	"github.com/dreschagin/crm-monitoring/internal/interfaces/http/middleware"
	"github.com/dreschagin/crm-monitoring/pkg/logger"
)

const maxTriggerBodyBytes = 64 * 1024

// AlertsHandler - API управления алертами
type AlertsHandler struct {
	engine *usecase.AlertEngine
	logger *logger.Logger
}

// NewAlertsHandler создает handler
func NewAlertsHandler(engine *usecase.AlertEngine, logger *logger.Logger) *AlertsHandler {
	return &AlertsHandler{engine: engine, logger: logger}
}

// Active - GET /alerts/active
func (h *AlertsHandler) Active(w http.ResponseWriter, _ *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, dto.NewAlertListDTO(h.engine.ActiveAlerts()))
}

// History - GET /alerts/history?limit=N
func (h *AlertsHandler) History(w http.ResponseWriter, r *http.Request) {
	limit := usecase.DefaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			middleware.WriteError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	middleware.WriteJSON(w, http.StatusOK, dto.NewAlertListDTO(h.engine.History(limit)))
}

// Stats - GET /alerts/stats
func (h *AlertsHandler) Stats(w http.ResponseWriter, _ *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, dto.FromAlertStats(h.engine.Statistics()))
}

// Resolve - POST /alerts/{id}/resolve
func (h *AlertsHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	alert, err := h.engine.Resolve(id)
	if errors.Is(err, usecase.ErrAlertNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "alert not found: "+id)
		return
	}
	if err != nil {
		h.logger.Error("Failed to resolve alert", err, "alert_id", id)
		middleware.WriteError(w, http.StatusInternalServerError, "failed to resolve alert")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, dto.FromAlert(alert))
}

// Trigger - POST /alerts. 201 для нового алерта, 200 с suppressed=true при подавлении.
func (h *AlertsHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	var req dto.TriggerAlertRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTriggerBodyBytes))
	if err := decoder.Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	details := make(map[string]interface{}, len(req.Details)+1)
	for k, v := range req.Details {
		details[k] = v
	}
	if msg := strings.TrimSpace(req.Message); msg != "" {
		details["message"] = msg
	}

	alert, suppressed, err := h.engine.Trigger(
		valueobject.AlertType(strings.ToLower(strings.TrimSpace(req.Type))),
		valueobject.Severity(strings.ToLower(strings.TrimSpace(req.Severity))),
		details,
	)
	if errors.Is(err, service.ErrInvalidAlert) {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("Failed to trigger alert", err, "type", req.Type)
		middleware.WriteError(w, http.StatusInternalServerError, "failed to trigger alert")
		return
	}

	if suppressed {
		middleware.WriteJSON(w, http.StatusOK, dto.TriggerAlertResponse{Suppressed: true, Alert: dto.FromAlert(alert)})
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, dto.FromAlert(alert))
}
