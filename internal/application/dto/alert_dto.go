package dto

import (
	"time"

	"github.com/dreschagin/crm-monitoring/internal/application/usecase"
	"github.com/dreschagin/crm-monitoring/internal/domain/entity"
)

// AlertDTO представляет алерт для HTTP, WebSocket и NATS
type AlertDTO struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	Severity   string                 `json:"severity"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
	Resolved   bool                   `json:"resolved"`
	ResolvedAt *time.Time             `json:"resolved_at,omitempty"`
}

// FromAlert конвертирует Domain Entity в DTO
func FromAlert(a *entity.Alert) *AlertDTO {
	return &AlertDTO{
		ID:         a.ID(),
		Type:       a.Type().String(),
		Severity:   a.Severity().String(),
		Message:    a.Message(),
		Details:    a.Details(),
		Timestamp:  a.CreatedAt(),
		Resolved:   a.IsResolved(),
		ResolvedAt: a.ResolvedAt(),
	}
}

// ToAlertDTOs конвертирует слайс Entity в слайс DTO
func ToAlertDTOs(alerts []*entity.Alert) []*AlertDTO {
	dtos := make([]*AlertDTO, len(alerts))
	for i, a := range alerts {
		dtos[i] = FromAlert(a)
	}
	return dtos
}

// AlertListDTO - ответ списочных endpoint'ов
type AlertListDTO struct {
	Count  int         `json:"count"`
	Alerts []*AlertDTO `json:"alerts"`
}

// NewAlertListDTO оборачивает список алертов
func NewAlertListDTO(alerts []*entity.Alert) *AlertListDTO {
	return &AlertListDTO{Count: len(alerts), Alerts: ToAlertDTOs(alerts)}
}

// AlertEventDTO - сообщение живого потока алертов
type AlertEventDTO struct {
	Type string    `json:"type"`
	Data *AlertDTO `json:"data"`
}

// NewAlertEventDTO создает событие "alert"
func NewAlertEventDTO(a *entity.Alert) *AlertEventDTO {
	return &AlertEventDTO{Type: "alert", Data: FromAlert(a)}
}

// TriggerAlertRequest - тело POST /alerts
type TriggerAlertRequest struct {
	Type     string                 `json:"type"`
	Severity string                 `json:"severity"`
	Message  string                 `json:"message"`
	Details  map[string]interface{} `json:"details"`
}

// TriggerAlertResponse - ответ на подавленный POST /alerts
type TriggerAlertResponse struct {
	Suppressed bool      `json:"suppressed"`
	Alert      *AlertDTO `json:"alert,omitempty"`
}

// AlertStatisticsDTO - счетчики за одно окно
type AlertStatisticsDTO struct {
	Total      int            `json:"total"`
	ByType     map[string]int `json:"by_type"`
	BySeverity map[string]int `json:"by_severity"`
}

// AlertStatsDTO - ответ GET /alerts/stats
type AlertStatsDTO struct {
	Last24h AlertStatisticsDTO `json:"last_24h"`
	Last7d  AlertStatisticsDTO `json:"last_7d"`
	Active  int                `json:"active"`
}

// FromAlertStats конвертирует статистику движка
func FromAlertStats(r usecase.AlertStatsReport) *AlertStatsDTO {
	return &AlertStatsDTO{
		Last24h: fromAlertStatistics(r.Last24h),
		Last7d:  fromAlertStatistics(r.Last7d),
		Active:  r.Active,
	}
}

func fromAlertStatistics(s usecase.AlertStatistics) AlertStatisticsDTO {
	out := AlertStatisticsDTO{
		Total:      s.Total,
		ByType:     make(map[string]int, len(s.ByType)),
		BySeverity: make(map[string]int, len(s.BySeverity)),
	}
	for t, n := range s.ByType {
		out.ByType[t.String()] = n
	}
	for sev, n := range s.BySeverity {
		out.BySeverity[sev.String()] = n
	}
	return out
}
