package dto

import (
	"time"

	"github.com/dreschagin/crm-monitoring/internal/domain/entity"
)

// HealthCheckDTO - результат одной проверки
type HealthCheckDTO struct {
	Name       string                 `json:"name"`
	Status     string                 `json:"status"`
	DurationMs float64                `json:"duration_ms"`
	Warnings   []string               `json:"warnings,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
}

// HealthSummaryDTO - счетчики по статусам
type HealthSummaryDTO struct {
	Total    int `json:"total"`
	Passed   int `json:"passed"`
	Warnings int `json:"warnings"`
	Failed   int `json:"failed"`
}

// HealthSnapshotDTO - элемент истории
type HealthSnapshotDTO struct {
	Timestamp  time.Time        `json:"timestamp"`
	Status     string           `json:"status"`
	Summary    HealthSummaryDTO `json:"summary"`
	DurationMs float64          `json:"duration_ms"`
}

// HealthReportDTO - ответ GET /health
type HealthReportDTO struct {
	Timestamp  time.Time                  `json:"timestamp"`
	Status     string                     `json:"status"`
	Checks     map[string]*HealthCheckDTO `json:"checks"`
	Summary    HealthSummaryDTO           `json:"summary"`
	DurationMs float64                    `json:"duration_ms"`
	History    []HealthSnapshotDTO        `json:"history,omitempty"`
}

// ReadinessDTO - ответ GET /health/ready
type ReadinessDTO struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// LivenessDTO - ответ GET /health/live
type LivenessDTO struct {
	Status        string  `json:"status"`
	Uptime        string  `json:"uptime"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	PID           int     `json:"pid"`
}

// FromHealthCheck конвертирует результат проверки
func FromHealthCheck(r entity.HealthCheckResult) *HealthCheckDTO {
	return &HealthCheckDTO{
		Name:       r.Name,
		Status:     r.Status.String(),
		DurationMs: millis(r.Duration),
		Warnings:   r.Warnings,
		Error:      r.Error,
		Details:    r.Details,
	}
}

// FromHealthReport конвертирует отчет; history добавляется только если передан
func FromHealthReport(r entity.HealthReport, history []entity.HealthSnapshot) *HealthReportDTO {
	checks := make(map[string]*HealthCheckDTO, len(r.Checks))
	for name, c := range r.Checks {
		checks[name] = FromHealthCheck(c)
	}

	out := &HealthReportDTO{
		Timestamp:  r.Timestamp,
		Status:     r.Status.String(),
		Checks:     checks,
		Summary:    fromHealthSummary(r.Summary),
		DurationMs: millis(r.Duration),
	}

	if history != nil {
		out.History = make([]HealthSnapshotDTO, len(history))
		for i, s := range history {
			out.History[i] = HealthSnapshotDTO{
				Timestamp:  s.Timestamp,
				Status:     s.Status.String(),
				Summary:    fromHealthSummary(s.Summary),
				DurationMs: millis(s.Duration),
			}
		}
	}

	return out
}

func fromHealthSummary(s entity.HealthSummary) HealthSummaryDTO {
	return HealthSummaryDTO{Total: s.Total, Passed: s.Passed, Warnings: s.Warnings, Failed: s.Failed}
}

func millis(d time.Duration) float64 {
	return round2(float64(d) / float64(time.Millisecond))
}
