package entity

import (
	"time"

	"github.com/dreschagin/crm-monitoring/internal/domain/valueobject"
)

// HealthCheckResult - результат одного запуска probe. Неизменяем после создания.
type HealthCheckResult struct {
	Name     string
	Status   valueobject.CheckStatus
	Duration time.Duration
	Warnings []string
	Error    string
	Details  map[string]interface{}
}

// HealthSummary - счетчики результатов по статусам
type HealthSummary struct {
	Total    int
	Passed   int
	Warnings int
	Failed   int
}

// HealthReport - итог полного прогона всех проверок
type HealthReport struct {
	Timestamp time.Time
	Status    valueobject.OverallStatus
	Checks    map[string]HealthCheckResult
	Summary   HealthSummary
	Duration  time.Duration
}

// HealthSnapshot - усеченная версия отчета для истории
type HealthSnapshot struct {
	Timestamp time.Time
	Status    valueobject.OverallStatus
	Summary   HealthSummary
	Duration  time.Duration
}

// Snapshot возвращает запись для буфера истории
func (r *HealthReport) Snapshot() HealthSnapshot {
	return HealthSnapshot{
		Timestamp: r.Timestamp,
		Status:    r.Status,
		Summary:   r.Summary,
		Duration:  r.Duration,
	}
}
