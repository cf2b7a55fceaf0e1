package service

import (
	"github.com/dreschagin/crm-monitoring/internal/domain/entity"
	"github.com/dreschagin/crm-monitoring/internal/domain/valueobject"
)

// ReduceHealth сводит результаты проверок к одному статусу системы.
//
// Есть провалы: unhealthy если провалов больше чем успешных, иначе degraded.
// Нет провалов, но есть предупреждения: degraded. Иначе healthy.
func ReduceHealth(results map[string]entity.HealthCheckResult) (valueobject.OverallStatus, entity.HealthSummary) {
	summary := entity.HealthSummary{Total: len(results)}

	for _, r := range results {
		switch r.Status {
		case valueobject.CheckHealthy:
			summary.Passed++
		case valueobject.CheckWarning:
			summary.Warnings++
		default:
			summary.Failed++
		}
	}

	switch {
	case summary.Failed > 0 && summary.Failed > summary.Passed:
		return valueobject.StatusUnhealthy, summary
	case summary.Failed > 0:
		return valueobject.StatusDegraded, summary
	case summary.Warnings > 0:
		return valueobject.StatusDegraded, summary
	default:
		return valueobject.StatusHealthy, summary
	}
}
