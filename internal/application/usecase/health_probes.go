package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/dreschagin/crm-monitoring/internal/application/port"
	"github.com/dreschagin/crm-monitoring/internal/domain/entity"
	"github.com/dreschagin/crm-monitoring/internal/domain/valueobject"
)

// Имена встроенных проверок
const (
	CheckDatabase = "database"
	CheckMetrics  = "metrics"
	CheckMemory   = "memory"
	CheckDisk     = "disk"
	CheckCache    = "cache"
)

// DatabaseProbe проверяет подключение к БД и загрузку пула.
// unhealthy при разрыве соединения, warning при загрузке пула >= poolWarning %
// или ответе не быстрее slowResponse.
func DatabaseProbe(db port.DatabaseHealthProvider, poolWarning float64, slowResponse time.Duration) ProbeFunc {
	return func(ctx context.Context) (entity.HealthCheckResult, error) {
		health, err := db.Health(ctx)
		if err != nil {
			return entity.HealthCheckResult{}, fmt.Errorf("database health: %w", err)
		}

		utilization := health.PoolStats.Utilization()
		result := entity.HealthCheckResult{
			Status: valueobject.CheckHealthy,
			Details: map[string]interface{}{
				"connected":        health.Connected,
				"response_time_ms": health.ResponseTime.Milliseconds(),
				"pool":             health.PoolStats,
				"pool_utilization": round2(utilization),
			},
		}

		if !health.Connected {
			result.Status = valueobject.CheckUnhealthy
			result.Error = health.Error
			if result.Error == "" {
				result.Error = "database disconnected"
			}
			return result, nil
		}

		if poolWarning > 0 && utilization >= poolWarning {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("connection pool utilization %.1f%% >= %.1f%%", utilization, poolWarning))
		}
		if slowResponse > 0 && health.ResponseTime >= slowResponse {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("slow database response %s", health.ResponseTime))
		}
		if len(result.Warnings) > 0 {
			result.Status = valueobject.CheckWarning
		}
		return result, nil
	}
}

// MetricsProbe смотрит на агрегированные метрики запросов.
// warning, если доля ошибок или p95 латентности достигли порогов.
func MetricsProbe(metrics RequestMetricsReader, errorRateWarning, responseTimeWarningMs float64) ProbeFunc {
	return func(ctx context.Context) (entity.HealthCheckResult, error) {
		report := metrics.Percentiles()
		result := entity.HealthCheckResult{
			Status: valueobject.CheckHealthy,
			Details: map[string]interface{}{
				"total_requests": report.TotalRequests,
				"error_rate":     round2(report.ErrorRate),
				"p95_ms":         round2(report.P95),
			},
		}
		if report.TotalRequests == 0 {
			return result, nil
		}

		if errorRateWarning > 0 && report.ErrorRate >= errorRateWarning {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("error rate %.2f%% >= %.2f%%", report.ErrorRate, errorRateWarning))
		}
		if responseTimeWarningMs > 0 && report.P95 >= responseTimeWarningMs {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("p95 latency %.0fms >= %.0fms", report.P95, responseTimeWarningMs))
		}
		if len(result.Warnings) > 0 {
			result.Status = valueobject.CheckWarning
		}
		return result, nil
	}
}

// MemoryProbe сравнивает использование памяти с порогами
func MemoryProbe(stats port.SystemStatsProvider, limits valueobject.ThresholdPair) ProbeFunc {
	return func(ctx context.Context) (entity.HealthCheckResult, error) {
		used, err := stats.MemoryUsage(ctx)
		if err != nil {
			return entity.HealthCheckResult{}, fmt.Errorf("memory usage: %w", err)
		}
		return usageResult("memory", used, limits, nil), nil
	}
}

// DiskProbe сравнивает заполненность раздела path с порогами
func DiskProbe(stats port.SystemStatsProvider, path string, limits valueobject.ThresholdPair) ProbeFunc {
	return func(ctx context.Context) (entity.HealthCheckResult, error) {
		used, err := stats.DiskUsage(ctx, path)
		if err != nil {
			return entity.HealthCheckResult{}, fmt.Errorf("disk usage %s: %w", path, err)
		}
		return usageResult("disk", used, limits, map[string]interface{}{"path": path}), nil
	}
}

// CacheProbe пингует кэш; недоступный кэш - unhealthy
func CacheProbe(cache port.CacheHealthChecker) ProbeFunc {
	return func(ctx context.Context) (entity.HealthCheckResult, error) {
		rtt, err := cache.Ping(ctx)
		if err != nil {
			return entity.HealthCheckResult{}, err
		}
		return entity.HealthCheckResult{
			Status:  valueobject.CheckHealthy,
			Details: map[string]interface{}{"response_time_ms": rtt.Milliseconds()},
		}, nil
	}
}

func usageResult(resource string, used float64, limits valueobject.ThresholdPair, extra map[string]interface{}) entity.HealthCheckResult {
	details := map[string]interface{}{
		"used_percent": round2(used),
		"warning":      limits.Warning,
		"critical":     limits.Critical,
	}
	for k, v := range extra {
		details[k] = v
	}

	result := entity.HealthCheckResult{Status: valueobject.CheckHealthy, Details: details}
	switch {
	case limits.Critical > 0 && used >= limits.Critical:
		result.Status = valueobject.CheckUnhealthy
		result.Error = fmt.Sprintf("%s usage %.1f%% >= %.1f%%", resource, used, limits.Critical)
	case limits.Warning > 0 && used >= limits.Warning:
		result.Status = valueobject.CheckWarning
		result.Warnings = []string{fmt.Sprintf("%s usage %.1f%% >= %.1f%%", resource, used, limits.Warning)}
	}
	return result
}
