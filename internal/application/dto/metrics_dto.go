package dto

import (
	"math"
	"time"

	"github.com/dreschagin/crm-monitoring/internal/domain/service"
)

// EndpointSummaryDTO - статистика endpoint'а. Значения округлены только для отображения.
type EndpointSummaryDTO struct {
	Endpoint     string    `json:"endpoint"`
	Method       string    `json:"method"`
	Route        string    `json:"route"`
	Requests     int64     `json:"requests"`
	Errors       int64     `json:"errors"`
	AvgLatencyMs float64   `json:"avg_latency_ms"`
	ErrorRate    float64   `json:"error_rate"`
	LastUsed     time.Time `json:"last_used"`
}

// SlowOperationDTO - медленная операция
type SlowOperationDTO struct {
	Operation  string                 `json:"operation"`
	DurationMs float64                `json:"duration_ms"`
	Timestamp  time.Time              `json:"timestamp"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// PercentilesDTO - перцентили средних задержек
type PercentilesDTO struct {
	P50 float64 `json:"p50"`
	P75 float64 `json:"p75"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

// TotalsDTO - агрегированные итоги
type TotalsDTO struct {
	Endpoints int64   `json:"endpoints"`
	Requests  int64   `json:"requests"`
	Errors    int64   `json:"errors"`
	ErrorRate float64 `json:"error_rate"`
}

// MetricsSummaryDTO - ответ GET /metrics/summary
type MetricsSummaryDTO struct {
	Timestamp      time.Time            `json:"timestamp"`
	Endpoints      []EndpointSummaryDTO `json:"endpoints"`
	SlowOperations []SlowOperationDTO   `json:"slow_operations"`
	Percentiles    PercentilesDTO       `json:"percentiles"`
	Totals         TotalsDTO            `json:"totals"`
}

// NewMetricsSummaryDTO собирает ответ из Summary и Percentiles агрегатора
func NewMetricsSummaryDTO(s service.MetricsSummary, p service.PercentileReport, now time.Time) *MetricsSummaryDTO {
	out := &MetricsSummaryDTO{
		Timestamp:      now,
		Endpoints:      make([]EndpointSummaryDTO, len(s.Endpoints)),
		SlowOperations: make([]SlowOperationDTO, len(s.SlowOperations)),
		Percentiles: PercentilesDTO{
			P50: round2(p.P50),
			P75: round2(p.P75),
			P95: round2(p.P95),
			P99: round2(p.P99),
		},
		Totals: TotalsDTO{
			Endpoints: int64(s.TotalEndpoints),
			Requests:  s.TotalRequests,
			Errors:    s.TotalErrors,
			ErrorRate: round2(p.ErrorRate),
		},
	}

	for i, e := range s.Endpoints {
		out.Endpoints[i] = EndpointSummaryDTO{
			Endpoint:     e.Key.String(),
			Method:       e.Key.Method,
			Route:        e.Key.Route,
			Requests:     e.Requests,
			Errors:       e.Errors,
			AvgLatencyMs: round2(e.AvgLatencyMs),
			ErrorRate:    round2(e.ErrorRate),
			LastUsed:     e.LastUsed,
		}
	}

	for i, op := range s.SlowOperations {
		out.SlowOperations[i] = SlowOperationDTO{
			Operation:  op.Description,
			DurationMs: round2(op.DurationMs),
			Timestamp:  op.Timestamp,
			Metadata:   op.Metadata,
		}
	}

	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
