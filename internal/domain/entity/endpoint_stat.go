package entity

import (
	"time"

	"github.com/dreschagin/crm-monitoring/internal/domain/valueobject"
)

// EndpointStat - накопленная статистика одного endpoint.
// Не потокобезопасна: владелец (MetricAggregator) синхронизирует доступ.
type EndpointStat struct {
	Key             valueobject.EndpointKey
	Count           int64
	TotalDurationMs float64
	Errors          int64
	LastUsed        time.Time
}

// Record учитывает один завершенный запрос. Статус >= 400 считается ошибкой.
func (s *EndpointStat) Record(durationMs float64, statusCode int, now time.Time) {
	s.Count++
	s.TotalDurationMs += durationMs
	if statusCode >= 400 {
		s.Errors++
	}
	s.LastUsed = now
}

// AverageLatencyMs возвращает среднюю задержку; 0 при отсутствии запросов
func (s *EndpointStat) AverageLatencyMs() float64 {
	if s.Count == 0 {
		return 0
	}
	return s.TotalDurationMs / float64(s.Count)
}

// ErrorRate возвращает долю ошибок в процентах
func (s *EndpointStat) ErrorRate() float64 {
	if s.Count == 0 {
		return 0
	}
	return float64(s.Errors) / float64(s.Count) * 100
}
