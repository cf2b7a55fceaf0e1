package port

import (
	"context"
	"time"
)

// PoolStats описывает состояние пула соединений БД
type PoolStats struct {
	Total  int `json:"total"`
	Free   int `json:"free"`
	Used   int `json:"used"`
	Queued int `json:"queued"`
	// Max - верхняя граница пула (0 означает "без ограничения")
	Max int `json:"max"`
}

// Utilization возвращает загрузку пула в процентах
func (s PoolStats) Utilization() float64 {
	capacity := s.Max
	if capacity <= 0 {
		capacity = s.Total
	}
	if capacity <= 0 {
		return 0
	}
	return float64(s.Used) / float64(capacity) * 100
}

// DatabaseHealth - снимок здоровья БД на момент вызова
type DatabaseHealth struct {
	Connected    bool
	ResponseTime time.Duration
	PoolStats    PoolStats
	Error        string
}

// DatabaseHealthProvider определяет внешний источник здоровья БД (Port).
// Недоступность БД выражается через Connected=false, а не через error.
type DatabaseHealthProvider interface {
	Health(ctx context.Context) (DatabaseHealth, error)
}
