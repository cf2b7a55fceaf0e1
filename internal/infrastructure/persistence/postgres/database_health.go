package postgres

import (
	"context"
	"sync"
	"time"

	"github.com/dreschagin/crm-monitoring/internal/application/port"
)

// DatabaseHealthProvider реализует port.DatabaseHealthProvider поверх database/sql
type DatabaseHealthProvider struct {
	db *InstrumentedDB

	mu            sync.Mutex
	lastWaitCount int64
}

// NewDatabaseHealthProvider создает provider; пробный запрос идет через InstrumentedDB
func NewDatabaseHealthProvider(db *InstrumentedDB) *DatabaseHealthProvider {
	return &DatabaseHealthProvider{db: db}
}

// Health выполняет SELECT 1 и читает статистику пула.
// Недоступность БД возвращается как Connected=false, error зарезервирован под отмену ctx.
func (p *DatabaseHealthProvider) Health(ctx context.Context) (port.DatabaseHealth, error) {
	start := time.Now()

	var one int
	err := p.db.QueryRowScan(ctx, "SELECT 1", nil, &one)
	elapsed := time.Since(start)

	health := port.DatabaseHealth{
		Connected:    err == nil,
		ResponseTime: elapsed,
		PoolStats:    p.poolStats(),
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return health, ctxErr
		}
		health.Error = err.Error()
	}

	return health, nil
}

// poolStats переводит sql.DBStats в PoolStats. Queued - число ожиданий соединения
// с момента предыдущего вызова.
func (p *DatabaseHealthProvider) poolStats() port.PoolStats {
	stats := p.db.DB().Stats()

	p.mu.Lock()
	queued := stats.WaitCount - p.lastWaitCount
	p.lastWaitCount = stats.WaitCount
	p.mu.Unlock()

	return port.PoolStats{
		Total:  stats.OpenConnections,
		Free:   stats.Idle,
		Used:   stats.InUse,
		Queued: int(queued),
		Max:    stats.MaxOpenConnections,
	}
}
