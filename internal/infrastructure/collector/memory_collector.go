package collector

import (
	"context"

	"github.com/shirou/gopsutil/v3/mem"
)

// MemoryStats - снимок виртуальной памяти
type MemoryStats struct {
	UsedPercent float64
	TotalMB     uint64
	UsedMB      uint64
	FreeMB      uint64
}

// MemoryCollector собирает метрики памяти
type MemoryCollector struct{}

// NewMemoryCollector создает новый Memory collector
func NewMemoryCollector() *MemoryCollector {
	return &MemoryCollector{}
}

// Stats собирает состояние памяти
func (c *MemoryCollector) Stats(ctx context.Context) (MemoryStats, error) {
	vmStat, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return MemoryStats{}, err
	}

	return MemoryStats{
		UsedPercent: vmStat.UsedPercent,
		TotalMB:     vmStat.Total / 1024 / 1024,
		UsedMB:      vmStat.Used / 1024 / 1024,
		FreeMB:      vmStat.Available / 1024 / 1024,
	}, nil
}
