package collector

import (
	"context"
	"time"
)

// SystemStatsCollector объединяет collector'ы CPU, памяти и дисков.
// Реализует интерфейс port.SystemStatsProvider.
type SystemStatsCollector struct {
	cpu    *CPUCollector
	memory *MemoryCollector
	disk   *DiskCollector
}

// NewSystemStatsCollector создает системный collector
func NewSystemStatsCollector(cpuSample time.Duration) *SystemStatsCollector {
	return &SystemStatsCollector{
		cpu:    NewCPUCollector(cpuSample),
		memory: NewMemoryCollector(),
		disk:   NewDiskCollector(),
	}
}

// MemoryUsage возвращает загрузку памяти в процентах
func (c *SystemStatsCollector) MemoryUsage(ctx context.Context) (float64, error) {
	stats, err := c.memory.Stats(ctx)
	if err != nil {
		return 0, err
	}
	return stats.UsedPercent, nil
}

// CPUUsage возвращает загрузку CPU в процентах
func (c *SystemStatsCollector) CPUUsage(ctx context.Context) (float64, error) {
	return c.cpu.Usage(ctx)
}

// DiskUsage возвращает заполненность раздела в процентах
func (c *SystemStatsCollector) DiskUsage(ctx context.Context, path string) (float64, error) {
	stats, err := c.disk.Stats(ctx, path)
	if err != nil {
		return 0, err
	}
	return stats.UsedPercent, nil
}

// Memory возвращает подробный снимок памяти
func (c *SystemStatsCollector) Memory(ctx context.Context) (MemoryStats, error) {
	return c.memory.Stats(ctx)
}

// Disk возвращает подробный снимок раздела
func (c *SystemStatsCollector) Disk(ctx context.Context, path string) (DiskStats, error) {
	return c.disk.Stats(ctx, path)
}
