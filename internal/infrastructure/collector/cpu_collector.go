package collector

import (
	"context"
	"errors"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
)

// CPUCollector собирает загрузку CPU
type CPUCollector struct {
	sample time.Duration
}

// NewCPUCollector создает CPU collector; sample - окно замера загрузки
func NewCPUCollector(sample time.Duration) *CPUCollector {
	if sample <= 0 {
		sample = time.Second
	}
	return &CPUCollector{sample: sample}
}

// Usage возвращает общую загрузку CPU в процентах за окно замера
func (c *CPUCollector) Usage(ctx context.Context) (float64, error) {
	percentages, err := cpu.PercentWithContext(ctx, c.sample, false)
	if err != nil {
		return 0, err
	}
	if len(percentages) == 0 {
		return 0, errors.New("cpu usage unavailable")
	}
	return percentages[0], nil
}
