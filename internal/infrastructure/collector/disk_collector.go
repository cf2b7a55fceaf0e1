package collector

import (
	"context"

	"github.com/shirou/gopsutil/v3/disk"
)

// DiskStats - заполненность одного раздела
type DiskStats struct {
	Path        string
	UsedPercent float64
	TotalGB     uint64
	UsedGB      uint64
	FreeGB      uint64
}

// DiskCollector собирает метрики дисков
type DiskCollector struct{}

// NewDiskCollector создает новый Disk collector
func NewDiskCollector() *DiskCollector {
	return &DiskCollector{}
}

// Stats собирает заполненность раздела, на котором лежит path
func (c *DiskCollector) Stats(ctx context.Context, path string) (DiskStats, error) {
	if path == "" {
		path = "/"
	}

	usage, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return DiskStats{}, err
	}

	return DiskStats{
		Path:        usage.Path,
		UsedPercent: usage.UsedPercent,
		TotalGB:     usage.Total / 1024 / 1024 / 1024,
		UsedGB:      usage.Used / 1024 / 1024 / 1024,
		FreeGB:      usage.Free / 1024 / 1024 / 1024,
	}, nil
}
