package port

import "context"

// SystemStatsProvider отдает текущую загрузку хоста в процентах (Port)
// Реализация будет в Infrastructure слое
type SystemStatsProvider interface {
	// MemoryUsage возвращает процент использования памяти
	MemoryUsage(ctx context.Context) (float64, error)

	// CPUUsage возвращает процент использования CPU
	CPUUsage(ctx context.Context) (float64, error)

	// DiskUsage возвращает процент занятого места на разделе path
	DiskUsage(ctx context.Context, path string) (float64, error)
}
