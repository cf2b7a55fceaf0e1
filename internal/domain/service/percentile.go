package service

import (
	"math"
	"sort"
)

// NearestRank возвращает перцентиль p (0-100) по отсортированной по возрастанию выборке.
// Индекс = ceil(p/100 * n) - 1 с ограничением [0, n-1]; пустая выборка дает 0.
func NearestRank(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}

	idx := int(math.Ceil(p/100*float64(n))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx > n-1 {
		idx = n - 1
	}
	return sorted[idx]
}

// LatencyPercentiles - p50/p75/p95/p99 по выборке
type LatencyPercentiles struct {
	P50 float64
	P75 float64
	P95 float64
	P99 float64
}

// ComputePercentiles сортирует копию выборки и считает перцентили
func ComputePercentiles(values []float64) LatencyPercentiles {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	return LatencyPercentiles{
		P50: NearestRank(sorted, 50),
		P75: NearestRank(sorted, 75),
		P95: NearestRank(sorted, 95),
		P99: NearestRank(sorted, 99),
	}
}
