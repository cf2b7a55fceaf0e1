package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNearestRank(t *testing.T) {
	sorted := []float64{10, 20, 30, 40, 50}

	tests := []struct {
		p    float64
		want float64
	}{
		{p: 0, want: 10},
		{p: 20, want: 10},
		{p: 50, want: 30},
		{p: 75, want: 40},
		{p: 95, want: 50},
		{p: 99, want: 50},
		{p: 100, want: 50},
		{p: 150, want: 50},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NearestRank(sorted, tt.p), "p=%v", tt.p)
	}
}

func TestComputePercentiles(t *testing.T) {
	assert.Equal(t, LatencyPercentiles{}, ComputePercentiles(nil))

	input := []float64{50, 40, 30, 20, 10}
	got := ComputePercentiles(input)
	assert.Equal(t, LatencyPercentiles{P50: 30, P75: 40, P95: 50, P99: 50}, got)
	assert.Equal(t, []float64{50, 40, 30, 20, 10}, input, "input must not be reordered")

	assert.Equal(t, LatencyPercentiles{P50: 7, P75: 7, P95: 7, P99: 7}, ComputePercentiles([]float64{7}))
}
