package collector

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemStatsCollector_ReadsHost(t *testing.T) {
	c := NewSystemStatsCollector(50 * time.Millisecond)
	ctx := context.Background()

	mem, err := c.MemoryUsage(ctx)
	require.NoError(t, err)
	assert.True(t, mem > 0 && mem <= 100, "memory usage %v", mem)

	cpu, err := c.CPUUsage(ctx)
	require.NoError(t, err)
	assert.True(t, cpu >= 0 && cpu <= 100, "cpu usage %v", cpu)

	disk, err := c.Disk(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "/", disk.Path)
	assert.True(t, disk.UsedPercent >= 0 && disk.UsedPercent <= 100)
}

func TestCPUCollector_HonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewCPUCollector(time.Second).Usage(ctx)
	assert.Error(t, err)
}
