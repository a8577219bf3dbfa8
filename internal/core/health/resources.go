package health

import (
	"context"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// ResourceSampler reports host resource utilization as fractions in [0, 1].
type ResourceSampler interface {
	Sample(ctx context.Context) (map[string]float64, error)
}

// HostSampler reads CPU, memory and disk utilization from the host.
type HostSampler struct {
	// DiskPath is the mount point measured for disk utilization.
	DiskPath string
}

// NewHostSampler creates a sampler rooted at the default disk path.
func NewHostSampler() *HostSampler {
	return &HostSampler{DiskPath: "/"}
}

// Sample implements ResourceSampler. Partial failures are tolerated: any
// probe that errors is simply absent from the result.
func (s *HostSampler) Sample(ctx context.Context) (map[string]float64, error) {
	utilization := make(map[string]float64, 3)

	if percents, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percents) > 0 {
		utilization["cpu"] = percents[0] / 100
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		utilization["memory"] = vm.UsedPercent / 100
	}
	if usage, err := disk.UsageWithContext(ctx, s.DiskPath); err == nil {
		utilization["disk"] = usage.UsedPercent / 100
	}
	return utilization, nil
}
