package device

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// GopsutilDeviceAdapter samples the local host's CPU and memory usage,
// standing in for the remote device pool a full test-lab scheduler would
// track.
type GopsutilDeviceAdapter struct {
	cpuBusyThreshold float64
}

// NewGopsutilDeviceAdapter returns an adapter that considers the host busy
// once CPU usage reaches cpuBusyThreshold (a percentage, e.g. 85.0).
func NewGopsutilDeviceAdapter(cpuBusyThreshold float64) *GopsutilDeviceAdapter {
	return &GopsutilDeviceAdapter{cpuBusyThreshold: cpuBusyThreshold}
}

// Sample reports current CPU and memory utilization.
func (a *GopsutilDeviceAdapter) Sample(ctx context.Context) (Status, error) {
	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return Status{}, fmt.Errorf("sampling cpu: %w", err)
	}
	var cpuPct float64
	if len(percents) > 0 {
		cpuPct = percents[0]
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("sampling memory: %w", err)
	}

	return Status{
		CPUPercent: cpuPct,
		MemPercent: vm.UsedPercent,
		Busy:       cpuPct >= a.cpuBusyThreshold,
	}, nil
}
