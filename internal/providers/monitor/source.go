package monitor

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/net"
	"github.com/shirou/gopsutil/v4/process"
)

// Source supplies raw host readings.
type Source interface {
	CPUPercent(ctx context.Context, interval time.Duration) (float64, error)
	MemoryPercent(ctx context.Context) (float64, error)
	Interfaces(ctx context.Context) (net.InterfaceStatList, error)
	IOCounters(ctx context.Context) ([]net.IOCountersStat, error)
	Connections(ctx context.Context, kind string) ([]net.ConnectionStat, error)
	ProcessName(ctx context.Context, pid int32) (string, error)
}

// HostSource reads the machine the process runs on.
type HostSource struct{}

func (HostSource) CPUPercent(ctx context.Context, interval time.Duration) (float64, error) {
	percents, err := cpu.PercentWithContext(ctx, interval, false)
	if err != nil {
		return 0, err
	}
	if len(percents) == 0 {
		return 0, nil
	}
	return percents[0], nil
}

func (HostSource) MemoryPercent(ctx context.Context) (float64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return vm.UsedPercent, nil
}

func (HostSource) Interfaces(ctx context.Context) (net.InterfaceStatList, error) {
	return net.InterfacesWithContext(ctx)
}

func (HostSource) IOCounters(ctx context.Context) ([]net.IOCountersStat, error) {
	return net.IOCountersWithContext(ctx, true)
}

func (HostSource) Connections(ctx context.Context, kind string) ([]net.ConnectionStat, error) {
	return net.ConnectionsWithContext(ctx, kind)
}

func (HostSource) ProcessName(ctx context.Context, pid int32) (string, error) {
	proc, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return "", err
	}
	return proc.NameWithContext(ctx)
}
