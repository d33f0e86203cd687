package monitor

import (
	"context"
	"fmt"
	stdnet "net"
	"slices"
	"sort"
	"syscall"
	"time"

	"github.com/GriffinCanCode/stubterm/backend/internal/logging"
	"github.com/GriffinCanCode/stubterm/backend/internal/shared/types"
	"github.com/shirou/gopsutil/v4/net"
	"go.uber.org/zap"
)

const (
	// MaxConnections caps ActiveConnections.
	MaxConnections = 100

	statusListen = "LISTEN"
)

// Provider answers local monitoring queries.
type Provider struct {
	source   Source
	sample   time.Duration
	logger   *logging.Logger
	nowMilli func() int64
}

// NewProvider creates a provider. A nil source reads the host; sample is
// the CPU measurement window.
func NewProvider(source Source, sample time.Duration, logger *logging.Logger) *Provider {
	if source == nil {
		source = HostSource{}
	}
	if sample <= 0 {
		sample = time.Second
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Provider{
		source:   source,
		sample:   sample,
		logger:   logger,
		nowMilli: func() int64 { return time.Now().UnixMilli() },
	}
}

// SystemMetrics samples CPU and memory load.
func (p *Provider) SystemMetrics(ctx context.Context) (*types.SystemMetrics, error) {
	cpuPercent, err := p.source.CPUPercent(ctx, p.sample)
	if err != nil {
		return nil, fmt.Errorf("failed to read cpu usage: %w", err)
	}
	memPercent, err := p.source.MemoryPercent(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read memory usage: %w", err)
	}
	return &types.SystemMetrics{
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		Timestamp:     p.nowMilli(),
	}, nil
}

// NetworkInterfaces lists interfaces that are up and not loopback, with
// their first IPv4 address and traffic counters.
func (p *Provider) NetworkInterfaces(ctx context.Context) ([]types.InterfaceInfo, error) {
	ifaces, err := p.source.Interfaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get network interfaces: %w", err)
	}
	counters, err := p.source.IOCounters(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get interface counters: %w", err)
	}

	byName := make(map[string]net.IOCountersStat, len(counters))
	for _, c := range counters {
		byName[c.Name] = c
	}

	result := make([]types.InterfaceInfo, 0, len(ifaces))
	for _, iface := range ifaces {
		if slices.Contains(iface.Flags, "loopback") || !slices.Contains(iface.Flags, "up") {
			continue
		}
		info := types.InterfaceInfo{
			Name: iface.Name,
			IP:   firstIPv4(iface.Addrs),
			MAC:  iface.HardwareAddr,
		}
		if c, ok := byName[iface.Name]; ok {
			info.BytesSent = c.BytesSent
			info.BytesRecv = c.BytesRecv
			info.PacketsSent = c.PacketsSent
			info.PacketsRecv = c.PacketsRecv
		}
		result = append(result, info)
	}
	return result, nil
}

// ListeningPorts lists listening TCP sockets and bound UDP sockets, one
// entry per port and protocol, ordered by port.
func (p *Provider) ListeningPorts(ctx context.Context) ([]types.PortInfo, error) {
	conns, err := p.source.Connections(ctx, "inet")
	if err != nil {
		return nil, fmt.Errorf("failed to get connections: %w", err)
	}

	seen := make(map[string]bool)
	names := make(map[int32]string)
	var result []types.PortInfo
	for _, conn := range conns {
		protocol := protocolOf(conn.Type)
		if !listening(conn, protocol) {
			continue
		}

		key := fmt.Sprintf("%d-%s", conn.Laddr.Port, protocol)
		if seen[key] {
			continue
		}
		seen[key] = true

		result = append(result, types.PortInfo{
			Port:     conn.Laddr.Port,
			Protocol: protocol,
			Address:  conn.Laddr.IP,
			PID:      conn.Pid,
			Process:  p.processName(ctx, conn.Pid, names),
		})
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Port != result[j].Port {
			return result[i].Port < result[j].Port
		}
		return result[i].Protocol < result[j].Protocol
	})
	return result, nil
}

// ActiveConnections lists non-listening TCP connections, at most
// MaxConnections of them.
func (p *Provider) ActiveConnections(ctx context.Context) ([]types.ConnectionInfo, error) {
	conns, err := p.source.Connections(ctx, "tcp")
	if err != nil {
		return nil, fmt.Errorf("failed to get connections: %w", err)
	}

	result := make([]types.ConnectionInfo, 0, min(len(conns), MaxConnections))
	for _, conn := range conns {
		if conn.Status == statusListen {
			continue
		}
		result = append(result, types.ConnectionInfo{
			LocalAddr:  hostPort(conn.Laddr),
			RemoteAddr: hostPort(conn.Raddr),
			Status:     conn.Status,
			PID:        conn.Pid,
		})
		if len(result) == MaxConnections {
			break
		}
	}
	return result, nil
}

func (p *Provider) processName(ctx context.Context, pid int32, cache map[int32]string) string {
	if pid <= 0 {
		return ""
	}
	if name, ok := cache[pid]; ok {
		return name
	}
	name, err := p.source.ProcessName(ctx, pid)
	if err != nil {
		p.logger.Debug("process name unavailable", zap.Int32("pid", pid), zap.Error(err))
	}
	cache[pid] = name
	return name
}

func protocolOf(sockType uint32) string {
	switch sockType {
	case syscall.SOCK_STREAM:
		return "tcp"
	case syscall.SOCK_DGRAM:
		return "udp"
	default:
		return "unknown"
	}
}

// listening accepts TCP sockets in LISTEN and UDP sockets with no peer.
func listening(conn net.ConnectionStat, protocol string) bool {
	switch protocol {
	case "tcp":
		return conn.Status == statusListen
	case "udp":
		return conn.Raddr.Port == 0 && conn.Laddr.Port != 0
	default:
		return false
	}
}

func firstIPv4(addrs net.InterfaceAddrList) string {
	for _, addr := range addrs {
		ip, _, err := stdnet.ParseCIDR(addr.Addr)
		if err != nil {
			ip = stdnet.ParseIP(addr.Addr)
		}
		if ip != nil && !ip.IsLoopback() && ip.To4() != nil {
			return ip.String()
		}
	}
	return ""
}

func hostPort(addr net.Addr) string {
	if addr.IP == "" && addr.Port == 0 {
		return ""
	}
	return stdnet.JoinHostPort(addr.IP, fmt.Sprint(addr.Port))
}
