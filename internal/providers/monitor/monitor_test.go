package monitor

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v4/net"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	cpu       float64
	memory    float64
	ifaces    net.InterfaceStatList
	counters  []net.IOCountersStat
	conns     map[string][]net.ConnectionStat
	processes map[int32]string
	err       error
	lookups   int
}

func (f *fakeSource) CPUPercent(context.Context, time.Duration) (float64, error) {
	return f.cpu, f.err
}

func (f *fakeSource) MemoryPercent(context.Context) (float64, error) {
	return f.memory, f.err
}

func (f *fakeSource) Interfaces(context.Context) (net.InterfaceStatList, error) {
	return f.ifaces, f.err
}

func (f *fakeSource) IOCounters(context.Context) ([]net.IOCountersStat, error) {
	return f.counters, f.err
}

func (f *fakeSource) Connections(_ context.Context, kind string) ([]net.ConnectionStat, error) {
	return f.conns[kind], f.err
}

func (f *fakeSource) ProcessName(_ context.Context, pid int32) (string, error) {
	f.lookups++
	name, ok := f.processes[pid]
	if !ok {
		return "", fmt.Errorf("no process %d", pid)
	}
	return name, nil
}

func tcp(local uint32, remote uint32, status string, pid int32) net.ConnectionStat {
	return net.ConnectionStat{
		Type:   syscall.SOCK_STREAM,
		Laddr:  net.Addr{IP: "0.0.0.0", Port: local},
		Raddr:  net.Addr{IP: "10.0.0.9", Port: remote},
		Status: status,
		Pid:    pid,
	}
}

func TestSystemMetrics(t *testing.T) {
	p := NewProvider(&fakeSource{cpu: 12.5, memory: 40}, 0, nil)
	p.nowMilli = func() int64 { return 1700000000000 }

	m, err := p.SystemMetrics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12.5, m.CPUPercent)
	assert.Equal(t, 40.0, m.MemoryPercent)
	assert.Equal(t, int64(1700000000000), m.Timestamp)
}

func TestSystemMetricsError(t *testing.T) {
	p := NewProvider(&fakeSource{err: errors.New("no /proc")}, 0, nil)

	_, err := p.SystemMetrics(context.Background())
	assert.ErrorContains(t, err, "no /proc")
}

func TestNetworkInterfacesFiltering(t *testing.T) {
	src := &fakeSource{
		ifaces: net.InterfaceStatList{
			{Name: "lo", Flags: []string{"up", "loopback"}, Addrs: net.InterfaceAddrList{{Addr: "127.0.0.1/8"}}},
			{Name: "eth0", HardwareAddr: "02:42:ac:11:00:02", Flags: []string{"up", "broadcast"},
				Addrs: net.InterfaceAddrList{{Addr: "fe80::42:acff:fe11:2/64"}, {Addr: "172.17.0.2/16"}, {Addr: "172.17.0.3/16"}}},
			{Name: "eth1", Flags: []string{"broadcast"}, Addrs: net.InterfaceAddrList{{Addr: "10.9.0.1/24"}}},
			{Name: "wg0", Flags: []string{"up", "pointtopoint"}},
		},
		counters: []net.IOCountersStat{
			{Name: "eth0", BytesSent: 100, BytesRecv: 200, PacketsSent: 3, PacketsRecv: 4},
		},
	}

	ifaces, err := NewProvider(src, 0, nil).NetworkInterfaces(context.Background())
	require.NoError(t, err)
	require.Len(t, ifaces, 2)

	assert.Equal(t, "eth0", ifaces[0].Name)
	assert.Equal(t, "172.17.0.2", ifaces[0].IP)
	assert.Equal(t, "02:42:ac:11:00:02", ifaces[0].MAC)
	assert.Equal(t, uint64(100), ifaces[0].BytesSent)
	assert.Equal(t, uint64(200), ifaces[0].BytesRecv)

	assert.Equal(t, "wg0", ifaces[1].Name)
	assert.Empty(t, ifaces[1].IP)
	assert.Zero(t, ifaces[1].BytesSent)
}

func TestListeningPorts(t *testing.T) {
	src := &fakeSource{
		conns: map[string][]net.ConnectionStat{
			"inet": {
				tcp(8080, 0, "LISTEN", 42),
				tcp(8080, 0, "LISTEN", 42),
				tcp(22, 0, "LISTEN", 7),
				tcp(443, 51000, "ESTABLISHED", 42),
				{Type: syscall.SOCK_DGRAM, Laddr: net.Addr{IP: "0.0.0.0", Port: 53}, Pid: 9},
				{Type: syscall.SOCK_DGRAM, Laddr: net.Addr{IP: "10.0.0.5", Port: 40000}, Raddr: net.Addr{IP: "8.8.8.8", Port: 53}},
				tcp(9000, 0, "LISTEN", 0),
			},
		},
		processes: map[int32]string{42: "stubterm", 7: "sshd"},
	}

	ports, err := NewProvider(src, 0, nil).ListeningPorts(context.Background())
	require.NoError(t, err)
	require.Len(t, ports, 4)

	assert.Equal(t, uint32(22), ports[0].Port)
	assert.Equal(t, "sshd", ports[0].Process)
	assert.Equal(t, uint32(53), ports[1].Port)
	assert.Equal(t, "udp", ports[1].Protocol)
	assert.Empty(t, ports[1].Process, "unknown pid leaves the name empty")
	assert.Equal(t, uint32(8080), ports[2].Port)
	assert.Equal(t, "tcp", ports[2].Protocol)
	assert.Equal(t, "stubterm", ports[2].Process)
	assert.Equal(t, uint32(9000), ports[3].Port)
	assert.Empty(t, ports[3].Process)

	assert.Equal(t, 3, src.lookups, "each pid is resolved once")
}

func TestActiveConnections(t *testing.T) {
	var conns []net.ConnectionStat
	conns = append(conns, tcp(80, 0, "LISTEN", 1))
	for i := 0; i < MaxConnections+20; i++ {
		conns = append(conns, tcp(uint32(40000+i), 443, "ESTABLISHED", 1))
	}
	src := &fakeSource{conns: map[string][]net.ConnectionStat{"tcp": conns}}

	active, err := NewProvider(src, 0, nil).ActiveConnections(context.Background())
	require.NoError(t, err)
	require.Len(t, active, MaxConnections)

	assert.Equal(t, "0.0.0.0:40000", active[0].LocalAddr)
	assert.Equal(t, "10.0.0.9:443", active[0].RemoteAddr)
	assert.Equal(t, "ESTABLISHED", active[0].Status)
}

func TestHostPort(t *testing.T) {
	assert.Equal(t, "[::1]:22", hostPort(net.Addr{IP: "::1", Port: 22}))
	assert.Empty(t, hostPort(net.Addr{}))
}

func TestHostSourceMemory(t *testing.T) {
	percent, err := HostSource{}.MemoryPercent(context.Background())
	if err != nil {
		t.Skipf("host memory unavailable: %v", err)
	}
	assert.GreaterOrEqual(t, percent, 0.0)
	assert.LessOrEqual(t, percent, 100.0)
}
