package types

// InterfaceInfo describes one local network interface.
type InterfaceInfo struct {
	Name        string `json:"name"`
	IP          string `json:"ip"`
	MAC         string `json:"mac"`
	BytesSent   uint64 `json:"bytes_sent"`
	BytesRecv   uint64 `json:"bytes_recv"`
	PacketsSent uint64 `json:"packets_sent"`
	PacketsRecv uint64 `json:"packets_recv"`
}

// PortInfo is one listening socket.
type PortInfo struct {
	Port     uint32 `json:"port"`
	Protocol string `json:"protocol"`
	Address  string `json:"address"`
	PID      int32  `json:"pid"`
	Process  string `json:"process"`
}

// ConnectionInfo is one established (non-listening) TCP connection.
type ConnectionInfo struct {
	LocalAddr  string `json:"local_addr"`
	RemoteAddr string `json:"remote_addr"`
	Status     string `json:"status"`
	PID        int32  `json:"pid"`
}

// SystemMetrics is a point-in-time reading of the local host.
type SystemMetrics struct {
	CPUPercent    float64 `json:"cpu"`
	MemoryPercent float64 `json:"memory"`
	Timestamp     int64   `json:"time"`
}
