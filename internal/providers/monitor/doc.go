// Package monitor reads the local host: CPU and memory load, network
// interfaces, listening sockets and active TCP connections.
//
// Readings come from gopsutil through a Source so the filtering rules can
// be tested without touching the host.
package monitor
