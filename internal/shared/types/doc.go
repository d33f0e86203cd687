// Package types holds the records shared between the registry, the store
// and the API: shell records, system snapshots and local monitor readings.
//
// Core Types:
//   - Shell: one registered stub and its connection settings
//   - ShellFilter, ShellPatch: list and update arguments
//   - SystemInfo: remote snapshot assembled by InitShell
//   - TerminalInfo: externally visible terminal state
//   - InterfaceInfo, PortInfo, ConnectionInfo, SystemMetrics: local monitor
//
// Example Usage:
//
//	shell := &types.Shell{
//	    Location: "http://host/x.php",
//	    Type:     types.ShellPosix,
//	}
package types
