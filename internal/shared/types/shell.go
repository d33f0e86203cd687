package types

import "time"

// ShellType selects the remote dialect.
type ShellType string

const (
	ShellPosix   ShellType = "posix"
	ShellWindows ShellType = "windows"
)

// Valid reports whether t is a known dialect.
func (t ShellType) Valid() bool {
	return t == ShellPosix || t == ShellWindows
}

// ShellStatus is the last known reachability of a stub.
type ShellStatus string

const (
	StatusUnknown ShellStatus = "unknown"
	StatusAlive   ShellStatus = "alive"
	StatusDead    ShellStatus = "dead"
)

// Shell is one registered stub. Credential is the per-shell obfuscation
// key override (base64); empty means the profile key.
type Shell struct {
	ID         uint        `json:"id"`
	Location   string      `json:"location"`
	Type       ShellType   `json:"type"`
	SourceIP   string      `json:"source_ip"`
	Credential string      `json:"credential,omitempty"`
	Encoding   string      `json:"encoding"`
	Status     ShellStatus `json:"status"`
	Label      string      `json:"label,omitempty"`
	Note       string      `json:"note,omitempty"`
	LastSeenAt *time.Time  `json:"last_seen_at,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// ShellFilter narrows GetShellList. Zero fields match everything; Query is
// a case-insensitive substring of location, label or note.
type ShellFilter struct {
	Type   ShellType   `form:"type" json:"type,omitempty"`
	Status ShellStatus `form:"status" json:"status,omitempty"`
	Query  string      `form:"q" json:"query,omitempty"`
}

// ShellPatch carries the mutable fields of a shell. Nil leaves a field as is.
type ShellPatch struct {
	Location   *string    `json:"location,omitempty"`
	Type       *ShellType `json:"type,omitempty"`
	Credential *string    `json:"credential,omitempty"`
	Encoding   *string    `json:"encoding,omitempty"`
	Label      *string    `json:"label,omitempty"`
	Note       *string    `json:"note,omitempty"`
}

// SystemInfo is the snapshot gathered by InitShell. Sections whose probe
// failed stay empty and are named in Warnings.
type SystemInfo struct {
	ShellID   uint              `json:"shell_id"`
	Hostname  string            `json:"hostname"`
	OS        string            `json:"os"`
	Kernel    string            `json:"kernel"`
	Arch      string            `json:"arch"`
	Distro    string            `json:"distro"`
	User      string            `json:"user"`
	Identity  string            `json:"identity"`
	Addresses []string          `json:"addresses"`
	Env       map[string]string `json:"env"`
	Warnings  []string          `json:"warnings,omitempty"`
	TakenAt   time.Time         `json:"taken_at"`
}

// TerminalInfo is the externally visible part of a terminal session.
type TerminalInfo struct {
	ShellID      uint      `json:"shell_id"`
	SessionID    string    `json:"session_id"`
	State        string    `json:"state"`
	CurrentPath  string    `json:"currentPath"`
	CurrentUser  string    `json:"currentUser"`
	Hostname     string    `json:"hostname"`
	IsWindows    bool      `json:"isWindows"`
	ExecPath     string    `json:"execPath"`
	HistoryLen   int       `json:"historyLength"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}

// CommandResult is what one ExecuteCommand returns through the API.
type CommandResult struct {
	Output      string `json:"output"`
	CurrentPath string `json:"currentPath"`
	Drift       bool   `json:"drift,omitempty"`
}

// HistoryEntry is one command and the output it produced.
type HistoryEntry struct {
	Command string    `json:"command"`
	Output  string    `json:"output"`
	Path    string    `json:"path"`
	At      time.Time `json:"at"`
}
