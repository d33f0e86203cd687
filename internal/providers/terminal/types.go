package terminal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/GriffinCanCode/stubterm/backend/internal/protocol/codec"
)

// State is the lifecycle state of a session.
type State int32

const (
	StateUninitialized State = iota
	StateReady
	StateExecuting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateExecuting:
		return "executing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

var (
	// ErrClosed is returned by operations on a closed session.
	ErrClosed = errors.New("terminal session is closed")
	// ErrInvalidEnvName rejects variable names the remote shell cannot assign.
	ErrInvalidEnvName = errors.New("invalid environment variable name")
)

// errFrameNotFound means a query reply lacked its sentinel frame, so no
// part of it can be trusted as the command's output.
var errFrameNotFound = &codec.MalformedResponseError{Reason: "frame not found"}

// Exchanger runs one script on the stub and returns its decoded stdout.
type Exchanger interface {
	Exchange(ctx context.Context, script string) ([]byte, error)
}

// BootstrapError means the creation probe did not report every required
// field. The session is discarded.
type BootstrapError struct {
	Missing []string
	// Reason is set when a field was present but unusable.
	Reason string
	Raw    string
}

func (e *BootstrapError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("terminal bootstrap rejected %s: %s", strings.Join(e.Missing, ", "), e.Reason)
	}
	return fmt.Sprintf("terminal bootstrap incomplete: missing %s", strings.Join(e.Missing, ", "))
}

// StateDriftWarning reports a command whose trailer could not be parsed.
// The command's output is still returned and the previous directory kept.
type StateDriftWarning struct {
	Command string
	Reason  string
	KeptCwd string
}

func (w *StateDriftWarning) Error() string {
	return fmt.Sprintf("state drift after %q: %s (keeping %s)", w.Command, w.Reason, w.KeptCwd)
}

// Result is the outcome of one command.
type Result struct {
	Output      string
	CurrentPath string
	// Drift is set when the trailer was unusable.
	Drift *StateDriftWarning
}

// Entry is one command in the session transcript.
type Entry struct {
	Command string
	Output  string
	Path    string
	At      time.Time
}

// Transcript is a fixed-size ring of the most recent entries.
type Transcript struct {
	mu      sync.RWMutex
	entries []Entry
	size    int
	head    int
	count   int
}

// NewTranscript creates a ring holding up to size entries.
func NewTranscript(size int) *Transcript {
	if size <= 0 {
		size = 1
	}
	return &Transcript{entries: make([]Entry, size), size: size}
}

// Add appends e, evicting the oldest entry when full.
func (t *Transcript) Add(e Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries[(t.head+t.count)%t.size] = e
	if t.count < t.size {
		t.count++
	} else {
		t.head = (t.head + 1) % t.size
	}
}

// Entries returns the retained entries, oldest first.
func (t *Transcript) Entries() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Entry, t.count)
	for i := 0; i < t.count; i++ {
		out[i] = t.entries[(t.head+i)%t.size]
	}
	return out
}

// Len returns the number of retained entries.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.count
}

// Info is a snapshot of session state.
type Info struct {
	SessionID    string
	State        State
	Kind         string
	CurrentPath  string
	CurrentUser  string
	Hostname     string
	ExecPath     string
	IsWindows    bool
	HistoryLen   int
	CreatedAt    time.Time
	LastActivity time.Time
}
