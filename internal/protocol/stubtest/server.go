package stubtest

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/GriffinCanCode/stubterm/backend/internal/protocol/codec"
)

// Mode selects how the server answers.
type Mode int

const (
	// ModeNormal executes the command and disguises the output.
	ModeNormal Mode = iota
	// ModeForeign answers like an ordinary web page.
	ModeForeign
	// ModeServerError answers 500 without executing.
	ModeServerError
)

// Server is an HTTP stand-in for a deployed stub.
type Server struct {
	*httptest.Server
	Codec *codec.Codec
	Shell *Shell

	mu       sync.Mutex
	mode     Mode
	hook     func(command string)
	received []string
	executed []string
}

// NewServer starts a stub speaking profile. It is closed on test cleanup.
func NewServer(t testing.TB, shell *Shell, profile codec.Profile) *Server {
	t.Helper()

	c, err := codec.New(profile)
	if err != nil {
		t.Fatalf("stub codec: %v", err)
	}
	if shell == nil {
		shell = NewShell()
	}

	s := &Server{Codec: c, Shell: shell}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// SetMode switches the answering mode.
func (s *Server) SetMode(mode Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = mode
}

// SetHook installs fn to run before each command executes. fn may block.
func (s *Server) SetHook(fn func(command string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = fn
}

// Received returns every decoded command, in arrival order.
func (s *Server) Received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.received...)
}

// Executed returns every command that ran to completion.
func (s *Server) Executed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.executed...)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read error", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	mode, hook := s.mode, s.hook
	s.mu.Unlock()

	switch mode {
	case ModeForeign:
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body>It works!</body></html>"))
		return
	case ModeServerError:
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	command, err := s.Codec.DecodeRequest(body)
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.received = append(s.received, command)
	s.mu.Unlock()

	if hook != nil {
		hook(command)
	}
	output := s.Shell.Run(command)

	s.mu.Lock()
	s.executed = append(s.executed, command)
	s.mu.Unlock()

	reply, err := s.Codec.EncodeResponse(output)
	if err != nil {
		http.Error(w, "encode error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json;charset=UTF-8")
	_, _ = w.Write(reply)
}
