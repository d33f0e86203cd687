package terminal

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/GriffinCanCode/stubterm/backend/internal/logging"
	"github.com/GriffinCanCode/stubterm/backend/internal/shared/id"
	"go.uber.org/zap"
)

const defaultTranscriptSize = 500

var requiredFields = []string{"kind", "cwd", "user", "exec"}

// Options configures a new session.
type Options struct {
	Dialect        Dialect
	Logger         *logging.Logger
	PromptTemplate string
	TranscriptSize int
	// Sentinel overrides the sentinel generator. Tests pin it.
	Sentinel func() string
}

// Session is the client-side state of one remote pseudo-terminal.
type Session struct {
	id        id.SessionID
	link      Exchanger
	dialect   Dialect
	logger    *logging.Logger
	sentinel  func() string
	createdAt time.Time

	// exec serializes remote commands; mu guards the fields below.
	exec sync.Mutex
	mu   sync.RWMutex

	state        State
	kind         string
	cwd          string
	user         string
	host         string
	execPath     string
	env          map[string]string
	history      []string
	cursor       int
	prompt       string
	lastActivity time.Time
	transcript   *Transcript

	closing context.Context
	close   context.CancelFunc
}

// Open creates a session over link and runs the bootstrap probe. On any
// error the session is discarded.
func Open(ctx context.Context, link Exchanger, opts Options) (*Session, error) {
	if opts.Dialect == nil {
		opts.Dialect = Posix{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.Sentinel == nil {
		opts.Sentinel = id.NewSentinel
	}
	if opts.PromptTemplate == "" {
		opts.PromptTemplate = opts.Dialect.Prompt()
	}
	if opts.TranscriptSize <= 0 {
		opts.TranscriptSize = defaultTranscriptSize
	}

	closing, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:         id.NewSessionID(),
		link:       link,
		dialect:    opts.Dialect,
		logger:     opts.Logger,
		sentinel:   opts.Sentinel,
		createdAt:  time.Now(),
		state:      StateUninitialized,
		env:        make(map[string]string),
		prompt:     opts.PromptTemplate,
		transcript: NewTranscript(opts.TranscriptSize),
		closing:    closing,
		close:      cancel,
	}
	s.logger = &logging.Logger{Logger: s.logger.With(zap.String("session_id", s.id.String()))}

	if err := s.bootstrap(ctx); err != nil {
		cancel()
		return nil, err
	}
	return s, nil
}

func (s *Session) bootstrap(ctx context.Context) error {
	sentinel := s.sentinel()
	raw, err := s.link.Exchange(ctx, s.dialect.Bootstrap(sentinel))
	if err != nil {
		return err
	}

	_, inner, _ := between(string(raw), sentinel)
	fields := parseFields(inner)

	var missing []string
	for _, key := range requiredFields {
		if fields[key] == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return &BootstrapError{Missing: missing, Raw: string(raw)}
	}
	if !s.dialect.IsAbs(fields["cwd"]) {
		return &BootstrapError{
			Missing: []string{"cwd"},
			Reason:  fmt.Sprintf("relative directory %q", fields["cwd"]),
			Raw:     string(raw),
		}
	}

	s.mu.Lock()
	s.kind = fields["kind"]
	s.cwd = fields["cwd"]
	s.user = fields["user"]
	s.execPath = fields["exec"]
	s.host = fields["host"]
	s.state = StateReady
	s.lastActivity = time.Now()
	s.mu.Unlock()

	s.logger.Info("terminal ready",
		zap.String("kind", fields["kind"]),
		zap.String("cwd", fields["cwd"]),
		zap.String("user", fields["user"]))
	return nil
}

// ID returns the session id.
func (s *Session) ID() id.SessionID {
	return s.id
}

// Execute runs command in the tracked directory and environment. A
// transport or protocol failure leaves the session state untouched.
func (s *Session) Execute(ctx context.Context, command string) (*Result, error) {
	s.exec.Lock()
	defer s.exec.Unlock()

	ctx, cancel := s.bind(ctx)
	defer cancel()

	s.mu.Lock()
	if s.state != StateReady {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	s.state = StateExecuting
	cwd, env := s.cwd, s.envCopy()
	s.mu.Unlock()

	sentinel := s.sentinel()
	raw, err := s.link.Exchange(ctx, s.dialect.Wrap(cwd, env, command, sentinel))

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateExecuting {
		s.state = StateReady
	}
	if err != nil {
		return nil, err
	}

	output, next, ok := splitTrailer(string(raw), sentinel)
	result := &Result{Output: output, CurrentPath: cwd}
	switch {
	case !ok:
		result.Drift = &StateDriftWarning{Command: command, Reason: "trailer not found", KeptCwd: cwd}
	case !s.dialect.IsAbs(next):
		result.Drift = &StateDriftWarning{Command: command, Reason: fmt.Sprintf("unusable directory %q", next), KeptCwd: cwd}
	default:
		result.CurrentPath = next
		s.cwd = next
	}
	if result.Drift != nil {
		s.logger.Warn("terminal state drift", zap.Error(result.Drift))
	}

	s.history = append(s.history, command)
	s.cursor = len(s.history)
	s.lastActivity = time.Now()
	s.transcript.Add(Entry{Command: command, Output: output, Path: result.CurrentPath, At: s.lastActivity})
	return result, nil
}

// SetEnv stages an assignment. It is applied on the next command and every
// command after it.
func (s *Session) SetEnv(name, value string) error {
	if !ValidEnvName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidEnvName, name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return ErrClosed
	}
	s.env[name] = value
	return nil
}

// GetEnv asks the remote shell for the value of name, with the session's
// directory and assignments applied. An unset variable yields "".
func (s *Session) GetEnv(ctx context.Context, name string) (string, error) {
	if !ValidEnvName(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidEnvName, name)
	}
	value, err := s.Query(ctx, s.dialect.GetVar(name))
	if err != nil {
		return "", err
	}
	if s.dialect.IsWindows() && value == "%"+name+"%" {
		return "", nil
	}
	return value, nil
}

// Environment lists the remote environment as the next command would see it.
func (s *Session) Environment(ctx context.Context) (map[string]string, error) {
	body, err := s.Query(ctx, s.dialect.ListVars())
	if err != nil {
		return nil, err
	}
	env := make(map[string]string)
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimRight(line, "\r")
		if k, v, ok := strings.Cut(line, "="); ok && ValidEnvName(k) {
			env[k] = v
		}
	}
	return env, nil
}

// StagedEnv returns the assignments the session applies to every command.
func (s *Session) StagedEnv() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.envCopy()
}

// Query runs a framed script with the session's directory and environment
// applied, without touching history or the tracked directory.
func (s *Session) Query(ctx context.Context, query string) (string, error) {
	s.exec.Lock()
	defer s.exec.Unlock()

	ctx, cancel := s.bind(ctx)
	defer cancel()

	s.mu.RLock()
	if s.state != StateReady {
		s.mu.RUnlock()
		return "", ErrClosed
	}
	cwd, env := s.cwd, s.envCopy()
	s.mu.RUnlock()

	sentinel := s.sentinel()
	raw, err := s.link.Exchange(ctx, s.dialect.Frame(cwd, env, query, sentinel))
	if err != nil {
		return "", err
	}
	body, ok := frameBody(string(raw), sentinel)
	if !ok {
		s.logger.Warn("terminal query frame not found", zap.String("query", query))
		return "", errFrameNotFound
	}
	return body, nil
}

// Previous moves the history cursor back and returns the command there.
// It stops at the oldest command. Empty history yields "".
func (s *Session) Previous() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.history) == 0 {
		return ""
	}
	if s.cursor > 0 {
		s.cursor--
	}
	return s.history[s.cursor]
}

// Next moves the history cursor forward and returns the command there. It
// stops at the most recent command.
func (s *Session) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.history) == 0 {
		return ""
	}
	if s.cursor < len(s.history)-1 {
		s.cursor++
	} else {
		s.cursor = len(s.history) - 1
	}
	return s.history[s.cursor]
}

// History returns every command issued, oldest first.
func (s *Session) History() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.history...)
}

// Transcript returns the retained commands with their output.
func (s *Session) Transcript() []Entry {
	return s.transcript.Entries()
}

// Prompt renders the prompt template for the current state.
func (s *Session) Prompt() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sign := "$"
	if s.user == "root" {
		sign = "#"
	}
	return strings.NewReplacer(
		"{user}", s.user,
		"{host}", s.host,
		"{cwd}", s.cwd,
		"{kind}", s.kind,
		"$ ", sign+" ",
	).Replace(s.prompt)
}

// SetPromptTemplate replaces the prompt template. Placeholders are {user},
// {host}, {cwd} and {kind}.
func (s *Session) SetPromptTemplate(tmpl string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tmpl == "" {
		tmpl = s.dialect.Prompt()
	}
	s.prompt = tmpl
}

// Welcome returns the banner shown when the terminal opens.
func (s *Session) Welcome() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	host := s.host
	if host == "" {
		host = "remote host"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Connected to %s (%s) as %s\n", host, s.kind, s.user)
	fmt.Fprintf(&b, "Shell: %s\n", s.execPath)
	fmt.Fprintf(&b, "Session %s opened %s\n", s.id, s.createdAt.Format(time.RFC3339))
	b.WriteString("Each command runs in a fresh process; cd and environment changes are replayed by the client.\n")
	return b.String()
}

// Info returns a snapshot of the session.
func (s *Session) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Info{
		SessionID:    s.id.String(),
		State:        s.state,
		Kind:         s.kind,
		CurrentPath:  s.cwd,
		CurrentUser:  s.user,
		Hostname:     s.host,
		ExecPath:     s.execPath,
		IsWindows:    s.dialect.IsWindows(),
		HistoryLen:   len(s.history),
		CreatedAt:    s.createdAt,
		LastActivity: s.lastActivity,
	}
}

// State returns the lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Close stops any in-flight wait and marks the session closed. The stub
// may still finish a command it already received.
func (s *Session) Close() {
	s.close()

	s.exec.Lock()
	defer s.exec.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateClosed {
		s.state = StateClosed
		s.logger.Info("terminal closed", zap.Int("commands", len(s.history)))
	}
}

// bind derives a context that is also cancelled when the session closes.
func (s *Session) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.closing, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (s *Session) envCopy() map[string]string {
	env := make(map[string]string, len(s.env))
	for k, v := range s.env {
		env[k] = v
	}
	return env
}
