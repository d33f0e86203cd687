package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/GriffinCanCode/stubterm/backend/internal/infrastructure/database"
	"github.com/GriffinCanCode/stubterm/backend/internal/logging"
	"github.com/GriffinCanCode/stubterm/backend/internal/protocol/codec"
	"github.com/GriffinCanCode/stubterm/backend/internal/providers/http/client"
	"github.com/GriffinCanCode/stubterm/backend/internal/providers/stub"
	"github.com/GriffinCanCode/stubterm/backend/internal/providers/terminal"
	"github.com/GriffinCanCode/stubterm/backend/internal/shared/charset"
	"github.com/GriffinCanCode/stubterm/backend/internal/shared/types"
	"github.com/GriffinCanCode/stubterm/backend/internal/shared/utils"
	"go.uber.org/zap"
)

// Store persists shell records.
type Store interface {
	Create(ctx context.Context, shell *types.Shell, fingerprint string) error
	Get(ctx context.Context, id uint) (*types.Shell, error)
	List(ctx context.Context, filter types.ShellFilter) ([]types.Shell, error)
	Update(ctx context.Context, shell *types.Shell, fingerprint string) error
	SetStatus(ctx context.Context, id uint, status types.ShellStatus, seen time.Time) error
	Delete(ctx context.Context, id uint) error
}

// Recorder receives registry metrics.
type Recorder interface {
	SessionOpened(ok bool)
	SetSessionsActive(count int)
	CommandExecuted(ok, drift bool)
	ProbeCompleted(alive bool)
	SetShellsRegistered(count int)
}

type nopRecorder struct{}

func (nopRecorder) SessionOpened(bool)         {}
func (nopRecorder) SetSessionsActive(int)      {}
func (nopRecorder) CommandExecuted(bool, bool) {}
func (nopRecorder) ProbeCompleted(bool)        {}
func (nopRecorder) SetShellsRegistered(int)    {}

// Options configures a Manager. Store is required.
type Options struct {
	Store     Store
	Profile   codec.Profile
	Transport *client.Client
	Logger    *logging.Logger
	Recorder  Recorder

	TranscriptSize   int
	ProbeConcurrency int

	// OnSessionOpen and OnSessionClose run after a terminal is registered
	// or released. They must not call back into the Manager.
	OnSessionOpen  func(shellID uint, info types.TerminalInfo)
	OnSessionClose func(shellID uint, sessionID string)
}

// entry is one live terminal.
type entry struct {
	shellID uint
	session *terminal.Session
	link    *stub.Link
}

// Manager owns the shell records and the live terminal sessions.
type Manager struct {
	store     Store
	profile   codec.Profile
	codec     *codec.Codec
	transport *client.Client
	logger    *logging.Logger
	recorder  Recorder
	ident     *utils.ShellIdentifier
	locks     *keyedLock

	transcriptSize   int
	probeConcurrency int
	onOpen           func(uint, types.TerminalInfo)
	onClose          func(uint, string)

	mu       sync.RWMutex
	sessions map[uint]*entry
}

// NewManager validates the profile and builds a manager.
func NewManager(opts Options) (*Manager, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("registry: store is required")
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.Profile.Name == "" && opts.Profile.ResponseTemplate == "" {
		opts.Profile = codec.DefaultProfile()
	}
	if opts.Transport == nil {
		cfg := client.DefaultConfig()
		cfg.Method = opts.Profile.Method
		cfg.Headers = opts.Profile.HeaderMap()
		opts.Transport = client.NewClient(cfg, opts.Logger)
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	if opts.ProbeConcurrency <= 0 {
		opts.ProbeConcurrency = 8
	}

	c, err := codec.New(opts.Profile)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}

	m := &Manager{
		store:            opts.Store,
		profile:          opts.Profile,
		codec:            c,
		transport:        opts.Transport,
		logger:           opts.Logger,
		recorder:         opts.Recorder,
		ident:            utils.NewShellIdentifier(),
		locks:            newKeyedLock(),
		transcriptSize:   opts.TranscriptSize,
		probeConcurrency: opts.ProbeConcurrency,
		onOpen:           opts.OnSessionOpen,
		onClose:          opts.OnSessionClose,
		sessions:         make(map[uint]*entry),
	}
	m.refreshShellCount(context.Background())
	return m, nil
}

// AddNewShell validates and stores shell, returning its new id.
func (m *Manager) AddNewShell(ctx context.Context, shell types.Shell) (uint, error) {
	shell.ID = 0
	shell.Status = types.StatusUnknown
	shell.LastSeenAt = nil
	if err := normalizeShell(&shell); err != nil {
		return 0, err
	}

	fingerprint := m.ident.Fingerprint(shell.Location, shell.Credential)
	if err := m.store.Create(ctx, &shell, fingerprint); err != nil {
		return 0, m.storeError(0, err)
	}

	m.logger.Info("shell registered",
		zap.Uint("shell_id", shell.ID),
		zap.String("url", shell.Location),
		zap.String("type", string(shell.Type)),
		zap.String("fingerprint", m.ident.ShortFingerprint(fingerprint)))
	m.refreshShellCount(ctx)
	return shell.ID, nil
}

// GetShellList returns shells matching filter, oldest first.
func (m *Manager) GetShellList(ctx context.Context, filter types.ShellFilter) ([]types.Shell, error) {
	return m.store.List(ctx, filter)
}

// GetShell returns one shell.
func (m *Manager) GetShell(ctx context.Context, id uint) (*types.Shell, error) {
	return m.getShell(ctx, id)
}

// UpdateShell applies patch. A change to anything the link is built from
// closes the shell's terminal.
func (m *Manager) UpdateShell(ctx context.Context, id uint, patch types.ShellPatch) (*types.Shell, error) {
	release, err := m.locks.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	shell, err := m.getShell(ctx, id)
	if err != nil {
		return nil, err
	}
	before := *shell

	if patch.Location != nil {
		shell.Location = *patch.Location
	}
	if patch.Type != nil {
		shell.Type = *patch.Type
	}
	if patch.Credential != nil {
		shell.Credential = *patch.Credential
	}
	if patch.Encoding != nil {
		shell.Encoding = *patch.Encoding
	}
	if patch.Label != nil {
		shell.Label = *patch.Label
	}
	if patch.Note != nil {
		shell.Note = *patch.Note
	}
	if err := normalizeShell(shell); err != nil {
		return nil, err
	}

	fingerprint := m.ident.Fingerprint(shell.Location, shell.Credential)
	if err := m.store.Update(ctx, shell, fingerprint); err != nil {
		return nil, m.storeError(id, err)
	}

	if before.Location != shell.Location || before.Type != shell.Type ||
		before.Credential != shell.Credential || before.Encoding != shell.Encoding {
		m.release(id, "shell updated")
	}
	return m.getShell(ctx, id)
}

// DeleteShell closes the shell's terminal and removes the record.
func (m *Manager) DeleteShell(ctx context.Context, id uint) error {
	release, err := m.locks.acquire(ctx, id)
	if err != nil {
		return err
	}
	defer release()

	m.release(id, "shell deleted")
	if err := m.store.Delete(ctx, id); err != nil {
		return m.storeError(id, err)
	}
	m.locks.forget(id)
	m.logger.Info("shell deleted", zap.Uint("shell_id", id))
	m.refreshShellCount(ctx)
	return nil
}

// CreateTerminal opens a terminal for id, replacing any live one. The old
// terminal is only closed once the new one has bootstrapped.
func (m *Manager) CreateTerminal(ctx context.Context, id uint) (*types.TerminalInfo, error) {
	release, err := m.locks.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	e, err := m.openTerminal(ctx, id)
	if err != nil {
		return nil, err
	}
	info := terminalInfo(id, e.session.Info())
	return &info, nil
}

// ExecuteCommand runs command in id's terminal.
func (m *Manager) ExecuteCommand(ctx context.Context, id uint, command string) (*types.CommandResult, error) {
	if err := utils.ValidateCommand(command); err != nil {
		return nil, &ValidationError{Field: "command", Err: err}
	}

	release, err := m.locks.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	e, err := m.terminal(id)
	if err != nil {
		return nil, err
	}

	res, err := e.session.Execute(ctx, command)
	m.recorder.CommandExecuted(err == nil, err == nil && res.Drift != nil)
	if err != nil {
		return nil, m.sessionError(id, err)
	}
	return &types.CommandResult{
		Output:      res.Output,
		CurrentPath: res.CurrentPath,
		Drift:       res.Drift != nil,
	}, nil
}

// Exec runs command once in dir without recording it. An empty dir uses
// the live terminal's directory, or the stub's own when none is open.
func (m *Manager) Exec(ctx context.Context, id uint, dir, command string) (string, error) {
	if err := utils.ValidateCommand(command); err != nil {
		return "", &ValidationError{Field: "command", Err: err}
	}

	release, err := m.locks.acquire(ctx, id)
	if err != nil {
		return "", err
	}
	defer release()

	shell, err := m.getShell(ctx, id)
	if err != nil {
		return "", err
	}
	link, err := m.linkFor(shell)
	if err != nil {
		return "", err
	}
	if dir == "" {
		if e, err := m.terminal(id); err == nil {
			dir = e.session.Info().CurrentPath
		}
	}
	return terminal.RunOnce(ctx, link, terminal.DialectFor(string(shell.Type)), dir, command)
}

// GetTerminalInfo returns a snapshot of id's terminal.
func (m *Manager) GetTerminalInfo(id uint) (*types.TerminalInfo, error) {
	e, err := m.terminal(id)
	if err != nil {
		return nil, err
	}
	info := terminalInfo(id, e.session.Info())
	return &info, nil
}

// GetTerminalEnvironment lists the remote environment as the next command
// will see it.
func (m *Manager) GetTerminalEnvironment(ctx context.Context, id uint) (map[string]string, error) {
	release, err := m.locks.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	e, err := m.terminal(id)
	if err != nil {
		return nil, err
	}
	env, err := e.session.Environment(ctx)
	if err != nil {
		return nil, m.sessionError(id, err)
	}
	return env, nil
}

// GetTerminalVariable asks the remote shell for one variable.
func (m *Manager) GetTerminalVariable(ctx context.Context, id uint, name string) (string, error) {
	release, err := m.locks.acquire(ctx, id)
	if err != nil {
		return "", err
	}
	defer release()

	e, err := m.terminal(id)
	if err != nil {
		return "", err
	}
	value, err := e.session.GetEnv(ctx, name)
	if errors.Is(err, terminal.ErrInvalidEnvName) {
		return "", &ValidationError{Field: "name", Err: err}
	}
	if err != nil {
		return "", m.sessionError(id, err)
	}
	return value, nil
}

// SetTerminalEnvironment stages name=value for every later command.
func (m *Manager) SetTerminalEnvironment(ctx context.Context, id uint, name, value string) error {
	release, err := m.locks.acquire(ctx, id)
	if err != nil {
		return err
	}
	defer release()

	e, err := m.terminal(id)
	if err != nil {
		return err
	}
	err = e.session.SetEnv(name, value)
	if errors.Is(err, terminal.ErrInvalidEnvName) {
		return &ValidationError{Field: "name", Err: err}
	}
	if err != nil {
		return m.sessionError(id, err)
	}
	return nil
}

// GetNextCommand moves id's history cursor forward.
func (m *Manager) GetNextCommand(id uint) (string, error) {
	e, err := m.terminal(id)
	if err != nil {
		return "", err
	}
	return e.session.Next(), nil
}

// GetPreviousCommand moves id's history cursor back.
func (m *Manager) GetPreviousCommand(id uint) (string, error) {
	e, err := m.terminal(id)
	if err != nil {
		return "", err
	}
	return e.session.Previous(), nil
}

// GetTerminalPrompt renders id's prompt.
func (m *Manager) GetTerminalPrompt(id uint) (string, error) {
	e, err := m.terminal(id)
	if err != nil {
		return "", err
	}
	return e.session.Prompt(), nil
}

// SetTerminalPrompt replaces id's prompt template. Empty restores the
// dialect default.
func (m *Manager) SetTerminalPrompt(id uint, template string) (string, error) {
	e, err := m.terminal(id)
	if err != nil {
		return "", err
	}
	e.session.SetPromptTemplate(template)
	return e.session.Prompt(), nil
}

// GetTerminalWelcomeMessage returns id's banner.
func (m *Manager) GetTerminalWelcomeMessage(id uint) (string, error) {
	e, err := m.terminal(id)
	if err != nil {
		return "", err
	}
	return e.session.Welcome(), nil
}

// GetTerminalHistory returns the retained commands of id with their output.
func (m *Manager) GetTerminalHistory(id uint) ([]types.HistoryEntry, error) {
	e, err := m.terminal(id)
	if err != nil {
		return nil, err
	}
	entries := e.session.Transcript()
	history := make([]types.HistoryEntry, len(entries))
	for i, entry := range entries {
		history[i] = types.HistoryEntry{
			Command: entry.Command,
			Output:  entry.Output,
			Path:    entry.Path,
			At:      entry.At,
		}
	}
	return history, nil
}

// ListTerminals returns every live terminal ordered by shell id.
func (m *Manager) ListTerminals() []types.TerminalInfo {
	m.mu.RLock()
	entries := make([]*entry, 0, len(m.sessions))
	for _, e := range m.sessions {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	infos := make([]types.TerminalInfo, 0, len(entries))
	for _, e := range entries {
		infos = append(infos, terminalInfo(e.shellID, e.session.Info()))
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ShellID < infos[j].ShellID })
	return infos
}

// CloseTerminal releases id's terminal. A command in flight stops waiting;
// the stub may still run it.
func (m *Manager) CloseTerminal(id uint) error {
	if !m.release(id, "closed by caller") {
		return &SessionNotFoundError{ID: id, Terminal: true}
	}
	return nil
}

// Close releases every terminal.
func (m *Manager) Close() {
	m.mu.Lock()
	ids := make([]uint, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.release(id, "registry closing")
	}
}

// openTerminal bootstraps a session and swaps it in. Callers hold id's lock.
func (m *Manager) openTerminal(ctx context.Context, id uint) (*entry, error) {
	shell, err := m.getShell(ctx, id)
	if err != nil {
		return nil, err
	}
	link, err := m.linkFor(shell)
	if err != nil {
		return nil, err
	}

	session, err := terminal.Open(ctx, link, terminal.Options{
		Dialect:        terminal.DialectFor(string(shell.Type)),
		Logger:         m.logger.ForShell(id),
		TranscriptSize: m.transcriptSize,
	})
	m.recorder.SessionOpened(err == nil)
	if err != nil {
		m.logger.Warn("terminal bootstrap failed", zap.Uint("shell_id", id), zap.Error(err))
		return nil, err
	}

	e := &entry{shellID: id, session: session, link: link}
	m.mu.Lock()
	old := m.sessions[id]
	m.sessions[id] = e
	active := len(m.sessions)
	m.mu.Unlock()
	m.recorder.SetSessionsActive(active)

	if old != nil {
		m.shutdown(old, "replaced")
	}
	if m.onOpen != nil {
		m.onOpen(id, terminalInfo(id, session.Info()))
	}
	return e, nil
}

// release removes and closes id's terminal, reporting whether one existed.
func (m *Manager) release(id uint, reason string) bool {
	m.mu.Lock()
	e, ok := m.sessions[id]
	delete(m.sessions, id)
	active := len(m.sessions)
	m.mu.Unlock()

	if !ok {
		return false
	}
	m.recorder.SetSessionsActive(active)
	m.shutdown(e, reason)
	return true
}

func (m *Manager) shutdown(e *entry, reason string) {
	e.session.Close()
	m.logger.Debug("terminal released",
		zap.Uint("shell_id", e.shellID),
		zap.String("session_id", e.session.ID().String()),
		zap.String("reason", reason))
	if m.onClose != nil {
		m.onClose(e.shellID, e.session.ID().String())
	}
}

func (m *Manager) terminal(id uint) (*entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, &SessionNotFoundError{ID: id, Terminal: true}
	}
	return e, nil
}

func (m *Manager) getShell(ctx context.Context, id uint) (*types.Shell, error) {
	shell, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, m.storeError(id, err)
	}
	return shell, nil
}

// linkFor builds the codec+transport pair for shell. A credential replaces
// the profile's obfuscation key.
func (m *Manager) linkFor(shell *types.Shell) (*stub.Link, error) {
	c := m.codec
	if shell.Credential != "" {
		var err error
		if c, err = codec.New(m.profile.WithXORKey(shell.Credential)); err != nil {
			return nil, &ValidationError{Field: "credential", Err: err}
		}
	}
	return stub.NewLink(shell.Location, c, m.transport, shell.Encoding, m.logger.ForShell(shell.ID)), nil
}

func (m *Manager) refreshShellCount(ctx context.Context) {
	shells, err := m.store.List(ctx, types.ShellFilter{})
	if err != nil {
		m.logger.Warn("failed to count shells", zap.Error(err))
		return
	}
	m.recorder.SetShellsRegistered(len(shells))
}

func (m *Manager) storeError(id uint, err error) error {
	var dup *database.DuplicateError
	switch {
	case errors.Is(err, database.ErrNotFound):
		return &SessionNotFoundError{ID: id}
	case errors.As(err, &dup):
		return &DuplicateShellError{ExistingID: dup.ExistingID}
	default:
		return err
	}
}

// sessionError maps a closed session to SessionNotFoundError. Everything
// else propagates unchanged.
func (m *Manager) sessionError(id uint, err error) error {
	if errors.Is(err, terminal.ErrClosed) {
		return &SessionNotFoundError{ID: id, Terminal: true}
	}
	return err
}

// normalizeShell fills defaults and validates every field.
func normalizeShell(shell *types.Shell) error {
	shell.Location = strings.TrimSpace(shell.Location)
	if shell.Type == "" {
		shell.Type = types.ShellPosix
	}
	if shell.Encoding == "" {
		shell.Encoding = charset.UTF8
	}

	if err := utils.ValidateLocation(shell.Location); err != nil {
		return &ValidationError{Field: "location", Err: err}
	}
	if !shell.Type.Valid() {
		return &ValidationError{Field: "type", Err: fmt.Errorf("unknown shell type %q", shell.Type)}
	}
	if err := charset.Validate(shell.Encoding); err != nil {
		return &ValidationError{Field: "encoding", Err: err}
	}
	if err := utils.ValidateCredential(shell.Credential); err != nil {
		return &ValidationError{Field: "credential", Err: err}
	}
	if err := utils.ValidateSourceIP(shell.SourceIP); err != nil {
		return &ValidationError{Field: "source_ip", Err: err}
	}
	if err := utils.ValidateLabel(shell.Label); err != nil {
		return &ValidationError{Field: "label", Err: err}
	}
	if err := utils.ValidateNote(shell.Note); err != nil {
		return &ValidationError{Field: "note", Err: err}
	}
	return nil
}

func terminalInfo(shellID uint, info terminal.Info) types.TerminalInfo {
	return types.TerminalInfo{
		ShellID:      shellID,
		SessionID:    info.SessionID,
		State:        info.State.String(),
		CurrentPath:  info.CurrentPath,
		CurrentUser:  info.CurrentUser,
		Hostname:     info.Hostname,
		IsWindows:    info.IsWindows,
		ExecPath:     info.ExecPath,
		HistoryLen:   info.HistoryLen,
		CreatedAt:    info.CreatedAt,
		LastActivity: info.LastActivity,
	}
}
