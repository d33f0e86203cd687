package terminal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/GriffinCanCode/stubterm/backend/internal/protocol/codec"
	"github.com/GriffinCanCode/stubterm/backend/internal/protocol/stubtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// shellLink runs scripts directly against a fake shell.
type shellLink struct {
	shell *stubtest.Shell

	mu      sync.Mutex
	scripts []string
	fail    error
	rewrite func(out []byte) []byte
	gate    chan struct{}
}

func newShellLink() *shellLink {
	return &shellLink{shell: stubtest.NewShell()}
}

func (l *shellLink) Exchange(ctx context.Context, script string) ([]byte, error) {
	l.mu.Lock()
	l.scripts = append(l.scripts, script)
	fail, rewrite, gate := l.fail, l.rewrite, l.gate
	l.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail != nil {
		return nil, fail
	}
	out := l.shell.Run(script)
	if rewrite != nil {
		out = rewrite(out)
	}
	return out, nil
}

func (l *shellLink) set(fn func(l *shellLink)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn(l)
}

func (l *shellLink) last() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.scripts[len(l.scripts)-1]
}

func openSession(t *testing.T, link Exchanger) *Session {
	t.Helper()
	s, err := Open(context.Background(), link, Options{})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestOpenBootstrapsState(t *testing.T) {
	s := openSession(t, newShellLink())

	info := s.Info()
	assert.Equal(t, StateReady, info.State)
	assert.Equal(t, "Linux", info.Kind)
	assert.Equal(t, "/var/www", info.CurrentPath)
	assert.Equal(t, "www-data", info.CurrentUser)
	assert.Equal(t, "web01", info.Hostname)
	assert.Equal(t, "/bin/sh", info.ExecPath)
	assert.False(t, info.IsWindows)
	assert.True(t, strings.HasPrefix(info.SessionID, "sess_"))
}

func TestOpenMissingFieldsIsBootstrapError(t *testing.T) {
	link := newShellLink()
	link.rewrite = func(out []byte) []byte {
		return []byte(strings.Replace(string(out), "user=www-data", "user=", 1))
	}

	_, err := Open(context.Background(), link, Options{})

	var be *BootstrapError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, []string{"user"}, be.Missing)
}

func TestOpenRelativeDirectoryIsBootstrapError(t *testing.T) {
	link := newShellLink()
	link.rewrite = func(out []byte) []byte {
		return []byte(strings.Replace(string(out), "cwd=/var/www", "cwd=www", 1))
	}

	_, err := Open(context.Background(), link, Options{})

	var be *BootstrapError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, []string{"cwd"}, be.Missing)
	assert.Contains(t, be.Error(), `"www"`)
}

func TestOpenWithoutSentinelsIsBootstrapError(t *testing.T) {
	link := newShellLink()
	link.rewrite = func([]byte) []byte { return []byte("<html>hello</html>") }

	_, err := Open(context.Background(), link, Options{})

	var be *BootstrapError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, []string{"kind", "cwd", "user", "exec"}, be.Missing)
}

func TestOpenTransportErrorPropagates(t *testing.T) {
	boom := errors.New("connection refused")
	link := newShellLink()
	link.fail = boom

	_, err := Open(context.Background(), link, Options{})

	assert.ErrorIs(t, err, boom)
	var be *BootstrapError
	assert.False(t, errors.As(err, &be))
}

func TestExecuteTracksDirectory(t *testing.T) {
	s := openSession(t, newShellLink())

	res, err := s.Execute(context.Background(), "cd /tmp && pwd")
	require.NoError(t, err)
	assert.Equal(t, "/tmp", strings.TrimSpace(res.Output))
	assert.Equal(t, "/tmp", res.CurrentPath)
	assert.Nil(t, res.Drift)
	assert.Equal(t, "/tmp", s.Info().CurrentPath)

	res, err = s.Execute(context.Background(), "pwd")
	require.NoError(t, err)
	assert.Equal(t, "/tmp\n", res.Output)
}

func TestExecuteReturnsExactOutput(t *testing.T) {
	s := openSession(t, newShellLink())

	res, err := s.Execute(context.Background(), "echo hello")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", res.Output)

	res, err = s.Execute(context.Background(), "true")
	require.NoError(t, err)
	assert.Equal(t, "", res.Output)
}

func TestExecuteFailedCdKeepsDirectory(t *testing.T) {
	s := openSession(t, newShellLink())

	res, err := s.Execute(context.Background(), "cd /nonexistent")
	require.NoError(t, err)
	assert.Equal(t, "/var/www", res.CurrentPath)
	assert.Nil(t, res.Drift)
}

func TestExecuteDriftKeepsDirectory(t *testing.T) {
	link := newShellLink()
	s := openSession(t, link)

	link.set(func(l *shellLink) {
		l.rewrite = func([]byte) []byte { return []byte("partial output") }
	})
	res, err := s.Execute(context.Background(), "cd /tmp")

	require.NoError(t, err)
	require.NotNil(t, res.Drift)
	assert.Equal(t, "/var/www", res.Drift.KeptCwd)
	assert.Equal(t, "partial output", res.Output)
	assert.Equal(t, "/var/www", s.Info().CurrentPath)
	assert.Equal(t, []string{"cd /tmp"}, s.History())
}

func TestExecuteRelativeTrailerIsDrift(t *testing.T) {
	link := newShellLink()
	s := openSession(t, link)

	sentinel := "__STUBTERM_FIXED__"
	s.sentinel = func() string { return sentinel }
	link.set(func(l *shellLink) {
		l.rewrite = func([]byte) []byte {
			return []byte("out\n\n" + sentinel + "\nrelative/dir\n" + sentinel + "\n")
		}
	})

	res, err := s.Execute(context.Background(), "ls")
	require.NoError(t, err)
	require.NotNil(t, res.Drift)
	assert.Equal(t, "out\n", res.Output)
	assert.Equal(t, "/var/www", s.Info().CurrentPath)
}

func TestExecuteTransportErrorLeavesStateUntouched(t *testing.T) {
	link := newShellLink()
	s := openSession(t, link)

	boom := errors.New("timeout")
	link.set(func(l *shellLink) { l.fail = boom })

	_, err := s.Execute(context.Background(), "cd /tmp")
	assert.ErrorIs(t, err, boom)

	info := s.Info()
	assert.Equal(t, "/var/www", info.CurrentPath)
	assert.Equal(t, StateReady, info.State)
	assert.Empty(t, s.History())
}

func TestHistoryNavigation(t *testing.T) {
	s := openSession(t, newShellLink())

	assert.Equal(t, "", s.Previous())
	assert.Equal(t, "", s.Next())

	commands := []string{"pwd", "whoami", "echo a", "id"}
	for _, c := range commands {
		_, err := s.Execute(context.Background(), c)
		require.NoError(t, err)
	}

	n := len(commands)
	var got string
	for i := 0; i < n+5; i++ {
		got = s.Previous()
	}
	assert.Equal(t, "pwd", got)
	for i := 0; i < n+5; i++ {
		got = s.Next()
	}
	assert.Equal(t, "id", got)

	assert.Equal(t, "echo a", s.Previous())
	_, err := s.Execute(context.Background(), "hostname")
	require.NoError(t, err)
	assert.Equal(t, "hostname", s.Previous())
}

func TestSetEnvAppliedOnEveryCommand(t *testing.T) {
	link := newShellLink()
	s := openSession(t, link)

	require.NoError(t, s.SetEnv("GREETING", "it's here"))
	res, err := s.Execute(context.Background(), "echo $GREETING")
	require.NoError(t, err)
	assert.Equal(t, "it's here\n", res.Output)

	res, err = s.Execute(context.Background(), "printenv GREETING")
	require.NoError(t, err)
	assert.Equal(t, "it's here\n", res.Output)
	assert.Contains(t, link.last(), `export GREETING='it'\''s here'`)
}

func TestSetEnvRejectsBadName(t *testing.T) {
	s := openSession(t, newShellLink())

	assert.ErrorIs(t, s.SetEnv("1BAD", "x"), ErrInvalidEnvName)
	assert.ErrorIs(t, s.SetEnv("A=B", "x"), ErrInvalidEnvName)
}

func TestGetEnvQueriesRemote(t *testing.T) {
	link := newShellLink()
	s := openSession(t, link)

	value, err := s.GetEnv(context.Background(), "HOME")
	require.NoError(t, err)
	assert.Equal(t, "/var/www", value)

	require.NoError(t, s.SetEnv("STAGED", "yes"))
	value, err = s.GetEnv(context.Background(), "STAGED")
	require.NoError(t, err)
	assert.Equal(t, "yes", value)

	link.shell.Env["REMOTE_ONLY"] = "server"
	value, err = s.GetEnv(context.Background(), "REMOTE_ONLY")
	require.NoError(t, err)
	assert.Equal(t, "server", value)

	value, err = s.GetEnv(context.Background(), "UNSET_VAR")
	require.NoError(t, err)
	assert.Equal(t, "", value)

	assert.Empty(t, s.History())
	assert.Equal(t, "/var/www", s.Info().CurrentPath)
}

func TestQueryWithoutFrameIsMalformed(t *testing.T) {
	link := newShellLink()
	s := openSession(t, link)
	link.set(func(l *shellLink) {
		l.rewrite = func([]byte) []byte { return []byte("<html>blocked</html>") }
	})

	_, err := s.GetEnv(context.Background(), "HOME")
	var malformed *codec.MalformedResponseError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, "frame not found", malformed.Reason)

	_, err = s.Environment(context.Background())
	assert.ErrorAs(t, err, &malformed)

	_, err = RunOnce(context.Background(), link, Posix{}, "", "pwd")
	assert.ErrorAs(t, err, &malformed)
}

func TestEnvironmentListing(t *testing.T) {
	s := openSession(t, newShellLink())
	require.NoError(t, s.SetEnv("LANG", "C"))

	env, err := s.Environment(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "C", env["LANG"])
	assert.Equal(t, "/var/www", env["HOME"])
	assert.Equal(t, map[string]string{"LANG": "C"}, s.StagedEnv())
}

func TestPromptAndWelcome(t *testing.T) {
	s := openSession(t, newShellLink())

	assert.Equal(t, "www-data@web01:/var/www$ ", s.Prompt())

	s.SetPromptTemplate("[{kind}] {cwd} $ ")
	assert.Equal(t, "[Linux] /var/www $ ", s.Prompt())

	welcome := s.Welcome()
	assert.Contains(t, welcome, "Connected to web01 (Linux) as www-data")
	assert.Contains(t, welcome, s.ID().String())
}

func TestRootPrompt(t *testing.T) {
	link := newShellLink()
	link.shell.User = "root"
	s := openSession(t, link)

	assert.Equal(t, "root@web01:/var/www# ", s.Prompt())
}

func TestTranscript(t *testing.T) {
	s, err := Open(context.Background(), newShellLink(), Options{TranscriptSize: 2})
	require.NoError(t, err)
	defer s.Close()

	for _, c := range []string{"echo 1", "echo 2", "echo 3"} {
		_, err := s.Execute(context.Background(), c)
		require.NoError(t, err)
	}

	entries := s.Transcript()
	require.Len(t, entries, 2)
	assert.Equal(t, "echo 2", entries[0].Command)
	assert.Equal(t, "3\n", entries[1].Output)
	assert.Len(t, s.History(), 3)
}

func TestConcurrentExecuteNeverInterleaves(t *testing.T) {
	link := newShellLink()
	for i := 0; i < 8; i++ {
		link.shell.AddDir(fmt.Sprintf("/srv/d%d", i))
	}
	s := openSession(t, link)

	var wg sync.WaitGroup
	results := make([]*Result, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := s.Execute(context.Background(), fmt.Sprintf("cd /srv/d%d && pwd", i))
			if assert.NoError(t, err) {
				results[i] = res
			}
		}(i)
	}
	wg.Wait()

	final := s.Info().CurrentPath
	matched := false
	for i, res := range results {
		require.NotNil(t, res)
		want := fmt.Sprintf("/srv/d%d", i)
		assert.Equal(t, want, res.CurrentPath)
		assert.Equal(t, want+"\n", res.Output)
		if final == want {
			matched = true
		}
	}
	assert.True(t, matched, "final cwd %q is not one command's result", final)
	assert.Len(t, s.History(), 8)
}

func TestCloseCancelsWaitAndRejectsLaterCalls(t *testing.T) {
	link := newShellLink()
	s, err := Open(context.Background(), link, Options{})
	require.NoError(t, err)

	link.set(func(l *shellLink) { l.gate = make(chan struct{}) })

	done := make(chan error, 1)
	go func() {
		_, err := s.Execute(context.Background(), "pwd")
		done <- err
	}()

	require.Eventually(t, func() bool { return s.State() == StateExecuting }, time.Second, 5*time.Millisecond)
	s.Close()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("close did not release the in-flight command")
	}

	assert.Equal(t, StateClosed, s.State())
	_, err = s.Execute(context.Background(), "pwd")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.SetEnv("A", "b"), ErrClosed)
}

func TestTranscriptRing(t *testing.T) {
	tr := NewTranscript(3)
	for i := 0; i < 5; i++ {
		tr.Add(Entry{Command: fmt.Sprint(i)})
	}
	entries := tr.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "2", entries[0].Command)
	assert.Equal(t, "4", entries[2].Command)
	assert.Equal(t, 3, tr.Len())
}

func TestRunOnceLeavesNoState(t *testing.T) {
	link := newShellLink()

	out, err := RunOnce(context.Background(), link, Posix{}, "/tmp", "pwd")
	require.NoError(t, err)
	assert.Equal(t, "/tmp", out)

	out, err = RunOnce(context.Background(), link, nil, "", "whoami")
	require.NoError(t, err)
	assert.Equal(t, "www-data", out)
	assert.NotContains(t, link.last(), "cd ")
}
