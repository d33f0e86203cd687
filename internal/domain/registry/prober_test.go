package registry

import (
	"context"
	"encoding/base64"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GriffinCanCode/stubterm/backend/internal/infrastructure/database"
	"github.com/GriffinCanCode/stubterm/backend/internal/protocol/codec"
	"github.com/GriffinCanCode/stubterm/backend/internal/protocol/stubtest"
	"github.com/GriffinCanCode/stubterm/backend/internal/shared/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestConnectAlive(t *testing.T) {
	srv := newStub(t)
	rec := &countingRecorder{}
	mgr, _ := setupTestManager(t, func(o *Options) { o.Recorder = rec })
	ctx := context.Background()
	id := addShell(t, mgr, srv)

	alive, err := mgr.TestConnect(ctx, id)
	require.NoError(t, err)
	assert.True(t, alive)

	shell, err := mgr.GetShell(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, types.StatusAlive, shell.Status)
	require.NotNil(t, shell.LastSeenAt)
	assert.WithinDuration(t, time.Now(), *shell.LastSeenAt, 5*time.Second)

	rec.mu.Lock()
	assert.Equal(t, 1, rec.probes[true])
	rec.mu.Unlock()
}

func TestTestConnectFailuresAreFalse(t *testing.T) {
	tests := []struct {
		name string
		mode stubtest.Mode
	}{
		{"foreign page", stubtest.ModeForeign},
		{"server error", stubtest.ModeServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newStub(t)
			srv.SetMode(tt.mode)
			mgr, _ := setupTestManager(t)
			ctx := context.Background()
			id := addShell(t, mgr, srv)

			alive, err := mgr.TestConnect(ctx, id)
			require.NoError(t, err)
			assert.False(t, alive)

			shell, err := mgr.GetShell(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, types.StatusDead, shell.Status)
			assert.Nil(t, shell.LastSeenAt)
		})
	}
}

func TestTestConnectUnreachable(t *testing.T) {
	srv := newStub(t)
	location := srv.URL + "/x.php"
	srv.Close()

	mgr, _ := setupTestManager(t)
	id, err := mgr.AddNewShell(context.Background(), types.Shell{Location: location})
	require.NoError(t, err)

	alive, err := mgr.TestConnect(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, alive)
}

func TestTestConnectWrongKeyIsFalse(t *testing.T) {
	key := base64.StdEncoding.EncodeToString([]byte("0123456789abcdef"))
	srv := stubtest.NewServer(t, nil, codec.DefaultProfile().WithXORKey(key))
	mgr, _ := setupTestManager(t)

	id := addShell(t, mgr, srv)
	alive, err := mgr.TestConnect(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, alive, "garbage output never contains the token")
	assert.Len(t, srv.Executed(), 1, "the stub still ran the probe")
}

func TestTestConnectCancelled(t *testing.T) {
	srv := newStub(t)
	mgr, _ := setupTestManager(t)
	id := addShell(t, mgr, srv)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := mgr.TestConnect(ctx, id)
	assert.ErrorIs(t, err, context.Canceled)

	shell, err := mgr.GetShell(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, types.StatusUnknown, shell.Status)
}

func TestProbeAll(t *testing.T) {
	up, down := newStub(t), newStub(t)
	down.SetMode(stubtest.ModeForeign)
	mgr, _ := setupTestManager(t, func(o *Options) { o.ProbeConcurrency = 2 })
	ctx := context.Background()

	upID := addShell(t, mgr, up)
	downID := addShell(t, mgr, down)

	results, err := mgr.ProbeAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[uint]bool{upID: true, downID: false}, results)

	alive, err := mgr.GetShellList(ctx, types.ShellFilter{Status: types.StatusAlive})
	require.NoError(t, err)
	require.Len(t, alive, 1)
	assert.Equal(t, upID, alive[0].ID)
}

func TestProberRun(t *testing.T) {
	srv := newStub(t)
	mgr, _ := setupTestManager(t)
	id := addShell(t, mgr, srv)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewProber(mgr, 20*time.Millisecond, nil).Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		shell, err := mgr.GetShell(context.Background(), id)
		return err == nil && shell.Status == types.StatusAlive
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("prober did not stop")
	}
}

// flakyStore fails List while failures remain.
type flakyStore struct {
	*database.Store
	failures atomic.Int32
	lists    atomic.Int32
}

func (s *flakyStore) List(ctx context.Context, filter types.ShellFilter) ([]types.Shell, error) {
	s.lists.Add(1)
	if s.failures.Add(-1) >= 0 {
		return nil, errors.New("database is locked")
	}
	return s.Store.List(ctx, filter)
}

func TestSweepSurvivesStoreError(t *testing.T) {
	srv := newStub(t)
	flaky := &flakyStore{}
	mgr, _ := setupTestManager(t, func(o *Options) {
		flaky.Store = o.Store.(*database.Store)
		o.Store = flaky
	})
	id := addShell(t, mgr, srv)
	flaky.failures.Store(1)
	flaky.lists.Store(0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewProber(mgr, 20*time.Millisecond, nil).Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		shell, err := mgr.GetShell(context.Background(), id)
		return err == nil && shell.Status == types.StatusAlive
	}, 2*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, flaky.lists.Load(), int32(2))

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("prober did not stop")
	}
}

func TestProberDisabled(t *testing.T) {
	mgr, _ := setupTestManager(t)
	done := make(chan struct{})
	go func() {
		NewProber(mgr, 0, nil).Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disabled prober should return immediately")
	}
}
