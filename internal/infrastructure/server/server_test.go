package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/GriffinCanCode/stubterm/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/stubterm/backend/internal/logging"
	"github.com/GriffinCanCode/stubterm/backend/internal/shared/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Database.Path = ":memory:"
	cfg.Logging.Level = "error"
	cfg.RateLimit.Enabled = false
	return cfg
}

func TestNewServerServesAPI(t *testing.T) {
	srv, err := NewServer(testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	for _, path := range []string{"/", "/health", "/shells", "/terminals", "/stats", "/metrics"} {
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestNewServerSeedsShells(t *testing.T) {
	seed := filepath.Join(t.TempDir(), "shells.yaml")
	require.NoError(t, os.WriteFile(seed, []byte(`shells:
  - location: http://10.0.0.5/upload/x.php
  - location: http://10.0.0.6/x.php
    type: windows
    label: iis
`), 0o600))

	cfg := testConfig(t)
	cfg.Registry.SeedFile = seed
	srv, err := NewServer(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/shells?type=windows", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `"count":1`), w.Body.String())
}

func TestNewServerRejectsBadProfile(t *testing.T) {
	profile := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(profile, []byte("method: TRACE\n"), 0o600))

	cfg := testConfig(t)
	cfg.Protocol.ProfilePath = profile
	_, err := NewServer(cfg)
	assert.Error(t, err)
}

func TestShutdownWithoutRun(t *testing.T) {
	srv, err := NewServer(testConfig(t))
	require.NoError(t, err)
	assert.NoError(t, srv.Shutdown(context.Background()))
}

func TestTerminalHooksLogSessionID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := &logging.Logger{Logger: zap.New(core)}

	onTerminalOpen(logger)(7, types.TerminalInfo{SessionID: "01J9ZK", CurrentPath: "/var/www"})
	onTerminalClose(logger)(7, "01J9ZK")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "terminal closed", entries[1].Message)
	fields := entries[1].ContextMap()
	assert.Equal(t, uint64(7), fields["shell_id"])
	assert.Equal(t, "01J9ZK", fields["session_id"])
	assert.NotContains(t, fields, "reason")
	assert.Equal(t, fields["session_id"], entries[0].ContextMap()["session_id"])
}
