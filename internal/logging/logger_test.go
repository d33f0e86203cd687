package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Config{Level: "chatty"})
	assert.Error(t, err)
}

func TestFromSettings(t *testing.T) {
	logger, err := FromSettings("warn", false)
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.InfoLevel))
	assert.True(t, logger.Core().Enabled(zap.WarnLevel))

	dev, err := FromSettings("", true)
	require.NoError(t, err)
	assert.True(t, dev.Core().Enabled(zap.DebugLevel))
}

func TestChildLoggersCarryFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := &Logger{Logger: zap.New(core)}

	logger.ForSession(3, "sess_x").Info("exec")
	logger.ForShell(4).Info("probe")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, uint64(3), entries[0].ContextMap()["shell_id"])
	assert.Equal(t, "sess_x", entries[0].ContextMap()["session_id"])
	assert.Equal(t, uint64(4), entries[1].ContextMap()["shell_id"])
}

func TestNewNop(t *testing.T) {
	assert.NotPanics(t, func() { NewNop().Info("ignored") })
}
